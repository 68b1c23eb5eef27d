package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dzoothis/oddsfeed/internal/domain/feed"
	"github.com/dzoothis/oddsfeed/internal/domain/match"
	"github.com/dzoothis/oddsfeed/internal/platform/cache"
	"github.com/dzoothis/oddsfeed/internal/platform/id"
	"github.com/dzoothis/oddsfeed/internal/platform/logging"
	"github.com/sourcegraph/conc/pool"
)

const (
	fetchStatusSuccess = "success"
	fetchStatusFailed  = "failed"
)

// EventSource fetches one provider's current event list. Implementations own
// their retry and circuit-breaking policy; a returned error means the
// provider is out for this cycle.
type EventSource interface {
	Provider() string
	FetchEvents(ctx context.Context, sportID int64) ([]feed.RawEvent, error)
}

type SyncConfig struct {
	Providers feed.ProviderSet
	// FetchTimeout bounds each provider fetch so one hung feed cannot stall
	// the whole cycle.
	FetchTimeout time.Duration
	// SweepAfterCycle runs the comprehensive lifecycle sweep once the cycle
	// persisted, piggybacking cleanup on fresh evidence.
	SweepAfterCycle bool
}

type SyncInput struct {
	SportID int64
}

type ProviderFetchResult struct {
	Provider   string `json:"provider"`
	Status     string `json:"status"`
	Events     int    `json:"events"`
	DurationMs int64  `json:"duration_ms"`
	Message    string `json:"message,omitempty"`
}

type SyncResult struct {
	SportID            int64                 `json:"sport_id"`
	Providers          []ProviderFetchResult `json:"providers"`
	TotalEvents        int                   `json:"total_events"`
	MergedMatches      int                   `json:"merged_matches"`
	Created            int                   `json:"created"`
	Updated            int                   `json:"updated"`
	UnresolvedEvents   int                   `json:"unresolved_events"`
	ResolutionFailures int                   `json:"resolution_failures"`
	SweepRan           bool                  `json:"sweep_ran"`
	DurationMs         int64                 `json:"duration_ms"`
}

// SyncService drives one ingestion cycle end to end: fan out to every
// configured provider, aggregate whatever came back, persist the merged
// matches, and hand the cycle's status evidence to the lifecycle layers.
// A failed provider degrades the cycle; only all providers failing aborts it.
type SyncService struct {
	sources    []EventSource
	aggregator *AggregationService
	lifecycle  *LifecycleService
	matches    match.Repository
	audits     match.AuditRepository
	idGen      id.Generator
	store      *cache.Store
	cfg        SyncConfig
	logger     *logging.Logger
	now        func() time.Time

	runMu   sync.Mutex
	running bool
}

func NewSyncService(
	sources []EventSource,
	aggregator *AggregationService,
	lifecycle *LifecycleService,
	matches match.Repository,
	audits match.AuditRepository,
	idGen id.Generator,
	store *cache.Store,
	cfg SyncConfig,
	logger *logging.Logger,
) *SyncService {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 30 * time.Second
	}

	return &SyncService{
		sources:    sources,
		aggregator: aggregator,
		lifecycle:  lifecycle,
		matches:    matches,
		audits:     audits,
		idGen:      idGen,
		store:      store,
		cfg:        cfg,
		logger:     logger,
		now:        time.Now,
	}
}

func (s *SyncService) tryBegin() bool {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	if s.running {
		return false
	}
	s.running = true
	return true
}

func (s *SyncService) end() {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	s.running = false
}

// RunCycle is the scheduled job entry point. Safe to trigger repeatedly: an
// overlapping trigger gets ErrAlreadyRunning, and re-running on unchanged
// provider data converges to the same stored matches.
func (s *SyncService) RunCycle(ctx context.Context, input SyncInput) (SyncResult, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.SyncService.RunCycle")
	defer span.End()

	if input.SportID <= 0 {
		return SyncResult{}, fmt.Errorf("%w: sport id must be greater than zero", ErrInvalidInput)
	}
	if len(s.sources) == 0 || s.aggregator == nil || s.matches == nil {
		return SyncResult{}, fmt.Errorf("%w: sync is not fully configured", ErrDependencyUnavailable)
	}

	if !s.tryBegin() {
		return SyncResult{}, fmt.Errorf("%w: sync cycle", ErrAlreadyRunning)
	}
	defer s.end()

	start := s.now()
	result := SyncResult{SportID: input.SportID}

	cycle, fetchRows := s.fetchAll(ctx, input.SportID)
	result.Providers = fetchRows
	if len(cycle) == 0 {
		return SyncResult{}, fmt.Errorf("%w: every provider fetch failed", ErrDependencyUnavailable)
	}

	aggregated, err := s.aggregator.Aggregate(ctx, cycle)
	if err != nil {
		return SyncResult{}, err
	}
	result.TotalEvents = aggregated.TotalEvents
	result.MergedMatches = len(aggregated.Matches)
	result.UnresolvedEvents = aggregated.UnresolvedEvents
	result.ResolutionFailures = aggregated.ResolutionFailures

	// Persist is a distinct phase: a cancellation that arrives during fetch
	// or aggregation must leave the store untouched.
	if err := ctx.Err(); err != nil {
		return SyncResult{}, fmt.Errorf("sync cycle cancelled before persist: %w", err)
	}

	created, updated, err := s.persist(ctx, aggregated.Matches)
	if err != nil {
		return SyncResult{}, err
	}
	result.Created = created
	result.Updated = updated

	if s.store != nil && (created > 0 || updated > 0) {
		s.store.DeletePrefix(ctx, matchCachePrefix)
	}

	if s.lifecycle != nil {
		s.lifecycle.RecordEvidence(aggregated.Evidence)
		if s.cfg.SweepAfterCycle {
			if _, err := s.lifecycle.RunComprehensiveSweep(ctx); err != nil {
				if !errors.Is(err, ErrAlreadyRunning) {
					s.logger.WarnContext(ctx, "post-cycle sweep failed", "error", err)
				}
			} else {
				result.SweepRan = true
			}
		}
	}

	result.DurationMs = time.Since(start).Milliseconds()
	s.logger.InfoContext(ctx, "sync cycle finished",
		"sport_id", input.SportID,
		"total_events", result.TotalEvents,
		"merged_matches", result.MergedMatches,
		"created", result.Created,
		"updated", result.Updated,
		"unresolved_events", result.UnresolvedEvents,
	)
	return result, nil
}

func (s *SyncService) fetchAll(ctx context.Context, sportID int64) ([]ProviderEvents, []ProviderFetchResult) {
	type fetchOutcome struct {
		events ProviderEvents
		row    ProviderFetchResult
		ok     bool
	}

	workers := pool.NewWithResults[fetchOutcome]().WithMaxGoroutines(len(s.sources))
	for _, source := range s.sources {
		source := source
		workers.Go(func() fetchOutcome {
			fetchCtx, cancel := context.WithTimeout(ctx, s.cfg.FetchTimeout)
			defer cancel()

			fetchStart := s.now()
			events, err := source.FetchEvents(fetchCtx, sportID)
			row := ProviderFetchResult{
				Provider:   source.Provider(),
				DurationMs: time.Since(fetchStart).Milliseconds(),
			}
			if err != nil {
				row.Status = fetchStatusFailed
				row.Message = err.Error()
				s.logger.WarnContext(ctx, "provider fetch failed, continuing without it",
					"provider", source.Provider(),
					"sport_id", sportID,
					"error", err,
				)
				return fetchOutcome{row: row}
			}

			row.Status = fetchStatusSuccess
			row.Events = len(events)
			return fetchOutcome{
				events: ProviderEvents{Provider: source.Provider(), Events: events},
				row:    row,
				ok:     true,
			}
		})
	}

	outcomes := workers.Wait()
	sort.SliceStable(outcomes, func(i, j int) bool {
		return s.cfg.Providers.Priority(outcomes[i].row.Provider) < s.cfg.Providers.Priority(outcomes[j].row.Provider)
	})

	cycle := make([]ProviderEvents, 0, len(outcomes))
	rows := make([]ProviderFetchResult, 0, len(outcomes))
	for _, outcome := range outcomes {
		rows = append(rows, outcome.row)
		if outcome.ok {
			cycle = append(cycle, outcome.events)
		}
	}
	return cycle, rows
}

func (s *SyncService) persist(ctx context.Context, items []match.Match) (int, int, error) {
	var created, updated int
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return created, updated, fmt.Errorf("sync persist interrupted: %w", err)
		}

		wasCreated, err := s.persistOne(ctx, item)
		if err != nil {
			return created, updated, err
		}
		if wasCreated {
			created++
		} else {
			updated++
		}
	}
	return created, updated, nil
}

func (s *SyncService) persistOne(ctx context.Context, item match.Match) (bool, error) {
	for attempt := 0; attempt < transitionMaxAttempts; attempt++ {
		existing, found, err := s.lookupExisting(ctx, item)
		if err != nil {
			return false, err
		}

		if !found {
			newID, err := s.idGen.NewID()
			if err != nil {
				return false, fmt.Errorf("generate match id: %w", err)
			}
			item.ID = newID
			item.Version = 1
			item.UpdatedAt = s.now().UTC()
			if err := item.Validate(); err != nil {
				return false, fmt.Errorf("%w: %v", ErrInvalidInput, err)
			}
			if err := s.matches.Insert(ctx, item); err != nil {
				return false, fmt.Errorf("insert match join_key=%s: %w", item.JoinKey, err)
			}
			return true, nil
		}

		next := s.reconcile(existing, item)
		if err := s.matches.Update(ctx, next); err != nil {
			if errors.Is(err, match.ErrVersionConflict) {
				continue
			}
			return false, fmt.Errorf("update match id=%s: %w", existing.ID, err)
		}

		if next.Status != existing.Status {
			s.auditStatusChange(ctx, existing, next)
		}
		return false, nil
	}
	return false, fmt.Errorf("persist match join_key=%s: %w", item.JoinKey, match.ErrVersionConflict)
}

// lookupExisting finds the stored match for a merged record. The exact join
// key is tried first, then the neighboring time buckets: the group's base
// event can differ between cycles, so a fixture near a bucket edge may hash
// to the adjacent key.
func (s *SyncService) lookupExisting(ctx context.Context, item match.Match) (match.Match, bool, error) {
	existing, found, err := s.matches.GetByJoinKey(ctx, item.SportID, item.JoinKey)
	if err != nil {
		return match.Match{}, false, fmt.Errorf("read match by join key %s: %w", item.JoinKey, err)
	}
	if found {
		return existing, true, nil
	}

	tolerance := s.aggregator.cfg.TimeTolerance
	for _, key := range neighborJoinKeys(item.JoinKey, tolerance) {
		candidate, ok, err := s.matches.GetByJoinKey(ctx, item.SportID, key)
		if err != nil {
			return match.Match{}, false, fmt.Errorf("read match by join key %s: %w", key, err)
		}
		if !ok {
			continue
		}
		delta := item.ScheduledAt.Sub(candidate.ScheduledAt)
		if delta < 0 {
			delta = -delta
		}
		if delta <= tolerance {
			return candidate, true, nil
		}
	}
	return match.Match{}, false, nil
}

// reconcile folds a freshly merged record into the stored one. Sync owns the
// data fields; the lifecycle owns terminal statuses, so a finished or
// soft_finished row keeps its status here and only evidence-driven layers
// may reopen it.
func (s *SyncService) reconcile(existing, incoming match.Match) match.Match {
	next := existing
	next.LeagueID = incoming.LeagueID
	next.HomeTeamID = incoming.HomeTeamID
	next.AwayTeamID = incoming.AwayTeamID
	next.HomeTeamName = incoming.HomeTeamName
	next.AwayTeamName = incoming.AwayTeamName
	next.ScheduledAt = incoming.ScheduledAt
	next.Markets = incoming.Markets
	next.Providers = incoming.Providers
	next.HomeScore = incoming.HomeScore
	next.AwayScore = incoming.AwayScore
	next.UpdatedAt = s.now().UTC()

	if match.IsTerminalStatus(existing.Status) {
		next.AvailableForBetting = false
		return next
	}

	next.Status = existing.Status
	if match.CanAutoTransition(existing.Status, incoming.Status) && incoming.Status == match.StatusLive {
		next.Status = match.StatusLive
	}
	next.AvailableForBetting = len(next.Markets) > 0
	return next
}

func (s *SyncService) auditStatusChange(ctx context.Context, from, to match.Match) {
	if s.audits == nil {
		return
	}
	entry := match.AuditEntry{
		MatchID:    from.ID,
		FromStatus: from.Status,
		ToStatus:   to.Status,
		Source:     transitionSourceAuto,
		Reason:     "provider reported live status",
		OccurredAt: to.UpdatedAt,
	}
	if err := s.audits.Append(ctx, entry); err != nil {
		s.logger.WarnContext(ctx, "audit append failed", "match_id", from.ID, "error", err)
	}
}
