package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dzoothis/oddsfeed/internal/domain/feed"
	"github.com/dzoothis/oddsfeed/internal/domain/league"
	"github.com/dzoothis/oddsfeed/internal/domain/match"
	"github.com/dzoothis/oddsfeed/internal/domain/sport"
	"github.com/dzoothis/oddsfeed/internal/platform/cache"
	"github.com/dzoothis/oddsfeed/internal/platform/logging"
	"github.com/panjf2000/ants/v2"
)

const (
	LayerProviderStatusFilter      = "provider_status_filter"
	LayerPrimaryMarketVerification = "primary_market_verification"
	LayerTimeCleanup               = "time_cleanup"
	LayerStalenessPurge            = "staleness_purge"
	LayerComprehensiveSweep        = "comprehensive_sweep"

	transitionSourceAuto   = "auto"
	transitionSourceManual = "manual"

	matchCachePrefix = "match:"

	transitionMaxAttempts = 3
)

type LifecycleConfig struct {
	Providers feed.ProviderSet
	// StalenessThreshold is how long a match may go without provider contact
	// before the purge closes it outright.
	StalenessThreshold time.Duration
	// OverrunGrace pads the sport's typical duration before the time layer
	// treats a match as over.
	OverrunGrace time.Duration
	SweepWorkers int
}

// LayerResult reports one evaluation layer run.
type LayerResult struct {
	Layer        string `json:"layer"`
	Evaluated    int    `json:"evaluated"`
	Transitioned int    `json:"transitioned"`
	Restored     int    `json:"restored"`
	Failed       int    `json:"failed"`
	DurationMs   int64  `json:"duration_ms"`
}

// ReviewCandidate is a match flagged for operator attention.
type ReviewCandidate struct {
	Match match.Match
	Risk  string
}

// LifecycleService owns every status transition a match can take after
// aggregation. Each evaluation layer is scheduled independently and holds a
// non-blocking run guard, so an overlapping trigger returns ErrAlreadyRunning
// instead of queueing behind a slow run.
type LifecycleService struct {
	matches match.Repository
	audits  match.AuditRepository
	leagues league.Repository
	sports  sport.Repository
	store   *cache.Store
	cfg     LifecycleConfig
	logger  *logging.Logger
	now     func() time.Time

	evidenceMu sync.RWMutex
	evidence   StatusEvidence

	runMu   sync.Mutex
	running map[string]bool
}

func NewLifecycleService(
	matches match.Repository,
	audits match.AuditRepository,
	leagues league.Repository,
	sports sport.Repository,
	store *cache.Store,
	cfg LifecycleConfig,
	logger *logging.Logger,
) *LifecycleService {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.StalenessThreshold <= 0 {
		cfg.StalenessThreshold = 48 * time.Hour
	}
	if cfg.OverrunGrace <= 0 {
		cfg.OverrunGrace = 30 * time.Minute
	}
	if cfg.SweepWorkers <= 0 {
		cfg.SweepWorkers = 4
	}

	return &LifecycleService{
		matches: matches,
		audits:  audits,
		leagues: leagues,
		sports:  sports,
		store:   store,
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
		running: make(map[string]bool),
	}
}

// RecordEvidence replaces the evidence snapshot the status layers evaluate.
// Called by the orchestrator after every successful aggregation cycle.
func (s *LifecycleService) RecordEvidence(evidence StatusEvidence) {
	s.evidenceMu.Lock()
	defer s.evidenceMu.Unlock()
	s.evidence = evidence
}

func (s *LifecycleService) snapshotEvidence() StatusEvidence {
	s.evidenceMu.RLock()
	defer s.evidenceMu.RUnlock()
	return s.evidence
}

func (s *LifecycleService) tryBegin(layer string) bool {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	if s.running[layer] {
		return false
	}
	s.running[layer] = true
	return true
}

func (s *LifecycleService) end(layer string) {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	delete(s.running, layer)
}

// RunProviderStatusFilter closes matches some provider reported as over.
// Whether they close as finished or soft_finished depends on the league's
// coverage tier; it also restores soft_finished matches the feeds say are
// still going.
func (s *LifecycleService) RunProviderStatusFilter(ctx context.Context) (LayerResult, error) {
	return s.runLayer(ctx, LayerProviderStatusFilter, func(ctx context.Context, result *LayerResult) error {
		evidence := s.snapshotEvidence()
		if evidence.ObservedAt.IsZero() {
			s.logger.InfoContext(ctx, "provider status filter skipped, no cycle evidence yet")
			return nil
		}

		items, err := s.listOpen(ctx, match.StatusPrematch, match.StatusLive, match.StatusSoftFinished)
		if err != nil {
			return err
		}

		for _, item := range items {
			result.Evaluated++
			s.applyDecision(ctx, item.ID, result, func(m match.Match) (string, string, bool) {
				return s.decideProviderStatus(ctx, m, evidence)
			})
		}
		return nil
	})
}

// RunPrimaryMarketVerification soft-finishes matches the primary provider
// stopped quoting. Inference only, never a hard finish.
func (s *LifecycleService) RunPrimaryMarketVerification(ctx context.Context) (LayerResult, error) {
	return s.runLayer(ctx, LayerPrimaryMarketVerification, func(ctx context.Context, result *LayerResult) error {
		evidence := s.snapshotEvidence()
		if evidence.ObservedAt.IsZero() {
			s.logger.InfoContext(ctx, "primary market verification skipped, no cycle evidence yet")
			return nil
		}

		items, err := s.listOpen(ctx, match.StatusPrematch, match.StatusLive)
		if err != nil {
			return err
		}

		for _, item := range items {
			result.Evaluated++
			s.applyDecision(ctx, item.ID, result, func(m match.Match) (string, string, bool) {
				return s.decidePrimaryMarket(m, evidence)
			})
		}
		return nil
	})
}

// RunTimeCleanup soft-finishes matches long past their expected end, judged
// by the sport's typical duration plus a grace window. Matches providers are
// still updating, or that the current cycle reports live, stay open.
func (s *LifecycleService) RunTimeCleanup(ctx context.Context) (LayerResult, error) {
	return s.runLayer(ctx, LayerTimeCleanup, func(ctx context.Context, result *LayerResult) error {
		evidence := s.snapshotEvidence()
		items, err := s.listOpen(ctx, match.StatusPrematch, match.StatusLive)
		if err != nil {
			return err
		}

		for _, item := range items {
			result.Evaluated++
			s.applyDecision(ctx, item.ID, result, func(m match.Match) (string, string, bool) {
				return s.decideTimeCleanup(ctx, m, evidence)
			})
		}
		return nil
	})
}

// RunStalenessPurge hard-finishes anything no provider has touched for the
// staleness threshold. Last-resort cleanup so abandoned rows cannot sit in a
// bettable state forever.
func (s *LifecycleService) RunStalenessPurge(ctx context.Context) (LayerResult, error) {
	return s.runLayer(ctx, LayerStalenessPurge, func(ctx context.Context, result *LayerResult) error {
		cutoff := s.now().Add(-s.cfg.StalenessThreshold)
		items, err := s.matches.List(ctx, match.Filter{
			Statuses:      []string{match.StatusPrematch, match.StatusLive, match.StatusSoftFinished},
			UpdatedBefore: cutoff,
		})
		if err != nil {
			return fmt.Errorf("list stale matches: %w", err)
		}

		for _, item := range items {
			result.Evaluated++
			s.applyDecision(ctx, item.ID, result, s.decideStaleness)
		}
		return nil
	})
}

// RunComprehensiveSweep pushes every open match through the full rule chain
// on a worker pool. One match failing never stops the sweep.
func (s *LifecycleService) RunComprehensiveSweep(ctx context.Context) (LayerResult, error) {
	return s.runLayer(ctx, LayerComprehensiveSweep, func(ctx context.Context, result *LayerResult) error {
		evidence := s.snapshotEvidence()
		items, err := s.listOpen(ctx, match.StatusPrematch, match.StatusLive, match.StatusSoftFinished)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			return nil
		}

		workerCount := s.cfg.SweepWorkers
		if workerCount > len(items) {
			workerCount = len(items)
		}
		pool, err := ants.NewPool(workerCount)
		if err != nil {
			return fmt.Errorf("create sweep worker pool: %w", err)
		}
		defer pool.Release()

		var evaluated, transitioned, restored, failed atomic.Int32
		var workers sync.WaitGroup
		for _, item := range items {
			item := item
			workers.Add(1)
			if err := pool.Submit(func() {
				defer workers.Done()

				evaluated.Add(1)
				row := LayerResult{}
				s.applyDecision(ctx, item.ID, &row, func(m match.Match) (string, string, bool) {
					return s.decideFullChain(ctx, m, evidence)
				})
				transitioned.Add(int32(row.Transitioned))
				restored.Add(int32(row.Restored))
				failed.Add(int32(row.Failed))
			}); err != nil {
				workers.Done()
				return fmt.Errorf("submit match to sweep pool: %w", err)
			}
		}
		workers.Wait()

		result.Evaluated = int(evaluated.Load())
		result.Transitioned = int(transitioned.Load())
		result.Restored = int(restored.Load())
		result.Failed = int(failed.Load())
		return nil
	})
}

func (s *LifecycleService) runLayer(ctx context.Context, layer string, run func(context.Context, *LayerResult) error) (LayerResult, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.LifecycleService."+layer)
	defer span.End()

	if !s.tryBegin(layer) {
		return LayerResult{}, fmt.Errorf("%w: lifecycle layer %s", ErrAlreadyRunning, layer)
	}
	defer s.end(layer)

	start := s.now()
	result := LayerResult{Layer: layer}
	if err := run(ctx, &result); err != nil {
		return LayerResult{}, err
	}
	result.DurationMs = time.Since(start).Milliseconds()

	if result.Transitioned > 0 || result.Restored > 0 {
		s.invalidateMatchCache(ctx)
	}
	s.logger.InfoContext(ctx, "lifecycle layer finished",
		"layer", layer,
		"evaluated", result.Evaluated,
		"transitioned", result.Transitioned,
		"restored", result.Restored,
		"failed", result.Failed,
	)
	return result, nil
}

func (s *LifecycleService) listOpen(ctx context.Context, statuses ...string) ([]match.Match, error) {
	items, err := s.matches.List(ctx, match.Filter{Statuses: statuses})
	if err != nil {
		return nil, fmt.Errorf("list matches: %w", err)
	}
	return items, nil
}

// decision functions return (target status, reason, apply). They must be pure
// over the match row handed in so the optimistic retry loop can re-run them
// against a fresh read.

func (s *LifecycleService) decideProviderStatus(ctx context.Context, m match.Match, evidence StatusEvidence) (string, string, bool) {
	if m.Status == match.StatusSoftFinished {
		return s.decideRestore(m, evidence)
	}

	reporters := evidence.terminalReporters(m.JoinKey)
	if len(reporters) == 0 {
		return "", "", false
	}

	coverage := s.leagueCoverage(ctx, m.LeagueID)
	reason := fmt.Sprintf("terminal status reported by %v", reporters)
	if coverage == league.CoverageMajor {
		return match.StatusFinished, reason, true
	}
	return match.StatusSoftFinished, reason, true
}

// decideRestore reopens a soft_finished match when the current cycle shows it
// live again or back on the primary provider's board.
func (s *LifecycleService) decideRestore(m match.Match, evidence StatusEvidence) (string, string, bool) {
	if len(evidence.terminalReporters(m.JoinKey)) > 0 {
		return "", "", false
	}
	if len(evidence.liveReporters(m.JoinKey)) > 0 {
		return match.StatusLive, "live status reported after soft finish", true
	}
	if evidence.primaryOpen(m.JoinKey) {
		if s.now().After(m.ScheduledAt) {
			return match.StatusLive, "primary provider re-listed match", true
		}
		return match.StatusPrematch, "primary provider re-listed match", true
	}
	return "", "", false
}

func (s *LifecycleService) decidePrimaryMarket(m match.Match, evidence StatusEvidence) (string, string, bool) {
	primary := s.cfg.Providers.Primary()
	if primary == "" || !m.HasProvider(primary) {
		return "", "", false
	}
	// A cycle the primary's fetch never reached says nothing about its
	// board; only a cycle the primary contributed to can drop a match.
	if !evidence.HasProvider(primary) {
		return "", "", false
	}
	if !m.AvailableForBetting {
		return "", "", false
	}
	if evidence.primaryOpen(m.JoinKey) {
		return "", "", false
	}
	return match.StatusSoftFinished, fmt.Sprintf("primary provider %s no longer quotes markets", primary), true
}

func (s *LifecycleService) decideTimeCleanup(ctx context.Context, m match.Match, evidence StatusEvidence) (string, string, bool) {
	duration := s.sportDuration(ctx, m.SportID)
	deadline := m.ScheduledAt.Add(duration + s.cfg.OverrunGrace)
	if s.now().Before(deadline) {
		return "", "", false
	}
	// Elapsed time alone is not enough: providers must also have gone quiet
	// on the match. An overrunning fixture keeps getting updates.
	if s.now().Sub(m.UpdatedAt) < s.cfg.OverrunGrace {
		return "", "", false
	}
	if len(evidence.liveReporters(m.JoinKey)) > 0 {
		return "", "", false
	}
	return match.StatusSoftFinished, fmt.Sprintf("expected end %s passed without terminal status", deadline.UTC().Format(time.RFC3339)), true
}

func (s *LifecycleService) decideStaleness(m match.Match) (string, string, bool) {
	idle := s.now().Sub(m.UpdatedAt)
	if idle < s.cfg.StalenessThreshold {
		return "", "", false
	}
	return match.StatusFinished, fmt.Sprintf("no provider update for %s", idle.Truncate(time.Minute)), true
}

func (s *LifecycleService) decideFullChain(ctx context.Context, m match.Match, evidence StatusEvidence) (string, string, bool) {
	if m.Status == match.StatusSoftFinished {
		if to, reason, ok := s.decideRestore(m, evidence); ok {
			return to, reason, ok
		}
		return s.decideStaleness(m)
	}

	if !evidence.ObservedAt.IsZero() {
		if to, reason, ok := s.decideProviderStatus(ctx, m, evidence); ok {
			return to, reason, ok
		}
	}
	if to, reason, ok := s.decideStaleness(m); ok {
		return to, reason, ok
	}
	if to, reason, ok := s.decideTimeCleanup(ctx, m, evidence); ok {
		return to, reason, ok
	}
	if !evidence.ObservedAt.IsZero() {
		if to, reason, ok := s.decidePrimaryMarket(m, evidence); ok {
			return to, reason, ok
		}
	}
	return "", "", false
}

// applyDecision re-reads the match, runs the decision, and commits with a
// version check. A version conflict means some other layer or the sync wrote
// first; the decision re-runs against the fresh row rather than overwriting.
func (s *LifecycleService) applyDecision(ctx context.Context, matchID string, result *LayerResult, decide func(match.Match) (string, string, bool)) {
	for attempt := 0; attempt < transitionMaxAttempts; attempt++ {
		current, found, err := s.matches.GetByID(ctx, matchID)
		if err != nil {
			result.Failed++
			s.logger.WarnContext(ctx, "lifecycle read failed", "match_id", matchID, "error", err)
			return
		}
		if !found {
			return
		}

		to, reason, ok := decide(current)
		if !ok {
			return
		}
		if !match.CanAutoTransition(current.Status, to) {
			return
		}

		from := current.Status
		updated := current
		updated.Status = to
		if match.IsTerminalStatus(to) {
			updated.AvailableForBetting = false
		} else {
			updated.AvailableForBetting = len(updated.Markets) > 0
		}
		updated.UpdatedAt = s.now().UTC()

		if err := s.matches.Update(ctx, updated); err != nil {
			if errors.Is(err, match.ErrVersionConflict) {
				continue
			}
			result.Failed++
			s.logger.WarnContext(ctx, "lifecycle update failed", "match_id", matchID, "error", err)
			return
		}

		s.audit(ctx, match.AuditEntry{
			MatchID:    matchID,
			FromStatus: from,
			ToStatus:   to,
			Source:     transitionSourceAuto,
			Reason:     reason,
			OccurredAt: updated.UpdatedAt,
		})
		if from == match.StatusSoftFinished && !match.IsTerminalStatus(to) {
			result.Restored++
		} else {
			result.Transitioned++
		}
		return
	}

	result.Failed++
	s.logger.WarnContext(ctx, "lifecycle transition gave up after version conflicts", "match_id", matchID)
}

// ForceStatus is the administrative override. It may take any transition,
// reopening a finished match included, and always leaves an audit entry.
func (s *LifecycleService) ForceStatus(ctx context.Context, matchID, status, reason string) (match.Match, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.LifecycleService.ForceStatus")
	defer span.End()

	if !match.IsValidStatus(status) {
		return match.Match{}, fmt.Errorf("%w: status %q is not valid", ErrInvalidInput, status)
	}
	if reason == "" {
		return match.Match{}, fmt.Errorf("%w: a reason is required for manual overrides", ErrInvalidInput)
	}

	for attempt := 0; attempt < transitionMaxAttempts; attempt++ {
		current, found, err := s.matches.GetByID(ctx, matchID)
		if err != nil {
			return match.Match{}, fmt.Errorf("read match: %w", err)
		}
		if !found {
			return match.Match{}, fmt.Errorf("%w: match %s", ErrNotFound, matchID)
		}
		if current.Status == status {
			return current, nil
		}

		from := current.Status
		updated := current
		updated.Status = status
		if match.IsTerminalStatus(status) {
			updated.AvailableForBetting = false
		} else {
			updated.AvailableForBetting = len(updated.Markets) > 0
		}
		updated.UpdatedAt = s.now().UTC()

		if err := s.matches.Update(ctx, updated); err != nil {
			if errors.Is(err, match.ErrVersionConflict) {
				continue
			}
			return match.Match{}, fmt.Errorf("update match: %w", err)
		}

		s.audit(ctx, match.AuditEntry{
			MatchID:    matchID,
			FromStatus: from,
			ToStatus:   status,
			Source:     transitionSourceManual,
			Reason:     reason,
			OccurredAt: updated.UpdatedAt,
		})
		s.invalidateMatchCache(ctx)
		updated.Version++
		return updated, nil
	}

	return match.Match{}, fmt.Errorf("force status match=%s: %w", matchID, match.ErrVersionConflict)
}

// ListReviewCandidates returns open matches at medium risk or above, worst
// first, for the operator review queue.
func (s *LifecycleService) ListReviewCandidates(ctx context.Context) ([]ReviewCandidate, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.LifecycleService.ListReviewCandidates")
	defer span.End()

	items, err := s.listOpen(ctx, match.StatusPrematch, match.StatusLive, match.StatusSoftFinished)
	if err != nil {
		return nil, err
	}

	now := s.now()
	out := make([]ReviewCandidate, 0, len(items))
	for _, item := range items {
		risk := match.ClassifyRisk(item, now)
		if risk == match.RiskLow {
			continue
		}
		out = append(out, ReviewCandidate{Match: item, Risk: risk})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Risk != out[j].Risk {
			return riskRank(out[i].Risk) < riskRank(out[j].Risk)
		}
		return out[i].Match.UpdatedAt.Before(out[j].Match.UpdatedAt)
	})
	return out, nil
}

// AuditTrail lists status transitions for one match, oldest first.
func (s *LifecycleService) AuditTrail(ctx context.Context, matchID string) ([]match.AuditEntry, error) {
	if matchID == "" {
		return nil, fmt.Errorf("%w: match id is required", ErrInvalidInput)
	}
	entries, err := s.audits.ListByMatch(ctx, matchID)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	return entries, nil
}

func riskRank(risk string) int {
	switch risk {
	case match.RiskCritical:
		return 0
	case match.RiskHigh:
		return 1
	case match.RiskMedium:
		return 2
	default:
		return 3
	}
}

func (s *LifecycleService) leagueCoverage(ctx context.Context, leagueID string) string {
	if leagueID == "" || s.leagues == nil {
		return league.CoverageRegional
	}
	item, found, err := s.leagues.GetByID(ctx, leagueID)
	if err != nil {
		s.logger.WarnContext(ctx, "league lookup failed, assuming regional coverage", "league_id", leagueID, "error", err)
		return league.CoverageRegional
	}
	if !found {
		return league.CoverageRegional
	}
	return item.Coverage
}

func (s *LifecycleService) sportDuration(ctx context.Context, sportID int64) time.Duration {
	if s.sports == nil {
		return sport.Sport{}.DurationOrDefault()
	}
	item, found, err := s.sports.GetByID(ctx, sportID)
	if err != nil || !found {
		return sport.Sport{}.DurationOrDefault()
	}
	return item.DurationOrDefault()
}

func (s *LifecycleService) audit(ctx context.Context, entry match.AuditEntry) {
	if s.audits == nil {
		return
	}
	if err := s.audits.Append(ctx, entry); err != nil {
		s.logger.WarnContext(ctx, "audit append failed", "match_id", entry.MatchID, "error", err)
	}
}

func (s *LifecycleService) invalidateMatchCache(ctx context.Context) {
	if s.store == nil {
		return
	}
	s.store.DeletePrefix(ctx, matchCachePrefix)
}
