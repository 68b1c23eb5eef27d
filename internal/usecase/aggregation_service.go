package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dzoothis/oddsfeed/internal/domain/feed"
	"github.com/dzoothis/oddsfeed/internal/domain/match"
	"github.com/dzoothis/oddsfeed/internal/platform/logging"
	"github.com/dzoothis/oddsfeed/internal/platform/textnorm"
)

type AggregationConfig struct {
	Providers feed.ProviderSet
	// TimeTolerance absorbs timezone and clock skew between providers when
	// joining events describing the same fixture.
	TimeTolerance time.Duration
}

// ProviderEvents is one provider's event list for a sync cycle.
type ProviderEvents struct {
	Provider string
	Events   []feed.RawEvent
}

// StatusEvidence is the per-cycle snapshot the lifecycle layers evaluate:
// which join keys some provider reported as over, which the primary provider
// still lists with open markets, and which providers actually contributed to
// the cycle. Absence of a key only means something when the provider that
// would have reported it participated.
type StatusEvidence struct {
	TerminalByJoinKey   map[string][]string
	LiveByJoinKey       map[string][]string
	PrimaryOpenJoinKeys map[string]struct{}
	Providers           map[string]struct{}
	Tolerance           time.Duration
	ObservedAt          time.Time
}

// HasProvider reports whether the provider's fetch contributed to the cycle
// this snapshot was built from.
func (e StatusEvidence) HasProvider(provider string) bool {
	_, ok := e.Providers[strings.ToLower(provider)]
	return ok
}

// A stored match's join key can land one time bucket away from the key the
// current cycle computed for the same fixture, so every lookup probes the
// adjacent buckets too.

func (e StatusEvidence) terminalReporters(key string) []string {
	if reporters := e.TerminalByJoinKey[key]; len(reporters) > 0 {
		return reporters
	}
	for _, neighbor := range neighborJoinKeys(key, e.Tolerance) {
		if reporters := e.TerminalByJoinKey[neighbor]; len(reporters) > 0 {
			return reporters
		}
	}
	return nil
}

func (e StatusEvidence) liveReporters(key string) []string {
	if reporters := e.LiveByJoinKey[key]; len(reporters) > 0 {
		return reporters
	}
	for _, neighbor := range neighborJoinKeys(key, e.Tolerance) {
		if reporters := e.LiveByJoinKey[neighbor]; len(reporters) > 0 {
			return reporters
		}
	}
	return nil
}

func (e StatusEvidence) primaryOpen(key string) bool {
	if _, open := e.PrimaryOpenJoinKeys[key]; open {
		return true
	}
	for _, neighbor := range neighborJoinKeys(key, e.Tolerance) {
		if _, open := e.PrimaryOpenJoinKeys[neighbor]; open {
			return true
		}
	}
	return false
}

type AggregateResult struct {
	Matches            []match.Match
	Evidence           StatusEvidence
	TotalEvents        int
	UnresolvedEvents   int
	ResolutionFailures int
}

// AggregationService deduplicates events across providers: events sharing an
// unordered team pair and a scheduled time within the tolerance window merge
// into one canonical match, identity fields taken from the highest-priority
// provider present. Grouping is a pure computation over the cycle's lists,
// so re-running on the same input yields the same groups.
type AggregationService struct {
	resolver *ResolutionService
	cfg      AggregationConfig
	logger   *logging.Logger
	now      func() time.Time
}

func NewAggregationService(resolver *ResolutionService, cfg AggregationConfig, logger *logging.Logger) *AggregationService {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.TimeTolerance <= 0 {
		cfg.TimeTolerance = 4 * time.Hour
	}

	return &AggregationService{
		resolver: resolver,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// resolvedEvent is a raw event plus its team resolutions for the cycle.
type resolvedEvent struct {
	raw        feed.RawEvent
	homeTeamID string
	awayTeamID string
	resolved   bool
	priority   int
}

type mergeGroup struct {
	joinKey  string
	pairKey  string
	baseTime time.Time
	events   []resolvedEvent
}

func (s *AggregationService) Aggregate(ctx context.Context, cycle []ProviderEvents) (AggregateResult, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.AggregationService.Aggregate")
	defer span.End()

	result := AggregateResult{
		Evidence: StatusEvidence{
			TerminalByJoinKey:   make(map[string][]string),
			LiveByJoinKey:       make(map[string][]string),
			PrimaryOpenJoinKeys: make(map[string]struct{}),
			Providers:           make(map[string]struct{}, len(cycle)),
			Tolerance:           s.cfg.TimeTolerance,
			ObservedAt:          s.now().UTC(),
		},
	}
	// An empty event list from a provider that did fetch is still
	// participation; only providers whose fetch failed stay out.
	for _, list := range cycle {
		result.Evidence.Providers[strings.ToLower(list.Provider)] = struct{}{}
	}

	// Providers iterate in priority order so grouping stays deterministic
	// regardless of fetch completion order.
	ordered := make([]ProviderEvents, len(cycle))
	copy(ordered, cycle)
	sort.SliceStable(ordered, func(i, j int) bool {
		return s.cfg.Providers.Priority(ordered[i].Provider) < s.cfg.Providers.Priority(ordered[j].Provider)
	})

	groupsByPair := make(map[string][]*mergeGroup)
	var groups []*mergeGroup

	for _, list := range ordered {
		priority := s.cfg.Providers.Priority(list.Provider)
		for _, raw := range list.Events {
			if err := ctx.Err(); err != nil {
				return AggregateResult{}, fmt.Errorf("aggregation cancelled: %w", err)
			}
			result.TotalEvents++

			event := s.resolveEvent(ctx, raw, priority, &result)
			if !event.resolved {
				result.UnresolvedEvents++
			}
			pairKey := s.pairKey(event)
			if pairKey == "" {
				// No usable team identity at all; nothing to join on.
				continue
			}

			group := findGroup(groupsByPair[pairKey], raw.ScheduledAt, s.cfg.TimeTolerance)
			if group == nil {
				group = &mergeGroup{
					pairKey:  pairKey,
					baseTime: raw.ScheduledAt.UTC(),
					joinKey:  joinKey(pairKey, raw.ScheduledAt, s.cfg.TimeTolerance),
				}
				groupsByPair[pairKey] = append(groupsByPair[pairKey], group)
				groups = append(groups, group)
			}
			group.events = append(group.events, event)
		}
	}

	result.Matches = make([]match.Match, 0, len(groups))
	for _, group := range groups {
		merged := s.mergeGroup(group)
		result.Matches = append(result.Matches, merged)
		s.collectEvidence(group, merged.JoinKey, &result.Evidence)
	}

	return result, nil
}

func (s *AggregationService) resolveEvent(ctx context.Context, raw feed.RawEvent, priority int, result *AggregateResult) resolvedEvent {
	event := resolvedEvent{raw: raw, priority: priority}

	home, homeErr := s.resolver.Resolve(ctx, ResolveInput{
		Provider:       raw.Provider,
		RawName:        raw.HomeTeamName,
		ProviderTeamID: raw.HomeTeamProviderID,
		SportID:        raw.SportID,
		LeagueID:       raw.LeagueID,
	})
	away, awayErr := s.resolver.Resolve(ctx, ResolveInput{
		Provider:       raw.Provider,
		RawName:        raw.AwayTeamName,
		ProviderTeamID: raw.AwayTeamProviderID,
		SportID:        raw.SportID,
		LeagueID:       raw.LeagueID,
	})

	if homeErr == nil && awayErr == nil {
		event.homeTeamID = home.TeamID
		event.awayTeamID = away.TeamID
		event.resolved = true
		return event
	}

	// A resolution gap must not shrink coverage: the event survives as an
	// unresolved candidate keyed by its name pair.
	result.ResolutionFailures++
	for _, err := range []error{homeErr, awayErr} {
		if err == nil {
			continue
		}
		if errors.Is(err, ErrNoMatchFound) || errors.Is(err, ErrAmbiguousMatch) || errors.Is(err, ErrInvalidInput) {
			s.logger.InfoContext(ctx, "team resolution failed, keeping unresolved event",
				"provider", raw.Provider,
				"provider_event_id", raw.ProviderEventID,
				"error", err,
			)
			continue
		}
		s.logger.WarnContext(ctx, "team resolution errored",
			"provider", raw.Provider,
			"provider_event_id", raw.ProviderEventID,
			"error", err,
		)
	}

	return event
}

// pairKey builds the unordered join identity: resolved team ids when both
// sides resolved, normalized name pair otherwise.
func (s *AggregationService) pairKey(event resolvedEvent) string {
	if event.resolved {
		return unorderedPair("t", event.homeTeamID, event.awayTeamID, event.raw.SportID)
	}

	home := textnorm.Key(event.raw.HomeTeamName)
	away := textnorm.Key(event.raw.AwayTeamName)
	if home == "" || away == "" {
		return ""
	}
	return unorderedPair("n", home, away, event.raw.SportID)
}

func unorderedPair(prefix, a, b string, sportID int64) string {
	if b < a {
		a, b = b, a
	}
	return fmt.Sprintf("%s:%d:%s:%s", prefix, sportID, a, b)
}

// findGroup returns the existing group whose base time lies within the
// tolerance window of the event, probing all groups for the pair so clock
// skew across a bucket edge still joins.
func findGroup(groups []*mergeGroup, at time.Time, tolerance time.Duration) *mergeGroup {
	for _, group := range groups {
		delta := at.UTC().Sub(group.baseTime)
		if delta < 0 {
			delta = -delta
		}
		if delta <= tolerance {
			return group
		}
	}
	return nil
}

func joinKey(pairKey string, at time.Time, tolerance time.Duration) string {
	bucket := at.UTC().Truncate(tolerance).Unix()
	return fmt.Sprintf("%s:%d", pairKey, bucket)
}

// neighborJoinKeys returns the same pair's keys in the adjacent time buckets.
// A group's base event can shift between cycles, so an event near a bucket
// edge may compute the neighboring key for the same stored fixture.
func neighborJoinKeys(key string, tolerance time.Duration) []string {
	if tolerance <= 0 {
		return nil
	}
	cut := strings.LastIndexByte(key, ':')
	if cut < 0 {
		return nil
	}
	bucket, err := strconv.ParseInt(key[cut+1:], 10, 64)
	if err != nil {
		return nil
	}
	step := int64(tolerance / time.Second)
	return []string{
		fmt.Sprintf("%s:%d", key[:cut], bucket-step),
		fmt.Sprintf("%s:%d", key[:cut], bucket+step),
	}
}

func (s *AggregationService) mergeGroup(group *mergeGroup) match.Match {
	events := make([]resolvedEvent, len(group.events))
	copy(events, group.events)
	// Base record selection: resolved events outrank unresolved ones, then
	// provider priority decides.
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].resolved != events[j].resolved {
			return events[i].resolved
		}
		return events[i].priority < events[j].priority
	})

	base := events[0]
	merged := match.Match{
		SportID:      base.raw.SportID,
		LeagueID:     base.raw.LeagueID,
		HomeTeamID:   base.homeTeamID,
		AwayTeamID:   base.awayTeamID,
		HomeTeamName: base.raw.HomeTeamName,
		AwayTeamName: base.raw.AwayTeamName,
		ScheduledAt:  base.raw.ScheduledAt.UTC(),
		JoinKey:      group.joinKey,
	}

	baseCategories := make(map[string]struct{})
	for _, m := range base.raw.Markets {
		category := feed.MarketCategory(m.Type)
		baseCategories[category] = struct{}{}
		merged.Markets = append(merged.Markets, toMatchMarket(m, category, base.raw.Provider))
	}

	providers := []string{strings.ToLower(base.raw.Provider)}
	for _, event := range events[1:] {
		providers = append(providers, strings.ToLower(event.raw.Provider))
		// Supplemental merge only: a secondary provider cannot introduce a
		// market category the base record does not already quote.
		for _, m := range event.raw.Markets {
			category := feed.MarketCategory(m.Type)
			if _, ok := baseCategories[category]; !ok {
				continue
			}
			merged.Markets = append(merged.Markets, toMatchMarket(m, category, event.raw.Provider))
		}
	}
	merged.Providers = dedupeSorted(providers)

	// Live status and scores fall through provider priority to the first
	// provider reporting a value.
	status := match.StatusPrematch
	for _, event := range events {
		if event.raw.StatusCode == "" {
			continue
		}
		if feed.IsLiveStatus(event.raw.StatusCode) {
			status = match.StatusLive
		}
		break
	}
	merged.Status = status

	for _, event := range events {
		if event.raw.HomeScore != nil && event.raw.AwayScore != nil {
			merged.HomeScore = event.raw.HomeScore
			merged.AwayScore = event.raw.AwayScore
			break
		}
	}

	merged.AvailableForBetting = len(merged.Markets) > 0
	return merged
}

func (s *AggregationService) collectEvidence(group *mergeGroup, joinKey string, evidence *StatusEvidence) {
	primary := s.cfg.Providers.Primary()
	for _, event := range group.events {
		provider := strings.ToLower(event.raw.Provider)
		if feed.IsTerminalStatus(event.raw.StatusCode) && event.raw.StatusCode != "" {
			evidence.TerminalByJoinKey[joinKey] = append(evidence.TerminalByJoinKey[joinKey], provider)
		}
		if feed.IsLiveStatus(event.raw.StatusCode) {
			evidence.LiveByJoinKey[joinKey] = append(evidence.LiveByJoinKey[joinKey], provider)
		}
		if provider == primary && len(event.raw.Markets) > 0 {
			evidence.PrimaryOpenJoinKeys[joinKey] = struct{}{}
		}
	}
}

func toMatchMarket(m feed.Market, category, provider string) match.Market {
	outcomes := make([]match.Outcome, 0, len(m.Outcomes))
	for _, o := range m.Outcomes {
		outcomes = append(outcomes, match.Outcome{Label: o.Label, Odds: o.Odds})
	}
	return match.Market{
		Type:     m.Type,
		Category: category,
		Provider: strings.ToLower(provider),
		Outcomes: outcomes,
	}
}

func dedupeSorted(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
