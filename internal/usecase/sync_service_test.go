package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dzoothis/oddsfeed/internal/domain/feed"
	"github.com/dzoothis/oddsfeed/internal/domain/match"
	"github.com/dzoothis/oddsfeed/internal/infrastructure/repository/memory"
	"github.com/dzoothis/oddsfeed/internal/platform/id"
)

type stubSource struct {
	name   string
	events []feed.RawEvent
	err    error
}

func (s *stubSource) Provider() string { return s.name }

func (s *stubSource) FetchEvents(_ context.Context, _ int64) ([]feed.RawEvent, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.events, nil
}

type syncFixture struct {
	matches *memory.MatchRepository
	audits  *memory.AuditRepository
}

func newSyncService(t *testing.T, f *syncFixture, sources ...EventSource) *SyncService {
	t.Helper()

	resolver, _ := newTestResolutionService(nil)
	aggregator := NewAggregationService(resolver, AggregationConfig{Providers: testProviderSet()}, nil)
	lifecycle := NewLifecycleService(
		f.matches,
		f.audits,
		memory.NewLeagueRepository(memory.SeedLeagues()),
		memory.NewSportRepository(memory.SeedSports()),
		nil,
		LifecycleConfig{Providers: testProviderSet()},
		nil,
	)

	return NewSyncService(
		sources,
		aggregator,
		lifecycle,
		f.matches,
		f.audits,
		id.NewRandomGenerator(),
		nil,
		SyncConfig{Providers: testProviderSet()},
		nil,
	)
}

func premierLeagueEvent(provider, eventID, home, away, status string, at time.Time) feed.RawEvent {
	return feed.RawEvent{
		Provider:        provider,
		ProviderEventID: eventID,
		SportID:         memory.SportIDFootball,
		LeagueID:        memory.LeagueIDPremierLeague,
		HomeTeamName:    home,
		AwayTeamName:    away,
		ScheduledAt:     at,
		StatusCode:      status,
		Markets: []feed.Market{
			{Type: "1x2", Outcomes: []feed.Outcome{{Label: "1", Odds: 1.95}}},
		},
	}
}

func TestSyncService_RunCycle_CreatesAndThenUpdates(t *testing.T) {
	f := &syncFixture{matches: memory.NewMatchRepository(), audits: memory.NewAuditRepository()}
	kickoff := time.Date(2026, 3, 14, 16, 0, 0, 0, time.UTC)

	primary := &stubSource{name: "oddsprime", events: []feed.RawEvent{
		premierLeagueEvent("oddsprime", "op-1", "Arsenal", "Chelsea", "SCHEDULED", kickoff),
	}}
	secondary := &stubSource{name: "betstream", events: []feed.RawEvent{
		premierLeagueEvent("betstream", "bs-1", "Arsenal", "Chelsea", "SCHEDULED", kickoff.Add(30*time.Minute)),
	}}

	svc := newSyncService(t, f, primary, secondary)

	result, err := svc.RunCycle(t.Context(), SyncInput{SportID: memory.SportIDFootball})
	if err != nil {
		t.Fatalf("first cycle failed: %v", err)
	}
	if result.Created != 1 || result.Updated != 0 {
		t.Fatalf("expected one created match, got %+v", result)
	}
	if result.MergedMatches != 1 || result.TotalEvents != 2 {
		t.Fatalf("unexpected merge stats: %+v", result)
	}

	again, err := svc.RunCycle(t.Context(), SyncInput{SportID: memory.SportIDFootball})
	if err != nil {
		t.Fatalf("second cycle failed: %v", err)
	}
	if again.Created != 0 || again.Updated != 1 {
		t.Fatalf("second cycle must update, not duplicate: %+v", again)
	}

	stored, err := f.matches.List(t.Context(), match.Filter{})
	if err != nil {
		t.Fatalf("list matches: %v", err)
	}
	if len(stored) != 1 {
		t.Fatalf("expected exactly one stored match, got %d", len(stored))
	}
	if len(stored[0].Providers) != 2 {
		t.Fatalf("expected both providers, got %v", stored[0].Providers)
	}
}

func TestSyncService_RunCycle_LiveTransitionIsAudited(t *testing.T) {
	f := &syncFixture{matches: memory.NewMatchRepository(), audits: memory.NewAuditRepository()}
	kickoff := time.Date(2026, 3, 14, 16, 0, 0, 0, time.UTC)

	source := &stubSource{name: "oddsprime", events: []feed.RawEvent{
		premierLeagueEvent("oddsprime", "op-1", "Arsenal", "Chelsea", "SCHEDULED", kickoff),
	}}
	svc := newSyncService(t, f, source)

	if _, err := svc.RunCycle(t.Context(), SyncInput{SportID: memory.SportIDFootball}); err != nil {
		t.Fatalf("first cycle failed: %v", err)
	}

	source.events = []feed.RawEvent{
		premierLeagueEvent("oddsprime", "op-1", "Arsenal", "Chelsea", "LIVE", kickoff),
	}
	if _, err := svc.RunCycle(t.Context(), SyncInput{SportID: memory.SportIDFootball}); err != nil {
		t.Fatalf("second cycle failed: %v", err)
	}

	stored, _ := f.matches.List(t.Context(), match.Filter{})
	if len(stored) != 1 || stored[0].Status != match.StatusLive {
		t.Fatalf("expected one live match, got %+v", stored)
	}

	trail, _ := f.audits.ListByMatch(t.Context(), stored[0].ID)
	if len(trail) != 1 {
		t.Fatalf("expected one audit entry, got %d", len(trail))
	}
	if trail[0].FromStatus != match.StatusPrematch || trail[0].ToStatus != match.StatusLive {
		t.Fatalf("unexpected audit transition: %+v", trail[0])
	}
}

func TestSyncService_RunCycle_ProviderFailureDegrades(t *testing.T) {
	f := &syncFixture{matches: memory.NewMatchRepository(), audits: memory.NewAuditRepository()}
	kickoff := time.Date(2026, 3, 14, 16, 0, 0, 0, time.UTC)

	healthy := &stubSource{name: "oddsprime", events: []feed.RawEvent{
		premierLeagueEvent("oddsprime", "op-1", "Arsenal", "Chelsea", "SCHEDULED", kickoff),
	}}
	broken := &stubSource{name: "betstream", err: errors.New("upstream 503")}

	svc := newSyncService(t, f, healthy, broken)

	result, err := svc.RunCycle(t.Context(), SyncInput{SportID: memory.SportIDFootball})
	if err != nil {
		t.Fatalf("cycle should degrade, not fail: %v", err)
	}
	if result.Created != 1 {
		t.Fatalf("expected match from healthy provider, got %+v", result)
	}

	var failedRows int
	for _, row := range result.Providers {
		if row.Status == fetchStatusFailed {
			failedRows++
		}
	}
	if failedRows != 1 {
		t.Fatalf("expected one failed provider row, got %+v", result.Providers)
	}
}

func TestSyncService_RunCycle_AllProvidersFailing(t *testing.T) {
	f := &syncFixture{matches: memory.NewMatchRepository(), audits: memory.NewAuditRepository()}

	svc := newSyncService(t, f,
		&stubSource{name: "oddsprime", err: errors.New("timeout")},
		&stubSource{name: "betstream", err: errors.New("timeout")},
	)

	_, err := svc.RunCycle(t.Context(), SyncInput{SportID: memory.SportIDFootball})
	if !errors.Is(err, ErrDependencyUnavailable) {
		t.Fatalf("expected ErrDependencyUnavailable, got %v", err)
	}
}

func TestSyncService_RunCycle_CancelledContextWritesNothing(t *testing.T) {
	f := &syncFixture{matches: memory.NewMatchRepository(), audits: memory.NewAuditRepository()}
	kickoff := time.Date(2026, 3, 14, 16, 0, 0, 0, time.UTC)

	source := &stubSource{name: "oddsprime", events: []feed.RawEvent{
		premierLeagueEvent("oddsprime", "op-1", "Arsenal", "Chelsea", "SCHEDULED", kickoff),
	}}
	svc := newSyncService(t, f, source)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	if _, err := svc.RunCycle(ctx, SyncInput{SportID: memory.SportIDFootball}); err == nil {
		t.Fatal("expected error from cancelled context")
	}

	stored, _ := f.matches.List(t.Context(), match.Filter{})
	if len(stored) != 0 {
		t.Fatalf("cancelled cycle must not write, got %d matches", len(stored))
	}
}

func TestSyncService_RunCycle_Guard(t *testing.T) {
	f := &syncFixture{matches: memory.NewMatchRepository(), audits: memory.NewAuditRepository()}
	svc := newSyncService(t, f, &stubSource{name: "oddsprime"})

	if !svc.tryBegin() {
		t.Fatal("first begin should succeed")
	}
	defer svc.end()

	_, err := svc.RunCycle(t.Context(), SyncInput{SportID: memory.SportIDFootball})
	if !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("expected ErrAlreadyRunning, got %v", err)
	}
}

func TestSyncService_RunCycle_RejectsBadSport(t *testing.T) {
	f := &syncFixture{matches: memory.NewMatchRepository(), audits: memory.NewAuditRepository()}
	svc := newSyncService(t, f, &stubSource{name: "oddsprime"})

	_, err := svc.RunCycle(t.Context(), SyncInput{})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}
