package usecase

import (
	"errors"
	"testing"
	"time"

	"github.com/dzoothis/oddsfeed/internal/domain/feed"
	"github.com/dzoothis/oddsfeed/internal/domain/team"
	"github.com/dzoothis/oddsfeed/internal/infrastructure/repository/memory"
	"github.com/dzoothis/oddsfeed/internal/platform/cache"
)

func testProviderSet() feed.ProviderSet {
	return feed.NewProviderSet([]string{"oddsprime", "betstream", "rapidodds"})
}

func newTestResolutionService(store *cache.Store) (*ResolutionService, *memory.MappingRepository) {
	sportRepo := memory.NewSportRepository(memory.SeedSports())
	teamRepo := memory.NewTeamRepository(memory.SeedTeams())
	mappingRepo := memory.NewMappingRepository(memory.SeedMappings())

	svc := NewResolutionService(sportRepo, teamRepo, mappingRepo, store, ResolutionConfig{
		Providers: testProviderSet(),
	}, nil)
	return svc, mappingRepo
}

func TestResolutionService_Resolve_RejectsUnknownProvider(t *testing.T) {
	svc, _ := newTestResolutionService(nil)

	_, err := svc.Resolve(t.Context(), ResolveInput{
		Provider: "shadybook",
		RawName:  "Arsenal",
		SportID:  memory.SportIDFootball,
	})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestResolutionService_Resolve_RejectsUnknownSport(t *testing.T) {
	svc, _ := newTestResolutionService(nil)

	_, err := svc.Resolve(t.Context(), ResolveInput{
		Provider: "oddsprime",
		RawName:  "Arsenal",
		SportID:  99,
	})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestResolutionService_Resolve_ProviderIDMapping(t *testing.T) {
	svc, _ := newTestResolutionService(nil)

	res, err := svc.Resolve(t.Context(), ResolveInput{
		Provider:       "oddsprime",
		RawName:        "Liverpool FC",
		ProviderTeamID: "op-204",
		SportID:        memory.SportIDFootball,
	})
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if res.TeamID != "eng-liv" {
		t.Fatalf("unexpected team id: %s", res.TeamID)
	}
	if res.Confidence != 1.0 {
		t.Fatalf("provider id mapping should be full confidence, got %.3f", res.Confidence)
	}
	if res.Source != ResolutionSourceProviderID {
		t.Fatalf("unexpected source: %s", res.Source)
	}
}

func TestResolutionService_Resolve_ExactNameMapping(t *testing.T) {
	svc, _ := newTestResolutionService(nil)

	res, err := svc.Resolve(t.Context(), ResolveInput{
		Provider: "betstream",
		RawName:  "Arsenal FC",
		SportID:  memory.SportIDFootball,
	})
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if res.TeamID != "eng-ars" {
		t.Fatalf("unexpected team id: %s", res.TeamID)
	}
	if res.Confidence != 0.93 {
		t.Fatalf("expected stored mapping confidence, got %.3f", res.Confidence)
	}
	if res.Source != ResolutionSourceExactName {
		t.Fatalf("unexpected source: %s", res.Source)
	}
}

func TestResolutionService_Resolve_FuzzyAbbreviation(t *testing.T) {
	svc, _ := newTestResolutionService(nil)

	res, err := svc.Resolve(t.Context(), ResolveInput{
		Provider: "oddsprime",
		RawName:  "Man United",
		SportID:  memory.SportIDFootball,
		LeagueID: memory.LeagueIDPremierLeague,
	})
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if res.TeamID != "eng-manutd" {
		t.Fatalf("unexpected team id: %s", res.TeamID)
	}
	if res.Confidence < 0.80 {
		t.Fatalf("expected confidence of at least 0.80, got %.4f", res.Confidence)
	}
	if res.Source != ResolutionSourceFuzzy {
		t.Fatalf("unexpected source: %s", res.Source)
	}

	// A confident fuzzy hit persists a mapping, so the next resolve takes
	// the exact-name tier.
	again, err := svc.Resolve(t.Context(), ResolveInput{
		Provider: "oddsprime",
		RawName:  "Man United",
		SportID:  memory.SportIDFootball,
		LeagueID: memory.LeagueIDPremierLeague,
	})
	if err != nil {
		t.Fatalf("second resolve failed: %v", err)
	}
	if again.Source != ResolutionSourceExactName {
		t.Fatalf("expected exact name source on second resolve, got %s", again.Source)
	}
	if again.TeamID != "eng-manutd" {
		t.Fatalf("unexpected team id on second resolve: %s", again.TeamID)
	}
}

func TestResolutionService_Resolve_FuzzyKeepsExistingPrimaryEdge(t *testing.T) {
	svc, mappingRepo := newTestResolutionService(nil)

	// eng-liv already holds a primary oddsprime edge under op-204; a second
	// oddsprime id resolving to the same team stores as a non-primary alias.
	res, err := svc.Resolve(t.Context(), ResolveInput{
		Provider:       "oddsprime",
		RawName:        "Liverpool",
		ProviderTeamID: "op-999",
		SportID:        memory.SportIDFootball,
		LeagueID:       memory.LeagueIDPremierLeague,
	})
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if res.TeamID != "eng-liv" {
		t.Fatalf("unexpected team id: %s", res.TeamID)
	}
	if res.Source != ResolutionSourceFuzzy {
		t.Fatalf("unexpected source: %s", res.Source)
	}

	stored, found, err := mappingRepo.GetByProviderTeamID(t.Context(), "oddsprime", "op-999")
	if err != nil || !found {
		t.Fatalf("expected stored mapping for new provider id, found=%v err=%v", found, err)
	}
	if stored.IsPrimary {
		t.Fatal("second provider id must not take the primary slot")
	}

	primary, found, err := mappingRepo.GetPrimaryByTeam(t.Context(), "eng-liv", "oddsprime")
	if err != nil || !found {
		t.Fatalf("expected existing primary mapping, found=%v err=%v", found, err)
	}
	if primary.ProviderTeamID != "op-204" {
		t.Fatalf("primary edge should stay on op-204, got %s", primary.ProviderTeamID)
	}
}

func TestResolutionService_Resolve_CacheHit(t *testing.T) {
	store := cache.NewStore(time.Minute)
	svc, _ := newTestResolutionService(store)

	first, err := svc.Resolve(t.Context(), ResolveInput{
		Provider: "oddsprime",
		RawName:  "Liverpool",
		SportID:  memory.SportIDFootball,
		LeagueID: memory.LeagueIDPremierLeague,
	})
	if err != nil {
		t.Fatalf("first resolve failed: %v", err)
	}

	second, err := svc.Resolve(t.Context(), ResolveInput{
		Provider: "oddsprime",
		RawName:  "Liverpool",
		SportID:  memory.SportIDFootball,
		LeagueID: memory.LeagueIDPremierLeague,
	})
	if err != nil {
		t.Fatalf("second resolve failed: %v", err)
	}
	if second.Source != ResolutionSourceCache {
		t.Fatalf("expected cache source, got %s", second.Source)
	}
	if second.TeamID != first.TeamID {
		t.Fatalf("cache returned a different team: %s vs %s", second.TeamID, first.TeamID)
	}
}

func TestResolutionService_Resolve_NoMatchBelowThreshold(t *testing.T) {
	svc, _ := newTestResolutionService(nil)

	_, err := svc.Resolve(t.Context(), ResolveInput{
		Provider: "oddsprime",
		RawName:  "Zenit St Petersburg",
		SportID:  memory.SportIDFootball,
		LeagueID: memory.LeagueIDPremierLeague,
	})
	if !errors.Is(err, ErrNoMatchFound) {
		t.Fatalf("expected ErrNoMatchFound, got %v", err)
	}
}

func TestResolutionService_Resolve_AmbiguousCandidates(t *testing.T) {
	sportRepo := memory.NewSportRepository(memory.SeedSports())
	teamRepo := memory.NewTeamRepository([]team.Team{
		{ID: "bra-santos-a", SportID: memory.SportIDFootball, LeagueID: "bra-serie-a", Name: "FC Santos A", IsActive: true},
		{ID: "bra-santos-b", SportID: memory.SportIDFootball, LeagueID: "bra-serie-a", Name: "FC Santos B", IsActive: true},
	})
	mappingRepo := memory.NewMappingRepository(nil)

	svc := NewResolutionService(sportRepo, teamRepo, mappingRepo, nil, ResolutionConfig{
		Providers: testProviderSet(),
	}, nil)

	_, err := svc.Resolve(t.Context(), ResolveInput{
		Provider: "oddsprime",
		RawName:  "FC Santos",
		SportID:  memory.SportIDFootball,
		LeagueID: "bra-serie-a",
	})
	if !errors.Is(err, ErrAmbiguousMatch) {
		t.Fatalf("expected ErrAmbiguousMatch, got %v", err)
	}
}

func TestResolutionService_Resolve_SkipsInactiveTeams(t *testing.T) {
	sportRepo := memory.NewSportRepository(memory.SeedSports())
	teamRepo := memory.NewTeamRepository([]team.Team{
		{ID: "eng-old", SportID: memory.SportIDFootball, LeagueID: memory.LeagueIDPremierLeague, Name: "Wanderers", IsActive: false},
	})
	mappingRepo := memory.NewMappingRepository(nil)

	svc := NewResolutionService(sportRepo, teamRepo, mappingRepo, nil, ResolutionConfig{
		Providers: testProviderSet(),
	}, nil)

	_, err := svc.Resolve(t.Context(), ResolveInput{
		Provider: "oddsprime",
		RawName:  "Wanderers",
		SportID:  memory.SportIDFootball,
		LeagueID: memory.LeagueIDPremierLeague,
	})
	if !errors.Is(err, ErrNoMatchFound) {
		t.Fatalf("expected ErrNoMatchFound for inactive-only pool, got %v", err)
	}
}
