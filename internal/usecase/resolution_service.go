package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dzoothis/oddsfeed/internal/domain/feed"
	"github.com/dzoothis/oddsfeed/internal/domain/sport"
	"github.com/dzoothis/oddsfeed/internal/domain/team"
	"github.com/dzoothis/oddsfeed/internal/platform/cache"
	"github.com/dzoothis/oddsfeed/internal/platform/logging"
	"github.com/dzoothis/oddsfeed/internal/platform/textnorm"
)

// Resolution sources, recorded for audit and cache diagnostics.
const (
	ResolutionSourceCache      = "cache"
	ResolutionSourceProviderID = "provider_id"
	ResolutionSourceExactName  = "exact_name"
	ResolutionSourceFuzzy      = "fuzzy"
)

type ResolutionConfig struct {
	Providers        feed.ProviderSet
	AcceptThreshold  float64
	FloorThreshold   float64
	AmbiguityEpsilon float64
	CacheTTL         time.Duration
}

type ResolveInput struct {
	Provider       string
	RawName        string
	ProviderTeamID string
	SportID        int64
	LeagueID       string
}

type Resolution struct {
	TeamID     string
	Confidence float64
	Source     string
}

// ResolutionService maps a provider team reference to a canonical team with
// a confidence score. Lookup order: cache, exact provider id mapping, exact
// normalized-name mapping, fuzzy candidate scan. A wrong low-confidence
// merge is worse than a visible gap, so fuzzy resolution refuses to guess
// below its thresholds or between near-tied candidates.
type ResolutionService struct {
	sportRepo   sport.Repository
	teamRepo    team.Repository
	mappingRepo team.MappingRepository
	cache       *cache.Store
	cfg         ResolutionConfig
	logger      *logging.Logger
	now         func() time.Time
}

func NewResolutionService(
	sportRepo sport.Repository,
	teamRepo team.Repository,
	mappingRepo team.MappingRepository,
	store *cache.Store,
	cfg ResolutionConfig,
	logger *logging.Logger,
) *ResolutionService {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.AcceptThreshold <= 0 || cfg.AcceptThreshold > 1 {
		cfg.AcceptThreshold = 0.80
	}
	if cfg.FloorThreshold <= 0 || cfg.FloorThreshold > cfg.AcceptThreshold {
		cfg.FloorThreshold = 0.55
	}
	if cfg.AmbiguityEpsilon <= 0 {
		cfg.AmbiguityEpsilon = 0.03
	}
	if cfg.CacheTTL <= 0 {
		// Mappings evolve between cycles; cache entries stay minute-scale.
		cfg.CacheTTL = 5 * time.Minute
	}

	return &ResolutionService{
		sportRepo:   sportRepo,
		teamRepo:    teamRepo,
		mappingRepo: mappingRepo,
		cache:       store,
		cfg:         cfg,
		logger:      logger,
		now:         time.Now,
	}
}

func (s *ResolutionService) Resolve(ctx context.Context, input ResolveInput) (Resolution, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.ResolutionService.Resolve")
	defer span.End()

	input.Provider = strings.ToLower(strings.TrimSpace(input.Provider))
	input.RawName = strings.TrimSpace(input.RawName)
	input.ProviderTeamID = strings.TrimSpace(input.ProviderTeamID)

	if err := s.validateInput(ctx, input); err != nil {
		return Resolution{}, err
	}

	cacheKey := resolutionCacheKey(input)
	if s.cache != nil {
		if cached, ok := s.cache.Get(ctx, cacheKey); ok {
			if resolution, ok := cached.(Resolution); ok {
				resolution.Source = ResolutionSourceCache
				return resolution, nil
			}
		}
	}

	resolution, err := s.resolveUncached(ctx, input)
	if err != nil {
		return Resolution{}, err
	}

	if s.cache != nil {
		s.cache.SetTTL(ctx, cacheKey, resolution, s.cfg.CacheTTL)
	}
	return resolution, nil
}

func (s *ResolutionService) validateInput(ctx context.Context, input ResolveInput) error {
	if !s.cfg.Providers.Contains(input.Provider) {
		return fmt.Errorf("%w: provider %q is not on the allow-list", ErrInvalidInput, input.Provider)
	}
	if input.RawName == "" {
		return fmt.Errorf("%w: team name is required", ErrInvalidInput)
	}
	if input.SportID <= 0 {
		return fmt.Errorf("%w: sport id must be greater than zero", ErrInvalidInput)
	}

	_, exists, err := s.sportRepo.GetByID(ctx, input.SportID)
	if err != nil {
		return fmt.Errorf("get sport id=%d: %w", input.SportID, err)
	}
	if !exists {
		return fmt.Errorf("%w: unknown sport id=%d", ErrInvalidInput, input.SportID)
	}

	return nil
}

func (s *ResolutionService) resolveUncached(ctx context.Context, input ResolveInput) (Resolution, error) {
	if input.ProviderTeamID != "" {
		mapping, exists, err := s.mappingRepo.GetByProviderTeamID(ctx, input.Provider, input.ProviderTeamID)
		if err != nil {
			return Resolution{}, fmt.Errorf("get mapping provider=%s provider_team_id=%s: %w", input.Provider, input.ProviderTeamID, err)
		}
		if exists {
			// Seeing the provider's own id again is the strongest possible
			// evidence; revise stored confidence upward, never downward.
			if mapping.Confidence < 1.0 {
				mapping.Confidence = 1.0
				mapping.UpdatedAt = s.now().UTC()
				if err := s.mappingRepo.Upsert(ctx, mapping); err != nil {
					s.logger.WarnContext(ctx, "upgrade mapping confidence failed",
						"provider", input.Provider,
						"provider_team_id", input.ProviderTeamID,
						"error", err,
					)
				}
			}
			return Resolution{
				TeamID:     mapping.TeamID,
				Confidence: 1.0,
				Source:     ResolutionSourceProviderID,
			}, nil
		}
	}

	normalizedName := textnorm.Key(input.RawName)
	mapping, exists, err := s.mappingRepo.GetByProviderName(ctx, input.Provider, normalizedName)
	if err != nil {
		return Resolution{}, fmt.Errorf("get mapping provider=%s name=%s: %w", input.Provider, normalizedName, err)
	}
	if exists {
		return Resolution{
			TeamID:     mapping.TeamID,
			Confidence: mapping.Confidence,
			Source:     ResolutionSourceExactName,
		}, nil
	}

	return s.resolveFuzzy(ctx, input, normalizedName)
}

func (s *ResolutionService) resolveFuzzy(ctx context.Context, input ResolveInput, normalizedName string) (Resolution, error) {
	candidates, err := s.listCandidates(ctx, input)
	if err != nil {
		return Resolution{}, err
	}

	var best, second team.Team
	bestScore, secondScore := -1.0, -1.0
	for _, candidate := range candidates {
		if !candidate.IsActive {
			continue
		}
		score := scoreCandidate(input.RawName, candidate)
		// Ties break on team id so repeated runs pick the same candidate.
		if score > bestScore || (score == bestScore && candidate.ID < best.ID) {
			second, secondScore = best, bestScore
			best, bestScore = candidate, score
			continue
		}
		if score > secondScore {
			second, secondScore = candidate, score
		}
	}

	if bestScore < s.cfg.AcceptThreshold {
		if bestScore >= s.cfg.FloorThreshold {
			s.logger.InfoContext(ctx, "fuzzy resolution near miss",
				"provider", input.Provider,
				"raw_name", input.RawName,
				"candidate_team_id", best.ID,
				"score", bestScore,
			)
		}
		return Resolution{}, fmt.Errorf("%w: provider=%s name=%q best_score=%.3f", ErrNoMatchFound, input.Provider, input.RawName, maxFloat(bestScore, 0))
	}

	if secondScore >= s.cfg.AcceptThreshold && bestScore-secondScore < s.cfg.AmbiguityEpsilon {
		return Resolution{}, fmt.Errorf(
			"%w: provider=%s name=%q candidates=%s,%s scores=%.3f,%.3f",
			ErrAmbiguousMatch, input.Provider, input.RawName, best.ID, second.ID, bestScore, secondScore,
		)
	}

	isPrimary := input.ProviderTeamID != ""
	if isPrimary {
		// The team may already hold a primary edge for this provider under
		// another provider id; a second id stores as a non-primary alias
		// rather than contending for the primary slot.
		existing, found, err := s.mappingRepo.GetPrimaryByTeam(ctx, best.ID, input.Provider)
		if err != nil {
			return Resolution{}, fmt.Errorf("get primary mapping team=%s provider=%s: %w", best.ID, input.Provider, err)
		}
		if found && existing.ProviderTeamID != input.ProviderTeamID {
			isPrimary = false
		}
	}

	now := s.now().UTC()
	mapping := team.ProviderMapping{
		TeamID:         best.ID,
		Provider:       input.Provider,
		ProviderTeamID: input.ProviderTeamID,
		ProviderName:   normalizedName,
		Confidence:     bestScore,
		IsPrimary:      isPrimary,
		UpdatedAt:      now,
	}
	if err := mapping.Validate(); err != nil {
		return Resolution{}, fmt.Errorf("validate new mapping team=%s: %w", best.ID, err)
	}
	if err := s.mappingRepo.Upsert(ctx, mapping); err != nil {
		return Resolution{}, fmt.Errorf("upsert mapping team=%s provider=%s: %w", best.ID, input.Provider, err)
	}

	return Resolution{
		TeamID:     best.ID,
		Confidence: bestScore,
		Source:     ResolutionSourceFuzzy,
	}, nil
}

func (s *ResolutionService) listCandidates(ctx context.Context, input ResolveInput) ([]team.Team, error) {
	if input.LeagueID != "" {
		items, err := s.teamRepo.ListByLeague(ctx, input.SportID, input.LeagueID)
		if err != nil {
			return nil, fmt.Errorf("list teams sport=%d league=%s: %w", input.SportID, input.LeagueID, err)
		}
		if len(items) > 0 {
			return items, nil
		}
		// A league with no known teams still falls back to the sport-wide
		// candidate pool; new leagues appear mid-season.
	}

	items, err := s.teamRepo.ListBySport(ctx, input.SportID)
	if err != nil {
		return nil, fmt.Errorf("list teams sport=%d: %w", input.SportID, err)
	}
	return items, nil
}

// scoreCandidate takes the best similarity over the canonical name and all
// recorded aliases.
func scoreCandidate(rawName string, candidate team.Team) float64 {
	best := textnorm.Similarity(rawName, candidate.Name)
	for _, alias := range candidate.Aliases {
		if score := textnorm.Similarity(rawName, alias); score > best {
			best = score
		}
	}
	return best
}

func resolutionCacheKey(input ResolveInput) string {
	ref := input.ProviderTeamID
	if ref == "" {
		ref = textnorm.Key(input.RawName)
	}
	return fmt.Sprintf("resolution:%s:%s:%d:%s", input.Provider, ref, input.SportID, input.LeagueID)
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
