package usecase

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/dzoothis/oddsfeed/internal/domain/league"
	"github.com/dzoothis/oddsfeed/internal/domain/match"
	"github.com/dzoothis/oddsfeed/internal/domain/sport"
	"github.com/dzoothis/oddsfeed/internal/platform/cache"
	"github.com/dzoothis/oddsfeed/internal/platform/logging"
)

// MatchQueryService serves the read API. List responses are cached briefly;
// every write path clears the match prefix, so readers see fresh data at the
// latest one cycle behind.
type MatchQueryService struct {
	matches match.Repository
	sports  sport.Repository
	leagues league.Repository
	store   *cache.Store
	logger  *logging.Logger
}

func NewMatchQueryService(
	matches match.Repository,
	sports sport.Repository,
	leagues league.Repository,
	store *cache.Store,
	logger *logging.Logger,
) *MatchQueryService {
	if logger == nil {
		logger = logging.Default()
	}
	return &MatchQueryService{
		matches: matches,
		sports:  sports,
		leagues: leagues,
		store:   store,
		logger:  logger,
	}
}

type MatchListInput struct {
	SportID  int64
	LeagueID string
	Statuses []string
}

func (s *MatchQueryService) ListMatches(ctx context.Context, input MatchListInput) ([]match.Match, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.MatchQueryService.ListMatches")
	defer span.End()

	statuses := make([]string, 0, len(input.Statuses))
	for _, status := range input.Statuses {
		status = strings.ToLower(strings.TrimSpace(status))
		if status == "" {
			continue
		}
		if !match.IsValidStatus(status) {
			return nil, fmt.Errorf("%w: status %q is not valid", ErrInvalidInput, status)
		}
		statuses = append(statuses, status)
	}

	load := func(ctx context.Context) (any, error) {
		items, err := s.matches.List(ctx, match.Filter{
			SportID:  input.SportID,
			LeagueID: input.LeagueID,
			Statuses: statuses,
		})
		if err != nil {
			return nil, fmt.Errorf("list matches: %w", err)
		}
		sort.SliceStable(items, func(i, j int) bool {
			return items[i].ScheduledAt.Before(items[j].ScheduledAt)
		})
		return items, nil
	}

	if s.store == nil {
		out, err := load(ctx)
		if err != nil {
			return nil, err
		}
		return out.([]match.Match), nil
	}

	key := fmt.Sprintf("%slist:%d:%s:%s", matchCachePrefix, input.SportID, input.LeagueID, strings.Join(statuses, ","))
	out, err := s.store.GetOrLoad(ctx, key, load)
	if err != nil {
		return nil, err
	}
	items, ok := out.([]match.Match)
	if !ok {
		return nil, fmt.Errorf("unexpected cache payload type %T", out)
	}
	return items, nil
}

func (s *MatchQueryService) GetMatch(ctx context.Context, matchID string) (match.Match, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.MatchQueryService.GetMatch")
	defer span.End()

	if matchID == "" {
		return match.Match{}, fmt.Errorf("%w: match id is required", ErrInvalidInput)
	}
	item, found, err := s.matches.GetByID(ctx, matchID)
	if err != nil {
		return match.Match{}, fmt.Errorf("read match: %w", err)
	}
	if !found {
		return match.Match{}, fmt.Errorf("%w: match %s", ErrNotFound, matchID)
	}
	return item, nil
}

func (s *MatchQueryService) ListSports(ctx context.Context) ([]sport.Sport, error) {
	items, err := s.sports.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list sports: %w", err)
	}
	return items, nil
}

func (s *MatchQueryService) ListLeagues(ctx context.Context) ([]league.League, error) {
	items, err := s.leagues.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list leagues: %w", err)
	}
	return items, nil
}
