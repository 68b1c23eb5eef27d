package memory

import (
	"context"
	"strings"
	"sync"

	"github.com/dzoothis/oddsfeed/internal/domain/team"
	"github.com/dzoothis/oddsfeed/internal/platform/textnorm"
)

type TeamRepository struct {
	mu     sync.RWMutex
	items  map[string]team.Team
	orders []string
}

func NewTeamRepository(teams []team.Team) *TeamRepository {
	items := make(map[string]team.Team, len(teams))
	orders := make([]string, 0, len(teams))

	for _, t := range teams {
		items[t.ID] = t
		orders = append(orders, t.ID)
	}

	return &TeamRepository{
		items:  items,
		orders: orders,
	}
}

func (r *TeamRepository) ListBySport(_ context.Context, sportID int64) ([]team.Team, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]team.Team, 0, len(r.orders))
	for _, id := range r.orders {
		t := r.items[id]
		if t.SportID != sportID {
			continue
		}
		out = append(out, t)
	}

	return out, nil
}

func (r *TeamRepository) ListByLeague(_ context.Context, sportID int64, leagueID string) ([]team.Team, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]team.Team, 0, len(r.orders))
	for _, id := range r.orders {
		t := r.items[id]
		if t.SportID != sportID || t.LeagueID != leagueID {
			continue
		}
		out = append(out, t)
	}

	return out, nil
}

func (r *TeamRepository) GetByID(_ context.Context, teamID string) (team.Team, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.items[teamID]
	if !ok {
		return team.Team{}, false, nil
	}

	return t, true, nil
}

func (r *TeamRepository) Upsert(_ context.Context, item team.Team) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[item.ID]; !exists {
		r.orders = append(r.orders, item.ID)
	}
	r.items[item.ID] = item

	return nil
}

// MappingRepository indexes provider edges two ways: by provider team id and
// by normalized provider name, mirroring the two lookup tiers resolution uses.
type MappingRepository struct {
	mu     sync.RWMutex
	byID   map[string]team.ProviderMapping
	byName map[string]team.ProviderMapping
}

func NewMappingRepository(mappings []team.ProviderMapping) *MappingRepository {
	r := &MappingRepository{
		byID:   make(map[string]team.ProviderMapping, len(mappings)),
		byName: make(map[string]team.ProviderMapping, len(mappings)),
	}
	for _, m := range mappings {
		r.store(m)
	}
	return r
}

func (r *MappingRepository) GetByProviderTeamID(_ context.Context, provider, providerTeamID string) (team.ProviderMapping, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.byID[mappingIDKey(provider, providerTeamID)]
	if !ok {
		return team.ProviderMapping{}, false, nil
	}

	return m, true, nil
}

func (r *MappingRepository) GetByProviderName(_ context.Context, provider, normalizedName string) (team.ProviderMapping, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.byName[mappingNameKey(provider, normalizedName)]
	if !ok {
		return team.ProviderMapping{}, false, nil
	}

	return m, true, nil
}

func (r *MappingRepository) GetPrimaryByTeam(_ context.Context, teamID, provider string) (team.ProviderMapping, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	provider = strings.ToLower(provider)
	for _, index := range []map[string]team.ProviderMapping{r.byID, r.byName} {
		for _, m := range index {
			if m.IsPrimary && m.TeamID == teamID && strings.ToLower(m.Provider) == provider {
				return m, true, nil
			}
		}
	}
	return team.ProviderMapping{}, false, nil
}

func (r *MappingRepository) Upsert(_ context.Context, item team.ProviderMapping) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.store(item)
	return nil
}

func (r *MappingRepository) store(item team.ProviderMapping) {
	if item.ProviderTeamID != "" {
		r.byID[mappingIDKey(item.Provider, item.ProviderTeamID)] = item
	}
	if item.ProviderName != "" {
		r.byName[mappingNameKey(item.Provider, item.ProviderName)] = item
	}
}

func mappingIDKey(provider, providerTeamID string) string {
	return strings.ToLower(provider) + ":" + providerTeamID
}

func mappingNameKey(provider, providerName string) string {
	return strings.ToLower(provider) + ":" + textnorm.Key(providerName)
}
