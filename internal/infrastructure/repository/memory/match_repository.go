package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/dzoothis/oddsfeed/internal/domain/match"
)

type MatchRepository struct {
	mu        sync.RWMutex
	items     map[string]match.Match
	byJoinKey map[string]string
	orders    []string
}

func NewMatchRepository() *MatchRepository {
	return &MatchRepository{
		items:     make(map[string]match.Match),
		byJoinKey: make(map[string]string),
	}
}

func (r *MatchRepository) List(_ context.Context, filter match.Filter) ([]match.Match, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]match.Match, 0, len(r.orders))
	for _, id := range r.orders {
		m := r.items[id]
		if !matchesFilter(m, filter) {
			continue
		}
		out = append(out, m)
	}

	return out, nil
}

func (r *MatchRepository) GetByID(_ context.Context, matchID string) (match.Match, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.items[matchID]
	if !ok {
		return match.Match{}, false, nil
	}

	return m, true, nil
}

func (r *MatchRepository) GetByJoinKey(_ context.Context, sportID int64, joinKey string) (match.Match, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byJoinKey[joinKeyIndex(sportID, joinKey)]
	if !ok {
		return match.Match{}, false, nil
	}

	return r.items[id], true, nil
}

func (r *MatchRepository) Insert(_ context.Context, item match.Match) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[item.ID]; exists {
		return fmt.Errorf("match %s already exists", item.ID)
	}
	index := joinKeyIndex(item.SportID, item.JoinKey)
	if _, exists := r.byJoinKey[index]; exists {
		return fmt.Errorf("match join key %s already exists", item.JoinKey)
	}

	r.items[item.ID] = item
	r.byJoinKey[index] = item.ID
	r.orders = append(r.orders, item.ID)

	return nil
}

func (r *MatchRepository) Update(_ context.Context, item match.Match) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.items[item.ID]
	if !ok {
		return fmt.Errorf("match %s does not exist", item.ID)
	}
	if current.Version != item.Version {
		return match.ErrVersionConflict
	}

	item.Version++
	r.items[item.ID] = item

	return nil
}

func matchesFilter(m match.Match, filter match.Filter) bool {
	if filter.SportID > 0 && m.SportID != filter.SportID {
		return false
	}
	if filter.LeagueID != "" && m.LeagueID != filter.LeagueID {
		return false
	}
	if !filter.UpdatedBefore.IsZero() && !m.UpdatedAt.Before(filter.UpdatedBefore) {
		return false
	}
	if len(filter.Statuses) > 0 {
		found := false
		for _, status := range filter.Statuses {
			if m.Status == status {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func joinKeyIndex(sportID int64, joinKey string) string {
	return fmt.Sprintf("%d:%s", sportID, joinKey)
}

// AuditRepository keeps transition history per match, append order preserved.
type AuditRepository struct {
	mu      sync.RWMutex
	byMatch map[string][]match.AuditEntry
}

func NewAuditRepository() *AuditRepository {
	return &AuditRepository{
		byMatch: make(map[string][]match.AuditEntry),
	}
}

func (r *AuditRepository) Append(_ context.Context, entry match.AuditEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.byMatch[entry.MatchID] = append(r.byMatch[entry.MatchID], entry)
	return nil
}

func (r *AuditRepository) ListByMatch(_ context.Context, matchID string) ([]match.AuditEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := r.byMatch[matchID]
	out := make([]match.AuditEntry, len(entries))
	copy(out, entries)

	return out, nil
}
