package memory

import (
	"context"
	"sync"

	"github.com/dzoothis/oddsfeed/internal/domain/sport"
)

type SportRepository struct {
	mu     sync.RWMutex
	items  map[int64]sport.Sport
	orders []int64
}

func NewSportRepository(sports []sport.Sport) *SportRepository {
	items := make(map[int64]sport.Sport, len(sports))
	orders := make([]int64, 0, len(sports))

	for _, s := range sports {
		items[s.ID] = s
		orders = append(orders, s.ID)
	}

	return &SportRepository{
		items:  items,
		orders: orders,
	}
}

func (r *SportRepository) List(_ context.Context) ([]sport.Sport, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]sport.Sport, 0, len(r.orders))
	for _, id := range r.orders {
		out = append(out, r.items[id])
	}

	return out, nil
}

func (r *SportRepository) GetByID(_ context.Context, sportID int64) (sport.Sport, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.items[sportID]
	if !ok {
		return sport.Sport{}, false, nil
	}

	return s, true, nil
}
