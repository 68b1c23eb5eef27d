package match

import (
	"context"
	"errors"
	"time"
)

// ErrVersionConflict reports an optimistic-write collision: the row changed
// between the caller's read and write. Callers re-read and re-decide.
var ErrVersionConflict = errors.New("match version conflict")

// Filter narrows List reads. Zero values are ignored.
type Filter struct {
	SportID       int64
	LeagueID      string
	Statuses      []string
	UpdatedBefore time.Time
}

// Repository persists canonical matches. Update must compare-and-swap on
// Version, storing Version+1 on success, so a transition decision and its
// timestamp commit atomically.
type Repository interface {
	List(ctx context.Context, filter Filter) ([]Match, error)
	GetByID(ctx context.Context, matchID string) (Match, bool, error)
	GetByJoinKey(ctx context.Context, sportID int64, joinKey string) (Match, bool, error)
	Insert(ctx context.Context, item Match) error
	Update(ctx context.Context, item Match) error
}

// AuditEntry records every status transition with its provenance, manual
// overrides included.
type AuditEntry struct {
	MatchID    string
	FromStatus string
	ToStatus   string
	Source     string
	Reason     string
	OccurredAt time.Time
}

type AuditRepository interface {
	Append(ctx context.Context, entry AuditEntry) error
	ListByMatch(ctx context.Context, matchID string) ([]AuditEntry, error)
}
