package sport

import "context"

// Repository exposes sport read operations.
type Repository interface {
	List(ctx context.Context) ([]Sport, error)
	GetByID(ctx context.Context, sportID int64) (Sport, bool, error)
}
