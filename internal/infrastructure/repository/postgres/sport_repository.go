package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/dzoothis/oddsfeed/internal/domain/sport"
	qb "github.com/dzoothis/oddsfeed/internal/platform/querybuilder"
	"github.com/jmoiron/sqlx"
)

type sportTableModel struct {
	ID              int64  `db:"id"`
	Name            string `db:"name"`
	TypicalDuration int64  `db:"typical_duration_seconds"`
}

type SportRepository struct {
	db *sqlx.DB
}

func NewSportRepository(db *sqlx.DB) *SportRepository {
	return &SportRepository{db: db}
}

func (r *SportRepository) List(ctx context.Context) ([]sport.Sport, error) {
	query, args, err := qb.Select("*").From("sports").OrderBy("id").ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build select sports query: %w", err)
	}

	var rows []sportTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("select sports: %w", err)
	}

	out := make([]sport.Sport, 0, len(rows))
	for _, row := range rows {
		out = append(out, sport.Sport{
			ID:              row.ID,
			Name:            row.Name,
			TypicalDuration: time.Duration(row.TypicalDuration) * time.Second,
		})
	}
	return out, nil
}

func (r *SportRepository) GetByID(ctx context.Context, sportID int64) (sport.Sport, bool, error) {
	query, args, err := qb.Select("*").From("sports").
		Where(qb.Eq("id", sportID)).
		ToSQL()
	if err != nil {
		return sport.Sport{}, false, fmt.Errorf("build select sport query: %w", err)
	}

	var row sportTableModel
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if isNotFound(err) {
			return sport.Sport{}, false, nil
		}
		return sport.Sport{}, false, fmt.Errorf("select sport by id: %w", err)
	}

	return sport.Sport{
		ID:              row.ID,
		Name:            row.Name,
		TypicalDuration: time.Duration(row.TypicalDuration) * time.Second,
	}, true, nil
}
