package postgres

import (
	"context"
	"fmt"

	"github.com/dzoothis/oddsfeed/internal/domain/league"
	qb "github.com/dzoothis/oddsfeed/internal/platform/querybuilder"
	"github.com/jmoiron/sqlx"
)

type leagueTableModel struct {
	ID       string `db:"id"`
	SportID  int64  `db:"sport_id"`
	Name     string `db:"name"`
	Coverage string `db:"coverage"`
}

type LeagueRepository struct {
	db *sqlx.DB
}

func NewLeagueRepository(db *sqlx.DB) *LeagueRepository {
	return &LeagueRepository{db: db}
}

func (r *LeagueRepository) List(ctx context.Context) ([]league.League, error) {
	query, args, err := qb.Select("*").From("leagues").OrderBy("id").ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build select leagues query: %w", err)
	}

	var rows []leagueTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("select leagues: %w", err)
	}

	out := make([]league.League, 0, len(rows))
	for _, row := range rows {
		out = append(out, league.League{
			ID:       row.ID,
			SportID:  row.SportID,
			Name:     row.Name,
			Coverage: league.NormalizeCoverage(row.Coverage),
		})
	}
	return out, nil
}

func (r *LeagueRepository) GetByID(ctx context.Context, leagueID string) (league.League, bool, error) {
	query, args, err := qb.Select("*").From("leagues").
		Where(qb.Eq("id", leagueID)).
		ToSQL()
	if err != nil {
		return league.League{}, false, fmt.Errorf("build select league query: %w", err)
	}

	var row leagueTableModel
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if isNotFound(err) {
			return league.League{}, false, nil
		}
		return league.League{}, false, fmt.Errorf("select league by id: %w", err)
	}

	return league.League{
		ID:       row.ID,
		SportID:  row.SportID,
		Name:     row.Name,
		Coverage: league.NormalizeCoverage(row.Coverage),
	}, true, nil
}
