package postgres

import (
	"context"
	"fmt"

	"github.com/dzoothis/oddsfeed/internal/domain/team"
	qb "github.com/dzoothis/oddsfeed/internal/platform/querybuilder"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

type teamTableModel struct {
	ID       string         `db:"id"`
	SportID  int64          `db:"sport_id"`
	LeagueID string         `db:"league_id"`
	Name     string         `db:"name"`
	Aliases  pq.StringArray `db:"aliases"`
	IsActive bool           `db:"is_active"`
}

func teamFromTableModel(row teamTableModel) team.Team {
	return team.Team{
		ID:       row.ID,
		SportID:  row.SportID,
		LeagueID: row.LeagueID,
		Name:     row.Name,
		Aliases:  append([]string(nil), row.Aliases...),
		IsActive: row.IsActive,
	}
}

type TeamRepository struct {
	db *sqlx.DB
}

func NewTeamRepository(db *sqlx.DB) *TeamRepository {
	return &TeamRepository{db: db}
}

func (r *TeamRepository) ListBySport(ctx context.Context, sportID int64) ([]team.Team, error) {
	return r.list(ctx, qb.Eq("sport_id", sportID))
}

func (r *TeamRepository) ListByLeague(ctx context.Context, sportID int64, leagueID string) ([]team.Team, error) {
	return r.list(ctx, qb.Eq("sport_id", sportID), qb.Eq("league_id", leagueID))
}

func (r *TeamRepository) list(ctx context.Context, conditions ...qb.Condition) ([]team.Team, error) {
	query, args, err := qb.Select("*").From("teams").
		Where(conditions...).
		OrderBy("id").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build select teams query: %w", err)
	}

	var rows []teamTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("select teams: %w", err)
	}

	out := make([]team.Team, 0, len(rows))
	for _, row := range rows {
		out = append(out, teamFromTableModel(row))
	}
	return out, nil
}

func (r *TeamRepository) GetByID(ctx context.Context, teamID string) (team.Team, bool, error) {
	query, args, err := qb.Select("*").From("teams").
		Where(qb.Eq("id", teamID)).
		ToSQL()
	if err != nil {
		return team.Team{}, false, fmt.Errorf("build select team query: %w", err)
	}

	var row teamTableModel
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if isNotFound(err) {
			return team.Team{}, false, nil
		}
		return team.Team{}, false, fmt.Errorf("select team by id: %w", err)
	}
	return teamFromTableModel(row), true, nil
}

func (r *TeamRepository) Upsert(ctx context.Context, item team.Team) error {
	query, args, err := qb.InsertInto("teams").
		Columns("id", "sport_id", "league_id", "name", "aliases", "is_active").
		Values(item.ID, item.SportID, item.LeagueID, item.Name, pq.StringArray(item.Aliases), item.IsActive).
		Suffix("ON CONFLICT (id) DO UPDATE SET league_id = EXCLUDED.league_id, name = EXCLUDED.name, aliases = EXCLUDED.aliases, is_active = EXCLUDED.is_active").
		ToSQL()
	if err != nil {
		return fmt.Errorf("build upsert team query: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert team %s: %w", item.ID, err)
	}
	return nil
}
