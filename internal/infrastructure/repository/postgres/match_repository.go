package postgres

import (
	"context"
	"fmt"

	"github.com/dzoothis/oddsfeed/internal/domain/match"
	qb "github.com/dzoothis/oddsfeed/internal/platform/querybuilder"
	"github.com/jmoiron/sqlx"
)

type MatchRepository struct {
	db *sqlx.DB
}

func NewMatchRepository(db *sqlx.DB) *MatchRepository {
	return &MatchRepository{db: db}
}

func (r *MatchRepository) List(ctx context.Context, filter match.Filter) ([]match.Match, error) {
	builder := qb.Select("*").From("matches")
	if filter.SportID > 0 {
		builder = builder.Where(qb.Eq("sport_id", filter.SportID))
	}
	if filter.LeagueID != "" {
		builder = builder.Where(qb.Eq("league_id", filter.LeagueID))
	}
	if len(filter.Statuses) > 0 {
		values := make([]any, 0, len(filter.Statuses))
		for _, status := range filter.Statuses {
			values = append(values, status)
		}
		builder = builder.Where(qb.In("status", values))
	}
	if !filter.UpdatedBefore.IsZero() {
		builder = builder.Where(qb.Lt("updated_at", filter.UpdatedBefore.UTC()))
	}

	query, args, err := builder.OrderBy("scheduled_at", "id").ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build select matches query: %w", err)
	}

	var rows []matchTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("select matches: %w", err)
	}

	out := make([]match.Match, 0, len(rows))
	for _, row := range rows {
		item, err := matchFromTableModel(row)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, nil
}

func (r *MatchRepository) GetByID(ctx context.Context, matchID string) (match.Match, bool, error) {
	query, args, err := qb.Select("*").From("matches").
		Where(qb.Eq("id", matchID)).
		ToSQL()
	if err != nil {
		return match.Match{}, false, fmt.Errorf("build select match query: %w", err)
	}

	var row matchTableModel
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if isNotFound(err) {
			return match.Match{}, false, nil
		}
		return match.Match{}, false, fmt.Errorf("select match by id: %w", err)
	}

	item, err := matchFromTableModel(row)
	if err != nil {
		return match.Match{}, false, err
	}
	return item, true, nil
}

func (r *MatchRepository) GetByJoinKey(ctx context.Context, sportID int64, joinKey string) (match.Match, bool, error) {
	query, args, err := qb.Select("*").From("matches").
		Where(
			qb.Eq("sport_id", sportID),
			qb.Eq("join_key", joinKey),
		).
		ToSQL()
	if err != nil {
		return match.Match{}, false, fmt.Errorf("build select match by join key query: %w", err)
	}

	var row matchTableModel
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if isNotFound(err) {
			return match.Match{}, false, nil
		}
		return match.Match{}, false, fmt.Errorf("select match by join key: %w", err)
	}

	item, err := matchFromTableModel(row)
	if err != nil {
		return match.Match{}, false, err
	}
	return item, true, nil
}

func (r *MatchRepository) Insert(ctx context.Context, item match.Match) error {
	row, err := matchToTableModel(item)
	if err != nil {
		return err
	}

	query, args, err := qb.InsertInto("matches").
		Columns(
			"id", "sport_id", "league_id",
			"home_team_id", "away_team_id", "home_team_name", "away_team_name",
			"scheduled_at", "status", "available_for_betting",
			"home_score", "away_score", "markets", "providers",
			"join_key", "version", "updated_at",
		).
		Values(
			row.ID, row.SportID, row.LeagueID,
			row.HomeTeamID, row.AwayTeamID, row.HomeTeamName, row.AwayTeamName,
			row.ScheduledAt, row.Status, row.AvailableForBetting,
			row.HomeScore, row.AwayScore, row.Markets, row.Providers,
			row.JoinKey, row.Version, row.UpdatedAt,
		).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build insert match query: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("match join_key=%s already exists: %w", item.JoinKey, err)
		}
		return fmt.Errorf("insert match: %w", err)
	}
	return nil
}

// Update writes the row only while the caller's version is still current,
// bumping version in the same statement. Zero rows affected on an existing
// match means another writer got there first.
func (r *MatchRepository) Update(ctx context.Context, item match.Match) error {
	row, err := matchToTableModel(item)
	if err != nil {
		return err
	}

	query, args, err := qb.Update("matches").
		Set("league_id", row.LeagueID).
		Set("home_team_id", row.HomeTeamID).
		Set("away_team_id", row.AwayTeamID).
		Set("home_team_name", row.HomeTeamName).
		Set("away_team_name", row.AwayTeamName).
		Set("scheduled_at", row.ScheduledAt).
		Set("status", row.Status).
		Set("available_for_betting", row.AvailableForBetting).
		Set("home_score", row.HomeScore).
		Set("away_score", row.AwayScore).
		Set("markets", row.Markets).
		Set("providers", row.Providers).
		Set("updated_at", row.UpdatedAt).
		SetExpr("version", "version + 1").
		Where(
			qb.Eq("id", row.ID),
			qb.Eq("version", row.Version),
		).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build update match query: %w", err)
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update match: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update match rows affected: %w", err)
	}
	if affected > 0 {
		return nil
	}

	if _, found, err := r.GetByID(ctx, item.ID); err != nil {
		return err
	} else if !found {
		return fmt.Errorf("match %s does not exist", item.ID)
	}
	return match.ErrVersionConflict
}
