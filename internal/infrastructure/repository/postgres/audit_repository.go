package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/dzoothis/oddsfeed/internal/domain/match"
	qb "github.com/dzoothis/oddsfeed/internal/platform/querybuilder"
	"github.com/jmoiron/sqlx"
)

type auditTableModel struct {
	ID         int64     `db:"id"`
	MatchID    string    `db:"match_id"`
	FromStatus string    `db:"from_status"`
	ToStatus   string    `db:"to_status"`
	Source     string    `db:"source"`
	Reason     string    `db:"reason"`
	OccurredAt time.Time `db:"occurred_at"`
}

type AuditRepository struct {
	db *sqlx.DB
}

func NewAuditRepository(db *sqlx.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

func (r *AuditRepository) Append(ctx context.Context, entry match.AuditEntry) error {
	query, args, err := qb.InsertInto("match_audits").
		Columns("match_id", "from_status", "to_status", "source", "reason", "occurred_at").
		Values(entry.MatchID, entry.FromStatus, entry.ToStatus, entry.Source, entry.Reason, entry.OccurredAt.UTC()).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build insert audit query: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

func (r *AuditRepository) ListByMatch(ctx context.Context, matchID string) ([]match.AuditEntry, error) {
	query, args, err := qb.Select("*").From("match_audits").
		Where(qb.Eq("match_id", matchID)).
		OrderBy("occurred_at", "id").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build select audits query: %w", err)
	}

	var rows []auditTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("select audits by match: %w", err)
	}

	out := make([]match.AuditEntry, 0, len(rows))
	for _, row := range rows {
		out = append(out, match.AuditEntry{
			MatchID:    row.MatchID,
			FromStatus: row.FromStatus,
			ToStatus:   row.ToStatus,
			Source:     row.Source,
			Reason:     row.Reason,
			OccurredAt: row.OccurredAt.UTC(),
		})
	}
	return out, nil
}
