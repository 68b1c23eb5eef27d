package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dzoothis/oddsfeed/internal/domain/team"
	qb "github.com/dzoothis/oddsfeed/internal/platform/querybuilder"
	"github.com/dzoothis/oddsfeed/internal/platform/textnorm"
	"github.com/jmoiron/sqlx"
)

type mappingTableModel struct {
	ID             int64     `db:"id"`
	TeamID         string    `db:"team_id"`
	Provider       string    `db:"provider"`
	ProviderTeamID string    `db:"provider_team_id"`
	ProviderName   string    `db:"provider_name"`
	NormalizedName string    `db:"normalized_name"`
	Confidence     float64   `db:"confidence"`
	IsPrimary      bool      `db:"is_primary"`
	UpdatedAt      time.Time `db:"updated_at"`
}

func mappingFromTableModel(row mappingTableModel) team.ProviderMapping {
	return team.ProviderMapping{
		TeamID:         row.TeamID,
		Provider:       row.Provider,
		ProviderTeamID: row.ProviderTeamID,
		ProviderName:   row.ProviderName,
		Confidence:     row.Confidence,
		IsPrimary:      row.IsPrimary,
		UpdatedAt:      row.UpdatedAt.UTC(),
	}
}

type MappingRepository struct {
	db *sqlx.DB
}

func NewMappingRepository(db *sqlx.DB) *MappingRepository {
	return &MappingRepository{db: db}
}

func (r *MappingRepository) GetByProviderTeamID(ctx context.Context, provider, providerTeamID string) (team.ProviderMapping, bool, error) {
	if strings.TrimSpace(providerTeamID) == "" {
		return team.ProviderMapping{}, false, nil
	}
	return r.getOne(ctx,
		qb.Eq("provider", strings.ToLower(provider)),
		qb.Eq("provider_team_id", providerTeamID),
	)
}

func (r *MappingRepository) GetByProviderName(ctx context.Context, provider, normalizedName string) (team.ProviderMapping, bool, error) {
	if strings.TrimSpace(normalizedName) == "" {
		return team.ProviderMapping{}, false, nil
	}
	return r.getOne(ctx,
		qb.Eq("provider", strings.ToLower(provider)),
		qb.Eq("normalized_name", normalizedName),
	)
}

func (r *MappingRepository) GetPrimaryByTeam(ctx context.Context, teamID, provider string) (team.ProviderMapping, bool, error) {
	if strings.TrimSpace(teamID) == "" {
		return team.ProviderMapping{}, false, nil
	}
	return r.getOne(ctx,
		qb.Eq("team_id", teamID),
		qb.Eq("provider", strings.ToLower(provider)),
		qb.Eq("is_primary", true),
	)
}

func (r *MappingRepository) getOne(ctx context.Context, conditions ...qb.Condition) (team.ProviderMapping, bool, error) {
	query, args, err := qb.Select("*").From("team_provider_mappings").
		Where(conditions...).
		OrderBy("is_primary DESC", "confidence DESC", "id").
		Limit(1).
		ToSQL()
	if err != nil {
		return team.ProviderMapping{}, false, fmt.Errorf("build select mapping query: %w", err)
	}

	var row mappingTableModel
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if isNotFound(err) {
			return team.ProviderMapping{}, false, nil
		}
		return team.ProviderMapping{}, false, fmt.Errorf("select provider mapping: %w", err)
	}
	return mappingFromTableModel(row), true, nil
}

// Upsert updates the existing edge for the same provider reference or adds a
// new one. A provider reference is its team id when present, otherwise the
// normalized name.
func (r *MappingRepository) Upsert(ctx context.Context, item team.ProviderMapping) error {
	provider := strings.ToLower(item.Provider)
	normalizedName := textnorm.Key(item.ProviderName)
	updatedAt := item.UpdatedAt.UTC()
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}

	identity := qb.Eq("provider_team_id", item.ProviderTeamID)
	if strings.TrimSpace(item.ProviderTeamID) == "" {
		identity = qb.Eq("normalized_name", normalizedName)
	}

	query, args, err := qb.Update("team_provider_mappings").
		Set("team_id", item.TeamID).
		Set("provider_name", item.ProviderName).
		Set("normalized_name", normalizedName).
		Set("confidence", item.Confidence).
		Set("is_primary", item.IsPrimary).
		Set("updated_at", updatedAt).
		Where(qb.Eq("provider", provider), identity).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build update mapping query: %w", err)
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update provider mapping: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update provider mapping rows affected: %w", err)
	}
	if affected > 0 {
		return nil
	}

	query, args, err = qb.InsertInto("team_provider_mappings").
		Columns("team_id", "provider", "provider_team_id", "provider_name", "normalized_name", "confidence", "is_primary", "updated_at").
		Values(item.TeamID, provider, item.ProviderTeamID, item.ProviderName, normalizedName, item.Confidence, item.IsPrimary, updatedAt).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build insert mapping query: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			// Lost a race with a concurrent resolver writing the same edge.
			return nil
		}
		return fmt.Errorf("insert provider mapping: %w", err)
	}
	return nil
}
