package team

import "context"

// Repository exposes canonical team reads and creation.
type Repository interface {
	ListBySport(ctx context.Context, sportID int64) ([]Team, error)
	ListByLeague(ctx context.Context, sportID int64, leagueID string) ([]Team, error)
	GetByID(ctx context.Context, teamID string) (Team, bool, error)
	Upsert(ctx context.Context, item Team) error
}

// MappingRepository stores provider-to-team edges. Upserts only; mapping
// history is never hard-deleted.
type MappingRepository interface {
	GetByProviderTeamID(ctx context.Context, provider, providerTeamID string) (ProviderMapping, bool, error)
	GetByProviderName(ctx context.Context, provider, normalizedName string) (ProviderMapping, bool, error)
	// GetPrimaryByTeam returns the team's primary edge for the provider, if
	// one exists. At most one edge per (team, provider) may be primary.
	GetPrimaryByTeam(ctx context.Context, teamID, provider string) (ProviderMapping, bool, error)
	Upsert(ctx context.Context, item ProviderMapping) error
}
