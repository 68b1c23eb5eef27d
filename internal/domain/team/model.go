package team

import (
	"fmt"
	"time"
)

// Team is a canonical sports team. Teams are created on first confident
// resolution and deactivated rather than deleted.
type Team struct {
	ID       string
	SportID  int64
	LeagueID string
	Name     string
	Aliases  []string
	IsActive bool
}

func (t Team) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("team id is required")
	}
	if t.SportID <= 0 {
		return fmt.Errorf("team sport id must be greater than zero")
	}
	if t.Name == "" {
		return fmt.Errorf("team name is required")
	}
	return nil
}

// ProviderMapping is a many-to-one edge from a provider team reference to a
// canonical team. Mappings are upserted and kept forever so resolution
// decisions stay auditable.
type ProviderMapping struct {
	TeamID         string
	Provider       string
	ProviderTeamID string
	ProviderName   string
	Confidence     float64
	IsPrimary      bool
	UpdatedAt      time.Time
}

func (m ProviderMapping) Validate() error {
	if m.TeamID == "" {
		return fmt.Errorf("mapping team id is required")
	}
	if m.Provider == "" {
		return fmt.Errorf("mapping provider is required")
	}
	if m.ProviderTeamID == "" && m.ProviderName == "" {
		return fmt.Errorf("mapping needs a provider team id or a provider name")
	}
	if m.Confidence < 0 || m.Confidence > 1 {
		return fmt.Errorf("mapping confidence %.3f is outside [0, 1]", m.Confidence)
	}
	return nil
}
