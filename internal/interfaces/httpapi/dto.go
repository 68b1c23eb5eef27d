package httpapi

import (
	"time"

	"github.com/dzoothis/oddsfeed/internal/domain/league"
	"github.com/dzoothis/oddsfeed/internal/domain/match"
	"github.com/dzoothis/oddsfeed/internal/domain/sport"
)

type sportDTO struct {
	ID                     int64  `json:"id"`
	Name                   string `json:"name"`
	TypicalDurationSeconds int64  `json:"typicalDurationSeconds"`
}

type leagueDTO struct {
	ID       string `json:"id"`
	SportID  int64  `json:"sportId"`
	Name     string `json:"name"`
	Coverage string `json:"coverage"`
}

type matchDTO struct {
	ID                  string      `json:"id"`
	SportID             int64       `json:"sportId"`
	LeagueID            string      `json:"leagueId"`
	HomeTeamID          string      `json:"homeTeamId"`
	AwayTeamID          string      `json:"awayTeamId"`
	HomeTeamName        string      `json:"homeTeamName"`
	AwayTeamName        string      `json:"awayTeamName"`
	ScheduledAt         string      `json:"scheduledAt"`
	Status              string      `json:"status"`
	AvailableForBetting bool        `json:"availableForBetting"`
	HomeScore           *int        `json:"homeScore"`
	AwayScore           *int        `json:"awayScore"`
	Markets             []marketDTO `json:"markets"`
	Providers           []string    `json:"providers"`
	Version             int64       `json:"version"`
	UpdatedAt           string      `json:"updatedAt"`
}

type marketDTO struct {
	Type     string       `json:"type"`
	Category string       `json:"category"`
	Provider string       `json:"provider"`
	Outcomes []outcomeDTO `json:"outcomes"`
}

type outcomeDTO struct {
	Label string  `json:"label"`
	Odds  float64 `json:"odds"`
}

type auditEntryDTO struct {
	MatchID    string `json:"matchId"`
	FromStatus string `json:"fromStatus"`
	ToStatus   string `json:"toStatus"`
	Source     string `json:"source"`
	Reason     string `json:"reason"`
	OccurredAt string `json:"occurredAt"`
}

type reviewCandidateDTO struct {
	Match matchDTO `json:"match"`
	Risk  string   `json:"risk"`
}

func sportToDTO(v sport.Sport) sportDTO {
	return sportDTO{
		ID:                     v.ID,
		Name:                   v.Name,
		TypicalDurationSeconds: int64(v.TypicalDuration / time.Second),
	}
}

func leagueToDTO(v league.League) leagueDTO {
	return leagueDTO{
		ID:       v.ID,
		SportID:  v.SportID,
		Name:     v.Name,
		Coverage: v.Coverage,
	}
}

func matchToDTO(v match.Match) matchDTO {
	markets := make([]marketDTO, 0, len(v.Markets))
	for _, m := range v.Markets {
		outcomes := make([]outcomeDTO, 0, len(m.Outcomes))
		for _, o := range m.Outcomes {
			outcomes = append(outcomes, outcomeDTO{Label: o.Label, Odds: o.Odds})
		}
		markets = append(markets, marketDTO{
			Type:     m.Type,
			Category: m.Category,
			Provider: m.Provider,
			Outcomes: outcomes,
		})
	}

	return matchDTO{
		ID:                  v.ID,
		SportID:             v.SportID,
		LeagueID:            v.LeagueID,
		HomeTeamID:          v.HomeTeamID,
		AwayTeamID:          v.AwayTeamID,
		HomeTeamName:        v.HomeTeamName,
		AwayTeamName:        v.AwayTeamName,
		ScheduledAt:         v.ScheduledAt.UTC().Format(time.RFC3339),
		Status:              v.Status,
		AvailableForBetting: v.AvailableForBetting,
		HomeScore:           v.HomeScore,
		AwayScore:           v.AwayScore,
		Markets:             markets,
		Providers:           append([]string(nil), v.Providers...),
		Version:             v.Version,
		UpdatedAt:           v.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func auditEntryToDTO(v match.AuditEntry) auditEntryDTO {
	return auditEntryDTO{
		MatchID:    v.MatchID,
		FromStatus: v.FromStatus,
		ToStatus:   v.ToStatus,
		Source:     v.Source,
		Reason:     v.Reason,
		OccurredAt: v.OccurredAt.UTC().Format(time.RFC3339),
	}
}
