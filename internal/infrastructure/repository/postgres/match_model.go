package postgres

import (
	"database/sql"
	"fmt"
	"time"

	sonic "github.com/bytedance/sonic"
	"github.com/dzoothis/oddsfeed/internal/domain/match"
	"github.com/lib/pq"
)

type matchTableModel struct {
	ID                  string         `db:"id"`
	SportID             int64          `db:"sport_id"`
	LeagueID            string         `db:"league_id"`
	HomeTeamID          string         `db:"home_team_id"`
	AwayTeamID          string         `db:"away_team_id"`
	HomeTeamName        string         `db:"home_team_name"`
	AwayTeamName        string         `db:"away_team_name"`
	ScheduledAt         time.Time      `db:"scheduled_at"`
	Status              string         `db:"status"`
	AvailableForBetting bool           `db:"available_for_betting"`
	HomeScore           sql.NullInt64  `db:"home_score"`
	AwayScore           sql.NullInt64  `db:"away_score"`
	Markets             []byte         `db:"markets"`
	Providers           pq.StringArray `db:"providers"`
	JoinKey             string         `db:"join_key"`
	Version             int64          `db:"version"`
	UpdatedAt           time.Time      `db:"updated_at"`
}

type marketColumnModel struct {
	Type     string               `json:"type"`
	Category string               `json:"category"`
	Provider string               `json:"provider"`
	Outcomes []outcomeColumnModel `json:"outcomes"`
}

type outcomeColumnModel struct {
	Label string  `json:"label"`
	Odds  float64 `json:"odds"`
}

func matchToTableModel(item match.Match) (matchTableModel, error) {
	markets := make([]marketColumnModel, 0, len(item.Markets))
	for _, market := range item.Markets {
		row := marketColumnModel{
			Type:     market.Type,
			Category: market.Category,
			Provider: market.Provider,
			Outcomes: make([]outcomeColumnModel, 0, len(market.Outcomes)),
		}
		for _, outcome := range market.Outcomes {
			row.Outcomes = append(row.Outcomes, outcomeColumnModel{Label: outcome.Label, Odds: outcome.Odds})
		}
		markets = append(markets, row)
	}

	encoded, err := sonic.Marshal(markets)
	if err != nil {
		return matchTableModel{}, fmt.Errorf("encode markets for match %s: %w", item.ID, err)
	}

	return matchTableModel{
		ID:                  item.ID,
		SportID:             item.SportID,
		LeagueID:            item.LeagueID,
		HomeTeamID:          item.HomeTeamID,
		AwayTeamID:          item.AwayTeamID,
		HomeTeamName:        item.HomeTeamName,
		AwayTeamName:        item.AwayTeamName,
		ScheduledAt:         item.ScheduledAt.UTC(),
		Status:              item.Status,
		AvailableForBetting: item.AvailableForBetting,
		HomeScore:           intPtrToNullInt64(item.HomeScore),
		AwayScore:           intPtrToNullInt64(item.AwayScore),
		Markets:             encoded,
		Providers:           pq.StringArray(item.Providers),
		JoinKey:             item.JoinKey,
		Version:             item.Version,
		UpdatedAt:           item.UpdatedAt.UTC(),
	}, nil
}

func matchFromTableModel(row matchTableModel) (match.Match, error) {
	var markets []marketColumnModel
	if len(row.Markets) > 0 {
		if err := sonic.Unmarshal(row.Markets, &markets); err != nil {
			return match.Match{}, fmt.Errorf("decode markets for match %s: %w", row.ID, err)
		}
	}

	out := match.Match{
		ID:                  row.ID,
		SportID:             row.SportID,
		LeagueID:            row.LeagueID,
		HomeTeamID:          row.HomeTeamID,
		AwayTeamID:          row.AwayTeamID,
		HomeTeamName:        row.HomeTeamName,
		AwayTeamName:        row.AwayTeamName,
		ScheduledAt:         row.ScheduledAt.UTC(),
		Status:              row.Status,
		AvailableForBetting: row.AvailableForBetting,
		HomeScore:           nullInt64ToIntPtr(row.HomeScore),
		AwayScore:           nullInt64ToIntPtr(row.AwayScore),
		Providers:           append([]string(nil), row.Providers...),
		JoinKey:             row.JoinKey,
		Version:             row.Version,
		UpdatedAt:           row.UpdatedAt.UTC(),
	}
	for _, market := range markets {
		mapped := match.Market{
			Type:     market.Type,
			Category: market.Category,
			Provider: market.Provider,
			Outcomes: make([]match.Outcome, 0, len(market.Outcomes)),
		}
		for _, outcome := range market.Outcomes {
			mapped.Outcomes = append(mapped.Outcomes, match.Outcome{Label: outcome.Label, Odds: outcome.Odds})
		}
		out.Markets = append(out.Markets, mapped)
	}
	return out, nil
}
