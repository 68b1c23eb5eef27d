package feed

import (
	"strings"
	"time"
)

// Provider live-status codes normalized across upstreams.
const (
	StatusScheduled = "SCHEDULED"
	StatusLive      = "LIVE"
	StatusFinished  = "FINISHED"
	StatusCancelled = "CANCELLED"
	StatusPostponed = "POSTPONED"
)

// RawEvent is one fixture as reported by a single provider in one cycle.
type RawEvent struct {
	Provider           string
	ProviderEventID    string
	SportID            int64
	LeagueID           string
	LeagueName         string
	HomeTeamName       string
	AwayTeamName       string
	HomeTeamProviderID string
	AwayTeamProviderID string
	ScheduledAt        time.Time
	StatusCode         string
	HomeScore          *int
	AwayScore          *int
	Markets            []Market
}

// Market is a provider-quoted market with its outcome prices.
type Market struct {
	Type     string
	Outcomes []Outcome
}

type Outcome struct {
	Label string
	Odds  float64
}

func NormalizeStatus(value string) string {
	status := strings.ToUpper(strings.TrimSpace(value))
	if status == "" {
		return StatusScheduled
	}
	return status
}

func IsLiveStatus(status string) bool {
	switch NormalizeStatus(status) {
	case StatusLive, "IN_PLAY", "HT", "1H", "2H", "ET":
		return true
	default:
		return false
	}
}

// IsTerminalStatus reports provider codes that claim the fixture ended.
func IsTerminalStatus(status string) bool {
	switch NormalizeStatus(status) {
	case StatusFinished, "FT", "AET", "PEN", "ENDED", "CLOSED":
		return true
	default:
		return false
	}
}

func IsCancelledLikeStatus(status string) bool {
	switch NormalizeStatus(status) {
	case StatusCancelled, StatusPostponed, "ABANDONED":
		return true
	default:
		return false
	}
}

// MarketCategory buckets market types so secondary-provider markets only
// merge into matches whose base record already quotes the same category.
func MarketCategory(marketType string) string {
	normalized := strings.ToLower(strings.TrimSpace(marketType))
	switch {
	case normalized == "1x2", normalized == "moneyline", normalized == "match_winner":
		return "main"
	case strings.HasPrefix(normalized, "total"), strings.HasPrefix(normalized, "over_under"):
		return "totals"
	case strings.HasPrefix(normalized, "handicap"), strings.HasPrefix(normalized, "spread"):
		return "handicaps"
	default:
		return "props"
	}
}
