package match

import (
	"fmt"
	"sort"
	"time"
)

// Lifecycle statuses. finished and soft_finished are both terminal for
// betting; soft_finished is an inference and stays reversible, finished is
// confirmed and only an administrative action can reopen it.
const (
	StatusPrematch     = "prematch"
	StatusLive         = "live"
	StatusFinished     = "finished"
	StatusSoftFinished = "soft_finished"
)

// Risk levels flag how overdue a match is for attention. Diagnostic only,
// never a transition trigger.
const (
	RiskLow      = "low"
	RiskMedium   = "medium"
	RiskHigh     = "high"
	RiskCritical = "critical"
)

// Match is the single merged representation of one real-world fixture.
type Match struct {
	ID                  string
	SportID             int64
	LeagueID            string
	HomeTeamID          string
	AwayTeamID          string
	HomeTeamName        string
	AwayTeamName        string
	ScheduledAt         time.Time
	Status              string
	AvailableForBetting bool
	HomeScore           *int
	AwayScore           *int
	Markets             []Market
	Providers           []string
	JoinKey             string
	Version             int64
	UpdatedAt           time.Time
}

// Market is an aggregated market on a match, tagged with the provider that
// contributed it and the category used for supplemental-merge gating.
type Market struct {
	Type     string
	Category string
	Provider string
	Outcomes []Outcome
}

type Outcome struct {
	Label string
	Odds  float64
}

func (m Match) Validate() error {
	if m.ID == "" {
		return fmt.Errorf("match id is required")
	}
	if m.SportID <= 0 {
		return fmt.Errorf("match sport id must be greater than zero")
	}
	if len(m.Providers) == 0 {
		return fmt.Errorf("match needs at least one contributing provider")
	}
	if !IsValidStatus(m.Status) {
		return fmt.Errorf("match status %q is not valid", m.Status)
	}
	return nil
}

func IsValidStatus(status string) bool {
	switch status {
	case StatusPrematch, StatusLive, StatusFinished, StatusSoftFinished:
		return true
	default:
		return false
	}
}

func IsTerminalStatus(status string) bool {
	return status == StatusFinished || status == StatusSoftFinished
}

// CanAutoTransition reports whether the automated lifecycle may move a match
// between two statuses. finished is a one-way door for automation;
// soft_finished may be restored when corroborating evidence arrives.
func CanAutoTransition(from, to string) bool {
	if !IsValidStatus(from) || !IsValidStatus(to) {
		return false
	}
	if from == to {
		return false
	}
	if from == StatusFinished {
		return false
	}
	return true
}

// HasProvider reports whether the provider already contributes to the match.
func (m Match) HasProvider(provider string) bool {
	for _, name := range m.Providers {
		if name == provider {
			return true
		}
	}
	return false
}

// MarketCategories returns the distinct categories currently on the match.
func (m Match) MarketCategories() []string {
	seen := make(map[string]struct{}, len(m.Markets))
	out := make([]string, 0, len(m.Markets))
	for _, market := range m.Markets {
		if _, ok := seen[market.Category]; ok {
			continue
		}
		seen[market.Category] = struct{}{}
		out = append(out, market.Category)
	}
	sort.Strings(out)
	return out
}

// ClassifyRisk buckets a match by staleness. Thresholds follow operational
// experience: anything untouched for two days is critical, a live match
// silent for half a day is already suspicious.
func ClassifyRisk(m Match, now time.Time) string {
	sinceUpdate := now.Sub(m.UpdatedAt)
	switch {
	case sinceUpdate > 48*time.Hour:
		return RiskCritical
	case sinceUpdate > 24*time.Hour:
		return RiskHigh
	}

	pastStart := now.Sub(m.ScheduledAt)
	switch {
	case pastStart > 4*time.Hour,
		m.AvailableForBetting && sinceUpdate > 6*time.Hour,
		m.Status == StatusLive && sinceUpdate > 12*time.Hour:
		return RiskMedium
	default:
		return RiskLow
	}
}
