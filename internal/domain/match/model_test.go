package match

import (
	"testing"
	"time"
)

func TestCanAutoTransition(t *testing.T) {
	cases := []struct {
		from string
		to   string
		want bool
	}{
		{StatusPrematch, StatusLive, true},
		{StatusLive, StatusSoftFinished, true},
		{StatusLive, StatusFinished, true},
		{StatusSoftFinished, StatusLive, true},
		{StatusSoftFinished, StatusFinished, true},
		{StatusFinished, StatusLive, false},
		{StatusFinished, StatusPrematch, false},
		{StatusLive, StatusLive, false},
		{StatusLive, "cancelled", false},
	}
	for _, tc := range cases {
		if got := CanAutoTransition(tc.from, tc.to); got != tc.want {
			t.Fatalf("CanAutoTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestClassifyRisk(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name string
		m    Match
		want string
	}{
		{
			name: "fresh upcoming match is low",
			m: Match{
				ScheduledAt: now.Add(2 * time.Hour),
				UpdatedAt:   now.Add(-10 * time.Minute),
			},
			want: RiskLow,
		},
		{
			name: "four hours past start is medium",
			m: Match{
				ScheduledAt: now.Add(-5 * time.Hour),
				UpdatedAt:   now.Add(-time.Hour),
			},
			want: RiskMedium,
		},
		{
			name: "bettable but silent for six hours is medium",
			m: Match{
				ScheduledAt:         now.Add(time.Hour),
				AvailableForBetting: true,
				UpdatedAt:           now.Add(-7 * time.Hour),
			},
			want: RiskMedium,
		},
		{
			name: "live but silent for twelve hours is medium",
			m: Match{
				Status:      StatusLive,
				ScheduledAt: now.Add(time.Hour),
				UpdatedAt:   now.Add(-13 * time.Hour),
			},
			want: RiskMedium,
		},
		{
			name: "silent for a day is high",
			m: Match{
				ScheduledAt: now.Add(-30 * time.Hour),
				UpdatedAt:   now.Add(-25 * time.Hour),
			},
			want: RiskHigh,
		},
		{
			name: "silent for over two days is critical",
			m: Match{
				ScheduledAt: now.Add(-50 * time.Hour),
				UpdatedAt:   now.Add(-50 * time.Hour),
			},
			want: RiskCritical,
		},
	}
	for _, tc := range cases {
		if got := ClassifyRisk(tc.m, now); got != tc.want {
			t.Fatalf("%s: ClassifyRisk = %s, want %s", tc.name, got, tc.want)
		}
	}
}

func TestMatchValidate(t *testing.T) {
	m := Match{
		ID:        "m-1",
		SportID:   1,
		Status:    StatusPrematch,
		Providers: []string{"oddsprime"},
	}
	if err := m.Validate(); err != nil {
		t.Fatalf("expected valid match, got %v", err)
	}

	m.Providers = nil
	if err := m.Validate(); err == nil {
		t.Fatal("expected error for match without providers")
	}
}
