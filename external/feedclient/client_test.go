package feedclient

import (
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dzoothis/oddsfeed/internal/platform/resilience"
	"github.com/dzoothis/oddsfeed/internal/usecase"
)

const eventsPayload = `{
	"data": [
		{
			"id": "op-301",
			"league": {"id": "eng-premier-league", "name": "Premier League"},
			"home": {"id": "204", "name": "Liverpool"},
			"away": {"id": "209", "name": "Arsenal"},
			"starting_at": "2026-03-14T16:00:00Z",
			"status": "live",
			"scores": {"home": 1, "away": 0},
			"markets": [
				{"type": "1x2", "outcomes": [{"label": "1", "odds": 1.95}, {"label": "X", "odds": 3.4}]},
				{"type": "totals_2.5", "outcomes": [{"label": "over", "odds": 0.5}]},
				{"type": "", "outcomes": [{"label": "1", "odds": 2.0}]}
			]
		},
		{
			"id": "op-302",
			"home": {"name": "Chelsea"},
			"away": {"name": ""},
			"starting_at": "2026-03-14T18:00:00Z"
		},
		{
			"id": "op-303",
			"home": {"name": "Everton"},
			"away": {"name": "Fulham"},
			"starting_at": "not-a-time"
		}
	]
}`

func newTestClient(t *testing.T, srv *httptest.Server, maxRetries int) *Client {
	t.Helper()
	return NewClient(ClientConfig{
		Provider:   "oddsprime",
		HTTPClient: srv.Client(),
		BaseURL:    srv.URL,
		APIKey:     "key-secret",
		MaxRetries: maxRetries,
		CircuitBreaker: resilience.CircuitBreakerConfig{
			Enabled: false,
		},
	})
}

func TestClientFetchEvents_ParsesEnvelopeAndSkipsBrokenRows(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/sports/1/events" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("api_key"); got != "key-secret" {
			t.Fatalf("unexpected api_key: %s", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(eventsPayload))
	}))
	defer srv.Close()

	client := newTestClient(t, srv, 0)
	events, err := client.FetchEvents(t.Context(), 1)
	if err != nil {
		t.Fatalf("fetch events failed: %v", err)
	}

	// op-302 misses the away name, op-303 has a broken start time.
	if len(events) != 1 {
		t.Fatalf("expected one usable event, got %d", len(events))
	}

	event := events[0]
	if event.Provider != "oddsprime" || event.ProviderEventID != "op-301" {
		t.Fatalf("unexpected identity: %+v", event)
	}
	if event.StatusCode != "LIVE" {
		t.Fatalf("status must be normalized, got %s", event.StatusCode)
	}
	if event.HomeScore == nil || *event.HomeScore != 1 || event.AwayScore == nil || *event.AwayScore != 0 {
		t.Fatalf("unexpected scores: %+v", event)
	}
	if !event.ScheduledAt.Equal(time.Date(2026, 3, 14, 16, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected scheduled time: %s", event.ScheduledAt)
	}

	// The totals market only had a sub-1 quote and the unnamed market type is
	// dropped, leaving the 1x2 market with both valid outcomes.
	if len(event.Markets) != 1 || event.Markets[0].Type != "1x2" {
		t.Fatalf("unexpected markets: %+v", event.Markets)
	}
	if len(event.Markets[0].Outcomes) != 2 {
		t.Fatalf("unexpected outcomes: %+v", event.Markets[0].Outcomes)
	}
}

func TestClientFetchEvents_ServerErrorIsTransient(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	}))
	defer srv.Close()

	client := newTestClient(t, srv, 0)
	_, err := client.FetchEvents(t.Context(), 1)
	if !stderrors.Is(err, errFeedTransient) {
		t.Fatalf("expected transient error, got %v", err)
	}
}

func TestClientFetchEvents_ClientErrorFailsWithoutRetry(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		http.Error(w, "unknown sport", http.StatusNotFound)
	}))
	defer srv.Close()

	client := newTestClient(t, srv, 3)
	_, err := client.FetchEvents(t.Context(), 1)
	if err == nil {
		t.Fatal("expected error for 404")
	}
	if stderrors.Is(err, errFeedTransient) {
		t.Fatalf("4xx must not be marked transient: %v", err)
	}
	if got := hits.Load(); got != 1 {
		t.Fatalf("4xx must not be retried, got %d requests", got)
	}
}

func TestClientFetchEvents_OpenCircuitShortCircuits(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := NewClient(ClientConfig{
		Provider:   "betstream",
		HTTPClient: srv.Client(),
		BaseURL:    srv.URL,
		APIKey:     "key-secret",
		CircuitBreaker: resilience.CircuitBreakerConfig{
			Enabled:          true,
			FailureThreshold: 1,
			OpenTimeout:      time.Minute,
			HalfOpenMaxReq:   1,
		},
	})

	if _, err := client.FetchEvents(t.Context(), 1); err == nil {
		t.Fatal("expected first fetch to fail")
	}
	before := hits.Load()

	_, err := client.FetchEvents(t.Context(), 1)
	if !stderrors.Is(err, usecase.ErrDependencyUnavailable) {
		t.Fatalf("expected ErrDependencyUnavailable from open circuit, got %v", err)
	}
	if hits.Load() != before {
		t.Fatal("open circuit must not reach the server")
	}
}

func TestSanitizeSensitiveText(t *testing.T) {
	t.Parallel()

	got := sanitizeSensitiveText(`Get "https://feed.example.com/v1?api_key=key-secret": timeout`, "key-secret")
	if strings.Contains(got, "key-secret") {
		t.Fatalf("api key leaked: %s", got)
	}
}

func TestParseProviderTime(t *testing.T) {
	t.Parallel()

	want := time.Date(2026, 3, 14, 16, 0, 0, 0, time.UTC)
	for _, value := range []string{
		"2026-03-14T16:00:00Z",
		"2026-03-14 16:00:00",
		"1773504000",
	} {
		got, err := parseProviderTime(value)
		if err != nil {
			t.Fatalf("parse %q: %v", value, err)
		}
		if !got.Equal(want) {
			t.Fatalf("parse %q = %s, want %s", value, got, want)
		}
	}

	if _, err := parseProviderTime("next tuesday"); err == nil {
		t.Fatal("expected error for junk time")
	}
}
