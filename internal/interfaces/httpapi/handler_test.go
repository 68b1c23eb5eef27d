package httpapi

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	sonic "github.com/bytedance/sonic"
	"github.com/dzoothis/oddsfeed/internal/domain/feed"
	"github.com/dzoothis/oddsfeed/internal/domain/match"
	"github.com/dzoothis/oddsfeed/internal/infrastructure/repository/memory"
	"github.com/dzoothis/oddsfeed/internal/usecase"
)

type handlerFixture struct {
	matches *memory.MatchRepository
	audits  *memory.AuditRepository
	router  http.Handler
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()

	providers := feed.NewProviderSet([]string{"oddsprime", "betstream", "rapidodds"})

	matches := memory.NewMatchRepository()
	audits := memory.NewAuditRepository()
	sports := memory.NewSportRepository(memory.SeedSports())
	leagues := memory.NewLeagueRepository(memory.SeedLeagues())

	queries := usecase.NewMatchQueryService(matches, sports, leagues, nil, nil)
	lifecycle := usecase.NewLifecycleService(matches, audits, leagues, sports, nil, usecase.LifecycleConfig{
		Providers: providers,
	}, nil)

	handler := NewHandler(queries, lifecycle, nil, nil, ScheduleConfig{}, nil)
	router := NewRouter(handler, nil, []string{"*"}, "job-secret")

	return &handlerFixture{matches: matches, audits: audits, router: router}
}

func (f *handlerFixture) storeMatch(t *testing.T, m match.Match) {
	t.Helper()
	if err := f.matches.Insert(t.Context(), m); err != nil {
		t.Fatalf("insert match: %v", err)
	}
}

func sampleMatch(id, status string) match.Match {
	scheduled := time.Date(2026, 3, 14, 16, 0, 0, 0, time.UTC)
	return match.Match{
		ID:           id,
		SportID:      1,
		LeagueID:     "eng-premier-league",
		HomeTeamID:   "team-arsenal",
		AwayTeamID:   "team-chelsea",
		HomeTeamName: "Arsenal",
		AwayTeamName: "Chelsea",
		ScheduledAt:  scheduled,
		Status:       status,
		Markets: []match.Market{
			{
				Type:     "1x2",
				Category: "main",
				Provider: "oddsprime",
				Outcomes: []match.Outcome{{Label: "home", Odds: 1.9}, {Label: "away", Odds: 3.8}},
			},
		},
		AvailableForBetting: status == match.StatusPrematch || status == match.StatusLive,
		Providers:           []string{"oddsprime"},
		JoinKey:             "team-arsenal|team-chelsea:" + id,
		Version:             1,
		UpdatedAt:           scheduled,
	}
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := sonic.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal response body: %v", err)
	}
	return body
}

func TestHandler_ListMatches_FiltersByStatus(t *testing.T) {
	f := newHandlerFixture(t)
	f.storeMatch(t, sampleMatch("m-1", match.StatusPrematch))
	f.storeMatch(t, sampleMatch("m-2", match.StatusLive))

	req := httptest.NewRequest(http.MethodGet, "/v1/matches?sport_id=1&status=live", nil)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d body=%s", rec.Code, rec.Body.String())
	}

	body := decodeEnvelope(t, rec)
	items, ok := body["data"].([]any)
	if !ok {
		t.Fatalf("expected data array, got %T", body["data"])
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 match, got %d", len(items))
	}
	item := items[0].(map[string]any)
	if item["id"] != "m-2" {
		t.Fatalf("expected match m-2, got %v", item["id"])
	}
	if item["status"] != match.StatusLive {
		t.Fatalf("expected live status, got %v", item["status"])
	}
}

func TestHandler_ListMatches_RejectsBadSportID(t *testing.T) {
	f := newHandlerFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/matches?sport_id=abc", nil)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
}

func TestHandler_GetMatch_NotFound(t *testing.T) {
	f := newHandlerFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/matches/missing", nil)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d body=%s", rec.Code, rec.Body.String())
	}
}

func TestHandler_ForceMatchStatus(t *testing.T) {
	f := newHandlerFixture(t)
	f.storeMatch(t, sampleMatch("m-1", match.StatusLive))

	payload := `{"status":"finished","reason":"operator confirmed final whistle"}`

	t.Run("without token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/v1/admin/matches/m-1/status", strings.NewReader(payload))
		rec := httptest.NewRecorder()
		f.router.ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected status 401, got %d", rec.Code)
		}
	})

	t.Run("with token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/v1/admin/matches/m-1/status", strings.NewReader(payload))
		req.Header.Set("X-Internal-Job-Token", "job-secret")
		rec := httptest.NewRecorder()
		f.router.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d body=%s", rec.Code, rec.Body.String())
		}

		stored, found, err := f.matches.GetByID(t.Context(), "m-1")
		if err != nil || !found {
			t.Fatalf("expected stored match, found=%v err=%v", found, err)
		}
		if stored.Status != match.StatusFinished {
			t.Fatalf("expected finished status, got %q", stored.Status)
		}

		entries, err := f.audits.ListByMatch(t.Context(), "m-1")
		if err != nil {
			t.Fatalf("list audit entries: %v", err)
		}
		if len(entries) != 1 {
			t.Fatalf("expected 1 audit entry, got %d", len(entries))
		}
		if entries[0].Reason != "operator confirmed final whistle" {
			t.Fatalf("unexpected audit reason %q", entries[0].Reason)
		}
	})

	t.Run("rejects unknown status", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/v1/admin/matches/m-1/status", strings.NewReader(`{"status":"paused","reason":"x"}`))
		req.Header.Set("X-Internal-Job-Token", "job-secret")
		rec := httptest.NewRecorder()
		f.router.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected status 400, got %d", rec.Code)
		}
	})
}

func TestHandler_RunLifecycleLayerJob(t *testing.T) {
	f := newHandlerFixture(t)

	t.Run("unknown layer", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/v1/internal/jobs/lifecycle/nonsense", nil)
		req.Header.Set("X-Internal-Job-Token", "job-secret")
		rec := httptest.NewRecorder()
		f.router.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected status 400, got %d body=%s", rec.Code, rec.Body.String())
		}
	})

	t.Run("staleness purge runs", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/v1/internal/jobs/lifecycle/"+usecase.LayerStalenessPurge, nil)
		req.Header.Set("X-Internal-Job-Token", "job-secret")
		rec := httptest.NewRecorder()
		f.router.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d body=%s", rec.Code, rec.Body.String())
		}

		body := decodeEnvelope(t, rec)
		data, ok := body["data"].(map[string]any)
		if !ok {
			t.Fatalf("expected layer result object, got %T", body["data"])
		}
		if data["layer"] != usecase.LayerStalenessPurge {
			t.Fatalf("unexpected layer %v", data["layer"])
		}
	})
}
