package httpapi

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dzoothis/oddsfeed/internal/usecase"
	"github.com/go-playground/validator/v10"
)

// JobScheduler enqueues the next run of a recurring internal job. Each job
// handler finishes by rescheduling itself, so the cadence lives in the job
// chain rather than a local ticker.
type JobScheduler interface {
	ScheduleSyncCycle(ctx context.Context, sportID int64, delay time.Duration) error
	ScheduleLayer(ctx context.Context, layer string, delay time.Duration) error
}

type Handler struct {
	queries   *usecase.MatchQueryService
	lifecycle *usecase.LifecycleService
	sync      *usecase.SyncService
	scheduler JobScheduler
	schedule  ScheduleConfig
	logger    *slog.Logger
	validator *validator.Validate
}

func NewHandler(
	queries *usecase.MatchQueryService,
	lifecycle *usecase.LifecycleService,
	sync *usecase.SyncService,
	scheduler JobScheduler,
	schedule ScheduleConfig,
	logger *slog.Logger,
) *Handler {
	if logger == nil {
		logger = slog.Default()
	}

	return &Handler{
		queries:   queries,
		lifecycle: lifecycle,
		sync:      sync,
		scheduler: scheduler,
		schedule:  schedule.withDefaults(),
		logger:    logger,
		validator: validator.New(),
	}
}

func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.Healthz")
	defer span.End()

	writeSuccess(ctx, w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) ListSports(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.ListSports")
	defer span.End()

	sports, err := h.queries.ListSports(ctx)
	if err != nil {
		h.logger.WarnContext(ctx, "list sports failed", "error", err)
		writeError(ctx, w, err)
		return
	}

	items := make([]sportDTO, 0, len(sports))
	for _, s := range sports {
		items = append(items, sportToDTO(s))
	}

	writeSuccess(ctx, w, http.StatusOK, items)
}

func (h *Handler) ListLeagues(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.ListLeagues")
	defer span.End()

	leagues, err := h.queries.ListLeagues(ctx)
	if err != nil {
		h.logger.WarnContext(ctx, "list leagues failed", "error", err)
		writeError(ctx, w, err)
		return
	}

	items := make([]leagueDTO, 0, len(leagues))
	for _, l := range leagues {
		items = append(items, leagueToDTO(l))
	}

	writeSuccess(ctx, w, http.StatusOK, items)
}

func (h *Handler) ListMatches(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.ListMatches")
	defer span.End()

	input, err := parseMatchListQuery(r)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	matches, err := h.queries.ListMatches(ctx, input)
	if err != nil {
		h.logger.WarnContext(ctx, "list matches failed", "sport_id", input.SportID, "league_id", input.LeagueID, "error", err)
		writeError(ctx, w, err)
		return
	}

	items := make([]matchDTO, 0, len(matches))
	for _, m := range matches {
		items = append(items, matchToDTO(m))
	}

	writeSuccess(ctx, w, http.StatusOK, items)
}

func (h *Handler) GetMatch(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.GetMatch")
	defer span.End()

	matchID := strings.TrimSpace(r.PathValue("matchID"))
	item, err := h.queries.GetMatch(ctx, matchID)
	if err != nil {
		h.logger.WarnContext(ctx, "get match failed", "match_id", matchID, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, matchToDTO(item))
}

func (h *Handler) GetMatchAuditTrail(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.GetMatchAuditTrail")
	defer span.End()

	matchID := strings.TrimSpace(r.PathValue("matchID"))
	entries, err := h.lifecycle.AuditTrail(ctx, matchID)
	if err != nil {
		h.logger.WarnContext(ctx, "get audit trail failed", "match_id", matchID, "error", err)
		writeError(ctx, w, err)
		return
	}

	items := make([]auditEntryDTO, 0, len(entries))
	for _, e := range entries {
		items = append(items, auditEntryToDTO(e))
	}

	writeSuccess(ctx, w, http.StatusOK, items)
}

func (h *Handler) ListReviewCandidates(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.ListReviewCandidates")
	defer span.End()

	candidates, err := h.lifecycle.ListReviewCandidates(ctx)
	if err != nil {
		h.logger.WarnContext(ctx, "list review candidates failed", "error", err)
		writeError(ctx, w, err)
		return
	}

	items := make([]reviewCandidateDTO, 0, len(candidates))
	for _, c := range candidates {
		items = append(items, reviewCandidateDTO{
			Match: matchToDTO(c.Match),
			Risk:  c.Risk,
		})
	}

	writeSuccess(ctx, w, http.StatusOK, items)
}

func (h *Handler) validateRequest(ctx context.Context, payload any) error {
	ctx, span := startSpan(ctx, "httpapi.Handler.validateRequest")
	defer span.End()

	if err := h.validator.StructCtx(ctx, payload); err != nil {
		return fmt.Errorf("%w: validation failed: %v", usecase.ErrInvalidInput, err)
	}

	return nil
}

func parseMatchListQuery(r *http.Request) (usecase.MatchListInput, error) {
	input := usecase.MatchListInput{
		LeagueID: strings.TrimSpace(r.URL.Query().Get("league_id")),
	}

	if raw := strings.TrimSpace(r.URL.Query().Get("sport_id")); raw != "" {
		sportID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || sportID <= 0 {
			return usecase.MatchListInput{}, fmt.Errorf("%w: sport_id must be a positive integer", usecase.ErrInvalidInput)
		}
		input.SportID = sportID
	}

	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			status := strings.TrimSpace(part)
			if status == "" {
				continue
			}
			input.Statuses = append(input.Statuses, status)
		}
	}

	return input, nil
}
