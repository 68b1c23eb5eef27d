package httpapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	sonic "github.com/bytedance/sonic"
	"github.com/dzoothis/oddsfeed/internal/usecase"
)

// ScheduleConfig sets how far ahead each job reschedules itself after a run.
type ScheduleConfig struct {
	SyncInterval      time.Duration
	LifecycleInterval time.Duration
}

func (c ScheduleConfig) withDefaults() ScheduleConfig {
	if c.SyncInterval <= 0 {
		c.SyncInterval = time.Minute
	}
	if c.LifecycleInterval <= 0 {
		c.LifecycleInterval = 5 * time.Minute
	}
	return c
}

type syncCycleJobRequest struct {
	SportID int64 `json:"sport_id" validate:"required,min=1"`
}

func (h *Handler) RunSyncCycleJob(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.RunSyncCycleJob")
	defer span.End()

	if h.sync == nil {
		writeError(ctx, w, fmt.Errorf("%w: sync service is not configured", usecase.ErrDependencyUnavailable))
		return
	}

	req, err := decodeSyncCycleJobRequest(r)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	if err := h.validateRequest(ctx, req); err != nil {
		writeError(ctx, w, err)
		return
	}

	result, runErr := h.sync.RunCycle(ctx, usecase.SyncInput{SportID: req.SportID})

	// Reschedule before reporting so one failed cycle does not break the
	// chain. A run that lost the guard race still keeps its cadence alive.
	h.scheduleNextSyncCycle(ctx, req.SportID)

	if runErr != nil {
		h.logger.WarnContext(ctx, "sync cycle job failed", "sport_id", req.SportID, "error", runErr)
		writeError(ctx, w, runErr)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, result)
}

func (h *Handler) RunLifecycleLayerJob(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.RunLifecycleLayerJob")
	defer span.End()

	if h.lifecycle == nil {
		writeError(ctx, w, fmt.Errorf("%w: lifecycle service is not configured", usecase.ErrDependencyUnavailable))
		return
	}

	layer := strings.TrimSpace(r.PathValue("layer"))
	run, ok := h.lifecycleLayerRunner(layer)
	if !ok {
		writeError(ctx, w, fmt.Errorf("%w: unknown lifecycle layer %q", usecase.ErrInvalidInput, layer))
		return
	}

	result, runErr := run(ctx)

	h.scheduleNextLifecycleLayer(ctx, layer)

	if runErr != nil {
		h.logger.WarnContext(ctx, "lifecycle layer job failed", "layer", layer, "error", runErr)
		writeError(ctx, w, runErr)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, result)
}

func (h *Handler) lifecycleLayerRunner(layer string) (func(context.Context) (usecase.LayerResult, error), bool) {
	switch layer {
	case usecase.LayerProviderStatusFilter:
		return h.lifecycle.RunProviderStatusFilter, true
	case usecase.LayerPrimaryMarketVerification:
		return h.lifecycle.RunPrimaryMarketVerification, true
	case usecase.LayerTimeCleanup:
		return h.lifecycle.RunTimeCleanup, true
	case usecase.LayerStalenessPurge:
		return h.lifecycle.RunStalenessPurge, true
	case usecase.LayerComprehensiveSweep:
		return h.lifecycle.RunComprehensiveSweep, true
	default:
		return nil, false
	}
}

func (h *Handler) scheduleNextSyncCycle(ctx context.Context, sportID int64) {
	if h.scheduler == nil {
		return
	}
	if err := h.scheduler.ScheduleSyncCycle(ctx, sportID, h.schedule.SyncInterval); err != nil {
		h.logger.WarnContext(ctx, "schedule next sync cycle failed", "sport_id", sportID, "error", err)
	}
}

func (h *Handler) scheduleNextLifecycleLayer(ctx context.Context, layer string) {
	if h.scheduler == nil {
		return
	}
	if err := h.scheduler.ScheduleLayer(ctx, layer, h.schedule.LifecycleInterval); err != nil {
		h.logger.WarnContext(ctx, "schedule next lifecycle layer failed", "layer", layer, "error", err)
	}
}

func decodeSyncCycleJobRequest(r *http.Request) (syncCycleJobRequest, error) {
	decoder := sonic.ConfigDefault.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	var req syncCycleJobRequest
	if err := decoder.Decode(&req); err != nil {
		if errors.Is(err, io.EOF) {
			return syncCycleJobRequest{}, nil
		}
		return syncCycleJobRequest{}, fmt.Errorf("%w: invalid JSON payload: %v", usecase.ErrInvalidInput, err)
	}

	return req, nil
}
