package httpapi

import (
	"fmt"
	"net/http"
	"strings"

	sonic "github.com/bytedance/sonic"
	"github.com/dzoothis/oddsfeed/internal/usecase"
)

type forceMatchStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=prematch live finished soft_finished"`
	Reason string `json:"reason" validate:"required,max=500"`
}

// ForceMatchStatus is the administrative override for a match status. Unlike
// the automated layers it may reopen a finished match, so every call demands
// an explicit reason for the audit trail.
func (h *Handler) ForceMatchStatus(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.ForceMatchStatus")
	defer span.End()

	matchID := strings.TrimSpace(r.PathValue("matchID"))

	var req forceMatchStatusRequest
	decoder := sonic.ConfigDefault.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(ctx, w, fmt.Errorf("%w: invalid JSON payload: %v", usecase.ErrInvalidInput, err))
		return
	}
	if err := h.validateRequest(ctx, req); err != nil {
		writeError(ctx, w, err)
		return
	}

	item, err := h.lifecycle.ForceStatus(ctx, matchID, req.Status, req.Reason)
	if err != nil {
		h.logger.WarnContext(ctx, "force match status failed", "match_id", matchID, "status", req.Status, "error", err)
		writeError(ctx, w, err)
		return
	}

	h.logger.InfoContext(ctx, "match status forced", "match_id", matchID, "status", req.Status, "reason", req.Reason)
	writeSuccess(ctx, w, http.StatusOK, matchToDTO(item))
}
