package handler

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	apimw "github.com/devarispbrown/gtsd-sub009/internal/api/middleware"
	"github.com/devarispbrown/gtsd-sub009/internal/domain"
	"github.com/devarispbrown/gtsd-sub009/internal/trigger"
)

// TriggerHandler exposes the manual-send endpoint used by support tooling
// and internal admin surfaces.
type TriggerHandler struct {
	svc    *trigger.Service
	logger *zap.Logger
}

func NewTriggerHandler(svc *trigger.Service, logger *zap.Logger) *TriggerHandler {
	return &TriggerHandler{svc: svc, logger: logger}
}

type triggerRequest struct {
	UserID          string             `json:"user_id"`
	MessageType     domain.MessageType `json:"message_type"`
	Force           bool               `json:"force"`
	SkipIdempotency bool               `json:"skip_idempotency"`
}

// Trigger handles POST /api/v1/triggers
//
// @Summary     Manually enqueue a reminder for one user
// @Tags        triggers
// @Accept      json
// @Produce     json
// @Param       body  body      triggerRequest  true  "Trigger payload"
// @Success     202   {object}  domain.Job
// @Failure     404   {object}  map[string]string
// @Failure     409   {object}  map[string]string
// @Failure     422   {object}  map[string]string
// @Router      /api/v1/triggers [post]
func (h *TriggerHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	var req triggerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	job, err := h.svc.Trigger(r.Context(), req.UserID, req.MessageType, req.Force, req.SkipIdempotency)
	if err != nil {
		h.logger.Warn("manual trigger failed",
			zap.String("correlation_id", apimw.GetCorrelationID(r.Context())),
			zap.String("user_id", req.UserID),
			zap.Error(err),
		)
		mapError(w, err)
		return
	}

	respondJSON(w, http.StatusAccepted, job)
}
