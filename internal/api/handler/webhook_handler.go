package handler

import (
	"errors"
	"io"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	apimw "github.com/devarispbrown/gtsd-sub009/internal/api/middleware"
	"github.com/devarispbrown/gtsd-sub009/internal/domain"
	"github.com/devarispbrown/gtsd-sub009/internal/gateway"
	"github.com/devarispbrown/gtsd-sub009/internal/ledger"
	"github.com/devarispbrown/gtsd-sub009/internal/ratelimit"
	"github.com/devarispbrown/gtsd-sub009/internal/userstore"
)

// SignatureHeader carries the provider's HMAC over the raw request body.
const SignatureHeader = "X-Gateway-Signature"

// twimlAck is the provider-compatible empty reply for inbound messages.
// An empty <Response/> acknowledges receipt without sending a reply SMS.
const twimlAck = `<?xml version="1.0" encoding="UTF-8"?><Response/>`

// WebhookHandler receives inbound messages and delivery-status callbacks
// from the SMS provider. Both arrive on the same endpoint as form-encoded
// POSTs; the presence of MessageStatus distinguishes a status callback
// from an inbound user message.
type WebhookHandler struct {
	users   userstore.UserStore
	ldg     ledger.Ledger
	gw      gateway.Client
	limiter *ratelimit.SourceLimiter
	logger  *zap.Logger

	// onOutcome is called once per request with the terminal outcome
	// ("ok", "invalid_signature", "rate_limited", "error"). Nil disables.
	onOutcome func(outcome string)
}

func NewWebhookHandler(
	users userstore.UserStore,
	ldg ledger.Ledger,
	gw gateway.Client,
	limiter *ratelimit.SourceLimiter,
	logger *zap.Logger,
	onOutcome func(outcome string),
) *WebhookHandler {
	return &WebhookHandler{
		users:     users,
		ldg:       ldg,
		gw:        gw,
		limiter:   limiter,
		logger:    logger,
		onOutcome: onOutcome,
	}
}

func (h *WebhookHandler) outcome(o string) {
	if h.onOutcome != nil {
		h.onOutcome(o)
	}
}

// Receive handles POST /webhooks/sms
//
// @Summary     Inbound SMS webhook (compliance keywords and status callbacks)
// @Tags        webhooks
// @Accept      x-www-form-urlencoded
// @Param       X-Gateway-Signature  header  string  true  "HMAC-SHA256 of raw body, hex"
// @Success     200  {string}  string  "TwiML ack or JSON ack"
// @Failure     401  {object}  map[string]string
// @Failure     429  {object}  map[string]string
// @Router      /webhooks/sms [post]
func (h *WebhookHandler) Receive(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 64<<10))
	if err != nil {
		h.outcome("error")
		respondError(w, http.StatusRequestEntityTooLarge, "body too large")
		return
	}

	// Signature first. An unsigned or tampered request must not reach any
	// state mutation, not even the rate limiter's per-source accounting.
	if !h.gw.VerifySignature(raw, r.Header.Get(SignatureHeader)) {
		h.outcome("invalid_signature")
		h.logger.Warn("webhook signature rejected",
			zap.String("correlation_id", apimw.GetCorrelationID(r.Context())),
			zap.String("remote_addr", r.RemoteAddr),
		)
		mapError(w, domain.ErrSignatureInvalid)
		return
	}

	form, err := url.ParseQuery(string(raw))
	if err != nil {
		h.outcome("error")
		respondError(w, http.StatusBadRequest, "malformed form body")
		return
	}

	// Rate limit every signed request, status callbacks included: the
	// signature proves origin, not freshness, so a replayed capture would
	// otherwise reach the ledger an unbounded number of times.
	if !h.limiter.Allow(sourceKey(r, form)) {
		h.outcome("rate_limited")
		mapError(w, domain.ErrRateLimited)
		return
	}

	if form.Get("MessageStatus") != "" {
		h.handleStatusCallback(w, r, form)
		return
	}
	h.handleInbound(w, r, form)
}

// handleStatusCallback applies a provider delivery-status update to the
// send ledger. Unknown provider message ids are acknowledged and dropped:
// the provider retries on non-2xx and the id will never become known.
func (h *WebhookHandler) handleStatusCallback(w http.ResponseWriter, r *http.Request, form url.Values) {
	sid := form.Get("MessageSid")
	providerStatus := form.Get("MessageStatus")

	status, ok := mapProviderStatus(providerStatus)
	if !ok {
		// Intermediate statuses (accepted, queued, sending) carry no
		// ledger transition; ack so the provider stops retrying.
		h.outcome("ok")
		respondJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}

	if err := h.ldg.UpdateStatusByProviderID(r.Context(), sid, status); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			h.outcome("ok")
			h.logger.Warn("status callback for unknown message id",
				zap.String("correlation_id", apimw.GetCorrelationID(r.Context())),
				zap.String("provider_message_id", sid),
			)
			respondJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
			return
		}
		h.outcome("error")
		mapError(w, err)
		return
	}

	h.outcome("ok")
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleInbound processes a user-originated message. Compliance keywords
// flip the opt-in flag; anything else is acknowledged untouched.
func (h *WebhookHandler) handleInbound(w http.ResponseWriter, r *http.Request, form url.Values) {
	from := form.Get("From")

	action, matched := domain.ParseComplianceKeyword(form.Get("Body"))
	if matched && from != "" {
		optIn := action == domain.OptIn
		if err := h.users.SetOptInByPhone(r.Context(), from, optIn); err != nil {
			if !errors.Is(err, domain.ErrNotFound) {
				h.outcome("error")
				mapError(w, err)
				return
			}
			// A number we do not know still gets the standard ack;
			// responding differently would leak which numbers exist.
			h.logger.Info("compliance keyword from unknown number",
				zap.String("correlation_id", apimw.GetCorrelationID(r.Context())),
			)
		} else {
			h.logger.Info("opt-in flag updated",
				zap.String("correlation_id", apimw.GetCorrelationID(r.Context())),
				zap.String("action", string(action)),
			)
		}
	}

	h.outcome("ok")
	w.Header().Set("Content-Type", "text/xml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(twimlAck))
}

// sourceKey picks the rate-limit bucket for a request. Inbound messages
// key by sender; status callbacks carry no From and key by message id.
func sourceKey(r *http.Request, form url.Values) string {
	if from := form.Get("From"); from != "" {
		return from
	}
	if sid := form.Get("MessageSid"); sid != "" {
		return sid
	}
	return r.RemoteAddr
}

// mapProviderStatus translates provider callback statuses to ledger
// statuses. Only terminal-ish transitions are applied.
func mapProviderStatus(s string) (domain.SendStatus, bool) {
	switch s {
	case "sent":
		return domain.SendSent, true
	case "delivered":
		return domain.SendDelivered, true
	case "failed", "undelivered":
		return domain.SendFailed, true
	default:
		return "", false
	}
}
