package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/devarispbrown/gtsd-sub009/internal/api/handler"
	apimw "github.com/devarispbrown/gtsd-sub009/internal/api/middleware"
	"github.com/devarispbrown/gtsd-sub009/internal/gateway"
	"github.com/devarispbrown/gtsd-sub009/internal/ledger"
	"github.com/devarispbrown/gtsd-sub009/internal/queue"
	"github.com/devarispbrown/gtsd-sub009/internal/ratelimit"
	"github.com/devarispbrown/gtsd-sub009/internal/trigger"
	"github.com/devarispbrown/gtsd-sub009/internal/userstore"
)

// NewRouter wires the chi router, attaches all middleware, and registers
// every route. It is the single source of truth for the HTTP surface area.
func NewRouter(
	triggers *trigger.Service,
	users userstore.UserStore,
	ldg ledger.Ledger,
	gw gateway.Client,
	q *queue.Queue,
	webhookLimiter *ratelimit.SourceLimiter,
	reg prometheus.Gatherer,
	logger *zap.Logger,
	onWebhookOutcome func(outcome string),
) http.Handler {
	r := chi.NewRouter()

	// --- global middleware (applied to every route) ---
	r.Use(chimw.Recoverer)          // recover panics, return 500
	r.Use(chimw.RealIP)             // trust X-Forwarded-For / X-Real-IP
	r.Use(chimw.RequestSize(1<<20)) // 1 MB max request body
	r.Use(apimw.CorrelationID)      // X-Correlation-ID inject / echo
	r.Use(apimw.RequestLogger(logger))

	// --- handler instances ---
	th := handler.NewTriggerHandler(triggers, logger)
	wh := handler.NewWebhookHandler(users, ldg, gw, webhookLimiter, logger, onWebhookOutcome)
	mh := handler.NewMetricsHandler(q)
	hh := handler.NewHealthHandler()

	// --- routes ---
	r.Get("/health", hh.Health)

	// Raw Prometheus scrape endpoint (for Prometheus server / Grafana)
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	// Provider-facing webhook. Authenticated by HMAC signature, not by
	// any session or API key, so it lives outside /api/v1.
	r.Post("/webhooks/sms", wh.Receive)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/triggers", th.Trigger)

		// JSON metrics snapshot
		r.Get("/metrics", mh.GetMetrics)
	})

	return r
}
