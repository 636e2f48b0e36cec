package api

import (
	"context"
	_ "embed"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	temporalclient "go.temporal.io/sdk/client"

	"github.com/leyden/paysandbox/internal/api/handler"
	mw "github.com/leyden/paysandbox/internal/api/middleware"
	"github.com/leyden/paysandbox/internal/config"
	"github.com/leyden/paysandbox/internal/core"
	"github.com/leyden/paysandbox/internal/crypto"
)

//go:embed docs/swagger.json
var swaggerJSON []byte

type Server struct {
	router         chi.Router
	logger         zerolog.Logger
	services       *core.Services
	pool           *pgxpool.Pool
	temporalClient temporalclient.Client
	cfg            *config.Config
	auditLogger    *mw.AuditLogger
}

func NewServer(logger zerolog.Logger, pool *pgxpool.Pool, temporalClient temporalclient.Client, cfg *config.Config) *Server {
	hasher := crypto.NewHasher(cfg.HashConcurrency)
	services := core.NewServices(pool, temporalClient, hasher, core.ServicesConfig{
		KEKHex:               cfg.KEKHex,
		SessionSecret:        cfg.SessionSecret,
		SessionIssuer:        cfg.SessionIssuer,
		WebhookDefaultSecret: cfg.WebhookDefaultSecret,
		TimestampTolerance:   cfg.TimestampTolerance,
	})
	auditLogger := mw.NewAuditLogger(pool, logger)

	s := &Server{
		router:         chi.NewRouter(),
		logger:         logger,
		services:       services,
		pool:           pool,
		temporalClient: temporalClient,
		cfg:            cfg,
		auditLogger:    auditLogger,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(mw.RequestLogger(s.logger))
	s.router.Use(middleware.Recoverer)
	s.router.Use(mw.Metrics)
}

func (s *Server) setupRoutes() {
	// Prometheus metrics endpoint
	s.router.Handle("/metrics", promhttp.Handler())

	// Health check endpoints
	s.router.Get("/healthz", s.handleHealthz)
	s.router.Get("/readyz", s.handleReadyz)

	// API documentation (no auth required)
	s.router.Get("/docs/openapi.json", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write(swaggerJSON)
	})
	s.router.Get("/docs", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(scalarHTML))
	})

	account := handler.NewAccount(s.services.Account, s.services.Session)
	passwordReset := handler.NewPasswordReset(s.services.Account, s.services.PasswordReset)
	apiKey := handler.NewAPIKey(s.services.APIKey)
	webhookEndpoint := handler.NewWebhookEndpoint(s.services.WebhookEndpoint, s.services.WebhookDelivery)
	sandbox := handler.NewSandbox(s.services.Event, s.services.WebhookVerifier)
	audit := handler.NewAudit(s.pool)

	// Dashboard surface: session-authenticated account and credential
	// management.
	s.router.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(s.auditLogger.Middleware)

			r.Post("/signup", account.Signup)
			r.Post("/login", account.Login)
			r.Post("/password-reset/request", passwordReset.Request)
			r.Post("/password-reset/confirm", passwordReset.Confirm)
		})

		r.Group(func(r chi.Router) {
			r.Use(mw.SessionAuth(s.services.Session))
			r.Use(s.auditLogger.Middleware)

			// Accounts
			r.Get("/me", account.Me)
			r.Put("/me/password", account.ChangePassword)

			// API keys
			r.Get("/api-keys", apiKey.List)
			r.Post("/api-keys", apiKey.Create)
			r.Get("/api-keys/{id}", apiKey.Get)
			r.Patch("/api-keys/{id}", apiKey.Update)
			r.Delete("/api-keys/{id}", apiKey.Delete)
			r.Post("/api-keys/{id}/rotate", apiKey.Rotate)
			r.Post("/api-keys/{id}/revoke", apiKey.Revoke)
			r.Post("/api-keys/{id}/reactivate", apiKey.Reactivate)

			// Webhook endpoints
			r.Get("/webhook-endpoints", webhookEndpoint.List)
			r.Post("/webhook-endpoints", webhookEndpoint.Create)
			r.Get("/webhook-endpoints/{id}", webhookEndpoint.Get)
			r.Patch("/webhook-endpoints/{id}", webhookEndpoint.Update)
			r.Delete("/webhook-endpoints/{id}", webhookEndpoint.Delete)
			r.Post("/webhook-endpoints/{id}/rotate", webhookEndpoint.Rotate)
			r.Get("/webhook-endpoints/{id}/deliveries", webhookEndpoint.ListDeliveries)

			// Audit trail
			r.Get("/audit-logs", audit.List)
		})
	})

	// Sandbox surface: what merchants integrate against, authenticated
	// with API key pairs.
	s.router.Route("/sandbox/v1", func(r chi.Router) {
		r.Use(mw.APIKeyAuth(s.services.APIKey, s.logger))
		r.Use(s.auditLogger.Middleware)

		r.Get("/ping", sandbox.Ping)
		r.With(mw.RequireScope("webhooks", "write")).Post("/events/test", sandbox.TestEvent)
		r.Post("/webhooks/verify", sandbox.Verify)
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	checks := map[string]string{}
	healthy := true

	if err := s.pool.Ping(ctx); err != nil {
		checks["db"] = err.Error()
		healthy = false
	} else {
		checks["db"] = "ok"
	}

	if _, err := s.temporalClient.CheckHealth(ctx, &temporalclient.CheckHealthRequest{}); err != nil {
		checks["temporal"] = err.Error()
		healthy = false
	} else {
		checks["temporal"] = "ok"
	}

	w.Header().Set("Content-Type", "application/json")
	if healthy {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(checks)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Close flushes the async audit writer. Call after the HTTP listener has
// drained.
func (s *Server) Close() {
	s.auditLogger.Close()
}

const scalarHTML = `<!DOCTYPE html>
<html>
<head>
  <title>Payment Sandbox API</title>
  <meta charset="utf-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1" />
</head>
<body>
  <script id="api-reference" data-url="/docs/openapi.json"></script>
  <script src="https://cdn.jsdelivr.net/npm/@scalar/api-reference"></script>
</body>
</html>`
