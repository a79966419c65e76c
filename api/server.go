/*
server.go - Router setup and middleware

PURPOSE:
  Builds the chi router: request logging, panic recovery, CORS, JWT
  authentication on /api, and the credit-score gate in front of the
  ledger endpoints. /healthz and /metrics stay outside auth.

ROUTE LAYOUT:
  /healthz                      liveness probe
  /metrics                      Prometheus scrape endpoint
  /api (JWT required)
    POST /scores                submit a credit score
    (gated: score >= threshold)
      POST /payments
      GET  /payments
      GET  /rewards
      POST /rewards/redeem
      GET  /rewards/catalog
      POST /advisor
*/
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/paylane/rewards-ledger/auth"
)

// RouterConfig carries the HTTP-surface knobs out of the main config.
type RouterConfig struct {
	JWTSecret   string
	CORSOrigins []string
}

// NewRouter wires all routes and middleware around the handler.
func NewRouter(h *Handler, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", h.Healthz)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(auth.Middleware(cfg.JWTSecret))

		// The score submission endpoint is the way in; everything else
		// sits behind the gate.
		r.Post("/scores", h.SubmitScore)

		r.Group(func(r chi.Router) {
			r.Use(h.RequireEligible)

			r.Post("/payments", h.RecordPayment)
			r.Get("/payments", h.ListTransactions)

			r.Get("/rewards", h.GetBalance)
			r.Post("/rewards/redeem", h.Redeem)
			r.Get("/rewards/catalog", h.ListCatalog)

			r.Post("/advisor", h.Advise)
		})
	})

	return r
}

// Healthz reports process liveness.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
