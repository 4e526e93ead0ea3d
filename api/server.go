/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the chi router and middleware stack. This is the wiring layer
  between URLs and handlers; the dashboard frontend consumes these routes.

ROUTE GROUPS:
  /api/refresh                 Snapshot freshness
  /api/status                  Sync/recalc timestamps
  /api/financials/*            Aggregate cache reads + recalculation
  /api/rates                   Job-rate table read/write
  /api/reports/*               Data-quality reports
  /api/projects, /api/employees  Snapshot pass-through for filters

SECURITY NOTE:
  No authentication; the server is meant for a single organization's
  internal network.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Route("/api", func(r chi.Router) {
		r.Post("/refresh", h.Refresh)
		r.Get("/status", h.Status)

		r.Route("/financials", func(r chi.Router) {
			r.Get("/", h.GetFinancials)
			r.Post("/recalculate", h.Recalculate)
		})

		r.Route("/rates", func(r chi.Router) {
			r.Get("/", h.GetRates)
			r.Put("/", h.PutRates)
		})

		r.Route("/reports", func(r chi.Router) {
			r.Get("/quality", h.QualityReport)
			r.Get("/long-entries", h.LongEntries)
		})

		r.Get("/projects", h.ListProjects)
		r.Get("/employees", h.ListEmployees)
	})

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	return r
}
