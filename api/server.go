/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for the frontend
  5. Auth:       Bearer token check on /api, skipped when not configured

ROUTE GROUPS:
  /api/auth/login           Operator login
  /api/vehicles/*           Vehicle records
  /api/outside-interests/*  Outside-interest records
  /api/loans/*              Borrowed loans
  /api/payments/*           Payment ledger
  /api/ledger/*             Reconciliation, closure, status checks
  /api/dashboard            Aggregate outstanding view
  /healthz                  Liveness probe (unauthenticated)

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

// RouterOptions tunes the middleware stack.
type RouterOptions struct {
	AllowedOrigins []string
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	r := chi.NewRouter()

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:5173", "http://localhost:8080"}
	}

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/login", h.Login)

		// Everything else requires a bearer token when auth is configured.
		r.Group(func(r chi.Router) {
			r.Use(h.Auth.Middleware)

			r.Route("/vehicles", func(r chi.Router) {
				r.Get("/", h.ListVehicles)
				r.Post("/", h.CreateVehicle)
				r.Get("/{id}", h.GetVehicle)
				r.Delete("/{id}", h.DeleteVehicle)
			})

			r.Route("/outside-interests", func(r chi.Router) {
				r.Get("/", h.ListOutsideInterests)
				r.Post("/", h.CreateOutsideInterest)
				r.Get("/{id}", h.GetOutsideInterest)
				r.Delete("/{id}", h.DeleteOutsideInterest)
			})

			r.Route("/loans", func(r chi.Router) {
				r.Get("/", h.ListLoans)
				r.Post("/", h.CreateLoan)
				r.Get("/{id}", h.GetLoan)
			})

			r.Route("/payments", func(r chi.Router) {
				r.Get("/", h.ListAllPayments)
				r.Post("/", h.CreatePayment)
			})

			r.Route("/ledger/{source}/{id}", func(r chi.Router) {
				r.Get("/", h.GetLedger)
				r.Get("/closure", h.GetClosureVerdict)
				r.Post("/close", h.CloseInstrument)
				r.Get("/status-check", h.CheckStatuses)
			})

			r.Get("/dashboard", h.GetDashboard)
		})
	})

	return r
}
