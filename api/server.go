/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestLogging: hlog logger in context, request id, access line
  2. Recoverer:      Panic recovery (500 instead of crash)
  3. Metrics:        Prometheus request metrics (optional)
  4. CORS:           Cross-origin requests for frontend
  /api group only:
  5. TenantGate:          X-Tenant-ID / X-Actor-ID
  6. RequireSubscription: 402 when the tenant plan is inactive

ROUTE GROUPS:
  /api/health           Liveness and store reachability (no identity)
  /api/employees/*      Employee management and reports
  /api/settings         Tenant tax tables and proration rules
  /api/calculations/*   Monthly calculations
  /api/burden           Burden by pay item
  /api/audit            Audit trail
  /api/scenarios/*      Demo scenarios (dev only)
  /metrics              Prometheus (when enabled)

SEE ALSO:
  - handlers.go: Handler implementations
  - middleware.go: identity and subscription gates
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/warp/labor-engine/billing"
)

// RouterOptions configures NewRouter.
type RouterOptions struct {
	Logger         zerolog.Logger
	AllowedOrigins []string

	// Gate defaults to an always-active gate.
	Gate billing.Gate

	// Metrics is optional. When set, requests are instrumented and
	// /metrics is served.
	Metrics interface {
		Middleware(http.Handler) http.Handler
		Handler() http.Handler
	}

	// Scenarios mounts the demo scenario routes.
	Scenarios bool
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	gate := opts.Gate
	if gate == nil {
		gate = billing.StaticGate(true)
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(RequestLogging(opts.Logger)...)
	r.Use(middleware.Recoverer)
	if opts.Metrics != nil {
		r.Use(opts.Metrics.Middleware)
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", HeaderTenantID, HeaderActorID},
		ExposedHeaders:   []string{HeaderRequestID},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics.Handler())
	}

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health)

		r.Group(func(r chi.Router) {
			r.Use(TenantGate)
			r.Use(RequireSubscription(gate))

			// Employee routes
			r.Route("/employees", func(r chi.Router) {
				r.Get("/", h.ListEmployees)
				r.Post("/", h.SaveEmployee)
				r.Get("/{id}", h.GetEmployee)
				r.Put("/{id}", h.SaveEmployee)
				r.Get("/{id}/accruals", h.GetAccruals)
				r.Get("/{id}/burden", h.GetBurden)
			})

			// Settings routes
			r.Get("/settings", h.GetSettings)
			r.Put("/settings", h.PutSettings)

			// Calculation routes
			r.Route("/calculations", func(r chi.Router) {
				r.Get("/", h.ListCalculations)
				r.Post("/", h.CreateCalculation)
				r.Post("/batch", h.RunBatch)
				r.Get("/{id}", h.GetCalculation)
			})

			r.Get("/burden", h.BurdenSummary)
			r.Get("/audit", h.ListAudit)

			// Scenario routes
			if opts.Scenarios {
				r.Route("/scenarios", func(r chi.Router) {
					r.Get("/", h.ListScenarios)
					r.Post("/load", h.LoadScenario)
				})
			}
		})
	})

	return r
}
