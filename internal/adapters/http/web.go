package web

import (
	"context"
	"net/http"
	"time"

	"shepherd/internal/adapters/http/middleware"
	"shepherd/internal/adapters/metrics"
	"shepherd/internal/application/orchestrators"
	"shepherd/internal/application/projections"
)

// Pinger reports database liveness.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Deps holds everything the JSON API needs.
type Deps struct {
	DB           Pinger
	Availability orchestrators.AvailabilityDeps
	Appointments orchestrators.AppointmentDeps
	Directory    orchestrators.DirectoryDeps
	Queries      projections.DirectoryDeps
	Token        middleware.TokenConfig
	Limiter      *middleware.RateLimiter // nil disables rate limiting
	Metrics      *metrics.Metrics        // nil disables /metrics
	SlowRequest  time.Duration
}

// api carries Deps into the handlers.
type api struct {
	Deps
}

// NewMux wires HTTP handlers for the scheduling API.
// Timing wraps the ServeMux directly so it sees the matched pattern; identity
// is resolved per route so /healthz and /metrics stay public.
func NewMux(deps Deps) http.Handler {
	a := &api{Deps: deps}
	mux := http.NewServeMux()
	a.registerRoutes(mux)

	var observer middleware.RequestObserver
	if deps.Metrics != nil {
		observer = deps.Metrics
	}

	mws := []func(http.Handler) http.Handler{middleware.SecurityHeaders}
	if deps.Limiter != nil {
		mws = append(mws, middleware.RateLimit(deps.Limiter))
	}
	mws = append(mws, middleware.Timing(observer, deps.SlowRequest))
	return middleware.Chain(mux, mws...)
}

func (a *api) registerRoutes(mux *http.ServeMux) {
	auth := middleware.RequireActor(a.Token)
	handle := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, auth(h))
	}

	handle("GET /api/availability", a.handleListAvailability)
	handle("POST /api/availability", a.handleCreateAvailability)
	handle("GET /api/availability/{id}", a.handleGetAvailability)
	handle("PATCH /api/availability/{id}", a.handleUpdateAvailability)
	handle("DELETE /api/availability/{id}", a.handleDeleteAvailability)

	handle("GET /api/appointments", a.handleListAppointments)
	handle("POST /api/appointments", a.handleCreateAppointment)
	handle("GET /api/appointments/{id}", a.handleGetAppointment)
	handle("PATCH /api/appointments/{id}", a.handleUpdateAppointment)
	handle("DELETE /api/appointments/{id}", a.handleDeleteAppointment)

	handle("GET /api/counselors", a.handleListCounselors)
	handle("GET /api/accounts", a.handleListAccounts)
	handle("PUT /api/accounts/{id}", a.handleUpsertAccount)

	mux.HandleFunc("GET /healthz", a.handleHealth)
	if a.Metrics != nil {
		mux.Handle("GET /metrics", a.Metrics.Handler())
	}
}

// handleHealth answers the liveness probe.
// POST: 200 when the database answers a ping within two seconds, 503 otherwise
func (a *api) handleHealth(w http.ResponseWriter, r *http.Request) {
	if a.DB != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := a.DB.PingContext(ctx); err != nil {
			logInternal(r, err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
