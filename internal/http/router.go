package http

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/whereabout/gate-ticketing/internal/observability"
	"github.com/whereabout/gate-ticketing/internal/rateLimit"
)

func SetupRouter(h *Handlers, logger observability.Logger, rl *rateLimit.RateLimiter, stationKey string) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(RequestIDMiddleware)
	r.Use(LoggerMiddleware(logger))
	r.Use(TracingMiddleware)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/attendees/{id}/tickets", h.TicketsForAttendee)
		r.Get("/tickets/{id}/qr.png", h.TicketQR)

		r.Group(func(r chi.Router) {
			r.Use(IdempotencyKeyMiddleware)
			r.Post("/tickets", h.CreateTicket)
		})

		// Repeating a scan is the exit path, not a retry, so gate scans
		// carry no idempotency key.
		r.Group(func(r chi.Router) {
			r.Use(StationAuthMiddleware(stationKey))
			r.Use(RateLimitMiddleware(rl))
			r.Post("/gate/scans", h.GateScan)
		})

		r.Get("/healthz", h.Healthz)
		r.Get("/readyz", h.Readyz)
	})

	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	return r
}
