package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"ad-routing-service/internal/observability"
)

func Router(h *Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(observability.Measure)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(2 * time.Second))

	r.Route("/api/targets", func(r chi.Router) {
		r.Post("/", h.CreateTarget)
		r.Get("/", h.ListTargets)
		r.Get("/{id}", h.GetTarget)
		r.Post("/{id}", h.UpdateTarget)
	})
	r.Post("/route", h.Route)

	r.Get("/healthz", h.Health)
	r.Handle("/metrics", observability.MetricsHandler())
	return r
}
