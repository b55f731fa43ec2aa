// Package http wires the gateway's HTTP surface onto chi.
package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"tokengate/internal/platform/metrics"
	"tokengate/internal/platform/middleware"
)

// NewRouter assembles the middleware chain and mounts every route.
func NewRouter(auth *AuthHandler, m *metrics.Metrics, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(middleware.Instrument(logger, m))

	r.Route("/auth", func(r chi.Router) {
		r.Get("/status", auth.Status)
		r.Post("/google", auth.SignInGoogle)
		r.Post("/apple", auth.SignInApple)
		r.Post("/refresh", auth.Refresh)
		r.Post("/revoke", auth.Revoke)
	})

	r.Handle("/metrics", m.Handler())

	return r
}
