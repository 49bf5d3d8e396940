package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"disk-spinner/internal/game"
	"disk-spinner/internal/handlers"
	"disk-spinner/internal/observability"
	"disk-spinner/internal/settings"
)

// Deps are the domain handlers mounted by NewRouter. Gatherer defaults to
// the Prometheus default registry.
type Deps struct {
	Game     *game.Handlers
	Settings *settings.Handlers
	Gatherer prometheus.Gatherer
}

func NewRouter(deps Deps) http.Handler {

	r := chi.NewRouter()

	r.Use(observability.RequestIDMiddleware)
	r.Use(observability.TracingMiddleware)
	r.Use(observability.LoggingMiddleware)
	r.Use(middleware.Recoverer)

	r.Get("/health", handlers.Health)

	if deps.Gatherer != nil {
		r.Handle("/metrics", observability.PrometheusHandlerFor(deps.Gatherer))
	} else {
		r.Handle("/metrics", observability.PrometheusHandler())
	}

	if deps.Game != nil {
		game.RegisterRoutes(r, deps.Game)
	}
	if deps.Settings != nil {
		settings.RegisterRoutes(r, deps.Settings)
	}

	return r
}
