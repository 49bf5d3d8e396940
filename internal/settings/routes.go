package settings

import "github.com/go-chi/chi/v5"

// RegisterRoutes mounts the settings endpoints under /settings.
func RegisterRoutes(r chi.Router, h *Handlers) {
	r.Route("/settings", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Put("/", h.Put)
		r.Post("/music/toggle", h.ToggleMusic)
	})
}
