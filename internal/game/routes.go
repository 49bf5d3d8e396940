package game

import "github.com/go-chi/chi/v5"

// RegisterRoutes mounts all game endpoints onto the given router under the
// /game prefix.
func RegisterRoutes(r chi.Router, h *Handlers) {
	r.Route("/game", func(r chi.Router) {
		r.Get("/pools", h.ListPools)
		r.Get("/pools/{operation}/{difficulty}", h.GetPool)
		r.Get("/highscores/{operation}/{difficulty}", h.HighScore)

		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", h.CreateSession)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetSession)
				r.Delete("/", h.FinishSession)
				r.Put("/config", h.Configure)
				r.Put("/disks/{side}", h.Select)
				r.Post("/disks/{side}/rotate", h.Rotate)
				r.Post("/answer", h.Answer)
				r.Post("/pause", h.Pause)
				r.Post("/resume", h.Resume)
				r.Post("/restart", h.Restart)
			})
		})
	})
}
