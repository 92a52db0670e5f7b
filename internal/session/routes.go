package session

import "github.com/go-chi/chi/v5"

// RegisterRoutes mounts the session endpoints under /sessions and the
// stateless parser under /parse.
func RegisterRoutes(r chi.Router, h *Handler) {
	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", h.Create)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.Get)
			r.Delete("/", h.Delete)
			r.Post("/digit", h.Digit)
			r.Post("/decimal", h.Decimal)
			r.Post("/operator", h.Operator)
			r.Post("/calculate", h.Calculate)
			r.Post("/clear", h.Clear)
			r.Post("/clear-entry", h.ClearEntry)
			r.Post("/voice", h.Voice)
			r.Get("/stream", h.Stream)
		})
	})
	r.Post("/parse", h.Parse)
}
