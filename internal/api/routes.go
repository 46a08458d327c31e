package api

import (
	"github.com/go-chi/chi/v5"
)

// setupAPIRoutes sets up API v1 routes
func (s *RESTServer) setupAPIRoutes(r chi.Router) {
	// Health check
	r.Get("/health", s.HandleHealth)
	r.Get("/", s.HandleRoot)

	// Auth routes (public)
	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", s.HandleLogin)
		r.Post("/refresh", s.HandleRefresh)
	})

	// Repeaters
	r.Route("/repeaters", func(r chi.Router) {
		r.Get("/", s.HandleListRepeaters)
		r.Route("/{pubkey}", func(r chi.Router) {
			r.Get("/", s.HandleGetRepeater)
			r.Get("/history", s.HandleGetHistory)
			r.Post("/ping", s.HandlePing)
		})
	})

	// Activity log
	r.Get("/logs", s.HandleListLogs)

	// Live feeds
	r.Get("/stream", s.HandleStream)
	r.Get("/ws", s.HandleWebSocket)

	// Settings (protected)
	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Get("/settings", s.HandleGetSettings)
		r.Put("/settings", s.HandleUpdateSettings)
	})
}
