/*
server.go - HTTP router and middleware configuration

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for the admin frontend

SECURITY NOTE:
  Authentication and role checks live in the surrounding deployment
  (reverse proxy / gateway); every endpoint here assumes an
  administrative caller.
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		// The issue register core
		r.Route("/register", func(r chi.Router) {
			r.Get("/", h.ListEntries)
			r.Post("/assign", h.Assign)
			r.Post("/return", h.Return)
			r.Get("/overdue", h.Overdue)
			r.Get("/statistics", h.Statistics)
			r.Get("/users/{id}/active", h.ActiveForUser)
			r.Get("/assets/{id}/history", h.AssetHistory)
		})

		// Custody request intake
		r.Route("/requests", func(r chi.Router) {
			r.Get("/", h.ListRequests)
			r.Post("/", h.CreateRequest)
			r.Get("/{id}", h.GetRequest)
			r.Post("/{id}/approve", h.ApproveRequest)
			r.Post("/{id}/reject", h.RejectRequest)
		})

		// Fleet registration
		r.Route("/assets", func(r chi.Router) {
			r.Get("/", h.ListAssets)
			r.Post("/", h.RegisterAsset)
			r.Get("/{id}", h.GetAsset)
		})

		// Holder directory
		r.Route("/holders", func(r chi.Router) {
			r.Get("/", h.ListHolders)
			r.Post("/", h.CreateHolder)
		})
	})

	return r
}
