package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/stockwise/stockwise-core/internal/auth"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Health check (no auth required)
		r.Get("/health", s.handleHealth)

		// Auth endpoints. Refresh carries its own credential (the refresh
		// token in the Authorization header) so neither goes through the gate.
		r.Post("/auth/sign-in", s.handleSignIn)
		r.Put("/auth/refresh-token/{username}", s.handleRefreshToken)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Get("/auth/me", s.handleMe)

			// Person endpoints
			r.Route("/persons", func(r chi.Router) {
				r.Get("/", s.handleListPersons)
				r.Post("/", s.handleCreatePerson)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.handleGetPerson)
					r.Put("/", s.handleUpdatePerson)
					r.Delete("/", s.handleDeletePerson)
				})
			})

			// Product type endpoints
			r.Route("/product-types", func(r chi.Router) {
				r.Get("/", s.handleListProductTypes)
				r.Post("/", s.handleCreateProductType)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.handleGetProductType)
					r.Put("/", s.handleUpdateProductType)
					r.Delete("/", s.handleDeleteProductType)
					r.Get("/products", s.handleListProductsByType)
				})
			})

			// Product endpoints
			r.Route("/products", func(r chi.Router) {
				r.Get("/", s.handleListProducts)
				r.Post("/", s.handleCreateProduct)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.handleGetProduct)
					r.Put("/", s.handleUpdateProduct)
					r.Delete("/", s.handleDeleteProduct)
				})
			})

			// Admin-only routes
			r.Group(func(r chi.Router) {
				r.Use(s.requireAuthority(auth.AdminAuthority))

				r.Route("/users", func(r chi.Router) {
					r.Get("/", s.handleListUsers)
					r.Post("/", s.handleCreateUser)

					r.Route("/{id}", func(r chi.Router) {
						r.Get("/", s.handleGetUser)
						r.Patch("/", s.handleUpdateUser)
						r.Delete("/", s.handleDeleteUser)
						r.Put("/password", s.handleSetUserPassword)
						r.Post("/authorities", s.handleGrantAuthority)
						r.Delete("/authorities/{authority}", s.handleRevokeAuthority)
					})
				})

				r.Get("/authorities", s.handleListAuthorities)
				r.Get("/audit", s.handleListAuditTrail)
			})
		})
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
	})
}
