package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter exposes the read-only status endpoints.
func NewRouter(h *Handlers) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"http://localhost:*", "https://localhost:*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", h.Health)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/stats", h.GetStats)
		r.Get("/ledger", h.GetLedger)
		r.Get("/ledger/{sku}", h.GetLedgerEntry)
		r.Get("/publications", h.ListPublications)
	})

	return r
}

// NewServer wraps the router with the timeouts used for the status server.
func NewServer(addr string, h *Handlers) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      NewRouter(h),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}
