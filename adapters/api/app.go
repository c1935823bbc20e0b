package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter builds the root HTTP handler: health check plus the API engine under /api
func NewRouter(s *Server) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Mount("/api", s.Engine())
	return r
}

// NewHTTPServer wraps the router in an http.Server listening on port
func NewHTTPServer(port string, s *Server) *http.Server {
	return &http.Server{
		Addr:              ":" + port,
		Handler:           NewRouter(s),
		ReadHeaderTimeout: 10 * time.Second,
	}
}
