package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/studyforge/studyforge/internal/api"
	"github.com/studyforge/studyforge/internal/api/handlers"
	"github.com/studyforge/studyforge/internal/api/middleware"
)

type RouterConfig struct {
	AuthValidator   middleware.AuthValidator
	DocumentHandler *handlers.DocumentHandler
	SearchHandler   *handlers.SearchHandler
	ProjectHandler  *handlers.ProjectHandler
	// MaxBodyBytes bounds request bodies; uploads are the largest.
	MaxBodyBytes int64
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	maxBodyBytes := cfg.MaxBodyBytes
	if maxBodyBytes <= 0 {
		maxBodyBytes = 50 * 1024 * 1024
	}

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog)
	r.Use(middleware.MaxBodyBytes(maxBodyBytes))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.APIKeyAuth(cfg.AuthValidator))

		r.Route("/documents", func(r chi.Router) {
			r.Post("/", cfg.DocumentHandler.Upload)
			r.Get("/", cfg.DocumentHandler.List)
			r.Get("/{id}", cfg.DocumentHandler.Get)
			r.Get("/{id}/download", cfg.DocumentHandler.GetDownloadURL)
			r.Delete("/{id}", cfg.DocumentHandler.Delete)
		})

		r.Post("/search", cfg.SearchHandler.Search)

		r.Route("/projects", func(r chi.Router) {
			r.Post("/", cfg.ProjectHandler.Create)
			r.Get("/", cfg.ProjectHandler.List)
			r.Get("/{id}", cfg.ProjectHandler.Get)
			r.Delete("/{id}", cfg.ProjectHandler.Delete)
		})
	})

	return r
}
