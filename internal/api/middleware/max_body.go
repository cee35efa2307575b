package middleware

import (
	"net/http"

	"github.com/studyforge/studyforge/internal/api"
)

// MaxBodyBytes rejects oversized request bodies. Uploads are the only large
// requests this API takes, so one limit covers every route. A declared
// Content-Length over the limit fails fast; chunked bodies are cut off by
// MaxBytesReader once they cross it.
func MaxBodyBytes(limit int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limit <= 0 || r.Body == nil {
				next.ServeHTTP(w, r)
				return
			}

			if r.ContentLength != -1 && r.ContentLength > limit {
				api.Error(w, http.StatusRequestEntityTooLarge, "request body too large")
				return
			}

			r.Body = http.MaxBytesReader(w, r.Body, limit)
			next.ServeHTTP(w, r)
		})
	}
}
