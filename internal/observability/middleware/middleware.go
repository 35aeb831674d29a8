// Package middleware provides HTTP middlewares shared by the local listeners.
package middleware

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/httplog/v3"
)

// Recovery recovers from panics in HTTP handlers and returns HTTP 500 to the client.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if recover() != nil {
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				// Logging of panics is handled in Logging middleware
			}
		}()

		next.ServeHTTP(w, r)
	})
}

// Logging logs HTTP requests with method, path, status, and duration.
// The query string is hidden from the logger because the authorization
// redirect carries the code there; the wrapped handler still sees it.
func Logging(logger *slog.Logger) func(http.Handler) http.Handler {
	requestLogger := httplog.RequestLogger(logger, &httplog.Options{
		Schema: httplog.SchemaECS.Concise(true),

		// Explicitly prevent logging headers/body to avoid leaking sensitive data
		LogRequestHeaders:  []string{"Content-Type", "Origin"},
		LogResponseHeaders: []string{},
		LogRequestBody:     nil,
		LogResponseBody:    nil,

		RecoverPanics: false, // use dedicated middleware, panics are logged regardless
	})

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			original := r.URL
			restore := http.HandlerFunc(func(w http.ResponseWriter, logged *http.Request) {
				req := logged.Clone(logged.Context())
				req.URL = original
				req.RequestURI = r.RequestURI
				next.ServeHTTP(w, req)
			})
			requestLogger(restore).ServeHTTP(w, redactQuery(r))
		})
	}
}

func redactQuery(r *http.Request) *http.Request {
	if r.URL.RawQuery == "" {
		return r
	}
	u := *r.URL
	u.RawQuery = ""
	redacted := r.Clone(r.Context())
	redacted.URL = &u
	redacted.RequestURI = u.RequestURI()
	return redacted
}

// Chain applies middlewares to a handler in the order they appear.
// The first middleware in the slice is the outermost (executes first).
func Chain(h http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}
