package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
)

// Logger returns the standard chi request logger
func Logger() func(http.Handler) http.Handler {
	return middleware.Logger
}

// CustomLogger logs requests with method, path, status and duration.
// Used in development where the chi logger is too noisy.
func CustomLogger() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			duration := time.Since(start)
			status := ww.Status()

			emoji := "✅"
			if status >= 500 {
				emoji = "💥"
			} else if status >= 400 {
				emoji = "⚠️"
			}

			fmt.Printf("%s %s %s %d %v\n", emoji, r.Method, r.URL.Path, status, duration)
		})
	}
}
