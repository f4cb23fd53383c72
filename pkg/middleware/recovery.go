package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"taskboard-backend/pkg/utils"
)

// Recovery converts panics into a 500 envelope instead of a dropped connection
func Recovery() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					fmt.Printf("💥 Panic recovered: %v\n%s\n", rec, debug.Stack())
					utils.WriteInternalServerErrorResponse(w, "Internal server error")
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
