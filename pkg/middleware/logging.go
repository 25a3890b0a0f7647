package middleware

import (
	"fmt"
	"net/http"
	"time"

	"masterhelp-backend/pkg/config"

	"github.com/go-chi/chi/v5/middleware"
)

// Logger picks the request logger for the environment
func Logger(cfg *config.Config) func(http.Handler) http.Handler {
	if cfg.IsProduction() {
		return structuredLogger()
	}
	return middleware.Logger
}

// structuredLogger writes one JSON line per request
func structuredLogger() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			duration := time.Since(start)

			userInfo := "anonymous"
			if user, ok := GetUserFromContext(r.Context()); ok && user != nil {
				userInfo = user.Username
			}

			fmt.Printf(`{"time":"%s","method":"%s","path":"%s","status":%d,"duration":"%s","user":"%s","ip":"%s","user_agent":"%s"}`+"\n",
				time.Now().Format(time.RFC3339),
				r.Method,
				r.URL.Path,
				ww.Status(),
				duration,
				userInfo,
				getClientIP(r),
				r.UserAgent(),
			)
		})
	}
}

// getClientIP resolves the client address behind proxies
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return xff
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	return r.RemoteAddr
}
