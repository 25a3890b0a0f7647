package middleware

import (
	"net/http"

	"masterhelp-backend/pkg/utils"
)

// MaxBodySize caps the request body size. Song uploads go through multipart
// bodies, so the cap has to leave room for the audio payload.
func MaxBodySize(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}

// RequireUserAgent rejects requests without a User-Agent header
func RequireUserAgent(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") == "" {
			utils.WriteBadRequestResponse(w, "User-Agent header is required")
			return
		}

		next.ServeHTTP(w, r)
	})
}
