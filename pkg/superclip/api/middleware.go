package api

import (
	"net/http"
	"strings"
)

// Middleware wraps an http.Handler.
type Middleware func(http.Handler) http.Handler

// CORSMiddleware grants cross-origin access to the listed origins.
// Empty slices mean any origin, the clip methods, and the headers the
// frontend sends; share links are opened from arbitrary pages, so the
// open default is the normal deployment.
func CORSMiddleware(allowedOrigins, allowedMethods, allowedHeaders []string) Middleware {
	if len(allowedMethods) == 0 {
		allowedMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	}
	if len(allowedHeaders) == 0 {
		allowedHeaders = []string{"Content-Type", "Authorization", "X-Request-ID"}
	}
	methods := strings.Join(allowedMethods, ", ")
	headers := strings.Join(allowedHeaders, ", ")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if grant := grantedOrigin(r.Header.Get("Origin"), allowedOrigins); grant != "" {
				h := w.Header()
				h.Set("Access-Control-Allow-Origin", grant)
				h.Set("Access-Control-Allow-Methods", methods)
				h.Set("Access-Control-Allow-Headers", headers)
				if grant != "*" {
					// Credentials may not combine with a wildcard.
					h.Set("Access-Control-Allow-Credentials", "true")
				}
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// grantedOrigin returns the Allow-Origin value for a request origin,
// or "" when the origin is denied.
func grantedOrigin(origin string, allowedOrigins []string) string {
	if len(allowedOrigins) == 0 {
		if origin == "" {
			return "*"
		}
		return origin
	}
	for _, allowed := range allowedOrigins {
		if allowed == "*" {
			if origin == "" {
				return "*"
			}
			return origin
		}
		if allowed == origin {
			return origin
		}
	}
	return ""
}

// RequestSizeLimitMiddleware limits the size of request bodies. The
// limit should leave headroom above the file size cap because uploads
// arrive base64-encoded inside a JSON envelope.
func RequestSizeLimitMiddleware(maxBytes int64) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

			next.ServeHTTP(w, r)
		})
	}
}
