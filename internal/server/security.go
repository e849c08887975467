package server

import "net/http"

// securityHeaders sets conservative browser-facing headers on every
// response. The API serves JSON and HTML fragments; none of it is meant to
// be framed by another page or sniffed into a different content type.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")
		next.ServeHTTP(w, r)
	})
}
