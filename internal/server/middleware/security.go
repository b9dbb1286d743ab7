package middleware

import (
	"net/http"
	"regexp"
)

var safeFilenameRegex = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

// SecurityHeaders adds the headers of a read-only JSON API. Downloaded files
// are served with the same headers, so nothing they contain can run scripts.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "no-referrer")
		w.Header().Set("Content-Security-Policy", "default-src 'none'; img-src 'self'; frame-ancestors 'none'; sandbox")

		next.ServeHTTP(w, r)
	})
}

// SanitizeFilename makes s safe for a Content-Disposition header.
func SanitizeFilename(s string) string {
	safe := safeFilenameRegex.ReplaceAllString(s, "_")
	if len(safe) > 100 {
		safe = safe[len(safe)-100:]
	}
	if safe == "" {
		safe = "download"
	}
	return safe
}
