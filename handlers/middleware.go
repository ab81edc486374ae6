package handlers

import "net/http"

// contentSecurityPolicy allows the episode players, which are third party
// iframes served over https.
const contentSecurityPolicy = "default-src 'self'; img-src 'self' https: data:; frame-src https:; style-src 'self' 'unsafe-inline'; object-src 'none'; base-uri 'self'"

// SecurityHeaders sets the response headers every page and API reply carries.
// HSTS is only sent when enabled and the request arrived over TLS.
func SecurityHeaders(hsts bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
			h.Set("Content-Security-Policy", contentSecurityPolicy)
			if hsts && (r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https") {
				h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
			}
			next.ServeHTTP(w, r)
		})
	}
}
