package shield

import "net/http"

// HeaderConfig lists the security headers the API sends. An empty field
// leaves that header unset.
type HeaderConfig struct {
	CSP                 string
	XFrameOptions       string
	XContentTypeOptions string
	ReferrerPolicy      string
	PermissionsPolicy   string
}

// DefaultHeaders suits the JSON API and the bundled static page, which
// opens a WebSocket back to the same host.
func DefaultHeaders() HeaderConfig {
	return HeaderConfig{
		CSP:                 "default-src 'self'; script-src 'self'; style-src 'self' 'unsafe-inline'; img-src 'self' data: https:; connect-src 'self' ws: wss:; frame-ancestors 'none'",
		XFrameOptions:       "DENY",
		XContentTypeOptions: "nosniff",
		ReferrerPolicy:      "strict-origin-when-cross-origin",
		PermissionsPolicy:   "camera=(), microphone=(), geolocation=()",
	}
}

func (c HeaderConfig) pairs() [][2]string {
	all := [][2]string{
		{"X-Content-Type-Options", c.XContentTypeOptions},
		{"X-Frame-Options", c.XFrameOptions},
		{"Referrer-Policy", c.ReferrerPolicy},
		{"Content-Security-Policy", c.CSP},
		{"Permissions-Policy", c.PermissionsPolicy},
	}
	out := all[:0]
	for _, p := range all {
		if p[1] != "" {
			out = append(out, p)
		}
	}
	return out
}

// SecurityHeaders sets cfg's headers before the handler writes anything.
func SecurityHeaders(cfg HeaderConfig) func(http.Handler) http.Handler {
	set := cfg.pairs()
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			for _, p := range set {
				h.Set(p[0], p[1])
			}
			next.ServeHTTP(w, r)
		})
	}
}
