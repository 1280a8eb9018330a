package middleware

import (
	"net/http"
	"strings"
)

const (
	corsAllowHeaders  = "Accept, Content-Type, Content-Length, Accept-Encoding, Authorization, If-None-Match, If-Modified-Since, Connect-Protocol-Version, Connect-Timeout-Ms, Connect-Content-Encoding, Connect-Accept-Encoding"
	corsExposeHeaders = "ETag, Last-Modified, Cache-Control, Connect-Content-Encoding, Connect-Accept-Encoding"
)

// Origins is a browser origin allow list. The zero value and an empty list
// accept every origin.
type Origins struct {
	allow map[string]bool
}

func NewOrigins(allowed []string) Origins {
	allow := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		if o = strings.TrimSpace(o); o != "" {
			allow[o] = true
		}
	}
	return Origins{allow: allow}
}

// Allows reports whether origin may talk to the gateway. Requests without an
// Origin header do not come from a browser page and are always allowed.
func (o Origins) Allows(origin string) bool {
	origin = strings.TrimSpace(origin)
	return origin == "" || len(o.allow) == 0 || o.allow[origin]
}

// CORS answers preflight requests and decorates responses for browser
// clients. An empty allow list accepts every origin.
func CORS(allowed []string) func(http.Handler) http.Handler {
	origins := NewOrigins(allowed)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := strings.TrimSpace(r.Header.Get("Origin"))
			switch {
			case origin == "":
				w.Header().Set("Access-Control-Allow-Origin", "*")
			case origins.Allows(origin):
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Credentials", "true")
				w.Header().Add("Vary", "Origin")
			default:
				if r.Method == http.MethodOptions {
					w.WriteHeader(http.StatusForbidden)
					return
				}
				next.ServeHTTP(w, r)
				return
			}
			w.Header().Set("Access-Control-Allow-Methods", "GET, HEAD, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", corsAllowHeaders)
			w.Header().Set("Access-Control-Expose-Headers", corsExposeHeaders)
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
