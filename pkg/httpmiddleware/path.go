package httpmiddleware

import (
	"net/http"
	"strings"
)

// StripPrefix removes prefix from the request path when it matches a whole
// path segment, so "/prod" strips "/prod/chat_history" but not "/production".
func StripPrefix(prefix string) func(http.Handler) http.Handler {
	prefix = strings.TrimSuffix(prefix, "/")
	return func(next http.Handler) http.Handler {
		if prefix == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if rest, ok := strings.CutPrefix(r.URL.Path, prefix); ok && (rest == "" || rest[0] == '/') {
				if rest == "" {
					rest = "/"
				}
				r.URL.Path = rest
				r.URL.RawPath = ""
			}
			next.ServeHTTP(w, r)
		})
	}
}
