package httpmiddleware

import (
	"net/http"

	"github.com/lewisedginton/chat_relay/pkg/logger"
)

// CorrelationID makes sure every request carries a UUID correlation ID. A valid
// UUID supplied by the caller (typically API Gateway) is kept, anything else is
// replaced. The ID is echoed on the response and stored in the request context.
func CorrelationID() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r, id := logger.EnsureHTTPCorrelationID(r)
			w.Header().Set(logger.CorrelationIDHeader, id)
			next.ServeHTTP(w, r)
		})
	}
}
