package httpmiddleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/lewisedginton/chat_relay/pkg/logger"
)

func TestCorrelationIDMiddleware(t *testing.T) {
	var headerID, contextID string
	handler := CorrelationID()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headerID = r.Header.Get(logger.CorrelationIDHeader)
		contextID = logger.GetCorrelationIDFromContext(r.Context())
	}))

	existing := uuid.New().String()

	tests := []struct {
		name     string
		incoming string
		keep     bool
	}{
		{"generates when missing", "", false},
		{"keeps a valid UUID", existing, true},
		{"replaces an invalid value", "not-a-uuid", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/chat_history", nil)
			if tt.incoming != "" {
				req.Header.Set(logger.CorrelationIDHeader, tt.incoming)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if _, err := uuid.Parse(headerID); err != nil {
				t.Fatalf("correlation ID %q is not a UUID", headerID)
			}
			if headerID != contextID {
				t.Errorf("header ID %q != context ID %q", headerID, contextID)
			}
			if got := rec.Header().Get(logger.CorrelationIDHeader); got != headerID {
				t.Errorf("response header = %q, want %q", got, headerID)
			}
			if tt.keep && headerID != tt.incoming {
				t.Errorf("expected %q to be kept, got %q", tt.incoming, headerID)
			}
			if !tt.keep && headerID == tt.incoming {
				t.Errorf("expected %q to be replaced", tt.incoming)
			}
		})
	}
}
