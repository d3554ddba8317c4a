package health

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	return resp
}

func TestHandlers(t *testing.T) {
	tests := []struct {
		name       string
		live       []*mockCheck
		ready      []*mockCheck
		handler    func(*Checker) http.HandlerFunc
		wantCode   int
		wantStatus string
		wantChecks map[string]string
	}{
		{
			name:       "liveness without checks",
			handler:    (*Checker).LivenessHandler,
			wantCode:   http.StatusOK,
			wantStatus: "healthy",
			wantChecks: map[string]string{},
		},
		{
			name:       "readiness healthy",
			ready:      []*mockCheck{{name: "store"}, {name: "transport"}},
			handler:    (*Checker).ReadinessHandler,
			wantCode:   http.StatusOK,
			wantStatus: "healthy",
			wantChecks: map[string]string{"store": "ok", "transport": "ok"},
		},
		{
			name:       "readiness with a failing store",
			ready:      []*mockCheck{{name: "store", err: errors.New("connection timeout")}, {name: "transport"}},
			handler:    (*Checker).ReadinessHandler,
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: "unhealthy",
			wantChecks: map[string]string{"store": "error", "transport": "ok"},
		},
		{
			name:       "liveness ignores readiness failures",
			live:       []*mockCheck{{name: "process"}},
			ready:      []*mockCheck{{name: "store", err: errors.New("down")}},
			handler:    (*Checker).LivenessHandler,
			wantCode:   http.StatusOK,
			wantStatus: "healthy",
			wantChecks: map[string]string{"process": "ok"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := New(WithFailureThreshold(1))
			for _, c := range tt.live {
				h.AddLivenessCheck(c)
			}
			for _, c := range tt.ready {
				h.AddReadinessCheck(c)
			}

			w := httptest.NewRecorder()
			tt.handler(h)(w, httptest.NewRequest(http.MethodGet, "/", nil))

			assert.Equal(t, tt.wantCode, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
			resp := decodeResponse(t, w)
			assert.Equal(t, tt.wantStatus, resp.Status)
			require.Len(t, resp.Checks, len(tt.wantChecks))
			for name, want := range tt.wantChecks {
				assert.Equal(t, want, resp.Checks[name].Status, name)
				assert.NotEmpty(t, resp.Checks[name].Latency)
			}
			if tt.wantCode != http.StatusOK {
				assert.NotEmpty(t, resp.Message)
			}
		})
	}
}

func TestRoutes(t *testing.T) {
	h := New(WithFailureThreshold(1))
	h.AddLivenessCheck(&mockCheck{name: "process"})
	h.AddReadinessCheck(&mockCheck{name: "store", err: errors.New("down")})

	router := h.Routes(Paths{Liveness: "/health/live", Readiness: "/health/ready", Combined: "/health"})

	tests := []struct {
		path     string
		wantCode int
	}{
		{"/health/live", http.StatusOK},
		{"/health/ready", http.StatusServiceUnavailable},
		{"/health", http.StatusServiceUnavailable},
		{"/health/unknown", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))
			assert.Equal(t, tt.wantCode, w.Code)
		})
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	resp := decodeResponse(t, w)
	assert.Len(t, resp.Checks, 2)
	assert.Equal(t, "down", resp.Checks["store"].Error)
}
