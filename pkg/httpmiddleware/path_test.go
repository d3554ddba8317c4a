package httpmiddleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestStripPrefix(t *testing.T) {
	echoPath := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(r.URL.Path))
	})

	tests := []struct {
		name   string
		prefix string
		path   string
		want   string
	}{
		{"strips stage prefix", "/prod", "/prod/chat_history", "/chat_history"},
		{"trailing slash on prefix", "/prod/", "/prod/mercurio_chat", "/mercurio_chat"},
		{"exact match becomes root", "/prod", "/prod", "/"},
		{"partial segment untouched", "/prod", "/production/chat_history", "/production/chat_history"},
		{"other prefix untouched", "/prod", "/dev/chat_history", "/dev/chat_history"},
		{"empty prefix does nothing", "", "/prod/chat_history", "/prod/chat_history"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			StripPrefix(tt.prefix)(echoPath).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
			if got := rec.Body.String(); got != tt.want {
				t.Errorf("StripPrefix(%q) on %q = %q, want %q", tt.prefix, tt.path, got, tt.want)
			}
		})
	}
}
