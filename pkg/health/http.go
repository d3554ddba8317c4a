package health

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/lewisedginton/chat_relay/pkg/logger"
)

// Response is the JSON body written by the probe handlers.
type Response struct {
	Status  string                 `json:"status"` // "healthy" | "unhealthy"
	Checks  map[string]CheckStatus `json:"checks,omitempty"`
	Message string                 `json:"message,omitempty"`
}

// CheckStatus is one check's entry in Response.
type CheckStatus struct {
	Status  string `json:"status"` // "ok" | "error"
	Error   string `json:"error,omitempty"`
	Latency string `json:"latency,omitempty"`
}

// Paths names the routes mounted by Routes.
type Paths struct {
	Liveness  string
	Readiness string
	Combined  string
}

// Handler serves the given probes: 200 when healthy, 503 otherwise.
func (c *Checker) Handler(probes ...Probe) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, err := c.Run(r.Context(), probes...)
		c.write(w, status, err)
	}
}

// LivenessHandler serves the liveness probe.
func (c *Checker) LivenessHandler() http.HandlerFunc { return c.Handler(Liveness) }

// ReadinessHandler serves the readiness probe.
func (c *Checker) ReadinessHandler() http.HandlerFunc { return c.Handler(Readiness) }

// Routes mounts the probe handlers on a chi router. Empty paths are skipped.
func (c *Checker) Routes(p Paths) http.Handler {
	r := chi.NewRouter()
	if p.Liveness != "" {
		r.Get(p.Liveness, c.LivenessHandler())
	}
	if p.Readiness != "" {
		r.Get(p.Readiness, c.ReadinessHandler())
	}
	if p.Combined != "" {
		r.Get(p.Combined, c.Handler(Liveness, Readiness))
	}
	return r
}

func (c *Checker) write(w http.ResponseWriter, status *Status, err error) {
	resp := Response{Status: "healthy", Checks: make(map[string]CheckStatus, len(status.Checks))}
	code := http.StatusOK
	if !status.Healthy {
		resp.Status = "unhealthy"
		code = http.StatusServiceUnavailable
		if err != nil {
			resp.Message = err.Error()
		}
	}

	for _, res := range status.Checks {
		cs := CheckStatus{Status: "ok", Latency: res.Latency.String()}
		if !res.Healthy {
			cs.Status = "error"
			cs.Error = res.Error
		}
		resp.Checks[res.Name] = cs
	}

	body, mErr := json.Marshal(resp)
	if mErr != nil {
		c.logger.Error("Failed to encode health response", logger.ErrorField(mErr))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(body)
}
