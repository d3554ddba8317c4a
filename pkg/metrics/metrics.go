// Package metrics provides Prometheus metrics collection for HTTP requests and relay traffic.
package metrics

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/lewisedginton/chat_relay/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	subsystem = "chat_relay"
)

// Metrics provides Prometheus metrics collection for HTTP requests and relay outcomes.
// The relay methods are safe to call when relay counters were not enabled.
type Metrics struct {
	reg *prometheus.Registry

	TotalHTTPRequestsCounter prometheus.Counter
	HTTPDurationHistogram    prometheus.Histogram

	httpMu               sync.Mutex
	HTTPRequestsCounters map[int]prometheus.Counter

	RelaysCounter     *prometheus.CounterVec
	DeliveriesCounter *prometheus.CounterVec
	LifecycleCounter  *prometheus.CounterVec
	FallbacksCounter  *prometheus.CounterVec

	customMetrics []prometheus.Collector

	log logger.Logger
}

// NewMetrics creates a new Metrics instance with the specified collectors enabled.
func NewMetrics(httpCounters, relayCounters bool, l logger.Logger) *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		log: l,
	}
	if httpCounters {
		m.TotalHTTPRequestsCounter = prometheus.NewCounter(prometheus.CounterOpts{
			Subsystem: subsystem,
			Name:      "total_http_requests",
			Help:      "Total HTTP requests",
		})
		m.reg.MustRegister(m.TotalHTTPRequestsCounter)
		m.HTTPRequestsCounters = make(map[int]prometheus.Counter)

		m.HTTPDurationHistogram = prometheus.NewHistogram(prometheus.HistogramOpts{
			Subsystem: subsystem,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{0.1, 0.3, 0.5, 0.7, 1.0, 3.0, 5.0, 7.0, 10.0, 30.0, 60.0},
		})
		m.reg.MustRegister(m.HTTPDurationHistogram)
	}
	if relayCounters {
		m.RelaysCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Subsystem: subsystem,
			Name:      "relays_total",
			Help:      "Relay requests handled, by route and outcome",
		}, []string{"route", "outcome"})
		m.DeliveriesCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Subsystem: subsystem,
			Name:      "deliveries_total",
			Help:      "Reply push attempts, by delivery outcome",
		}, []string{"outcome"})
		m.LifecycleCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Subsystem: subsystem,
			Name:      "connection_events_total",
			Help:      "Connection open and close events",
		}, []string{"event"})
		m.FallbacksCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Subsystem: subsystem,
			Name:      "completion_fallbacks_total",
			Help:      "Completions answered with the fallback message, by provider",
		}, []string{"provider"})
		m.reg.MustRegister(m.RelaysCounter, m.DeliveriesCounter, m.LifecycleCounter, m.FallbacksCounter)
	}
	return m
}

// Handler returns the exposition handler for the private registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// Listen starts the metrics HTTP server on the specified port. The server is shut
// down when ctx is cancelled and the returned channel is closed once it has stopped.
func (m *Metrics) Listen(ctx context.Context, port int) chan error {
	m.log.Info("Starting metrics listener", logger.IntField("port", port))
	mux := http.NewServeMux()
	mux.Handle("/", http.NotFoundHandler())
	mux.Handle("/metrics", m.Handler())
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		defer close(errChan)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("metrics listener: %w", err)
		}
	}()
	go func() {
		<-ctx.Done()
		m.log.Info("Stopping metrics listener")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()
	return errChan
}

// AddCustomMetric registers a custom Prometheus collector.
func (m *Metrics) AddCustomMetric(c prometheus.Collector) {
	m.customMetrics = append(m.customMetrics, c)
	m.reg.MustRegister(m.customMetrics[len(m.customMetrics)-1])
}

// IncrementHTTPResponseCounter increments the counter for the given HTTP status code.
func (m *Metrics) IncrementHTTPResponseCounter(code int) {
	if m.HTTPRequestsCounters == nil {
		return
	}
	m.httpMu.Lock()
	c, ok := m.HTTPRequestsCounters[code]
	if !ok {
		c = newTotalHTTPReqMetric(code)
		m.reg.MustRegister(c)
		m.HTTPRequestsCounters[code] = c
	}
	m.httpMu.Unlock()
	c.Inc()
}

// RelayCompleted counts one relay request by route and outcome.
func (m *Metrics) RelayCompleted(route, outcome string) {
	if m.RelaysCounter != nil {
		m.RelaysCounter.WithLabelValues(route, outcome).Inc()
	}
}

// DeliveryAttempted counts one push attempt by its delivery outcome.
func (m *Metrics) DeliveryAttempted(outcome string) {
	if m.DeliveriesCounter != nil {
		m.DeliveriesCounter.WithLabelValues(outcome).Inc()
	}
}

// LifecycleEvent counts a connection open or close event.
func (m *Metrics) LifecycleEvent(event string) {
	if m.LifecycleCounter != nil {
		m.LifecycleCounter.WithLabelValues(event).Inc()
	}
}

// CompletionFallback counts a completion that degraded to the fallback message.
func (m *Metrics) CompletionFallback(provider string) {
	if m.FallbacksCounter != nil {
		m.FallbacksCounter.WithLabelValues(provider).Inc()
	}
}

func newTotalHTTPReqMetric(code int) prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Subsystem: subsystem,
		Name:      fmt.Sprintf("total_%d_http_responses", code),
		Help:      fmt.Sprintf("Total %s HTTP responses returned", http.StatusText(code)),
	})
}

// HTTPMiddleware returns a Chi-compatible middleware that tracks HTTP metrics
func (m *Metrics) HTTPMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if m.TotalHTTPRequestsCounter == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			m.TotalHTTPRequestsCounter.Inc()

			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(rw, r)

			m.HTTPDurationHistogram.Observe(time.Since(start).Seconds())
			m.IncrementHTTPResponseCounter(rw.statusCode)
		})
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Hijack lets websocket upgrades pass through the middleware.
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	rw.statusCode = http.StatusSwitchingProtocols
	return h.Hijack()
}
