// Package health runs liveness and readiness probes for the relay's dependencies.
package health

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/lewisedginton/chat_relay/pkg/logger"
)

// Probe selects which set of checks to run.
type Probe string

const (
	// Liveness checks decide whether the process should be restarted.
	Liveness Probe = "liveness"
	// Readiness checks decide whether the process may receive traffic.
	Readiness Probe = "readiness"
)

// Check represents a single health check that can succeed or fail.
type Check interface {
	Name() string
	Check(ctx context.Context) error
}

// CheckFunc adapts a plain function to Check.
type CheckFunc struct {
	name string
	fn   func(context.Context) error
}

// NewCheckFunc creates a new CheckFunc with the given name and function.
func NewCheckFunc(name string, fn func(context.Context) error) *CheckFunc {
	return &CheckFunc{name: name, fn: fn}
}

// Name returns the name of this check.
func (c *CheckFunc) Name() string { return c.name }

// Check executes the check function.
func (c *CheckFunc) Check(ctx context.Context) error { return c.fn(ctx) }

// CheckResult is the outcome of one check execution.
type CheckResult struct {
	Name    string
	Healthy bool
	Error   string
	Latency time.Duration
}

// Status is the aggregated outcome of a probe. Checks are sorted by name.
type Status struct {
	Healthy bool
	Checks  []CheckResult
}

// Checker holds the registered checks and their consecutive failure counts.
type Checker struct {
	mu               sync.Mutex
	checks           map[Probe][]Check
	failures         map[string]int
	timeout          time.Duration
	failureThreshold int
	logger           logger.Logger
}

// Option configures a Checker.
type Option func(*Checker)

// WithTimeout bounds each individual check. Default is 5 seconds.
func WithTimeout(d time.Duration) Option {
	return func(c *Checker) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithLogger sets the logger for check failures.
func WithLogger(l logger.Logger) Option {
	return func(c *Checker) {
		c.logger = l
	}
}

// WithFailureThreshold sets how many consecutive failures a check tolerates
// before it is reported unhealthy. Default is 3.
func WithFailureThreshold(threshold int) Option {
	return func(c *Checker) {
		if threshold > 0 {
			c.failureThreshold = threshold
		}
	}
}

// New creates a Checker with no checks registered.
func New(opts ...Option) *Checker {
	c := &Checker{
		checks:           make(map[Probe][]Check),
		failures:         make(map[string]int),
		timeout:          5 * time.Second,
		failureThreshold: 3,
		logger:           logger.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Add registers check under probe.
func (c *Checker) Add(probe Probe, check Check) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[probe] = append(c.checks[probe], check)
}

// AddLivenessCheck registers a liveness check.
func (c *Checker) AddLivenessCheck(check Check) { c.Add(Liveness, check) }

// AddReadinessCheck registers a readiness check.
func (c *Checker) AddReadinessCheck(check Check) { c.Add(Readiness, check) }

// Run executes every check registered for the given probes concurrently.
// With no checks registered the result is healthy.
func (c *Checker) Run(ctx context.Context, probes ...Probe) (*Status, error) {
	c.mu.Lock()
	var checks []Check
	for _, p := range probes {
		checks = append(checks, c.checks[p]...)
	}
	c.mu.Unlock()

	results := make([]CheckResult, len(checks))
	var wg sync.WaitGroup
	for i, chk := range checks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = c.execute(ctx, chk)
		}()
	}
	wg.Wait()

	sort.SliceStable(results, func(i, j int) bool { return results[i].Name < results[j].Name })

	status := &Status{Healthy: true, Checks: results}
	var result error
	for _, r := range results {
		if !r.Healthy {
			status.Healthy = false
			result = multierror.Append(result, fmt.Errorf("%s: %s", r.Name, r.Error))
		}
	}
	return status, result
}

// CheckLiveness runs the liveness probe.
func (c *Checker) CheckLiveness(ctx context.Context) (*Status, error) {
	return c.Run(ctx, Liveness)
}

// CheckReadiness runs the readiness probe.
func (c *Checker) CheckReadiness(ctx context.Context) (*Status, error) {
	return c.Run(ctx, Readiness)
}

func (c *Checker) execute(parent context.Context, check Check) CheckResult {
	ctx, cancel := context.WithTimeout(parent, c.timeout)
	defer cancel()

	start := time.Now()
	err := check.Check(ctx)
	res := CheckResult{Name: check.Name(), Latency: time.Since(start), Healthy: true}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err == nil {
		c.failures[res.Name] = 0
		return res
	}

	c.failures[res.Name]++
	n := c.failures[res.Name]
	fields := []logger.LogField{
		logger.StringField("check", res.Name),
		logger.ErrorField(err),
		logger.IntField("failures", n),
	}
	if n < c.failureThreshold {
		c.logger.Debug("Health check failed below threshold", fields...)
		return res
	}

	res.Healthy = false
	res.Error = err.Error()
	c.logger.Warn("Health check failed", append(fields, logger.DurationField("latency", res.Latency))...)
	return res
}
