package config

import (
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
)

// HealthConfig holds health check configuration
type HealthConfig struct {
	Enabled          bool          `env:"HEALTH_ENABLED" yaml:"enabled" default:"true"`
	Port             int           `env:"HEALTH_PORT" yaml:"port" default:"8081"`
	LivenessPath     string        `env:"HEALTH_LIVENESS_PATH" yaml:"liveness_path" default:"/health/live"`
	ReadinessPath    string        `env:"HEALTH_READINESS_PATH" yaml:"readiness_path" default:"/health/ready"`
	CombinedPath     string        `env:"HEALTH_COMBINED_PATH" yaml:"combined_path" default:"/health"`
	Timeout          time.Duration `env:"HEALTH_TIMEOUT" yaml:"timeout" default:"10s"`
	FailureThreshold int           `env:"HEALTH_FAILURE_THRESHOLD" yaml:"failure_threshold" default:"3"`
}

// Validate checks HealthConfig when enabled
func (h HealthConfig) Validate() error {
	var result error
	if !h.Enabled {
		return nil
	}
	if h.Port < 1 || h.Port > 65535 {
		result = multierror.Append(result, fmt.Errorf("health port must be between 1-65535, got %d", h.Port))
	}
	if h.FailureThreshold < 1 {
		result = multierror.Append(result, fmt.Errorf("health failure_threshold must be positive, got %d", h.FailureThreshold))
	}
	return result
}
