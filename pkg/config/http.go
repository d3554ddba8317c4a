package config

import (
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
)

// HTTPServerConfig holds HTTP server settings
type HTTPServerConfig struct {
	// Port is the TCP port for the HTTP server to listen on
	Port int `env:"HTTP_PORT" yaml:"http_port" default:"8080"`

	// ReadTimeout is the maximum duration for reading the entire request, including body
	ReadTimeout time.Duration `env:"HTTP_READ_TIMEOUT" yaml:"read_timeout" default:"15s"`

	// WriteTimeout bounds response writes. It must exceed the completion timeout
	// since relays wait on the model before answering.
	WriteTimeout time.Duration `env:"HTTP_WRITE_TIMEOUT" yaml:"write_timeout" default:"90s"`

	// IdleTimeout is the maximum amount of time to wait for the next request
	IdleTimeout time.Duration `env:"HTTP_IDLE_TIMEOUT" yaml:"idle_timeout" default:"60s"`

	// MaxHeaderBytes controls the maximum number of bytes the server will read parsing request headers
	MaxHeaderBytes int `env:"HTTP_MAX_HEADER_BYTES" yaml:"max_header_bytes" default:"1048576"`

	// StripPrefix removes a leading path segment, such as an API Gateway stage name
	StripPrefix string `env:"HTTP_STRIP_PREFIX" yaml:"strip_prefix"`
}

// Validate checks HTTPServerConfig for valid port range and timeouts
func (h HTTPServerConfig) Validate() error {
	var result error
	if h.Port < 1 || h.Port > 65535 {
		result = multierror.Append(result, fmt.Errorf("http port must be between 1-65535, got %d", h.Port))
	}
	if h.ReadTimeout < 0 || h.WriteTimeout < 0 || h.IdleTimeout < 0 {
		result = multierror.Append(result, fmt.Errorf("http timeouts must not be negative"))
	}
	return result
}

// Addr returns the listen address for the configured port.
func (h HTTPServerConfig) Addr() string {
	return fmt.Sprintf(":%d", h.Port)
}
