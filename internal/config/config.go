// Package config defines the relay's application configuration.
package config

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
	pkgconfig "github.com/lewisedginton/chat_relay/pkg/config"
	"github.com/lewisedginton/chat_relay/pkg/logger"
)

// AppConfig holds all application configuration
type AppConfig struct {
	pkgconfig.CommonConfig `yaml:",inline"`

	Version     string `env:"VERSION" yaml:"version" default:"dev"`
	Environment string `env:"ENVIRONMENT" yaml:"environment" default:"development"`

	HTTP     pkgconfig.HTTPServerConfig `yaml:"http"`
	Metrics  pkgconfig.MetricsConfig    `yaml:"metrics"`
	Health   HealthConfig               `yaml:"health"`
	Security SecurityConfig             `yaml:"security"`

	AWS        AWSConfig        `yaml:"aws"`
	Store      StoreConfig      `yaml:"store"`
	Transport  TransportConfig  `yaml:"transport"`
	Completion CompletionConfig `yaml:"completion"`
	Relay      RelayConfig      `yaml:"relay"`
	Lambda     LambdaConfig     `yaml:"lambda"`
	Archive    ArchiveConfig    `yaml:"archive"`
}

// Validate implements pkgconfig.Validator, aggregating every section's problems.
func (c AppConfig) Validate() error {
	var result error

	validators := []pkgconfig.Validator{
		c.CommonConfig,
		c.HTTP,
		c.Metrics,
		c.Health,
		c.Store,
		c.Transport,
		c.Completion,
		c.Relay,
	}
	for _, v := range validators {
		if err := v.Validate(); err != nil {
			result = multierror.Append(result, err)
		}
	}

	return result
}

// LoggerConfig builds the logger configuration from the common section.
func (c AppConfig) LoggerConfig() logger.Config {
	return logger.Config{
		Level:   logger.ParseLevel(c.LogLevel),
		Format:  c.LogFormat,
		Service: c.ServiceName,
	}
}

// Load reads configuration from path (optional) and the environment.
func Load(path string) (*AppConfig, error) {
	var cfg AppConfig
	if err := pkgconfig.GetConfig(&cfg, path, false); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return &cfg, nil
}
