package config

import "errors"

// RelayConfig holds relay behaviour settings.
type RelayConfig struct {
	// Sentinel is the message whose exchange is stored but whose reply is never pushed
	Sentinel string `env:"RELAY_SENTINEL" yaml:"sentinel" default:"Initial Message"`
}

// Validate checks RelayConfig
func (r RelayConfig) Validate() error {
	if r.Sentinel == "" {
		return errors.New("relay.sentinel must not be empty")
	}
	return nil
}

// LambdaConfig selects the handler a Lambda deployment runs.
type LambdaConfig struct {
	// Handler is one of connect, disconnect, send_message, mercurio_data,
	// mercurio_chat, mercurio_analyzer, query_chat_history
	Handler string `env:"LAMBDA_HANDLER" yaml:"handler"`
}
