package config

import (
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
)

// Transport backends
const (
	TransportAPIGateway = "apigateway"
	TransportWebSocket  = "websocket"
)

// TransportConfig selects how replies are pushed to connections.
type TransportConfig struct {
	Backend string `env:"TRANSPORT_BACKEND" yaml:"backend" default:"websocket"`

	// APIGatewayEndpoint is the management endpoint of the WebSocket API,
	// https://{api-id}.execute-api.{region}.amazonaws.com/{stage}
	APIGatewayEndpoint string `env:"WEBSOCKET_API_URL" yaml:"apigateway_endpoint"`

	WebSocket WebSocketConfig `yaml:"websocket"`
}

// WebSocketConfig tunes the self-hosted hub.
type WebSocketConfig struct {
	Path           string        `env:"WS_PATH" yaml:"path" default:"/ws"`
	PingInterval   time.Duration `env:"WS_PING_INTERVAL" yaml:"ping_interval" default:"30s"`
	WriteTimeout   time.Duration `env:"WS_WRITE_TIMEOUT" yaml:"write_timeout" default:"10s"`
	ReadLimitBytes int64         `env:"WS_READ_LIMIT_BYTES" yaml:"read_limit_bytes" default:"65536"`
}

// PongWait is how long the hub waits for a pong before dropping the connection.
func (w WebSocketConfig) PongWait() time.Duration {
	return w.PingInterval * 2
}

// Validate checks the transport settings.
func (t TransportConfig) Validate() error {
	var result error

	switch t.Backend {
	case TransportAPIGateway:
		if t.APIGatewayEndpoint == "" {
			result = multierror.Append(result, fmt.Errorf("transport.apigateway_endpoint (WEBSOCKET_API_URL) is required for the apigateway backend"))
		}
	case TransportWebSocket:
		if t.WebSocket.PingInterval <= 0 {
			result = multierror.Append(result, fmt.Errorf("transport.websocket.ping_interval must be positive"))
		}
	default:
		result = multierror.Append(result, fmt.Errorf("transport backend must be one of [%s, %s], got %q",
			TransportAPIGateway, TransportWebSocket, t.Backend))
	}

	return result
}
