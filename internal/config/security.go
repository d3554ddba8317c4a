package config

// SecurityConfig holds HTTP security configuration
type SecurityConfig struct {
	// CORSAllowedOrigins feeds go-chi/cors. Relay and history routes answer
	// preflights and responses with Access-Control-Allow-Origin: * regardless.
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" yaml:"cors_allowed_origins" default:"*"`
	MaxRequestSize     int64    `env:"MAX_REQUEST_SIZE" yaml:"max_request_size" default:"1048576"`
	SecureHeaders      bool     `env:"SECURE_HEADERS" yaml:"secure_headers" default:"true"`
}
