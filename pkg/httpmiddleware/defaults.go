// Package httpmiddleware assembles the chi middleware stack used by the relay's HTTP server.
package httpmiddleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/lewisedginton/chat_relay/pkg/logger"
	"github.com/unrolled/secure"
)

// Config holds configuration for HTTP middleware application.
// Use DefaultConfig() for sensible defaults, then customize as needed.
type Config struct {
	Logger       logger.Logger
	StripPrefix  string
	CORS         *CORSConfig
	Security     *secure.Options
	Timeout      time.Duration
	MaxBodyBytes int64
	Extra        []func(http.Handler) http.Handler // appended after recovery, e.g. metrics

	EnableCorrelationID bool
	EnableLogging       bool // requires Logger
	EnableRecovery      bool
	EnableCORS          bool
	EnableSecurity      bool
	EnableCompression   bool
	EnableHeartbeat     bool // answers /ping
	EnableRealIP        bool
	EnableTimeout       bool
	EnableStripPrefix   bool // requires StripPrefix
	EnableBodyLimit     bool // requires MaxBodyBytes
}

// DefaultConfig returns a production-ready middleware configuration.
// Logging is disabled by default - set Logger and EnableLogging=true to enable.
func DefaultConfig() Config {
	corsConfig := DefaultCORSConfig()
	return Config{
		CORS:         &corsConfig,
		Timeout:      90 * time.Second,
		MaxBodyBytes: 1 << 20,

		EnableCorrelationID: true,
		EnableRecovery:      true,
		EnableCORS:          true,
		EnableSecurity:      true,
		EnableCompression:   true,
		EnableHeartbeat:     true,
		EnableRealIP:        true,
		EnableTimeout:       true,
		EnableBodyLimit:     true,
	}
}

// ApplyToRouter installs the middleware that is safe for every route, including
// websocket upgrades. Execution order:
//
//  1. CorrelationID
//  2. Security
//  3. RealIP
//  4. Logging
//  5. Recovery
//  6. Extra
//  7. StripPrefix
//  8. CORS
//  9. Heartbeat (/ping)
//
// Timeout, compression and body limits buffer or cut off the response, so they
// are returned by RequestScoped for plain request/response routes instead.
func ApplyToRouter(router chi.Router, config Config) {
	if config.EnableCorrelationID {
		router.Use(CorrelationID())
	}
	if config.EnableSecurity {
		router.Use(Security(config.Security))
	}
	if config.EnableRealIP {
		router.Use(middleware.RealIP)
	}
	if config.EnableLogging && config.Logger != nil {
		router.Use(NewHTTPLogger(config.Logger).Middleware)
	}
	if config.EnableRecovery {
		router.Use(Recovery(DefaultRecoveryConfig(config.Logger)))
	}
	for _, mw := range config.Extra {
		router.Use(mw)
	}
	if config.EnableStripPrefix && config.StripPrefix != "" {
		router.Use(StripPrefix(config.StripPrefix))
	}
	if config.EnableCORS && config.CORS != nil {
		router.Use(CORS(*config.CORS))
	}
	if config.EnableHeartbeat {
		router.Use(middleware.Heartbeat("/ping"))
	}
}

// RequestScoped returns the middleware for routes that answer with a single
// response: body limit, timeout and compression, in that order.
func RequestScoped(config Config) []func(http.Handler) http.Handler {
	var mws []func(http.Handler) http.Handler
	if config.EnableBodyLimit && config.MaxBodyBytes > 0 {
		mws = append(mws, BodyLimit(config.MaxBodyBytes))
	}
	if config.EnableTimeout && config.Timeout > 0 {
		mws = append(mws, middleware.Timeout(config.Timeout))
	}
	if config.EnableCompression {
		mws = append(mws, middleware.Compress(5))
	}
	return mws
}

// WithLogger applies DefaultConfig with logging enabled to router.
func WithLogger(router chi.Router, log logger.Logger) {
	config := DefaultConfig()
	config.Logger = log
	config.EnableLogging = true
	ApplyToRouter(router, config)
}
