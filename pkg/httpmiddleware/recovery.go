package httpmiddleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/lewisedginton/chat_relay/pkg/logger"
)

// RecoveryConfig controls the panic recovery middleware.
type RecoveryConfig struct {
	Logger           logger.Logger
	EnableStackTrace bool
	ResponseBody     string
	ContentType      string
}

// DefaultRecoveryConfig answers panics with a plain text 500, the same shape as
// the relay's other server errors.
func DefaultRecoveryConfig(log logger.Logger) RecoveryConfig {
	return RecoveryConfig{
		Logger:           log,
		EnableStackTrace: true,
		ResponseBody:     http.StatusText(http.StatusInternalServerError),
		ContentType:      "text/plain; charset=utf-8",
	}
}

// Recovery recovers from handler panics, logs them and writes a 500.
// http.ErrAbortHandler is re-panicked so net/http can abort the connection.
func Recovery(config RecoveryConfig) func(http.Handler) http.Handler {
	if config.Logger == nil {
		config.Logger = logger.NewNopLogger()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				fields := []logger.LogField{
					logger.StringField("panic", fmt.Sprint(rec)),
					logger.HTTPMethodField(r.Method),
					logger.HTTPPathField(r.URL.Path),
					logger.ClientIPField(r.RemoteAddr),
				}
				if config.EnableStackTrace {
					fields = append(fields, logger.StringField("stack_trace", string(debug.Stack())))
				}
				logger.GetLoggerFromContext(r.Context(), config.Logger).Error("HTTP request panic recovered", fields...)

				w.Header().Set("Content-Type", config.ContentType)
				w.Header().Set("Connection", "close")
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte(config.ResponseBody))
			}()

			next.ServeHTTP(w, r)
		})
	}
}
