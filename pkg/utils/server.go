package utils

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/lewisedginton/chat_relay/pkg/logger"
)

// ListenAndServe runs srv in the background until ctx is cancelled, then shuts
// it down, allowing in-flight requests up to grace to finish. The returned
// channel carries at most one error and is closed once the server has stopped.
// Closing the server on purpose is not reported as an error.
func ListenAndServe(ctx context.Context, srv *http.Server, grace time.Duration, log logger.Logger) chan error {
	errChan := make(chan error, 1)
	stopped := make(chan struct{})

	go func() {
		defer close(stopped)
		log.Info("HTTP listener starting", logger.StringField("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("listener %s: %w", srv.Addr, err)
		}
	}()

	go func() {
		defer close(errChan)
		select {
		case <-stopped:
			return
		case <-ctx.Done():
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn("HTTP listener did not shut down cleanly", logger.StringField("addr", srv.Addr), logger.ErrorField(err))
		}
		<-stopped
		log.Info("HTTP listener stopped", logger.StringField("addr", srv.Addr))
	}()

	return errChan
}
