package cli

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/lewisedginton/chat_relay/internal/server"
	"github.com/lewisedginton/chat_relay/pkg/logger"
)

// ServeCommand returns the command running the self-hosted relay.
func ServeCommand() *cli.Command {
	return &cli.Command{
		Name:    "serve",
		Aliases: []string{"s"},
		Usage:   "Run the HTTP and WebSocket relay",
		Action:  serveAction,
	}
}

func serveAction(ctx *cli.Context) error {
	cfg, log, err := configuredLogger(ctx)
	if err != nil {
		return err
	}

	runCtx, stop := signal.NotifyContext(ctx.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	s, err := server.New(runCtx, cfg, log)
	if err != nil {
		log.Error("Failed to create server", logger.ErrorField(err))
		return fmt.Errorf("failed to create server: %w", err)
	}

	if err := s.Run(runCtx); err != nil {
		log.Error("Fatal server error occurred", logger.ErrorField(err))
		return fmt.Errorf("server error: %w", err)
	}

	log.Info("Server exited gracefully")
	return nil
}
