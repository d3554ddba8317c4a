// Package cli implements the relay's command line commands.
package cli

import (
	"fmt"

	"github.com/urfave/cli/v2"

	appconfig "github.com/lewisedginton/chat_relay/internal/config"
	"github.com/lewisedginton/chat_relay/pkg/logger"
)

// Flag names shared by every command.
const (
	FlagLogLevel   = "log-level"
	FlagConfigFile = "config-file"
)

// getLogger retrieves the logger from the CLI context metadata
func getLogger(ctx *cli.Context) logger.Logger {
	if ctx.App.Metadata != nil {
		if log, ok := ctx.App.Metadata["logger"].(logger.Logger); ok {
			return log
		}
	}

	return logger.NewLogger(logger.Config{
		Level:   logger.InfoLevel,
		Format:  "json",
		Service: "chat-relay",
	})
}

// loadConfig reads the configuration file named by --config-file and the
// environment. An explicit --log-level wins over the configured level.
func loadConfig(ctx *cli.Context) (*appconfig.AppConfig, error) {
	cfg, err := appconfig.Load(ctx.String(FlagConfigFile))
	if err != nil {
		return nil, err
	}
	if ctx.IsSet(FlagLogLevel) {
		cfg.LogLevel = ctx.String(FlagLogLevel)
	}
	return cfg, nil
}

// configuredLogger loads the configuration and replaces the bootstrap logger
// with one built from it.
func configuredLogger(ctx *cli.Context) (*appconfig.AppConfig, logger.Logger, error) {
	cfg, err := loadConfig(ctx)
	if err != nil {
		getLogger(ctx).Error("Failed to load config", logger.ErrorField(err))
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	log := logger.NewLogger(cfg.LoggerConfig())
	if ctx.App.Metadata == nil {
		ctx.App.Metadata = map[string]interface{}{}
	}
	ctx.App.Metadata["logger"] = log
	return cfg, log, nil
}
