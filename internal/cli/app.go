package cli

import (
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"github.com/lewisedginton/chat_relay/pkg/logger"
)

// NewApp builds the relay command line application.
func NewApp(version string) *cli.App {
	return &cli.App{
		Name:    "chat-relay",
		Usage:   "Relay chat messages between HTTP callers and WebSocket clients",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    FlagLogLevel,
				Value:   "info",
				Usage:   "Log level (debug, info, warn, error)",
				EnvVars: []string{"LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:    FlagConfigFile,
				Usage:   "Path to configuration file",
				EnvVars: []string{"CONFIG_FILE"},
			},
			&cli.StringSliceFlag{
				Name:  "env-file",
				Usage: "Environment files to load before reading configuration",
				Value: cli.NewStringSlice(".env"),
			},
		},
		Before: func(ctx *cli.Context) error {
			// Missing env files are fine; variables already set are kept.
			_ = godotenv.Load(ctx.StringSlice("env-file")...)

			log := logger.NewLogger(logger.Config{
				Level:   logger.ParseLevel(ctx.String(FlagLogLevel)),
				Format:  "json",
				Service: "chat-relay",
			})
			ctx.App.Metadata = map[string]interface{}{
				"logger": log,
			}
			return nil
		},
		Commands: []*cli.Command{
			ConfigCommand(),
			ServeCommand(),
			LambdaCommand(),
			HistoryCommand(),
		},
	}
}
