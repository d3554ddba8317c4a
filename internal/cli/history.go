package cli

import (
	"encoding/json"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/lewisedginton/chat_relay/internal/relay"
	"github.com/lewisedginton/chat_relay/internal/server"
	"github.com/lewisedginton/chat_relay/pkg/logger"
)

// HistoryCommand returns commands for reading and archiving chat history.
func HistoryCommand() *cli.Command {
	userFlag := &cli.StringFlag{
		Name:     "user",
		Aliases:  []string{"u"},
		Usage:    "User identity",
		Required: true,
	}

	return &cli.Command{
		Name:  "history",
		Usage: "Chat history operations",
		Subcommands: []*cli.Command{
			{
				Name:   "show",
				Usage:  "Print a user's history from the session store, or an archived copy with --key",
				Flags:  []cli.Flag{&cli.StringFlag{Name: "user", Aliases: []string{"u"}, Usage: "User identity"}, &cli.StringFlag{Name: "key", Usage: "Archive key"}},
				Action: historyShowAction,
			},
			{
				Name:   "export",
				Usage:  "Archive a user's current history to object storage",
				Flags:  []cli.Flag{userFlag},
				Action: historyExportAction,
			},
			{
				Name:   "list",
				Usage:  "List a user's archives",
				Flags:  []cli.Flag{userFlag},
				Action: historyListAction,
			},
		},
	}
}

func writeJSON(ctx *cli.Context, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding output: %w", err)
	}
	_, err = fmt.Fprintln(ctx.App.Writer, string(data))
	return err
}

func historyShowAction(ctx *cli.Context) error {
	cfg, log, err := configuredLogger(ctx)
	if err != nil {
		return err
	}

	if key := ctx.String("key"); key != "" {
		a, closeStore, err := server.NewArchiver(ctx.Context, cfg, log)
		if err != nil {
			return err
		}
		defer func() { _ = closeStore() }()

		entries, err := a.Fetch(ctx.Context, key)
		if err != nil {
			log.Error("Failed to read archive", logger.StringField("key", key), logger.ErrorField(err))
			return err
		}
		return writeJSON(ctx, entries)
	}

	user := ctx.String("user")
	if user == "" {
		return fmt.Errorf("one of --user or --key is required")
	}

	store, closeStore, err := server.NewStore(ctx.Context, cfg, log)
	if err != nil {
		return err
	}
	defer func() { _ = closeStore() }()

	entries, err := relay.QueryHistory(ctx.Context, store, user)
	if err != nil {
		log.Error("Failed to query history", logger.UserIdentityField(user), logger.ErrorField(err))
		return err
	}
	return writeJSON(ctx, entries)
}

func historyExportAction(ctx *cli.Context) error {
	cfg, log, err := configuredLogger(ctx)
	if err != nil {
		return err
	}

	a, closeStore, err := server.NewArchiver(ctx.Context, cfg, log)
	if err != nil {
		return err
	}
	defer func() { _ = closeStore() }()

	key, n, err := a.Export(ctx.Context, ctx.String("user"))
	if err != nil {
		log.Error("Failed to export history", logger.ErrorField(err))
		return err
	}
	_, _ = fmt.Fprintf(ctx.App.Writer, "Exported %d entries to %s\n", n, key)
	return nil
}

func historyListAction(ctx *cli.Context) error {
	cfg, log, err := configuredLogger(ctx)
	if err != nil {
		return err
	}

	a, closeStore, err := server.NewArchiver(ctx.Context, cfg, log)
	if err != nil {
		return err
	}
	defer func() { _ = closeStore() }()

	keys, err := a.List(ctx.Context, ctx.String("user"))
	if err != nil {
		log.Error("Failed to list archives", logger.ErrorField(err))
		return err
	}
	for _, key := range keys {
		_, _ = fmt.Fprintln(ctx.App.Writer, key)
	}
	return nil
}
