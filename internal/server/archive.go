package server

import (
	"context"
	"fmt"

	"github.com/lewisedginton/chat_relay/internal/archive"
	appconfig "github.com/lewisedginton/chat_relay/internal/config"
	"github.com/lewisedginton/chat_relay/internal/relay"
	"github.com/lewisedginton/chat_relay/internal/session"
	"github.com/lewisedginton/chat_relay/pkg/logger"
)

// NewObjectStore opens the configured archive object store.
func NewObjectStore(ctx context.Context, cfg *appconfig.AppConfig) (archive.ObjectStore, error) {
	ac := cfg.Archive
	if err := ac.Validate(); err != nil {
		return nil, err
	}

	switch ac.Backend {
	case appconfig.ArchiveDir:
		return archive.NewDirObjects(ac.Dir), nil
	default:
		awsCfg, err := LoadAWSConfig(ctx, cfg.AWS)
		if err != nil {
			return nil, err
		}
		return archive.NewS3Objects(archive.NewS3Client(awsCfg, ac.Endpoint, ac.UsePathStyle), ac.Bucket), nil
	}
}

// NewArchiver builds an Archiver reading history straight from the session
// store. The returned close function releases the store.
func NewArchiver(ctx context.Context, cfg *appconfig.AppConfig, log logger.Logger) (*archive.Archiver, func() error, error) {
	objects, err := NewObjectStore(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create archive store: %w", err)
	}

	store, closeStore, err := NewStore(ctx, cfg, log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create session store: %w", err)
	}

	a, err := archive.New(archive.Config{
		History: archive.HistoryFunc(func(ctx context.Context, identity string) ([]session.HistoryEntry, error) {
			return relay.QueryHistory(ctx, store, identity)
		}),
		Objects: objects,
		Prefix:  cfg.Archive.Prefix,
		Logger:  log,
	})
	if err != nil {
		_ = closeStore()
		return nil, nil, err
	}
	return a, closeStore, nil
}
