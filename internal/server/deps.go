package server

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	appconfig "github.com/lewisedginton/chat_relay/internal/config"
	"github.com/lewisedginton/chat_relay/internal/session"
	"github.com/lewisedginton/chat_relay/pkg/logger"
)

// LoadAWSConfig loads the default AWS configuration, honouring an explicit
// region and shared config profile.
func LoadAWSConfig(ctx context.Context, cfg appconfig.AWSConfig) (aws.Config, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(cfg.Profile))
	}
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return awsCfg, nil
}

// NewDynamoDBClient creates a DynamoDB client, pointing it at endpoint when set.
func NewDynamoDBClient(awsCfg aws.Config, endpoint string) *dynamodb.Client {
	return dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})
}

// NewStore opens the configured session store. The returned close function
// releases its connections and is never nil.
func NewStore(ctx context.Context, cfg *appconfig.AppConfig, log logger.Logger) (session.Store, func() error, error) {
	noop := func() error { return nil }
	sc := cfg.Store

	switch sc.Backend {
	case appconfig.StoreMemory:
		log.Warn("Using in-memory session store; sessions are lost on restart")
		return session.NewMemoryStore(), noop, nil

	case appconfig.StoreDynamoDB:
		awsCfg, err := LoadAWSConfig(ctx, cfg.AWS)
		if err != nil {
			return nil, nil, err
		}
		log.Info("Using DynamoDB session store",
			logger.StringField("table", sc.DynamoDB.Table),
			logger.StringField("user_index", sc.DynamoDB.UserIndex),
			logger.StringField("region", awsCfg.Region))
		client := NewDynamoDBClient(awsCfg, sc.DynamoDB.Endpoint)
		return session.NewDynamoStore(client, sc.DynamoDB.Table, sc.DynamoDB.UserIndex, log), noop, nil

	case appconfig.StorePostgres:
		pool, err := session.NewPostgresPool(ctx, sc.Postgres)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		store, err := session.NewPostgresStore(pool, log, sc.AutoMigrate)
		if err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("failed to prepare postgres store: %w", err)
		}
		log.Info("Using Postgres session store", logger.BoolField("auto_migrate", sc.AutoMigrate))
		return store, store.Close, nil

	case appconfig.StoreSQLite:
		store, err := session.NewSQLiteStore(sc.SQLite.Path, log)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open sqlite store: %w", err)
		}
		log.Info("Using SQLite session store", logger.StringField("path", sc.SQLite.Path))
		return store, store.Close, nil

	default:
		return nil, nil, fmt.Errorf("unsupported store backend: %s", sc.Backend)
	}
}
