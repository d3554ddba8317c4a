package config

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
	pkgconfig "github.com/lewisedginton/chat_relay/pkg/config"
)

// Session store backends
const (
	StoreMemory   = "memory"
	StoreDynamoDB = "dynamodb"
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
)

// StoreConfig selects and configures the session store.
type StoreConfig struct {
	Backend string `env:"STORE_BACKEND" yaml:"backend" default:"memory"`
	// AutoMigrate applies the Postgres schema migrations on startup
	AutoMigrate bool `env:"STORE_AUTO_MIGRATE" yaml:"auto_migrate" default:"true"`

	DynamoDB DynamoDBConfig           `yaml:"dynamodb"`
	Postgres pkgconfig.DatabaseConfig `yaml:"postgres"`
	SQLite   SQLiteConfig             `yaml:"sqlite"`
}

// DynamoDBConfig describes the session table and its user index.
type DynamoDBConfig struct {
	Table     string `env:"CHAT_HISTORY_TABLE" yaml:"table" default:"chat_history"`
	UserIndex string `env:"CHAT_HISTORY_USER_INDEX" yaml:"user_index" default:"UserId-Timestamp-index"`
	// Endpoint overrides the service endpoint, e.g. for DynamoDB Local
	Endpoint string `env:"DYNAMODB_ENDPOINT" yaml:"endpoint"`
}

// SQLiteConfig holds the database file location.
type SQLiteConfig struct {
	Path string `env:"SQLITE_PATH" yaml:"path" default:"chat_relay.db"`
}

// Validate checks the selected backend has what it needs.
func (s StoreConfig) Validate() error {
	var result error

	switch s.Backend {
	case StoreMemory:
	case StoreDynamoDB:
		if s.DynamoDB.Table == "" {
			result = multierror.Append(result, fmt.Errorf("store.dynamodb.table is required"))
		}
		if s.DynamoDB.UserIndex == "" {
			result = multierror.Append(result, fmt.Errorf("store.dynamodb.user_index is required"))
		}
	case StorePostgres:
		if err := s.Postgres.Validate(); err != nil {
			result = multierror.Append(result, err)
		}
	case StoreSQLite:
		if s.SQLite.Path == "" {
			result = multierror.Append(result, fmt.Errorf("store.sqlite.path is required"))
		}
	default:
		result = multierror.Append(result, fmt.Errorf("store backend must be one of [%s, %s, %s, %s], got %q",
			StoreMemory, StoreDynamoDB, StorePostgres, StoreSQLite, s.Backend))
	}

	return result
}
