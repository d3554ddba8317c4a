package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	pkgconfig "github.com/lewisedginton/chat_relay/pkg/config"
	"github.com/lewisedginton/chat_relay/pkg/logger"
)

const (
	pgUpsert = `
INSERT INTO sessions (connection_id, user_id, user_message, ai_response, ts)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (connection_id) DO UPDATE SET
    user_id = EXCLUDED.user_id,
    user_message = EXCLUDED.user_message,
    ai_response = EXCLUDED.ai_response,
    ts = EXCLUDED.ts`

	pgDelete = `DELETE FROM sessions WHERE connection_id = $1`

	pgGet = `
SELECT connection_id, COALESCE(user_id, ''), COALESCE(user_message, ''), COALESCE(ai_response, ''), ts
FROM sessions WHERE connection_id = $1`

	pgQueryAsc = `
SELECT connection_id, user_id, COALESCE(user_message, ''), COALESCE(ai_response, ''), ts
FROM sessions WHERE user_id = $1 ORDER BY ts ASC, connection_id ASC`

	pgQueryDesc = `
SELECT connection_id, user_id, COALESCE(user_message, ''), COALESCE(ai_response, ''), ts
FROM sessions WHERE user_id = $1 ORDER BY ts DESC, connection_id DESC`
)

// PostgresStore stores records in the sessions table of a Postgres database.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger logger.Logger
}

// NewPostgresPool opens a pgx pool from the database configuration.
func NewPostgresPool(ctx context.Context, cfg pkgconfig.DatabaseConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.GetConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.MaxConnections)
	poolCfg.MinConns = int32(cfg.MinConnections)
	poolCfg.MaxConnIdleTime = cfg.MaxIdleTime
	poolCfg.MaxConnLifetime = cfg.MaxLifetime
	if cfg.ConnectTimeout > 0 {
		poolCfg.ConnConfig.ConnectTimeout = cfg.ConnectTimeout
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	return pool, nil
}

// NewPostgresStore creates a store over pool, applying migrations when migrate is set.
func NewPostgresStore(pool *pgxpool.Pool, log logger.Logger, migrate bool) (*PostgresStore, error) {
	if migrate {
		if err := NewMigrator(pool, log).Up(); err != nil {
			return nil, err
		}
	}
	return &PostgresStore{pool: pool, logger: log}, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (p *PostgresStore) Put(ctx context.Context, rec Record) error {
	if rec.ConnectionToken == "" {
		return ErrEmptyToken
	}
	_, err := p.pool.Exec(ctx, pgUpsert,
		rec.ConnectionToken,
		nullable(rec.UserIdentity),
		nullable(rec.LastMessage),
		nullable(rec.LastReply),
		rec.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("upsert session %s: %w", rec.ConnectionToken, err)
	}
	return nil
}

func (p *PostgresStore) Delete(ctx context.Context, token string) error {
	if _, err := p.pool.Exec(ctx, pgDelete, token); err != nil {
		return fmt.Errorf("delete session %s: %w", token, err)
	}
	return nil
}

func (p *PostgresStore) Get(ctx context.Context, token string) (Record, bool, error) {
	var rec Record
	err := p.pool.QueryRow(ctx, pgGet, token).Scan(
		&rec.ConnectionToken, &rec.UserIdentity, &rec.LastMessage, &rec.LastReply, &rec.Timestamp)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, false, nil
		}
		return Record{}, false, fmt.Errorf("get session %s: %w", token, err)
	}
	return rec, true, nil
}

func (p *PostgresStore) QueryByUser(ctx context.Context, identity string, order Order, limit int) ([]Record, error) {
	query := pgQueryAsc
	if order == Descending {
		query = pgQueryDesc
	}
	args := []any{identity}
	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}

	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query sessions for user: %w", err)
	}

	recs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Record, error) {
		var rec Record
		err := row.Scan(&rec.ConnectionToken, &rec.UserIdentity, &rec.LastMessage, &rec.LastReply, &rec.Timestamp)
		return rec, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan sessions for user: %w", err)
	}
	return recs, nil
}

// Ping checks database connectivity.
func (p *PostgresStore) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// Close closes the pool.
func (p *PostgresStore) Close() error {
	p.pool.Close()
	return nil
}
