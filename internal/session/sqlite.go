package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/lewisedginton/chat_relay/pkg/logger"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS sessions (
    connection_id TEXT PRIMARY KEY,
    user_id       TEXT,
    user_message  TEXT,
    ai_response   TEXT,
    ts            INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS sessions_user_id_ts_idx ON sessions (user_id, ts);
`

// SQLiteStore stores records in a local SQLite database file.
type SQLiteStore struct {
	db     *sql.DB
	logger logger.Logger

	putStmt    *sql.Stmt
	deleteStmt *sql.Stmt
	getStmt    *sql.Stmt
	ascStmt    *sql.Stmt
	descStmt   *sql.Stmt
}

// NewSQLiteStore opens (creating if needed) the database at path.
func NewSQLiteStore(path string, log logger.Logger) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path cannot be empty")
	}

	pragmas := url.Values{}
	pragmas.Add("_pragma", "busy_timeout(5000)")
	pragmas.Add("_pragma", "journal_mode(WAL)")
	pragmas.Add("_pragma", "synchronous(NORMAL)")

	db, err := sql.Open("sqlite", path+"?"+pragmas.Encode())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &SQLiteStore{db: db, logger: log}

	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	if err := s.prepare(); err != nil {
		_ = db.Close()
		return nil, err
	}

	log.Debug("sqlite session store ready", logger.StringField("path", path))
	return s, nil
}

func (s *SQLiteStore) prepare() error {
	stmts := []struct {
		dst   **sql.Stmt
		query string
	}{
		{&s.putStmt, `INSERT OR REPLACE INTO sessions (connection_id, user_id, user_message, ai_response, ts) VALUES (?, ?, ?, ?, ?)`},
		{&s.deleteStmt, `DELETE FROM sessions WHERE connection_id = ?`},
		{&s.getStmt, `SELECT connection_id, COALESCE(user_id, ''), COALESCE(user_message, ''), COALESCE(ai_response, ''), ts FROM sessions WHERE connection_id = ?`},
		{&s.ascStmt, `SELECT connection_id, user_id, COALESCE(user_message, ''), COALESCE(ai_response, ''), ts FROM sessions WHERE user_id = ? ORDER BY ts ASC, connection_id ASC LIMIT ?`},
		{&s.descStmt, `SELECT connection_id, user_id, COALESCE(user_message, ''), COALESCE(ai_response, ''), ts FROM sessions WHERE user_id = ? ORDER BY ts DESC, connection_id DESC LIMIT ?`},
	}
	for _, st := range stmts {
		prepared, err := s.db.Prepare(st.query)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		*st.dst = prepared
	}
	return nil
}

func nullString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}

func (s *SQLiteStore) Put(ctx context.Context, rec Record) error {
	if rec.ConnectionToken == "" {
		return ErrEmptyToken
	}
	_, err := s.putStmt.ExecContext(ctx,
		rec.ConnectionToken,
		nullString(rec.UserIdentity),
		nullString(rec.LastMessage),
		nullString(rec.LastReply),
		rec.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("upsert session %s: %w", rec.ConnectionToken, err)
	}
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, token string) error {
	if _, err := s.deleteStmt.ExecContext(ctx, token); err != nil {
		return fmt.Errorf("delete session %s: %w", token, err)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, token string) (Record, bool, error) {
	var rec Record
	err := s.getStmt.QueryRowContext(ctx, token).Scan(
		&rec.ConnectionToken, &rec.UserIdentity, &rec.LastMessage, &rec.LastReply, &rec.Timestamp)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, false, nil
		}
		return Record{}, false, fmt.Errorf("get session %s: %w", token, err)
	}
	return rec, true, nil
}

func (s *SQLiteStore) QueryByUser(ctx context.Context, identity string, order Order, limit int) ([]Record, error) {
	stmt := s.ascStmt
	if order == Descending {
		stmt = s.descStmt
	}
	// LIMIT -1 means no limit in SQLite.
	if limit <= 0 {
		limit = -1
	}

	rows, err := stmt.QueryContext(ctx, identity, limit)
	if err != nil {
		return nil, fmt.Errorf("query sessions for user: %w", err)
	}
	defer func() { _ = rows.Close() }()

	recs := make([]Record, 0)
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ConnectionToken, &rec.UserIdentity, &rec.LastMessage, &rec.LastReply, &rec.Timestamp); err != nil {
			return nil, fmt.Errorf("scan session row: %w", err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate session rows: %w", err)
	}
	return recs, nil
}

// Ping checks the database handle.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close finalizes statements and closes the database.
func (s *SQLiteStore) Close() error {
	for _, st := range []*sql.Stmt{s.putStmt, s.deleteStmt, s.getStmt, s.ascStmt, s.descStmt} {
		if st != nil {
			_ = st.Close()
		}
	}
	return s.db.Close()
}
