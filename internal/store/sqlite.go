// ABOUTME: SQLite implementation of the store interfaces using modernc.org/sqlite
// ABOUTME: Holds the principal directory, the secure session tier and the audit log

package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements PrincipalStore and the session tier storage using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ PrincipalStore = (*SQLiteStore)(nil)

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// An in-memory database exists per connection
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS delegated_principals (
			id                TEXT PRIMARY KEY,
			parent_account_id TEXT NOT NULL,
			display_name      TEXT NOT NULL,
			email             TEXT NOT NULL,
			email_lower       TEXT NOT NULL UNIQUE,
			role_name         TEXT NOT NULL,
			permissions_json  TEXT NOT NULL DEFAULT '[]',
			status            TEXT NOT NULL,
			password_hash     TEXT,
			created_at        TEXT NOT NULL,
			updated_at        TEXT NOT NULL,

			CHECK (status IN ('active', 'inactive'))
		);

		CREATE INDEX IF NOT EXISTS idx_delegated_parent ON delegated_principals(parent_account_id);
		CREATE INDEX IF NOT EXISTS idx_delegated_status ON delegated_principals(status);

		CREATE TABLE IF NOT EXISTS session_kv (
			tier       TEXT NOT NULL,
			key        TEXT NOT NULL,
			value      TEXT NOT NULL,
			updated_at TEXT NOT NULL,

			PRIMARY KEY (tier, key)
		);

		CREATE TABLE IF NOT EXISTS session_audit (
			audit_id     TEXT PRIMARY KEY,
			principal_id TEXT NOT NULL,
			kind         TEXT NOT NULL,
			action       TEXT NOT NULL,
			session_id   TEXT,
			ts           TEXT NOT NULL,
			detail_json  TEXT,

			CHECK (action IN ('login', 'logout', 'refresh', 'revoked', 'expired', 'repair'))
		);

		CREATE INDEX IF NOT EXISTS idx_session_audit_ts ON session_audit(ts DESC);
		CREATE INDEX IF NOT EXISTS idx_session_audit_principal ON session_audit(principal_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// runMigrations applies schema migrations for existing databases.
// These are idempotent - safe to run multiple times.
func (s *SQLiteStore) runMigrations() error {
	// SQLite doesn't support ADD COLUMN IF NOT EXISTS, so we check first
	migrations := []struct {
		table  string
		column string
		apply  string
	}{
		{
			table:  "delegated_principals",
			column: "password_hash",
			apply:  `ALTER TABLE delegated_principals ADD COLUMN password_hash TEXT`,
		},
		{
			table:  "session_audit",
			column: "session_id",
			apply:  `ALTER TABLE session_audit ADD COLUMN session_id TEXT`,
		},
	}

	for _, m := range migrations {
		var exists int
		check := fmt.Sprintf(`SELECT 1 FROM pragma_table_info('%s') WHERE name = ?`, m.table)
		if err := s.db.QueryRow(check, m.column).Scan(&exists); err == nil {
			continue
		}
		if _, err := s.db.Exec(m.apply); err != nil {
			return fmt.Errorf("adding %s column to %s: %w", m.column, m.table, err)
		}
		s.logger.Info("applied migration", "column", m.column, "table", m.table)
	}

	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	s.logger.Info("closing SQLite store")
	return s.db.Close()
}

// isConstraintViolation checks if the error is a SQLite UNIQUE constraint violation
func isConstraintViolation(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "UNIQUE constraint failed") ||
		strings.Contains(errStr, "constraint failed")
}

// nullString converts an empty string to a SQL NULL
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
