// ABOUTME: Key/value session tier stored in the session_kv table
// ABOUTME: Batch writes run in one transaction so a tier is never half-written

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// KVTier is a named key/value namespace inside the SQLite store.
type KVTier struct {
	store *SQLiteStore
	name  string
}

// Tier returns the key/value namespace with the given name.
func (s *SQLiteStore) Tier(name string) *KVTier {
	return &KVTier{store: s, name: name}
}

// Name returns the tier name.
func (t *KVTier) Name() string {
	return t.name
}

// Get returns the value for key and whether it was present.
func (t *KVTier) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := t.store.db.QueryRowContext(ctx,
		`SELECT value FROM session_kv WHERE tier = ? AND key = ?`, t.name, key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("reading %s/%s: %w", t.name, key, err)
	}
	return value, true, nil
}

// Put upserts all values in a single transaction.
func (t *KVTier) Put(ctx context.Context, values map[string]string) error {
	tx, err := t.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	now := time.Now().UTC().Format(time.RFC3339)
	for key, value := range values {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO session_kv (tier, key, value, updated_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(tier, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
		`, t.name, key, value, now)
		if err != nil {
			return fmt.Errorf("writing %s/%s: %w", t.name, key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing %s tier: %w", t.name, err)
	}
	return nil
}

// Delete removes keys. Missing keys are not an error.
func (t *KVTier) Delete(ctx context.Context, keys ...string) error {
	tx, err := t.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	for _, key := range keys {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM session_kv WHERE tier = ? AND key = ?`, t.name, key,
		); err != nil {
			return fmt.Errorf("deleting %s/%s: %w", t.name, key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing %s tier: %w", t.name, err)
	}
	return nil
}
