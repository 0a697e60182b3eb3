// ABOUTME: Shared test helpers for store tests
// ABOUTME: Provides a temp-dir backed SQLite store and principal fixtures

package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	store, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)

	t.Cleanup(func() {
		store.Close()
	})

	return store
}

func createTestPrincipal(t *testing.T, s PrincipalStore, email, parent string, perms ...string) *DelegatedPrincipal {
	t.Helper()
	p := &DelegatedPrincipal{
		ParentAccountID: parent,
		DisplayName:     "Member " + email,
		Email:           email,
		RoleName:        "Operations",
		Permissions:     perms,
	}
	require.NoError(t, s.CreateDelegatedPrincipal(context.Background(), p))
	return p
}

func generateTestID(prefix string, i int) string {
	return prefix + "-" + string(rune('a'+i))
}
