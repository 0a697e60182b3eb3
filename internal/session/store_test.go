// ABOUTME: Tests for two-tier session persistence and the storage tiers
// ABOUTME: Covers write rollback, clear across tiers, tolerant reads and the file tier

package session

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/shipdesk-session/internal/auth"
	"github.com/2389/shipdesk-session/internal/store"
)

func sampleFields(token string) *Fields {
	return &Fields{
		Token:       token,
		Kind:        auth.KindDelegated,
		Permissions: []string{auth.PermDashboard},
		Context: &Context{
			PrincipalID:     "dp-1",
			ParentAccountID: "acct-1",
			SessionID:       "sess-1",
			LoggedInAt:      time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		},
	}
}

func TestStore_WriteAndRead(t *testing.T) {
	ctx := context.Background()
	secure, legacy := NewMemoryTier(), NewMemoryTier()
	st := NewStore(secure, legacy, nil)

	require.NoError(t, st.Write(ctx, sampleFields("tok-1")))

	f, err := st.Read(ctx)
	require.NoError(t, err)
	require.NotNil(t, f)
	assert.Equal(t, "tok-1", f.Token)
	assert.Equal(t, auth.KindDelegated, f.Kind)
	assert.Equal(t, []string{auth.PermDashboard}, f.Permissions)
	require.NotNil(t, f.Context)
	assert.Equal(t, "dp-1", f.Context.PrincipalID)
	assert.True(t, f.Complete())

	token, ok, err := st.LegacyToken(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "tok-1", token)

	// refresh_token is always written, even when empty.
	_, ok, err = secure.Get(ctx, KeyRefreshToken)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestStore_WriteRequiresToken(t *testing.T) {
	st := NewStore(NewMemoryTier(), NewMemoryTier(), nil)
	assert.Error(t, st.Write(context.Background(), &Fields{}))
	assert.Error(t, st.Write(context.Background(), nil))
}

func TestStore_LegacyFailureRollsBack(t *testing.T) {
	ctx := context.Background()
	secure := NewMemoryTier()
	legacy := &failingTier{MemoryTier: NewMemoryTier()}
	st := NewStore(secure, legacy, nil)

	require.NoError(t, st.Write(ctx, sampleFields("tok-1")))
	before := dump(secure)

	legacy.failPut = true
	err := st.Write(ctx, sampleFields("tok-2"))
	assert.ErrorIs(t, err, ErrStorageUnavailable)
	assert.Equal(t, before, dump(secure), "secure tier must hold the previous session")
}

func TestStore_SecureFailure(t *testing.T) {
	ctx := context.Background()
	legacy := NewMemoryTier()
	st := NewStore(&failingTier{MemoryTier: NewMemoryTier(), failPut: true}, legacy, nil)

	err := st.Write(ctx, sampleFields("tok-1"))
	assert.ErrorIs(t, err, ErrStorageUnavailable)
	assert.Zero(t, legacy.Len(), "legacy tier is not written after a secure failure")
}

func TestStore_ReadEmpty(t *testing.T) {
	st := NewStore(NewMemoryTier(), NewMemoryTier(), nil)
	f, err := st.Read(context.Background())
	require.NoError(t, err)
	assert.Nil(t, f)
}

func TestStore_ReadCorruptValues(t *testing.T) {
	ctx := context.Background()
	secure := NewMemoryTier()
	require.NoError(t, secure.Put(ctx, map[string]string{
		KeyAuthToken:      "tok-1",
		KeyPrincipalKind:  "delegated",
		KeyPermissions:    "{not json",
		KeySessionContext: `"just a string"`,
	}))
	st := NewStore(secure, NewMemoryTier(), nil)

	f, err := st.Read(ctx)
	require.NoError(t, err)
	require.NotNil(t, f)
	assert.Nil(t, f.Permissions)
	assert.Nil(t, f.Context)
	assert.False(t, f.Complete())
}

func TestStore_ReadFailure(t *testing.T) {
	st := NewStore(&failingTier{MemoryTier: NewMemoryTier(), failGet: true}, NewMemoryTier(), nil)
	_, err := st.Read(context.Background())
	assert.ErrorIs(t, err, ErrStorageUnavailable)
}

func TestStore_Clear(t *testing.T) {
	ctx := context.Background()
	secure, legacy := NewMemoryTier(), NewMemoryTier()
	st := NewStore(secure, legacy, nil)

	require.NoError(t, st.Write(ctx, sampleFields("tok-1")))
	require.NoError(t, st.Clear(ctx))
	assert.Zero(t, secure.Len())
	assert.Zero(t, legacy.Len())

	// Clearing nothing is not an error.
	require.NoError(t, st.Clear(ctx))
}

func TestStore_ClearAttemptsBothTiers(t *testing.T) {
	ctx := context.Background()
	secure := &failingTier{MemoryTier: NewMemoryTier()}
	legacy := NewMemoryTier()
	st := NewStore(secure, legacy, nil)

	require.NoError(t, st.Write(ctx, sampleFields("tok-1")))
	secure.failDelete = true

	err := st.Clear(ctx)
	assert.ErrorIs(t, err, ErrStorageUnavailable)
	assert.ErrorIs(t, err, errTierDown)
	assert.Zero(t, legacy.Len(), "legacy tier is cleared even when the secure tier fails")
}

func TestStore_RepairLegacy(t *testing.T) {
	ctx := context.Background()
	legacy := NewMemoryTier()
	st := NewStore(NewMemoryTier(), legacy, nil)

	require.NoError(t, st.RepairLegacy(ctx, "tok-9"))
	token, ok, err := st.LegacyToken(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "tok-9", token)
}

func TestStore_SQLiteSecureTier(t *testing.T) {
	ctx := context.Background()
	db, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "session.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	legacy, err := NewFileTier(filepath.Join(t.TempDir(), "legacy.json"))
	require.NoError(t, err)

	st := NewStore(db.Tier("secure"), legacy, nil)
	require.NoError(t, st.Write(ctx, sampleFields("tok-1")))

	f, err := st.Read(ctx)
	require.NoError(t, err)
	require.NotNil(t, f)
	assert.Equal(t, "tok-1", f.Token)
	assert.Equal(t, "sess-1", f.Context.SessionID)

	require.NoError(t, st.Clear(ctx))
	f, err = st.Read(ctx)
	require.NoError(t, err)
	assert.Nil(t, f)
}

func TestFileTier(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "legacy.json")

	tier, err := NewFileTier(path)
	require.NoError(t, err)

	_, ok, err := tier.Get(ctx, KeyLegacyToken)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, tier.Put(ctx, map[string]string{KeyLegacyToken: "tok-1"}))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	v, ok, err := tier.Get(ctx, KeyLegacyToken)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "tok-1", v)

	require.NoError(t, tier.Delete(ctx, KeyLegacyToken))
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "empty tier removes its file")
}

func TestFileTier_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "legacy.json")
	require.NoError(t, os.WriteFile(path, []byte("garbage"), 0600))

	tier, err := NewFileTier(path)
	require.NoError(t, err)

	_, _, err = tier.Get(context.Background(), KeyLegacyToken)
	assert.Error(t, err)
}

func TestMemoryTier(t *testing.T) {
	ctx := context.Background()
	tier := NewMemoryTier()

	require.NoError(t, tier.Put(ctx, map[string]string{"a": "1", "b": "2"}))
	assert.Equal(t, 2, tier.Len())

	require.NoError(t, tier.Delete(ctx, "a", "missing"))
	assert.Equal(t, 1, tier.Len())

	v, ok, err := tier.Get(ctx, "b")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "2", v)
}
