// ABOUTME: Shared fixtures for session tests
// ABOUTME: Fake clock, fake account service, failing tier and a wired Manager harness

package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/2389/shipdesk-session/internal/account"
	"github.com/2389/shipdesk-session/internal/auth"
	"github.com/2389/shipdesk-session/internal/store"
)

const (
	testIssuer   = "shipdesk"
	testAudience = "shipdesk-dashboard"
	testSecret   = "correct horse"
)

var testEpoch = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// fakeAccounts is an account.Client with scripted responses.
type fakeAccounts struct {
	mu          sync.Mutex
	loginCalls  int
	logoutCalls int
	result      *account.LoginResult
	loginErr    error
	logoutErr   error
}

func (f *fakeAccounts) Login(_ context.Context, _ account.LoginRequest) (*account.LoginResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loginCalls++
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	if f.result == nil {
		return nil, account.ErrAccountNotFound
	}
	r := *f.result
	return &r, nil
}

func (f *fakeAccounts) Logout(_ context.Context, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logoutCalls++
	return f.logoutErr
}

func (f *fakeAccounts) calls() (login, logout int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loginCalls, f.logoutCalls
}

func primaryResult() *account.LoginResult {
	return &account.LoginResult{
		AccessToken:  "remote-access-token",
		RefreshToken: "remote-refresh-token",
		ExpiresIn:    3600,
		AccountSummary: account.Summary{
			ID:           "acct-1",
			DisplayName:  "Asha Traders",
			Email:        "owner@asha.example",
			BusinessName: "Asha Traders Pvt Ltd",
		},
	}
}

// failingTier wraps a MemoryTier and fails the selected operations.
type failingTier struct {
	*MemoryTier
	failGet    bool
	failPut    bool
	failDelete bool
}

var errTierDown = errors.New("tier unavailable")

func (f *failingTier) Get(ctx context.Context, key string) (string, bool, error) {
	if f.failGet {
		return "", false, errTierDown
	}
	return f.MemoryTier.Get(ctx, key)
}

func (f *failingTier) Put(ctx context.Context, values map[string]string) error {
	if f.failPut {
		return errTierDown
	}
	return f.MemoryTier.Put(ctx, values)
}

func (f *failingTier) Delete(ctx context.Context, keys ...string) error {
	if f.failDelete {
		return errTierDown
	}
	return f.MemoryTier.Delete(ctx, keys...)
}

// panickingResolver panics on delegated lookups and otherwise defers to next.
type panickingResolver struct {
	next PrincipalResolver
}

func (p *panickingResolver) ResolveDelegated(context.Context, string, string) (*auth.DelegatedPrincipal, error) {
	panic("directory exploded")
}

func (p *panickingResolver) ResolvePrimary(ctx context.Context, identifier, secret string, rememberMe bool) (*auth.PrimaryAccount, *account.LoginResult, error) {
	return p.next.ResolvePrimary(ctx, identifier, secret, rememberMe)
}

func (p *panickingResolver) ResolveByID(ctx context.Context, id string) (*auth.DelegatedPrincipal, error) {
	return p.next.ResolveByID(ctx, id)
}

type harness struct {
	mgr      *Manager
	dir      *store.MockStore
	accounts *fakeAccounts
	secure   *MemoryTier
	legacy   *MemoryTier
	store    *Store
	clock    *fakeClock
	resolver *auth.Resolver
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		dir:      store.NewMockStore(),
		accounts: &fakeAccounts{},
		secure:   NewMemoryTier(),
		legacy:   NewMemoryTier(),
		clock:    &fakeClock{now: testEpoch},
	}
	h.store = NewStore(h.secure, h.legacy, nil)
	h.resolver = auth.NewResolver(h.dir, h.accounts, auth.SecretPolicyVerify, nil)
	h.mgr = h.newManager(t, h.resolver)
	return h
}

func (h *harness) newManager(t *testing.T, resolver PrincipalResolver) *Manager {
	t.Helper()
	mgr, err := NewManager(Config{
		Resolver: resolver,
		Codec:    auth.NewPlaceholderCodec().WithClock(h.clock.Now),
		Store:    h.store,
		Accounts: h.accounts,
		Audit:    h.dir,
		Issuer:   testIssuer,
		Audience: testAudience,
		Now:      h.clock.Now,
	})
	require.NoError(t, err)
	return mgr
}

// addDelegated seeds an active delegated principal with testSecret.
func (h *harness) addDelegated(t *testing.T, email string, perms ...string) *store.DelegatedPrincipal {
	t.Helper()
	hash, err := auth.HashSecret(testSecret)
	require.NoError(t, err)

	p := &store.DelegatedPrincipal{
		ParentAccountID: "acct-1",
		DisplayName:     "Ravi",
		Email:           email,
		RoleName:        "Operations",
		Permissions:     perms,
		Status:          store.PrincipalStatusActive,
		PasswordHash:    hash,
	}
	require.NoError(t, h.dir.CreateDelegatedPrincipal(context.Background(), p))
	return p
}

func (h *harness) auditActions() []store.AuditAction {
	var actions []store.AuditAction
	for _, e := range h.dir.AuditEntries() {
		actions = append(actions, e.Action)
	}
	return actions
}

func dump(t *MemoryTier) map[string]string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]string, len(t.values))
	for k, v := range t.values {
		out[k] = v
	}
	return out
}
