// ABOUTME: Session manager orchestrating login, logout, validation, refresh and restore
// ABOUTME: Delegated logins are minted locally; primary logins go through the remote account service

package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/2389/shipdesk-session/internal/account"
	"github.com/2389/shipdesk-session/internal/auth"
	"github.com/2389/shipdesk-session/internal/store"
)

// PrincipalResolver finds principals for login and refresh.
type PrincipalResolver interface {
	ResolveDelegated(ctx context.Context, identifier, secret string) (*auth.DelegatedPrincipal, error)
	ResolvePrimary(ctx context.Context, identifier, secret string, rememberMe bool) (*auth.PrimaryAccount, *account.LoginResult, error)
	ResolveByID(ctx context.Context, id string) (*auth.DelegatedPrincipal, error)
}

var _ PrincipalResolver = (*auth.Resolver)(nil)

// Config holds the collaborators of a Manager.
type Config struct {
	Resolver PrincipalResolver
	Codec    auth.TokenCodec
	Store    *Store

	// Accounts is used for remote logout of primary sessions. Optional.
	Accounts account.Client
	// Audit receives session lifecycle events. Optional.
	Audit store.AuditLogger

	Issuer   string
	Audience string

	Now    func() time.Time
	Logger *slog.Logger
}

// Manager owns the current session and its state machine.
// All methods are safe for concurrent use; writes to storage are serialized.
type Manager struct {
	resolver PrincipalResolver
	codec    auth.TokenCodec
	store    *Store
	accounts account.Client
	audit    store.AuditLogger
	issuer   string
	audience string
	now      func() time.Time
	logger   *slog.Logger

	mu      sync.Mutex
	state   State
	current *Session

	refreshGroup singleflight.Group
}

// NewManager creates a Manager from its collaborators.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.Resolver == nil {
		return nil, errors.New("session manager requires a resolver")
	}
	if cfg.Codec == nil {
		return nil, errors.New("session manager requires a token codec")
	}
	if cfg.Store == nil {
		return nil, errors.New("session manager requires a store")
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Manager{
		resolver: cfg.Resolver,
		codec:    cfg.Codec,
		store:    cfg.Store,
		accounts: cfg.Accounts,
		audit:    cfg.Audit,
		issuer:   cfg.Issuer,
		audience: cfg.Audience,
		now:      now,
		logger:   logger.With("component", "session"),
		state:    StateUnauthenticated,
	}, nil
}

// State returns the lifecycle state and, when authenticated, the principal kind.
func (m *Manager) State() (State, auth.Kind) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil {
		return m.state, ""
	}
	return m.state, m.current.Kind
}

// Current returns a copy of the current session, or nil.
func (m *Manager) Current() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current.clone()
}

// HasPermission reports whether the current session grants tag.
func (m *Manager) HasPermission(tag string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current.HasPermission(tag)
}

// Login authenticates identifier. Delegated principals are tried first and
// never touch the remote service; anything else goes to the remote account
// login. Returns auth.ErrPrincipalNotFound when neither path knows the
// identifier and auth.ErrAuthenticationFailed when credentials are rejected.
func (m *Manager) Login(ctx context.Context, identifier, secret string, rememberMe bool) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	prevState, prev := m.state, m.current
	m.state = StateAuthenticating

	sess, err := m.loginLocked(ctx, identifier, secret, rememberMe)
	if err != nil {
		// Storage still holds the previous session, if any, so memory does too.
		m.state, m.current = prevState, prev
		return nil, err
	}
	return sess, nil
}

func (m *Manager) loginLocked(ctx context.Context, identifier, secret string, rememberMe bool) (*Session, error) {
	delegated, err := m.resolveDelegated(ctx, identifier, secret)
	switch {
	case errors.Is(err, auth.ErrAuthenticationFailed):
		return nil, err
	case err != nil:
		m.logger.Warn("delegated resolution failed, falling back to account login", "error", err)
	case delegated != nil:
		return m.loginDelegated(ctx, delegated, rememberMe)
	}

	return m.loginPrimary(ctx, identifier, secret, rememberMe)
}

// resolveDelegated converts resolver panics into errors so a broken
// directory never aborts the primary login path.
func (m *Manager) resolveDelegated(ctx context.Context, identifier, secret string) (p *auth.DelegatedPrincipal, err error) {
	defer func() {
		if r := recover(); r != nil {
			p = nil
			err = fmt.Errorf("delegated resolution panicked: %v", r)
		}
	}()
	return m.resolver.ResolveDelegated(ctx, identifier, secret)
}

func (m *Manager) loginDelegated(ctx context.Context, p *auth.DelegatedPrincipal, rememberMe bool) (*Session, error) {
	now := m.now()
	sess, err := m.mintDelegated(p, Context{
		SessionID:  uuid.NewString(),
		RememberMe: rememberMe,
		LoggedInAt: now.UTC(),
	}, now)
	if err != nil {
		return nil, err
	}

	if err := m.store.Write(ctx, sess.fields()); err != nil {
		return nil, err
	}

	m.authenticate(sess)
	m.record(ctx, store.AuditLogin, sess, map[string]any{"parent_account_id": p.ParentAccountID})
	m.logger.Info("delegated principal logged in", "principal", p.ID, "parent", p.ParentAccountID)
	return sess.clone(), nil
}

func (m *Manager) loginPrimary(ctx context.Context, identifier, secret string, rememberMe bool) (*Session, error) {
	acct, result, err := m.resolver.ResolvePrimary(ctx, identifier, secret, rememberMe)
	if err != nil {
		if errors.Is(err, auth.ErrPrincipalNotFound) {
			m.logger.Info("login identifier not found")
		} else {
			m.logger.Info("account login rejected", "error", err)
		}
		return nil, err
	}

	now := m.now()
	sess := &Session{
		Token:        result.AccessToken,
		RefreshToken: result.RefreshToken,
		Kind:         auth.KindPrimary,
		Permissions:  auth.EffectivePermissions(acct),
		Context: Context{
			PrincipalID:  acct.ID,
			DisplayName:  acct.DisplayName,
			Email:        acct.Email,
			BusinessName: acct.BusinessName,
			SessionID:    uuid.NewString(),
			RememberMe:   rememberMe,
			LoggedInAt:   now.UTC(),
		},
	}
	if result.ExpiresIn > 0 {
		sess.ExpiresAt = now.Add(time.Duration(result.ExpiresIn) * time.Second)
	}

	if err := m.store.Write(ctx, sess.fields()); err != nil {
		return nil, err
	}

	m.authenticate(sess)
	m.record(ctx, store.AuditLogin, sess, nil)
	m.logger.Info("primary account logged in", "principal", acct.ID)
	return sess.clone(), nil
}

// Validate reports whether a usable session is stored. Expired or malformed
// delegated sessions are cleared. Primary tokens are opaque, so only their
// presence is checked.
func (m *Manager) Validate(ctx context.Context) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, err := m.validateLocked(ctx)
	return err == nil
}

type validated struct {
	fields *Fields
	kind   auth.Kind
	claims *auth.Claims // nil for primary sessions
}

func (m *Manager) validateLocked(ctx context.Context) (*validated, error) {
	f, err := m.store.Read(ctx)
	if err != nil {
		m.logger.Error("reading session failed", "error", err)
		return nil, err
	}
	if f == nil {
		m.forget()
		return nil, ErrNoSession
	}

	kind := f.Kind
	var claims *auth.Claims
	if kind == auth.KindDelegated || kind == "" {
		c, err := m.codec.Decode(f.Token)
		switch {
		case err == nil:
			claims = &c
			if kind == "" {
				kind = c.Kind
			}
		case kind == auth.KindDelegated:
			m.logger.Warn("stored delegated token malformed, clearing session", "error", err)
			m.clearLocked(ctx)
			return nil, err
		}
	}

	switch kind {
	case auth.KindPrimary:
		return &validated{fields: f, kind: kind}, nil
	case auth.KindDelegated:
		if claims.Kind != auth.KindDelegated {
			m.logger.Warn("stored token kind does not match session kind, clearing session")
			m.clearLocked(ctx)
			return nil, auth.ErrMalformedToken
		}
		if auth.IsExpired(*claims, m.now()) {
			m.logger.Info("delegated session expired", "principal", claims.Subject)
			m.recordFor(ctx, store.AuditExpired, claims.Subject, auth.KindDelegated, sessionIDOf(f), nil)
			m.clearLocked(ctx)
			return nil, ErrSessionExpired
		}
		return &validated{fields: f, kind: kind, claims: claims}, nil
	default:
		m.logger.Warn("stored session has unknown principal kind, clearing session", "kind", f.Kind)
		m.clearLocked(ctx)
		return nil, auth.ErrMalformedToken
	}
}

// Refresh re-mints the token of a delegated session after re-reading the
// principal from the directory. A principal that was deleted or deactivated
// ends the session with auth.ErrPrincipalRevoked. Concurrent callers share
// a single refresh.
func (m *Manager) Refresh(ctx context.Context) (*Session, error) {
	v, err, _ := m.refreshGroup.Do("refresh", func() (any, error) {
		m.mu.Lock()
		defer m.mu.Unlock()
		return m.refreshLocked(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Session).clone(), nil
}

func (m *Manager) refreshLocked(ctx context.Context) (*Session, error) {
	v, err := m.validateLocked(ctx)
	if err != nil {
		return nil, err
	}
	if v.kind != auth.KindDelegated {
		return nil, ErrNotDelegated
	}

	prev := m.state
	m.state = StateRefreshing

	p, err := m.resolver.ResolveByID(ctx, v.claims.Subject)
	if errors.Is(err, auth.ErrPrincipalRevoked) {
		m.logger.Warn("delegated principal revoked, ending session", "principal", v.claims.Subject)
		m.recordFor(ctx, store.AuditRevoked, v.claims.Subject, auth.KindDelegated, sessionIDOf(v.fields), nil)
		m.clearLocked(ctx)
		return nil, err
	}
	if err != nil {
		m.state = prev
		return nil, fmt.Errorf("refreshing session: %w", err)
	}

	sc := Context{}
	if v.fields.Context != nil {
		sc = *v.fields.Context
	}
	now := m.now()
	if sc.SessionID == "" {
		sc.SessionID = uuid.NewString()
	}
	if sc.LoggedInAt.IsZero() {
		sc.LoggedInAt = now.UTC()
	}

	sess, err := m.mintDelegated(p, sc, now)
	if err != nil {
		m.state = prev
		return nil, err
	}
	if err := m.store.Write(ctx, sess.fields()); err != nil {
		m.state = prev
		return nil, err
	}

	m.authenticate(sess)
	m.record(ctx, store.AuditRefresh, sess, nil)
	m.logger.Debug("delegated session refreshed", "principal", p.ID)
	return sess, nil
}

// Restore loads the stored session at startup. Delegated sessions missing
// their context or permission list get one refresh attempt. A legacy token
// that differs from the secure token is overwritten, and one left behind
// without any secure session is removed. Calling Restore again
// leaves storage unchanged.
func (m *Manager) Restore(ctx context.Context) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, err := m.validateLocked(ctx)
	if errors.Is(err, ErrNoSession) {
		m.dropOrphanedLegacy(ctx)
		return false
	}
	if err != nil {
		return false
	}

	if v.kind == auth.KindDelegated && (!v.fields.Complete() || v.fields.Kind == "") {
		m.logger.Warn("partial delegated session found, attempting refresh", "principal", v.claims.Subject)
		sess, err := m.refreshLocked(ctx)
		if err != nil {
			m.logger.Warn("partial session could not be refreshed", "error", err)
			m.clearLocked(ctx)
			return false
		}
		m.repairLegacy(ctx, sess)
		return true
	}

	sess := m.sessionFromFields(v)
	m.repairLegacy(ctx, sess)
	m.authenticate(sess)
	m.logger.Info("session restored", "principal", sess.Context.PrincipalID, "kind", sess.Kind)
	return true
}

func (m *Manager) repairLegacy(ctx context.Context, sess *Session) {
	legacy, ok, err := m.store.LegacyToken(ctx)
	if err != nil {
		m.logger.Warn("legacy tier unreadable, skipping repair", "error", err)
		return
	}
	if ok && legacy == sess.Token {
		return
	}

	if err := m.store.RepairLegacy(ctx, sess.Token); err != nil {
		m.logger.Warn("legacy tier repair failed", "error", err)
		return
	}
	m.record(ctx, store.AuditRepair, sess, map[string]any{"legacy_present": ok})
	m.logger.Info("legacy session tier repaired")
}

// dropOrphanedLegacy removes a legacy token left without a secure session.
func (m *Manager) dropOrphanedLegacy(ctx context.Context) {
	legacy, ok, err := m.store.LegacyToken(ctx)
	if err != nil {
		m.logger.Warn("legacy tier unreadable, skipping repair", "error", err)
		return
	}
	if !ok {
		return
	}

	if err := m.store.DropLegacy(ctx); err != nil {
		m.logger.Warn("removing orphaned legacy token failed", "error", err)
		return
	}

	principalID, kind := "", auth.Kind("")
	if c, err := m.codec.Decode(legacy); err == nil {
		principalID, kind = c.Subject, c.Kind
	}
	m.recordFor(ctx, store.AuditRepair, principalID, kind, "", map[string]any{"secure_present": false})
	m.logger.Info("orphaned legacy session token removed")
}

func (m *Manager) sessionFromFields(v *validated) *Session {
	f := v.fields
	sess := &Session{
		Token:        f.Token,
		RefreshToken: f.RefreshToken,
		Kind:         v.kind,
		Permissions:  auth.EffectivePermissionsForKind(v.kind, f.Permissions),
	}
	if f.Context != nil {
		sess.Context = *f.Context
	}
	if v.claims != nil {
		sess.ExpiresAt = time.Unix(v.claims.ExpiresAt, 0)
	}
	return sess
}

// Logout ends the session. Primary sessions are logged out remotely first;
// local storage is cleared regardless of the remote result. Remote and
// storage errors are both returned.
func (m *Manager) Logout(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	f, err := m.store.Read(ctx)
	if err != nil {
		m.logger.Warn("reading session before logout failed", "error", err)
	}

	var remoteErr error
	if f != nil && f.Kind == auth.KindPrimary && m.accounts != nil {
		if err := m.accounts.Logout(ctx, f.Token); err != nil {
			m.logger.Warn("remote logout failed, clearing local session anyway", "error", err)
			remoteErr = fmt.Errorf("remote logout: %w", err)
		}
	}

	clearErr := m.store.Clear(ctx)

	if f != nil {
		principalID, sessionID := "", sessionIDOf(f)
		if f.Context != nil {
			principalID = f.Context.PrincipalID
		}
		m.recordFor(ctx, store.AuditLogout, principalID, f.Kind, sessionID, nil)
	}

	m.current = nil
	m.state = StateLoggedOut
	m.logger.Info("logged out")

	return errors.Join(remoteErr, clearErr)
}

func (m *Manager) mintDelegated(p *auth.DelegatedPrincipal, sc Context, now time.Time) (*Session, error) {
	claims := auth.NewDelegatedClaims(p, m.issuer, m.audience, now)
	token, err := m.codec.Encode(claims)
	if err != nil {
		return nil, fmt.Errorf("minting token: %w", err)
	}

	sc.PrincipalID = p.ID
	sc.DisplayName = p.DisplayName
	sc.Email = p.Email
	sc.RoleName = p.RoleName
	sc.ParentAccountID = p.ParentAccountID
	sc.BusinessName = ""

	return &Session{
		Token:       token,
		Kind:        auth.KindDelegated,
		Permissions: auth.EffectivePermissions(p),
		Context:     sc,
		ExpiresAt:   time.Unix(claims.ExpiresAt, 0),
	}, nil
}

func (m *Manager) authenticate(sess *Session) {
	m.current = sess
	m.state = StateAuthenticated
}

// forget drops the in-memory session without touching storage.
func (m *Manager) forget() {
	m.current = nil
	if m.state != StateLoggedOut {
		m.state = StateUnauthenticated
	}
}

// clearLocked drops the session from memory and, best effort, from storage.
func (m *Manager) clearLocked(ctx context.Context) {
	if err := m.store.Clear(ctx); err != nil {
		m.logger.Error("clearing session failed", "error", err)
	}
	m.current = nil
	m.state = StateUnauthenticated
}

func (m *Manager) record(ctx context.Context, action store.AuditAction, sess *Session, detail map[string]any) {
	m.recordFor(ctx, action, sess.Context.PrincipalID, sess.Kind, sess.Context.SessionID, detail)
}

func (m *Manager) recordFor(ctx context.Context, action store.AuditAction, principalID string, kind auth.Kind, sessionID string, detail map[string]any) {
	if m.audit == nil {
		return
	}
	err := m.audit.AppendAuditLog(ctx, &store.AuditEntry{
		PrincipalID: principalID,
		Kind:        string(kind),
		Action:      action,
		SessionID:   sessionID,
		Timestamp:   m.now().UTC(),
		Detail:      detail,
	})
	if err != nil {
		m.logger.Warn("appending session audit entry failed", "action", action, "error", err)
	}
}

func sessionIDOf(f *Fields) string {
	if f == nil || f.Context == nil {
		return ""
	}
	return f.Context.SessionID
}
