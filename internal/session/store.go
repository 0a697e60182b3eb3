// ABOUTME: Two-tier session persistence with a secure tier and a legacy token mirror
// ABOUTME: Owns the write/rollback/repair logic so callers never reason about tiers

package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/2389/shipdesk-session/internal/auth"
)

// Storage keys. The secure tier holds the full session, the legacy tier only
// the bare token for older readers.
const (
	KeyAuthToken      = "auth_token"
	KeyRefreshToken   = "refresh_token"
	KeyPrincipalKind  = "principal_kind"
	KeyPermissions    = "permissions"
	KeySessionContext = "session_context"

	KeyLegacyToken = "token"
)

var secureKeys = []string{
	KeyAuthToken,
	KeyRefreshToken,
	KeyPrincipalKind,
	KeyPermissions,
	KeySessionContext,
}

// Context is the serialized identity attached to a session.
type Context struct {
	PrincipalID     string    `json:"principalId"`
	DisplayName     string    `json:"displayName,omitempty"`
	Email           string    `json:"email,omitempty"`
	BusinessName    string    `json:"businessName,omitempty"`
	RoleName        string    `json:"roleName,omitempty"`
	ParentAccountID string    `json:"parentAccountId,omitempty"`
	SessionID       string    `json:"sessionId,omitempty"`
	RememberMe      bool      `json:"rememberMe"`
	LoggedInAt      time.Time `json:"loggedInAt"`
}

// Fields is the persisted form of a session.
type Fields struct {
	Token        string
	RefreshToken string
	Kind         auth.Kind
	Permissions  []string // nil when missing or unreadable in storage
	Context      *Context // nil when missing or unreadable in storage
}

// Complete reports whether the token, context and permission list are all present.
func (f *Fields) Complete() bool {
	return f.Token != "" && f.Context != nil && f.Permissions != nil
}

// Store persists sessions across the secure and legacy tiers.
type Store struct {
	secure Tier
	legacy Tier
	logger *slog.Logger
}

// NewStore creates a two-tier session store.
func NewStore(secure, legacy Tier, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		secure: secure,
		legacy: legacy,
		logger: logger.With("component", "session_store"),
	}
}

// Write persists f to the secure tier and mirrors the token into the legacy
// tier. If the mirror fails the secure tier is rolled back to its previous
// contents and ErrStorageUnavailable is returned.
func (s *Store) Write(ctx context.Context, f *Fields) error {
	if f == nil || f.Token == "" {
		return fmt.Errorf("writing session: token is required")
	}

	perms := f.Permissions
	if perms == nil {
		perms = []string{}
	}
	permsJSON, err := json.Marshal(perms)
	if err != nil {
		return fmt.Errorf("encoding permissions: %w", err)
	}
	sc := f.Context
	if sc == nil {
		sc = &Context{}
	}
	contextJSON, err := json.Marshal(sc)
	if err != nil {
		return fmt.Errorf("encoding session context: %w", err)
	}

	previous, err := s.snapshot(ctx)
	if err != nil {
		s.logger.Error("session write aborted, secure tier unreadable", "error", err)
		return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}

	values := map[string]string{
		KeyAuthToken:      f.Token,
		KeyRefreshToken:   f.RefreshToken,
		KeyPrincipalKind:  string(f.Kind),
		KeyPermissions:    string(permsJSON),
		KeySessionContext: string(contextJSON),
	}
	if err := s.secure.Put(ctx, values); err != nil {
		s.logger.Error("secure tier write failed", "error", err)
		return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}

	if err := s.legacy.Put(ctx, map[string]string{KeyLegacyToken: f.Token}); err != nil {
		s.logger.Error("legacy tier write failed, rolling back secure tier", "error", err)
		if rbErr := s.restore(ctx, previous); rbErr != nil {
			s.logger.Error("secure tier rollback failed, tiers diverge until restore", "error", rbErr)
		}
		return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}

	return nil
}

// Read returns the stored session, or nil when the secure tier holds no token.
// Unreadable permission or context values come back as nil fields.
func (s *Store) Read(ctx context.Context) (*Fields, error) {
	token, ok, err := s.secure.Get(ctx, KeyAuthToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	if !ok || token == "" {
		return nil, nil
	}

	f := &Fields{Token: token}

	if f.RefreshToken, _, err = s.secure.Get(ctx, KeyRefreshToken); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}

	kind, _, err := s.secure.Get(ctx, KeyPrincipalKind)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	f.Kind = auth.Kind(kind)

	raw, ok, err := s.secure.Get(ctx, KeyPermissions)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	if ok {
		var perms []string
		if err := json.Unmarshal([]byte(raw), &perms); err != nil || perms == nil {
			s.logger.Warn("stored permissions unreadable", "error", err)
		} else {
			f.Permissions = perms
		}
	}

	raw, ok, err = s.secure.Get(ctx, KeySessionContext)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	if ok {
		var sc Context
		if err := json.Unmarshal([]byte(raw), &sc); err != nil || sc.PrincipalID == "" {
			s.logger.Warn("stored session context unreadable", "error", err)
		} else {
			f.Context = &sc
		}
	}

	return f, nil
}

// LegacyToken returns the token held by the legacy tier.
func (s *Store) LegacyToken(ctx context.Context) (string, bool, error) {
	token, ok, err := s.legacy.Get(ctx, KeyLegacyToken)
	if err != nil {
		return "", false, fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	return token, ok, nil
}

// RepairLegacy overwrites the legacy token with the authoritative secure token.
func (s *Store) RepairLegacy(ctx context.Context, token string) error {
	if err := s.legacy.Put(ctx, map[string]string{KeyLegacyToken: token}); err != nil {
		return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	return nil
}

// DropLegacy removes the legacy token. Used when the secure tier holds no
// session but an older reader's token was left behind.
func (s *Store) DropLegacy(ctx context.Context) error {
	if err := s.legacy.Delete(ctx, KeyLegacyToken); err != nil {
		return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	return nil
}

// Clear removes every session key from both tiers. Missing keys are not an
// error; both tiers are always attempted.
func (s *Store) Clear(ctx context.Context) error {
	var errs []error
	if err := s.secure.Delete(ctx, secureKeys...); err != nil {
		errs = append(errs, fmt.Errorf("clearing secure tier: %w", err))
	}
	if err := s.legacy.Delete(ctx, KeyLegacyToken); err != nil {
		errs = append(errs, fmt.Errorf("clearing legacy tier: %w", err))
	}
	if len(errs) > 0 {
		err := errors.Join(errs...)
		s.logger.Error("session clear incomplete", "error", err)
		return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	return nil
}

// snapshot captures the current secure tier so a failed write can be undone.
func (s *Store) snapshot(ctx context.Context) (map[string]string, error) {
	values := make(map[string]string, len(secureKeys))
	for _, key := range secureKeys {
		v, ok, err := s.secure.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		if ok {
			values[key] = v
		}
	}
	return values, nil
}

func (s *Store) restore(ctx context.Context, previous map[string]string) error {
	var missing []string
	for _, key := range secureKeys {
		if _, ok := previous[key]; !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		if err := s.secure.Delete(ctx, missing...); err != nil {
			return err
		}
	}
	if len(previous) > 0 {
		return s.secure.Put(ctx, previous)
	}
	return nil
}
