// ABOUTME: Principal resolution for login and refresh
// ABOUTME: Delegated principals come from the local directory, primary accounts from the remote service

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/2389/shipdesk-session/internal/account"
	"github.com/2389/shipdesk-session/internal/store"
)

// Resolution errors
var (
	ErrPrincipalNotFound    = errors.New("no account matches this identifier")
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrPrincipalRevoked     = errors.New("principal revoked")
)

// SecretPolicy controls how delegated principal secrets are checked.
type SecretPolicy string

const (
	// SecretPolicyVerify requires a stored bcrypt hash that matches the secret.
	SecretPolicyVerify SecretPolicy = "verify"

	// SecretPolicyIdentifierOnly resolves delegated principals by identifier
	// alone and leaves credential checks to an upstream identity provider.
	SecretPolicyIdentifierOnly SecretPolicy = "identifier_only"
)

// ParseSecretPolicy validates a configured policy name. Empty means verify.
func ParseSecretPolicy(s string) (SecretPolicy, error) {
	switch SecretPolicy(s) {
	case "", SecretPolicyVerify:
		return SecretPolicyVerify, nil
	case SecretPolicyIdentifierOnly:
		return SecretPolicyIdentifierOnly, nil
	default:
		return "", fmt.Errorf("unknown delegated secret policy %q", s)
	}
}

// Resolver finds the principal behind a login identifier.
type Resolver struct {
	directory store.PrincipalReader
	accounts  account.Client
	policy    SecretPolicy
	logger    *slog.Logger
}

// NewResolver creates a resolver. accounts may be nil, in which case every
// identifier that is not a delegated principal resolves to ErrPrincipalNotFound.
func NewResolver(directory store.PrincipalReader, accounts account.Client, policy SecretPolicy, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	if policy == "" {
		policy = SecretPolicyVerify
	}
	return &Resolver{
		directory: directory,
		accounts:  accounts,
		policy:    policy,
		logger:    logger.With("component", "resolver"),
	}
}

// ResolveDelegated looks identifier up as a delegated principal email.
// Returns nil, nil when nothing active matches so the caller can try the
// primary account path. A matching principal with a wrong secret yields
// ErrAuthenticationFailed.
func (r *Resolver) ResolveDelegated(ctx context.Context, identifier, secret string) (*DelegatedPrincipal, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, nil
	}

	rec, err := r.directory.GetDelegatedPrincipalByEmail(ctx, identifier)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("looking up delegated principal: %w", err)
	}

	if !rec.IsActive() {
		r.logger.Debug("delegated principal inactive", "id", rec.ID)
		return nil, nil
	}

	switch r.policy {
	case SecretPolicyIdentifierOnly:
		r.logger.Warn("delegated principal resolved without secret verification", "id", rec.ID)
	default:
		if !VerifySecret(secret, rec.PasswordHash) {
			r.logger.Info("delegated principal secret rejected", "id", rec.ID)
			return nil, ErrAuthenticationFailed
		}
	}

	return delegatedFromRecord(rec), nil
}

// ResolvePrimary authenticates a primary account against the remote service.
func (r *Resolver) ResolvePrimary(ctx context.Context, identifier, secret string, rememberMe bool) (*PrimaryAccount, *account.LoginResult, error) {
	if r.accounts == nil {
		return nil, nil, ErrPrincipalNotFound
	}

	result, err := r.accounts.Login(ctx, account.LoginRequest{
		Identifier: identifier,
		Secret:     secret,
		RememberMe: rememberMe,
	})
	if errors.Is(err, account.ErrAccountNotFound) {
		return nil, nil, ErrPrincipalNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrAuthenticationFailed, err)
	}

	summary := result.AccountSummary
	return &PrimaryAccount{
		ID:           summary.ID,
		DisplayName:  summary.DisplayName,
		Email:        summary.Email,
		BusinessName: summary.BusinessName,
	}, result, nil
}

// ResolveByID re-reads a delegated principal for refresh.
// Missing or inactive principals yield ErrPrincipalRevoked.
func (r *Resolver) ResolveByID(ctx context.Context, id string) (*DelegatedPrincipal, error) {
	rec, err := r.directory.GetDelegatedPrincipal(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrPrincipalRevoked
	}
	if err != nil {
		return nil, fmt.Errorf("looking up delegated principal: %w", err)
	}
	if !rec.IsActive() {
		return nil, ErrPrincipalRevoked
	}
	return delegatedFromRecord(rec), nil
}

func delegatedFromRecord(rec *store.DelegatedPrincipal) *DelegatedPrincipal {
	perms := make([]string, len(rec.Permissions))
	copy(perms, rec.Permissions)
	return &DelegatedPrincipal{
		ID:              rec.ID,
		DisplayName:     rec.DisplayName,
		Email:           rec.Email,
		RoleName:        rec.RoleName,
		Permissions:     perms,
		ParentAccountID: rec.ParentAccountID,
	}
}
