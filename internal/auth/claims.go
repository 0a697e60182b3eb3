// ABOUTME: Session claims carried inside locally minted bearer tokens
// ABOUTME: Closed primary/delegated union with a flat JSON wire form

package auth

import (
	"encoding/json"
	"fmt"
	"time"
)

// TokenTTL is the fixed lifetime of every locally minted token.
const TokenTTL = 24 * time.Hour

// Kind discriminates the two principal variants.
type Kind string

const (
	KindPrimary   Kind = "primary"
	KindDelegated Kind = "delegated"
)

// Valid reports whether k is one of the known principal kinds.
func (k Kind) Valid() bool {
	return k == KindPrimary || k == KindDelegated
}

// DelegatedClaims holds the claims that only exist for delegated principals.
type DelegatedClaims struct {
	Permissions     []string // never nil once decoded or minted
	ParentAccountID string
	RoleName        string
}

// Claims is the payload embedded in a session token.
// Delegation is non-nil if and only if Kind is KindDelegated.
type Claims struct {
	Subject              string
	Issuer               string
	Audience             string
	IssuedAt             int64 // unix seconds
	ExpiresAt            int64 // unix seconds
	Kind                 Kind
	Email                string
	DisplayName          string
	Delegation           *DelegatedClaims
	PlaceholderSignature bool
}

// NewDelegatedClaims mints claims for a delegated principal issued at now.
func NewDelegatedClaims(p *DelegatedPrincipal, issuer, audience string, now time.Time) Claims {
	perms := make([]string, len(p.Permissions))
	copy(perms, p.Permissions)

	return Claims{
		Subject:     p.ID,
		Issuer:      issuer,
		Audience:    audience,
		IssuedAt:    now.Unix(),
		ExpiresAt:   now.Add(TokenTTL).Unix(),
		Kind:        KindDelegated,
		Email:       p.Email,
		DisplayName: p.DisplayName,
		Delegation: &DelegatedClaims{
			Permissions:     perms,
			ParentAccountID: p.ParentAccountID,
			RoleName:        p.RoleName,
		},
	}
}

// IsExpired reports whether the claims are expired at now.
// A token is expired from the exact second of its expiry onwards.
func IsExpired(c Claims, now time.Time) bool {
	return now.Unix() >= c.ExpiresAt
}

// Validate checks the union invariants of the claims. Delegated claims must
// also span exactly TokenTTL, as every locally minted token does.
func (c Claims) Validate() error {
	if c.Subject == "" {
		return fmt.Errorf("%w: missing subject", ErrMalformedToken)
	}
	if c.ExpiresAt == 0 {
		return fmt.Errorf("%w: missing expiry", ErrMalformedToken)
	}

	switch c.Kind {
	case KindDelegated:
		if c.Delegation == nil {
			return fmt.Errorf("%w: delegated claims without delegation", ErrMalformedToken)
		}
		if c.Delegation.ParentAccountID == "" {
			return fmt.Errorf("%w: delegated claims without parent account", ErrMalformedToken)
		}
		if c.ExpiresAt-c.IssuedAt != int64(TokenTTL/time.Second) {
			return fmt.Errorf("%w: delegated token lifetime is %ds", ErrMalformedToken, c.ExpiresAt-c.IssuedAt)
		}
	case KindPrimary:
		if c.Delegation != nil {
			return fmt.Errorf("%w: primary claims carry delegation fields", ErrMalformedToken)
		}
	default:
		return fmt.Errorf("%w: unknown principal kind %q", ErrMalformedToken, c.Kind)
	}

	return nil
}

// wireClaims is the JSON shape of the claims segment.
type wireClaims struct {
	Subject              string    `json:"sub"`
	Issuer               string    `json:"iss,omitempty"`
	Audience             string    `json:"aud,omitempty"`
	IssuedAt             int64     `json:"iat"`
	ExpiresAt            int64     `json:"exp"`
	Kind                 Kind      `json:"principalKind"`
	Email                string    `json:"email,omitempty"`
	DisplayName          string    `json:"displayName,omitempty"`
	Permissions          *[]string `json:"permissions,omitempty"`
	ParentAccountID      string    `json:"parentAccountId,omitempty"`
	RoleName             string    `json:"roleName,omitempty"`
	PlaceholderSignature bool      `json:"isPlaceholderSignature"`
}

func (c Claims) toWire() wireClaims {
	w := wireClaims{
		Subject:              c.Subject,
		Issuer:               c.Issuer,
		Audience:             c.Audience,
		IssuedAt:             c.IssuedAt,
		ExpiresAt:            c.ExpiresAt,
		Kind:                 c.Kind,
		Email:                c.Email,
		DisplayName:          c.DisplayName,
		PlaceholderSignature: c.PlaceholderSignature,
	}
	if d := c.Delegation; d != nil {
		perms := d.Permissions
		if perms == nil {
			perms = []string{}
		}
		w.Permissions = &perms
		w.ParentAccountID = d.ParentAccountID
		w.RoleName = d.RoleName
	}
	return w
}

func (w wireClaims) toClaims() (Claims, error) {
	c := Claims{
		Subject:              w.Subject,
		Issuer:               w.Issuer,
		Audience:             w.Audience,
		IssuedAt:             w.IssuedAt,
		ExpiresAt:            w.ExpiresAt,
		Kind:                 w.Kind,
		Email:                w.Email,
		DisplayName:          w.DisplayName,
		PlaceholderSignature: w.PlaceholderSignature,
	}

	hasDelegation := w.Permissions != nil || w.ParentAccountID != "" || w.RoleName != ""
	if w.Kind == KindDelegated || hasDelegation {
		perms := []string{}
		if w.Permissions != nil {
			perms = append(perms, *w.Permissions...)
		}
		c.Delegation = &DelegatedClaims{
			Permissions:     perms,
			ParentAccountID: w.ParentAccountID,
			RoleName:        w.RoleName,
		}
	}

	if err := c.Validate(); err != nil {
		return Claims{}, err
	}
	return c, nil
}

// MarshalJSON encodes the claims in their wire form.
func (c Claims) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.toWire())
}

// UnmarshalJSON decodes and validates wire-form claims.
func (c *Claims) UnmarshalJSON(data []byte) error {
	var w wireClaims
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
	decoded, err := w.toClaims()
	if err != nil {
		return err
	}
	*c = decoded
	return nil
}
