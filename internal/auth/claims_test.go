// ABOUTME: Tests for session claims construction and wire-form validation
// ABOUTME: Covers delegated minting, union invariants and JSON key names

package auth

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDelegatedClaims(t *testing.T) {
	p := sampleDelegated()
	c := NewDelegatedClaims(p, "shipdesk", "dashboard", mintedAt)

	assert.Equal(t, "dp-1", c.Subject)
	assert.Equal(t, KindDelegated, c.Kind)
	assert.Equal(t, mintedAt.Unix(), c.IssuedAt)
	assert.Equal(t, mintedAt.Unix()+86400, c.ExpiresAt)
	require.NotNil(t, c.Delegation)
	assert.Equal(t, "acct-1", c.Delegation.ParentAccountID)
	assert.Equal(t, "Operations", c.Delegation.RoleName)
	assert.NoError(t, c.Validate())

	// Minted claims do not alias the principal's slice.
	p.Permissions[0] = PermManageUsers
	assert.Equal(t, PermDashboard, c.Delegation.Permissions[0])
}

func TestClaims_Validate(t *testing.T) {
	base := NewDelegatedClaims(sampleDelegated(), "", "", mintedAt)

	tests := []struct {
		name   string
		mutate func(c *Claims)
	}{
		{"missing subject", func(c *Claims) { c.Subject = "" }},
		{"missing expiry", func(c *Claims) { c.ExpiresAt = 0 }},
		{"delegated without delegation", func(c *Claims) { c.Delegation = nil }},
		{"delegated without parent", func(c *Claims) { c.Delegation = &DelegatedClaims{} }},
		{"primary with delegation", func(c *Claims) { c.Kind = KindPrimary }},
		{"unknown kind", func(c *Claims) { c.Kind = "root" }},
		{"delegated lifetime too long", func(c *Claims) { c.ExpiresAt += 3600 }},
		{"delegated lifetime too short", func(c *Claims) { c.ExpiresAt-- }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base
			d := *base.Delegation
			c.Delegation = &d
			tt.mutate(&c)
			assert.True(t, errors.Is(c.Validate(), ErrMalformedToken))
		})
	}
}

func TestClaims_PrimaryJSON(t *testing.T) {
	c := Claims{
		Subject:   "acct-1",
		IssuedAt:  mintedAt.Unix(),
		ExpiresAt: mintedAt.Unix() + 86400,
		Kind:      KindPrimary,
		Email:     "owner@asha.example",
	}
	data, err := json.Marshal(c)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "primary", raw["principalKind"])
	assert.NotContains(t, raw, "permissions")
	assert.NotContains(t, raw, "parentAccountId")

	var back Claims
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, c, back)
}

func TestKindValid(t *testing.T) {
	assert.True(t, KindPrimary.Valid())
	assert.True(t, KindDelegated.Valid())
	assert.False(t, Kind("").Valid())
	assert.False(t, Kind("admin").Valid())
}
