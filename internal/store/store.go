// ABOUTME: Store interfaces and data types for shipdesk session persistence
// ABOUTME: Defines delegated principal records and the PrincipalStore interface

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrDuplicateEmail is returned when a delegated principal email is already taken
var ErrDuplicateEmail = errors.New("email already exists")

// PrincipalStatus is the lifecycle status of a delegated principal.
type PrincipalStatus string

const (
	PrincipalStatusActive   PrincipalStatus = "active"
	PrincipalStatusInactive PrincipalStatus = "inactive"
)

// DelegatedPrincipal is a team member record in the principal directory.
type DelegatedPrincipal struct {
	ID              string
	ParentAccountID string
	DisplayName     string
	Email           string
	RoleName        string
	Permissions     []string
	Status          PrincipalStatus
	PasswordHash    string // bcrypt, empty if the principal has no local credential
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// IsActive reports whether the principal may hold a session.
func (p *DelegatedPrincipal) IsActive() bool {
	return p.Status == PrincipalStatusActive
}

// PrincipalReader is the read-only view of the directory used during login and refresh.
type PrincipalReader interface {
	GetDelegatedPrincipal(ctx context.Context, id string) (*DelegatedPrincipal, error)
	GetDelegatedPrincipalByEmail(ctx context.Context, email string) (*DelegatedPrincipal, error)
}

// PrincipalStore defines directory management for delegated principals.
type PrincipalStore interface {
	PrincipalReader

	CreateDelegatedPrincipal(ctx context.Context, p *DelegatedPrincipal) error
	ListDelegatedPrincipals(ctx context.Context, parentAccountID string) ([]*DelegatedPrincipal, error)
	UpdateDelegatedPrincipalStatus(ctx context.Context, id string, status PrincipalStatus) error
	DeleteDelegatedPrincipal(ctx context.Context, id string) error
}
