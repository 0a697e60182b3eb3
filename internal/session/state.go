// ABOUTME: Session lifecycle states and the in-memory Session value
// ABOUTME: Session copies are handed to callers so internal state cannot be mutated

package session

import (
	"time"

	"github.com/2389/shipdesk-session/internal/auth"
)

// State is the position of a Manager in the session lifecycle.
type State int

const (
	StateUnauthenticated State = iota
	StateAuthenticating
	StateAuthenticated
	StateRefreshing
	StateLoggedOut
)

func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticating:
		return "authenticating"
	case StateAuthenticated:
		return "authenticated"
	case StateRefreshing:
		return "refreshing"
	case StateLoggedOut:
		return "logged_out"
	default:
		return "unknown"
	}
}

// Session is the current authenticated session.
type Session struct {
	Token        string
	RefreshToken string
	Kind         auth.Kind
	Permissions  []string
	Context      Context
	ExpiresAt    time.Time // zero when the token is opaque and its expiry unknown
}

// HasPermission reports whether the session grants tag. Primary sessions
// always resolve against the full catalog.
func (s *Session) HasPermission(tag string) bool {
	if s == nil {
		return false
	}
	return auth.ContainsPermission(auth.EffectivePermissionsForKind(s.Kind, s.Permissions), tag)
}

func (s *Session) clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	c.Permissions = append([]string{}, s.Permissions...)
	return &c
}

func (s *Session) fields() *Fields {
	sc := s.Context
	return &Fields{
		Token:        s.Token,
		RefreshToken: s.RefreshToken,
		Kind:         s.Kind,
		Permissions:  append([]string{}, s.Permissions...),
		Context:      &sc,
	}
}
