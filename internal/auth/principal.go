// ABOUTME: Principal model for the two kinds of authenticated actors
// ABOUTME: Primary accounts log in remotely; delegated principals act under a parent account

package auth

// Principal is an authenticated actor. The set of implementations is closed.
type Principal interface {
	PrincipalID() string
	Kind() Kind
	isPrincipal()
}

// PrimaryAccount is an account holder authenticated by the remote account service.
type PrimaryAccount struct {
	ID           string
	DisplayName  string
	Email        string
	BusinessName string
}

func (p *PrimaryAccount) PrincipalID() string { return p.ID }
func (p *PrimaryAccount) Kind() Kind          { return KindPrimary }
func (p *PrimaryAccount) isPrincipal()        {}

// DelegatedPrincipal is a team member acting on behalf of ParentAccountID
// with an explicit permission set.
type DelegatedPrincipal struct {
	ID              string
	DisplayName     string
	Email           string
	RoleName        string
	Permissions     []string
	ParentAccountID string
}

func (p *DelegatedPrincipal) PrincipalID() string { return p.ID }
func (p *DelegatedPrincipal) Kind() Kind          { return KindDelegated }
func (p *DelegatedPrincipal) isPrincipal()        {}
