package session

import (
	"github.com/dalemusser/admitdesk/internal/app/system/identity"
	"github.com/dalemusser/admitdesk/internal/domain/models"
)

// Phase names where the machine is in its resolution.
type Phase int

const (
	// Starting: the identity provider has not reported yet. Not ready.
	Starting Phase = iota
	// SignedOut: no identity. Ready.
	SignedOut
	// RoleUnknown: identity known, role record not yet observed. Not ready.
	RoleUnknown
	// Ready: identity and role known.
	Ready
	// Failed: the role could not be resolved. Ready, with no identity or
	// role, so every gate falls back to the signed-out view.
	Failed
)

func (p Phase) String() string {
	switch p {
	case Starting:
		return "starting"
	case SignedOut:
		return "signed_out"
	case RoleUnknown:
		return "role_unknown"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// State is the machine's view of the current client.
//
// Ready is true only when there is nothing left to resolve: signed out,
// signed in with a role, or failed. A state with an Identity and Ready set
// always carries the role read for that identity.
type State struct {
	Identity *identity.Identity
	Role     models.Role
	Ready    bool
	Err      error
}

// Phase classifies s.
func (s State) Phase() Phase {
	switch {
	case s.Err != nil && s.Ready:
		return Failed
	case s.Identity == nil && !s.Ready:
		return Starting
	case s.Identity == nil:
		return SignedOut
	case !s.Ready:
		return RoleUnknown
	default:
		return Ready
	}
}

// SignedIn reports whether s has a resolved identity.
func (s State) SignedIn() bool { return s.Ready && s.Identity != nil }

// IsSuperadmin reports whether s is signed in with the superadmin role.
func (s State) IsSuperadmin() bool { return s.SignedIn() && s.Role == models.RoleSuperadmin }

// ViewerID returns the signed-in principal id, or "".
func (s State) ViewerID() string {
	if s.Identity == nil {
		return ""
	}
	return s.Identity.ID
}

func signedOut() State { return State{Ready: true} }

func roleUnknown(id *identity.Identity) State { return State{Identity: id} }

func resolved(id *identity.Identity, role models.Role) State {
	return State{Identity: id, Role: role, Ready: true}
}

func failed(err error) State { return State{Ready: true, Err: err} }
