// Package guard decides whether a caller may reach a role-gated route.
package guard

import (
	"slices"

	"pharmamart/internal/domain"
)

// State is the outcome of evaluating a snapshot against a requirement.
type State int

const (
	Unauthenticated State = iota
	PendingProfile
	WrongRole
	Unapproved
	Authorized
)

func (s State) String() string {
	switch s {
	case Unauthenticated:
		return "unauthenticated"
	case PendingProfile:
		return "pending_profile"
	case WrongRole:
		return "wrong_role"
	case Unapproved:
		return "pending_approval"
	case Authorized:
		return "authorized"
	}
	return "unknown"
}

// Snapshot is the latest known identity and profile state of a caller.
type Snapshot struct {
	Authenticated bool
	ProfileLoaded bool
	Role          domain.Role
	Approved      bool
}

// Requirement describes who may reach a route. Empty Roles admits any
// signed-in caller whose profile has loaded. Admin passes only when listed.
type Requirement struct {
	Roles []domain.Role
}

// Roles builds a Requirement admitting the given roles.
func Roles(roles ...domain.Role) Requirement {
	return Requirement{Roles: roles}
}

// Decision is the guard's verdict for one request.
type Decision struct {
	State State
	// RequiredRoles is set for WrongRole so callers can name what is needed.
	RequiredRoles []domain.Role
}

// Allowed reports whether the route may be served.
func (d Decision) Allowed() bool { return d.State == Authorized }

// Evaluate maps a snapshot to a state. It depends on nothing but its inputs.
func Evaluate(s Snapshot, req Requirement) Decision {
	switch {
	case !s.Authenticated:
		return Decision{State: Unauthenticated}
	case !s.ProfileLoaded:
		return Decision{State: PendingProfile}
	case len(req.Roles) > 0 && !slices.Contains(req.Roles, s.Role):
		return Decision{State: WrongRole, RequiredRoles: slices.Clone(req.Roles)}
	case s.Role == domain.RoleVendor && !s.Approved:
		if len(req.Roles) == 0 {
			return Decision{State: Authorized}
		}
		return Decision{State: Unapproved}
	}
	return Decision{State: Authorized}
}
