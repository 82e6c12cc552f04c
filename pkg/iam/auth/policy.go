package auth

import "slices"

// Policy is the per-route requirement evaluated by the Engine. The zero
// value admits any authenticated caller.
type Policy struct {
	// RootOnly rejects callers whose token lacks the root flag
	RootOnly bool
	// Roles admits callers holding at least one of them. Empty means any.
	Roles []string
}

// Authenticated admits any valid caller
func Authenticated() Policy { return Policy{} }

// RootOnly admits root callers only
func RootOnly() Policy { return Policy{RootOnly: true} }

// AnyRole admits callers holding at least one of roles
func AnyRole(roles ...string) Policy { return Policy{Roles: roles} }

func (p Policy) permits(held []string) bool {
	if len(p.Roles) == 0 {
		return true
	}
	for _, r := range p.Roles {
		if slices.Contains(held, r) {
			return true
		}
	}
	return false
}
