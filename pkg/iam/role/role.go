package role

import (
	"fmt"
	"net/http"
	"slices"
	"sort"
	"strings"

	"github.com/Abraxas-365/sentinel/pkg/errx"
)

// DefaultActions is the suffix set every resource contributes unless it
// declares its own.
var DefaultActions = []string{"get", "insert", "update", "delete", "export", "import"}

// Resource is one protected resource in the static role table
type Resource struct {
	Name     string
	RootOnly bool
	Actions  []string
}

// Assignable is the projection returned by EnumerateAssignableRoles
type Assignable struct {
	RootOnly bool     `json:"rootOnly"`
	Roles    []string `json:"roles"`
}

// Name builds the role string for a resource action
func Name(resource, action string) string {
	return strings.ToLower(resource) + ":" + strings.ToLower(action)
}

// Registry indexes every assignable role. It is built once at startup and
// read only afterwards.
type Registry struct {
	resources map[string]Assignable
	owner     map[string]string
}

func NewRegistry(resources ...Resource) (*Registry, error) {
	r := &Registry{
		resources: make(map[string]Assignable, len(resources)),
		owner:     make(map[string]string),
	}
	for _, res := range resources {
		name := strings.ToLower(strings.TrimSpace(res.Name))
		if name == "" {
			return nil, fmt.Errorf("role: resource with empty name")
		}
		if _, dup := r.resources[name]; dup {
			return nil, fmt.Errorf("role: duplicate resource %q", name)
		}
		actions := res.Actions
		if len(actions) == 0 {
			actions = DefaultActions
		}
		roles := make([]string, 0, len(actions))
		for _, action := range actions {
			roleName := Name(name, action)
			roles = append(roles, roleName)
			r.owner[roleName] = name
		}
		r.resources[name] = Assignable{RootOnly: res.RootOnly, Roles: roles}
	}
	return r, nil
}

// MustRegistry panics on an invalid table
func MustRegistry(resources ...Resource) *Registry {
	r, err := NewRegistry(resources...)
	if err != nil {
		panic(err)
	}
	return r
}

// Assignable returns a copy of the resource table
func (r *Registry) Assignable() map[string]Assignable {
	out := make(map[string]Assignable, len(r.resources))
	for name, a := range r.resources {
		out[name] = Assignable{RootOnly: a.RootOnly, Roles: slices.Clone(a.Roles)}
	}
	return out
}

// Lookup reports whether role is assignable and whether it is root only
func (r *Registry) Lookup(roleName string) (rootOnly bool, ok bool) {
	owner, ok := r.owner[roleName]
	if !ok {
		return false, false
	}
	return r.resources[owner].RootOnly, true
}

// Roles lists every assignable role, sorted
func (r *Registry) Roles() []string {
	out := make([]string, 0, len(r.owner))
	for name := range r.owner {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Normalize deduplicates and sorts a role set
func Normalize(roles []string) []string {
	seen := make(map[string]struct{}, len(roles))
	out := make([]string, 0, len(roles))
	for _, r := range roles {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}

// ============================================================================
// Error Registry
// ============================================================================

var ErrRegistry = errx.NewRegistry("ROLE")

var (
	CodeUnknownRole           = ErrRegistry.Register("UNKNOWN_ROLE", errx.TypeValidation, http.StatusBadRequest, "Unknown role")
	CodeForbiddenRootOnlyRole = ErrRegistry.Register("FORBIDDEN_ROOT_ONLY_ROLE", errx.TypeForbidden, http.StatusForbidden, "Role belongs to a root only resource")
	CodeEmptyRoles            = ErrRegistry.Register("EMPTY_ROLES", errx.TypeValidation, http.StatusBadRequest, "No roles given")
)

func ErrUnknownRole(roleName string) *errx.Error {
	return ErrRegistry.New(CodeUnknownRole).WithDetail("role", roleName)
}

func ErrForbiddenRootOnlyRole(roleName string) *errx.Error {
	return ErrRegistry.New(CodeForbiddenRootOnlyRole).WithDetail("role", roleName)
}

func ErrEmptyRoles() *errx.Error {
	return ErrRegistry.New(CodeEmptyRoles)
}
