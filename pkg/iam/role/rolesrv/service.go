package rolesrv

import (
	"context"
	"slices"

	"github.com/Abraxas-365/sentinel/pkg/errx"
	"github.com/Abraxas-365/sentinel/pkg/iam/role"
	"github.com/Abraxas-365/sentinel/pkg/iam/user"
	"github.com/Abraxas-365/sentinel/pkg/kernel"
	"github.com/Abraxas-365/sentinel/pkg/logx"
)

// RoleService expands group membership and guards role mutations
type RoleService struct {
	users    user.UserRepository
	groups   user.GroupRepository
	registry *role.Registry
}

var _ role.Resolver = (*RoleService)(nil)

func NewRoleService(users user.UserRepository, groups user.GroupRepository, registry *role.Registry) *RoleService {
	return &RoleService{
		users:    users,
		groups:   groups,
		registry: registry,
	}
}

// ResolveEffectiveRoles is the sorted union of direct and group roles
func (s *RoleService) ResolveEffectiveRoles(ctx context.Context, u *user.User) ([]string, error) {
	roles := slices.Clone(u.Roles)
	if len(u.Groups) > 0 {
		groups, err := s.groups.FindByIDs(ctx, u.Groups)
		if err != nil {
			return nil, errx.Wrap(err, "failed to resolve group roles", errx.TypeInternal)
		}
		for _, g := range groups {
			roles = append(roles, g.Roles...)
		}
	}
	return role.Normalize(roles), nil
}

func (s *RoleService) EnumerateAssignableRoles() map[string]role.Assignable {
	return s.registry.Assignable()
}

// AssignRoles adds roles to the user's direct set and returns the new set
func (s *RoleService) AssignRoles(ctx context.Context, userID kernel.UserID, roles []string) ([]string, error) {
	requested, err := s.validate(roles)
	if err != nil {
		return nil, err
	}
	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	updated := role.Normalize(append(slices.Clone(u.Roles), requested...))
	if err := s.users.UpdateRoles(ctx, userID, updated); err != nil {
		return nil, err
	}

	logx.WithFields(logx.Fields{
		"user_id": userID,
		"roles":   requested,
	}).Info("Roles assigned")
	return updated, nil
}

// RemoveRoles drops roles from the user's direct set. Validation is the
// same as for assignment.
func (s *RoleService) RemoveRoles(ctx context.Context, userID kernel.UserID, roles []string) ([]string, error) {
	requested, err := s.validate(roles)
	if err != nil {
		return nil, err
	}
	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	updated := slices.DeleteFunc(role.Normalize(u.Roles), func(r string) bool {
		return slices.Contains(requested, r)
	})
	if err := s.users.UpdateRoles(ctx, userID, updated); err != nil {
		return nil, err
	}

	logx.WithFields(logx.Fields{
		"user_id": userID,
		"roles":   requested,
	}).Info("Roles removed")
	return updated, nil
}

// SetBlocked flips the blocked flag. Blocked users fail login and OAuth exchange.
func (s *RoleService) SetBlocked(ctx context.Context, userID kernel.UserID, blocked bool) error {
	if err := s.users.SetBlocked(ctx, userID, blocked); err != nil {
		return err
	}
	logx.WithFields(logx.Fields{
		"user_id": userID,
		"blocked": blocked,
	}).Info("User blocked flag updated")
	return nil
}

// validate fails on the first unknown role, then on the first root only role
func (s *RoleService) validate(roles []string) ([]string, error) {
	requested := role.Normalize(roles)
	if len(requested) == 0 {
		return nil, role.ErrEmptyRoles()
	}
	for _, r := range requested {
		if _, ok := s.registry.Lookup(r); !ok {
			return nil, role.ErrUnknownRole(r)
		}
	}
	for _, r := range requested {
		if rootOnly, _ := s.registry.Lookup(r); rootOnly {
			return nil, role.ErrForbiddenRootOnlyRole(r)
		}
	}
	return requested, nil
}
