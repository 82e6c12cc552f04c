package rolesrv_test

import (
	"context"
	"testing"

	"github.com/Abraxas-365/sentinel/pkg/errx"
	"github.com/Abraxas-365/sentinel/pkg/iam/role"
	"github.com/Abraxas-365/sentinel/pkg/iam/role/rolesrv"
	"github.com/Abraxas-365/sentinel/pkg/iam/user"
	"github.com/Abraxas-365/sentinel/pkg/iam/user/userinfra"
	"github.com/Abraxas-365/sentinel/pkg/kernel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) (*rolesrv.RoleService, *userinfra.MemoryUserRepository) {
	t.Helper()
	repo := userinfra.NewMemoryUserRepository()
	repo.PutGroup(user.Group{ID: "g-sales", Roles: []string{"invoice:get", "report:export"}})
	repo.PutGroup(user.Group{ID: "g-audit", Roles: []string{"report:get", "invoice:get"}})
	repo.PutUser(user.User{
		ID:     "u1",
		Roles:  []string{"invoice:insert"},
		Groups: []kernel.GroupID{"g-sales", "g-audit", "g-deleted"},
	})

	registry := role.MustRegistry(
		role.Resource{Name: "invoice"},
		role.Resource{Name: "report"},
		role.Resource{Name: "users", RootOnly: true},
	)
	return rolesrv.NewRoleService(repo, repo, registry), repo
}

func TestResolveEffectiveRolesUnionsGroups(t *testing.T) {
	svc, repo := setup(t)
	u, err := repo.FindByID(context.Background(), "u1")
	require.NoError(t, err)

	roles, err := svc.ResolveEffectiveRoles(context.Background(), u)
	require.NoError(t, err)
	assert.Equal(t, []string{"invoice:get", "invoice:insert", "report:export", "report:get"}, roles)
}

func TestAssignRoles(t *testing.T) {
	svc, repo := setup(t)
	ctx := context.Background()

	roles, err := svc.AssignRoles(ctx, "u1", []string{"report:delete", "invoice:insert"})
	require.NoError(t, err)
	assert.Equal(t, []string{"invoice:insert", "report:delete"}, roles)

	u, _ := repo.FindByID(ctx, "u1")
	assert.Equal(t, roles, u.Roles)
}

func TestAssignRolesRejectsRootOnly(t *testing.T) {
	svc, repo := setup(t)
	ctx := context.Background()

	_, err := svc.AssignRoles(ctx, "u1", []string{"invoice:get", "users:update"})
	require.Error(t, err)
	assert.True(t, errx.IsCode(err, role.CodeForbiddenRootOnlyRole))
	assert.Equal(t, 403, errx.HTTPStatus(err))

	u, _ := repo.FindByID(ctx, "u1")
	assert.Equal(t, []string{"invoice:insert"}, u.Roles)
}

func TestAssignAndRemoveRejectUnknownRoles(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	_, err := svc.AssignRoles(ctx, "u1", []string{"invoice:fly"})
	assert.True(t, errx.IsCode(err, role.CodeUnknownRole))

	_, err = svc.RemoveRoles(ctx, "u1", []string{"ghost:get"})
	assert.True(t, errx.IsCode(err, role.CodeUnknownRole))

	_, err = svc.RemoveRoles(ctx, "u1", []string{"users:get"})
	assert.True(t, errx.IsCode(err, role.CodeForbiddenRootOnlyRole))

	_, err = svc.AssignRoles(ctx, "u1", nil)
	assert.True(t, errx.IsCode(err, role.CodeEmptyRoles))
}

func TestRoleMutationsRequireUser(t *testing.T) {
	svc, _ := setup(t)
	_, err := svc.AssignRoles(context.Background(), "nobody", []string{"invoice:get"})
	assert.True(t, errx.IsCode(err, user.CodeUserNotFound))
}

func TestRemoveRoles(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	_, err := svc.AssignRoles(ctx, "u1", []string{"report:get"})
	require.NoError(t, err)

	roles, err := svc.RemoveRoles(ctx, "u1", []string{"invoice:insert", "invoice:delete"})
	require.NoError(t, err)
	assert.Equal(t, []string{"report:get"}, roles)
}

func TestEnumerateAssignableRoles(t *testing.T) {
	svc, _ := setup(t)
	table := svc.EnumerateAssignableRoles()
	assert.Len(t, table, 3)
	assert.True(t, table["users"].RootOnly)
}
