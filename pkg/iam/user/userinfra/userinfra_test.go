package userinfra_test

import (
	"context"
	"testing"

	"github.com/Abraxas-365/sentinel/pkg/errx"
	"github.com/Abraxas-365/sentinel/pkg/iam/user"
	"github.com/Abraxas-365/sentinel/pkg/iam/user/userinfra"
	"github.com/Abraxas-365/sentinel/pkg/kernel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestBcryptPasswordService(t *testing.T) {
	svc := userinfra.NewBcryptPasswordService(bcrypt.MinCost)
	hash, err := svc.Hash("pw")
	require.NoError(t, err)

	assert.True(t, svc.Verify(hash, "pw"))
	assert.False(t, svc.Verify(hash, "PW"))
	assert.False(t, svc.Verify("", "pw"))
}

func TestMemoryRepositoryIsolatesCopies(t *testing.T) {
	ctx := context.Background()
	repo := userinfra.NewMemoryUserRepository()
	repo.PutUser(user.User{ID: "u1", UsernameHash: user.HashUsername("alice"), Roles: []string{"a:get"}})
	repo.PutGroup(user.Group{ID: "g1", Roles: []string{"b:get"}})

	u, err := repo.FindByUsernameHash(ctx, user.HashUsername("Alice"))
	require.NoError(t, err)
	u.Roles[0] = "mutated"

	again, err := repo.FindByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"a:get"}, again.Roles)

	require.NoError(t, repo.SetBlocked(ctx, "u1", true))
	again, _ = repo.FindByID(ctx, "u1")
	assert.True(t, again.Blocked)

	err = repo.UpdateRoles(ctx, "missing", nil)
	assert.True(t, errx.IsCode(err, user.CodeUserNotFound))

	groups, err := repo.FindByIDs(ctx, []kernel.GroupID{"g1", "nope"})
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, []string{"b:get"}, groups[0].Roles)
}
