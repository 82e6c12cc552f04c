package role_test

import (
	"testing"

	"github.com/Abraxas-365/sentinel/pkg/iam/role"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryDerivesRolesFromResources(t *testing.T) {
	reg, err := role.NewRegistry(
		role.Resource{Name: "Invoice"},
		role.Resource{Name: "oauth_clients", RootOnly: true, Actions: []string{"get", "update"}},
	)
	require.NoError(t, err)

	table := reg.Assignable()
	require.Contains(t, table, "invoice")
	assert.False(t, table["invoice"].RootOnly)
	assert.Equal(t, []string{
		"invoice:get", "invoice:insert", "invoice:update",
		"invoice:delete", "invoice:export", "invoice:import",
	}, table["invoice"].Roles)
	assert.True(t, table["oauth_clients"].RootOnly)

	rootOnly, ok := reg.Lookup("oauth_clients:update")
	assert.True(t, ok)
	assert.True(t, rootOnly)

	_, ok = reg.Lookup("oauth_clients:delete")
	assert.False(t, ok)
	assert.Len(t, reg.Roles(), 8)
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	_, err := role.NewRegistry(role.Resource{Name: "a"}, role.Resource{Name: "A"})
	assert.Error(t, err)
	assert.Panics(t, func() { role.MustRegistry(role.Resource{}) })
}

func TestAssignableReturnsCopy(t *testing.T) {
	reg := role.MustRegistry(role.Resource{Name: "invoice"})
	table := reg.Assignable()
	table["invoice"].Roles[0] = "mutated"
	assert.Equal(t, "invoice:get", reg.Assignable()["invoice"].Roles[0])
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, []string{"a:get", "b:get"}, role.Normalize([]string{"b:get", " a:get", "b:get", ""}))
	assert.Empty(t, role.Normalize(nil))
}
