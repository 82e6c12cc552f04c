package scopes_test

import (
	"testing"

	"github.com/Abraxas-365/sentinel/pkg/iam/role"
	"github.com/Abraxas-365/sentinel/pkg/iam/scopes"
	"github.com/stretchr/testify/assert"
)

func TestRegistryTable(t *testing.T) {
	reg := scopes.Registry()

	rootOnly, ok := reg.Lookup(role.Name(scopes.ResourceUser, "delete"))
	assert.True(t, ok)
	assert.True(t, rootOnly)

	rootOnly, ok = reg.Lookup("report:export")
	assert.True(t, ok)
	assert.False(t, rootOnly)

	_, ok = reg.Lookup("profile:delete")
	assert.False(t, ok)

	table := reg.Assignable()
	assert.Equal(t, []string{"billing:get", "billing:export"}, table[scopes.ResourceBilling].Roles)
	assert.Len(t, table, 5)
}
