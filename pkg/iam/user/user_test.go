package user_test

import (
	"testing"

	"github.com/Abraxas-365/sentinel/pkg/iam/user"
	"github.com/stretchr/testify/assert"
)

func TestHashUsernameUsesCanonicalForm(t *testing.T) {
	assert.Equal(t, "alice", user.CanonicalUsername("  Alice "))
	assert.Equal(t, user.HashUsername("alice"), user.HashUsername(" ALICE\t"))
	assert.NotEqual(t, user.HashUsername("alice"), user.HashUsername("bob"))
	assert.Len(t, user.HashUsername("alice"), 64)
}
