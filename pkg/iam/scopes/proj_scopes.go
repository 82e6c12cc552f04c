package scopes

import "github.com/Abraxas-365/sentinel/pkg/iam/role"

// ============================================================================
// Protected resources of this deployment
// ============================================================================

const (
	ResourceProfile     = "profile"
	ResourceReport      = "report"
	ResourceBilling     = "billing"
	ResourceUser        = "user"
	ResourceOAuthClient = "oauth_client"
)

// Resources is the static role table. Root only resources can never be
// assigned to a non-root user.
func Resources() []role.Resource {
	return []role.Resource{
		{Name: ResourceProfile, Actions: []string{"get", "update"}},
		{Name: ResourceReport},
		{Name: ResourceBilling, Actions: []string{"get", "export"}},
		{Name: ResourceUser, RootOnly: true},
		{Name: ResourceOAuthClient, RootOnly: true, Actions: []string{"get", "insert", "update", "delete"}},
	}
}

// Registry builds the role registry for Resources
func Registry() *role.Registry {
	return role.MustRegistry(Resources()...)
}
