package apps

import "context"

// Directory port (interface untuk listing applications/organizations)
type Directory interface {
	// ListApplications returns every application visible to the credentials,
	// optionally restricted to one organization. Empty organizationID = all.
	ListApplications(ctx context.Context, organizationID string) ([]Application, error)

	// ListOrganizations returns all organizations for id->name mapping.
	ListOrganizations(ctx context.Context) ([]Organization, error)
}
