package sso

import "context"

// Store describes the persistence operations the SSO core needs. The backing
// schema is shared with every other consumer of the identity provider, so the
// store only reads entitlements and appends log rows; provisioning happens
// elsewhere.
type Store interface {
	Users(ctx context.Context) UserStore
	Grants(ctx context.Context) GrantStore
	AccessLog(ctx context.Context) AccessLogStore
}

// UserStore reads the credential registry.
type UserStore interface {
	// FindByEmail matches the email case-insensitively. Returns ErrNotFound
	// when no user exists; the caller decides how much of that to reveal.
	FindByEmail(ctx context.Context, email string) (*User, error)

	// TouchLastAccess updates the user's last-access timestamp.
	TouchLastAccess(ctx context.Context, userID string) error
}

// ModuleGrantSet is the result of a module entitlement lookup: the resolved
// module id (for audit) and the union of active, non-expired permission codes.
type ModuleGrantSet struct {
	ModuleID    string
	Permissions []Permission
}

// GrantStore reads entitlements. Every lookup filters to active rows whose
// expiry is null or in the future; an expired grant behaves as absent.
type GrantStore interface {
	// ApplicationGrant returns the user's grant for the application, or
	// ErrNotFound when no active, non-expired grant exists.
	ApplicationGrant(ctx context.Context, userID, applicationID string) (*ApplicationGrant, error)

	// ModuleGrants resolves the module registered under moduleRoute and returns
	// the user's permission union for it. An unregistered or inactive module
	// yields ErrNotFound; a registered module with no grants yields an empty set.
	ModuleGrants(ctx context.Context, userID, moduleRoute, applicationID string) (*ModuleGrantSet, error)

	// ModulesForUser lists every active module of the application with the
	// user's effective permissions per module (empty where none are granted).
	ModulesForUser(ctx context.Context, userID, applicationID string) ([]ModuleAccess, error)
}

// AccessLogStore appends immutable audit rows. No update or delete is exposed;
// retention is an administrative concern outside this service.
type AccessLogStore interface {
	Append(ctx context.Context, entry *AccessEntry) error
}
