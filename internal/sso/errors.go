package sso

import "errors"

var (
	// ErrInvalidCredentials covers unknown email, inactive user and wrong
	// password alike, so a caller cannot enumerate registered accounts.
	ErrInvalidCredentials = errors.New("sso: invalid credentials")

	// ErrApplicationAccessDenied means the credentials were valid but the user
	// holds no active grant for this application.
	ErrApplicationAccessDenied = errors.New("sso: application access denied")

	// ErrNoEntitlement means the user holds no active grant for the module.
	ErrNoEntitlement = errors.New("sso: no module entitlement")

	// ErrInsufficientPermission means the user reaches the module but lacks the
	// required permission code.
	ErrInsufficientPermission = errors.New("sso: insufficient permission")

	// ErrStoreUnavailable means the SSO store could not answer within its timeout.
	ErrStoreUnavailable = errors.New("sso: store unavailable")

	// ErrNotFound is returned by store lookups that matched no row.
	ErrNotFound = errors.New("sso: not found")
)
