package sso

import "time"

// User is an identity record in the shared SSO registry. Users are provisioned
// by the SSO admin panel; this service only reads them and touches last access.
type User struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	Name         string `json:"name"`
	CPF          string `json:"cpf,omitempty"`
	PasswordHash string `json:"-"`
	Active       bool   `json:"-"`
	JobTitle     string `json:"job_title,omitempty"`
	Department   string `json:"department,omitempty"`
	PhotoURL     string `json:"photo_url,omitempty"`
}

// Module is a routable feature area of an application, the unit of authorization.
type Module struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Route  string `json:"route"`
	Order  int    `json:"order"`
	Active bool   `json:"active"`
}

// ApplicationGrant gives a user access to an application as a whole. It is the
// outer gate: without it no module-level check is reached.
type ApplicationGrant struct {
	UserID        string
	ApplicationID string
	Active        bool
	ExpiresAt     *time.Time
}

// ModuleAccess is a module together with the caller's effective permission codes,
// as returned by the permissions listing.
type ModuleAccess struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Route       string       `json:"route"`
	Permissions []Permission `json:"permissions"`
}

// UserPermissions is the full entitlement view for one user in this application.
type UserPermissions struct {
	HasAccess bool           `json:"has_access"`
	Modules   []ModuleAccess `json:"modules"`
}

// Action identifies the kind of event an access-log entry records.
type Action string

const (
	ActionLogin  Action = "LOGIN"
	ActionLogout Action = "LOGOUT"
	ActionAccess Action = "ACCESS"
	ActionCreate Action = "CREATE"
	ActionUpdate Action = "UPDATE"
	ActionDelete Action = "DELETE"
)

// UnknownUserID is the sentinel recorded when a login attempt could not be
// resolved to a registered user.
const UnknownUserID = "unknown"

// AccessEntry is one immutable row of the access audit log.
type AccessEntry struct {
	ID            string
	UserID        string
	ApplicationID string
	ModuleID      string
	Action        Action
	IP            string
	UserAgent     string
	Success       bool
	Details       map[string]any
	OccurredAt    time.Time
}

// RequestMeta carries the client metadata the HTTP layer attaches to every
// authentication and authorization call.
type RequestMeta struct {
	IP        string
	UserAgent string
}
