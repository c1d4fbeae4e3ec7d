package sso

// Permission is one of the fixed permission codes of the SSO schema.
type Permission string

const (
	PermRead   Permission = "READ"
	PermWrite  Permission = "WRITE"
	PermDelete Permission = "DELETE"
	PermAdmin  Permission = "ADMIN"
)

// BuiltinPermissions lists every code the schema knows, in seed order.
var BuiltinPermissions = []Permission{PermRead, PermWrite, PermDelete, PermAdmin}

// Valid reports whether p is a known permission code.
func (p Permission) Valid() bool {
	switch p {
	case PermRead, PermWrite, PermDelete, PermAdmin:
		return true
	}
	return false
}

// Satisfies reports whether the granted set covers the required permission.
// ADMIN covers every other code.
func Satisfies(granted []Permission, required Permission) bool {
	for _, g := range granted {
		if g == PermAdmin || g == required {
			return true
		}
	}
	return false
}
