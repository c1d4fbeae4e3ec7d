package sso

import (
	"context"
	"errors"
	"time"

	"smartsefaz.org/internal/obs"
)

// Decision is the outcome of an authorization check. Reason is nil on allow
// and one of ErrNoEntitlement, ErrInsufficientPermission or ErrStoreUnavailable
// on deny.
type Decision struct {
	Allowed bool
	Reason  error
	Module  string
	// ModuleID is the store id of the resolved module, when it was reached.
	ModuleID string
}

// Authorizer gates routes by module entitlement. Entitlements are re-queried on
// every call; the session token is never trusted for authorization, so a
// revoked grant takes effect on the next request.
type Authorizer struct {
	store         Store
	recorder      *Recorder
	routes        *RouteTable
	applicationID string
	timeout       time.Duration
}

// AuthorizerOption configures an Authorizer.
type AuthorizerOption func(*Authorizer)

// WithAuthzTimeout overrides the per-query store timeout.
func WithAuthzTimeout(d time.Duration) AuthorizerOption {
	return func(a *Authorizer) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// NewAuthorizer constructs an Authorizer over a static route table.
func NewAuthorizer(store Store, recorder *Recorder, routes *RouteTable, applicationID string, opts ...AuthorizerOption) *Authorizer {
	a := &Authorizer{
		store:         store,
		recorder:      recorder,
		routes:        routes,
		applicationID: applicationID,
		timeout:       defaultStoreTimeout,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Authorize decides whether userID may reach route. required may be empty, in
// which case any active module grant suffices. Routes outside the table are
// public: allowed without a store query or a log entry. Every guarded decision,
// allow or deny, appends exactly one ACCESS entry. A store error resolves to
// deny, never allow.
func (a *Authorizer) Authorize(ctx context.Context, userID, route string, required Permission, meta RequestMeta) Decision {
	module, guarded := a.routes.Resolve(route)
	if !guarded {
		return Decision{Allowed: true}
	}

	grants, err := a.moduleGrants(ctx, userID, module)
	if err != nil {
		reason := ErrNoEntitlement
		outcome := "deny_no_entitlement"
		if !errors.Is(err, ErrNotFound) {
			reason = ErrStoreUnavailable
			outcome = "deny_store_unavailable"
		}
		a.logAccess(ctx, userID, "", meta, false, denyDetails(route, module, reason))
		obs.ObserveAuthorize(outcome)
		return Decision{Allowed: false, Reason: reason, Module: module}
	}

	if len(grants.Permissions) == 0 {
		a.logAccess(ctx, userID, grants.ModuleID, meta, false, denyDetails(route, module, ErrNoEntitlement))
		obs.ObserveAuthorize("deny_no_entitlement")
		return Decision{Allowed: false, Reason: ErrNoEntitlement, Module: module, ModuleID: grants.ModuleID}
	}

	if required != "" && !Satisfies(grants.Permissions, required) {
		details := denyDetails(route, module, ErrInsufficientPermission)
		details["required"] = string(required)
		a.logAccess(ctx, userID, grants.ModuleID, meta, false, details)
		obs.ObserveAuthorize("deny_insufficient_permission")
		return Decision{Allowed: false, Reason: ErrInsufficientPermission, Module: module, ModuleID: grants.ModuleID}
	}

	a.logAccess(ctx, userID, grants.ModuleID, meta, true, map[string]any{"route": route, "module": module})
	obs.ObserveAuthorize("allow")
	return Decision{Allowed: true, Module: module, ModuleID: grants.ModuleID}
}

// HasModuleAccess is the boolean convenience contract consumed by the
// rendering layer.
func (a *Authorizer) HasModuleAccess(ctx context.Context, userID, route string, meta RequestMeta) bool {
	return a.Authorize(ctx, userID, route, "", meta).Allowed
}

// Permissions returns the user's entitlement view: the application-level gate
// plus every active module with the user's effective permission codes.
func (a *Authorizer) Permissions(ctx context.Context, userID string) (*UserPermissions, error) {
	qctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	grants := a.store.Grants(qctx)
	if _, err := grants.ApplicationGrant(qctx, userID, a.applicationID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return &UserPermissions{HasAccess: false, Modules: []ModuleAccess{}}, nil
		}
		return nil, ErrStoreUnavailable
	}

	modules, err := grants.ModulesForUser(qctx, userID, a.applicationID)
	if err != nil {
		return nil, ErrStoreUnavailable
	}
	return &UserPermissions{HasAccess: true, Modules: modules}, nil
}

func (a *Authorizer) moduleGrants(ctx context.Context, userID, moduleRoute string) (*ModuleGrantSet, error) {
	qctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	return a.store.Grants(qctx).ModuleGrants(qctx, userID, moduleRoute, a.applicationID)
}

func (a *Authorizer) logAccess(ctx context.Context, userID, moduleID string, meta RequestMeta, success bool, details map[string]any) {
	a.recorder.Record(ctx, &AccessEntry{
		UserID:    userID,
		ModuleID:  moduleID,
		Action:    ActionAccess,
		IP:        meta.IP,
		UserAgent: meta.UserAgent,
		Success:   success,
		Details:   details,
	})
}

func denyDetails(route, module string, reason error) map[string]any {
	detail := "no_entitlement"
	switch {
	case errors.Is(reason, ErrInsufficientPermission):
		detail = "insufficient_permission"
	case errors.Is(reason, ErrStoreUnavailable):
		detail = "store_unavailable"
	}
	return map[string]any{"route": route, "module": module, "reason": detail}
}
