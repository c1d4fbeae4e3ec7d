package sso

import (
	"context"
	"errors"
	"strings"
	"time"

	"smartsefaz.org/internal/obs"
)

const defaultStoreTimeout = 3 * time.Second

// Authenticator validates login attempts against the shared SSO registry.
// Every call, success or failure, produces exactly one LOGIN access-log entry.
type Authenticator struct {
	store         Store
	recorder      *Recorder
	applicationID string
	timeout       time.Duration
	now           func() time.Time
}

// AuthenticatorOption configures an Authenticator.
type AuthenticatorOption func(*Authenticator)

// WithAuthTimeout overrides the per-query store timeout.
func WithAuthTimeout(d time.Duration) AuthenticatorOption {
	return func(a *Authenticator) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// WithAuthClock overrides the time source, for tests.
func WithAuthClock(fn func() time.Time) AuthenticatorOption {
	return func(a *Authenticator) {
		if fn != nil {
			a.now = fn
		}
	}
}

// NewAuthenticator constructs an Authenticator bound to one application.
func NewAuthenticator(store Store, recorder *Recorder, applicationID string, opts ...AuthenticatorOption) *Authenticator {
	a := &Authenticator{
		store:         store,
		recorder:      recorder,
		applicationID: applicationID,
		timeout:       defaultStoreTimeout,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Authenticate validates the email/password pair and the user's application
// grant. Unknown email, inactive user and wrong password all surface as
// ErrInvalidCredentials; a missing application grant is the distinct
// ErrApplicationAccessDenied; store failures are ErrStoreUnavailable.
func (a *Authenticator) Authenticate(ctx context.Context, email, password string, meta RequestMeta) (*User, error) {
	email = strings.TrimSpace(strings.ToLower(email))

	user, err := a.lookupUser(ctx, email)
	switch {
	case errors.Is(err, ErrNotFound):
		a.logLogin(ctx, UnknownUserID, meta, false, loginFailureDetails(email, "invalid_credentials"))
		obs.ObserveLogin("invalid_credentials")
		return nil, ErrInvalidCredentials
	case err != nil:
		a.logLogin(ctx, UnknownUserID, meta, false, loginFailureDetails(email, "store_unavailable"))
		obs.ObserveLogin("store_unavailable")
		return nil, ErrStoreUnavailable
	}

	if !user.Active {
		a.logLogin(ctx, user.ID, meta, false, loginFailureDetails(email, "invalid_credentials"))
		obs.ObserveLogin("invalid_credentials")
		return nil, ErrInvalidCredentials
	}

	if err := VerifyPassword(user.PasswordHash, password); err != nil {
		a.logLogin(ctx, user.ID, meta, false, loginFailureDetails(email, "invalid_credentials"))
		obs.ObserveLogin("invalid_credentials")
		return nil, ErrInvalidCredentials
	}

	_, err = a.applicationGrant(ctx, user.ID)
	switch {
	case errors.Is(err, ErrNotFound):
		a.logLogin(ctx, user.ID, meta, false, loginFailureDetails(email, "application_access_denied"))
		obs.ObserveLogin("application_access_denied")
		return nil, ErrApplicationAccessDenied
	case err != nil:
		a.logLogin(ctx, user.ID, meta, false, loginFailureDetails(email, "store_unavailable"))
		obs.ObserveLogin("store_unavailable")
		return nil, ErrStoreUnavailable
	}

	// Best-effort: a failed last-access update must not fail the login.
	a.touchLastAccess(ctx, user.ID)

	a.logLogin(ctx, user.ID, meta, true, nil)
	obs.ObserveLogin("success")

	user.PasswordHash = ""
	return user, nil
}

// RecordLogout appends a LOGOUT entry for the user. Tokens are self-contained,
// so logout is an audit event rather than a server-side invalidation.
func (a *Authenticator) RecordLogout(ctx context.Context, userID string, meta RequestMeta) {
	a.recorder.Record(ctx, &AccessEntry{
		UserID:    userID,
		Action:    ActionLogout,
		IP:        meta.IP,
		UserAgent: meta.UserAgent,
		Success:   true,
	})
}

func (a *Authenticator) lookupUser(ctx context.Context, email string) (*User, error) {
	qctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	return a.store.Users(qctx).FindByEmail(qctx, email)
}

func (a *Authenticator) applicationGrant(ctx context.Context, userID string) (*ApplicationGrant, error) {
	qctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	return a.store.Grants(qctx).ApplicationGrant(qctx, userID, a.applicationID)
}

func (a *Authenticator) touchLastAccess(ctx context.Context, userID string) {
	qctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.timeout)
	defer cancel()
	if err := a.store.Users(qctx).TouchLastAccess(qctx, userID); err != nil {
		obs.LogEntry(map[string]any{
			"ts":    a.now().UTC().Format(time.RFC3339Nano),
			"level": "warn",
			"msg":   "last_access_update_failed",
			"user":  userID,
			"error": err.Error(),
		})
	}
}

func (a *Authenticator) logLogin(ctx context.Context, userID string, meta RequestMeta, success bool, details map[string]any) {
	a.recorder.Record(ctx, &AccessEntry{
		UserID:    userID,
		Action:    ActionLogin,
		IP:        meta.IP,
		UserAgent: meta.UserAgent,
		Success:   success,
		Details:   details,
	})
}

// loginFailureDetails names the failure for the audit trail. The submitted
// password is never part of it.
func loginFailureDetails(email, reason string) map[string]any {
	return map[string]any{"email": email, "reason": reason}
}
