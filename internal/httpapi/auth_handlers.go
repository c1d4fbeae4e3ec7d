package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"smartsefaz.org/internal/session"
	"smartsefaz.org/internal/sso"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      *sso.User `json:"user"`
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	user, err := a.deps.Authenticator.Authenticate(r.Context(), req.Email, req.Password, requestMeta(r))
	if err != nil {
		switch {
		case errors.Is(err, sso.ErrInvalidCredentials), errors.Is(err, sso.ErrApplicationAccessDenied):
			// The two are logged distinctly but presented identically.
			writeError(w, http.StatusUnauthorized, "invalid credentials")
		case errors.Is(err, sso.ErrStoreUnavailable):
			writeError(w, http.StatusServiceUnavailable, "service unavailable, try again")
		default:
			writeError(w, http.StatusInternalServerError, "authentication error")
		}
		return
	}

	token, expiresAt, err := a.deps.Sessions.Issue(user)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "token issuance failed")
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{Token: token, ExpiresAt: expiresAt, User: user})
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	claims, ok := session.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	a.deps.Authenticator.RecordLogout(r.Context(), claims.Subject, requestMeta(r))
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	claims, ok := session.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":         claims.Subject,
		"name":       claims.Name,
		"email":      claims.Email,
		"job_title":  claims.JobTitle,
		"department": claims.Department,
		"photo_url":  claims.PhotoURL,
	})
}

func (a *API) handlePermissions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	claims, ok := session.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	perms, err := a.deps.Authorizer.Permissions(r.Context(), claims.Subject)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "service unavailable, try again")
		return
	}
	writeJSON(w, http.StatusOK, perms)
}

type authorizeResponse struct {
	Allowed bool   `json:"allowed"`
	Module  string `json:"module,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

func (a *API) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	claims, ok := session.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	route := strings.TrimSpace(r.URL.Query().Get("route"))
	if route == "" {
		writeError(w, http.StatusBadRequest, "route is required")
		return
	}
	var required sso.Permission
	if p := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("permission"))); p != "" {
		required = sso.Permission(p)
		if !required.Valid() {
			writeError(w, http.StatusBadRequest, "unknown permission code")
			return
		}
	}

	decision := a.deps.Authorizer.Authorize(r.Context(), claims.Subject, route, required, requestMeta(r))
	writeJSON(w, http.StatusOK, authorizeResponse{
		Allowed: decision.Allowed,
		Module:  decision.Module,
		Reason:  denyReasonCode(decision.Reason),
	})
}

func denyReasonCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, sso.ErrNoEntitlement):
		return "no_entitlement"
	case errors.Is(err, sso.ErrInsufficientPermission):
		return "insufficient_permission"
	case errors.Is(err, sso.ErrStoreUnavailable):
		return "store_unavailable"
	default:
		return "denied"
	}
}
