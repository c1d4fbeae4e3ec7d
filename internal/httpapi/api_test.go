package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"smartsefaz.org/internal/session"
	"smartsefaz.org/internal/sso"
)

const (
	testAppID  = "ac86e8c4-32f6-4103-b544-12836864fc43"
	testSecret = "test-secret"
)

type testEnv struct {
	api     *API
	handler http.Handler
	store   *sso.MemStore
}

// newTestEnv wires the full service over an in-memory store: one active user
// (ana@x.gov / s3cret) with an application grant, and a /dashboard module.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store := sso.NewMemStore()
	hash, err := sso.HashPassword("s3cret")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	store.AddUser(sso.User{
		ID:           "u1",
		Email:        "ana@x.gov",
		Name:         "Ana Souza",
		PasswordHash: hash,
		Active:       true,
		JobTitle:     "Auditora",
	})
	store.GrantApplication("u1", testAppID, nil)
	store.AddModule(sso.Module{ID: "m-dash", Name: "Dashboard", Route: "/dashboard", Active: true, Order: 1})

	routes, err := sso.NewRouteTable([]sso.RouteRule{
		{Prefix: "/dashboard", Module: "/dashboard"},
	})
	if err != nil {
		t.Fatalf("NewRouteTable: %v", err)
	}

	recorder := sso.NewRecorder(store, testAppID, time.Second)
	sessions, err := session.NewManager(testSecret)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	api := New(Deps{
		Authenticator: sso.NewAuthenticator(store, recorder, testAppID),
		Authorizer:    sso.NewAuthorizer(store, recorder, routes, testAppID),
		Sessions:      sessions,
		Version:       "test",
	})
	return &testEnv{api: api, handler: api.Handler(), store: store}
}

func (env *testEnv) do(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("User-Agent", "test-agent")
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	return rec
}

func (env *testEnv) login(t *testing.T) string {
	t.Helper()
	rec := env.do(t, http.MethodPost, "/v1/auth/login", "", `{"email":"ana@x.gov","password":"s3cret"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("login: status %d, body %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	if resp.Token == "" {
		t.Fatal("empty token in login response")
	}
	return resp.Token
}

func TestLoginAndMe(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/v1/auth/login", "", `{"email":"ana@x.gov","password":"s3cret"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d, body %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Token     string    `json:"token"`
		ExpiresAt time.Time `json:"expires_at"`
		User      *sso.User `json:"user"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.User == nil || resp.User.ID != "u1" {
		t.Fatalf("unexpected user: %+v", resp.User)
	}
	if resp.ExpiresAt.IsZero() {
		t.Fatal("expires_at missing")
	}
	if strings.Contains(rec.Body.String(), "senha") || strings.Contains(rec.Body.String(), hashPrefix) {
		t.Fatal("password material leaked into the response")
	}

	me := env.do(t, http.MethodGet, "/v1/auth/me", resp.Token, "")
	if me.Code != http.StatusOK {
		t.Fatalf("me: status %d, body %s", me.Code, me.Body.String())
	}
	var profile map[string]any
	if err := json.Unmarshal(me.Body.Bytes(), &profile); err != nil {
		t.Fatalf("decode me: %v", err)
	}
	if profile["id"] != "u1" || profile["email"] != "ana@x.gov" || profile["job_title"] != "Auditora" {
		t.Fatalf("unexpected profile: %v", profile)
	}
}

const hashPrefix = "$2a$"

func TestLoginRejectsBadCredentialsUniformly(t *testing.T) {
	env := newTestEnv(t)
	env.store.AddUser(sso.User{ID: "u2", Email: "semapp@x.gov", PasswordHash: mustHash(t), Active: true})
	// u2 has no application grant.

	cases := map[string]string{
		"wrong password": `{"email":"ana@x.gov","password":"nope"}`,
		"unknown email":  `{"email":"ghost@x.gov","password":"nope"}`,
		"no app grant":   `{"email":"semapp@x.gov","password":"s3cret"}`,
	}
	var bodies []string
	for name, body := range cases {
		rec := env.do(t, http.MethodPost, "/v1/auth/login", "", body)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("%s: status %d, body %s", name, rec.Code, rec.Body.String())
		}
		bodies = append(bodies, rec.Body.String())
	}
	// All failure modes present the same body to the client.
	for _, b := range bodies[1:] {
		if b != bodies[0] {
			t.Fatalf("failure responses differ: %q vs %q", bodies[0], b)
		}
	}
}

func mustHash(t *testing.T) string {
	t.Helper()
	hash, err := sso.HashPassword("s3cret")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	return hash
}

func TestLoginValidation(t *testing.T) {
	env := newTestEnv(t)

	if rec := env.do(t, http.MethodPost, "/v1/auth/login", "", `{bad json`); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad json: status %d", rec.Code)
	}
	if rec := env.do(t, http.MethodPost, "/v1/auth/login", "", `{"email":"","password":""}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("empty fields: status %d", rec.Code)
	}
	rec := env.do(t, http.MethodGet, "/v1/auth/login", "", "")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("wrong method: status %d", rec.Code)
	}
	if rec.Header().Get("Allow") != http.MethodPost {
		t.Fatalf("missing Allow header, got %q", rec.Header().Get("Allow"))
	}
}

func TestProtectedPathsRequireToken(t *testing.T) {
	env := newTestEnv(t)

	for _, path := range []string{"/v1/auth/me", "/v1/permissions", "/v1/authorize?route=/dashboard"} {
		rec := env.do(t, http.MethodGet, path, "", "")
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("%s: status %d", path, rec.Code)
		}
		if rec.Header().Get("WWW-Authenticate") == "" {
			t.Fatalf("%s: missing WWW-Authenticate challenge", path)
		}
	}

	rec := env.do(t, http.MethodGet, "/v1/auth/me", "not-a-token", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("garbage token: status %d", rec.Code)
	}
}

func TestPublicPathsNeedNoToken(t *testing.T) {
	env := newTestEnv(t)

	for _, path := range []string{"/healthz", "/readyz", "/v1/info"} {
		rec := env.do(t, http.MethodGet, path, "", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: status %d, body %s", path, rec.Code, rec.Body.String())
		}
	}
}

func TestModuleGuard(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t)

	// No module grant yet: the guard denies.
	rec := env.do(t, http.MethodGet, "/dashboard", token, "")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 without module grant, got %d", rec.Code)
	}

	env.store.GrantModule("u1", "m-dash", sso.PermRead, nil)

	// With the grant the guard passes; the mux then 404s the unserved path.
	rec = env.do(t, http.MethodGet, "/dashboard", token, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected guard pass-through, got %d", rec.Code)
	}
}

func TestAuthorizeEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.store.GrantModule("u1", "m-dash", sso.PermAdmin, nil)
	token := env.login(t)

	rec := env.do(t, http.MethodGet, "/v1/authorize?route=/dashboard&permission=DELETE", token, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d, body %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Allowed bool   `json:"allowed"`
		Module  string `json:"module"`
		Reason  string `json:"reason"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Allowed || resp.Module != "/dashboard" || resp.Reason != "" {
		t.Fatalf("ADMIN should satisfy DELETE: %+v", resp)
	}
}

func TestAuthorizeEndpointDenies(t *testing.T) {
	env := newTestEnv(t)
	env.store.GrantModule("u1", "m-dash", sso.PermRead, nil)
	token := env.login(t)

	rec := env.do(t, http.MethodGet, "/v1/authorize?route=/dashboard&permission=WRITE", token, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d, body %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Allowed bool   `json:"allowed"`
		Reason  string `json:"reason"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Allowed || resp.Reason != "insufficient_permission" {
		t.Fatalf("unexpected decision: %+v", resp)
	}
}

func TestAuthorizeEndpointValidation(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t)

	if rec := env.do(t, http.MethodGet, "/v1/authorize", token, ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("missing route: status %d", rec.Code)
	}
	rec := env.do(t, http.MethodGet, "/v1/authorize?route=/dashboard&permission=SUPER", token, "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown permission: status %d", rec.Code)
	}
}

func TestPermissionsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.store.GrantModule("u1", "m-dash", sso.PermRead, nil)
	token := env.login(t)

	rec := env.do(t, http.MethodGet, "/v1/permissions", token, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d, body %s", rec.Code, rec.Body.String())
	}
	var resp sso.UserPermissions
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.HasAccess || len(resp.Modules) != 1 {
		t.Fatalf("unexpected permissions: %+v", resp)
	}
	if resp.Modules[0].Route != "/dashboard" || len(resp.Modules[0].Permissions) != 1 {
		t.Fatalf("unexpected module listing: %+v", resp.Modules[0])
	}
}

func TestLogout(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t)

	rec := env.do(t, http.MethodPost, "/v1/auth/logout", token, "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status %d, body %s", rec.Code, rec.Body.String())
	}

	var sawLogout bool
	for _, e := range env.store.Entries() {
		if e.Action == sso.ActionLogout && e.UserID == "u1" {
			sawLogout = true
		}
	}
	if !sawLogout {
		t.Fatal("logout entry not recorded")
	}
}

func TestSecurityHeadersPresent(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/healthz", "", "")
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatal("missing nosniff header")
	}
	if rec.Header().Get("X-Frame-Options") != "DENY" {
		t.Fatal("missing frame options header")
	}
}
