package session

import (
	"errors"
	"strings"
	"testing"
	"time"

	"smartsefaz.org/internal/sso"
)

const testSecret = "test-secret"

var testUser = &sso.User{
	ID:         "u1",
	Email:      "ana@x.gov",
	Name:       "Ana Souza",
	JobTitle:   "Auditora",
	Department: "Tributos",
}

func newTestManager(t *testing.T, opts ...Option) *Manager {
	t.Helper()
	m, err := NewManager(testSecret, opts...)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return m
}

func TestIssueVerifyRoundTrip(t *testing.T) {
	m := newTestManager(t)

	token, expiresAt, err := m.Issue(testUser)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if token == "" {
		t.Fatal("empty token")
	}
	if remaining := time.Until(expiresAt); remaining < DefaultTTL-time.Minute || remaining > DefaultTTL {
		t.Fatalf("expiry not at the default TTL: %v", remaining)
	}

	claims, err := m.Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.Subject != "u1" || claims.Email != "ana@x.gov" || claims.Name != "Ana Souza" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if claims.JobTitle != "Auditora" || claims.Department != "Tributos" {
		t.Fatalf("profile claims missing: %+v", claims)
	}
	if claims.ID == "" {
		t.Fatal("token id should be set")
	}
}

func TestVerifyExpiredToken(t *testing.T) {
	issued := time.Date(2026, 8, 30, 8, 0, 0, 0, time.UTC)
	issuer := newTestManager(t, WithClock(func() time.Time { return issued }))
	verifier := newTestManager(t, WithClock(func() time.Time { return issued.Add(DefaultTTL + time.Minute) }))

	token, _, err := issuer.Issue(testUser)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := verifier.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for expired token, got %v", err)
	}
}

func TestVerifyStillValidWithinTTL(t *testing.T) {
	issued := time.Date(2026, 8, 30, 8, 0, 0, 0, time.UTC)
	issuer := newTestManager(t, WithClock(func() time.Time { return issued }))
	verifier := newTestManager(t, WithClock(func() time.Time { return issued.Add(DefaultTTL - time.Minute) }))

	token, _, err := issuer.Issue(testUser)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := verifier.Verify(token); err != nil {
		t.Fatalf("token inside its TTL should verify: %v", err)
	}
}

func TestVerifyTamperedToken(t *testing.T) {
	m := newTestManager(t)
	token, _, err := m.Issue(testUser)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		t.Fatalf("unexpected token shape: %q", token)
	}
	tampered := parts[0] + ".eyJzdWIiOiJ1MiJ9." + parts[2]
	if _, err := m.Verify(tampered); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for tampered payload, got %v", err)
	}
}

func TestVerifyWrongSecret(t *testing.T) {
	m := newTestManager(t)
	other, err := NewManager("a-different-secret")
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	token, _, err := other.Issue(testUser)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := m.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for foreign signature, got %v", err)
	}
}

func TestVerifyWrongIssuer(t *testing.T) {
	issuer := newTestManager(t, WithIssuer("someone-else"))
	verifier := newTestManager(t)

	token, _, err := issuer.Issue(testUser)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := verifier.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for wrong issuer, got %v", err)
	}
}

func TestVerifyGarbage(t *testing.T) {
	m := newTestManager(t)
	for _, token := range []string{"", "   ", "not-a-jwt", "a.b.c"} {
		if _, err := m.Verify(token); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("Verify(%q): expected ErrInvalidToken, got %v", token, err)
		}
	}
}

func TestNewManagerRequiresSecret(t *testing.T) {
	if _, err := NewManager(""); err == nil {
		t.Fatal("expected error for empty secret")
	}
	if _, err := NewManager("   "); err == nil {
		t.Fatal("expected error for blank secret")
	}
}

func TestIssueRequiresUserID(t *testing.T) {
	m := newTestManager(t)
	if _, _, err := m.Issue(nil); err == nil {
		t.Fatal("expected error for nil user")
	}
	if _, _, err := m.Issue(&sso.User{}); err == nil {
		t.Fatal("expected error for user without id")
	}
}

func TestWithTTL(t *testing.T) {
	issued := time.Date(2026, 8, 30, 8, 0, 0, 0, time.UTC)
	m := newTestManager(t, WithTTL(time.Hour), WithClock(func() time.Time { return issued }))

	_, expiresAt, err := m.Issue(testUser)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if !expiresAt.Equal(issued.Add(time.Hour)) {
		t.Fatalf("expected expiry one hour after issue, got %v", expiresAt)
	}
}
