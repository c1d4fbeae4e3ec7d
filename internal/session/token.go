// Package session issues and verifies the signed bearer tokens that carry an
// authenticated identity between requests. Tokens cache authentication only;
// authorization is re-checked against the entitlement store on every request.
package session

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"smartsefaz.org/internal/sso"
)

const (
	defaultIssuer = "smartsefaz-sso"

	// DefaultTTL matches the dashboard's session policy.
	DefaultTTL = 8 * time.Hour
)

// ErrInvalidToken covers expired, malformed and badly signed tokens uniformly,
// so a caller learns nothing about the signing key from the failure mode.
var ErrInvalidToken = errors.New("session: invalid token")

// Claims is the JWT claim set. Profile fields are denormalized for display;
// they are never consulted for authorization.
type Claims struct {
	Name       string `json:"name,omitempty"`
	Email      string `json:"email,omitempty"`
	JobTitle   string `json:"job_title,omitempty"`
	Department string `json:"department,omitempty"`
	PhotoURL   string `json:"photo_url,omitempty"`
	jwt.RegisteredClaims
}

// Manager signs and verifies session tokens with a shared HS256 secret.
type Manager struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithIssuer overrides the issuer claim.
func WithIssuer(issuer string) Option {
	return func(m *Manager) {
		if issuer = strings.TrimSpace(issuer); issuer != "" {
			m.issuer = issuer
		}
	}
}

// WithTTL overrides the session lifetime.
func WithTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.ttl = ttl
		}
	}
}

// WithClock overrides the time source, for tests.
func WithClock(fn func() time.Time) Option {
	return func(m *Manager) {
		if fn != nil {
			m.now = fn
		}
	}
}

// NewManager constructs a Manager. The secret is required; there is no
// environment fallback by design.
func NewManager(secret string, opts ...Option) (*Manager, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("session secret is required")
	}
	m := &Manager{
		secret: []byte(secret),
		issuer: defaultIssuer,
		ttl:    DefaultTTL,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Issue signs a token for the authenticated user.
func (m *Manager) Issue(user *sso.User) (string, time.Time, error) {
	if user == nil || strings.TrimSpace(user.ID) == "" {
		return "", time.Time{}, errors.New("user id is required")
	}
	now := m.now().UTC()
	expiresAt := now.Add(m.ttl)
	claims := Claims{
		Name:       user.Name,
		Email:      user.Email,
		JobTitle:   user.JobTitle,
		Department: user.Department,
		PhotoURL:   user.PhotoURL,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// Verify checks signature, issuer and timestamps. Every failure is the uniform
// ErrInvalidToken.
func (m *Manager) Verify(token string) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidToken
	}
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalidToken
		}
		return m.secret, nil
	}, jwt.WithTimeFunc(func() time.Time { return m.now().UTC() }))
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if err := m.validateClaims(claims); err != nil {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (m *Manager) validateClaims(claims *Claims) error {
	if claims.Issuer != m.issuer {
		return errors.New("unexpected issuer")
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return errors.New("subject missing")
	}
	if claims.ExpiresAt == nil || claims.IssuedAt == nil {
		return errors.New("timestamps missing")
	}
	now := m.now().UTC()
	if now.After(claims.ExpiresAt.Time) {
		return errors.New("token expired")
	}
	// Allow a small clock skew of 5 seconds when validating issued-at.
	if claims.IssuedAt.Time.After(now.Add(5 * time.Second)) {
		return errors.New("token issued in the future")
	}
	if claims.ExpiresAt.Time.Before(claims.IssuedAt.Time) {
		return errors.New("token expiry precedes issued-at")
	}
	return nil
}
