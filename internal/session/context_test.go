package session

import (
	"context"
	"testing"
)

func TestClaimsContextRoundTrip(t *testing.T) {
	ctx := context.Background()
	if _, ok := ClaimsFromContext(ctx); ok {
		t.Fatal("empty context should carry no claims")
	}

	claims := &Claims{Name: "Ana Souza"}
	ctx = ContextWithClaims(ctx, claims)
	got, ok := ClaimsFromContext(ctx)
	if !ok || got.Name != "Ana Souza" {
		t.Fatalf("claims lost in context: %+v, ok=%v", got, ok)
	}

	// A nil claims value must not poison the context.
	if _, ok := ClaimsFromContext(ContextWithClaims(context.Background(), nil)); ok {
		t.Fatal("nil claims should not be retrievable")
	}
}

func TestTokenContextRoundTrip(t *testing.T) {
	ctx := context.Background()
	if _, ok := TokenFromContext(ctx); ok {
		t.Fatal("empty context should carry no token")
	}

	ctx = ContextWithToken(ctx, "abc")
	token, ok := TokenFromContext(ctx)
	if !ok || token != "abc" {
		t.Fatalf("token lost in context: %q, ok=%v", token, ok)
	}
}
