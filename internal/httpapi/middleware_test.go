package httpapi

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimitRejectsBursts(t *testing.T) {
	h := RateLimit(okHandler(), 2, 1)

	var rejected *httptest.ResponseRecorder
	for i := 0; i < 10; i++ {
		req := httptest.NewRequest(http.MethodGet, "/v1/auth/login", nil)
		req.RemoteAddr = "203.0.113.5:4567"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code == http.StatusTooManyRequests {
			rejected = rec
			break
		}
	}
	if rejected == nil {
		t.Fatal("burst was never rate limited")
	}
	if rejected.Header().Get("Retry-After") == "" {
		t.Fatal("missing Retry-After header")
	}
	if !strings.Contains(rejected.Body.String(), "rate limit") {
		t.Fatalf("unexpected body: %s", rejected.Body.String())
	}
}

func TestRateLimitIsPerIP(t *testing.T) {
	h := RateLimit(okHandler(), 1, 1)

	first := httptest.NewRequest(http.MethodGet, "/", nil)
	first.RemoteAddr = "203.0.113.5:1111"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, first)
	if rec.Code != http.StatusOK {
		t.Fatalf("first request: status %d", rec.Code)
	}

	// A different client gets its own bucket.
	second := httptest.NewRequest(http.MethodGet, "/", nil)
	second.RemoteAddr = "203.0.113.6:2222"
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, second)
	if rec.Code != http.StatusOK {
		t.Fatalf("second client: status %d", rec.Code)
	}
}

func TestMaxBodyBytes(t *testing.T) {
	read := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf := make([]byte, 64)
		for {
			if _, err := r.Body.Read(buf); err != nil {
				if err.Error() == "http: request body too large" {
					w.WriteHeader(http.StatusRequestEntityTooLarge)
					return
				}
				w.WriteHeader(http.StatusOK)
				return
			}
		}
	})
	h := MaxBodyBytes(read, 16)

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(strings.Repeat("x", 64)))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("oversized body: status %d", rec.Code)
	}
}

func TestExtractBearerToken(t *testing.T) {
	cases := map[string]struct {
		token string
		ok    bool
	}{
		"Bearer abc":   {"abc", true},
		"bearer abc":   {"abc", true},
		"Bearer  abc ": {"abc", true},
		"":             {"", false},
		"Bearer ":      {"", false},
		"Basic abc":    {"", false},
		"abc":          {"", false},
	}
	for header, want := range cases {
		token, err := extractBearerToken(header)
		if want.ok && (err != nil || token != want.token) {
			t.Fatalf("extractBearerToken(%q) = (%q, %v), want %q", header, token, err, want.token)
		}
		if !want.ok && err == nil {
			t.Fatalf("extractBearerToken(%q) should fail", header)
		}
	}
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "198.51.100.7:9999"
	if ip := clientIP(req); ip != "198.51.100.7" {
		t.Fatalf("remote addr: got %q", ip)
	}

	req.Header.Set("X-Real-IP", "203.0.113.8")
	if ip := clientIP(req); ip != "203.0.113.8" {
		t.Fatalf("x-real-ip: got %q", ip)
	}

	req.Header.Set("X-Forwarded-For", "192.0.2.10, 203.0.113.8")
	if ip := clientIP(req); ip != "192.0.2.10" {
		t.Fatalf("x-forwarded-for: got %q", ip)
	}
}
