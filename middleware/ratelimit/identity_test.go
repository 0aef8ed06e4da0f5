package ratelimit

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var secret = []byte("test-secret")

func signed(t *testing.T, method jwt.SigningMethod, key any, claims Claims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(method, claims).SignedString(key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return tok
}

func withAuth(v string) *http.Request {
	r := httptest.NewRequest(http.MethodPost, "http://example/", nil)
	if v != "" {
		r.Header.Set("Authorization", v)
	}
	return r
}

func TestBearerIdentity_UsesUserIDClaim(t *testing.T) {
	tok := signed(t, jwt.SigningMethodHS256, secret, Claims{
		UserID: "user-42",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "ignored",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	got, err := BearerIdentity(secret)(withAuth("Bearer " + tok))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "user-42" {
		t.Fatalf("expected user-42, got %q", got)
	}
}

func TestBearerIdentity_FallsBackToSubject(t *testing.T) {
	tok := signed(t, jwt.SigningMethodHS256, secret, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "sub-7"},
	})

	got, err := BearerIdentity(secret)(withAuth("bearer " + tok))
	if err != nil || got != "sub-7" {
		t.Fatalf("expected sub-7, got %q (%v)", got, err)
	}
}

func TestBearerIdentity_Rejects(t *testing.T) {
	expired := signed(t, jwt.SigningMethodHS256, secret, Claims{
		UserID: "u",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	})
	wrongKey := signed(t, jwt.SigningMethodHS256, []byte("other"), Claims{UserID: "u"})
	wrongAlg := signed(t, jwt.SigningMethodHS384, secret, Claims{UserID: "u"})
	noSubject := signed(t, jwt.SigningMethodHS256, secret, Claims{})

	cases := map[string]struct {
		header string
		want   error
	}{
		"missing":    {"", ErrMissingCredentials},
		"basic auth": {"Basic dXNlcjpwYXNz", ErrMissingCredentials},
		"empty":      {"Bearer   ", ErrMissingCredentials},
		"garbage":    {"Bearer not-a-jwt", ErrInvalidToken},
		"expired":    {"Bearer " + expired, ErrInvalidToken},
		"wrong key":  {"Bearer " + wrongKey, ErrInvalidToken},
		"wrong alg":  {"Bearer " + wrongAlg, ErrInvalidToken},
		"no subject": {"Bearer " + noSubject, ErrInvalidToken},
	}
	fn := BearerIdentity(secret)
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := fn(withAuth(tc.header))
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestHeaderIdentity_TrimsAndRequiresValue(t *testing.T) {
	fn := HeaderIdentity("X-Client")

	r := httptest.NewRequest(http.MethodGet, "http://example/", nil)
	r.RemoteAddr = "10.0.0.1:1234"
	if _, err := fn(r); !errors.Is(err, ErrMissingCredentials) {
		t.Fatalf("expected missing credentials without header, got %v", err)
	}

	r.Header.Set("X-Client", " client-123 ")
	if got, err := fn(r); err != nil || got != "client-123" {
		t.Fatalf("expected client-123, got %q (%v)", got, err)
	}
}
