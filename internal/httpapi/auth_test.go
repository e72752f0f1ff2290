package httpapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

const testSecret = "0123456789abcdef0123456789abcdef"

var authNow = time.Date(2026, 4, 10, 12, 0, 0, 0, time.UTC)

func signToken(t *testing.T, secret string, userID any, expiresAt time.Time) string {
	t.Helper()
	claims := jwtlib.MapClaims{
		"user_id":    userID,
		"token_type": "access",
		"exp":        expiresAt.Unix(),
	}
	token, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

type refresherStub struct {
	calls int
	token string
	err   error
}

func (s *refresherStub) RefreshToken(_ context.Context, _ string) (string, error) {
	s.calls++
	return s.token, s.err
}

func newAuth(secret string, refresher Refresher) *AuthManager {
	a := NewAuthManager(secret, refresher)
	a.now = func() time.Time { return authNow }
	return a
}

func TestParseTokenVerifiesSignature(t *testing.T) {
	a := newAuth(testSecret, nil)

	actor, err := a.ParseToken(signToken(t, testSecret, 42, authNow.Add(time.Hour)))
	if err != nil {
		t.Fatalf("expected valid token, got %v", err)
	}
	if actor.UserID != "42" {
		t.Fatalf("expected user 42, got %q", actor.UserID)
	}
	if !actor.Verified {
		t.Fatalf("expected signature-checked actor to be marked verified")
	}

	_, err = a.ParseToken(signToken(t, "another-secret-another-secret-xx", 42, authNow.Add(time.Hour)))
	if !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected invalid token for wrong secret, got %v", err)
	}

	_, err = a.ParseToken(signToken(t, testSecret, 42, authNow.Add(-time.Minute)))
	if !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected expired token, got %v", err)
	}
}

func TestParseTokenWithoutSecretReadsClaims(t *testing.T) {
	a := newAuth("", nil)

	actor, err := a.ParseToken(signToken(t, "whatever-the-backend-uses", "seller-9", authNow.Add(time.Hour)))
	if err != nil {
		t.Fatalf("expected token to parse, got %v", err)
	}
	if actor.UserID != "seller-9" {
		t.Fatalf("expected seller-9, got %q", actor.UserID)
	}
	if actor.Verified {
		t.Fatalf("claims read without a secret must not be marked verified")
	}

	_, err = a.ParseToken(signToken(t, "whatever-the-backend-uses", 1, authNow.Add(-time.Second)))
	if !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected expired token, got %v", err)
	}

	if _, err := a.ParseToken("not-a-jwt"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected invalid token, got %v", err)
	}
	if _, err := a.ParseToken(""); !errors.Is(err, ErrMissingToken) {
		t.Fatalf("expected missing token, got %v", err)
	}
}

func TestParseTokenRejectsRefreshTokens(t *testing.T) {
	a := newAuth(testSecret, nil)
	claims := jwtlib.MapClaims{"user_id": 1, "token_type": "refresh", "exp": authNow.Add(time.Hour).Unix()}
	token, _ := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString([]byte(testSecret))

	if _, err := a.ParseToken(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected refresh token to be rejected, got %v", err)
	}
}

func TestAuthenticateRefreshesExpiredToken(t *testing.T) {
	fresh := signToken(t, testSecret, 7, authNow.Add(time.Hour))
	refresher := &refresherStub{token: fresh}
	a := newAuth(testSecret, refresher)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, 7, authNow.Add(-time.Minute)))
	req.Header.Set(refreshHeader, "refresh-token")

	actor, refreshed, err := a.Authenticate(req)
	if err != nil {
		t.Fatalf("expected refresh to succeed, got %v", err)
	}
	if refreshed != fresh || actor.Token != fresh || actor.UserID != "7" {
		t.Fatalf("unexpected refresh result actor=%+v refreshed=%q", actor, refreshed)
	}
	if refresher.calls != 1 {
		t.Fatalf("expected one refresh call, got %d", refresher.calls)
	}
}

func TestAuthenticateDoesNotRefreshForgedToken(t *testing.T) {
	refresher := &refresherStub{token: "unused"}
	a := newAuth(testSecret, refresher)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "forged-forged-forged-forged-forged", 7, authNow.Add(time.Hour)))
	req.Header.Set(refreshHeader, "refresh-token")

	if _, _, err := a.Authenticate(req); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected invalid token, got %v", err)
	}
	if refresher.calls != 0 {
		t.Fatalf("forged token must not trigger refresh")
	}
}

func TestAuthenticateWithoutRefreshHeader(t *testing.T) {
	a := newAuth(testSecret, &refresherStub{})
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	if _, _, err := a.Authenticate(req); !errors.Is(err, ErrMissingToken) {
		t.Fatalf("expected missing token, got %v", err)
	}
}
