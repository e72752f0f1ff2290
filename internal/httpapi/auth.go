package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"storefront/backend/internal/domain"
)

const (
	refreshHeader     = "X-Refresh-Token"
	accessTokenHeader = "X-Access-Token"
)

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)

// Refresher exchanges a refresh token for a new access token.
type Refresher interface {
	RefreshToken(ctx context.Context, refresh string) (string, error)
}

// AuthManager reads the caller's identity from the access token issued by the
// backend. With a secret the HS256 signature is verified; without one the
// claims are read as-is and the actor is left unverified.
type AuthManager struct {
	secret    []byte
	refresher Refresher
	now       func() time.Time
}

type storefrontClaims struct {
	jwtlib.RegisteredClaims
	UserID    claimID `json:"user_id"`
	TokenType string  `json:"token_type,omitempty"`
}

// claimID accepts numeric or string user ids.
type claimID string

func (c *claimID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*c = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*c = claimID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*c = claimID(n.String())
	return nil
}

func NewAuthManager(secret string, refresher Refresher) *AuthManager {
	a := &AuthManager{refresher: refresher, now: time.Now}
	if secret = strings.TrimSpace(secret); secret != "" {
		a.secret = []byte(secret)
	}
	return a
}

func (a *AuthManager) ParseToken(tokenStr string) (domain.Actor, error) {
	tokenStr = strings.TrimSpace(tokenStr)
	if tokenStr == "" {
		return domain.Actor{}, ErrMissingToken
	}

	claims := &storefrontClaims{}
	if a.secret != nil {
		token, err := jwtlib.ParseWithClaims(tokenStr, claims, func(t *jwtlib.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
				return nil, errors.New("unexpected signing method")
			}
			return a.secret, nil
		}, jwtlib.WithValidMethods([]string{"HS256"}), jwtlib.WithTimeFunc(a.now))
		if errors.Is(err, jwtlib.ErrTokenExpired) {
			return domain.Actor{}, ErrTokenExpired
		}
		if err != nil || !token.Valid {
			return domain.Actor{}, ErrInvalidToken
		}
	} else {
		if _, _, err := jwtlib.NewParser().ParseUnverified(tokenStr, claims); err != nil {
			return domain.Actor{}, ErrInvalidToken
		}
		exp, err := claims.GetExpirationTime()
		if err != nil {
			return domain.Actor{}, ErrInvalidToken
		}
		if exp != nil && !a.now().Before(exp.Time) {
			return domain.Actor{}, ErrTokenExpired
		}
	}

	if claims.TokenType != "" && claims.TokenType != "access" {
		return domain.Actor{}, ErrInvalidToken
	}
	userID := string(claims.UserID)
	if userID == "" {
		userID = claims.Subject
	}
	if userID == "" {
		return domain.Actor{}, ErrInvalidToken
	}
	return domain.Actor{UserID: userID, Token: tokenStr, Verified: a.secret != nil}, nil
}

// Authenticate resolves the actor for a request. When the access token is
// absent or expired and a refresh token is supplied, a new access token is
// obtained from the backend and returned as refreshed.
func (a *AuthManager) Authenticate(r *http.Request) (actor domain.Actor, refreshed string, err error) {
	actor, err = a.ParseToken(bearerToken(r))
	if err == nil {
		return actor, "", nil
	}

	refresh := strings.TrimSpace(r.Header.Get(refreshHeader))
	if refresh == "" || a.refresher == nil || errors.Is(err, ErrInvalidToken) {
		return domain.Actor{}, "", err
	}

	access, rerr := a.refresher.RefreshToken(r.Context(), refresh)
	if rerr != nil {
		return domain.Actor{}, "", rerr
	}
	actor, err = a.ParseToken(access)
	if err != nil {
		return domain.Actor{}, "", err
	}
	return actor, access, nil
}

func bearerToken(r *http.Request) string {
	authorization := strings.TrimSpace(r.Header.Get("Authorization"))
	if !strings.HasPrefix(strings.ToLower(authorization), "bearer ") {
		return ""
	}
	return strings.TrimSpace(authorization[len("Bearer "):])
}
