package client

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// ErrSessionExpired is returned without touching the network when the
// session token carries an expiry that has already passed.
var ErrSessionExpired = errors.New("session expired")

// Session is the explicit identity every request is made under. It replaces
// any process-wide token storage: each loader, negotiator and coordinator is
// handed the session it should use.
type Session struct {
	// BaseURL is prepended to every request path, e.g. "https://host/api".
	BaseURL string
	// Token is sent as a bearer token when non-empty.
	Token string
	// OnUnauthorized, when set, is invoked for every 401 response. It must be
	// safe to call repeatedly and from multiple goroutines.
	OnUnauthorized func()
}

// ExpiresAt reads the exp claim of a JWT token without verifying its
// signature. ok is false for opaque tokens and tokens without exp.
func (s Session) ExpiresAt() (exp time.Time, ok bool) {
	tok := strings.TrimSpace(strings.TrimPrefix(s.Token, "Bearer "))
	if tok == "" {
		return time.Time{}, false
	}
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tok, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

// Expired reports whether the token's exp claim lies before now.
func (s Session) Expired(now time.Time) bool {
	exp, ok := s.ExpiresAt()
	return ok && !now.Before(exp)
}

func (s Session) authorization() string {
	tok := strings.TrimSpace(s.Token)
	if tok == "" {
		return ""
	}
	if strings.HasPrefix(tok, "Bearer ") {
		return tok
	}
	return "Bearer " + tok
}
