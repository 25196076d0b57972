package jwtutil

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrNoExpiry = errors.New("token has no exp claim")

// ExpiresAt reads the exp claim of a backend-issued token. The signature is not
// verified; the console never holds the backend's signing key.
func ExpiresAt(token string) (time.Time, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, fmt.Errorf("parse token failed: %w", err)
	}
	exp, err := claims.GetExpirationTime()
	if err != nil {
		return time.Time{}, fmt.Errorf("read exp claim failed: %w", err)
	}
	if exp == nil {
		return time.Time{}, ErrNoExpiry
	}
	return exp.Time, nil
}

// IsExpired treats unreadable tokens and tokens without exp as expired.
func IsExpired(token string, now time.Time) bool {
	if token == "" {
		return true
	}
	exp, err := ExpiresAt(token)
	if err != nil {
		return true
	}
	return exp.Before(now)
}
