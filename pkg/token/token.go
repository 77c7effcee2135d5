package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
)

type Claims struct {
	UserId string `json:"userId"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// Inspect parses a bearer credential without verifying its signature;
// the client never holds the signing secret. It returns the embedded
// claims, or ErrExpiredToken when the credential is already past its
// expiry and must not be used to connect.
func Inspect(tokenString string) (*Claims, error) {
	claims := &Claims{}
	_, _, err := jwt.NewParser().ParseUnverified(tokenString, claims)
	if err != nil {
		return nil, ErrInvalidToken
	}

	if claims.ExpiresAt != nil && claims.ExpiresAt.Before(time.Now()) {
		return nil, ErrExpiredToken
	}
	return claims, nil
}

// Expired reports whether the credential is unusable for a new
// connection attempt.
func Expired(tokenString string) bool {
	_, err := Inspect(tokenString)
	return errors.Is(err, ErrExpiredToken)
}
