package utils

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// GenerateRoleToken creates a signed HMAC-SHA256 JWT that PostgREST accepts
// as a bearer token for the given database role.
//
// The token carries the following claims:
//   - role: the database role PostgREST switches to for the request
//   - iat:  the current time
//   - exp:  the current time plus tokenDuration
//
// All parameters are required. The expiry time is returned so callers can
// cache the token until shortly before it lapses.
//
// Example usage:
//
//	token, expiresAt, err := utils.GenerateRoleToken("authenticated", time.Hour, "secret")
func GenerateRoleToken(role string, tokenDuration time.Duration, signKey string) (string, time.Time, error) {
	if role == "" || tokenDuration <= 0 || signKey == "" {
		return "", time.Time{}, errors.New("invalid params for generating role token")
	}

	now := time.Now()
	expiresAt := now.Add(tokenDuration)
	claims := jwt.MapClaims{
		"role": role,
		"iat":  jwt.NewNumericDate(now),
		"exp":  jwt.NewNumericDate(expiresAt),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(signKey))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("error occurred during singing role token: %w", err)
	}

	return signed, expiresAt, nil
}
