package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// defaultTTLMinutes is used when a non-positive TTL is requested.
const defaultTTLMinutes = 60

// CustomClaims extends JWT standard claims with the caller's role.
type CustomClaims struct {
	jwt.RegisteredClaims
	Role Role `json:"role"`
}

// GenerateAccessToken creates a signed HS256 access token.
//
// Tokens are minted offline with `codecbridge token` and validated by
// signature only; there is no session store.
//
// Parameters:
//   - subject: Who the token is for (operator name, automation host)
//   - role: One of ValidRoles
//   - secret: security.jwt.secret
//   - ttlMinutes: Lifetime; <= 0 uses 60 minutes
func GenerateAccessToken(subject string, role Role, secret string, ttlMinutes int) (string, error) {
	if subject == "" {
		return "", fmt.Errorf("%w: subject is required", ErrTokenInvalid)
	}
	if !IsValidRole(role) {
		return "", fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
	if ttlMinutes <= 0 {
		ttlMinutes = defaultTTLMinutes
	}

	now := time.Now()
	claims := CustomClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(ttlMinutes) * time.Minute)),
			ID:        uuid.NewString(),
		},
		Role: role,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("signing access token: %w", err)
	}
	return signed, nil
}

// ParseToken validates and parses a JWT access token, returning the custom claims.
// It checks the signature, expiry, and required fields.
func ParseToken(tokenString, secret string) (*CustomClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &CustomClaims{}, func(_ *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}

	claims, ok := token.Claims.(*CustomClaims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}

	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrTokenInvalid)
	}

	if !IsValidRole(claims.Role) {
		return nil, fmt.Errorf("%w: role %q", ErrTokenInvalid, claims.Role)
	}

	return claims, nil
}
