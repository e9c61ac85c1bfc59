package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

var (
	ErrSecretMissing = errors.New("JWT secret not configured")
	ErrInvalidToken  = errors.New("invalid or expired token")
)

// Identity is the caller extracted from a token or gateway headers.
type Identity struct {
	UserID string
	Role   string
	Email  string
}

func (i Identity) IsAdmin() bool {
	return strings.EqualFold(i.Role, "admin")
}

// TokenVerifier checks HMAC-signed access tokens.
type TokenVerifier struct {
	secret []byte
}

func NewTokenVerifier(secret string) *TokenVerifier {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return &TokenVerifier{}
	}
	return &TokenVerifier{secret: []byte(secret)}
}

// ParseAndValidateToken parses a JWT and returns its claims. If
// expectedType is non-empty, the "typ" claim must match it.
func (v *TokenVerifier) ParseAndValidateToken(tokenStr, expectedType string) (jwt.MapClaims, error) {
	if v == nil || v.secret == nil {
		return nil, ErrSecretMissing
	}

	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil || token == nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("invalid token claims")
	}
	if expectedType != "" {
		if typ, ok := claims["typ"].(string); !ok || typ != expectedType {
			return nil, errors.New("invalid token type")
		}
	}
	return claims, nil
}

// IdentityFromToken validates an access token and maps its claims.
func (v *TokenVerifier) IdentityFromToken(tokenStr string) (Identity, error) {
	claims, err := v.ParseAndValidateToken(tokenStr, "access")
	if err != nil {
		return Identity{}, err
	}
	id := Identity{
		UserID: claimString(claims, "user_id"),
		Role:   claimString(claims, "role"),
		Email:  claimString(claims, "email"),
	}
	if id.UserID == "" {
		id.UserID = claimString(claims, "sub")
	}
	if id.UserID == "" {
		return Identity{}, errors.New("token has no subject")
	}
	return id, nil
}

// SignAccessToken issues a token that IdentityFromToken accepts. Used by
// tests and local tooling.
func (v *TokenVerifier) SignAccessToken(id Identity, ttl time.Duration) (string, error) {
	if v == nil || v.secret == nil {
		return "", ErrSecretMissing
	}
	claims := jwt.MapClaims{
		"user_id": id.UserID,
		"role":    id.Role,
		"email":   id.Email,
		"typ":     "access",
		"exp":     time.Now().Add(ttl).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

func claimString(claims jwt.MapClaims, key string) string {
	if s, ok := claims[key].(string); ok {
		return s
	}
	return ""
}
