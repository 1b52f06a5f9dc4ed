// Package auth provides identity tokens, password hashing and the
// authorization middleware for the messaging API.
//
// TOKEN FORMAT:
// A token is an HS256-signed JWT whose only claim is the username:
//
//	HEADER.PAYLOAD.SIGNATURE
//	- Header:    {"alg":"HS256","typ":"JWT"}
//	- Payload:   {"username":"alice"}
//	- Signature: HMAC-SHA256(header+"."+payload, secret)
//
// Tokens carry no expiry. Verification needs only the server-held secret,
// no store lookup.
package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned for any token that fails verification:
// bad signature, wrong algorithm, malformed, or missing the username claim.
var ErrInvalidToken = errors.New("auth: invalid token")

// TokenService signs and verifies identity tokens with an HMAC secret.
type TokenService struct {
	secret []byte
}

// NewTokenService creates a TokenService with the given secret.
// The secret should be at least 32 bytes of random data in production.
// Example: JWT_SECRET=$(openssl rand -hex 32)
func NewTokenService(secret string) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	return &TokenService{secret: []byte(secret)}, nil
}

// claims is the JWT payload. RegisteredClaims is embedded so the parser
// can still honour exp/nbf if a client ever sends them, but Generate sets
// none of them: username is the only claim issued.
type claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Generate mints a signed token for username.
func (s *TokenService) Generate(username string) (string, error) {
	if username == "" {
		return "", errors.New("auth: cannot issue a token without a username")
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{Username: username})
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}
	return signed, nil
}

// Validate parses and verifies a token and returns the username it carries.
//
// jwt.WithValidMethods pins HS256 so a token claiming "alg":"none" (or an
// asymmetric algorithm keyed with our secret) is rejected.
func (s *TokenService) Validate(tokenStr string) (string, error) {
	if tokenStr == "" {
		return "", fmt.Errorf("%w: empty token", ErrInvalidToken)
	}

	token, err := jwt.ParseWithClaims(
		tokenStr,
		&claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return "", fmt.Errorf("%w: invalid claims", ErrInvalidToken)
	}
	if c.Username == "" {
		return "", fmt.Errorf("%w: token has no username", ErrInvalidToken)
	}

	return c.Username, nil
}
