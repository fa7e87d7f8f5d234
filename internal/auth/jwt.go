package auth

import (
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Julfy0228/WebMessenger/internal/apperr"
)

// Validator resolves a bearer token to the calling user id. Identity itself
// (registration, passwords) lives outside this service; the token subject is
// the only contract.
type Validator struct {
	secret []byte
}

func NewValidator(secret string) (*Validator, error) {
	if secret == "" {
		return nil, fmt.Errorf("jwt secret required")
	}
	return &Validator{secret: []byte(secret)}, nil
}

// Validate returns the user id from the subject claim.
func (v *Validator) Validate(token string) (uint, error) {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	tok, err := parser.Parse(token, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", apperr.ErrUnauthenticated, err)
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok || !tok.Valid {
		return 0, fmt.Errorf("%w: invalid token", apperr.ErrUnauthenticated)
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return 0, fmt.Errorf("%w: subject missing", apperr.ErrUnauthenticated)
	}
	id, err := strconv.ParseUint(sub, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: malformed subject", apperr.ErrUnauthenticated)
	}
	return uint(id), nil
}

// Sign issues a token for the given user. Used by tests and local tooling;
// production tokens come from the identity service.
func (v *Validator) Sign(userID uint, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatUint(uint64(userID), 10),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}
