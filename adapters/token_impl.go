package adapters

import (
	"errors"
	"fmt"
	"time"

	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwt"
	"github.com/soffa-projects/matchqueue/h"
)

var ErrInvalidToken = errors.New("invalid token")

// JwtTokenProvider issues and verifies HS256 socket tokens. The subject
// carries the user id.
type JwtTokenProvider struct {
	secretKey []byte
	issuer    string
}

func NewTokenProvider(secretKey string, issuer string) (*JwtTokenProvider, error) {
	if secretKey == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}
	return &JwtTokenProvider{secretKey: []byte(secretKey), issuer: issuer}, nil
}

func (p *JwtTokenProvider) Create(subject string, ttl time.Duration) (string, error) {
	now := time.Now()
	tok, err := jwt.NewBuilder().
		JwtID(h.NewId("")).
		Issuer(p.issuer).
		IssuedAt(now).
		Subject(subject).
		Expiration(now.Add(ttl)).
		Build()
	if err != nil {
		return "", err
	}
	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256(), p.secretKey))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return string(signed), nil
}

func (p *JwtTokenProvider) Verify(token string) (string, error) {
	if token == "" {
		return "", ErrInvalidToken
	}
	opts := []jwt.ParseOption{jwt.WithKey(jwa.HS256(), p.secretKey), jwt.WithValidate(true)}
	if p.issuer != "" {
		opts = append(opts, jwt.WithIssuer(p.issuer))
	}
	tok, err := jwt.Parse([]byte(token), opts...)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	sub, ok := tok.Subject()
	if !ok || sub == "" {
		return "", fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return sub, nil
}
