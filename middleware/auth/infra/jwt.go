// Package infra implementa emissão e validação de tokens HS256 com golang-jwt.
package infra

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"intelligent-gateway/middleware/auth/domain"
)

const DefaultTTL = 30 * time.Minute

// JWTIssuer assina e valida tokens com um segredo compartilhado.
// Não guarda estado além do segredo.
type JWTIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

type Option func(*JWTIssuer)

func WithTTL(d time.Duration) Option {
	return func(i *JWTIssuer) {
		if d > 0 {
			i.ttl = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(i *JWTIssuer) {
		if now != nil {
			i.now = now
		}
	}
}

func NewJWTIssuer(secret string, opts ...Option) (*JWTIssuer, error) {
	if secret == "" {
		return nil, errors.New("jwt secret must not be empty")
	}
	i := &JWTIssuer{secret: []byte(secret), ttl: DefaultTTL, now: time.Now}
	for _, opt := range opts {
		opt(i)
	}
	return i, nil
}

func (i *JWTIssuer) TTL() time.Duration { return i.ttl }

// IssueToken implementa domain.Issuer.
func (i *JWTIssuer) IssueToken(identity string) (domain.Token, error) {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return domain.Token{}, domain.ErrInvalidIdentity
	}

	now := i.now()
	exp := now.Add(i.ttl)
	claims := jwt.RegisteredClaims{
		Subject:   identity,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
		ID:        uuid.NewString(),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return domain.Token{}, fmt.Errorf("sign token: %w", err)
	}
	return domain.Token{AccessToken: signed, TokenType: domain.TokenTypeBearer, ExpiresAt: exp}, nil
}

// Verify implementa domain.Verifier.
func (i *JWTIssuer) Verify(raw string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(raw, claims,
		func(*jwt.Token) (any, error) { return i.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.now),
		jwt.WithExpirationRequired(),
	)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return "", fmt.Errorf("%w: %v", domain.ErrTokenExpired, err)
	case err != nil:
		return "", fmt.Errorf("%w: %v", domain.ErrUnauthorized, err)
	}

	if claims.Subject == "" {
		return "", fmt.Errorf("%w: missing subject", domain.ErrUnauthorized)
	}
	return claims.Subject, nil
}
