package domain

import (
	"errors"
	"fmt"
	"time"
)

const TokenTypeBearer = "bearer"

var (
	ErrInvalidIdentity = errors.New("auth: identity must not be empty")
	ErrUnauthorized    = errors.New("auth: invalid token")
	ErrTokenExpired    = fmt.Errorf("%w: token has expired", ErrUnauthorized)
)

// Token é a credencial devolvida pelo /login.
type Token struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"-"`
}

// Issuer emite tokens para uma identidade não vazia.
type Issuer interface {
	IssueToken(identity string) (Token, error)
}

// Verifier valida assinatura e expiração e devolve a identidade do token.
// Qualquer falha satisfaz errors.Is(err, ErrUnauthorized).
type Verifier interface {
	Verify(raw string) (identity string, err error)
}
