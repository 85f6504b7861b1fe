package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"intelligent-gateway/internal/apperrors"
	"intelligent-gateway/middleware/auth/domain"
)

type identityKey struct{}

// WithIdentity guarda a identidade autenticada no contexto.
func WithIdentity(ctx context.Context, identity string) context.Context {
	return context.WithValue(ctx, identityKey{}, identity)
}

// IdentityFrom lê a identidade autenticada; vazio quando a request não passou
// pelo Middleware.
func IdentityFrom(ctx context.Context) string {
	id, _ := ctx.Value(identityKey{}).(string)
	return id
}

type Options struct {
	Verifier domain.Verifier
	Logger   *zap.Logger
}

// BearerToken extrai o token de "Authorization: Bearer <token>".
func BearerToken(r *http.Request) (string, bool) {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// Middleware exige um bearer token válido. Falha: 401 e nenhuma etapa seguinte roda.
func Middleware(opts Options) func(next http.Handler) http.Handler {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := BearerToken(r)
			if !ok {
				unauthorized(w, r, domain.ErrUnauthorized, "Not authenticated")
				return
			}

			identity, err := opts.Verifier.Verify(raw)
			if err != nil {
				msg := "Invalid token"
				if errors.Is(err, domain.ErrTokenExpired) {
					msg = "Token has expired"
				}
				opts.Logger.Debug("token rejected", zap.Error(err))
				unauthorized(w, r, err, msg)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
		})
	}
}

func unauthorized(w http.ResponseWriter, r *http.Request, err error, msg string) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	apperrors.Respond(w, r, apperrors.Wrap(apperrors.CodeUnauthorized, err, msg))
}

// RequireSubject deixa passar apenas a identidade informada (ex.: "admin").
// Deve rodar depois do Middleware.
func RequireSubject(subject string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if IdentityFrom(r.Context()) != subject {
				apperrors.Respond(w, r, apperrors.New(apperrors.CodeForbidden, "Not authorized"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
