package auth

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"intelligent-gateway/internal/apperrors"
	"intelligent-gateway/middleware/auth/domain"
)

// LoginObserver recebe o resultado de cada emissão (ex.: contador Prometheus).
type LoginObserver interface {
	ObserveLogin(ok bool)
}

// LoginHandler atende POST /login?username=<id> e devolve
// {"access_token": "...", "token_type": "bearer"}.
func LoginHandler(issuer domain.Issuer, observer LoginObserver, logger *zap.Logger) http.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		tok, err := issuer.IssueToken(r.URL.Query().Get("username"))
		if observer != nil {
			observer.ObserveLogin(err == nil)
		}
		if err != nil {
			if errors.Is(err, domain.ErrInvalidIdentity) {
				apperrors.Respond(w, r, apperrors.Wrap(apperrors.CodeInvalidIdentity, err, "username is required"))
				return
			}
			logger.Error("token issue failed", zap.Error(err))
			apperrors.Respond(w, r, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")
		_ = json.NewEncoder(w).Encode(tok)
	}
}
