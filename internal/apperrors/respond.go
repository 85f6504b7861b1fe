package apperrors

import (
	"encoding/json"
	"net/http"
	"strconv"
)

// RequestIDHeader é o header de correlação devolvido ao cliente e repassado ao upstream.
const RequestIDHeader = "X-Request-ID"

type ErrorDetail struct {
	Code      Code   `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// Respond escreve o erro no formato padrão.
//
// 429 é respondido como texto puro com Retry-After, que é o que os clientes do
// playground esperam ler; o resto usa o envelope JSON.
func Respond(w http.ResponseWriter, r *http.Request, err error) {
	appErr := From(err)
	status := HTTPStatus(appErr.Code)

	if appErr.Code == CodeTooManyRequests {
		w.Header().Set("Retry-After", strconv.Itoa(RetryAfterSeconds(appErr.RetryAfter)))
		http.Error(w, appErr.Message, status)
		return
	}

	requestID := w.Header().Get(RequestIDHeader)
	if requestID == "" && r != nil {
		requestID = r.Header.Get(RequestIDHeader)
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Error: ErrorDetail{
			Code:      appErr.Code,
			Message:   appErr.Message,
			RequestID: requestID,
		},
	})
}
