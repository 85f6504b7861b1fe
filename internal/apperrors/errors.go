// Package apperrors concentra a taxonomia de erros do gateway e a tradução
// para status HTTP.
//
// Os pacotes de domínio expõem erros sentinela simples (errors.Is); os adapters
// HTTP embrulham esses erros em *Error com um Code e respondem com Respond.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

type Code string

const (
	CodeInvalidIdentity     Code = "INVALID_IDENTITY"
	CodeUnauthorized        Code = "UNAUTHORIZED"
	CodeForbidden           Code = "FORBIDDEN"
	CodeTooManyRequests     Code = "TOO_MANY_REQUESTS"
	CodeNoUpstreamAvailable Code = "NO_UPSTREAM_AVAILABLE"
	CodeUpstreamUnavailable Code = "UPSTREAM_UNAVAILABLE"
	CodeServiceUnavailable  Code = "SERVICE_UNAVAILABLE"
	CodeNotFound            Code = "NOT_FOUND"
	CodeInternal            Code = "INTERNAL_ERROR"
)

// Error é o erro tipado que atravessa a fronteira HTTP.
type Error struct {
	Code    Code
	Message string
	// RetryAfter só é usado em CodeTooManyRequests.
	RetryAfter time.Duration
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is compara pelo Code, permitindo errors.Is(err, &Error{Code: CodeUnauthorized}).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Wrap(code Code, err error, message string) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// TooManyRequests monta o erro de rate limit com a mensagem usada no corpo 429.
func TooManyRequests(retryAfter time.Duration) *Error {
	secs := RetryAfterSeconds(retryAfter)
	return &Error{
		Code:       CodeTooManyRequests,
		Message:    fmt.Sprintf("Too many requests. Try again in %d seconds.", secs),
		RetryAfter: retryAfter,
	}
}

// RetryAfterSeconds arredonda para cima em segundos inteiros, nunca negativo.
func RetryAfterSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int((d + time.Second - 1) / time.Second)
}

// HTTPStatus resolve o status HTTP de um código.
func HTTPStatus(code Code) int {
	switch code {
	case CodeInvalidIdentity:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeTooManyRequests:
		return http.StatusTooManyRequests
	case CodeUpstreamUnavailable:
		return http.StatusBadGateway
	case CodeNoUpstreamAvailable, CodeServiceUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// From normaliza qualquer erro para *Error. Erros desconhecidos viram CodeInternal.
func From(err error) *Error {
	if err == nil {
		return New(CodeInternal, "unexpected nil error")
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return Wrap(CodeInternal, err, "unexpected error")
}
