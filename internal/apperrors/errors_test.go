package apperrors

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPStatus(t *testing.T) {
	cases := map[Code]int{
		CodeInvalidIdentity:     http.StatusBadRequest,
		CodeUnauthorized:        http.StatusUnauthorized,
		CodeForbidden:           http.StatusForbidden,
		CodeTooManyRequests:     http.StatusTooManyRequests,
		CodeNoUpstreamAvailable: http.StatusServiceUnavailable,
		CodeUpstreamUnavailable: http.StatusBadGateway,
		CodeServiceUnavailable:  http.StatusServiceUnavailable,
		CodeInternal:            http.StatusInternalServerError,
		Code("whatever"):        http.StatusInternalServerError,
	}
	for code, want := range cases {
		assert.Equal(t, want, HTTPStatus(code), string(code))
	}
}

func TestRetryAfterSecondsRoundsUp(t *testing.T) {
	assert.Equal(t, 0, RetryAfterSeconds(0))
	assert.Equal(t, 0, RetryAfterSeconds(-time.Second))
	assert.Equal(t, 1, RetryAfterSeconds(time.Millisecond))
	assert.Equal(t, 24, RetryAfterSeconds(24*time.Second))
	assert.Equal(t, 25, RetryAfterSeconds(24*time.Second+time.Nanosecond))
}

func TestErrorIsMatchesByCode(t *testing.T) {
	sentinel := errors.New("token expired")
	err := fmt.Errorf("auth: %w", Wrap(CodeUnauthorized, sentinel, "Token has expired"))

	assert.True(t, errors.Is(err, &Error{Code: CodeUnauthorized}))
	assert.False(t, errors.Is(err, &Error{Code: CodeForbidden}))
	assert.True(t, errors.Is(err, sentinel))
}

func TestFromWrapsUnknownErrors(t *testing.T) {
	got := From(errors.New("boom"))
	assert.Equal(t, CodeInternal, got.Code)

	typed := New(CodeForbidden, "nope")
	assert.Same(t, typed, From(fmt.Errorf("wrapped: %w", typed)))
}

func TestRespond_JSONEnvelope(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "http://gw/hello", nil)
	r.Header.Set(RequestIDHeader, "req-1")
	w := httptest.NewRecorder()

	Respond(w, r, New(CodeUnauthorized, "Invalid token"))

	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var body ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, CodeUnauthorized, body.Error.Code)
	assert.Equal(t, "Invalid token", body.Error.Message)
	assert.Equal(t, "req-1", body.Error.RequestID)
}

func TestRespond_TooManyRequestsIsPlainText(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "http://gw/hello", nil)
	w := httptest.NewRecorder()

	Respond(w, r, TooManyRequests(23500*time.Millisecond))

	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "24", w.Header().Get("Retry-After"))
	assert.True(t, strings.HasPrefix(w.Header().Get("Content-Type"), "text/plain"))
	assert.Equal(t, "Too many requests. Try again in 24 seconds.", strings.TrimSpace(w.Body.String()))
}
