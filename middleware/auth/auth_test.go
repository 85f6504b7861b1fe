package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"intelligent-gateway/internal/apperrors"
	"intelligent-gateway/middleware/auth/infra"
)

type loginCounter struct{ ok, failed int }

func (c *loginCounter) ObserveLogin(ok bool) {
	if ok {
		c.ok++
	} else {
		c.failed++
	}
}

func newIssuer(t *testing.T, opts ...infra.Option) *infra.JWTIssuer {
	t.Helper()
	issuer, err := infra.NewJWTIssuer("test-secret", opts...)
	require.NoError(t, err)
	return issuer
}

func protected(issuer *infra.JWTIssuer, seen *string) http.Handler {
	return Middleware(Options{Verifier: issuer})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*seen = IdentityFrom(r.Context())
		w.WriteHeader(http.StatusOK)
	}))
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) apperrors.ErrorDetail {
	t.Helper()
	var body apperrors.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.Error
}

func TestLoginHandler_IssuesToken(t *testing.T) {
	issuer := newIssuer(t)
	counter := &loginCounter{}
	h := LoginHandler(issuer, counter, nil)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "http://gw/login?username=alice", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "bearer", body["token_type"])
	assert.Len(t, body, 2)

	sub, err := issuer.Verify(body["access_token"])
	require.NoError(t, err)
	assert.Equal(t, "alice", sub)
	assert.Equal(t, 1, counter.ok)
}

func TestLoginHandler_EmptyUsername(t *testing.T) {
	counter := &loginCounter{}
	h := LoginHandler(newIssuer(t), counter, nil)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "http://gw/login", nil))

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, apperrors.CodeInvalidIdentity, decodeError(t, w).Code)
	assert.Equal(t, 1, counter.failed)
}

func TestMiddleware_ValidTokenSetsIdentity(t *testing.T) {
	issuer := newIssuer(t)
	tok, err := issuer.IssueToken("alice")
	require.NoError(t, err)

	var seen string
	r := httptest.NewRequest(http.MethodGet, "http://gw/api/hello", nil)
	r.Header.Set("Authorization", "Bearer "+tok.AccessToken)
	w := httptest.NewRecorder()
	protected(issuer, &seen).ServeHTTP(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "alice", seen)
}

func TestMiddleware_Rejections(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	issuer := newIssuer(t, infra.WithClock(func() time.Time { return now }), infra.WithTTL(time.Minute))
	expired, err := issuer.IssueToken("alice")
	require.NoError(t, err)

	cases := []struct {
		name    string
		header  string
		advance time.Duration
		message string
	}{
		{name: "missing header", header: "", message: "Not authenticated"},
		{name: "wrong scheme", header: "Basic YWxpY2U6cHc=", message: "Not authenticated"},
		{name: "garbage token", header: "Bearer nope", message: "Invalid token"},
		{name: "expired token", header: "Bearer " + expired.AccessToken, advance: 2 * time.Minute, message: "Token has expired"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			now = time.Unix(1_700_000_000, 0).Add(tc.advance)

			var seen string
			r := httptest.NewRequest(http.MethodGet, "http://gw/api/hello", nil)
			if tc.header != "" {
				r.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			protected(issuer, &seen).ServeHTTP(w, r)

			require.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Equal(t, "Bearer", w.Header().Get("WWW-Authenticate"))
			detail := decodeError(t, w)
			assert.Equal(t, apperrors.CodeUnauthorized, detail.Code)
			assert.Equal(t, tc.message, detail.Message)
			assert.Empty(t, seen, "next handler must not run")
		})
	}
}

func TestRequireSubject(t *testing.T) {
	h := RequireSubject("admin")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	r := httptest.NewRequest(http.MethodGet, "http://gw/admin/status", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), "alice")))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = httptest.NewRecorder()
	h.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), "admin")))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestBearerToken(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "http://gw/", nil)
	r.Header.Set("Authorization", "bearer   abc ")
	tok, ok := BearerToken(r)
	assert.True(t, ok)
	assert.Equal(t, "abc", tok)

	r.Header.Set("Authorization", "Bearer ")
	_, ok = BearerToken(r)
	assert.False(t, ok)
}
