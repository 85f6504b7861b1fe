package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogin(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/login", r.URL.Path)
		assert.Equal(t, "ana maria", r.URL.Query().Get("username"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"tok","token_type":"bearer"}`))
	}))
	defer srv.Close()

	tok, err := New(srv.URL+"/").Login(context.Background(), "ana maria")
	require.NoError(t, err)
	assert.Equal(t, "tok", tok)
}

func TestLogin_Failure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{}}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := New(srv.URL).Login(context.Background(), "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrLoginFailed))
}

func TestHello(t *testing.T) {
	cases := []struct {
		name    string
		handler http.HandlerFunc
		want    HelloResult
	}{
		{
			name: "ok json",
			handler: func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
				_, _ = w.Write([]byte(`{"service":"service-1","message":"Hello from service-1"}`))
			},
			want: HelloResult{OK: true, Status: 200, Data: Hello{Service: "service-1", Message: "Hello from service-1"}},
		},
		{
			name: "ok plain text",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte("hi"))
			},
			want: HelloResult{OK: true, Status: 200, Data: Hello{Service: "Server", Message: "hi"}},
		},
		{
			name: "throttled",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Retry-After", "24")
				http.Error(w, "Too many requests. Try again in 24 seconds.", http.StatusTooManyRequests)
			},
			want: HelloResult{Status: 429, Detail: "Too many requests. Try again in 24 seconds.", RetryAfter: 24 * time.Second},
		},
		{
			name: "throttled without body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusTooManyRequests)
			},
			want: HelloResult{Status: 429, Detail: "Too many requests. Try again later."},
		},
		{
			name: "upstream error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
			},
			want: HelloResult{Status: 502, Detail: "Error 502"},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(tc.handler)
			defer srv.Close()

			got, err := New(srv.URL).Hello(context.Background(), "tok")
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestHello_BodyIsBounded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(strings.Repeat("x", maxBody+4096)))
	}))
	defer srv.Close()

	got, err := New(srv.URL).Hello(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, 502, got.Status)
	assert.Len(t, got.Detail, maxBody)
}

func TestHello_UsesPrefix(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/hello", r.URL.Path)
		_, _ = w.Write([]byte(`{"service":"s","message":"m"}`))
	}))
	defer srv.Close()

	c := New(srv.URL)
	c.Prefix = "/api"
	got, err := c.Hello(context.Background(), "tok")
	require.NoError(t, err)
	assert.True(t, got.OK)
}

func TestHello_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := New(url).Hello(context.Background(), "tok")
	assert.Error(t, err)
}
