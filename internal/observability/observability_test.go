package observability

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"intelligent-gateway/internal/apperrors"
)

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger("gateway", "debug", "json")
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zap.DebugLevel))

	_, err = NewLogger("gateway", "loud", "json")
	assert.Error(t, err)

	_, err = NewLogger("gateway", "info", "xml")
	assert.Error(t, err)
}

func TestRequestID_GeneratesAndPropagates(t *testing.T) {
	var seenCtx, seenHeader string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenCtx = GetRequestID(r.Context())
		seenHeader = r.Header.Get(apperrors.RequestIDHeader)
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "http://gw/", nil))

	require.NotEmpty(t, seenCtx)
	assert.Equal(t, seenCtx, seenHeader)
	assert.Equal(t, seenCtx, w.Header().Get(apperrors.RequestIDHeader))
}

func TestRequestID_KeepsIncoming(t *testing.T) {
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	r := httptest.NewRequest(http.MethodGet, "http://gw/", nil)
	r.Header.Set(apperrors.RequestIDHeader, "abc")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	assert.Equal(t, "abc", w.Header().Get(apperrors.RequestIDHeader))
}

func TestAccessLog_RecordsStatus(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	h := AccessLog(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = io.WriteString(w, "short and stout")
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "http://gw/pot", nil))

	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, int64(http.StatusTeapot), fields["status"])
	assert.Equal(t, "/pot", fields["path"])
}

func TestRecovery_RespondsInternalError(t *testing.T) {
	h := Recovery(zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("kaboom")
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "http://gw/", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), string(apperrors.CodeInternal))
}

func TestMetrics_HandlerExposesCollectors(t *testing.T) {
	m := NewMetrics()
	m.ObserveDecision(true)
	m.ObserveDecision(false)
	m.ObserveSelection("http://a", true)
	m.ObserveSelection("http://b", false)
	m.ObserveProxy("http://a", 200, 5*time.Millisecond)
	m.SetUpstreamHealth("http://a", true)
	m.ObserveLogin(true)

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "http://gw/metrics", nil))

	body := w.Body.String()
	assert.Contains(t, body, `gateway_ratelimit_decisions_total{result="allowed"} 1`)
	assert.Contains(t, body, `gateway_ratelimit_decisions_total{result="rejected"} 1`)
	assert.Contains(t, body, "gateway_upstream_fail_open_total 1")
	assert.True(t, strings.Contains(body, `gateway_upstream_healthy{upstream="http://a"} 1`))
}

func TestMetrics_NilReceiverIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveDecision(true)
	m.ObserveSelection("x", false)
	m.ObserveProxy("x", 200, time.Millisecond)
	m.SetUpstreamHealth("x", false)
	m.ObserveLogin(false)
	assert.Nil(t, m.Registry())
}
