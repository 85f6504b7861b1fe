package ratelimit

import (
	"net/http"
	"testing"
	"time"

	"intelligent-gateway/middleware/ratelimit/infra"
)

func TestThrottleMiddleware_AllowsThenRejectsSameOrigin(t *testing.T) {
	now := time.Unix(1000, 0)
	store := infra.NewBucketStore(0.5, 1, infra.WithBucketClock(func() time.Time { return now }))

	calls := 0
	h := ThrottleMiddleware(ThrottleOptions{Store: store, AddRateLimitHeaders: true})(okHandler(&calls))

	w1 := doRequest(h, "10.0.0.1:1234")
	if w1.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w1.Code)
	}
	if got := w1.Header().Get("X-RateLimit-RPS"); got != "0.5" {
		t.Fatalf("expected X-RateLimit-RPS=0.5, got %q", got)
	}
	if got := w1.Header().Get("X-RateLimit-Burst"); got != "1" {
		t.Fatalf("expected X-RateLimit-Burst=1, got %q", got)
	}

	w2 := doRequest(h, "10.0.0.1:1234")
	if w2.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w2.Code)
	}
	if got := w2.Header().Get("Retry-After"); got != "2" {
		t.Fatalf("expected Retry-After=2, got %q", got)
	}

	// outra origem tem o próprio bucket
	w3 := doRequest(h, "10.0.0.2:1234")
	if w3.Code != http.StatusOK {
		t.Fatalf("expected 200 for other origin, got %d", w3.Code)
	}

	if calls != 2 {
		t.Fatalf("expected next handler to be called twice, got %d", calls)
	}
}

func TestThrottleMiddleware_NoStoreIsPassthrough(t *testing.T) {
	calls := 0
	h := ThrottleMiddleware(ThrottleOptions{})(okHandler(&calls))

	for i := 0; i < 5; i++ {
		if w := doRequest(h, "10.0.0.1:1234"); w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", w.Code)
		}
	}
}
