package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func doLimited(rl *RateLimiter, remoteAddr string) int {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil)
	req.RemoteAddr = remoteAddr
	rec := httptest.NewRecorder()
	rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})).ServeHTTP(rec, req)
	return rec.Code
}

func TestRateLimiterAllowsUpToLimit(t *testing.T) {
	rl := NewRateLimiter(3, time.Minute)

	for i := 0; i < 3; i++ {
		if code := doLimited(rl, "10.0.0.1:54321"); code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i+1, code)
		}
	}
	if code := doLimited(rl, "10.0.0.1:54321"); code != http.StatusTooManyRequests {
		t.Fatalf("over the limit: status = %d, want 429", code)
	}
}

func TestRateLimiterKeysByHost(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)

	// Same host, different source ports: one bucket.
	if code := doLimited(rl, "10.0.0.1:1111"); code != http.StatusOK {
		t.Fatalf("first request refused: %d", code)
	}
	if code := doLimited(rl, "10.0.0.1:2222"); code != http.StatusTooManyRequests {
		t.Fatalf("same host must share a bucket, got %d", code)
	}

	// A different host is unaffected.
	if code := doLimited(rl, "10.0.0.2:1111"); code != http.StatusOK {
		t.Fatalf("other host throttled: %d", code)
	}
}

func TestRateLimiterResetsAfterWindow(t *testing.T) {
	rl := NewRateLimiter(1, 20*time.Millisecond)

	if code := doLimited(rl, "10.0.0.1:1111"); code != http.StatusOK {
		t.Fatalf("first request refused: %d", code)
	}
	if code := doLimited(rl, "10.0.0.1:1111"); code != http.StatusTooManyRequests {
		t.Fatalf("second request should be throttled, got %d", code)
	}

	time.Sleep(30 * time.Millisecond)
	if code := doLimited(rl, "10.0.0.1:1111"); code != http.StatusOK {
		t.Fatalf("window elapsed, request should pass, got %d", code)
	}
}
