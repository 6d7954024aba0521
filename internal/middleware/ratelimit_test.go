package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestLimiter(perMinute int) (*RateLimiter, *time.Time) {
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(perMinute, discardLogger())
	rl.now = func() time.Time { return now }
	return rl, &now
}

func TestRateLimiter_BurstThenRefill(t *testing.T) {
	rl, now := newTestLimiter(3)

	for i := 0; i < 3; i++ {
		if !rl.Allow("10.0.0.1") {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if rl.Allow("10.0.0.1") {
		t.Fatal("4th request should be limited")
	}

	// Other keys have their own bucket
	if !rl.Allow("10.0.0.2") {
		t.Error("a different IP should not be limited")
	}

	// 3 per minute refills one token every 20s
	*now = now.Add(20 * time.Second)
	if !rl.Allow("10.0.0.1") {
		t.Error("request should be allowed after refill")
	}
	if rl.Allow("10.0.0.1") {
		t.Error("only one token should have refilled")
	}
}

func TestRateLimiter_RetryAfter(t *testing.T) {
	rl, _ := newTestLimiter(10)
	if got := rl.RetryAfter(); got != 6*time.Second {
		t.Errorf("expected 6s, got %v", got)
	}
}

func TestRateLimiter_Sweep(t *testing.T) {
	rl, now := newTestLimiter(5)
	rl.Allow("a")
	*now = now.Add(visitorTTL / 2)
	rl.Allow("b")

	*now = now.Add(visitorTTL/2 + time.Second)
	if removed := rl.Sweep(); removed != 1 {
		t.Errorf("expected 1 removed, got %d", removed)
	}
	if _, ok := rl.visitors["b"]; !ok {
		t.Error("recently seen key should survive the sweep")
	}
}

func TestRateLimiter_Middleware(t *testing.T) {
	rl, _ := newTestLimiter(1)
	h := rl.Limit(okHandler)

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest("POST", "/api/auth/login", nil)
		req.RemoteAddr = "192.0.2.7:5555"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	if rec := send(); rec.Code != http.StatusOK {
		t.Fatalf("first request: expected 200, got %d", rec.Code)
	}

	rec := send()
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request: expected 429, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") != "60" {
		t.Errorf("expected Retry-After 60, got %q", rec.Header().Get("Retry-After"))
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected JSON error, got %q", ct)
	}
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{name: "forwarded chain", headers: map[string]string{"X-Forwarded-For": "203.0.113.9, 10.0.0.1"}, remote: "10.0.0.2:80", want: "203.0.113.9"},
		{name: "real ip", headers: map[string]string{"X-Real-IP": " 198.51.100.4 "}, remote: "10.0.0.2:80", want: "198.51.100.4"},
		{name: "remote addr", remote: "192.0.2.1:4000", want: "192.0.2.1"},
		{name: "remote without port", remote: "192.0.2.1", want: "192.0.2.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			if got := getClientIP(req); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}
