package middleware

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/DukeRupert/tsfwatch/internal/domain"
	"github.com/DukeRupert/tsfwatch/internal/handler"
)

// =============================================================================
// Rate Limiter
// =============================================================================

// visitorTTL is how long an idle key keeps its bucket.
const visitorTTL = 10 * time.Minute

// RateLimiter keeps a token bucket per key. A key may spend perMinute tokens
// at once, refilled evenly over a minute.
type RateLimiter struct {
	limit  rate.Limit
	burst  int
	now    func() time.Time
	logger *slog.Logger

	mu       sync.Mutex
	visitors map[string]*visitor
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a limiter allowing perMinute requests per key.
func NewRateLimiter(perMinute int, logger *slog.Logger) *RateLimiter {
	perMinute = max(perMinute, 1)
	return &RateLimiter{
		limit:    rate.Limit(float64(perMinute) / 60),
		burst:    perMinute,
		now:      time.Now,
		logger:   logger,
		visitors: make(map[string]*visitor),
	}
}

// Allow spends a token for key and reports whether one was available.
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	v, ok := rl.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.visitors[key] = v
	}
	v.lastSeen = now
	return v.limiter.AllowN(now, 1)
}

// RetryAfter is the time until one token refills.
func (rl *RateLimiter) RetryAfter() time.Duration {
	return time.Duration(float64(time.Second) / float64(rl.limit))
}

// Sweep drops keys idle for longer than visitorTTL.
func (rl *RateLimiter) Sweep() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	removed := 0
	for key, v := range rl.visitors {
		if now.Sub(v.lastSeen) > visitorTTL {
			delete(rl.visitors, key)
			removed++
		}
	}
	return removed
}

// Run sweeps idle keys until ctx is done.
func (rl *RateLimiter) Run(ctx context.Context) {
	ticker := time.NewTicker(visitorTTL)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := rl.Sweep(); n > 0 {
				rl.logger.Debug("rate limiter swept idle clients", "removed", n)
			}
		}
	}
}

// =============================================================================
// Rate Limit Middleware
// =============================================================================

// Limit returns middleware that answers 429 once a client IP has spent its
// tokens.
func (rl *RateLimiter) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientIP := getClientIP(r)

		if !rl.Allow(clientIP) {
			rl.logger.Warn("rate limit exceeded",
				"ip", clientIP,
				"path", r.URL.Path,
				"method", r.Method,
			)

			retryAfter := max(int(rl.RetryAfter().Seconds()), 1)
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			handler.ErrorResponse(w, r, rl.logger, domain.RateLimit(""))
			return
		}

		next.ServeHTTP(w, r)
	})
}

// =============================================================================
// Helpers
// =============================================================================

// getClientIP extracts the client IP from the request, considering proxy headers.
func getClientIP(r *http.Request) string {
	// X-Forwarded-For: client, proxy1, proxy2
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if clientIP := strings.TrimSpace(strings.Split(xff, ",")[0]); clientIP != "" {
			return clientIP
		}
	}

	// nginx
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		// RemoteAddr might not have a port
		return r.RemoteAddr
	}
	return ip
}
