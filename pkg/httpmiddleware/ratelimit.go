package httpmiddleware

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-faster/jx"
)

// RateLimitConfig configures the sliding window rate limiter.
type RateLimitConfig struct {
	// Max is the maximum number of requests allowed per window.
	Max int
	// Window is the duration of each sliding window.
	Window time.Duration
	// KeyFunc extracts the rate limit key from a request.
	// If nil, the client IP address is used.
	KeyFunc func(*http.Request) string
}

// counter holds per-key request counts for two adjacent fixed windows. The
// sliding estimate weights the previous window by how much of it still
// overlaps the sliding interval ending now.
type counter struct {
	prev      float64
	prevStart time.Time
	curr      float64
	currStart time.Time
}

// rotate shifts the current window into the previous slot once it elapses
// and discards previous counts that no longer overlap anything.
func (c *counter) rotate(now time.Time, window time.Duration) {
	if now.Sub(c.currStart) < window {
		return
	}
	c.prev, c.prevStart = c.curr, c.currStart
	c.curr = 0
	c.currStart = now.Truncate(window)
	if now.Sub(c.prevStart) >= 2*window {
		c.prev = 0
	}
}

// estimate returns the weighted request count for the sliding interval.
func (c *counter) estimate(now time.Time, window time.Duration) float64 {
	overlap := 1.0 - now.Sub(c.currStart).Seconds()/window.Seconds()
	if overlap < 0 {
		overlap = 0
	}
	return c.prev*overlap + c.curr
}

type limiter struct {
	cfg  RateLimitConfig
	mu   sync.Mutex
	keys map[string]*counter
}

func newLimiter(cfg RateLimitConfig) *limiter {
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = clientIP
	}
	return &limiter{
		cfg:  cfg,
		keys: make(map[string]*counter),
	}
}

// take records one request for key when allowed. It reports the remaining
// budget and the end of the current fixed window.
func (l *limiter) take(key string, now time.Time) (remaining int, resetAt time.Time, allowed bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	c, ok := l.keys[key]
	if !ok {
		c = &counter{currStart: now}
		l.keys[key] = c
	}
	c.rotate(now, l.cfg.Window)

	used := c.estimate(now, l.cfg.Window)
	resetAt = c.currStart.Add(l.cfg.Window)
	if used >= float64(l.cfg.Max) {
		return 0, resetAt, false
	}

	c.curr++
	remaining = int(float64(l.cfg.Max) - used - 1)
	if remaining < 0 {
		remaining = 0
	}
	return remaining, resetAt, true
}

// evict drops keys whose counters can no longer influence any estimate.
func (l *limiter) evict(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for key, c := range l.keys {
		if now.Sub(c.currStart) >= 2*l.cfg.Window {
			delete(l.keys, key)
		}
	}
}

// RateLimit returns a middleware that enforces a per-key sliding window rate
// limit. When the limit is exceeded, it responds with 429 Too Many Requests
// and a JSON body. Every response includes X-RateLimit-Limit,
// X-RateLimit-Remaining, and X-RateLimit-Reset headers.
//
// This variant does not start a background cleanup goroutine. Use
// RateLimitWithCleanup if you need automatic eviction of stale keys.
func RateLimit(cfg RateLimitConfig) Middleware {
	return newLimiter(cfg).middleware()
}

// RateLimitWithCleanup is like RateLimit but additionally starts a background
// goroutine that evicts expired keys every 2x the window duration. The
// goroutine stops when ctx is cancelled.
func RateLimitWithCleanup(ctx context.Context, cfg RateLimitConfig) Middleware {
	l := newLimiter(cfg)
	go func() {
		ticker := time.NewTicker(2 * l.cfg.Window)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				l.evict(now)
			}
		}
	}()
	return l.middleware()
}

func (l *limiter) middleware() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			remaining, resetAt, allowed := l.take(l.cfg.KeyFunc(r), time.Now())

			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(l.cfg.Max))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))

			if !allowed {
				retryAfter := time.Until(resetAt)
				if retryAfter < 0 {
					retryAfter = 0
				}
				h.Set("Retry-After", strconv.Itoa(int(math.Ceil(retryAfter.Seconds()))))
				h.Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)

				var e jx.Encoder
				e.Obj(func(e *jx.Encoder) {
					e.Field("code", func(e *jx.Encoder) { e.Int(http.StatusTooManyRequests) })
					e.Field("message", func(e *jx.Encoder) { e.Str("rate limit exceeded") })
				})
				_, _ = w.Write(e.Bytes())
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// clientIP extracts the client address, preferring X-Forwarded-For, then
// X-Real-IP, then RemoteAddr.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		// May be a comma-separated chain; the first hop is the client.
		if i := strings.IndexByte(xff, ','); i > 0 {
			return strings.TrimSpace(xff[:i])
		}
		return strings.TrimSpace(xff)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
