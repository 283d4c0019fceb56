package httpx

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Counter increments the hit count for key inside the current fixed window
// and returns the new count.
type Counter interface {
	Incr(ctx context.Context, key string) (int64, error)
}

type RateLimitConfig struct {
	Limit    int
	Prefix   string
	FailOpen bool
	Logger   *slog.Logger
}

// RateLimit rejects a client with 429 once it exceeds cfg.Limit hits in the
// counter's window. Counter errors fail open or closed per cfg.FailOpen.
func RateLimit(counter Counter, cfg RateLimitConfig) Middleware {
	if cfg.Limit <= 0 {
		cfg.Limit = 60
	}
	if strings.TrimSpace(cfg.Prefix) == "" {
		cfg.Prefix = "rl"
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			count, err := counter.Incr(r.Context(), cfg.Prefix+":"+clientKey(r))
			if err != nil {
				if cfg.Logger != nil {
					cfg.Logger.Warn("rate limiter error", "err", err)
				}
				if cfg.FailOpen {
					next.ServeHTTP(w, r)
					return
				}
				WriteError(w, http.StatusServiceUnavailable, "RATE_LIMITER_UNAVAILABLE", "rate limiter unavailable")
				return
			}
			remaining := int64(cfg.Limit) - count
			if remaining < 0 {
				remaining = 0
			}
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(cfg.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
			if count > int64(cfg.Limit) {
				WriteError(w, http.StatusTooManyRequests, "RATE_LIMITED", "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// MemoryCounter is a per-process fixed-window counter for single-instance and
// local deployments.
type MemoryCounter struct {
	window   time.Duration
	now      func() time.Time
	mu        sync.Mutex
	visitors  map[string]*visitor
	nextSweep time.Time
}

type visitor struct {
	count     int64
	resetTime time.Time
}

func NewMemoryCounter(window time.Duration) *MemoryCounter {
	if window <= 0 {
		window = time.Minute
	}
	return &MemoryCounter{window: window, now: time.Now, visitors: map[string]*visitor{}}
}

func (c *MemoryCounter) Incr(_ context.Context, key string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	v := c.visitors[key]
	if v == nil || now.After(v.resetTime) {
		c.visitors[key] = &visitor{count: 1, resetTime: now.Add(c.window)}
		c.evictExpired(now)
		return 1, nil
	}
	v.count++
	return v.count, nil
}

// evictExpired sweeps the map at most once per window.
func (c *MemoryCounter) evictExpired(now time.Time) {
	if now.Before(c.nextSweep) {
		return
	}
	c.nextSweep = now.Add(c.window)
	for k, v := range c.visitors {
		if now.After(v.resetTime) {
			delete(c.visitors, k)
		}
	}
}

func clientKey(r *http.Request) string {
	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		parts := strings.Split(ip, ",")
		return strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil {
		return host
	}
	return r.RemoteAddr
}
