package middleware

import (
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/sujit-maker/move-sub000/internal/httpx"
)

const defaultMaxEntries = 10000

type ipWindow struct {
	count int
	ends  time.Time
}

// IPRateLimiter is a fixed-window limiter keyed by client IP. The table is
// bounded: when full, expired windows are swept and, failing that, the
// window closest to expiry is evicted.
type IPRateLimiter struct {
	mu         sync.Mutex
	limit      int
	window     time.Duration
	maxEntries int
	now        func() time.Time
	windows    map[string]ipWindow
}

func NewIPRateLimiter(limit int, window time.Duration) *IPRateLimiter {
	return NewIPRateLimiterWithMaxEntries(limit, window, defaultMaxEntries)
}

func NewIPRateLimiterWithMaxEntries(limit int, period time.Duration, maxEntries int) *IPRateLimiter {
	if limit <= 0 {
		limit = 1
	}
	if period <= 0 {
		period = time.Minute
	}
	if maxEntries <= 0 {
		maxEntries = defaultMaxEntries
	}
	return &IPRateLimiter{
		limit:      limit,
		window:     period,
		maxEntries: maxEntries,
		now:        time.Now,
		windows:    map[string]ipWindow{},
	}
}

func (rl *IPRateLimiter) Middleware(message string) func(http.Handler) http.Handler {
	if message == "" {
		message = "Rate limit exceeded"
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			allowed, retryAfter := rl.allow(clientIP(r.RemoteAddr))
			if !allowed {
				w.Header().Set("Retry-After", strconv.Itoa(int(retryAfter.Seconds())+1))
				httpx.WriteError(w, r, http.StatusTooManyRequests, "RATE_LIMITED", message, nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (rl *IPRateLimiter) allow(ip string) (bool, time.Duration) {
	if ip == "" {
		ip = "unknown"
	}
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	entry, ok := rl.windows[ip]
	if !ok || !entry.ends.After(now) {
		if !ok && len(rl.windows) >= rl.maxEntries {
			rl.evict(now)
		}
		entry = ipWindow{ends: now.Add(rl.window)}
	}
	entry.count++
	rl.windows[ip] = entry

	if entry.count > rl.limit {
		return false, entry.ends.Sub(now)
	}
	return true, 0
}

// evict must be called with mu held.
func (rl *IPRateLimiter) evict(now time.Time) {
	for ip, entry := range rl.windows {
		if !entry.ends.After(now) {
			delete(rl.windows, ip)
		}
	}
	if len(rl.windows) < rl.maxEntries {
		return
	}
	var oldestIP string
	var oldest time.Time
	for ip, entry := range rl.windows {
		if oldestIP == "" || entry.ends.Before(oldest) {
			oldestIP, oldest = ip, entry.ends
		}
	}
	delete(rl.windows, oldestIP)
}

func (rl *IPRateLimiter) size() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.windows)
}

func clientIP(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}
