package middleware

import (
	"net"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"potholewatch/internal/httputil"
)

// RateLimiter implements a simple sliding window rate limiter keyed by client IP.
type RateLimiter struct {
	requests map[string][]time.Time
	mu       sync.Mutex
	limit    int           // Maximum requests per window
	window   time.Duration // Time window
	trusted  []string
	now      func() time.Time
}

// NewRateLimiter creates a new rate limiter. Call Cleanup periodically (or
// run it with RunCleanup) to drop idle clients. Clients are keyed by
// ClientIP with the given trusted proxies.
func NewRateLimiter(limit int, window time.Duration, trustedProxies ...string) *RateLimiter {
	return &RateLimiter{
		requests: make(map[string][]time.Time),
		limit:    limit,
		window:   window,
		trusted:  trustedProxies,
		now:      time.Now,
	}
}

// RunCleanup removes old entries every window until done is closed.
func (rl *RateLimiter) RunCleanup(done <-chan struct{}) {
	ticker := time.NewTicker(rl.window)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			rl.Cleanup()
		}
	}
}

// Cleanup drops timestamps older than the window and forgets idle clients.
func (rl *RateLimiter) Cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	for ip, times := range rl.requests {
		valid := rl.recent(times, now)
		if len(valid) == 0 {
			delete(rl.requests, ip)
		} else {
			rl.requests[ip] = valid
		}
	}
}

func (rl *RateLimiter) recent(times []time.Time, now time.Time) []time.Time {
	var valid []time.Time
	for _, t := range times {
		if now.Sub(t) < rl.window {
			valid = append(valid, t)
		}
	}
	return valid
}

// Allow checks if a request from the given IP is allowed
func (rl *RateLimiter) Allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	valid := rl.recent(rl.requests[ip], now)
	if len(valid) >= rl.limit {
		rl.requests[ip] = valid
		return false
	}
	rl.requests[ip] = append(valid, now)
	return true
}

// RateLimit rejects requests beyond the limiter's budget with 429.
func RateLimit(limiter *RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodOptions && !limiter.Allow(ClientIP(r, limiter.trusted...)) {
				httputil.WriteJSONError(w, http.StatusTooManyRequests, "Rate limit exceeded. Please try again later.")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP returns the connection address. When that address is one of
// trustedProxies, X-Forwarded-For is walked from the right and the first hop
// that is not itself a trusted proxy wins.
func ClientIP(r *http.Request, trustedProxies ...string) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	if !slices.Contains(trustedProxies, host) {
		return host
	}

	fwd := r.Header.Get("X-Forwarded-For")
	if fwd == "" {
		return host
	}
	hops := strings.Split(fwd, ",")
	for i := len(hops) - 1; i >= 0; i-- {
		hop := strings.TrimSpace(hops[i])
		if hop != "" && !slices.Contains(trustedProxies, hop) {
			return hop
		}
	}
	return host
}
