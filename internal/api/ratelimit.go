package api

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/FocuswithJustin/VocesDelReino/internal/logging"
)

// RateLimiterConfig holds rate limiter configuration.
type RateLimiterConfig struct {
	RequestsPerMinute int
	BurstSize         int
}

// tokenBucket holds up to capacity tokens and refills continuously.
type tokenBucket struct {
	mu         sync.Mutex
	tokens     float64
	capacity   float64
	refillRate float64 // tokens per second
	lastRefill time.Time
}

func newTokenBucket(capacity, refillRate float64) *tokenBucket {
	return &tokenBucket{
		tokens:     capacity,
		capacity:   capacity,
		refillRate: refillRate,
		lastRefill: time.Now(),
	}
}

// level returns the token count at now. Caller holds mu.
func (tb *tokenBucket) level(now time.Time) float64 {
	elapsed := now.Sub(tb.lastRefill).Seconds()
	return min(tb.capacity, tb.tokens+elapsed*tb.refillRate)
}

// allow takes one token if available.
func (tb *tokenBucket) allow() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	now := time.Now()
	tb.tokens = tb.level(now)
	tb.lastRefill = now
	if tb.tokens < 1 {
		return false
	}
	tb.tokens--
	return true
}

// remaining returns the whole tokens left.
func (tb *tokenBucket) remaining() int {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	return int(tb.level(time.Now()))
}

// reset returns when the bucket will be full again.
func (tb *tokenBucket) reset() time.Time {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	now := time.Now()
	missing := tb.capacity - tb.level(now)
	if missing <= 0 || tb.refillRate <= 0 {
		return now
	}
	return now.Add(time.Duration(missing / tb.refillRate * float64(time.Second)))
}

// idleSince returns when the bucket was last drawn from.
func (tb *tokenBucket) idleSince() time.Time {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	return tb.lastRefill
}

// RateLimiter keeps one token bucket per client IP.
type RateLimiter struct {
	config     RateLimiterConfig
	cleanupTTL time.Duration

	mu      sync.RWMutex
	buckets map[string]*tokenBucket

	done     chan struct{}
	stopOnce sync.Once
}

// NewRateLimiter creates a rate limiter. Call Stop to end its cleanup
// goroutine.
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	rl := &RateLimiter{
		config:     config,
		cleanupTTL: 5 * time.Minute,
		buckets:    make(map[string]*tokenBucket),
		done:       make(chan struct{}),
	}
	go rl.cleanup()
	return rl
}

// Stop ends the cleanup goroutine. It is safe to call more than once.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.done) })
}

func (rl *RateLimiter) bucket(ip string) *tokenBucket {
	rl.mu.RLock()
	b, ok := rl.buckets[ip]
	rl.mu.RUnlock()
	if ok {
		return b
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if b, ok := rl.buckets[ip]; ok {
		return b
	}
	b = newTokenBucket(float64(rl.config.BurstSize), float64(rl.config.RequestsPerMinute)/60)
	rl.buckets[ip] = b
	return b
}

func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-rl.done:
			return
		case now := <-ticker.C:
			rl.evictIdle(now)
		}
	}
}

// evictIdle drops buckets unused for longer than cleanupTTL.
func (rl *RateLimiter) evictIdle(now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for ip, b := range rl.buckets {
		if now.Sub(b.idleSince()) > rl.cleanupTTL {
			delete(rl.buckets, ip)
		}
	}
}

// Allow takes a token for ip.
func (rl *RateLimiter) Allow(ip string) bool { return rl.bucket(ip).allow() }

// Remaining returns the tokens left for ip.
func (rl *RateLimiter) Remaining(ip string) int { return rl.bucket(ip).remaining() }

// Reset returns when ip's bucket will be full.
func (rl *RateLimiter) Reset(ip string) time.Time { return rl.bucket(ip).reset() }

// Middleware rejects requests over the limit with 429 and sets the
// X-RateLimit-* headers on every response.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := getClientIP(r)
		b := rl.bucket(ip)
		reset := b.reset()

		h := w.Header()
		h.Set("X-RateLimit-Limit", strconv.Itoa(rl.config.RequestsPerMinute))
		h.Set("X-RateLimit-Remaining", strconv.Itoa(b.remaining()))
		h.Set("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))

		if !b.allow() {
			retryAfter := int(time.Until(reset).Seconds()) + 1
			h.Set("Retry-After", strconv.Itoa(retryAfter))
			logging.SecurityEvent("rate_limited", "ratelimit",
				"client_ip", ip,
				"path", r.URL.Path)
			respondError(w, http.StatusTooManyRequests, "RATE_LIMIT_EXCEEDED",
				"Rate limit exceeded. Try again in "+strconv.Itoa(retryAfter)+" seconds.")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// getClientIP returns the leftmost X-Forwarded-For address, then
// X-Real-IP, then the connection address. Header values count only when
// they parse as IPs; "unknown" is returned when nothing does.
func getClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); isValidIP(ip) {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); isValidIP(ip) {
		return ip
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		ip = r.RemoteAddr
	}
	if isValidIP(ip) {
		return ip
	}
	return "unknown"
}

func isValidIP(s string) bool {
	return net.ParseIP(s) != nil
}
