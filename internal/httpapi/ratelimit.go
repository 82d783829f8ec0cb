package httpapi

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

const (
	deviceHeader   = "X-Device-ID"
	sweepThreshold = 4096
)

// RateLimitConfig sets the per-minute rate and burst of each bucket kind.
// Zero values fall back to 60 per minute with a burst of 20.
type RateLimitConfig struct {
	IPPerMinute     int
	IPBurst         int
	DevicePerMinute int
	DeviceBurst     int
}

// RateLimiter throttles per client IP and, when a kiosk identifies itself
// with X-Device-ID, per device. Kiosks behind one NAT share an IP, so the
// device bucket is the tighter of the two in practice.
type RateLimiter struct {
	ipLimiter     *tokenLimiter
	deviceLimiter *tokenLimiter
}

func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	return &RateLimiter{
		ipLimiter:     newTokenLimiter(cfg.IPPerMinute, cfg.IPBurst),
		deviceLimiter: newTokenLimiter(cfg.DevicePerMinute, cfg.DeviceBurst),
	}
}

func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		if ip != "" && !l.ipLimiter.allow(ip) {
			writeError(w, "", http.StatusTooManyRequests, "rate_limited", "too many requests")
			return
		}

		deviceID := strings.TrimSpace(r.Header.Get(deviceHeader))
		if deviceID != "" && !l.deviceLimiter.allow(deviceID) {
			writeError(w, requestIDFromRequest(r), http.StatusTooManyRequests, "rate_limited", "too many requests")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// tokenLimiter keeps one token bucket per key (client IP or device id).
// Buckets start full, refill at rate tokens per second up to burst, and are
// swept once they have been idle long enough to be full again.
type tokenLimiter struct {
	mu     sync.Mutex
	rate   float64
	burst  float64
	bucket map[string]*bucket
	now    func() time.Time
}

type bucket struct {
	tokens float64
	last   time.Time
}

func newTokenLimiter(perMinute, burst int) *tokenLimiter {
	if perMinute <= 0 {
		perMinute = 60
	}
	if burst <= 0 {
		burst = 20
	}
	return &tokenLimiter{
		rate:   float64(perMinute) / 60.0,
		burst:  float64(burst),
		bucket: make(map[string]*bucket),
		now:    time.Now,
	}
}

func (l *tokenLimiter) allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if len(l.bucket) >= sweepThreshold {
		l.sweep(now)
	}
	b, ok := l.bucket[key]
	if !ok {
		l.bucket[key] = &bucket{tokens: l.burst - 1, last: now}
		return true
	}
	elapsed := now.Sub(b.last).Seconds()
	b.tokens = min(l.burst, b.tokens+elapsed*l.rate)
	b.last = now
	if b.tokens < 1 {
		return false
	}
	b.tokens -= 1
	return true
}

// sweep drops buckets that have been idle long enough to be full again.
// Callers hold l.mu.
func (l *tokenLimiter) sweep(now time.Time) {
	full := time.Duration(l.burst / l.rate * float64(time.Second))
	for key, b := range l.bucket {
		if now.Sub(b.last) > full {
			delete(l.bucket, key)
		}
	}
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		return strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
