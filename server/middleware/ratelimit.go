package middleware

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"

	"github.com/rentfleet/aigw/config"
	"github.com/rentfleet/aigw/errors"
	"github.com/rentfleet/aigw/server/metrics"
	"golang.org/x/time/rate"
)

// RateLimiter limits requests per client IP with a token bucket.
type RateLimiter struct {
	every   rate.Limit
	burst   int
	metrics *metrics.Metrics

	mu       sync.Mutex
	visitors map[string]*rate.Limiter
}

// NewRateLimiter creates a limiter allowing cfg.RequestsPerMinute per client
// with bursts of cfg.Burst. m may be nil.
func NewRateLimiter(cfg config.RateLimitConfig, m *metrics.Metrics) *RateLimiter {
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		every:    rate.Limit(float64(cfg.RequestsPerMinute) / 60),
		burst:    burst,
		metrics:  m,
		visitors: make(map[string]*rate.Limiter),
	}
}

func (l *RateLimiter) limiter(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	limiter, exists := l.visitors[ip]
	if !exists {
		limiter = rate.NewLimiter(l.every, l.burst)
		l.visitors[ip] = limiter
	}
	return limiter
}

// Reset forgets every client.
func (l *RateLimiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.visitors = make(map[string]*rate.Limiter)
}

// Handler rejects requests over the limit with 429 and a Retry-After header.
func (l *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)

		if !l.limiter(ip).Allow() {
			if l.metrics != nil {
				l.metrics.RateLimitHits.WithLabelValues(ip).Inc()
			}
			retryAfter := l.retryAfter()
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			errors.WriteError(w, errors.NewRateLimitError(GetRequestID(r.Context()), retryAfter))
			return
		}

		next.ServeHTTP(w, r)
	})
}

// retryAfter is the time in whole seconds until one token is refilled.
func (l *RateLimiter) retryAfter() int {
	if l.every <= 0 {
		return 60
	}
	return int(math.Max(math.Ceil(1/float64(l.every)), 1))
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
