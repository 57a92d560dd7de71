package middleware

import (
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/tradefoox/deckvault/internal/metrics"
)

const rateLimitWindow = time.Hour

// Rate limit scopes
const (
	ScopeDownload = "download"
	ScopeAdmin    = "admin"
)

// ConfigProvider interface allows RateLimiter to read current rate limit values
type ConfigProvider interface {
	GetRateLimitDownload() int
	GetRateLimitAdmin() int
}

// requestRecord tracks requests for one scope and IP
type requestRecord struct {
	timestamps []time.Time
	mu         sync.Mutex
}

// RateLimiter enforces sliding one-hour windows per scope and client IP
type RateLimiter struct {
	config  ConfigProvider
	records sync.Map // map[string]*requestRecord keyed by scope|ip
	cleanup *time.Ticker
	now     func() time.Time

	done     chan struct{}
	exited   chan struct{}
	stopOnce sync.Once
}

// NewRateLimiter creates a new rate limiter with the given configuration provider
func NewRateLimiter(config ConfigProvider) *RateLimiter {
	rl := &RateLimiter{
		config:  config,
		cleanup: time.NewTicker(rateLimitWindow),
		now:     time.Now,
		done:    make(chan struct{}),
		exited:  make(chan struct{}),
	}

	go rl.cleanupOldEntries()

	return rl
}

func (rl *RateLimiter) cleanupOldEntries() {
	defer close(rl.exited)
	for {
		select {
		case <-rl.cleanup.C:
			rl.prune()
		case <-rl.done:
			return
		}
	}
}

// prune drops expired timestamps and empty records
func (rl *RateLimiter) prune() {
	cutoff := rl.now().Add(-rateLimitWindow)
	rl.records.Range(func(key, value any) bool {
		record := value.(*requestRecord)
		record.mu.Lock()
		defer record.mu.Unlock()

		record.timestamps = trimBefore(record.timestamps, cutoff)
		if len(record.timestamps) == 0 {
			rl.records.Delete(key)
		}
		return true
	})
}

// Stop stops the cleanup goroutine. It is safe to call more than once.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() {
		rl.cleanup.Stop()
		close(rl.done)
	})
}

// Allow records an attempt for scope and ip and reports whether it is within limit
func (rl *RateLimiter) Allow(scope, ip string, limit int) bool {
	now := rl.now()

	value, _ := rl.records.LoadOrStore(scope+"|"+ip, &requestRecord{})
	record := value.(*requestRecord)

	record.mu.Lock()
	defer record.mu.Unlock()

	record.timestamps = trimBefore(record.timestamps, now.Add(-rateLimitWindow))

	if len(record.timestamps) >= limit {
		return false
	}

	record.timestamps = append(record.timestamps, now)
	return true
}

// trimBefore removes timestamps at or before cutoff, reusing the backing
// array unless most of a large slice was dropped.
func trimBefore(timestamps []time.Time, cutoff time.Time) []time.Time {
	oldCount := len(timestamps)
	kept := timestamps[:0]
	for _, ts := range timestamps {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}

	if len(kept) < oldCount/2 && oldCount > 100 {
		return append([]time.Time(nil), kept...)
	}
	return kept
}

// scopeFor classifies a request. Downloads and metadata lookups share the
// download scope; registry writes use the admin scope.
func scopeFor(r *http.Request) string {
	path := strings.TrimPrefix(r.URL.Path, "/api")

	switch {
	case strings.HasPrefix(path, "/download/"):
		return ScopeDownload
	case r.Method == http.MethodPost || r.Method == http.MethodDelete:
		if path == "/files" || strings.HasPrefix(path, "/files/") || path == "/pitch-deck/files" {
			return ScopeAdmin
		}
	}
	return ""
}

// RateLimitMiddleware creates a middleware that enforces rate limits
func RateLimitMiddleware(rl *RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var limit int
			scope := scopeFor(r)
			switch scope {
			case ScopeDownload:
				limit = rl.config.GetRateLimitDownload()
			case ScopeAdmin:
				limit = rl.config.GetRateLimitAdmin()
			default:
				next.ServeHTTP(w, r)
				return
			}

			ip := ClientIP(r)
			if !rl.Allow(scope, ip, limit) {
				slog.Warn("rate limit exceeded",
					"ip", ip,
					"limit_type", scope,
					"limit", limit,
					"path", r.URL.Path,
				)
				metrics.RateLimitRejectionsTotal.WithLabelValues(scope).Inc()

				w.Header().Set("Retry-After", "3600")
				writeJSONError(w, http.StatusTooManyRequests, "Rate limit exceeded. Please try again later.", "RATE_LIMIT_EXCEEDED")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
