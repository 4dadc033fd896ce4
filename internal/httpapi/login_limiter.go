package httpapi

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// loginLimiter throttles credential attempts per key (client ip, login name).
// Each key gets a token bucket; idle buckets are dropped on the next sweep.
type loginLimiter struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	idle     time.Duration
	lastScan time.Time
	entries  map[string]*limiterEntry
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// newLoginLimiter allows burst attempts per key, refilled over window.
func newLoginLimiter(burst int, window time.Duration) *loginLimiter {
	if burst <= 0 {
		burst = 10
	}
	if window <= 0 {
		window = 5 * time.Minute
	}
	return &loginLimiter{
		limit:   rate.Every(window / time.Duration(burst)),
		burst:   burst,
		idle:    window,
		entries: make(map[string]*limiterEntry),
	}
}

func (l *loginLimiter) Allow(key string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastScan) > l.idle {
		for k, e := range l.entries {
			if now.Sub(e.lastSeen) > l.idle {
				delete(l.entries, k)
			}
		}
		l.lastScan = now
	}

	e, ok := l.entries[key]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.entries[key] = e
	}
	e.lastSeen = now
	return e.limiter.AllowN(now, 1)
}
