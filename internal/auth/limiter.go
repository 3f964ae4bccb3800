package auth

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	limiterIdleTTL = time.Hour
	pruneThreshold = 1024
)

// EmailLimiter throttles magic-link requests per address.
type EmailLimiter struct {
	mu       sync.Mutex
	perHour  int
	limiters map[string]*limiterEntry
	now      func() time.Time
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewEmailLimiter allows perHour links per address per hour, with the whole hour usable as a burst.
// A non-positive perHour disables throttling.
func NewEmailLimiter(perHour int) *EmailLimiter {
	return &EmailLimiter{
		perHour:  perHour,
		limiters: make(map[string]*limiterEntry),
		now:      time.Now,
	}
}

func (l *EmailLimiter) Allow(email string) bool {
	if l == nil || l.perHour <= 0 {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	entry, ok := l.limiters[email]
	if !ok {
		if len(l.limiters) >= pruneThreshold {
			l.prune(now)
		}
		entry = &limiterEntry{
			limiter: rate.NewLimiter(rate.Every(time.Hour/time.Duration(l.perHour)), l.perHour),
		}
		l.limiters[email] = entry
	}
	entry.lastSeen = now
	return entry.limiter.AllowN(now, 1)
}

// prune drops idle entries; called with mu held.
func (l *EmailLimiter) prune(now time.Time) {
	for email, entry := range l.limiters {
		if now.Sub(entry.lastSeen) > limiterIdleTTL {
			delete(l.limiters, email)
		}
	}
}
