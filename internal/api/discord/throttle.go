package discord

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// idleLimiter is how long an unused per-user limiter is kept.
const idleLimiter = 10 * time.Minute

// throttle is a per-user token bucket.
type throttle struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	users    map[string]*userLimiter
	now      func() time.Time
	lastScan time.Time
}

type userLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newThrottle(perSecond float64, burst int) *throttle {
	if burst < 1 {
		burst = 1
	}
	return &throttle{
		limit: rate.Limit(perSecond),
		burst: burst,
		users: make(map[string]*userLimiter),
		now:   time.Now,
	}
}

// Allow consumes a token for userID.
func (t *throttle) Allow(userID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	t.sweepLocked(now)

	u, ok := t.users[userID]
	if !ok {
		u = &userLimiter{limiter: rate.NewLimiter(t.limit, t.burst)}
		t.users[userID] = u
	}
	u.lastSeen = now
	return u.limiter.AllowN(now, 1)
}

func (t *throttle) sweepLocked(now time.Time) {
	if now.Sub(t.lastScan) < idleLimiter {
		return
	}
	t.lastScan = now
	for id, u := range t.users {
		if now.Sub(u.lastSeen) >= idleLimiter {
			delete(t.users, id)
		}
	}
}

// Len returns the number of tracked users.
func (t *throttle) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.users)
}
