package gateway

import (
	"sync"
	"time"

	"github.com/bkohler93/match-engine/internal/shared/clock"
)

const AllowableEnqueuePeriod = time.Second

// RateLimiter rejects a second enqueue from the same user inside AllowableEnqueuePeriod.
type RateLimiter struct {
	mu       sync.Mutex
	clock    clock.Clock
	enqueues map[string]time.Time
}

func NewRateLimiter(c clock.Clock) *RateLimiter {
	return &RateLimiter{
		clock:    c,
		enqueues: make(map[string]time.Time),
	}
}

// DenyEnqueue reports whether userID enqueued inside the last AllowableEnqueuePeriod. Only
// allowed enqueues restart the period.
func (l *RateLimiter) DenyEnqueue(userID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.clock.Now()
	for id, t := range l.enqueues {
		if now.Sub(t) >= AllowableEnqueuePeriod {
			delete(l.enqueues, id)
		}
	}
	if _, ok := l.enqueues[userID]; ok {
		return true
	}
	l.enqueues[userID] = now
	return false
}
