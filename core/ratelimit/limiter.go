package ratelimit

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

var ErrLimited = errors.New("rate limited")

// Limiter caps how many events each chat may produce within a sliding window.
type Limiter struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	events map[int64][]time.Time
	now    func() time.Time
}

// New allows limit events per chat in any window-long interval.
func New(limit int, window time.Duration) *Limiter {
	return &Limiter{
		limit:  limit,
		window: window,
		events: make(map[int64][]time.Time),
		now:    time.Now,
	}
}

// Allow records an event for chatID, or returns ErrLimited with the wait
// until the oldest event in the window expires.
func (l *Limiter) Allow(chatID int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.window)
	fresh := l.events[chatID][:0]
	for _, t := range l.events[chatID] {
		if t.After(cutoff) {
			fresh = append(fresh, t)
		}
	}

	if len(fresh) >= l.limit {
		l.events[chatID] = fresh
		wait := fresh[0].Add(l.window).Sub(now)
		return fmt.Errorf("%w, try again in %s", ErrLimited, wait.Round(time.Second))
	}

	l.events[chatID] = append(fresh, now)
	return nil
}
