package policy

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

const (
	freshnessWindow = 5 * time.Minute
	maxSeenIDs      = 10000
)

var (
	ErrUnauthorizedChat = errors.New("unauthorized chat")
	ErrStale            = errors.New("stale update")
	ErrDuplicate        = errors.New("duplicate update")
)

// Policy decides whether an inbound update should reach command processing.
// It filters by an optional chat allowlist, drops updates older than the
// freshness window and drops update IDs it has already seen, which covers
// platform redeliveries.
type Policy struct {
	mu      sync.Mutex
	allowed map[int64]bool
	seen    map[int64]struct{}
	ring    []int64
	next    int
	now     func() time.Time
}

// New creates a Policy. An empty chatIDs list allows every chat.
func New(chatIDs []int64) *Policy {
	var allowed map[int64]bool
	if len(chatIDs) > 0 {
		allowed = make(map[int64]bool, len(chatIDs))
		for _, id := range chatIDs {
			allowed[id] = true
		}
	}
	return &Policy{
		allowed: allowed,
		seen:    make(map[int64]struct{}),
		ring:    make([]int64, 0, maxSeenIDs),
		now:     time.Now,
	}
}

// Authorize returns nil when the update should be processed and records its ID.
func (p *Policy) Authorize(chatID, updateID int64, sent time.Time) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.allowed != nil && !p.allowed[chatID] {
		return fmt.Errorf("%w: %d", ErrUnauthorizedChat, chatID)
	}

	if age := p.now().Sub(sent); age > freshnessWindow {
		return fmt.Errorf("%w: %v old", ErrStale, age.Truncate(time.Second))
	}

	if _, ok := p.seen[updateID]; ok {
		return fmt.Errorf("%w: %d", ErrDuplicate, updateID)
	}
	p.remember(updateID)
	return nil
}

// remember adds id, evicting the oldest remembered ID once the ring is full.
func (p *Policy) remember(id int64) {
	if len(p.ring) < maxSeenIDs {
		p.ring = append(p.ring, id)
	} else {
		delete(p.seen, p.ring[p.next])
		p.ring[p.next] = id
		p.next = (p.next + 1) % maxSeenIDs
	}
	p.seen[id] = struct{}{}
}
