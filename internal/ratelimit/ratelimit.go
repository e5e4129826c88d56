// Package ratelimit bounds per-sender message volume and room size before
// any backend call is made.
package ratelimit

import "sync"

// Decision is the outcome of a rate limit check.
type Decision int

const (
	// Allow lets the message through.
	Allow Decision = iota
	// BlockSilent drops the message with no reply. Used for oversized
	// rooms to avoid spam amplification.
	BlockSilent
	// BlockNotify drops the message and owes the sender a notice.
	BlockNotify
)

// Limiter holds the process-wide per-sender counters. Counters are never
// persisted; a restart resets them. Zero limits mean unbounded.
type Limiter struct {
	mu           sync.Mutex
	counts       map[string]uint64
	messageLimit uint64
	roomSize     int
}

// New creates a limiter with the given per-sender message limit and room
// size limit. Zero disables the respective limit.
func New(messageLimit uint64, roomSizeLimit int) *Limiter {
	return &Limiter{
		counts:       make(map[string]uint64),
		messageLimit: messageLimit,
		roomSize:     roomSizeLimit,
	}
}

// MessageLimit returns the configured per-sender limit.
func (l *Limiter) MessageLimit() uint64 {
	return l.messageLimit
}

// Check gates one inbound message. The room size gate runs first and blocks
// silently without touching the sender's counter; only unblocked messages
// are counted. Once a sender is over the message limit, every further
// message yields a BlockNotify.
func (l *Limiter) Check(roomSize int, sender string) Decision {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.roomSize > 0 && roomSize > l.roomSize {
		return BlockSilent
	}
	if l.messageLimit > 0 && l.counts[sender] >= l.messageLimit {
		return BlockNotify
	}
	l.counts[sender]++
	return Allow
}

// Count returns the sender's current message count.
func (l *Limiter) Count(sender string) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.counts[sender]
}
