// Package ratelimit gates how often a single user can evoke the bot. Replies
// to an ongoing exchange get a shorter window than fresh evocations so
// back-and-forth feels snappier.
package ratelimit

import (
	"sync"
	"time"
)

const (
	// EvocationWindow is the cooldown between fresh addresses from one user.
	EvocationWindow = 3000 * time.Millisecond
	// ReplyWindow is the cooldown between replies to the bot from one user.
	ReplyWindow = 1500 * time.Millisecond
)

type userState struct {
	lastEvocation time.Time
	lastReply     time.Time
}

// Limiter tracks the two independent per-user cooldown windows.
type Limiter struct {
	mu    sync.Mutex
	users map[string]*userState
	now   func() time.Time
}

// New creates a limiter with the standard windows.
func New() *Limiter {
	return &Limiter{
		users: make(map[string]*userState),
		now:   time.Now,
	}
}

// Limited reports whether the user is inside the relevant window. When the
// user is NOT limited the action timestamp is recorded in the same critical
// section, so check-and-set is atomic from the caller's perspective; a
// limited check never touches state.
func (l *Limiter) Limited(userID string, reply bool) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	state, ok := l.users[userID]
	if !ok {
		state = &userState{}
		l.users[userID] = state
	}

	now := l.now()
	window := EvocationWindow
	last := state.lastEvocation
	if reply {
		window = ReplyWindow
		last = state.lastReply
	}

	if now.Sub(last) < window {
		return true
	}

	if reply {
		state.lastReply = now
	} else {
		state.lastEvocation = now
	}
	return false
}

// SweepStale drops users who have been quiet longer than maxAge, bounding
// map growth over long uptimes.
func (l *Limiter) SweepStale(maxAge time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-maxAge)
	for id, state := range l.users {
		if state.lastEvocation.Before(cutoff) && state.lastReply.Before(cutoff) {
			delete(l.users, id)
		}
	}
}
