// Package memory keeps a bounded, per-chat rolling history of conversation
// turns, plus the index of message IDs this bot has sent (so replies to the
// bot can be recognized). All state lives in process memory and ages out.
package memory

import (
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	// MaxTurnsPerChat bounds each chat's rolling history.
	MaxTurnsPerChat = 6
	// TurnTTL is how long a turn stays relevant before the sweep drops it.
	TurnTTL = 30 * time.Minute
)

// Role tags who produced a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one entry in a chat's history.
type Turn struct {
	Role      Role
	Content   string
	CreatedAt time.Time
	MessageID string // set only for assistant turns actually delivered
}

// Store owns the per-chat histories and the bot-message index.
// Mutations happen only through its methods; reads and the periodic sweep
// may run concurrently.
type Store struct {
	mu        sync.RWMutex
	chats     map[string][]Turn
	botSent   map[string]struct{}
	ttl       time.Duration
	maxTurns  int
	log       *logrus.Entry
	now       func() time.Time
}

// New creates an empty conversation memory.
func New(log *logrus.Entry) *Store {
	return &Store{
		chats:    make(map[string][]Turn),
		botSent:  make(map[string]struct{}),
		ttl:      TurnTTL,
		maxTurns: MaxTurnsPerChat,
		log:      log,
		now:      time.Now,
	}
}

func validTurn(role Role, content string) bool {
	if role != RoleUser && role != RoleAssistant {
		return false
	}
	return strings.TrimSpace(content) != ""
}

// AddTurn appends a turn to a chat's history, evicting the oldest entry when
// the bound is exceeded. Invalid turns (blank content, unknown role) are
// rejected without mutating anything: a chat bot must never crash or store
// garbage because of malformed input.
func (s *Store) AddTurn(chatID string, role Role, content string, messageID string) bool {
	if !validTurn(role, content) {
		s.log.WithFields(logrus.Fields{"chat": chatID, "role": role}).
			Debug("rejected invalid turn")
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	turns := append(s.chats[chatID], Turn{
		Role:      role,
		Content:   strings.TrimSpace(content),
		CreatedAt: s.now(),
		MessageID: messageID,
	})
	if len(turns) > s.maxTurns {
		turns = turns[len(turns)-s.maxTurns:]
	}
	s.chats[chatID] = turns

	if role == RoleAssistant && messageID != "" {
		s.botSent[messageID] = struct{}{}
	}
	return true
}

// History returns the chat's turns in chronological order. Unknown chats get
// an empty slice. Turns that fail validation are filtered out at read time as
// well; insert-time validation is the real guard, this is the backstop.
func (s *Store) History(chatID string) []Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()

	turns := s.chats[chatID]
	out := make([]Turn, 0, len(turns))
	for _, t := range turns {
		if validTurn(t.Role, t.Content) {
			out = append(out, t)
		}
	}
	return out
}

// IsOwnMessage reports whether this bot sent the given message.
func (s *Store) IsOwnMessage(messageID string) bool {
	if messageID == "" {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.botSent[messageID]
	return ok
}

// SweepExpired drops turns older than the TTL, removes chats whose history
// emptied, and prunes bot-message index entries no longer referenced by any
// surviving turn. Safe to call repeatedly; a second sweep with no elapsed
// time is a no-op.
func (s *Store) SweepExpired() {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-s.ttl)
	referenced := make(map[string]struct{})
	removedChats := 0

	for chatID, turns := range s.chats {
		kept := turns[:0]
		for _, t := range turns {
			if t.CreatedAt.After(cutoff) {
				kept = append(kept, t)
				if t.MessageID != "" {
					referenced[t.MessageID] = struct{}{}
				}
			}
		}
		if len(kept) == 0 {
			delete(s.chats, chatID)
			removedChats++
		} else {
			s.chats[chatID] = kept
		}
	}

	for id := range s.botSent {
		if _, ok := referenced[id]; !ok {
			delete(s.botSent, id)
		}
	}

	if removedChats > 0 {
		s.log.WithField("chats_removed", removedChats).Debug("memory sweep")
	}
}

// Stats returns counters for the status surface.
func (s *Store) Stats() map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := 0
	for _, turns := range s.chats {
		total += len(turns)
	}
	return map[string]int{
		"active_chats": len(s.chats),
		"total_turns":  total,
		"indexed_ids":  len(s.botSent),
	}
}
