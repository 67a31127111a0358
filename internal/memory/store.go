// Package memory provides the in-process conversation store. Each
// conversation starts with the assistant greeting and only grows by
// complete user/assistant exchanges.
package memory

import (
	"errors"
	"sync"
	"time"
)

// Roles stored in a conversation.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one stored message. Image bytes are never retained; HadImage
// records that the user attached one.
type Turn struct {
	Role     string    `json:"role"`
	Text     string    `json:"text"`
	HadImage bool      `json:"had_image,omitempty"`
	At       time.Time `json:"at"`
}

// Conversation holds the state of a single conversation.
type Conversation struct {
	ID        string    `json:"id"`
	Turns     []Turn    `json:"turns"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (c *Conversation) copy() *Conversation {
	cp := *c
	cp.Turns = make([]Turn, len(c.Turns))
	copy(cp.Turns, c.Turns)
	return &cp
}

// ErrBadExchange is returned when AppendExchange gets turns with the
// wrong roles.
var ErrBadExchange = errors.New("exchange must be a user turn followed by an assistant turn")

// Store manages conversations in memory. It is safe for concurrent
// use; callers serialize turns per conversation.
type Store struct {
	mu            sync.RWMutex
	conversations map[string]*Conversation
	greeting      string
	now           func() time.Time
}

// NewStore returns a store whose conversations open with greeting.
// An empty greeting starts conversations empty.
func NewStore(greeting string) *Store {
	return &Store{
		conversations: make(map[string]*Conversation),
		greeting:      greeting,
		now:           time.Now,
	}
}

func (s *Store) seed(id string) *Conversation {
	now := s.now()
	conv := &Conversation{ID: id, CreatedAt: now, UpdatedAt: now}
	if s.greeting != "" {
		conv.Turns = []Turn{{Role: RoleAssistant, Text: s.greeting, At: now}}
	}
	return conv
}

// History returns a snapshot of the conversation's turns. An unknown
// id yields the seeded opening without creating the conversation.
func (s *Store) History(id string) []Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conv, ok := s.conversations[id]
	if !ok {
		conv = s.seed(id)
	}
	out := make([]Turn, len(conv.Turns))
	copy(out, conv.Turns)
	return out
}

// Get returns a copy of the conversation, or nil if it has no
// recorded exchanges.
func (s *Store) Get(id string) *Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conv, ok := s.conversations[id]
	if !ok {
		return nil
	}
	return conv.copy()
}

// AppendExchange records a completed user turn and its reply
// atomically: both are appended or neither is.
func (s *Store) AppendExchange(id string, user, assistant Turn) error {
	if user.Role != RoleUser || assistant.Role != RoleAssistant {
		return ErrBadExchange
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[id]
	if !ok {
		conv = s.seed(id)
		s.conversations[id] = conv
	}

	now := s.now()
	if user.At.IsZero() {
		user.At = now
	}
	if assistant.At.IsZero() {
		assistant.At = now
	}
	conv.Turns = append(conv.Turns, user, assistant)
	conv.UpdatedAt = now
	return nil
}

// Delete forgets a conversation. The next turn starts from the
// greeting again.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conversations, id)
}

// Stats returns store statistics.
func (s *Store) Stats() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	turns := 0
	for _, c := range s.conversations {
		turns += len(c.Turns)
	}
	return map[string]any{
		"conversations": len(s.conversations),
		"turns":         turns,
	}
}
