// ABOUTME: In-memory authoritative store for conversations
// ABOUTME: Pure data operations behind one mutex; all reads return snapshots

package store

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory holds every conversation for the lifetime of the process.
// It does no I/O; the session controller is its sole writer.
type Memory struct {
	mu            sync.Mutex
	conversations map[string]*Conversation

	now func() time.Time
}

// NewMemory creates an empty store.
func NewMemory() *Memory {
	return &Memory{
		conversations: make(map[string]*Conversation),
		now:           time.Now,
	}
}

// Create adds a new empty conversation and returns a snapshot of it.
func (s *Memory) Create() *Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	conv := &Conversation{
		ID:        uuid.New().String(),
		Title:     DefaultTitle,
		Messages:  []Message{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.conversations[conv.ID] = conv
	return snapshot(conv)
}

// Put inserts or replaces a fully-formed conversation. Used when importing
// a server-side history; the send path never goes through here.
func (s *Memory) Put(conv Conversation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversations[conv.ID] = snapshot(&conv)
}

// Get returns a snapshot of the conversation, or ErrNotFound.
func (s *Memory) Get(id string) (*Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[id]
	if !ok {
		return nil, ErrNotFound
	}
	return snapshot(conv), nil
}

// List returns snapshots of every conversation, most recently updated first.
func (s *Memory) List() []*Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*Conversation, 0, len(s.conversations))
	for _, conv := range s.conversations {
		out = append(out, snapshot(conv))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// MostRecentID returns the id of the most recently updated conversation,
// or false when the store is empty. Used to re-derive the active
// conversation after a delete.
func (s *Memory) MostRecentID() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var best *Conversation
	for _, conv := range s.conversations {
		if best == nil || conv.UpdatedAt.After(best.UpdatedAt) {
			best = conv
		}
	}
	if best == nil {
		return "", false
	}
	return best.ID, true
}

// Len returns the number of conversations.
func (s *Memory) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conversations)
}

// AppendMessage appends one or more messages and refreshes UpdatedAt. All
// messages land under a single lock hold, so a user message and its pending
// placeholder become visible together. The first user message also sets the
// conversation title. Returns ErrNotFound if the conversation was deleted in
// the meantime.
func (s *Memory) AppendMessage(conversationID string, msgs ...Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[conversationID]
	if !ok {
		return ErrNotFound
	}

	for _, msg := range msgs {
		if len(conv.Messages) == 0 && msg.Role == RoleUser {
			conv.Title = DeriveTitle(msg.Content)
		}
		conv.Messages = append(conv.Messages, cloneMessage(msg))
	}
	conv.UpdatedAt = s.now()
	return nil
}

// UpdateMessage applies a patch to a message in place. It exists to finalize
// the streaming placeholder; ErrNotFound means the conversation (or the
// message) is gone, which callers absorb silently.
func (s *Memory) UpdateMessage(conversationID, messageID string, patch MessagePatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[conversationID]
	if !ok {
		return ErrNotFound
	}
	for i := range conv.Messages {
		if conv.Messages[i].ID != messageID {
			continue
		}
		if patch.Content != nil {
			conv.Messages[i].Content = *patch.Content
		}
		if patch.Sources != nil {
			conv.Messages[i].Sources = append([]Source(nil), patch.Sources...)
		}
		if patch.IsStreaming != nil {
			conv.Messages[i].IsStreaming = *patch.IsStreaming
		}
		return nil
	}
	return ErrNotFound
}

// Delete removes a conversation. Returns ErrNotFound if it never existed
// or was already removed.
func (s *Memory) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.conversations[id]; !ok {
		return ErrNotFound
	}
	delete(s.conversations, id)
	return nil
}

// DeriveTitle builds a conversation title from the first user message:
// trimmed, truncated to a bounded length, never empty.
func DeriveTitle(content string) string {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return DefaultTitle
	}
	runes := []rune(trimmed)
	if len(runes) <= maxTitleLen {
		return trimmed
	}
	return strings.TrimSpace(string(runes[:maxTitleLen-3])) + "..."
}

// snapshot deep-copies a conversation so callers never alias internal state.
func snapshot(conv *Conversation) *Conversation {
	out := *conv
	out.Messages = make([]Message, len(conv.Messages))
	for i := range conv.Messages {
		out.Messages[i] = cloneMessage(conv.Messages[i])
	}
	return &out
}

func cloneMessage(msg Message) Message {
	if msg.Sources != nil {
		msg.Sources = append([]Source(nil), msg.Sources...)
	}
	return msg
}
