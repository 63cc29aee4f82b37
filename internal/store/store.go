// ABOUTME: Data types and sentinel errors for conversation state
// ABOUTME: Defines Conversation, Message, Source and the limits they carry

package store

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist.
// Callers racing against a delete treat it as "navigated away", not a failure.
var ErrNotFound = errors.New("not found")

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

const (
	// MaxMessageLen is the maximum message length in code points.
	MaxMessageLen = 4000

	// DefaultTitle is used until a conversation gets its first user message,
	// and as the fallback when that message is blank.
	DefaultTitle = "New Chat"

	// maxTitleLen bounds titles derived from the first user message.
	maxTitleLen = 50
)

// Source is a retrieved citation attached to an assistant message.
type Source struct {
	Content string  `json:"content"`
	Source  string  `json:"source"`
	Score   float64 `json:"score"`
}

// Message is a single conversation turn. Immutable once created, except the
// streaming placeholder, whose content/sources/flag are finalized exactly
// once via UpdateMessage.
type Message struct {
	ID          string    `json:"id"`
	Content     string    `json:"content"`
	Role        string    `json:"role"`
	Timestamp   time.Time `json:"timestamp"`
	IsStreaming bool      `json:"is_streaming,omitempty"`
	Sources     []Source  `json:"sources,omitempty"`
}

// Conversation is a titled, ordered message history.
// Invariants: Messages is chronological and append-only (the in-flight
// placeholder is patched in place, never reordered); UpdatedAt >= CreatedAt
// and is refreshed on every append.
type Conversation struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// MessagePatch finalizes a streaming placeholder. Nil fields are left as-is.
type MessagePatch struct {
	Content     *string
	Sources     []Source
	IsStreaming *bool
}
