// ABOUTME: Session controller orchestrating conversations against the remote service
// ABOUTME: Sole writer of conversation state; reconciles in-flight sends exactly once

package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/2389/ragchat/internal/api"
	"github.com/2389/ragchat/internal/store"
)

// ErrBusy rejects a send while another one is outstanding. Prior state is
// untouched; the caller may retry once the first send settles.
var ErrBusy = errors.New("a send is already in progress")

// failedPlaceholderContent resolves the thinking indicator when a send
// fails, so it never spins forever. The optimistic user message stays.
const failedPlaceholderContent = "Sorry, this message failed to send. Please try again."

// ValidationError rejects input before any I/O happens.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid message: " + e.Reason
}

// Service is what the controller needs from the remote client.
type Service interface {
	SendMessage(ctx context.Context, message, conversationID string) (*api.ChatResponse, error)
	GetConversation(ctx context.Context, id string) (*api.ConversationPayload, error)
	GenerateReport(ctx context.Context, conversationID string) ([]byte, error)
}

// Controller owns the process-wide session state: which conversation is
// active and whether a send is outstanding. Every state-changing user intent
// flows through here, which makes it the sole writer of the store and keeps
// optimistic updates and their reconciliation from interleaving.
//
// Serialization choice: one outstanding send system-wide, not per
// conversation. Sends against different conversations do not overlap.
type Controller struct {
	store       *store.Memory
	client      Service
	broadcaster *Broadcaster
	logger      *slog.Logger

	mu            sync.Mutex
	activeID      string
	pendingSendID string
	lastError     string
}

// New creates a controller with an empty active selection.
// Pass nil logger for default.
func New(st *store.Memory, client Service, broadcaster *Broadcaster, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	if broadcaster == nil {
		broadcaster = NewBroadcaster(logger)
	}
	return &Controller{
		store:       st,
		client:      client,
		broadcaster: broadcaster,
		logger:      logger.With("component", "session"),
	}
}

// Subscribe registers an observer for session events.
func (c *Controller) Subscribe(ctx context.Context) (<-chan Event, string) {
	return c.broadcaster.Subscribe(ctx)
}

// StartNewChat creates an empty conversation, makes it active and clears the
// error banner. It never fails and does not touch an outstanding send.
func (c *Controller) StartNewChat() *store.Conversation {
	conv := c.store.Create()

	c.mu.Lock()
	c.activeID = conv.ID
	c.lastError = ""
	c.mu.Unlock()

	c.logger.Info("new chat started", "conversation_id", conv.ID)
	c.broadcaster.Publish(Event{Type: EventConversationCreated, ConversationID: conv.ID})
	c.broadcaster.Publish(Event{Type: EventActiveChanged, ConversationID: conv.ID})
	return conv
}

// SelectConversation makes id active if it exists; unknown ids are a no-op.
// An outstanding send for a different conversation keeps running and
// reconciles silently in the background.
func (c *Controller) SelectConversation(id string) {
	if _, err := c.store.Get(id); err != nil {
		return
	}

	c.mu.Lock()
	changed := c.activeID != id
	c.activeID = id
	c.mu.Unlock()

	if changed {
		c.broadcaster.Publish(Event{Type: EventActiveChanged, ConversationID: id})
	}
}

// DeleteConversation removes a conversation. Deleting the active one
// re-selects the most recently updated survivor (or none). An outstanding
// send targeting the deleted conversation is left to complete; its
// reconciliation degrades to a no-op.
func (c *Controller) DeleteConversation(id string) {
	if err := c.store.Delete(id); err != nil {
		return
	}

	var newActive string
	var reselected bool
	c.mu.Lock()
	if c.activeID == id {
		if next, ok := c.store.MostRecentID(); ok {
			c.activeID = next
		} else {
			c.activeID = ""
		}
		newActive = c.activeID
		reselected = true
	}
	c.mu.Unlock()

	c.logger.Info("conversation deleted", "conversation_id", id)
	c.broadcaster.Publish(Event{Type: EventConversationDeleted, ConversationID: id})
	if reselected {
		c.broadcaster.Publish(Event{Type: EventActiveChanged, ConversationID: newActive})
	}
}

// SendMessage runs the send protocol: validate, ensure an active
// conversation, reject concurrent sends, append the optimistic user message
// and thinking placeholder together, call the service, and reconcile the
// placeholder exactly once. The user message survives failure; it is never
// rolled back.
func (c *Controller) SendMessage(ctx context.Context, text string) error {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return &ValidationError{Reason: "message is empty"}
	}
	if utf8.RuneCountInString(trimmed) > store.MaxMessageLen {
		return &ValidationError{Reason: fmt.Sprintf("message exceeds %d characters", store.MaxMessageLen)}
	}

	c.mu.Lock()
	if c.pendingSendID != "" {
		c.mu.Unlock()
		return ErrBusy
	}

	var created bool
	cid := c.activeID
	if cid == "" {
		conv := c.store.Create()
		c.activeID = conv.ID
		c.lastError = ""
		cid = conv.ID
		created = true
	}

	now := time.Now()
	userMsg := store.Message{
		ID:        uuid.New().String(),
		Content:   trimmed,
		Role:      store.RoleUser,
		Timestamp: now,
	}
	placeholder := store.Message{
		ID:          uuid.New().String(),
		Role:        store.RoleAssistant,
		Timestamp:   now,
		IsStreaming: true,
	}
	if err := c.store.AppendMessage(cid, userMsg, placeholder); err != nil {
		// The active conversation vanished between selection and append.
		c.activeID = ""
		c.mu.Unlock()
		return fmt.Errorf("appending message: %w", err)
	}
	c.pendingSendID = cid
	c.mu.Unlock()

	if created {
		c.broadcaster.Publish(Event{Type: EventConversationCreated, ConversationID: cid})
		c.broadcaster.Publish(Event{Type: EventActiveChanged, ConversationID: cid})
	}
	c.broadcaster.Publish(Event{Type: EventMessagesChanged, ConversationID: cid})
	c.logger.Debug("send started", "conversation_id", cid, "message_id", userMsg.ID)

	resp, err := c.client.SendMessage(ctx, trimmed, cid)
	return c.settleSend(cid, placeholder.ID, resp, err)
}

// settleSend reconciles the placeholder and clears the pending flag. It runs
// exactly once per send, on every path: success, failure, or conversation
// deleted mid-flight (in which case the result is dropped silently).
func (c *Controller) settleSend(cid, placeholderID string, resp *api.ChatResponse, sendErr error) error {
	done := false
	patch := store.MessagePatch{IsStreaming: &done}
	if sendErr == nil {
		patch.Content = &resp.Response
		patch.Sources = resp.Sources
		if patch.Sources == nil {
			patch.Sources = []store.Source{}
		}
	} else {
		failed := failedPlaceholderContent
		patch.Content = &failed
	}
	updateErr := c.store.UpdateMessage(cid, placeholderID, patch)

	c.mu.Lock()
	c.pendingSendID = ""
	switch {
	case updateErr != nil:
		// Conversation deleted while the call was in flight. A legitimate
		// race, not a failure: drop the result, surface nothing.
	case sendErr != nil:
		c.lastError = errorBanner(sendErr)
	default:
		c.lastError = ""
	}
	c.mu.Unlock()

	if updateErr != nil {
		c.logger.Debug("send settled against deleted conversation",
			"conversation_id", cid)
		c.broadcaster.Publish(Event{Type: EventSendSettled, ConversationID: cid})
		return nil
	}

	c.broadcaster.Publish(Event{Type: EventMessagesChanged, ConversationID: cid})
	c.broadcaster.Publish(Event{Type: EventSendSettled, ConversationID: cid})

	if sendErr != nil {
		c.logger.Warn("send failed", "conversation_id", cid, "error", sendErr)
		return fmt.Errorf("sending message: %w", sendErr)
	}
	c.logger.Debug("send settled", "conversation_id", cid)
	return nil
}

// ImportConversation fetches a server-side history and materializes it as a
// local conversation, preserving message order and roles. The imported
// conversation becomes active.
func (c *Controller) ImportConversation(ctx context.Context, id string) (*store.Conversation, error) {
	payload, err := c.client.GetConversation(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("importing conversation: %w", err)
	}

	now := time.Now()
	conv := store.Conversation{
		ID:        payload.ConversationID,
		Title:     store.DefaultTitle,
		CreatedAt: now,
		UpdatedAt: now,
	}
	for _, m := range payload.Messages {
		ts := parseTimestamp(m.Timestamp, now)
		if conv.Title == store.DefaultTitle && m.Role == store.RoleUser {
			conv.Title = store.DeriveTitle(m.Content)
		}
		conv.Messages = append(conv.Messages, store.Message{
			ID:        uuid.New().String(),
			Content:   m.Content,
			Role:      m.Role,
			Timestamp: ts,
			Sources:   m.Sources,
		})
	}
	if len(conv.Messages) > 0 {
		conv.CreatedAt = conv.Messages[0].Timestamp
	}
	c.store.Put(conv)

	c.mu.Lock()
	c.activeID = conv.ID
	c.mu.Unlock()

	c.logger.Info("conversation imported",
		"conversation_id", conv.ID,
		"messages", len(conv.Messages))
	c.broadcaster.Publish(Event{Type: EventConversationCreated, ConversationID: conv.ID})
	c.broadcaster.Publish(Event{Type: EventActiveChanged, ConversationID: conv.ID})

	imported, err := c.store.Get(conv.ID)
	if err != nil {
		return nil, err
	}
	return imported, nil
}

// SaveReport asks the service for a PDF report of the active conversation
// and writes it under dir. Returns the written path.
func (c *Controller) SaveReport(ctx context.Context, dir string) (string, error) {
	c.mu.Lock()
	cid := c.activeID
	c.mu.Unlock()
	if cid == "" {
		return "", &ValidationError{Reason: "no active conversation"}
	}

	blob, err := c.client.GenerateReport(ctx, cid)
	if err != nil {
		return "", fmt.Errorf("generating report: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("rca_report_%s.pdf", cid))
	if err := os.WriteFile(path, blob, 0o644); err != nil {
		return "", fmt.Errorf("writing report: %w", err)
	}
	c.logger.Info("report saved", "path", path)
	return path, nil
}

// Conversations returns store snapshots, most recently updated first.
func (c *Controller) Conversations() []*store.Conversation {
	return c.store.List()
}

// Active returns the active conversation snapshot, or false when none is
// selected.
func (c *Controller) Active() (*store.Conversation, bool) {
	c.mu.Lock()
	cid := c.activeID
	c.mu.Unlock()
	if cid == "" {
		return nil, false
	}
	conv, err := c.store.Get(cid)
	if err != nil {
		return nil, false
	}
	return conv, true
}

// ActiveID returns the active conversation id ("" for none).
func (c *Controller) ActiveID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.activeID
}

// PendingSendConversationID returns the conversation with an outstanding
// send ("" for none).
func (c *Controller) PendingSendConversationID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pendingSendID
}

// LastError returns the current error banner ("" when clear).
func (c *Controller) LastError() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastError
}

// errorBanner reduces a send failure to the user-visible transient message.
func errorBanner(err error) string {
	var remote *api.RemoteError
	if errors.As(err, &remote) {
		return remote.Detail
	}
	return err.Error()
}

// parseTimestamp handles RFC 3339 and the zoneless ISO form; fallback keeps
// imported messages ordered even when the server sends something odd.
func parseTimestamp(s string, fallback time.Time) time.Time {
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05.999999999", "2006-01-02T15:04:05"} {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts
		}
	}
	return fallback
}
