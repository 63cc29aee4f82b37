// ABOUTME: Tests for the in-memory conversation store
// ABOUTME: Covers title derivation, snapshot isolation, ordering and not-found races

package store

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_CreateStartsEmpty(t *testing.T) {
	s := NewMemory()
	conv := s.Create()

	assert.NotEmpty(t, conv.ID)
	assert.Equal(t, DefaultTitle, conv.Title)
	assert.Empty(t, conv.Messages)
	assert.False(t, conv.UpdatedAt.Before(conv.CreatedAt))
	assert.Equal(t, 1, s.Len())
}

func TestMemory_AppendDerivesTitleFromFirstUserMessage(t *testing.T) {
	s := NewMemory()
	conv := s.Create()

	err := s.AppendMessage(conv.ID, Message{
		ID:        "m1",
		Role:      RoleUser,
		Content:   "Explain quantum tunneling in simple terms",
		Timestamp: time.Now(),
	})
	require.NoError(t, err)

	got, err := s.Get(conv.ID)
	require.NoError(t, err)
	assert.Equal(t, "Explain quantum tunneling in simple terms", got.Title)
}

func TestMemory_LongFirstMessageTruncatesTitle(t *testing.T) {
	s := NewMemory()
	conv := s.Create()

	long := strings.Repeat("root cause ", 20)
	require.NoError(t, s.AppendMessage(conv.ID, Message{ID: "m1", Role: RoleUser, Content: long}))

	got, err := s.Get(conv.ID)
	require.NoError(t, err)
	assert.LessOrEqual(t, len([]rune(got.Title)), maxTitleLen)
	assert.True(t, strings.HasSuffix(got.Title, "..."))
}

func TestDeriveTitle_BlankFallsBack(t *testing.T) {
	assert.Equal(t, DefaultTitle, DeriveTitle("   \n\t"))
	assert.Equal(t, DefaultTitle, DeriveTitle(""))
}

func TestMemory_AssistantFirstMessageKeepsDefaultTitle(t *testing.T) {
	s := NewMemory()
	conv := s.Create()

	require.NoError(t, s.AppendMessage(conv.ID, Message{ID: "m1", Role: RoleAssistant, Content: "Hello"}))

	got, err := s.Get(conv.ID)
	require.NoError(t, err)
	assert.Equal(t, DefaultTitle, got.Title)
}

func TestMemory_AppendRefreshesUpdatedAt(t *testing.T) {
	s := NewMemory()
	conv := s.Create()

	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	s.now = func() time.Time { return base }
	require.NoError(t, s.AppendMessage(conv.ID, Message{ID: "m1", Role: RoleUser, Content: "hi"}))

	got, err := s.Get(conv.ID)
	require.NoError(t, err)
	assert.True(t, got.UpdatedAt.Equal(base))
}

func TestMemory_AppendToDeletedConversation(t *testing.T) {
	s := NewMemory()
	conv := s.Create()
	require.NoError(t, s.Delete(conv.ID))

	err := s.AppendMessage(conv.ID, Message{ID: "m1", Role: RoleUser, Content: "hi"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemory_UpdateMessageFinalizesPlaceholder(t *testing.T) {
	s := NewMemory()
	conv := s.Create()
	require.NoError(t, s.AppendMessage(conv.ID, Message{ID: "m1", Role: RoleUser, Content: "why"}))
	require.NoError(t, s.AppendMessage(conv.ID, Message{ID: "m2", Role: RoleAssistant, IsStreaming: true}))

	content := "because"
	done := false
	err := s.UpdateMessage(conv.ID, "m2", MessagePatch{
		Content:     &content,
		Sources:     []Source{{Content: "snippet", Source: "notes.pdf", Score: 0.92}},
		IsStreaming: &done,
	})
	require.NoError(t, err)

	got, err := s.Get(conv.ID)
	require.NoError(t, err)
	require.Len(t, got.Messages, 2)
	final := got.Messages[1]
	assert.Equal(t, "because", final.Content)
	assert.False(t, final.IsStreaming)
	require.Len(t, final.Sources, 1)
	assert.Equal(t, "notes.pdf", final.Sources[0].Source)
}

func TestMemory_UpdateMessageNotFound(t *testing.T) {
	s := NewMemory()
	conv := s.Create()

	assert.ErrorIs(t, s.UpdateMessage("missing", "m1", MessagePatch{}), ErrNotFound)
	assert.ErrorIs(t, s.UpdateMessage(conv.ID, "missing", MessagePatch{}), ErrNotFound)
}

func TestMemory_ListOrdersByUpdatedAtDescending(t *testing.T) {
	s := NewMemory()
	older := s.Create()
	newer := s.Create()

	s.now = func() time.Time { return time.Now().Add(time.Hour) }
	require.NoError(t, s.AppendMessage(newer.ID, Message{ID: "m1", Role: RoleUser, Content: "bump"}))

	list := s.List()
	require.Len(t, list, 2)
	assert.Equal(t, newer.ID, list[0].ID)
	assert.Equal(t, older.ID, list[1].ID)

	id, ok := s.MostRecentID()
	require.True(t, ok)
	assert.Equal(t, newer.ID, id)
}

func TestMemory_MostRecentIDEmpty(t *testing.T) {
	s := NewMemory()
	_, ok := s.MostRecentID()
	assert.False(t, ok)
}

func TestMemory_SnapshotsDoNotAliasInternalState(t *testing.T) {
	s := NewMemory()
	conv := s.Create()
	require.NoError(t, s.AppendMessage(conv.ID, Message{ID: "m1", Role: RoleUser, Content: "hi"}))

	snap, err := s.Get(conv.ID)
	require.NoError(t, err)
	snap.Messages[0].Content = "tampered"
	snap.Title = "tampered"

	again, err := s.Get(conv.ID)
	require.NoError(t, err)
	assert.Equal(t, "hi", again.Messages[0].Content)
	assert.NotEqual(t, "tampered", again.Title)
}

func TestMemory_PutReplacesConversation(t *testing.T) {
	s := NewMemory()
	now := time.Now()
	s.Put(Conversation{
		ID:        "imported",
		Title:     "Imported",
		Messages:  []Message{{ID: "m1", Role: RoleUser, Content: "hi", Timestamp: now}},
		CreatedAt: now,
		UpdatedAt: now,
	})

	got, err := s.Get("imported")
	require.NoError(t, err)
	assert.Equal(t, "Imported", got.Title)
	require.Len(t, got.Messages, 1)
}
