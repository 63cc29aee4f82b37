// ABOUTME: Tests for HTML transcript rendering
// ABOUTME: Verifies markdown conversion, source listing and placeholder skipping

package export

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/ragchat/internal/store"
)

func sampleConversation() *store.Conversation {
	now := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	return &store.Conversation{
		ID:        "conv-1",
		Title:     "Pump failure analysis",
		CreatedAt: now,
		UpdatedAt: now,
		Messages: []store.Message{
			{ID: "m1", Role: store.RoleUser, Content: "Why did the **pump** fail?", Timestamp: now},
			{ID: "m2", Role: store.RoleAssistant, Content: "The gasket degraded.", Timestamp: now,
				Sources: []store.Source{{Content: "gasket spec", Source: "manual.pdf", Score: 0.9}}},
		},
	}
}

func TestTranscript_RendersMarkdownAndSources(t *testing.T) {
	html, err := Transcript(sampleConversation())
	require.NoError(t, err)

	s := string(html)
	assert.Contains(t, s, "<title>Pump failure analysis</title>")
	assert.Contains(t, s, "<strong>pump</strong>", "markdown is converted")
	assert.Contains(t, s, "manual.pdf")
	assert.Contains(t, s, "0.90")
}

func TestTranscript_SkipsStreamingPlaceholder(t *testing.T) {
	conv := sampleConversation()
	conv.Messages = append(conv.Messages, store.Message{
		ID: "m3", Role: store.RoleAssistant, IsStreaming: true,
	})

	html, err := Transcript(conv)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(html), `class="message"`))
}

func TestWriteTranscript(t *testing.T) {
	dir := t.TempDir()
	path, err := WriteTranscript(sampleConversation(), dir)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(path, "transcript_conv-1.html"))

	written, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(written), "Pump failure analysis")
}
