// ABOUTME: Tests for the remote service client
// ABOUTME: Uses httptest to verify wire shapes and error normalization

package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(srv.URL, 5*time.Second, nil)
}

func TestClient_SendMessage(t *testing.T) {
	var gotBody map[string]any
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/chat", r.URL.Path)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		json.NewEncoder(w).Encode(map[string]any{
			"response":        "It leaks because of the seal.",
			"conversation_id": "conv-1",
			"sources": []map[string]any{
				{"content": "seal spec...", "source": "manual.pdf", "score": 0.87},
			},
		})
	}))

	resp, err := c.SendMessage(context.Background(), "Why does it leak?", "conv-1")
	require.NoError(t, err)

	assert.Equal(t, "Why does it leak?", gotBody["message"])
	assert.Equal(t, "conv-1", gotBody["conversation_id"])
	assert.Equal(t, "It leaks because of the seal.", resp.Response)
	assert.Equal(t, "conv-1", resp.ConversationID)
	require.Len(t, resp.Sources, 1)
	assert.Equal(t, "manual.pdf", resp.Sources[0].Source)
	assert.InDelta(t, 0.87, resp.Sources[0].Score, 1e-9)
}

func TestClient_SendMessage_OmitsEmptyConversationID(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_, present := body["conversation_id"]
		assert.False(t, present, "empty conversation_id should be omitted")
		json.NewEncoder(w).Encode(map[string]any{"response": "ok", "conversation_id": "fresh"})
	}))

	resp, err := c.SendMessage(context.Background(), "hello", "")
	require.NoError(t, err)
	assert.Equal(t, "fresh", resp.ConversationID)
}

func TestClient_RemoteErrorDetail(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{"detail": "Error generating response: boom"})
	}))

	_, err := c.SendMessage(context.Background(), "hi", "")
	var remote *RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, http.StatusInternalServerError, remote.Status)
	assert.Equal(t, "Error generating response: boom", remote.Detail)
}

func TestClient_RemoteErrorUnparsableBody(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("<html>bad gateway</html>"))
	}))

	_, err := c.SendMessage(context.Background(), "hi", "")
	var remote *RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, http.StatusBadGateway, remote.Status)
	assert.Equal(t, "Unknown error", remote.Detail)
}

func TestClient_ListDocuments(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/documents", r.URL.Path)
		w.Write([]byte(`{"documents":[
			{"filename":"notes.pdf","upload_date":"2026-08-01T10:00:00","status":"processed","chunks_count":12},
			{"filename":"deck.pptx","upload_date":"2026-08-02T11:00:00","status":"processing"}
		]}`))
	}))

	docs, err := c.ListDocuments(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "notes.pdf", docs[0].Filename)
	require.NotNil(t, docs[0].ChunksCount)
	assert.Equal(t, 12, *docs[0].ChunksCount)
	assert.Nil(t, docs[1].ChunksCount)
}

func TestClient_UploadDocuments(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/upload-documents", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		files := r.MultipartForm.File["files"]
		require.Len(t, files, 1)
		assert.Equal(t, "notes.pdf", files[0].Filename)

		json.NewEncoder(w).Encode(map[string]any{
			"message": "Documents processed",
			"files":   []map[string]any{{"file_id": "f1", "filename": "notes.pdf", "chunks": 12}},
		})
	}))

	ack, err := c.UploadDocuments(context.Background(), []Upload{
		{Filename: "notes.pdf", ContentType: "application/pdf", Reader: strings.NewReader("%PDF-1.4")},
	})
	require.NoError(t, err)
	require.Len(t, ack.Files, 1)
	assert.Equal(t, "f1", ack.Files[0].FileID)
}

func TestClient_DeleteDocument(t *testing.T) {
	var gotPath, gotMethod string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath, gotMethod = r.URL.Path, r.Method
		json.NewEncoder(w).Encode(map[string]string{"message": "Document deleted successfully"})
	}))

	require.NoError(t, c.DeleteDocument(context.Background(), "f1"))
	assert.Equal(t, "/documents/f1", gotPath)
	assert.Equal(t, http.MethodDelete, gotMethod)
}

func TestClient_GetConversation(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/conversations/conv-1", r.URL.Path)
		w.Write([]byte(`{"conversation_id":"conv-1","messages":[
			{"role":"user","content":"why","timestamp":"2026-08-01T10:00:00"},
			{"role":"assistant","content":"because","timestamp":"2026-08-01T10:00:05",
			 "sources":[{"content":"snip","source":"manual.pdf","score":0.5}]}
		]}`))
	}))

	payload, err := c.GetConversation(context.Background(), "conv-1")
	require.NoError(t, err)
	require.Len(t, payload.Messages, 2)
	assert.Equal(t, "user", payload.Messages[0].Role)
	assert.Equal(t, "assistant", payload.Messages[1].Role)
	require.Len(t, payload.Messages[1].Sources, 1)
}

func TestClient_GenerateReport(t *testing.T) {
	pdf := []byte("%PDF-1.4 report bytes")
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/generate-report", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "conv-1", body["conversation_id"])
		assert.Equal(t, "", body["message"])
		w.Header().Set("Content-Type", "application/pdf")
		w.Write(pdf)
	}))

	blob, err := c.GenerateReport(context.Background(), "conv-1")
	require.NoError(t, err)
	assert.Equal(t, pdf, blob)
}
