// ABOUTME: HTTP/JSON client for the remote RAG assistant service
// ABOUTME: Stateless wrapper with a uniform {detail} error contract and no retries

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/2389/ragchat/internal/store"
)

// genericDetail substitutes for error bodies that cannot be parsed.
const genericDetail = "Unknown error"

// RemoteError is a non-2xx response from the service, normalized so Detail
// is always a usable string.
type RemoteError struct {
	Status int
	Detail string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote error (status %d): %s", e.Status, e.Detail)
}

// Client wraps the remote service operations. It holds no conversation
// state: every call is independent and a failed call is one failure event.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// New creates a client for the service at baseURL. Pass nil logger for default.
func New(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		logger:  logger.With("component", "api"),
	}
}

// ChatResponse is the reply to a send-message call.
type ChatResponse struct {
	Response       string         `json:"response"`
	ConversationID string         `json:"conversation_id"`
	Sources        []store.Source `json:"sources"`
}

// chatRequest is the JSON body for POST /chat and POST /generate-report.
type chatRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id,omitempty"`
}

// SendMessage posts a user message. conversationID may be empty; the service
// assigns one and echoes it back.
func (c *Client) SendMessage(ctx context.Context, message, conversationID string) (*ChatResponse, error) {
	body, err := json.Marshal(chatRequest{Message: message, ConversationID: conversationID})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	c.logger.Debug("sending message", "conversation_id", conversationID, "bytes", len(body))
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending message: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	var out ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("parsing response: %w", err)
	}
	return &out, nil
}

// DocumentInfo is a server-side document record, as wired.
type DocumentInfo struct {
	Filename    string `json:"filename"`
	UploadDate  string `json:"upload_date"`
	Status      string `json:"status"`
	ChunksCount *int   `json:"chunks_count,omitempty"`
}

// ListDocuments returns every ingested document the service knows about.
func (c *Client) ListDocuments(ctx context.Context) ([]DocumentInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/documents", nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	var out struct {
		Documents []DocumentInfo `json:"documents"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("parsing response: %w", err)
	}
	return out.Documents, nil
}

// Upload is one file destined for the ingestion pipeline. The caller is
// responsible for file-type validation before handing it over.
type Upload struct {
	Filename    string
	ContentType string
	Reader      io.Reader
}

// UploadAck is the service's acknowledgement of an upload batch.
type UploadAck struct {
	Message string `json:"message"`
	Files   []struct {
		FileID   string `json:"file_id"`
		Filename string `json:"filename"`
		Chunks   int    `json:"chunks,omitempty"`
		Error    string `json:"error,omitempty"`
	} `json:"files"`
}

// UploadDocuments posts files as multipart form data under the "files" field.
func (c *Client) UploadDocuments(ctx context.Context, uploads []Upload) (*UploadAck, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for _, up := range uploads {
		part, err := writer.CreateFormFile("files", up.Filename)
		if err != nil {
			return nil, fmt.Errorf("building multipart body: %w", err)
		}
		if _, err := io.Copy(part, up.Reader); err != nil {
			return nil, fmt.Errorf("reading %s: %w", up.Filename, err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("finalizing multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/upload-documents", &buf)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("uploading documents: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	var ack UploadAck
	if err := json.NewDecoder(resp.Body).Decode(&ack); err != nil {
		return nil, fmt.Errorf("parsing response: %w", err)
	}
	return &ack, nil
}

// DeleteDocument removes a document from the ingestion pipeline.
func (c *Client) DeleteDocument(ctx context.Context, id string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/documents/"+id, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}
	defer resp.Body.Close()

	return checkStatus(resp)
}

// ConversationMessage is one turn in a server-side conversation payload.
type ConversationMessage struct {
	Role      string         `json:"role"`
	Content   string         `json:"content"`
	Timestamp string         `json:"timestamp"`
	Sources   []store.Source `json:"sources,omitempty"`
}

// ConversationPayload is the server-side history for one conversation.
type ConversationPayload struct {
	ConversationID string                `json:"conversation_id"`
	Messages       []ConversationMessage `json:"messages"`
}

// GetConversation fetches the server's record of a conversation.
func (c *Client) GetConversation(ctx context.Context, id string) (*ConversationPayload, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/conversations/"+id, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching conversation: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	var out ConversationPayload
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("parsing response: %w", err)
	}
	return &out, nil
}

// GenerateReport asks the service to render a conversation as a PDF and
// returns the raw blob.
func (c *Client) GenerateReport(ctx context.Context, conversationID string) ([]byte, error) {
	body, err := json.Marshal(chatRequest{Message: "", ConversationID: conversationID})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/generate-report", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("generating report: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	blob, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading report: %w", err)
	}
	return blob, nil
}

// checkStatus converts a non-2xx response into a RemoteError with a
// normalized detail string. The body is read at most once.
func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	detail := genericDetail
	var body struct {
		Detail string `json:"detail"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err == nil && body.Detail != "" {
		detail = body.Detail
	}
	return &RemoteError{Status: resp.StatusCode, Detail: detail}
}
