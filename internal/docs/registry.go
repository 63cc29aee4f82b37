// ABOUTME: In-memory mirror of ingested-document status, refreshed wholesale
// ABOUTME: Validates uploads client-side and polls ingestion until it settles

package docs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/2389/ragchat/internal/api"
)

// ErrStillProcessing is returned by AwaitProcessing when the poll window
// closes before every uploaded document reaches a terminal status.
var ErrStillProcessing = errors.New("documents still processing")

// Status of a document in the ingestion pipeline.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusProcessed  Status = "processed"
	StatusError      Status = "error"
)

// Terminal reports whether ingestion is finished for this status.
func (s Status) Terminal() bool {
	return s == StatusProcessed || s == StatusError
}

// Record is one ingested document as the registry sees it.
type Record struct {
	Filename    string
	UploadDate  time.Time
	Status      Status
	ChunksCount *int
}

// Service is what the registry needs from the remote client.
type Service interface {
	ListDocuments(ctx context.Context) ([]api.DocumentInfo, error)
	UploadDocuments(ctx context.Context, uploads []api.Upload) (*api.UploadAck, error)
	DeleteDocument(ctx context.Context, id string) error
}

// Registry mirrors the service's document list. The mirror is a point-in-time
// snapshot replaced wholesale on every refresh; there is no incremental merge
// and no live subscription.
type Registry struct {
	svc    Service
	logger *slog.Logger

	pollInterval time.Duration
	pollTimeout  time.Duration

	mu      sync.RWMutex
	records []Record

	now func() time.Time
}

// NewRegistry creates a registry polling at pollInterval for at most
// pollTimeout after an upload. Pass nil logger for default.
func NewRegistry(svc Service, pollInterval, pollTimeout time.Duration, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		svc:          svc,
		logger:       logger.With("component", "docs"),
		pollInterval: pollInterval,
		pollTimeout:  pollTimeout,
		now:          time.Now,
	}
}

// Refresh replaces the local mirror from the service and returns the new
// snapshot.
func (r *Registry) Refresh(ctx context.Context) ([]Record, error) {
	infos, err := r.svc.ListDocuments(ctx)
	if err != nil {
		return nil, fmt.Errorf("refreshing document list: %w", err)
	}

	records := make([]Record, 0, len(infos))
	for _, info := range infos {
		records = append(records, Record{
			Filename:    info.Filename,
			UploadDate:  parseUploadDate(info.UploadDate),
			Status:      Status(info.Status),
			ChunksCount: info.ChunksCount,
		})
	}

	r.mu.Lock()
	r.records = records
	r.mu.Unlock()

	r.logger.Debug("document mirror refreshed", "count", len(records))
	return r.Snapshot(), nil
}

// Snapshot returns a copy of the current mirror.
func (r *Registry) Snapshot() []Record {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Record(nil), r.records...)
}

// Upload validates every file client-side, then posts the batch. Validation
// failures reject the whole batch before any network call. On success the
// mirror gains transient pending stand-ins until the next refresh.
func (r *Registry) Upload(ctx context.Context, uploads []api.Upload) (*api.UploadAck, error) {
	for _, up := range uploads {
		if err := ValidateFile(up.Filename, up.ContentType); err != nil {
			return nil, err
		}
	}

	ack, err := r.svc.UploadDocuments(ctx, uploads)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	for _, up := range uploads {
		if !r.hasLocked(up.Filename) {
			r.records = append(r.records, Record{
				Filename:   up.Filename,
				UploadDate: r.now(),
				Status:     StatusPending,
			})
		}
	}
	r.mu.Unlock()

	r.logger.Info("documents uploaded", "count", len(uploads))
	return ack, nil
}

// Delete removes a document server-side and refreshes the mirror.
func (r *Registry) Delete(ctx context.Context, id string) error {
	if err := r.svc.DeleteDocument(ctx, id); err != nil {
		return err
	}
	if _, err := r.Refresh(ctx); err != nil {
		return err
	}
	return nil
}

// AwaitProcessing polls the service until every named file reaches a
// terminal status (processed or error), then returns the final snapshot.
// The poll window is bounded by the registry's pollTimeout; when it closes
// early the current snapshot is returned along with ErrStillProcessing.
// pollInterval is the floor between list calls.
func (r *Registry) AwaitProcessing(ctx context.Context, filenames []string) ([]Record, error) {
	deadline := r.now().Add(r.pollTimeout)

	for {
		select {
		case <-ctx.Done():
			return r.Snapshot(), ctx.Err()
		case <-time.After(r.pollInterval):
		}

		records, err := r.Refresh(ctx)
		if err != nil {
			return r.Snapshot(), err
		}

		if allTerminal(records, filenames) {
			return records, nil
		}
		if !r.now().Before(deadline) {
			r.logger.Warn("ingestion did not settle within poll window",
				"files", filenames,
				"timeout", r.pollTimeout)
			return records, ErrStillProcessing
		}
	}
}

// allTerminal reports whether every named file is visible and settled.
// Files the service has not listed yet count as unsettled.
func allTerminal(records []Record, filenames []string) bool {
	byName := make(map[string]Status, len(records))
	for _, rec := range records {
		byName[rec.Filename] = rec.Status
	}
	for _, name := range filenames {
		status, ok := byName[name]
		if !ok || !status.Terminal() {
			return false
		}
	}
	return true
}

func (r *Registry) hasLocked(filename string) bool {
	for _, rec := range r.records {
		if rec.Filename == filename {
			return true
		}
	}
	return false
}

// parseUploadDate handles both RFC 3339 and the zoneless ISO form the
// service emits. Unparsable dates become the zero time rather than an error.
func parseUploadDate(s string) time.Time {
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05.999999999", "2006-01-02T15:04:05"} {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts
		}
	}
	return time.Time{}
}
