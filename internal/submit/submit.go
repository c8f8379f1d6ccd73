// Package submit coordinates report submission: online it normalizes and
// uploads photos then creates the remote document, offline it spools photos
// and enqueues a durable pending operation.
package submit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"time"

	"github.com/safedrain/sd/internal/db"
	"github.com/safedrain/sd/internal/models"
	"github.com/safedrain/sd/internal/photo"
)

// ErrSubmissionFailed wraps a failed online document create. Photo upload
// failures never produce it.
var ErrSubmissionFailed = errors.New("submission failed")

// Gateway is the slice of the remote document store the orchestrator needs.
type Gateway interface {
	Create(ctx context.Context, collection string, doc any) (string, error)
	Update(ctx context.Context, collection, id string, patch map[string]any) error
	UploadBlob(ctx context.Context, name, mime string, data []byte) (string, error)
}

// Queue is the slice of the durable store the orchestrator needs. Nil when
// local storage is unavailable (degraded mode).
type Queue interface {
	Enqueue(kind db.OpKind, payload any) (int64, error)
	CountUnsynced() (int64, error)
}

// Spooler persists normalized photo bytes for offline submissions.
type Spooler interface {
	Save(files []photo.File) (entry string, names []string, err error)
}

// Connectivity reports the last-known online state.
type Connectivity interface {
	IsOnline() bool
}

// Fields are the user-entered report fields.
type Fields struct {
	Title       string
	Description string
	Severity    models.Severity
	Category    string
	Location    models.Location
	UserID      string
}

// Result is the submission outcome handed back to the UI boundary.
type Result struct {
	ID      string `json:"id"`
	Synced  bool   `json:"synced"`
	Offline bool   `json:"offline"`
}

// Status is the sync status summary for the UI boundary.
type Status struct {
	IsOnline     bool  `json:"isOnline"`
	PendingCount int64 `json:"pendingCount"`
}

// Orchestrator drives a submission down the online or offline path.
type Orchestrator struct {
	gateway Gateway
	queue   Queue
	spool   Spooler
	conn    Connectivity
	log     *slog.Logger
	now     func() time.Time
}

// New creates an orchestrator. queue and spool may be nil when local
// storage is unavailable; submissions then proceed online-only.
func New(gateway Gateway, queue Queue, spool Spooler, conn Connectivity, log *slog.Logger) *Orchestrator {
	if log == nil {
		log = slog.Default()
	}
	return &Orchestrator{
		gateway: gateway,
		queue:   queue,
		spool:   spool,
		conn:    conn,
		log:     log,
		now:     time.Now,
	}
}

// Submit validates the fields, then commits the report remotely (online) or
// enqueues it durably (offline). The offline path performs no network I/O.
func (o *Orchestrator) Submit(ctx context.Context, fields Fields, photos []photo.File) (*Result, error) {
	if fields.Title == "" {
		return nil, fmt.Errorf("report title is required")
	}
	if !fields.Severity.Valid() {
		return nil, fmt.Errorf("invalid severity %q", fields.Severity)
	}

	now := o.now().UTC()
	report := models.Report{
		Title:       fields.Title,
		Description: fields.Description,
		Severity:    fields.Severity,
		Status:      models.StatusPending,
		Category:    fields.Category,
		Location:    fields.Location,
		Photos:      []string{},
		UserID:      fields.UserID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if !o.conn.IsOnline() {
		return o.submitOffline(report, photos)
	}
	return o.submitOnline(ctx, report, photos)
}

// submitOnline normalizes and uploads each photo, skipping individual
// failures, then creates the document. Only the create failure is fatal.
func (o *Orchestrator) submitOnline(ctx context.Context, report models.Report, photos []photo.File) (*Result, error) {
	for _, f := range photos {
		url, err := o.uploadPhoto(ctx, f)
		if err != nil {
			o.log.Warn("photo skipped", "name", f.Name, "error", err)
			continue
		}
		report.Photos = append(report.Photos, url)
	}

	id, err := o.gateway.Create(ctx, "reports", report)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSubmissionFailed, err)
	}

	o.log.Info("report created", "id", id, "photos", len(report.Photos))
	return &Result{ID: id, Synced: true, Offline: false}, nil
}

func (o *Orchestrator) uploadPhoto(ctx context.Context, f photo.File) (string, error) {
	normalized, err := photo.Normalize(f, photo.DefaultMaxWidth, photo.DefaultMaxHeight, photo.DefaultQuality)
	if err != nil {
		return "", err
	}
	return o.gateway.UploadBlob(ctx, normalized.Name, normalized.MIME, normalized.Data)
}

// submitOffline spools normalized photos and enqueues a create operation.
// The returned ID is a local placeholder derived from the queue record.
func (o *Orchestrator) submitOffline(report models.Report, photos []photo.File) (*Result, error) {
	if o.queue == nil {
		return nil, fmt.Errorf("cannot queue submission: %w", db.ErrStorageUnavailable)
	}

	payload := db.CreateReportPayload{Report: report}

	var normalized []photo.File
	for _, f := range photos {
		nf, err := photo.Normalize(f, photo.DefaultMaxWidth, photo.DefaultMaxHeight, photo.DefaultQuality)
		if err != nil {
			o.log.Warn("photo dropped from offline submission", "name", f.Name, "error", err)
			continue
		}
		normalized = append(normalized, nf)
	}
	if len(normalized) > 0 && o.spool != nil {
		entry, names, err := o.spool.Save(normalized)
		if err != nil {
			// Photos are supplementary. The report itself still queues.
			o.log.Warn("photo spool failed, queueing report without photos", "error", err)
		} else {
			payload.SpoolDir = entry
			payload.PhotoFiles = names
		}
	}

	opID, err := o.queue.Enqueue(db.OpCreateReport, &payload)
	if err != nil {
		return nil, fmt.Errorf("enqueue report: %w", err)
	}

	o.log.Info("report queued for sync", "operation", opID, "photos", len(payload.PhotoFiles))
	return &Result{
		ID:      fmt.Sprintf("%s%d", models.OfflineIDPrefix, opID),
		Synced:  false,
		Offline: true,
	}, nil
}

// Update patches an existing report. Online it writes through immediately,
// offline it enqueues an update operation keyed by the report ID. The
// caller's patch map is not modified.
func (o *Orchestrator) Update(ctx context.Context, reportID string, fields map[string]any) (*Result, error) {
	if len(fields) == 0 {
		return nil, fmt.Errorf("empty patch")
	}
	patch := maps.Clone(fields)
	patch["updatedAt"] = o.now().UTC().Format(time.RFC3339)

	if o.conn.IsOnline() && !models.IsOfflineID(reportID) {
		if err := o.gateway.Update(ctx, "reports", reportID, patch); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSubmissionFailed, err)
		}
		return &Result{ID: reportID, Synced: true}, nil
	}

	if o.queue == nil {
		return nil, fmt.Errorf("cannot queue update: %w", db.ErrStorageUnavailable)
	}
	opID, err := o.queue.Enqueue(db.OpUpdateReport, &db.UpdateReportPayload{
		ReportID: reportID,
		Patch:    patch,
	})
	if err != nil {
		return nil, fmt.Errorf("enqueue update: %w", err)
	}
	o.log.Info("update queued for sync", "operation", opID, "report", reportID)
	return &Result{ID: reportID, Synced: false, Offline: true}, nil
}

// SyncStatus reports the UI boundary summary. With no local store the
// pending count is zero.
func (o *Orchestrator) SyncStatus() (*Status, error) {
	st := &Status{IsOnline: o.conn.IsOnline()}
	if o.queue == nil {
		return st, nil
	}
	count, err := o.queue.CountUnsynced()
	if err != nil {
		return nil, fmt.Errorf("count pending: %w", err)
	}
	st.PendingCount = count
	return st, nil
}
