package sync

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/safedrain/sd/internal/db"
	"github.com/safedrain/sd/internal/photo"
)

// Gateway is the slice of the remote document store the applier needs.
type Gateway interface {
	Create(ctx context.Context, collection string, doc any) (string, error)
	Update(ctx context.Context, collection, id string, patch map[string]any) error
	UploadBlob(ctx context.Context, name, mime string, data []byte) (string, error)
}

// Spool reads back photos persisted at offline-submit time.
type Spool interface {
	Load(entry, name string) (photo.File, error)
	Remove(entry string) error
}

// Resolver maps offline placeholder IDs to remote document IDs.
type Resolver interface {
	ResolveOfflineID(id string) (string, error)
}

// Applier performs the kind-specific remote write for queued operations.
type Applier struct {
	gateway Gateway
	spool   Spool
	resolve Resolver
	log     *slog.Logger
}

// NewApplier wires an applier. spool may be nil when no photo spool exists.
func NewApplier(gateway Gateway, spool Spool, resolve Resolver, log *slog.Logger) *Applier {
	if log == nil {
		log = slog.Default()
	}
	return &Applier{gateway: gateway, spool: spool, resolve: resolve, log: log}
}

// Apply dispatches one operation by kind. It satisfies ApplyFunc.
func (a *Applier) Apply(ctx context.Context, op db.PendingOperation) (string, error) {
	decoded, err := op.DecodePayload()
	if err != nil {
		return "", err
	}

	switch p := decoded.(type) {
	case *db.CreateReportPayload:
		return a.applyCreate(ctx, p)
	case *db.UpdateReportPayload:
		return a.applyUpdate(ctx, p)
	default:
		return "", fmt.Errorf("no applier for payload type %T", decoded)
	}
}

// applyCreate uploads any spooled photos then creates the document. Photo
// failures are skipped, not fatal. The spool entry is removed only after
// the create succeeds, so a failed pass can retry the uploads.
func (a *Applier) applyCreate(ctx context.Context, p *db.CreateReportPayload) (string, error) {
	report := p.Report
	report.Photos = []string{}

	if p.SpoolDir != "" && a.spool != nil {
		for _, name := range p.PhotoFiles {
			f, err := a.spool.Load(p.SpoolDir, name)
			if err != nil {
				a.log.Warn("spooled photo unreadable, skipping", "entry", p.SpoolDir, "file", name, "error", err)
				continue
			}
			url, err := a.gateway.UploadBlob(ctx, f.Name, f.MIME, f.Data)
			if err != nil {
				a.log.Warn("spooled photo upload failed, skipping", "file", name, "error", err)
				continue
			}
			report.Photos = append(report.Photos, url)
		}
	}

	id, err := a.gateway.Create(ctx, "reports", report)
	if err != nil {
		return "", fmt.Errorf("create report: %w", err)
	}

	if p.SpoolDir != "" && a.spool != nil {
		if err := a.spool.Remove(p.SpoolDir); err != nil {
			a.log.Warn("spool cleanup failed", "entry", p.SpoolDir, "error", err)
		}
	}
	return id, nil
}

// applyUpdate patches an existing document, first resolving an offline
// placeholder to the remote ID its create received.
func (a *Applier) applyUpdate(ctx context.Context, p *db.UpdateReportPayload) (string, error) {
	id := p.ReportID
	if a.resolve != nil {
		resolved, err := a.resolve.ResolveOfflineID(id)
		if err != nil {
			return "", fmt.Errorf("resolve report ID: %w", err)
		}
		id = resolved
	}

	if err := a.gateway.Update(ctx, "reports", id, p.Patch); err != nil {
		return "", fmt.Errorf("update report %s: %w", id, err)
	}
	return id, nil
}
