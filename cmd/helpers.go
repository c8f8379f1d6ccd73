package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/safedrain/sd/internal/cliconfig"
	"github.com/safedrain/sd/internal/connectivity"
	"github.com/safedrain/sd/internal/db"
	"github.com/safedrain/sd/internal/gateway"
	"github.com/safedrain/sd/internal/output"
	"github.com/safedrain/sd/internal/photo"
	"github.com/safedrain/sd/internal/spool"
	"github.com/safedrain/sd/internal/submit"
	sdsync "github.com/safedrain/sd/internal/sync"
)

const probeTimeout = 3 * time.Second

// newGateway builds a client from stored config and credentials.
func newGateway() (*gateway.Client, error) {
	deviceID, err := cliconfig.DeviceID()
	if err != nil {
		return nil, fmt.Errorf("device ID: %w", err)
	}
	return gateway.New(cliconfig.ServerURL(), cliconfig.APIKey(), deviceID), nil
}

// openStoreOptional opens the local queue, degrading to nil when it is
// unavailable so online-only operation can continue.
func openStoreOptional() *db.Store {
	store, err := db.Open(getBaseDir())
	if err != nil {
		if errors.Is(err, db.ErrStorageUnavailable) {
			output.Warning("local queue unavailable, offline submission disabled: %v", err)
			return nil
		}
		output.Warning("local queue unavailable: %v", err)
		return nil
	}
	return store
}

// probeMonitor seeds a connectivity monitor with one health probe.
func probeMonitor(gw *gateway.Client) *connectivity.Monitor {
	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()
	return connectivity.New(gw.Probe(ctx))
}

// buildOrchestrator wires the submission stack. The store may be nil.
func buildOrchestrator(gw *gateway.Client, store *db.Store, mon *connectivity.Monitor) *submit.Orchestrator {
	var (
		queue submit.Queue
		sp    submit.Spooler
	)
	if store != nil {
		queue = store
		sp = spool.New(getBaseDir())
	}
	return submit.New(gw, queue, sp, mon, nil)
}

// buildReconciler wires the sync stack against an open store.
func buildReconciler(gw *gateway.Client, store *db.Store, mon *connectivity.Monitor) (*sdsync.Reconciler, *sdsync.Applier) {
	rec := sdsync.New(store, mon, nil)
	app := sdsync.NewApplier(gw, spool.New(getBaseDir()), store, nil)
	return rec, app
}

// loadPhotoFiles reads photo paths into memory for submission.
func loadPhotoFiles(paths []string) ([]photo.File, error) {
	var files []photo.File
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("read photo %s: %w", p, err)
		}
		files = append(files, photo.File{
			Name: filepath.Base(p),
			MIME: mimeForPath(p),
			Data: data,
		})
	}
	return files, nil
}

func mimeForPath(p string) string {
	switch strings.ToLower(filepath.Ext(p)) {
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	default:
		return "image/jpeg"
	}
}

// opSummary renders a one-line description of a queued operation.
func opSummary(op db.PendingOperation) string {
	decoded, err := op.DecodePayload()
	if err != nil {
		return "(unreadable payload)"
	}
	switch p := decoded.(type) {
	case *db.CreateReportPayload:
		return p.Report.Title
	case *db.UpdateReportPayload:
		return "update " + p.ReportID
	default:
		return string(op.Kind)
	}
}
