// Package sync replays the durable pending-operation queue against the
// remote document store. Replay is at-least-once: an operation is marked
// synced only after its remote write succeeds, so a crash between the two
// can re-apply it on the next pass.
package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/safedrain/sd/internal/db"
)

// DefaultRetention is how long synced queue records are kept for audit.
const DefaultRetention = 7 * 24 * time.Hour

// ErrSyncInProgress is returned when a reconcile pass is already running.
// Two concurrent passes could both apply the same operation.
var ErrSyncInProgress = errors.New("sync already in progress")

// Store is the slice of the durable store the reconciler needs.
type Store interface {
	ListUnsynced() ([]db.PendingOperation, error)
	MarkSynced(id int64, remoteID string) error
	MarkFailed(id int64, cause error) error
	PruneOld(retention time.Duration) (int64, error)
}

// Connectivity reports the last-known online state.
type Connectivity interface {
	IsOnline() bool
}

// ApplyFunc performs the kind-specific remote write for one operation and
// returns the remote document ID it committed to.
type ApplyFunc func(ctx context.Context, op db.PendingOperation) (string, error)

// Result summarizes one reconcile pass.
type Result struct {
	Synced  int `json:"synced"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
	Pruned  int `json:"pruned"`
}

// Reconciler drains the pending-operation queue when connectivity allows.
type Reconciler struct {
	store     Store
	conn      Connectivity
	log       *slog.Logger
	retention time.Duration
	now       func() time.Time
	inFlight  atomic.Bool
}

// New creates a reconciler with the default retention window.
func New(store Store, conn Connectivity, log *slog.Logger) *Reconciler {
	if log == nil {
		log = slog.Default()
	}
	return &Reconciler{
		store:     store,
		conn:      conn,
		log:       log,
		retention: DefaultRetention,
		now:       time.Now,
	}
}

// Reconcile replays unsynced operations in enqueue order through applyFn.
// Offline it is a no-op that touches nothing. A failure on one operation
// does not halt the pass. Operations whose backoff window has not elapsed
// are skipped and counted, not failed. After the pass, synced records older
// than the retention window are pruned.
func (r *Reconciler) Reconcile(ctx context.Context, applyFn ApplyFunc) (*Result, error) {
	if !r.conn.IsOnline() {
		return &Result{}, nil
	}

	if !r.inFlight.CompareAndSwap(false, true) {
		return nil, ErrSyncInProgress
	}
	defer r.inFlight.Store(false)

	ops, err := r.store.ListUnsynced()
	if err != nil {
		return nil, fmt.Errorf("list unsynced: %w", err)
	}

	res := &Result{}
	now := r.now().UTC()
	for _, op := range ops {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if op.NextAttemptAt != nil && now.Before(*op.NextAttemptAt) {
			res.Skipped++
			continue
		}

		remoteID, err := applyFn(ctx, op)
		if err != nil {
			r.log.Warn("operation failed", "operation", op.ID, "kind", op.Kind, "error", err)
			if markErr := r.store.MarkFailed(op.ID, err); markErr != nil {
				return res, fmt.Errorf("mark failed %d: %w", op.ID, markErr)
			}
			res.Failed++
			continue
		}

		if err := r.store.MarkSynced(op.ID, remoteID); err != nil {
			// The remote write landed but the local mark did not. The
			// operation stays pending and will re-apply next pass.
			return res, fmt.Errorf("mark synced %d: %w", op.ID, err)
		}
		r.log.Info("operation synced", "operation", op.ID, "kind", op.Kind, "remote", remoteID)
		res.Synced++
	}

	pruned, err := r.store.PruneOld(r.retention)
	if err != nil {
		return res, fmt.Errorf("prune: %w", err)
	}
	res.Pruned = int(pruned)
	return res, nil
}
