package db

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/safedrain/sd/internal/models"
)

// OpKind discriminates the pending-operation payload type.
type OpKind string

const (
	OpCreateReport OpKind = "create_report"
	OpUpdateReport OpKind = "update_report"
)

// CreateReportPayload carries a full report plus the spool paths of any
// photos persisted for later upload.
type CreateReportPayload struct {
	Report     models.Report `json:"report"`
	SpoolDir   string        `json:"spool_dir,omitempty"`
	PhotoFiles []string      `json:"photo_files,omitempty"`
}

// UpdateReportPayload carries a partial-field patch for an existing report.
type UpdateReportPayload struct {
	ReportID string         `json:"report_id"`
	Patch    map[string]any `json:"patch"`
}

// PendingOperation is a durable, locally queued write awaiting remote commit.
type PendingOperation struct {
	ID            int64
	Kind          OpKind
	Payload       json.RawMessage
	EnqueuedAt    time.Time
	Synced        bool
	SyncedAt      *time.Time
	RemoteID      string
	Attempts      int
	NextAttemptAt *time.Time
	LastError     string
	Dead          bool
}

// DecodePayload unmarshals the kind-specific payload. Unknown kinds are an
// error so new kinds cannot be silently dropped by an older replayer.
func (op *PendingOperation) DecodePayload() (any, error) {
	switch op.Kind {
	case OpCreateReport:
		var p CreateReportPayload
		if err := json.Unmarshal(op.Payload, &p); err != nil {
			return nil, fmt.Errorf("decode create_report payload op=%d: %w", op.ID, err)
		}
		return &p, nil
	case OpUpdateReport:
		var p UpdateReportPayload
		if err := json.Unmarshal(op.Payload, &p); err != nil {
			return nil, fmt.Errorf("decode update_report payload op=%d: %w", op.ID, err)
		}
		return &p, nil
	default:
		return nil, fmt.Errorf("unknown operation kind %q (op=%d)", op.Kind, op.ID)
	}
}

// Enqueue persists a new pending operation and returns its assigned ID. The
// record is durable by the time Enqueue returns.
func (s *Store) Enqueue(kind OpKind, payload any) (int64, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("marshal payload: %w", err)
	}

	var id int64
	err = s.withWriteLock(func() error {
		res, err := s.conn.Exec(`
			INSERT INTO pending_operations (kind, payload, enqueued_at, synced)
			VALUES (?, ?, ?, 0)
		`, string(kind), string(data), time.Now().UTC().Format(timeLayout))
		if err != nil {
			return fmt.Errorf("insert pending operation: %w", err)
		}
		id, err = res.LastInsertId()
		return err
	})
	return id, err
}

// ListUnsynced returns all live unsynced operations in enqueue order.
// Insertion order is the replay order: edits of the same report must be
// applied in the order they were queued.
func (s *Store) ListUnsynced() ([]PendingOperation, error) {
	return s.listOps(`synced = 0 AND dead = 0`)
}

// ListDead returns dead-lettered operations: unsynced records that exhausted
// their retry budget and need operator attention.
func (s *Store) ListDead() ([]PendingOperation, error) {
	return s.listOps(`synced = 0 AND dead = 1`)
}

func (s *Store) listOps(where string) ([]PendingOperation, error) {
	rows, err := s.conn.Query(`
		SELECT id, kind, payload, enqueued_at, synced, synced_at, remote_id, attempts, next_attempt_at, last_error, dead
		FROM pending_operations
		WHERE ` + where + `
		ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("query pending operations: %w", err)
	}
	defer rows.Close()

	var ops []PendingOperation
	for rows.Next() {
		op, err := scanOp(rows)
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}
	return ops, rows.Err()
}

// GetOperation returns a single operation, or nil when it does not exist.
func (s *Store) GetOperation(id int64) (*PendingOperation, error) {
	rows, err := s.conn.Query(`
		SELECT id, kind, payload, enqueued_at, synced, synced_at, remote_id, attempts, next_attempt_at, last_error, dead
		FROM pending_operations WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("query operation %d: %w", id, err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	op, err := scanOp(rows)
	if err != nil {
		return nil, err
	}
	return &op, nil
}

func scanOp(rows *sql.Rows) (PendingOperation, error) {
	var op PendingOperation
	var kind, payload, enqueuedAt string
	var synced, dead int
	var syncedAt, nextAt, lastErr sql.NullString
	if err := rows.Scan(&op.ID, &kind, &payload, &enqueuedAt, &synced, &syncedAt,
		&op.RemoteID, &op.Attempts, &nextAt, &lastErr, &dead); err != nil {
		return op, fmt.Errorf("scan pending operation: %w", err)
	}

	op.Kind = OpKind(kind)
	op.Payload = json.RawMessage(payload)
	op.Synced = synced != 0
	op.Dead = dead != 0
	op.LastError = lastErr.String

	ts, err := parseTimestamp(enqueuedAt)
	if err != nil {
		return op, fmt.Errorf("parse enqueued_at op=%d: %w", op.ID, err)
	}
	op.EnqueuedAt = ts

	if syncedAt.Valid && syncedAt.String != "" {
		ts, err := parseTimestamp(syncedAt.String)
		if err != nil {
			return op, fmt.Errorf("parse synced_at op=%d: %w", op.ID, err)
		}
		op.SyncedAt = &ts
	}
	if nextAt.Valid && nextAt.String != "" {
		ts, err := parseTimestamp(nextAt.String)
		if err != nil {
			return op, fmt.Errorf("parse next_attempt_at op=%d: %w", op.ID, err)
		}
		op.NextAttemptAt = &ts
	}
	return op, nil
}

// MarkSynced marks an operation as committed remotely, recording the ID the
// server assigned so later operations can resolve offline references.
// Idempotent: calling it again, or with an unknown ID, is a no-op. Synced
// is set exactly once; a synced operation is never retried.
func (s *Store) MarkSynced(id int64, remoteID string) error {
	return s.withWriteLock(func() error {
		_, err := s.conn.Exec(`
			UPDATE pending_operations
			SET synced = 1, synced_at = ?, remote_id = ?, last_error = ''
			WHERE id = ? AND synced = 0
		`, time.Now().UTC().Format(timeLayout), remoteID, id)
		if err != nil {
			return fmt.Errorf("mark synced id=%d: %w", id, err)
		}
		return nil
	})
}

// Retry policy for operations that fail to apply remotely: exponential
// backoff from backoffBase, doubling per attempt, capped at backoffMax;
// after maxAttempts the record is dead-lettered instead of retried forever.
const (
	maxAttempts = 10
	backoffBase = time.Minute
	backoffMax  = time.Hour
)

// Backoff returns the delay before retry number attempts.
func Backoff(attempts int) time.Duration {
	if attempts < 1 {
		return 0
	}
	d := backoffBase << uint(attempts-1)
	if d <= 0 || d > backoffMax {
		return backoffMax
	}
	return d
}

// MarkFailed records a failed replay attempt: increments the attempt count,
// schedules the next attempt with exponential backoff, and dead-letters the
// record once the attempt budget is exhausted.
func (s *Store) MarkFailed(id int64, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return s.withWriteLock(func() error {
		var attempts int
		err := s.conn.QueryRow(`SELECT attempts FROM pending_operations WHERE id = ? AND synced = 0`, id).Scan(&attempts)
		if err == sql.ErrNoRows {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read attempts id=%d: %w", id, err)
		}

		attempts++
		dead := 0
		if attempts >= maxAttempts {
			dead = 1
		}
		next := time.Now().UTC().Add(Backoff(attempts)).Format(timeLayout)

		_, err = s.conn.Exec(`
			UPDATE pending_operations
			SET attempts = ?, next_attempt_at = ?, last_error = ?, dead = ?
			WHERE id = ? AND synced = 0
		`, attempts, next, msg, dead, id)
		if err != nil {
			return fmt.Errorf("mark failed id=%d: %w", id, err)
		}
		return nil
	})
}

// ResolveOfflineID maps a local placeholder ID (offline_<opID>) to the
// remote ID recorded when its create operation synced. Non-placeholder IDs
// pass through unchanged. Returns an error when the create has not synced
// yet, so callers can defer the dependent operation.
func (s *Store) ResolveOfflineID(id string) (string, error) {
	if !models.IsOfflineID(id) {
		return id, nil
	}
	opID, err := strconv.ParseInt(strings.TrimPrefix(id, models.OfflineIDPrefix), 10, 64)
	if err != nil {
		return "", fmt.Errorf("malformed offline ID %q: %w", id, err)
	}

	op, err := s.GetOperation(opID)
	if err != nil {
		return "", err
	}
	if op == nil {
		return "", fmt.Errorf("offline ID %q: operation not found", id)
	}
	if !op.Synced || op.RemoteID == "" {
		return "", fmt.Errorf("offline ID %q: report not yet created remotely", id)
	}
	return op.RemoteID, nil
}

// RetryDead returns dead-lettered operations to the pending pool with a
// fresh attempt budget. Returns the number of resurrected records.
func (s *Store) RetryDead() (int64, error) {
	var affected int64
	err := s.withWriteLock(func() error {
		res, err := s.conn.Exec(`
			UPDATE pending_operations
			SET dead = 0, attempts = 0, next_attempt_at = NULL, last_error = ''
			WHERE synced = 0 AND dead = 1`)
		if err != nil {
			return fmt.Errorf("retry dead: %w", err)
		}
		affected, _ = res.RowsAffected()
		return nil
	})
	return affected, err
}

// ClearBackoff drops the retry schedule of an unsynced operation so the
// next reconcile pass applies it immediately.
func (s *Store) ClearBackoff(id int64) error {
	return s.withWriteLock(func() error {
		_, err := s.conn.Exec(`
			UPDATE pending_operations SET next_attempt_at = NULL WHERE id = ? AND synced = 0`, id)
		if err != nil {
			return fmt.Errorf("clear backoff id=%d: %w", id, err)
		}
		return nil
	})
}

// DeleteOperation removes a record unconditionally. Idempotent.
func (s *Store) DeleteOperation(id int64) error {
	return s.withWriteLock(func() error {
		_, err := s.conn.Exec(`DELETE FROM pending_operations WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("delete operation %d: %w", id, err)
		}
		return nil
	})
}

// PruneOld deletes synced records whose synced_at is older than the
// retention window. Synced records are kept around only for audit.
func (s *Store) PruneOld(retention time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-retention).Format(timeLayout)
	var affected int64
	err := s.withWriteLock(func() error {
		res, err := s.conn.Exec(`
			DELETE FROM pending_operations
			WHERE synced = 1 AND synced_at IS NOT NULL AND synced_at < ?
		`, cutoff)
		if err != nil {
			return fmt.Errorf("prune old operations: %w", err)
		}
		affected, _ = res.RowsAffected()
		return nil
	})
	return affected, err
}

// CountUnsynced returns the number of live unsynced operations.
func (s *Store) CountUnsynced() (int64, error) {
	var count int64
	err := s.conn.QueryRow(`SELECT COUNT(*) FROM pending_operations WHERE synced = 0 AND dead = 0`).Scan(&count)
	return count, err
}

// CountDead returns the number of dead-lettered operations.
func (s *Store) CountDead() (int64, error) {
	var count int64
	err := s.conn.QueryRow(`SELECT COUNT(*) FROM pending_operations WHERE synced = 0 AND dead = 1`).Scan(&count)
	return count, err
}

const timeLayout = "2006-01-02 15:04:05.999999999"

// parseTimestamp tries common SQLite timestamp formats.
func parseTimestamp(s string) (time.Time, error) {
	formats := []string{
		timeLayout,
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02 15:04:05",
		"2006-01-02 15:04:05.999999999-07:00",
		"2006-01-02 15:04:05.999999999Z07:00",
		"2006-01-02T15:04:05.999999999",
		"2006-01-02T15:04:05.999999999Z07:00",
	}
	for _, f := range formats {
		if t, err := time.Parse(f, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp format: %q", s)
}
