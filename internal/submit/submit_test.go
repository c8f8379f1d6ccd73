package submit

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"testing"

	"github.com/safedrain/sd/internal/connectivity"
	"github.com/safedrain/sd/internal/db"
	"github.com/safedrain/sd/internal/models"
	"github.com/safedrain/sd/internal/photo"
	"github.com/safedrain/sd/internal/spool"
)

type fakeGateway struct {
	t           *testing.T
	failUploads map[string]bool
	failCreate  bool
	uploads     []string
	created     []models.Report
	updated     map[string]map[string]any
	forbidCalls bool
}

func (g *fakeGateway) Create(ctx context.Context, collection string, doc any) (string, error) {
	if g.forbidCalls {
		g.t.Fatal("gateway called on offline path")
	}
	if g.failCreate {
		return "", errors.New("server unavailable")
	}
	r, ok := doc.(models.Report)
	if !ok {
		g.t.Fatalf("unexpected document type %T", doc)
	}
	g.created = append(g.created, r)
	return fmt.Sprintf("r-%d", len(g.created)), nil
}

func (g *fakeGateway) Update(ctx context.Context, collection, id string, patch map[string]any) error {
	if g.forbidCalls {
		g.t.Fatal("gateway called on offline path")
	}
	if g.updated == nil {
		g.updated = map[string]map[string]any{}
	}
	g.updated[id] = patch
	return nil
}

func (g *fakeGateway) UploadBlob(ctx context.Context, name, mime string, data []byte) (string, error) {
	if g.forbidCalls {
		g.t.Fatal("gateway called on offline path")
	}
	if g.failUploads[name] {
		return "", errors.New("upload rejected")
	}
	g.uploads = append(g.uploads, name)
	return "https://blobs.example/" + name, nil
}

func testJPEG(t *testing.T, name string) photo.File {
	t.Helper()
	var buf bytes.Buffer
	img := image.NewRGBA(image.Rect(0, 0, 32, 24))
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("encode test image: %v", err)
	}
	return photo.File{Name: name, MIME: "image/jpeg", Data: buf.Bytes()}
}

func setup(t *testing.T, online bool, gw *fakeGateway) (*Orchestrator, *db.Store) {
	t.Helper()
	dir := t.TempDir()
	store, err := db.Initialize(dir)
	if err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	o := New(gw, store, spool.New(dir), connectivity.New(online), nil)
	return o, store
}

func TestSubmitOnline(t *testing.T) {
	gw := &fakeGateway{t: t}
	o, _ := setup(t, true, gw)

	res, err := o.Submit(context.Background(), Fields{
		Title:    "blocked drain",
		Severity: models.SeverityHigh,
		UserID:   "u1",
	}, []photo.File{testJPEG(t, "a.jpg")})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	if !res.Synced || res.Offline {
		t.Errorf("result flags: %+v", res)
	}
	if res.ID != "r-1" {
		t.Errorf("id: got %q, want r-1", res.ID)
	}
	if len(gw.created) != 1 {
		t.Fatalf("created: got %d documents", len(gw.created))
	}
	if got := gw.created[0]; got.Status != models.StatusPending || len(got.Photos) != 1 {
		t.Errorf("created report: %+v", got)
	}
}

func TestSubmitOnlineSkipsFailedPhoto(t *testing.T) {
	gw := &fakeGateway{t: t, failUploads: map[string]bool{"b.jpg": true}}
	o, _ := setup(t, true, gw)

	photos := []photo.File{testJPEG(t, "a.jpg"), testJPEG(t, "b.jpg"), testJPEG(t, "c.jpg")}
	res, err := o.Submit(context.Background(), Fields{
		Title:    "cracked grate",
		Severity: models.SeverityMedium,
		UserID:   "u1",
	}, photos)
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	if !res.Synced {
		t.Error("expected synced result despite photo failure")
	}
	if got := gw.created[0].Photos; len(got) != 2 {
		t.Errorf("photos: got %v, want 2 urls", got)
	}
}

func TestSubmitOnlineCreateFailure(t *testing.T) {
	gw := &fakeGateway{t: t, failCreate: true}
	o, store := setup(t, true, gw)

	_, err := o.Submit(context.Background(), Fields{
		Title:    "standing water",
		Severity: models.SeverityLow,
		UserID:   "u1",
	}, nil)
	if !errors.Is(err, ErrSubmissionFailed) {
		t.Fatalf("expected ErrSubmissionFailed, got %v", err)
	}

	// No silent fallback to the queue.
	count, err := store.CountUnsynced()
	if err != nil {
		t.Fatalf("CountUnsynced failed: %v", err)
	}
	if count != 0 {
		t.Errorf("failed online submit was queued: %d pending", count)
	}
}

func TestSubmitOfflineNeverTouchesGateway(t *testing.T) {
	gw := &fakeGateway{t: t, forbidCalls: true}
	o, store := setup(t, false, gw)

	res, err := o.Submit(context.Background(), Fields{
		Title:    "flooded underpass",
		Severity: models.SeverityCritical,
		UserID:   "u1",
	}, []photo.File{testJPEG(t, "a.jpg")})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	if res.Synced || !res.Offline {
		t.Errorf("result flags: %+v", res)
	}
	if !models.IsOfflineID(res.ID) {
		t.Errorf("id: got %q, want offline_ prefix", res.ID)
	}

	ops, err := store.ListUnsynced()
	if err != nil {
		t.Fatalf("ListUnsynced failed: %v", err)
	}
	if len(ops) != 1 {
		t.Fatalf("pending: got %d, want 1", len(ops))
	}

	decoded, err := ops[0].DecodePayload()
	if err != nil {
		t.Fatalf("DecodePayload failed: %v", err)
	}
	p := decoded.(*db.CreateReportPayload)
	if p.Report.Title != "flooded underpass" {
		t.Errorf("queued title: %q", p.Report.Title)
	}
	if p.SpoolDir == "" || len(p.PhotoFiles) != 1 {
		t.Errorf("photos not spooled: %+v", p)
	}
	if len(p.Report.Photos) != 0 {
		t.Errorf("queued report should have no photo URLs yet: %v", p.Report.Photos)
	}
}

func TestSubmitOfflineDegradedMode(t *testing.T) {
	gw := &fakeGateway{t: t, forbidCalls: true}
	o := New(gw, nil, nil, connectivity.New(false), nil)

	_, err := o.Submit(context.Background(), Fields{
		Title:    "x",
		Severity: models.SeverityLow,
		UserID:   "u1",
	}, nil)
	if !errors.Is(err, db.ErrStorageUnavailable) {
		t.Fatalf("expected ErrStorageUnavailable, got %v", err)
	}
}

func TestSubmitValidation(t *testing.T) {
	gw := &fakeGateway{t: t}
	o, _ := setup(t, true, gw)

	if _, err := o.Submit(context.Background(), Fields{Severity: models.SeverityLow}, nil); err == nil {
		t.Error("expected error for missing title")
	}
	if _, err := o.Submit(context.Background(), Fields{Title: "t", Severity: "urgent"}, nil); err == nil {
		t.Error("expected error for bad severity")
	}
}

func TestUpdateOnline(t *testing.T) {
	gw := &fakeGateway{t: t}
	o, _ := setup(t, true, gw)

	res, err := o.Update(context.Background(), "r9", map[string]any{"status": "resolved"})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if !res.Synced {
		t.Errorf("result flags: %+v", res)
	}
	if gw.updated["r9"]["status"] != "resolved" {
		t.Errorf("patch not applied: %v", gw.updated)
	}
	if _, ok := gw.updated["r9"]["updatedAt"]; !ok {
		t.Error("patch missing updatedAt")
	}
}

func TestUpdateLeavesCallerPatchUntouched(t *testing.T) {
	gw := &fakeGateway{t: t}
	o, _ := setup(t, true, gw)

	fields := map[string]any{"status": "resolved"}
	if _, err := o.Update(context.Background(), "r9", fields); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	if len(fields) != 1 {
		t.Errorf("caller map grew: %v", fields)
	}
	if _, ok := fields["updatedAt"]; ok {
		t.Error("updatedAt written into caller's map")
	}
}

func TestUpdateOfflineQueues(t *testing.T) {
	gw := &fakeGateway{t: t, forbidCalls: true}
	o, store := setup(t, false, gw)

	res, err := o.Update(context.Background(), "r9", map[string]any{"status": "in_progress"})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if res.Synced || !res.Offline {
		t.Errorf("result flags: %+v", res)
	}

	count, _ := store.CountUnsynced()
	if count != 1 {
		t.Errorf("pending: got %d, want 1", count)
	}
}

func TestUpdateOfflineIDQueuesEvenWhenOnline(t *testing.T) {
	// An edit of a not-yet-created report must replay after its create.
	gw := &fakeGateway{t: t}
	o, store := setup(t, true, gw)

	res, err := o.Update(context.Background(), "offline_3", map[string]any{"description": "worse now"})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if res.Synced {
		t.Error("offline-ID update should queue, not sync")
	}
	if len(gw.updated) != 0 {
		t.Errorf("gateway patched directly: %v", gw.updated)
	}
	count, _ := store.CountUnsynced()
	if count != 1 {
		t.Errorf("pending: got %d, want 1", count)
	}
}

func TestSyncStatus(t *testing.T) {
	gw := &fakeGateway{t: t, forbidCalls: true}
	o, _ := setup(t, false, gw)

	if _, err := o.Submit(context.Background(), Fields{
		Title:    "one",
		Severity: models.SeverityLow,
		UserID:   "u1",
	}, nil); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	st, err := o.SyncStatus()
	if err != nil {
		t.Fatalf("SyncStatus failed: %v", err)
	}
	if st.IsOnline || st.PendingCount != 1 {
		t.Errorf("status: %+v", st)
	}

	degraded := New(gw, nil, nil, connectivity.New(true), nil)
	st, err = degraded.SyncStatus()
	if err != nil {
		t.Fatalf("SyncStatus degraded failed: %v", err)
	}
	if !st.IsOnline || st.PendingCount != 0 {
		t.Errorf("degraded status: %+v", st)
	}
}
