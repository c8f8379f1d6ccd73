package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(srv.URL, "test-key", "device-1")
}

func TestCreate(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody map[string]any

	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &gotBody)
		json.NewEncoder(w).Encode(map[string]string{"id": "doc-123"})
	}))

	id, err := c.Create(context.Background(), CollectionReports, map[string]any{"title": "blocked drain"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if id != "doc-123" {
		t.Errorf("id: got %q, want doc-123", id)
	}
	if gotPath != "/v1/collections/reports/documents" {
		t.Errorf("path: got %q", gotPath)
	}
	if gotAuth != "Bearer test-key" {
		t.Errorf("auth header: got %q", gotAuth)
	}
	if gotBody["title"] != "blocked drain" {
		t.Errorf("body: got %v", gotBody)
	}
}

func TestCreateEmptyID(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{})
	}))

	if _, err := c.Create(context.Background(), CollectionReports, map[string]any{}); err == nil {
		t.Fatal("expected error for empty document ID")
	}
}

func TestUpdateSendsPatch(t *testing.T) {
	var gotMethod, gotPath string
	var gotBody map[string]any

	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &gotBody)
		w.WriteHeader(http.StatusOK)
	}))

	err := c.Update(context.Background(), CollectionReports, "r1", map[string]any{"status": "resolved"})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if gotMethod != "PATCH" {
		t.Errorf("method: got %q, want PATCH", gotMethod)
	}
	if gotPath != "/v1/collections/reports/documents/r1" {
		t.Errorf("path: got %q", gotPath)
	}
	if len(gotBody) != 1 || gotBody["status"] != "resolved" {
		t.Errorf("patch body: got %v, want only status", gotBody)
	}
}

func TestGetMissingReturnsNil(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"code": "not_found", "message": "no such document"})
	}))

	doc, err := c.Get(context.Background(), CollectionReports, "missing")
	if err != nil {
		t.Fatalf("Get on missing document should not error, got: %v", err)
	}
	if doc != nil {
		t.Errorf("doc: got %v, want nil", doc)
	}
}

func TestGetDecodes(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"title": "cracked grate", "severity": "high"})
	}))

	doc, err := c.Get(context.Background(), CollectionReports, "r1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	var out struct {
		Title    string `json:"title"`
		Severity string `json:"severity"`
	}
	if err := doc.Decode(&out); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if out.Title != "cracked grate" || out.Severity != "high" {
		t.Errorf("decoded: got %+v", out)
	}
}

func TestListQueryParams(t *testing.T) {
	var gotQuery string

	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		json.NewEncoder(w).Encode(map[string]any{
			"documents": []map[string]any{
				{"id": "r1", "data": map[string]any{"title": "one"}},
				{"id": "r2", "data": map[string]any{"title": "two"}},
			},
		})
	}))

	docs, err := c.List(context.Background(), CollectionReports, Query{
		Filters:    []Filter{{Field: "userId", Value: "u1"}},
		OrderBy:    "createdAt",
		Descending: true,
		Limit:      50,
	})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("docs: got %d, want 2", len(docs))
	}
	if docs[0].ID != "r1" || docs[1].ID != "r2" {
		t.Errorf("ids: got %s, %s", docs[0].ID, docs[1].ID)
	}

	params := map[string]string{
		"filter":   "userId=u1",
		"order_by": "createdAt",
		"order":    "desc",
		"limit":    "50",
	}
	for k, want := range params {
		req := httptest.NewRequest("GET", "/?"+gotQuery, nil)
		if got := req.URL.Query().Get(k); got != want {
			t.Errorf("query param %s: got %q, want %q", k, got, want)
		}
	}
}

func TestErrorClassification(t *testing.T) {
	cases := []struct {
		status int
		want   error
	}{
		{http.StatusUnauthorized, ErrUnauthorized},
		{http.StatusForbidden, ErrForbidden},
		{http.StatusNotFound, ErrNotFound},
	}

	for _, tc := range cases {
		c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
			json.NewEncoder(w).Encode(map[string]string{"code": "err", "message": "denied"})
		}))

		_, err := c.List(context.Background(), CollectionReports, Query{})
		if !errors.Is(err, tc.want) {
			t.Errorf("status %d: got %v, want %v", tc.status, err, tc.want)
		}
	}
}

func TestUploadBlob(t *testing.T) {
	var gotMIME, gotName string
	var gotData []byte

	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMIME = r.Header.Get("Content-Type")
		gotName = r.URL.Query().Get("name")
		gotData, _ = io.ReadAll(r.Body)
		json.NewEncoder(w).Encode(map[string]string{"url": "https://blobs.example/abc.jpg"})
	}))

	data := []byte{0xff, 0xd8, 0xff}
	url, err := c.UploadBlob(context.Background(), "photo-1.jpg", "image/jpeg", data)
	if err != nil {
		t.Fatalf("UploadBlob failed: %v", err)
	}
	if url != "https://blobs.example/abc.jpg" {
		t.Errorf("url: got %q", url)
	}
	if gotMIME != "image/jpeg" || gotName != "photo-1.jpg" {
		t.Errorf("mime/name: got %q, %q", gotMIME, gotName)
	}
	if len(gotData) != len(data) {
		t.Errorf("body: got %d bytes, want %d", len(gotData), len(data))
	}
}

func TestHealthCheckAndProbe(t *testing.T) {
	healthy := atomic.Bool{}
	healthy.Store(true)

	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/healthz" {
			t.Errorf("path: got %q", r.URL.Path)
		}
		if !healthy.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}))

	if !c.Probe(context.Background()) {
		t.Error("probe should report healthy")
	}
	healthy.Store(false)
	if c.Probe(context.Background()) {
		t.Error("probe should report unhealthy")
	}
}

func TestSubscribeDeliversAndStops(t *testing.T) {
	var polls atomic.Int64

	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		polls.Add(1)
		json.NewEncoder(w).Encode(map[string]any{
			"documents": []map[string]any{{"id": "d1", "data": map[string]any{"status": "normal"}}},
		})
	}))

	delivered := make(chan int, 16)
	stop := c.Subscribe(context.Background(), CollectionDrains, Query{}, 5*time.Millisecond, func(docs []Document) {
		delivered <- len(docs)
	})

	select {
	case n := <-delivered:
		if n != 1 {
			t.Errorf("snapshot size: got %d, want 1", n)
		}
	case <-time.After(time.Second):
		t.Fatal("no snapshot delivered")
	}

	stop()
	stop() // idempotent

	settled := polls.Load()
	time.Sleep(50 * time.Millisecond)
	// one in-flight poll may land after stop
	if after := polls.Load(); after > settled+1 {
		t.Errorf("polling continued after stop: %d -> %d", settled, after)
	}
}
