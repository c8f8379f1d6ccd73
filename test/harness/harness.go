// Package harness provides an in-process document server for end-to-end
// tests: the full HTTP API backed by an in-memory SQLite database, so
// reconcile passes can be exercised against real storage without a network.
package harness

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE documents (
    id TEXT PRIMARY KEY,
    collection TEXT NOT NULL,
    data TEXT NOT NULL,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX idx_documents_collection ON documents(collection);

CREATE TABLE blobs (
    name TEXT NOT NULL,
    mime TEXT NOT NULL,
    size INTEGER NOT NULL
);
`

// Server is an in-memory document server plus its HTTP front end.
type Server struct {
	t      *testing.T
	db     *sql.DB
	http   *httptest.Server
	apiKey string

	mu      sync.Mutex
	nextID  int64
	healthy atomic.Bool

	// FailCreates makes every document create return 500, for testing
	// retry behavior.
	FailCreates atomic.Bool
}

// New starts a harness server. It is shut down via t.Cleanup.
func New(t *testing.T, apiKey string) *Server {
	t.Helper()

	conn, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open harness db: %v", err)
	}
	// :memory: databases are per-connection
	conn.SetMaxOpenConns(1)
	if _, err := conn.Exec(schema); err != nil {
		t.Fatalf("create harness schema: %v", err)
	}

	s := &Server{t: t, db: conn, apiKey: apiKey}
	s.healthy.Store(true)
	s.http = httptest.NewServer(http.HandlerFunc(s.route))
	t.Cleanup(func() {
		s.http.Close()
		conn.Close()
	})
	return s
}

// URL returns the base URL clients should point at.
func (s *Server) URL() string {
	return s.http.URL
}

// SetHealthy toggles the /healthz response, simulating an unreachable or
// degraded server.
func (s *Server) SetHealthy(ok bool) {
	s.healthy.Store(ok)
}

// Document reads a stored document body, failing the test when absent.
func (s *Server) Document(collection, id string) map[string]any {
	s.t.Helper()
	var data string
	err := s.db.QueryRow(`SELECT data FROM documents WHERE collection = ? AND id = ?`, collection, id).Scan(&data)
	if err != nil {
		s.t.Fatalf("harness document %s/%s: %v", collection, id, err)
	}
	var doc map[string]any
	if err := json.Unmarshal([]byte(data), &doc); err != nil {
		s.t.Fatalf("harness document %s/%s: %v", collection, id, err)
	}
	return doc
}

// Count returns the number of documents in a collection.
func (s *Server) Count(collection string) int {
	s.t.Helper()
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM documents WHERE collection = ?`, collection).Scan(&n); err != nil {
		s.t.Fatalf("harness count %s: %v", collection, err)
	}
	return n
}

// BlobCount returns the number of uploaded blobs.
func (s *Server) BlobCount() int {
	s.t.Helper()
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM blobs`).Scan(&n); err != nil {
		s.t.Fatalf("harness blob count: %v", err)
	}
	return n
}

// Seed inserts a document directly, bypassing the HTTP surface.
func (s *Server) Seed(collection, id string, doc map[string]any) {
	s.t.Helper()
	data, err := json.Marshal(doc)
	if err != nil {
		s.t.Fatalf("harness seed: %v", err)
	}
	if _, err := s.db.Exec(`INSERT INTO documents (id, collection, data) VALUES (?, ?, ?)`,
		id, collection, string(data)); err != nil {
		s.t.Fatalf("harness seed: %v", err)
	}
}

func (s *Server) route(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/healthz" {
		if !s.healthy.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}

	if got := r.Header.Get("Authorization"); got != "Bearer "+s.apiKey {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"code": "unauthorized", "message": "bad api key"})
		return
	}

	switch {
	case r.URL.Path == "/v1/blobs" && r.Method == "POST":
		s.handleBlob(w, r)
	case strings.HasPrefix(r.URL.Path, "/v1/collections/"):
		s.handleDocuments(w, r)
	default:
		writeJSON(w, http.StatusNotFound, map[string]string{"code": "not_found", "message": "no such route"})
	}
}

func (s *Server) handleBlob(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	size := r.ContentLength
	if _, err := s.db.Exec(`INSERT INTO blobs (name, mime, size) VALUES (?, ?, ?)`,
		name, r.Header.Get("Content-Type"), size); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"code": "internal", "message": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": s.http.URL + "/blobs/" + name})
}

func (s *Server) handleDocuments(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/collections/")
	parts := strings.Split(rest, "/")
	if len(parts) < 2 || parts[1] != "documents" {
		writeJSON(w, http.StatusNotFound, map[string]string{"code": "not_found", "message": "no such route"})
		return
	}
	collection := parts[0]

	switch {
	case len(parts) == 2 && r.Method == "POST":
		s.createDocument(w, r, collection)
	case len(parts) == 2 && r.Method == "GET":
		s.listDocuments(w, r, collection)
	case len(parts) == 3 && r.Method == "GET":
		s.getDocument(w, collection, parts[2])
	case len(parts) == 3 && r.Method == "PATCH":
		s.patchDocument(w, r, collection, parts[2])
	case len(parts) == 3 && r.Method == "DELETE":
		s.deleteDocument(w, collection, parts[2])
	default:
		writeJSON(w, http.StatusNotFound, map[string]string{"code": "not_found", "message": "no such route"})
	}
}

func (s *Server) createDocument(w http.ResponseWriter, r *http.Request, collection string) {
	if s.FailCreates.Load() {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"code": "internal", "message": "create disabled"})
		return
	}

	var doc map[string]any
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"code": "bad_request", "message": err.Error()})
		return
	}

	s.mu.Lock()
	s.nextID++
	id := fmt.Sprintf("%s-%d", collection, s.nextID)
	s.mu.Unlock()

	data, _ := json.Marshal(doc)
	if _, err := s.db.Exec(`INSERT INTO documents (id, collection, data) VALUES (?, ?, ?)`,
		id, collection, string(data)); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"code": "internal", "message": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id})
}

func (s *Server) getDocument(w http.ResponseWriter, collection, id string) {
	var data string
	err := s.db.QueryRow(`SELECT data FROM documents WHERE collection = ? AND id = ?`, collection, id).Scan(&data)
	if err == sql.ErrNoRows {
		writeJSON(w, http.StatusNotFound, map[string]string{"code": "not_found", "message": "no such document"})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"code": "internal", "message": err.Error()})
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(data))
}

func (s *Server) patchDocument(w http.ResponseWriter, r *http.Request, collection, id string) {
	var patch map[string]any
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"code": "bad_request", "message": err.Error()})
		return
	}

	var data string
	err := s.db.QueryRow(`SELECT data FROM documents WHERE collection = ? AND id = ?`, collection, id).Scan(&data)
	if err == sql.ErrNoRows {
		writeJSON(w, http.StatusNotFound, map[string]string{"code": "not_found", "message": "no such document"})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"code": "internal", "message": err.Error()})
		return
	}

	var doc map[string]any
	json.Unmarshal([]byte(data), &doc)
	for k, v := range patch {
		doc[k] = v
	}
	merged, _ := json.Marshal(doc)
	if _, err := s.db.Exec(`UPDATE documents SET data = ? WHERE collection = ? AND id = ?`,
		string(merged), collection, id); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"code": "internal", "message": err.Error()})
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) deleteDocument(w http.ResponseWriter, collection, id string) {
	if _, err := s.db.Exec(`DELETE FROM documents WHERE collection = ? AND id = ?`, collection, id); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"code": "internal", "message": err.Error()})
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) listDocuments(w http.ResponseWriter, r *http.Request, collection string) {
	query := `SELECT id, data FROM documents WHERE collection = ?`
	args := []any{collection}

	for _, f := range r.URL.Query()["filter"] {
		field, value, ok := strings.Cut(f, "=")
		if !ok {
			writeJSON(w, http.StatusBadRequest, map[string]string{"code": "bad_request", "message": "malformed filter"})
			return
		}
		query += ` AND json_extract(data, '$.` + field + `') = ?`
		args = append(args, value)
	}

	if orderBy := r.URL.Query().Get("order_by"); orderBy != "" {
		query += ` ORDER BY json_extract(data, '$.` + orderBy + `')`
		if r.URL.Query().Get("order") == "desc" {
			query += ` DESC`
		}
	} else {
		query += ` ORDER BY created_at`
	}

	if limit := r.URL.Query().Get("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 1 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"code": "bad_request", "message": "bad limit"})
			return
		}
		query += ` LIMIT ` + strconv.Itoa(n)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"code": "internal", "message": err.Error()})
		return
	}
	defer rows.Close()

	type docEntry struct {
		ID   string          `json:"id"`
		Data json.RawMessage `json:"data"`
	}
	docs := []docEntry{}
	for rows.Next() {
		var id, data string
		if err := rows.Scan(&id, &data); err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"code": "internal", "message": err.Error()})
			return
		}
		docs = append(docs, docEntry{ID: id, Data: json.RawMessage(data)})
	}

	writeJSON(w, http.StatusOK, map[string]any{"documents": docs})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
