// Package gateway is the HTTP client for the remote document store. It is
// the only package that talks to the server: everything above it works in
// terms of collections, documents, and blobs.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Sentinel errors for common HTTP error classes.
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
)

// Client is an HTTP client for the SafeDrain document server.
type Client struct {
	BaseURL  string
	APIKey   string
	DeviceID string
	HTTP     *http.Client
}

// New creates a new gateway client.
func New(baseURL, apiKey, deviceID string) *Client {
	return &Client{
		BaseURL:  baseURL,
		APIKey:   apiKey,
		DeviceID: deviceID,
		HTTP:     &http.Client{Timeout: 30 * time.Second},
	}
}

// Collection names on the server.
const (
	CollectionReports  = "reports"
	CollectionDrains   = "drains"
	CollectionReadings = "readings"
	CollectionAlerts   = "alerts"
)

// Document is a raw server document plus its ID.
type Document struct {
	ID   string
	Data json.RawMessage
}

// Decode unmarshals the document body into v.
func (d Document) Decode(v any) error {
	if err := json.Unmarshal(d.Data, v); err != nil {
		return fmt.Errorf("decode document %s: %w", d.ID, err)
	}
	return nil
}

// Filter restricts a List query to documents whose field equals value.
type Filter struct {
	Field string
	Value string
}

// Query shapes a List request.
type Query struct {
	Filters    []Filter
	OrderBy    string
	Descending bool
	Limit      int
}

type createResponse struct {
	ID string `json:"id"`
}

// Create stores a new document and returns the server-assigned ID.
func (c *Client) Create(ctx context.Context, collection string, doc any) (string, error) {
	var resp createResponse
	path := fmt.Sprintf("/v1/collections/%s/documents", collection)
	if err := c.do(ctx, "POST", path, doc, &resp); err != nil {
		return "", err
	}
	if resp.ID == "" {
		return "", fmt.Errorf("create in %s: server returned empty document ID", collection)
	}
	return resp.ID, nil
}

// Update applies a partial-field patch to an existing document. Fields
// absent from the patch are left untouched on the server.
func (c *Client) Update(ctx context.Context, collection, id string, patch map[string]any) error {
	path := fmt.Sprintf("/v1/collections/%s/documents/%s", collection, id)
	return c.do(ctx, "PATCH", path, patch, nil)
}

// Get fetches a single document. Returns (nil, nil) when the document does
// not exist so callers can distinguish absence from transport failure.
func (c *Client) Get(ctx context.Context, collection, id string) (*Document, error) {
	path := fmt.Sprintf("/v1/collections/%s/documents/%s", collection, id)
	var raw json.RawMessage
	err := c.do(ctx, "GET", path, nil, &raw)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &Document{ID: id, Data: raw}, nil
}

type listResponse struct {
	Documents []struct {
		ID   string          `json:"id"`
		Data json.RawMessage `json:"data"`
	} `json:"documents"`
}

// List fetches documents from a collection, optionally filtered, ordered,
// and limited.
func (c *Client) List(ctx context.Context, collection string, q Query) ([]Document, error) {
	params := url.Values{}
	for _, f := range q.Filters {
		params.Add("filter", f.Field+"="+f.Value)
	}
	if q.OrderBy != "" {
		params.Set("order_by", q.OrderBy)
		if q.Descending {
			params.Set("order", "desc")
		}
	}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}

	path := fmt.Sprintf("/v1/collections/%s/documents", collection)
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	var resp listResponse
	if err := c.do(ctx, "GET", path, nil, &resp); err != nil {
		return nil, err
	}

	docs := make([]Document, 0, len(resp.Documents))
	for _, d := range resp.Documents {
		docs = append(docs, Document{ID: d.ID, Data: d.Data})
	}
	return docs, nil
}

// Delete removes a document. Missing documents are not an error.
func (c *Client) Delete(ctx context.Context, collection, id string) error {
	path := fmt.Sprintf("/v1/collections/%s/documents/%s", collection, id)
	err := c.do(ctx, "DELETE", path, nil, nil)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}

type uploadResponse struct {
	URL string `json:"url"`
}

// UploadBlob stores binary content (photos) and returns its public URL.
func (c *Client) UploadBlob(ctx context.Context, name string, mime string, data []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, "POST",
		c.BaseURL+"/v1/blobs?name="+url.QueryEscape(name), bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", mime)
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	if c.DeviceID != "" {
		req.Header.Set("X-Device-ID", c.DeviceID)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return "", fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return "", c.classifyError(resp.StatusCode, respBody)
	}

	var up uploadResponse
	if err := json.Unmarshal(respBody, &up); err != nil {
		return "", fmt.Errorf("unmarshal response: %w", err)
	}
	if up.URL == "" {
		return "", fmt.Errorf("blob upload: server returned empty URL")
	}
	return up.URL, nil
}

// HealthResponse is the response from GET /healthz.
type HealthResponse struct {
	Status string `json:"status"`
}

// HealthCheck hits the /healthz endpoint to verify server reachability.
// It is also the connectivity probe.
func (c *Client) HealthCheck(ctx context.Context) (*HealthResponse, error) {
	var resp HealthResponse
	if err := c.doNoAuth(ctx, "GET", "/healthz", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Probe reports whether the server is reachable and healthy. It fits the
// connectivity monitor's probe signature.
func (c *Client) Probe(ctx context.Context) bool {
	resp, err := c.HealthCheck(ctx)
	return err == nil && resp.Status == "ok"
}

// Subscribe polls a collection and delivers each snapshot to fn until the
// returned stop function is called or ctx is canceled. The stop function is
// idempotent. Delivery happens on the polling goroutine.
func (c *Client) Subscribe(ctx context.Context, collection string, q Query, interval time.Duration, fn func([]Document)) func() {
	subCtx, cancel := context.WithCancel(ctx)

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			docs, err := c.List(subCtx, collection, q)
			if err == nil {
				fn(docs)
			}

			select {
			case <-subCtx.Done():
				return
			case <-ticker.C:
			}
		}
	}()

	// context cancellation is already idempotent
	return cancel
}

// --- HTTP helpers ---

// apiError is the standard error body from the server.
type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *apiError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return e.Code
}

// do executes an authenticated HTTP request.
func (c *Client) do(ctx context.Context, method, path string, body, result any) error {
	return c.doRequest(ctx, method, path, body, result, true)
}

// doNoAuth executes an unauthenticated HTTP request.
func (c *Client) doNoAuth(ctx context.Context, method, path string, body, result any) error {
	return c.doRequest(ctx, method, path, body, result, false)
}

func (c *Client) doRequest(ctx context.Context, method, path string, body, result any, auth bool) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth && c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}
	if c.DeviceID != "" {
		req.Header.Set("X-Device-ID", c.DeviceID)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return c.classifyError(resp.StatusCode, respBody)
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}

	return nil
}

func (c *Client) classifyError(status int, body []byte) error {
	var apiErr apiError
	if json.Unmarshal(body, &apiErr) == nil && apiErr.Code != "" {
		switch status {
		case http.StatusUnauthorized:
			return fmt.Errorf("%w: %s", ErrUnauthorized, apiErr.Message)
		case http.StatusForbidden:
			return fmt.Errorf("%w: %s", ErrForbidden, apiErr.Message)
		case http.StatusNotFound:
			return fmt.Errorf("%w: %s", ErrNotFound, apiErr.Message)
		default:
			return &apiErr
		}
	}
	switch status {
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusForbidden:
		return ErrForbidden
	case http.StatusNotFound:
		return ErrNotFound
	}
	return fmt.Errorf("HTTP %d: %s", status, string(body))
}
