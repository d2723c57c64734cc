package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sgtlogistica/tripcore/internal/apperr"
	"github.com/sgtlogistica/tripcore/internal/models"
)

// FirestoreConfig holds Firestore REST connection configuration.
type FirestoreConfig struct {
	ProjectID string
	APIKey    string
	// Endpoint overrides the Google endpoint, used by tests and emulators.
	Endpoint string
	// PollInterval controls Subscribe's polling cadence. Zero means 15s.
	PollInterval time.Duration
}

// FirestoreClient implements DocumentStore against the Firestore REST API.
type FirestoreClient struct {
	config     FirestoreConfig
	httpClient *http.Client
}

// NewFirestoreClient creates a new FirestoreClient.
func NewFirestoreClient(config FirestoreConfig) *FirestoreClient {
	if config.Endpoint == "" {
		config.Endpoint = "https://firestore.googleapis.com"
	}
	if config.PollInterval <= 0 {
		config.PollInterval = 15 * time.Second
	}
	return &FirestoreClient{
		config: config,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:    10,
				IdleConnTimeout: 30 * time.Second,
			},
		},
	}
}

// documentsPath returns the REST path for the documents root.
func (c *FirestoreClient) documentsPath() string {
	return fmt.Sprintf("%s/v1/projects/%s/databases/(default)/documents",
		c.config.Endpoint, c.config.ProjectID)
}

// firestoreDocument mirrors the REST representation of a document.
type firestoreDocument struct {
	Name   string                     `json:"name,omitempty"`
	Fields map[string]json.RawMessage `json:"fields,omitempty"`
}

// CreateDocument stores a new document and returns the server-assigned id.
func (c *FirestoreClient) CreateDocument(ctx context.Context, collection string, fields models.Fields) (string, error) {
	url := fmt.Sprintf("%s/%s?key=%s", c.documentsPath(), collection, c.config.APIKey)

	body, err := json.Marshal(firestoreDocument{Fields: encodeFields(fields)})
	if err != nil {
		return "", apperr.Wrap(apperr.ErrRemoteRejected, "encode document", err)
	}

	var doc firestoreDocument
	if err := c.do(ctx, http.MethodPost, url, body, &doc); err != nil {
		return "", err
	}

	// Name has the form projects/P/databases/(default)/documents/coll/id.
	idx := strings.LastIndex(doc.Name, "/")
	if idx < 0 {
		return "", apperr.Newf(apperr.ErrRemoteRejected, "malformed document name %q", doc.Name)
	}
	return doc.Name[idx+1:], nil
}

// UpdateDocument overwrites the given fields of an existing document.
func (c *FirestoreClient) UpdateDocument(ctx context.Context, collection, id string, fields models.Fields) error {
	params := make([]string, 0, len(fields)+1)
	params = append(params, "key="+c.config.APIKey)
	for name := range fields {
		params = append(params, "updateMask.fieldPaths="+name)
	}
	url := fmt.Sprintf("%s/%s/%s?%s", c.documentsPath(), collection, id, strings.Join(params, "&"))

	body, err := json.Marshal(firestoreDocument{Fields: encodeFields(fields)})
	if err != nil {
		return apperr.Wrap(apperr.ErrRemoteRejected, "encode document", err)
	}

	return c.do(ctx, http.MethodPatch, url, body, nil)
}

// GetDocument returns the field set for id.
func (c *FirestoreClient) GetDocument(ctx context.Context, collection, id string) (models.Fields, error) {
	url := fmt.Sprintf("%s/%s/%s?key=%s", c.documentsPath(), collection, id, c.config.APIKey)

	var doc firestoreDocument
	if err := c.do(ctx, http.MethodGet, url, nil, &doc); err != nil {
		return nil, err
	}
	return decodeFields(doc.Fields), nil
}

// QueryByField runs a single-field equality query.
func (c *FirestoreClient) QueryByField(ctx context.Context, collection, field string, value any) ([]Document, error) {
	url := fmt.Sprintf("%s:runQuery?key=%s", c.documentsPath(), c.config.APIKey)

	query := map[string]any{
		"structuredQuery": map[string]any{
			"from": []map[string]any{{"collectionId": collection}},
			"where": map[string]any{
				"fieldFilter": map[string]any{
					"field": map[string]any{"fieldPath": field},
					"op":    "EQUAL",
					"value": encodeValue(value),
				},
			},
		},
	}
	body, err := json.Marshal(query)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrRemoteRejected, "encode query", err)
	}

	var rows []struct {
		Document *firestoreDocument `json:"document"`
	}
	if err := c.do(ctx, http.MethodPost, url, body, &rows); err != nil {
		return nil, err
	}

	docs := make([]Document, 0, len(rows))
	for _, row := range rows {
		if row.Document == nil {
			continue
		}
		idx := strings.LastIndex(row.Document.Name, "/")
		docs = append(docs, Document{
			ID:     row.Document.Name[idx+1:],
			Fields: decodeFields(row.Document.Fields),
		})
	}
	return docs, nil
}

// Subscribe polls the query on a ticker. Firestore's streaming listen
// protocol needs gRPC; the REST core settles for polling, which is enough
// to keep snapshots fresh while the app is foregrounded.
func (c *FirestoreClient) Subscribe(ctx context.Context, q Query, onNext func([]Document), onError func(error)) (cancel func()) {
	subCtx, stop := context.WithCancel(ctx)

	go func() {
		ticker := time.NewTicker(c.config.PollInterval)
		defer ticker.Stop()

		poll := func() {
			docs, err := c.QueryByField(subCtx, q.Collection, q.Field, q.Value)
			if err != nil {
				if subCtx.Err() == nil && onError != nil {
					onError(err)
				}
				return
			}
			if onNext != nil {
				onNext(docs)
			}
		}

		poll()
		for {
			select {
			case <-subCtx.Done():
				return
			case <-ticker.C:
				poll()
			}
		}
	}()

	return stop
}

// do executes a request and decodes the response into out when non-nil.
func (c *FirestoreClient) do(ctx context.Context, method, url string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return apperr.Wrap(apperr.ErrRemoteRejected, "build request", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperr.Wrap(apperr.ErrConnectivity, "remote store unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(resp.Body)
		return classifyStatus(resp.StatusCode, string(payload))
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return apperr.Wrap(apperr.ErrConnectivity, "read response", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return apperr.Wrap(apperr.ErrRemoteRejected, "decode response", err)
	}
	return nil
}

// classifyStatus maps an HTTP status to the error taxonomy. Timeouts,
// throttling and server errors are retryable connectivity failures;
// everything else the server refused outright.
func classifyStatus(status int, body string) error {
	switch {
	case status == http.StatusNotFound:
		return apperr.Newf(apperr.ErrNotFound, "document not found")
	case status == http.StatusRequestTimeout,
		status == http.StatusTooManyRequests,
		status >= 500:
		return apperr.Newf(apperr.ErrConnectivity, "remote store unavailable (status %d)", status)
	default:
		return apperr.Newf(apperr.ErrRemoteRejected, "remote store rejected write (status %d): %s", status, truncate(body, 200))
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// encodeFields converts a field set to Firestore typed values.
func encodeFields(fields models.Fields) map[string]json.RawMessage {
	out := make(map[string]json.RawMessage, len(fields))
	for name, value := range fields {
		data, err := json.Marshal(encodeValue(value))
		if err != nil {
			continue
		}
		out[name] = data
	}
	return out
}

// encodeValue converts a Go value to the Firestore Value representation.
func encodeValue(value any) map[string]any {
	switch v := value.(type) {
	case nil:
		return map[string]any{"nullValue": nil}
	case string:
		return map[string]any{"stringValue": v}
	case bool:
		return map[string]any{"booleanValue": v}
	case int:
		return map[string]any{"integerValue": strconv.FormatInt(int64(v), 10)}
	case int64:
		return map[string]any{"integerValue": strconv.FormatInt(v, 10)}
	case float64:
		return map[string]any{"doubleValue": v}
	case map[string]any:
		inner := make(map[string]any, len(v))
		for k, val := range v {
			inner[k] = encodeValue(val)
		}
		return map[string]any{"mapValue": map[string]any{"fields": inner}}
	default:
		return map[string]any{"stringValue": fmt.Sprintf("%v", v)}
	}
}

// decodeFields converts Firestore typed values back to a plain field set.
func decodeFields(fields map[string]json.RawMessage) models.Fields {
	out := make(models.Fields, len(fields))
	for name, raw := range fields {
		var typed map[string]json.RawMessage
		if err := json.Unmarshal(raw, &typed); err != nil {
			continue
		}
		out[name] = decodeValue(typed)
	}
	return out
}

// decodeValue converts a Firestore Value back to a Go value.
func decodeValue(typed map[string]json.RawMessage) any {
	if raw, ok := typed["stringValue"]; ok {
		var s string
		json.Unmarshal(raw, &s)
		return s
	}
	if raw, ok := typed["booleanValue"]; ok {
		var b bool
		json.Unmarshal(raw, &b)
		return b
	}
	if raw, ok := typed["integerValue"]; ok {
		var s string
		json.Unmarshal(raw, &s)
		n, _ := strconv.ParseInt(s, 10, 64)
		return n
	}
	if raw, ok := typed["doubleValue"]; ok {
		var f float64
		json.Unmarshal(raw, &f)
		return f
	}
	if raw, ok := typed["mapValue"]; ok {
		var inner struct {
			Fields map[string]json.RawMessage `json:"fields"`
		}
		if err := json.Unmarshal(raw, &inner); err != nil {
			return nil
		}
		out := make(map[string]any, len(inner.Fields))
		for k, v := range inner.Fields {
			var t map[string]json.RawMessage
			if err := json.Unmarshal(v, &t); err != nil {
				continue
			}
			out[k] = decodeValue(t)
		}
		return out
	}
	return nil
}
