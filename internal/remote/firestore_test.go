// Package remote tests for the Firestore REST client.
package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sgtlogistica/tripcore/internal/apperr"
	"github.com/sgtlogistica/tripcore/internal/models"
)

// newTestClient points a client at a stub server.
func newTestClient(server *httptest.Server) *FirestoreClient {
	return NewFirestoreClient(FirestoreConfig{
		ProjectID:    "sgt-logistica",
		APIKey:       "test-key",
		Endpoint:     server.URL,
		PollInterval: 10 * time.Millisecond,
	})
}

// TestFirestoreClient_CreateDocument verifies id extraction from the
// document name.
func TestFirestoreClient_CreateDocument(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		var doc firestoreDocument
		if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if _, ok := doc.Fields["origin"]; !ok {
			t.Error("request missing origin field")
		}
		fmt.Fprint(w, `{"name":"projects/sgt-logistica/databases/(default)/documents/trips/abc123"}`)
	}))
	defer server.Close()

	client := newTestClient(server)
	id, err := client.CreateDocument(context.Background(), "trips", models.Fields{
		"origin": "CDMX", "destination": "Monterrey",
	})
	if err != nil {
		t.Fatalf("CreateDocument failed: %v", err)
	}
	if id != "abc123" {
		t.Errorf("id = %q, want abc123", id)
	}
}

// TestFirestoreClient_Rejection verifies 4xx maps to REMOTE_REJECTED.
func TestFirestoreClient_Rejection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"status":"PERMISSION_DENIED"}}`, http.StatusForbidden)
	}))
	defer server.Close()

	client := newTestClient(server)
	_, err := client.CreateDocument(context.Background(), "trips", models.Fields{"origin": "CDMX"})
	if !apperr.Is(err, apperr.ErrRemoteRejected) {
		t.Fatalf("error = %v, want REMOTE_REJECTED", err)
	}
}

// TestFirestoreClient_ServerErrorIsConnectivity verifies 5xx and 429 map
// to CONNECTIVITY_ERROR so the caller retries or queues.
func TestFirestoreClient_ServerErrorIsConnectivity(t *testing.T) {
	for _, status := range []int{http.StatusInternalServerError, http.StatusServiceUnavailable, http.StatusTooManyRequests} {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))

		client := newTestClient(server)
		err := client.UpdateDocument(context.Background(), "trips", "t1", models.Fields{"status": "finalized"})
		if !apperr.Is(err, apperr.ErrConnectivity) {
			t.Errorf("status %d: error = %v, want CONNECTIVITY_ERROR", status, err)
		}
		server.Close()
	}
}

// TestFirestoreClient_UnreachableIsConnectivity verifies transport errors
// map to CONNECTIVITY_ERROR.
func TestFirestoreClient_UnreachableIsConnectivity(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // nothing listens anymore

	client := newTestClient(server)
	_, err := client.GetDocument(context.Background(), "trips", "t1")
	if !apperr.Is(err, apperr.ErrConnectivity) {
		t.Fatalf("error = %v, want CONNECTIVITY_ERROR", err)
	}
}

// TestFirestoreClient_GetNotFound verifies 404 maps to NOT_FOUND.
func TestFirestoreClient_GetNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	client := newTestClient(server)
	_, err := client.GetDocument(context.Background(), "trips", "nope")
	if !apperr.Is(err, apperr.ErrNotFound) {
		t.Fatalf("error = %v, want NOT_FOUND", err)
	}
}

// TestFirestoreClient_QueryByField verifies query decoding.
func TestFirestoreClient_QueryByField(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		if _, ok := body["structuredQuery"]; !ok {
			t.Error("request missing structuredQuery")
		}
		fmt.Fprint(w, `[
			{"document":{"name":"p/d/documents/expenses/e1","fields":{
				"trip_id":{"stringValue":"t1"},
				"amount":{"stringValue":"500.00"},
				"created_at":{"integerValue":"1700000000"},
				"geo":{"mapValue":{"fields":{"lat":{"doubleValue":19.43},"lng":{"doubleValue":-99.13}}}}
			}}},
			{"readTime":"2024-05-10T00:00:00Z"}
		]`)
	}))
	defer server.Close()

	client := newTestClient(server)
	docs, err := client.QueryByField(context.Background(), "expenses", "trip_id", "t1")
	if err != nil {
		t.Fatalf("QueryByField failed: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("got %d docs, want 1", len(docs))
	}
	if docs[0].ID != "e1" {
		t.Errorf("id = %q, want e1", docs[0].ID)
	}
	if docs[0].Fields.StringField("amount") != "500.00" {
		t.Errorf("amount = %v", docs[0].Fields["amount"])
	}
	if docs[0].Fields.Int64Field("created_at") != 1700000000 {
		t.Errorf("created_at = %v", docs[0].Fields["created_at"])
	}
	geo, ok := docs[0].Fields["geo"].(map[string]any)
	if !ok {
		t.Fatalf("geo = %T, want map", docs[0].Fields["geo"])
	}
	if geo["lat"] != 19.43 {
		t.Errorf("lat = %v", geo["lat"])
	}
}

// TestFirestoreClient_Subscribe verifies the polling subscription delivers
// results and stops on cancel.
func TestFirestoreClient_Subscribe(t *testing.T) {
	var polls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		polls.Add(1)
		fmt.Fprint(w, `[{"document":{"name":"p/d/documents/trips/t1","fields":{"origin":{"stringValue":"CDMX"}}}}]`)
	}))
	defer server.Close()

	client := newTestClient(server)

	updates := make(chan []Document, 16)
	cancel := client.Subscribe(context.Background(), Query{Collection: "trips", Field: "user_id", Value: "u1"},
		func(docs []Document) { updates <- docs },
		func(err error) { t.Errorf("unexpected subscribe error: %v", err) })

	select {
	case docs := <-updates:
		if len(docs) != 1 || docs[0].ID != "t1" {
			t.Errorf("docs = %+v", docs)
		}
	case <-time.After(time.Second):
		t.Fatal("no update delivered")
	}

	cancel()
	settled := polls.Load()
	time.Sleep(50 * time.Millisecond)
	// A poll already in flight may land, but the loop must stop.
	if polls.Load() > settled+1 {
		t.Errorf("polling continued after cancel: %d -> %d", settled, polls.Load())
	}
}

// TestEncodeDecodeValue verifies the typed value round trip.
func TestEncodeDecodeValue(t *testing.T) {
	fields := models.Fields{
		"origin":     "CDMX",
		"pending":    true,
		"created_at": int64(1700000000),
		"score":      1.5,
		"geo":        map[string]any{"lat": 19.43, "lng": -99.13},
	}

	encoded := encodeFields(fields)
	decoded := decodeFields(encoded)

	if decoded.StringField("origin") != "CDMX" {
		t.Errorf("origin = %v", decoded["origin"])
	}
	if !decoded.BoolField("pending") {
		t.Error("pending lost in round trip")
	}
	if decoded.Int64Field("created_at") != 1700000000 {
		t.Errorf("created_at = %v", decoded["created_at"])
	}
	if decoded["score"] != 1.5 {
		t.Errorf("score = %v", decoded["score"])
	}
	geo, ok := decoded["geo"].(map[string]any)
	if !ok || geo["lat"] != 19.43 {
		t.Errorf("geo = %v", decoded["geo"])
	}
}
