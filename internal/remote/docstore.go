// Package remote defines the remote document store the core writes
// through, plus the production Firestore implementation.
package remote

import (
	"context"

	"github.com/sgtlogistica/tripcore/internal/models"
)

// Document pairs a remote document id with its field set.
type Document struct {
	ID     string
	Fields models.Fields
}

// Query describes a single-field equality query, the only shape the mobile
// screens use (trips by user, expenses by trip).
type Query struct {
	Collection string
	Field      string
	Value      any
}

// DocumentStore is the authoritative backend. Implementations must
// classify failures: unreachable backends yield CONNECTIVITY_ERROR (the
// caller queues the write), application-level refusals yield
// REMOTE_REJECTED (the caller surfaces them, never queues).
type DocumentStore interface {
	// CreateDocument stores a new document and returns its remote id.
	CreateDocument(ctx context.Context, collection string, fields models.Fields) (string, error)

	// UpdateDocument overwrites fields of an existing document.
	// Last write wins; there is no version compare.
	UpdateDocument(ctx context.Context, collection, id string, fields models.Fields) error

	// GetDocument returns the field set for id, or a NOT_FOUND error.
	GetDocument(ctx context.Context, collection, id string) (models.Fields, error)

	// QueryByField returns all documents where field equals value.
	QueryByField(ctx context.Context, collection, field string, value any) ([]Document, error)

	// Subscribe delivers query results to onNext until the returned
	// cancel func is called or ctx ends. Errors go to onError; the
	// subscription keeps polling after transient failures.
	Subscribe(ctx context.Context, q Query, onNext func([]Document), onError func(error)) (cancel func())
}
