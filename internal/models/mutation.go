package models

import "strings"

// TempIDPrefix marks locally assigned identifiers for records created
// offline. Remote stores never issue ids with this prefix.
const TempIDPrefix = "tmp-"

// IsTempID reports whether id was assigned locally at enqueue time.
func IsTempID(id string) bool {
	return strings.HasPrefix(id, TempIDPrefix)
}

// EntityKind identifies which record type a queued mutation targets.
type EntityKind string

const (
	EntityTrip    EntityKind = "trip"
	EntityExpense EntityKind = "expense"
)

// OpKind identifies the operation a queued mutation performs.
type OpKind string

const (
	OpCreate OpKind = "create"
	OpUpdate OpKind = "update"
)

// MutationStatus tracks a queued mutation through its state machine:
// queued -> in_flight -> {committed | failed}.
type MutationStatus string

const (
	MutationQueued    MutationStatus = "queued"
	MutationInFlight  MutationStatus = "in_flight"
	MutationCommitted MutationStatus = "committed"
	MutationFailed    MutationStatus = "failed"
)

// QueuedMutation is a pending write not yet acknowledged by the remote
// document store. It is all-or-nothing: either the whole payload is
// committed remotely or the mutation stays queued.
type QueuedMutation struct {
	// ClientToken is a UUID v4 stamped at enqueue time. It survives
	// retries, so a replayed mutation stays traceable across drains.
	ClientToken string `json:"client_token"`
	// TempID is the local identifier assigned at enqueue time for creates
	// (tmp-N). It stays recognizable as temporary so callers can tell it
	// apart from remote-assigned ids.
	TempID string `json:"temp_id"`
	// TargetID is the remote document id for update operations. For a
	// create it is empty until the remote store assigns one.
	TargetID   string         `json:"target_id,omitempty"`
	Kind       EntityKind     `json:"kind"`
	Op         OpKind         `json:"op"`
	Payload    Fields         `json:"payload"`
	Status     MutationStatus `json:"status"`
	EnqueuedAt int64          `json:"enqueued_at"`
	// LastError records why the mutation landed on the failed side-list.
	LastError string `json:"last_error,omitempty"`
}

// Target returns the identifier the mutation addresses: the remote id for
// updates, the temporary id for creates.
func (m *QueuedMutation) Target() string {
	if m.Op == OpUpdate {
		return m.TargetID
	}
	return m.TempID
}

// Collection returns the remote collection for the mutation's entity kind.
func (m *QueuedMutation) Collection() string {
	if m.Kind == EntityExpense {
		return CollectionExpenses
	}
	return CollectionTrips
}
