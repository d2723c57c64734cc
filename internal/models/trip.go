package models

import (
	"fmt"
	"time"
)

// TripStatus represents the lifecycle state of a trip.
type TripStatus string

const (
	TripStatusInProgress TripStatus = "in_progress"
	TripStatusFinalized  TripStatus = "finalized"
)

// CollectionTrips is the remote document store collection for trips.
const CollectionTrips = "trips"

// Trip represents a logistics journey record owned by a user.
type Trip struct {
	ID          string     `json:"id"`
	Origin      string     `json:"origin"`
	Destination string     `json:"destination"`
	Company     string     `json:"company"`
	UserID      string     `json:"user_id"`
	Status      TripStatus `json:"status"`
	CreatedAt   int64      `json:"created_at"`
	FinalizedAt *int64     `json:"finalized_at,omitempty"`
	// Pending is true while the trip was created offline and has not yet
	// been acknowledged by the remote store.
	Pending bool `json:"pending"`
}

// Validate checks the required fields for a trip write.
func (t *Trip) Validate() error {
	if t.Origin == "" {
		return fmt.Errorf("trip: origin is required")
	}
	if t.Destination == "" {
		return fmt.Errorf("trip: destination is required")
	}
	if t.Company == "" {
		return fmt.Errorf("trip: company is required")
	}
	if t.UserID == "" {
		return fmt.Errorf("trip: user id is required")
	}
	return nil
}

// CreatedAtTime returns CreatedAt as time.Time.
func (t *Trip) CreatedAtTime() time.Time {
	return time.Unix(t.CreatedAt, 0)
}

// Finalize marks the trip as finalized at the given instant.
func (t *Trip) Finalize(at time.Time) {
	ts := at.Unix()
	t.Status = TripStatusFinalized
	t.FinalizedAt = &ts
}

// Fields converts the trip to its document representation. The ID is not
// included; it is carried separately by the store.
func (t *Trip) Fields() Fields {
	f := Fields{
		"origin":      t.Origin,
		"destination": t.Destination,
		"company":     t.Company,
		"user_id":     t.UserID,
		"status":      string(t.Status),
		"created_at":  t.CreatedAt,
		"pending":     t.Pending,
	}
	if t.FinalizedAt != nil {
		f["finalized_at"] = *t.FinalizedAt
	}
	return f
}

// TripFromFields rebuilds a trip from its document representation.
func TripFromFields(id string, f Fields) *Trip {
	t := &Trip{
		ID:          id,
		Origin:      f.StringField("origin"),
		Destination: f.StringField("destination"),
		Company:     f.StringField("company"),
		UserID:      f.StringField("user_id"),
		Status:      TripStatus(f.StringField("status")),
		CreatedAt:   f.Int64Field("created_at"),
		Pending:     f.BoolField("pending"),
	}
	if _, ok := f["finalized_at"]; ok {
		ts := f.Int64Field("finalized_at")
		t.FinalizedAt = &ts
	}
	return t
}
