package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ExpenseStatus represents the review state of an expense.
type ExpenseStatus string

const (
	ExpenseStatusPendingReview ExpenseStatus = "pending_review"
	ExpenseStatusApproved      ExpenseStatus = "approved"
	ExpenseStatusRejected      ExpenseStatus = "rejected"
)

// CollectionExpenses is the remote document store collection for expenses.
const CollectionExpenses = "expenses"

// GeoPoint is an optional latitude/longitude pair captured with an expense.
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Expense represents a cost entry attached to a trip.
type Expense struct {
	ID       string          `json:"id"`
	TripID   string          `json:"trip_id"`
	UserID   string          `json:"user_id"`
	Category string          `json:"category"`
	Amount   decimal.Decimal `json:"amount"`
	Geo      *GeoPoint       `json:"geo,omitempty"`
	// Company is a denormalized copy of the parent trip's company at
	// creation time.
	Company   string        `json:"company"`
	Status    ExpenseStatus `json:"status"`
	CreatedAt int64         `json:"created_at"`
}

// Validate checks the required fields for an expense write.
func (e *Expense) Validate() error {
	if e.TripID == "" {
		return fmt.Errorf("expense: trip reference is required")
	}
	if e.Category == "" {
		return fmt.Errorf("expense: category is required")
	}
	if e.Amount.IsNegative() {
		return fmt.Errorf("expense: amount must be non-negative")
	}
	return nil
}

// CreatedAtTime returns CreatedAt as time.Time.
func (e *Expense) CreatedAtTime() time.Time {
	return time.Unix(e.CreatedAt, 0)
}

// Fields converts the expense to its document representation. The amount is
// stored as a decimal string so it round-trips without float drift.
func (e *Expense) Fields() Fields {
	f := Fields{
		"trip_id":    e.TripID,
		"user_id":    e.UserID,
		"category":   e.Category,
		"amount":     e.Amount.String(),
		"company":    e.Company,
		"status":     string(e.Status),
		"created_at": e.CreatedAt,
	}
	if e.Geo != nil {
		f["geo"] = map[string]any{"lat": e.Geo.Lat, "lng": e.Geo.Lng}
	}
	return f
}

// ExpenseFromFields rebuilds an expense from its document representation.
// A missing or malformed amount is treated as zero so one corrupt record
// cannot fail a whole aggregation.
func ExpenseFromFields(id string, f Fields) *Expense {
	e := &Expense{
		ID:        id,
		TripID:    f.StringField("trip_id"),
		UserID:    f.StringField("user_id"),
		Category:  f.StringField("category"),
		Amount:    AmountFromField(f["amount"]),
		Company:   f.StringField("company"),
		Status:    ExpenseStatus(f.StringField("status")),
		CreatedAt: f.Int64Field("created_at"),
	}
	if geo, ok := f["geo"].(map[string]any); ok {
		point := &GeoPoint{}
		if lat, ok := geo["lat"].(float64); ok {
			point.Lat = lat
		}
		if lng, ok := geo["lng"].(float64); ok {
			point.Lng = lng
		}
		e.Geo = point
	}
	return e
}

// AmountFromField parses an amount value from a document field. Amounts are
// written as decimal strings, but legacy records may carry JSON numbers.
// Anything unparsable yields zero.
func AmountFromField(v any) decimal.Decimal {
	switch val := v.(type) {
	case string:
		d, err := decimal.NewFromString(val)
		if err != nil {
			return decimal.Zero
		}
		return d
	case float64:
		return decimal.NewFromFloat(val)
	case int64:
		return decimal.NewFromInt(val)
	case int:
		return decimal.NewFromInt(int64(val))
	}
	return decimal.Zero
}
