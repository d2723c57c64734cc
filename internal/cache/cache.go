// Package cache provides the read-through snapshot layer: reads go to the
// remote document store when possible and fall back to the last stored
// snapshot, so the UI always has something to render.
package cache

import (
	"context"
	"encoding/json"

	"github.com/shopspring/decimal"

	"github.com/sgtlogistica/tripcore/internal/kv"
	"github.com/sgtlogistica/tripcore/internal/logging"
	"github.com/sgtlogistica/tripcore/internal/models"
	"github.com/sgtlogistica/tripcore/internal/remote"
)

// Cache serves trips and expenses with offline fallback. Snapshot keys
// are owned exclusively by this component.
type Cache struct {
	store  kv.Store
	remote remote.DocumentStore
	log    *logging.Logger
}

// New creates a Cache.
func New(store kv.Store, docs remote.DocumentStore) *Cache {
	return &Cache{
		store:  store,
		remote: docs,
		log:    logging.Get().WithComponent("cache"),
	}
}

func tripsKey(userID string) string    { return "trips_cache_" + userID }
func tripKey(tripID string) string     { return "trip_cache_" + tripID }
func expensesKey(tripID string) string { return "expenses_cache_" + tripID }

// Trips returns the user's trips, newest first as stored remotely. A
// successful remote read overwrites the snapshot; a failed one serves the
// last snapshot, or an empty list when none exists. Never returns an
// error for remote failures.
func (c *Cache) Trips(ctx context.Context, userID string) ([]*models.Trip, error) {
	docs, err := c.remote.QueryByField(ctx, models.CollectionTrips, "user_id", userID)
	if err != nil {
		c.log.Warn("serving trips from snapshot", map[string]any{"user_id": userID})
		return loadSnapshot[*models.Trip](c.store, tripsKey(userID))
	}

	trips := make([]*models.Trip, 0, len(docs))
	for _, doc := range docs {
		trips = append(trips, models.TripFromFields(doc.ID, doc.Fields))
	}
	c.saveSnapshot(tripsKey(userID), trips)
	return trips, nil
}

// Trip returns one trip by id with snapshot fallback. A trip absent both
// remotely and locally returns nil with no error.
func (c *Cache) Trip(ctx context.Context, tripID string) (*models.Trip, error) {
	fields, err := c.remote.GetDocument(ctx, models.CollectionTrips, tripID)
	if err != nil {
		raw, ok, loadErr := c.store.Get(tripKey(tripID))
		if loadErr != nil {
			return nil, loadErr
		}
		if !ok {
			return nil, nil
		}
		var trip models.Trip
		if jsonErr := json.Unmarshal([]byte(raw), &trip); jsonErr != nil {
			return nil, nil
		}
		return &trip, nil
	}

	trip := models.TripFromFields(tripID, fields)
	if data, err := json.Marshal(trip); err == nil {
		if err := c.store.Set(tripKey(tripID), string(data)); err != nil {
			c.log.Warn("trip snapshot write failed", map[string]any{"trip_id": tripID})
		}
	}
	return trip, nil
}

// TripExpenses returns the trip's expenses with snapshot fallback.
func (c *Cache) TripExpenses(ctx context.Context, tripID string) ([]*models.Expense, error) {
	docs, err := c.remote.QueryByField(ctx, models.CollectionExpenses, "trip_id", tripID)
	if err != nil {
		c.log.Warn("serving expenses from snapshot", map[string]any{"trip_id": tripID})
		return loadSnapshot[*models.Expense](c.store, expensesKey(tripID))
	}

	expenses := make([]*models.Expense, 0, len(docs))
	for _, doc := range docs {
		expenses = append(expenses, models.ExpenseFromFields(doc.ID, doc.Fields))
	}
	c.saveSnapshot(expensesKey(tripID), expenses)
	return expenses, nil
}

// TripTotal sums the amounts of all expenses known for the trip. The
// accumulation is exact decimal arithmetic; rounding happens only at
// presentation time. A malformed amount counts as zero rather than
// failing the aggregation.
func (c *Cache) TripTotal(ctx context.Context, tripID string) (decimal.Decimal, error) {
	expenses, err := c.TripExpenses(ctx, tripID)
	if err != nil {
		return decimal.Zero, err
	}

	total := decimal.Zero
	for _, expense := range expenses {
		total = total.Add(expense.Amount)
	}
	return total, nil
}

// Watch keeps the user's trip snapshot fresh from a remote subscription
// and delivers each update to onChange. Returns a cancel func.
func (c *Cache) Watch(ctx context.Context, userID string, onChange func([]*models.Trip)) (cancel func()) {
	query := remote.Query{Collection: models.CollectionTrips, Field: "user_id", Value: userID}
	return c.remote.Subscribe(ctx, query,
		func(docs []remote.Document) {
			trips := make([]*models.Trip, 0, len(docs))
			for _, doc := range docs {
				trips = append(trips, models.TripFromFields(doc.ID, doc.Fields))
			}
			c.saveSnapshot(tripsKey(userID), trips)
			if onChange != nil {
				onChange(trips)
			}
		},
		func(err error) {
			c.log.Warn("trip subscription error", map[string]any{"user_id": userID, "cause": err.Error()})
		})
}

// saveSnapshot overwrites a snapshot key. Snapshot writes are best
// effort; a failed write only degrades the next offline read.
func (c *Cache) saveSnapshot(key string, value any) {
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := c.store.Set(key, string(data)); err != nil {
		c.log.Warn("snapshot write failed", map[string]any{"key": key})
	}
}

// loadSnapshot reads a snapshot list, returning an empty slice when the
// key is absent or unreadable.
func loadSnapshot[T any](store kv.Store, key string) ([]T, error) {
	raw, ok, err := store.Get(key)
	if err != nil || !ok {
		return []T{}, nil
	}
	var items []T
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return []T{}, nil
	}
	return items, nil
}
