//go:build !linux

// FFI exports for trip and expense operations. All functions take and
// return JSON C strings; callers free results with FreeString. On error
// they return nil and record the cause for CoreLastError.
package main

/*
#include <stdlib.h>
*/
import "C"
import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sgtlogistica/tripcore/internal/models"
)

//export TripCreate
// TripCreate submits a new trip. Offline submissions come back with a
// tmp- id and pending=true.
func TripCreate(tripJSON *C.char) *C.char {
	s := current()
	if s == nil {
		return nil
	}

	var trip models.Trip
	if err := json.Unmarshal([]byte(C.GoString(tripJSON)), &trip); err != nil {
		setLastError(fmt.Sprintf("decode trip: %v", err))
		return nil
	}
	trip.UserID = s.userID

	out, err := s.mgr.SubmitTrip(context.Background(), trip)
	if err != nil {
		setLastError(fmt.Sprintf("submit trip: %v", err))
		return nil
	}
	return marshal(out)
}

//export TripFinalize
// TripFinalize marks a trip finalized, queueing the update when offline.
func TripFinalize(tripID *C.char) *C.char {
	s := current()
	if s == nil {
		return nil
	}

	if err := s.mgr.FinalizeTrip(context.Background(), C.GoString(tripID)); err != nil {
		setLastError(fmt.Sprintf("finalize trip: %v", err))
		return nil
	}
	return C.CString(`{"status":"ok"}`)
}

//export ExpenseCreate
// ExpenseCreate submits a new expense for a trip.
func ExpenseCreate(expenseJSON *C.char) *C.char {
	s := current()
	if s == nil {
		return nil
	}

	var expense models.Expense
	if err := json.Unmarshal([]byte(C.GoString(expenseJSON)), &expense); err != nil {
		setLastError(fmt.Sprintf("decode expense: %v", err))
		return nil
	}
	expense.UserID = s.userID

	out, err := s.mgr.SubmitExpense(context.Background(), expense)
	if err != nil {
		setLastError(fmt.Sprintf("submit expense: %v", err))
		return nil
	}
	return marshal(out)
}

//export TripsList
// TripsList returns the user's trips, read through the cache.
func TripsList() *C.char {
	s := current()
	if s == nil {
		return nil
	}

	trips, err := s.cache.Trips(context.Background(), s.userID)
	if err != nil {
		setLastError(fmt.Sprintf("list trips: %v", err))
		return nil
	}
	return marshal(trips)
}

//export ExpensesList
// ExpensesList returns a trip's expenses, read through the cache.
func ExpensesList(tripID *C.char) *C.char {
	s := current()
	if s == nil {
		return nil
	}

	expenses, err := s.cache.TripExpenses(context.Background(), C.GoString(tripID))
	if err != nil {
		setLastError(fmt.Sprintf("list expenses: %v", err))
		return nil
	}
	return marshal(expenses)
}

//export TripTotal
// TripTotal returns the trip's expense total as a fixed two-decimal
// string, e.g. {"total":"155.50"}.
func TripTotal(tripID *C.char) *C.char {
	s := current()
	if s == nil {
		return nil
	}

	total, err := s.cache.TripTotal(context.Background(), C.GoString(tripID))
	if err != nil {
		setLastError(fmt.Sprintf("trip total: %v", err))
		return nil
	}
	return marshal(map[string]string{"total": total.StringFixed(2)})
}

//export PendingList
// PendingList returns the queued mutations awaiting a drain.
func PendingList() *C.char {
	s := current()
	if s == nil {
		return nil
	}

	pending, err := s.mgr.Pending()
	if err != nil {
		setLastError(fmt.Sprintf("pending: %v", err))
		return nil
	}
	return marshal(pending)
}

//export FailedList
// FailedList returns mutations rejected by the remote store.
func FailedList() *C.char {
	s := current()
	if s == nil {
		return nil
	}

	failed, err := s.mgr.Failed()
	if err != nil {
		setLastError(fmt.Sprintf("failed list: %v", err))
		return nil
	}
	return marshal(failed)
}

//export FailedClear
// FailedClear discards the failed side-list.
func FailedClear() *C.char {
	s := current()
	if s == nil {
		return nil
	}

	if err := s.mgr.ClearFailed(); err != nil {
		setLastError(fmt.Sprintf("clear failed: %v", err))
		return nil
	}
	return C.CString(`{"status":"ok"}`)
}

//export QueueDrain
// QueueDrain replays the pending queue now and reports the outcome.
func QueueDrain() *C.char {
	s := current()
	if s == nil {
		return nil
	}

	report, err := s.mgr.Drain(context.Background())
	if err != nil {
		setLastError(fmt.Sprintf("drain: %v", err))
		return nil
	}
	return marshal(report)
}

func marshal(v any) *C.char {
	data, err := json.Marshal(v)
	if err != nil {
		setLastError(fmt.Sprintf("serialize: %v", err))
		return nil
	}
	return C.CString(string(data))
}
