// Package connectivity tests for the reachability watcher.
package connectivity

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// TestWatcher_Reachable verifies the initial state.
func TestWatcher_Reachable(t *testing.T) {
	if !NewWatcher(true).Reachable() {
		t.Error("expected online watcher")
	}
	if NewWatcher(false).Reachable() {
		t.Error("expected offline watcher")
	}
}

// TestWatcher_TransitionOnce verifies duplicate signals collapse to one
// notification per state change.
func TestWatcher_TransitionOnce(t *testing.T) {
	w := NewWatcher(true)

	var events []bool
	cancel := w.OnTransition(func(online bool) {
		events = append(events, online)
	})
	defer cancel()

	w.Set(true) // no change
	w.Set(false)
	w.Set(false) // duplicate signal
	w.Set(true)

	if len(events) != 2 {
		t.Fatalf("got %d events, want 2: %v", len(events), events)
	}
	if events[0] != false || events[1] != true {
		t.Errorf("events = %v, want [false true]", events)
	}
}

// TestWatcher_Cancel verifies cancelled listeners stop receiving events.
func TestWatcher_Cancel(t *testing.T) {
	w := NewWatcher(true)

	calls := 0
	cancel := w.OnTransition(func(bool) { calls++ })

	w.Set(false)
	cancel()
	w.Set(true)

	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

// TestWatcher_MultipleListeners verifies independent registrations.
func TestWatcher_MultipleListeners(t *testing.T) {
	w := NewWatcher(false)

	a, b := 0, 0
	w.OnTransition(func(bool) { a++ })
	w.OnTransition(func(bool) { b++ })

	w.Set(true)

	if a != 1 || b != 1 {
		t.Errorf("a = %d, b = %d, want 1, 1", a, b)
	}
}

// TestWatcher_Probe verifies probe results feed the state.
func TestWatcher_Probe(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	w := NewWatcher(false)
	transitions := make(chan bool, 4)
	w.OnTransition(func(online bool) { transitions <- online })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.StartProbe(ctx, server.URL, 10*time.Millisecond)

	select {
	case online := <-transitions:
		if !online {
			t.Error("expected online transition from successful probe")
		}
	case <-time.After(time.Second):
		t.Fatal("probe never reported")
	}
}
