// Package connectivity tracks network reachability for the offline core.
// The mobile shell feeds raw reachability signals in; listeners see one
// event per state transition, never one per underlying signal.
package connectivity

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/sgtlogistica/tripcore/internal/logging"
)

// Monitor exposes current reachability and transition notifications.
type Monitor interface {
	// Reachable reports the current point-in-time state.
	Reachable() bool

	// OnTransition registers a listener invoked with the new state each
	// time it changes. The returned func cancels the registration.
	OnTransition(fn func(online bool)) (cancel func())
}

// Watcher implements Monitor over raw boolean signals. Duplicate signals
// collapse: Set(true) while already online notifies nobody.
type Watcher struct {
	mu        sync.Mutex
	online    bool
	nextID    int
	listeners map[int]func(bool)
	log       *logging.Logger
}

// NewWatcher creates a Watcher with the given initial state.
func NewWatcher(online bool) *Watcher {
	return &Watcher{
		online:    online,
		listeners: make(map[int]func(bool)),
		log:       logging.Get().WithComponent("connectivity"),
	}
}

// Reachable reports the current state.
func (w *Watcher) Reachable() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.online
}

// OnTransition registers a listener.
func (w *Watcher) OnTransition(fn func(online bool)) (cancel func()) {
	w.mu.Lock()
	id := w.nextID
	w.nextID++
	w.listeners[id] = fn
	w.mu.Unlock()

	return func() {
		w.mu.Lock()
		delete(w.listeners, id)
		w.mu.Unlock()
	}
}

// Set feeds a raw reachability signal. Listeners fire only when the state
// actually changes, outside the lock.
func (w *Watcher) Set(online bool) {
	w.mu.Lock()
	if w.online == online {
		w.mu.Unlock()
		return
	}
	w.online = online
	fns := make([]func(bool), 0, len(w.listeners))
	for _, fn := range w.listeners {
		fns = append(fns, fn)
	}
	w.mu.Unlock()

	w.log.Info("reachability changed", map[string]any{"online": online})
	for _, fn := range fns {
		fn(online)
	}
}

// StartProbe polls url with HEAD requests and feeds the result into Set.
// It is an optional fallback for shells that cannot push reachability
// signals. Runs until ctx ends.
func (w *Watcher) StartProbe(ctx context.Context, url string, interval time.Duration) {
	client := &http.Client{Timeout: 5 * time.Second}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		probe := func() {
			req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
			if err != nil {
				return
			}
			resp, err := client.Do(req)
			if err != nil {
				w.Set(false)
				return
			}
			resp.Body.Close()
			w.Set(true)
		}

		probe()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				probe()
			}
		}
	}()
}
