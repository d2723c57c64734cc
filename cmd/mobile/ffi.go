//go:build !linux

// Package main provides the FFI bridge for mobile platforms.
// Build as shared library: libtripcore.so (Android) / tripcore.framework (iOS)
package main

/*
#cgo CFLAGS: -Wall -Wextra
#cgo LDFLAGS: -shared
#include <stdlib.h>
*/
import "C"
import (
	"fmt"
	"os"
	"sync"
	"unsafe"

	"github.com/sgtlogistica/tripcore/internal/cache"
	"github.com/sgtlogistica/tripcore/internal/config"
	"github.com/sgtlogistica/tripcore/internal/connectivity"
	"github.com/sgtlogistica/tripcore/internal/kv"
	"github.com/sgtlogistica/tripcore/internal/logging"
	"github.com/sgtlogistica/tripcore/internal/queue"
	"github.com/sgtlogistica/tripcore/internal/remote"
)

// session holds the wired core shared by every exported call. The host
// app initializes it once per signed-in user.
type session struct {
	store   kv.Store
	watcher *connectivity.Watcher
	mgr     *queue.Manager
	cache   *cache.Cache
	userID  string
}

var (
	sessionMu sync.RWMutex
	sess      *session

	lastMu  sync.RWMutex
	lastErr string
)

//export CoreInit
// CoreInit wires the durable store, write queue and cache for the given
// user. Returns 0 on success, 1 on failure (see CoreLastError).
func CoreInit(configPath, userID *C.char) C.int {
	sessionMu.Lock()
	defer sessionMu.Unlock()

	if sess != nil {
		setLastError("core already initialized")
		return 1
	}

	logging.Init(os.Stderr, logging.LevelInfo)

	cfg, err := config.Load(C.GoString(configPath))
	if err != nil {
		setLastError(fmt.Sprintf("load config: %v", err))
		return 1
	}

	store, err := kv.Open(cfg.DataDir)
	if err != nil {
		setLastError(fmt.Sprintf("open store: %v", err))
		return 1
	}

	client := remote.NewFirestoreClient(remote.FirestoreConfig{
		ProjectID:    cfg.ProjectID,
		APIKey:       cfg.APIKey,
		Endpoint:     cfg.Endpoint,
		PollInterval: cfg.PollInterval,
	})

	// The host app owns reachability: react-native NetInfo events feed
	// CoreSetOnline instead of an HTTP probe.
	watcher := connectivity.NewWatcher(false)

	sess = &session{
		store:   store,
		watcher: watcher,
		mgr: queue.NewManager(store, client, watcher, queue.Config{
			UserID:      C.GoString(userID),
			MaxAttempts: cfg.MaxAttempts,
		}),
		cache:  cache.New(store, client),
		userID: C.GoString(userID),
	}
	return 0
}

//export CoreShutdown
// CoreShutdown releases the session. Safe to call when uninitialized.
func CoreShutdown() {
	sessionMu.Lock()
	defer sessionMu.Unlock()

	if sess == nil {
		return
	}
	sess.mgr.Close()
	sess.store.Close()
	sess = nil
}

//export CoreSetOnline
// CoreSetOnline feeds the host platform's reachability signal into the
// connectivity watcher. Passing 1 after an offline stretch triggers a
// queue drain.
func CoreSetOnline(online C.int) {
	s := current()
	if s == nil {
		return
	}
	s.watcher.Set(online != 0)
}

//export CoreLastError
// CoreLastError returns the last error message.
// Returns a C string that must be freed by the caller.
func CoreLastError() *C.char {
	lastMu.RLock()
	defer lastMu.RUnlock()

	return C.CString(lastErr)
}

//export FreeString
// FreeString frees a C string returned by any exported function.
func FreeString(s *C.char) {
	if s != nil {
		C.free(unsafe.Pointer(s))
	}
}

func current() *session {
	sessionMu.RLock()
	defer sessionMu.RUnlock()

	if sess == nil {
		setLastError("core not initialized")
	}
	return sess
}

func setLastError(err string) {
	lastMu.Lock()
	defer lastMu.Unlock()
	lastErr = err
}

func main() {
	// Required for c-shared build mode; never executed when loaded as a
	// shared library.
}
