// Package queue implements the offline write queue for trip and expense
// mutations. Every user-initiated create/update goes through the Manager:
// online writes forward straight to the remote store, offline writes are
// buffered durably and replayed in order on reconnection.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sgtlogistica/tripcore/internal/apperr"
	"github.com/sgtlogistica/tripcore/internal/connectivity"
	"github.com/sgtlogistica/tripcore/internal/kv"
	"github.com/sgtlogistica/tripcore/internal/logging"
	"github.com/sgtlogistica/tripcore/internal/models"
	"github.com/sgtlogistica/tripcore/internal/remote"
)

// defaultCompany mirrors the mobile client's fallback when the parent
// trip's company cannot be resolved at expense creation time.
const defaultCompany = "Sin empresa"

// Config tunes a Manager.
type Config struct {
	// UserID namespaces the durable keys; one queue per signed-in user.
	UserID string
	// MaxAttempts bounds per-mutation retries on transient failures
	// during a drain. Zero means 3.
	MaxAttempts int
	// BackoffBase is the first retry delay. Zero means 1s.
	BackoffBase time.Duration
	// BackoffCap caps the exponential backoff. Zero means 10s.
	BackoffCap time.Duration
}

// Manager owns the pending-mutation queue. It is the only writer of the
// queue, seq and failed keys in the durable store.
type Manager struct {
	store   kv.Store
	remote  remote.DocumentStore
	monitor connectivity.Monitor
	log     *logging.Logger

	userID      string
	maxAttempts int
	backoffBase time.Duration
	backoffCap  time.Duration

	// mu serializes every read-modify-write of the durable queue.
	mu sync.Mutex

	// drainMu guards the single-flight drain state.
	drainMu  sync.Mutex
	draining bool
	followUp bool

	// sleep is swapped out by tests.
	sleep func(time.Duration)

	cancelWatch func()
}

// FailedMutation pairs a side-listed mutation with the reason it was
// refused.
type FailedMutation struct {
	Mutation models.QueuedMutation `json:"mutation"`
	Reason   string                `json:"reason"`
}

// DrainReport summarizes one drain pass.
type DrainReport struct {
	// Committed counts mutations acknowledged by the remote store.
	Committed int `json:"committed"`
	// Failed lists mutations moved to the failed side-list.
	Failed []FailedMutation `json:"failed,omitempty"`
	// Halted is true when a transient failure stopped the drain with
	// mutations still queued.
	Halted bool `json:"halted"`
	// Remaining counts mutations still queued after the drain.
	Remaining int `json:"remaining"`
	// Deferred is true when another drain was already in flight; a
	// follow-up has been scheduled instead.
	Deferred bool `json:"deferred"`
}

// PartialFailure returns a DRAIN_PARTIAL_FAILURE error describing the
// side-listed mutations, or nil when none failed. It is a notification,
// not a drain failure: commits from the same pass still stand.
func (r DrainReport) PartialFailure() error {
	if len(r.Failed) == 0 {
		return nil
	}
	return apperr.Newf(apperr.ErrDrainPartialFailure, "%d mutation(s) moved to the failed side-list", len(r.Failed))
}

// NewManager creates a Manager and subscribes it to connectivity
// transitions: each offline-to-online edge triggers a drain.
func NewManager(store kv.Store, docs remote.DocumentStore, monitor connectivity.Monitor, cfg Config) *Manager {
	m := &Manager{
		store:       store,
		remote:      docs,
		monitor:     monitor,
		log:         logging.Get().WithComponent("queue"),
		userID:      cfg.UserID,
		maxAttempts: cfg.MaxAttempts,
		backoffBase: cfg.BackoffBase,
		backoffCap:  cfg.BackoffCap,
		sleep:       time.Sleep,
	}
	if m.maxAttempts <= 0 {
		m.maxAttempts = 3
	}
	if m.backoffBase <= 0 {
		m.backoffBase = time.Second
	}
	if m.backoffCap <= 0 {
		m.backoffCap = 10 * time.Second
	}

	m.cancelWatch = monitor.OnTransition(func(online bool) {
		if !online {
			return
		}
		go func() {
			report, err := m.Drain(context.Background())
			if err != nil {
				m.log.Error("drain after reconnect failed", err)
				return
			}
			if !report.Deferred {
				m.log.Info("drain after reconnect", map[string]any{
					"committed": report.Committed,
					"failed":    len(report.Failed),
					"halted":    report.Halted,
				})
				if notice := report.PartialFailure(); notice != nil {
					m.log.Warn("queued writes rejected during drain", map[string]any{
						"detail": notice.Error(),
					})
				}
			}
		}()
	})

	return m
}

// Close unsubscribes the Manager from connectivity transitions.
func (m *Manager) Close() {
	if m.cancelWatch != nil {
		m.cancelWatch()
	}
}

// Durable key layout, namespaced per user.

func (m *Manager) queueKey() string  { return "pending_mutations_" + m.userID }
func (m *Manager) failedKey() string { return "failed_mutations_" + m.userID }
func (m *Manager) seqKey() string    { return "mutation_seq_" + m.userID }

// SubmitTrip commits a new trip, queueing it when offline. The returned
// trip carries either the remote id (Pending=false) or a temporary id
// (Pending=true).
func (m *Manager) SubmitTrip(ctx context.Context, trip models.Trip) (models.Trip, error) {
	if trip.Status == "" {
		trip.Status = models.TripStatusInProgress
	}
	if trip.CreatedAt == 0 {
		trip.CreatedAt = time.Now().Unix()
	}
	if err := trip.Validate(); err != nil {
		return models.Trip{}, apperr.Wrap(apperr.ErrValidation, "submit trip", err)
	}

	if m.monitor.Reachable() {
		trip.Pending = false
		id, err := m.remote.CreateDocument(ctx, models.CollectionTrips, trip.Fields())
		if err == nil {
			trip.ID = id
			return trip, nil
		}
		if !apperr.Is(err, apperr.ErrConnectivity) {
			// The server refused the write; queueing it would only
			// mask an unrecoverable error.
			return models.Trip{}, err
		}
	}

	trip.Pending = true
	// The payload is the post-commit state: once the remote store
	// acknowledges the create, the record is no longer pending.
	committed := trip
	committed.Pending = false
	mut, err := m.enqueue(models.QueuedMutation{
		Kind:    models.EntityTrip,
		Op:      models.OpCreate,
		Payload: committed.Fields(),
	})
	if err != nil {
		return models.Trip{}, err
	}
	trip.ID = mut.TempID
	return trip, nil
}

// SubmitExpense commits a new expense, queueing it when offline. The
// company is denormalized from the parent trip at creation time.
func (m *Manager) SubmitExpense(ctx context.Context, expense models.Expense) (models.Expense, error) {
	if expense.Status == "" {
		expense.Status = models.ExpenseStatusPendingReview
	}
	if expense.CreatedAt == 0 {
		expense.CreatedAt = time.Now().Unix()
	}
	if err := expense.Validate(); err != nil {
		return models.Expense{}, apperr.Wrap(apperr.ErrValidation, "submit expense", err)
	}
	if expense.Company == "" {
		expense.Company = m.resolveCompany(ctx, expense.TripID)
	}

	// Expenses against a still-queued trip must replay after the trip's
	// create, so they are always queued regardless of reachability.
	if m.monitor.Reachable() && !models.IsTempID(expense.TripID) {
		id, err := m.remote.CreateDocument(ctx, models.CollectionExpenses, expense.Fields())
		if err == nil {
			expense.ID = id
			return expense, nil
		}
		if !apperr.Is(err, apperr.ErrConnectivity) {
			return models.Expense{}, err
		}
	}

	mut, err := m.enqueue(models.QueuedMutation{
		Kind:    models.EntityExpense,
		Op:      models.OpCreate,
		Payload: expense.Fields(),
	})
	if err != nil {
		return models.Expense{}, err
	}
	expense.ID = mut.TempID
	return expense, nil
}

// FinalizeTrip marks a trip as finalized. Online updates go straight to
// the remote store; offline (or while the trip itself is still queued)
// the update is buffered behind the trip's create.
func (m *Manager) FinalizeTrip(ctx context.Context, tripID string) error {
	if tripID == "" {
		return apperr.New(apperr.ErrValidation, "finalize trip: trip id is required")
	}

	fields := models.Fields{
		"status":       string(models.TripStatusFinalized),
		"finalized_at": time.Now().Unix(),
	}

	if m.monitor.Reachable() && !models.IsTempID(tripID) {
		err := m.remote.UpdateDocument(ctx, models.CollectionTrips, tripID, fields)
		if err == nil {
			return nil
		}
		if !apperr.Is(err, apperr.ErrConnectivity) {
			return err
		}
	}

	_, err := m.enqueue(models.QueuedMutation{
		Kind:     models.EntityTrip,
		Op:       models.OpUpdate,
		TargetID: tripID,
		Payload:  fields,
	})
	return err
}

// resolveCompany looks up the parent trip's company for denormalization.
// Best effort: failures fall back to the client's default.
func (m *Manager) resolveCompany(ctx context.Context, tripID string) string {
	if models.IsTempID(tripID) {
		m.mu.Lock()
		defer m.mu.Unlock()
		queue, err := m.loadQueue()
		if err == nil {
			for _, mut := range queue {
				if mut.Op == models.OpCreate && mut.Kind == models.EntityTrip && mut.TempID == tripID {
					if company := mut.Payload.StringField("company"); company != "" {
						return company
					}
				}
			}
		}
		return defaultCompany
	}

	if m.monitor.Reachable() {
		fields, err := m.remote.GetDocument(ctx, models.CollectionTrips, tripID)
		if err == nil {
			if company := fields.StringField("company"); company != "" {
				return company
			}
		}
	}
	return defaultCompany
}

// enqueue appends a mutation to the durable queue. The append is a
// mutex-guarded read-modify-write; a durable store failure is fatal to
// the submit because the offline guarantee cannot be honored without it.
func (m *Manager) enqueue(mut models.QueuedMutation) (models.QueuedMutation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	queue, err := m.loadQueue()
	if err != nil {
		return models.QueuedMutation{}, err
	}

	if mut.Op == models.OpCreate {
		tempID, err := m.nextTempID()
		if err != nil {
			return models.QueuedMutation{}, err
		}
		mut.TempID = tempID
	}
	mut.ClientToken = uuid.NewString()
	mut.Status = models.MutationQueued
	mut.EnqueuedAt = time.Now().Unix()

	queue = append(queue, mut)
	if err := m.saveQueue(queue); err != nil {
		return models.QueuedMutation{}, err
	}

	m.log.Info("queued mutation", map[string]any{
		"kind": string(mut.Kind), "op": string(mut.Op), "target": mut.Target(),
		"token": mut.ClientToken,
	})
	return mut, nil
}

// Drain replays the queue in FIFO order. Only one drain runs at a time; a
// call arriving mid-drain schedules exactly one follow-up pass and
// returns a deferred report.
func (m *Manager) Drain(ctx context.Context) (DrainReport, error) {
	m.drainMu.Lock()
	if m.draining {
		m.followUp = true
		m.drainMu.Unlock()
		return DrainReport{Deferred: true}, nil
	}
	m.draining = true
	m.drainMu.Unlock()

	defer func() {
		m.drainMu.Lock()
		m.draining = false
		m.drainMu.Unlock()
	}()

	report, err := m.drainOnce(ctx)
	if err != nil {
		return report, err
	}

	for {
		m.drainMu.Lock()
		rerun := m.followUp
		m.followUp = false
		m.drainMu.Unlock()
		if !rerun {
			return report, nil
		}

		next, err := m.drainOnce(ctx)
		report.Committed += next.Committed
		report.Failed = append(report.Failed, next.Failed...)
		report.Halted = next.Halted
		report.Remaining = next.Remaining
		if err != nil {
			return report, err
		}
	}
}

// drainOnce replays queued mutations sequentially until the queue is
// empty or a transient failure exhausts its retries.
func (m *Manager) drainOnce(ctx context.Context) (DrainReport, error) {
	var report DrainReport

	for {
		if ctx.Err() != nil {
			report.Halted = true
			break
		}

		m.mu.Lock()
		queue, err := m.loadQueue()
		if err != nil {
			m.mu.Unlock()
			return report, err
		}
		if len(queue) == 0 {
			m.mu.Unlock()
			break
		}
		head := queue[0]
		head.Status = models.MutationInFlight
		m.mu.Unlock()

		remoteID, replayErr := m.replay(ctx, &head)

		m.mu.Lock()
		queue, err = m.loadQueue()
		if err != nil {
			m.mu.Unlock()
			return report, err
		}

		switch {
		case replayErr == nil:
			queue = queue[1:]
			if head.Op == models.OpCreate {
				remapTempID(queue, head.TempID, remoteID)
			}
			if err := m.saveQueue(queue); err != nil {
				m.mu.Unlock()
				return report, err
			}
			report.Committed++
			m.log.Info("mutation committed", map[string]any{
				"kind": string(head.Kind), "op": string(head.Op), "id": remoteID,
			})

		case apperr.Retryable(replayErr):
			// Transient failure mid-drain: halt, keep everything
			// queued, retry on the next reconnect transition.
			report.Halted = true
			report.Remaining = len(queue)
			m.mu.Unlock()
			m.log.Warn("drain halted on transient failure", map[string]any{
				"remaining": len(queue),
			})
			return report, nil

		default:
			// Non-retryable rejection: side-list it, keep draining. A
			// rejected create takes its dependents with it; replaying
			// them would commit records referencing an id that will
			// never exist remotely.
			queue = queue[1:]
			var dependents []models.QueuedMutation
			if head.Op == models.OpCreate {
				queue, dependents = splitDependents(queue, head.TempID)
			}
			if err := m.saveQueue(queue); err != nil {
				m.mu.Unlock()
				return report, err
			}
			head.Status = models.MutationFailed
			head.LastError = replayErr.Error()
			failed := FailedMutation{Mutation: head, Reason: replayErr.Error()}
			if err := m.appendFailed(failed); err != nil {
				m.mu.Unlock()
				return report, err
			}
			report.Failed = append(report.Failed, failed)
			for _, dep := range dependents {
				dep.Status = models.MutationFailed
				dep.LastError = fmt.Sprintf("depends on rejected %s create %s", head.Kind, head.TempID)
				entry := FailedMutation{Mutation: dep, Reason: dep.LastError}
				if err := m.appendFailed(entry); err != nil {
					m.mu.Unlock()
					return report, err
				}
				report.Failed = append(report.Failed, entry)
			}
			m.log.Error("mutation rejected during drain", replayErr, map[string]any{
				"kind": string(head.Kind), "op": string(head.Op), "target": head.Target(),
				"cascaded": len(dependents),
			})
		}
		m.mu.Unlock()
	}

	m.mu.Lock()
	if queue, err := m.loadQueue(); err == nil {
		report.Remaining = len(queue)
	}
	m.mu.Unlock()
	return report, nil
}

// replay commits one mutation against the remote store, retrying
// transient failures with exponential backoff before giving up.
func (m *Manager) replay(ctx context.Context, mut *models.QueuedMutation) (string, error) {
	backoff := m.backoffBase
	var lastErr error

	for attempt := 1; attempt <= m.maxAttempts; attempt++ {
		var remoteID string
		var err error

		switch mut.Op {
		case models.OpCreate:
			remoteID, err = m.remote.CreateDocument(ctx, mut.Collection(), mut.Payload)
		case models.OpUpdate:
			err = m.remote.UpdateDocument(ctx, mut.Collection(), mut.TargetID, mut.Payload)
		default:
			return "", apperr.Newf(apperr.ErrRemoteRejected, "unknown operation %q", mut.Op)
		}

		if err == nil {
			return remoteID, nil
		}
		if !apperr.Retryable(err) {
			return "", err
		}

		lastErr = err
		if attempt < m.maxAttempts {
			m.sleep(backoff)
			backoff *= 2
			if backoff > m.backoffCap {
				backoff = m.backoffCap
			}
		}
	}
	return "", lastErr
}

// remapTempID rewrites references to a just-committed create's temporary
// id so later mutations replay against the remote id. Covers expense trip
// references and update targets.
func remapTempID(queue []models.QueuedMutation, tempID, remoteID string) {
	for i := range queue {
		if queue[i].TargetID == tempID {
			queue[i].TargetID = remoteID
		}
		if queue[i].Kind == models.EntityExpense && queue[i].Payload.StringField("trip_id") == tempID {
			queue[i].Payload = queue[i].Payload.Clone()
			queue[i].Payload["trip_id"] = remoteID
		}
	}
}

// splitDependents partitions the queue into mutations independent of the
// given temporary id and those referencing it (update targets, expense
// trip references). Dependents of a rejected create can never commit.
func splitDependents(queue []models.QueuedMutation, tempID string) (kept, dependents []models.QueuedMutation) {
	for _, mut := range queue {
		if mut.TargetID == tempID ||
			(mut.Kind == models.EntityExpense && mut.Payload.StringField("trip_id") == tempID) {
			dependents = append(dependents, mut)
			continue
		}
		kept = append(kept, mut)
	}
	return kept, dependents
}

// Pending returns the queued mutations in FIFO order.
func (m *Manager) Pending() ([]models.QueuedMutation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loadQueue()
}

// Failed returns the side-list of mutations refused by the remote store,
// for user-visible reporting.
func (m *Manager) Failed() ([]FailedMutation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loadFailed()
}

// ClearFailed empties the failed side-list once it has been reported.
func (m *Manager) ClearFailed() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.store.Remove(m.failedKey()); err != nil {
		return apperr.Wrap(apperr.ErrLocalStore, "clear failed side-list", err)
	}
	return nil
}

// nextTempID issues the next monotonic temporary id. Called with m.mu
// held.
func (m *Manager) nextTempID() (string, error) {
	raw, ok, err := m.store.Get(m.seqKey())
	if err != nil {
		return "", apperr.Wrap(apperr.ErrLocalStore, "read mutation seq", err)
	}
	seq := 0
	if ok {
		seq, _ = strconv.Atoi(raw)
	}
	seq++
	if err := m.store.Set(m.seqKey(), strconv.Itoa(seq)); err != nil {
		return "", apperr.Wrap(apperr.ErrLocalStore, "advance mutation seq", err)
	}
	return fmt.Sprintf("%s%d", models.TempIDPrefix, seq), nil
}

// loadQueue reads the durable queue. Called with m.mu held.
func (m *Manager) loadQueue() ([]models.QueuedMutation, error) {
	raw, ok, err := m.store.Get(m.queueKey())
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrLocalStore, "read queue", err)
	}
	if !ok {
		return nil, nil
	}
	var queue []models.QueuedMutation
	if err := json.Unmarshal([]byte(raw), &queue); err != nil {
		return nil, apperr.Wrap(apperr.ErrLocalStore, "decode queue", err)
	}
	for i := range queue {
		normalizeTimestamps(queue[i].Payload)
	}
	return queue, nil
}

// normalizeTimestamps re-narrows timestamp fields widened to float64 by
// the queue's JSON round trip, so drained writes hit the wire with the
// same integer representation as the online path.
func normalizeTimestamps(f models.Fields) {
	for _, key := range []string{"created_at", "finalized_at"} {
		if v, ok := f[key].(float64); ok {
			f[key] = int64(v)
		}
	}
}

// saveQueue persists the durable queue. Called with m.mu held.
func (m *Manager) saveQueue(queue []models.QueuedMutation) error {
	if len(queue) == 0 {
		if err := m.store.Remove(m.queueKey()); err != nil {
			return apperr.Wrap(apperr.ErrLocalStore, "clear queue", err)
		}
		return nil
	}
	data, err := json.Marshal(queue)
	if err != nil {
		return apperr.Wrap(apperr.ErrLocalStore, "encode queue", err)
	}
	if err := m.store.Set(m.queueKey(), string(data)); err != nil {
		return apperr.Wrap(apperr.ErrLocalStore, "persist queue", err)
	}
	return nil
}

// loadFailed reads the failed side-list. Called with m.mu held.
func (m *Manager) loadFailed() ([]FailedMutation, error) {
	raw, ok, err := m.store.Get(m.failedKey())
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrLocalStore, "read failed side-list", err)
	}
	if !ok {
		return nil, nil
	}
	var failed []FailedMutation
	if err := json.Unmarshal([]byte(raw), &failed); err != nil {
		return nil, apperr.Wrap(apperr.ErrLocalStore, "decode failed side-list", err)
	}
	return failed, nil
}

// appendFailed persists one entry onto the failed side-list. Called with
// m.mu held.
func (m *Manager) appendFailed(entry FailedMutation) error {
	failed, err := m.loadFailed()
	if err != nil {
		return err
	}
	failed = append(failed, entry)
	data, err := json.Marshal(failed)
	if err != nil {
		return apperr.Wrap(apperr.ErrLocalStore, "encode failed side-list", err)
	}
	if err := m.store.Set(m.failedKey(), string(data)); err != nil {
		return apperr.Wrap(apperr.ErrLocalStore, "persist failed side-list", err)
	}
	return nil
}
