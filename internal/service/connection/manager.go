// Package connection tracks the single live transport per user and the
// per-user lock that serializes whole response turns.
package connection

import (
	"errors"
	"log"
	"sync"
	"sync/atomic"
)

// ErrClosed is returned when writing to a transport that is no longer
// open. Callers treat it as "stop sending, don't fail the session".
var ErrClosed = errors.New("connection closed")

// Transport is the write side of a live client connection. Satisfied by
// *websocket.Conn.
type Transport interface {
	WriteJSON(v any) error
	Close() error
}

// Registration binds a user to their live transport. The turn lock scopes
// one full response-generation turn, so client input that arrives while a
// turn is in flight waits for the lock rather than interleaving frames.
type Registration struct {
	transport Transport
	closed    atomic.Bool

	turnMu  sync.Mutex
	writeMu sync.Mutex

	partialMu sync.Mutex
	partial   string
}

// LockTurn acquires the whole-turn lock.
func (r *Registration) LockTurn() { r.turnMu.Lock() }

// UnlockTurn releases the whole-turn lock.
func (r *Registration) UnlockTurn() { r.turnMu.Unlock() }

// Open reports whether the transport is still writable.
func (r *Registration) Open() bool { return !r.closed.Load() }

// Send writes one frame. Returns ErrClosed once the transport is gone;
// a failed write closes the registration for all future writers.
func (r *Registration) Send(v any) error {
	if r.closed.Load() {
		return ErrClosed
	}
	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	if r.closed.Load() {
		return ErrClosed
	}
	if err := r.transport.WriteJSON(v); err != nil {
		r.closed.Store(true)
		return err
	}
	return nil
}

// Partial returns the buffered partial sentence for the in-flight turn.
func (r *Registration) Partial() string {
	r.partialMu.Lock()
	defer r.partialMu.Unlock()
	return r.partial
}

// SetPartial replaces the buffered partial sentence.
func (r *Registration) SetPartial(s string) {
	r.partialMu.Lock()
	r.partial = s
	r.partialMu.Unlock()
}

func (r *Registration) close() {
	if r.closed.Swap(true) {
		return
	}
	if err := r.transport.Close(); err != nil {
		// Best effort; the peer may already be gone.
		log.Printf("[connection] close failed: %v", err)
	}
}

// Manager owns the user-to-registration map.
type Manager struct {
	mu      sync.RWMutex
	entries map[string]*Registration
}

// NewManager returns an empty connection manager.
func NewManager() *Manager {
	return &Manager{entries: make(map[string]*Registration)}
}

// Connect installs a fresh registration for the user, superseding and
// best-effort closing any prior one.
func (m *Manager) Connect(userID string, t Transport) *Registration {
	reg := &Registration{transport: t}

	m.mu.Lock()
	prev := m.entries[userID]
	m.entries[userID] = reg
	m.mu.Unlock()

	if prev != nil {
		log.Printf("[connection] superseding existing connection for user %s", userID)
		prev.close()
	}
	return reg
}

// Disconnect closes and removes the user's registration. Idempotent.
func (m *Manager) Disconnect(userID string) {
	m.mu.Lock()
	reg, ok := m.entries[userID]
	delete(m.entries, userID)
	m.mu.Unlock()

	if ok {
		reg.close()
	}
}

// Get returns the live registration for a user, if any.
func (m *Manager) Get(userID string) (*Registration, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	reg, ok := m.entries[userID]
	return reg, ok
}
