// Package realtime provides a lightweight in-process publish/subscribe hub
// used to fan out search-state snapshots to multiple listeners (e.g.
// WebSocket sessions feeding embedded widget views).
//
// Design goals:
//   - Best-effort fan-out: slow listeners drop events (never backpressure
//     the engine's state mutation path).
//   - No persistence or replay semantics; a late subscriber receives the
//     next snapshot, and the API layer sends the current one on connect.
package realtime

import (
	"sync"
	"time"

	"github.com/templateschile/kalifinder-search/pkg/core"
)

// StateEvent carries one state snapshot emitted after an engine mutation.
type StateEvent struct {
	InstanceID string        `json:"instance_id"`
	At         time.Time     `json:"at"`
	Snapshot   core.Snapshot `json:"snapshot"`
}

// Event is the hub's envelope, leaving room for additional kinds
// (heartbeat, info) without changing channel element types. For now only
// Type == "state" is produced.
type Event struct {
	Type  string     `json:"type"`
	State StateEvent `json:"state"`
}

// Hub is an in-memory fan-out dispatcher. Each registered listener
// receives events via its own buffered channel; when a listener's buffer
// is full an event is dropped for that listener only, so a single slow
// consumer never degrades delivery for the rest.
//
// The hub is concurrency-safe.
type Hub struct {
	mu        sync.RWMutex
	listeners map[uint64]chan Event
	nextID    uint64
	bufSize   int
}

// NewHub constructs a hub with the given per-listener buffer size.
// If bufSize <= 0, a default of 16 is used.
func NewHub(bufSize int) *Hub {
	if bufSize <= 0 {
		bufSize = 16
	}
	return &Hub{
		listeners: make(map[uint64]chan Event),
		bufSize:   bufSize,
	}
}

// Register adds a listener and returns (listenerID, receiveOnlyChannel).
// Callers must later Unregister(id) to release resources.
func (h *Hub) Register() (uint64, <-chan Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.nextID
	h.nextID++
	ch := make(chan Event, h.bufSize)
	h.listeners[id] = ch
	return id, ch
}

// Unregister removes the listener with the given id and closes its
// channel. Safe to call multiple times; unknown ids are ignored.
func (h *Hub) Unregister(id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.listeners[id]; ok {
		delete(h.listeners, id)
		close(ch)
	}
}

// BroadcastState wraps a snapshot and delivers it to all listeners,
// best effort.
func (h *Hub) BroadcastState(instanceID string, snapshot core.Snapshot) {
	h.broadcast(Event{
		Type: "state",
		State: StateEvent{
			InstanceID: instanceID,
			At:         time.Now().UTC(),
			Snapshot:   snapshot,
		},
	})
}

func (h *Hub) broadcast(ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.listeners {
		select {
		case ch <- ev:
		default:
			// Drop for slow listener.
		}
	}
}

// Size returns the current number of active listeners (approximate).
func (h *Hub) Size() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.listeners)
}
