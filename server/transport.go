// Package server exposes the messaging hub over HTTP and WebSocket and
// owns the in-process transport that carries hub events to live
// connections.
package server

import (
	"log/slog"
	"sync"
)

// Envelope is the wire shape of every pushed event.
type Envelope struct {
	Event   string `json:"event"`
	Payload any    `json:"payload"`
}

// Sink is the buffered event channel of one connection. The write pump
// drains Events until Done is closed.
type Sink struct {
	Events chan Envelope
	Done   chan struct{}
}

// ChannelTransport implements the hub's transport contract with one
// buffered channel sink per connection. Pushes are fire-and-forget: a
// full buffer or a vanished connection drops the event and reports
// false, never blocking a hub handler.
type ChannelTransport struct {
	mu         sync.RWMutex
	sinks      map[string]*Sink // keyed by connection id
	bufferSize int
	log        *slog.Logger
}

func NewChannelTransport(log *slog.Logger, bufferSize int) *ChannelTransport {
	return &ChannelTransport{
		sinks:      make(map[string]*Sink),
		bufferSize: bufferSize,
		log:        log,
	}
}

// Register creates the sink for a new connection id and returns it.
func (t *ChannelTransport) Register(connectionID string) *Sink {
	sink := &Sink{
		Events: make(chan Envelope, t.bufferSize),
		Done:   make(chan struct{}),
	}
	t.mu.Lock()
	t.sinks[connectionID] = sink
	t.mu.Unlock()
	return sink
}

// Unregister drops the sink and releases its write pump. The Events
// channel is never closed so late unicasts stay safe; they simply
// report undelivered.
func (t *ChannelTransport) Unregister(connectionID string) {
	t.mu.Lock()
	sink, ok := t.sinks[connectionID]
	delete(t.sinks, connectionID)
	t.mu.Unlock()
	if ok {
		close(sink.Done)
	}
}

// Unicast pushes an event to exactly one connection. False means the
// connection vanished or its buffer is full; callers treat both as
// "recipient offline".
func (t *ChannelTransport) Unicast(connectionID, event string, payload any) bool {
	t.mu.RLock()
	sink, ok := t.sinks[connectionID]
	t.mu.RUnlock()
	if !ok {
		return false
	}
	select {
	case sink.Events <- Envelope{Event: event, Payload: payload}:
		return true
	default:
		t.log.Debug("event dropped on full sink", "connection_id", connectionID, "event", event)
		return false
	}
}

// BroadcastExcept pushes an event to every known connection except the
// given one. An empty exception reaches all connections.
func (t *ChannelTransport) BroadcastExcept(exceptConnectionID, event string, payload any) {
	t.mu.RLock()
	targets := make(map[string]*Sink, len(t.sinks))
	for id, sink := range t.sinks {
		if id != exceptConnectionID {
			targets[id] = sink
		}
	}
	t.mu.RUnlock()

	for id, sink := range targets {
		select {
		case sink.Events <- Envelope{Event: event, Payload: payload}:
		default:
			t.log.Debug("broadcast dropped on full sink", "connection_id", id, "event", event)
		}
	}
}

// ConnectionCount reports the number of live sinks.
func (t *ChannelTransport) ConnectionCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.sinks)
}
