// Package stream fans out identity and profile change notifications to
// in-process subscribers such as session providers and SSE clients.
package stream

import (
	"context"
	"sync"
	"time"
)

// Kind classifies a change.
type Kind string

const (
	KindSignedIn       Kind = "signed_in"
	KindSignedOut      Kind = "signed_out"
	KindProfileChanged Kind = "profile_changed"
)

// Event announces that something about an identity changed. Subscribers
// re-read state; the event itself carries no payload beyond the key.
type Event struct {
	IdentityID string    `json:"identity_id"`
	Kind       Kind      `json:"kind"`
	At         time.Time `json:"at"`
}

// Hub is a non-blocking broadcast channel.
type Hub struct {
	mu   sync.RWMutex
	subs map[int]chan Event
	next int
}

// New returns an empty hub.
func New() *Hub {
	return &Hub{subs: make(map[int]chan Event)}
}

// Subscribe registers a subscriber and returns a channel which will receive events.
// The channel is closed when the provided context ends.
func (h *Hub) Subscribe(ctx context.Context) <-chan Event {
	ch := make(chan Event, 16)

	h.mu.Lock()
	id := h.next
	h.next++
	h.subs[id] = ch
	h.mu.Unlock()

	go func() {
		<-ctx.Done()
		h.mu.Lock()
		delete(h.subs, id)
		close(ch)
		h.mu.Unlock()
	}()

	return ch
}

// Publish delivers evt to every subscriber, dropping it for subscribers whose
// buffer is full.
func (h *Hub) Publish(evt Event) {
	if h == nil {
		return
	}
	if evt.At.IsZero() {
		evt.At = time.Now().UTC()
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.subs {
		select {
		case ch <- evt:
		default:
		}
	}
}

// Subscribers returns the number of live subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
