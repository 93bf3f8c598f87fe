// Package stream provides event fan-out for observing graph walks in flight.
package stream

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/google/uuid"
)

// Event is a broadcast message: a router event or a summary token delta.
type Event struct {
	Type    string `json:"type"`
	Session string `json:"session,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// Broker fans events out to subscribers. Slow subscribers drop events
// rather than blocking the publisher.
type Broker struct {
	mu      sync.RWMutex
	clients map[string]chan Event
}

// NewBroker creates a new event broker.
func NewBroker() *Broker {
	return &Broker{clients: make(map[string]chan Event)}
}

// Subscribe registers a new subscriber and returns its ID and channel.
func (b *Broker) Subscribe() (string, <-chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := uuid.NewString()
	ch := make(chan Event, 64)
	b.clients[id] = ch
	return id, ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Broker) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch, ok := b.clients[id]; ok {
		close(ch)
		delete(b.clients, id)
	}
}

// Publish sends an event to all subscribers.
func (b *Broker) Publish(evt Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.clients {
		select {
		case ch <- evt:
		default:
		}
	}
}

// SSEHandler streams broker events to an HTTP client until it disconnects.
func (b *Broker) SSEHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming unsupported", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")

		id, ch := b.Subscribe()
		defer b.Unsubscribe(id)

		for {
			select {
			case evt, ok := <-ch:
				if !ok {
					return
				}
				data, _ := json.Marshal(evt)
				fmt.Fprintf(w, "event: %s\ndata: %s\n\n", evt.Type, data)
				flusher.Flush()
			case <-r.Context().Done():
				return
			}
		}
	}
}
