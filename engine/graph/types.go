// Package graph provides a small directed state graph with synchronous,
// single-walk execution. State is a value threaded through node functions;
// each node returns the next state rather than mutating a shared record.
package graph

import (
	"context"
	"time"
)

// NodeFunc is the function signature for a graph node. It receives the
// current state and returns the state the next node should see.
type NodeFunc[S any] func(ctx context.Context, state S) (S, error)

// EdgeCondition decides which node to transition to based on state.
// Returns the target node ID.
type EdgeCondition[S any] func(state S) string

// Node represents a node in the state graph.
type Node[S any] struct {
	ID string
	Fn NodeFunc[S]
}

// Edge represents a transition between nodes. To and Condition are
// mutually exclusive.
type Edge[S any] struct {
	From      string
	To        string
	Condition EdgeCondition[S]
}

// EventType identifies the kind of execution event emitted during a walk.
type EventType string

const (
	EventNodeStart  EventType = "node_start"
	EventNodeEnd    EventType = "node_end"
	EventTransition EventType = "transition"
	EventCompleted  EventType = "completed"
	EventError      EventType = "error"
)

// Event is emitted by the runner as the walk progresses.
type Event struct {
	Type      EventType `json:"type"`
	NodeID    string    `json:"node_id,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// EventFunc receives runner events. It must not block: slow consumers
// should buffer on their side.
type EventFunc func(Event)
