package graph

import (
	"context"
	"fmt"
	"time"
)

// NodeError wraps an error returned by a node, identifying the node that
// failed so callers can apply per-node error policies.
type NodeError struct {
	Node string
	Err  error
}

func (e *NodeError) Error() string {
	return fmt.Sprintf("node %q: %v", e.Node, e.Err)
}

func (e *NodeError) Unwrap() error { return e.Err }

// Run captures the outcome of a single graph walk.
type Run[S any] struct {
	State   S
	Visited []string // node IDs that executed successfully, in order
}

// Runner executes a CompiledGraph synchronously, one node at a time.
// It is stateless across runs and safe for concurrent use: every Run is an
// independent walk over the shared compiled graph.
type Runner[S any] struct {
	graph       *CompiledGraph[S]
	nodeTimeout time.Duration
	onEvent     EventFunc
}

// RunnerOption configures a Runner.
type RunnerOption[S any] func(*Runner[S])

// WithNodeTimeout bounds each node execution. Zero disables the bound.
func WithNodeTimeout[S any](d time.Duration) RunnerOption[S] {
	return func(r *Runner[S]) { r.nodeTimeout = d }
}

// WithEventFunc registers a callback invoked for every execution event.
func WithEventFunc[S any](fn EventFunc) RunnerOption[S] {
	return func(r *Runner[S]) { r.onEvent = fn }
}

// NewRunner creates a runner for the given compiled graph.
func NewRunner[S any](g *CompiledGraph[S], opts ...RunnerOption[S]) *Runner[S] {
	r := &Runner[S]{graph: g}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Runner[S]) emit(evt Event) {
	if r.onEvent == nil {
		return
	}
	evt.Timestamp = time.Now()
	r.onEvent(evt)
}

// Run walks the graph from its entry node with the given initial state.
// On node failure the partial Run is returned together with a *NodeError;
// the state reflects everything up to, but not including, the failed node.
func (r *Runner[S]) Run(ctx context.Context, initial S) (*Run[S], error) {
	run := &Run[S]{State: initial}
	current := r.graph.Entry

	for {
		node, ok := r.graph.Nodes[current]
		if !ok {
			err := fmt.Errorf("node %q not found", current)
			r.emit(Event{Type: EventError, NodeID: current, Error: err.Error()})
			return run, err
		}

		r.emit(Event{Type: EventNodeStart, NodeID: node.ID})
		next, err := r.executeNode(ctx, node, run)
		if err != nil {
			r.emit(Event{Type: EventError, NodeID: node.ID, Error: err.Error()})
			return run, &NodeError{Node: node.ID, Err: err}
		}
		r.emit(Event{Type: EventNodeEnd, NodeID: node.ID})

		if next == EndNode || next == "" {
			r.emit(Event{Type: EventCompleted})
			return run, nil
		}
		r.emit(Event{Type: EventTransition, NodeID: next})
		current = next
	}
}

func (r *Runner[S]) executeNode(ctx context.Context, node *Node[S], run *Run[S]) (string, error) {
	if r.nodeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.nodeTimeout)
		defer cancel()
	}

	state, err := node.Fn(ctx, run.State)
	if err != nil {
		return "", err
	}
	run.State = state
	run.Visited = append(run.Visited, node.ID)

	return r.findNext(node.ID, state), nil
}

func (r *Runner[S]) findNext(from string, state S) string {
	for _, e := range r.graph.AdjList[from] {
		if e.Condition != nil {
			return e.Condition(state)
		}
		return e.To
	}
	return ""
}
