package graph

import "fmt"

const (
	StartNode = "__start__"
	EndNode   = "__end__"
)

// StateGraph is a builder for defining directed graphs over a state type S.
type StateGraph[S any] struct {
	id    string
	nodes map[string]*Node[S]
	edges []*Edge[S]
}

// New creates a new StateGraph with the given ID.
func New[S any](id string) *StateGraph[S] {
	return &StateGraph[S]{
		id:    id,
		nodes: make(map[string]*Node[S]),
	}
}

// AddNode registers a node with the given ID and handler function.
func (g *StateGraph[S]) AddNode(id string, fn NodeFunc[S]) *StateGraph[S] {
	g.nodes[id] = &Node[S]{ID: id, Fn: fn}
	return g
}

// AddEdge adds a static edge from one node to another.
func (g *StateGraph[S]) AddEdge(from, to string) *StateGraph[S] {
	g.edges = append(g.edges, &Edge[S]{From: from, To: to})
	return g
}

// AddConditionalEdge adds a dynamic edge that routes based on state.
func (g *StateGraph[S]) AddConditionalEdge(from string, condition EdgeCondition[S]) *StateGraph[S] {
	g.edges = append(g.edges, &Edge[S]{From: from, Condition: condition})
	return g
}

// SetEntryPoint sets the starting node of the graph.
func (g *StateGraph[S]) SetEntryPoint(nodeID string) *StateGraph[S] {
	return g.AddEdge(StartNode, nodeID)
}

// SetFinishPoint sets the ending node of the graph.
func (g *StateGraph[S]) SetFinishPoint(nodeID string) *StateGraph[S] {
	return g.AddEdge(nodeID, EndNode)
}

// CompiledGraph is the immutable, validated graph ready for execution.
type CompiledGraph[S any] struct {
	ID      string
	Nodes   map[string]*Node[S]
	AdjList map[string][]*Edge[S] // from -> edges
	Entry   string
}

// Compile validates the graph and returns a CompiledGraph.
func (g *StateGraph[S]) Compile() (*CompiledGraph[S], error) {
	var entry string
	adj := make(map[string][]*Edge[S])
	for _, e := range g.edges {
		adj[e.From] = append(adj[e.From], e)
		if e.From == StartNode {
			entry = e.To
		}
	}
	if entry == "" {
		return nil, fmt.Errorf("graph %q: no entry point set", g.id)
	}
	if _, ok := g.nodes[entry]; !ok {
		return nil, fmt.Errorf("graph %q: entry node %q not found", g.id, entry)
	}
	// Validate all static edge targets exist. Conditional targets are only
	// known at runtime; the runner checks those on each transition.
	for _, e := range g.edges {
		if e.To != "" && e.To != EndNode {
			if _, ok := g.nodes[e.To]; !ok {
				return nil, fmt.Errorf("graph %q: edge target %q not found", g.id, e.To)
			}
		}
	}
	return &CompiledGraph[S]{
		ID:      g.id,
		Nodes:   g.nodes,
		AdjList: adj,
		Entry:   entry,
	}, nil
}
