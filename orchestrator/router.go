package orchestrator

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/Dagger77/tabdoc/engine/graph"
)

// Node IDs of the routing graph.
const (
	NodeClassify  = "classify"
	NodeSQL       = "sql"
	NodeRAG       = "rag"
	NodeSummarize = "summarize"
)

const defaultNodeTimeout = 120 * time.Second

// Router wires the classifier, the two backends, and the summarizer into
// the routing graph. A Router is built once and is safe for concurrent use;
// every question is an independent graph walk over fresh state.
type Router struct {
	classifier Classifier
	sql        SQLBackend
	retriever  Retriever
	summarizer Summarizer

	nodeTimeout time.Duration
	onEvent     graph.EventFunc
	runner      *graph.Runner[State]
}

// Option configures a Router.
type Option func(*Router)

// WithNodeTimeout bounds each node's external call. Zero disables the bound.
func WithNodeTimeout(d time.Duration) Option {
	return func(r *Router) { r.nodeTimeout = d }
}

// WithEventFunc registers a callback for graph execution events.
func WithEventFunc(fn graph.EventFunc) Option {
	return func(r *Router) { r.onEvent = fn }
}

// New builds and compiles the routing graph.
func New(c Classifier, sql SQLBackend, ret Retriever, sum Summarizer, opts ...Option) (*Router, error) {
	rt := &Router{
		classifier:  c,
		sql:         sql,
		retriever:   ret,
		summarizer:  sum,
		nodeTimeout: defaultNodeTimeout,
	}
	for _, opt := range opts {
		opt(rt)
	}

	g := graph.New[State]("qa-router").
		AddNode(NodeClassify, rt.classifyNode).
		AddNode(NodeSQL, rt.sqlNode).
		AddNode(NodeRAG, rt.ragNode).
		AddNode(NodeSummarize, rt.summarizeNode).
		AddConditionalEdge(NodeClassify, routeAfterClassify).
		AddConditionalEdge(NodeRAG, routeAfterRAG).
		AddEdge(NodeSQL, NodeSummarize)
	g.SetEntryPoint(NodeClassify)
	g.SetFinishPoint(NodeSummarize)

	cg, err := g.Compile()
	if err != nil {
		return nil, err
	}
	rt.runner = graph.NewRunner(cg,
		graph.WithNodeTimeout[State](rt.nodeTimeout),
		graph.WithEventFunc[State](rt.onEvent),
	)
	return rt, nil
}

// Run answers a question and returns the merged reply.
//
// Error policy: a classification failure returns (nil, *ClassificationError)
// with no backend executed. Backend failures are folded into the respective
// output string and the walk continues. A summarization failure returns the
// partial Result together with *SummarizationError so the caller can fall
// back to the raw backend outputs.
func (rt *Router) Run(ctx context.Context, question string) (*Result, error) {
	return rt.run(ctx, question, nil)
}

// RunStream behaves like Run but delivers the final answer incrementally:
// onToken receives ordered fragments whose concatenation equals
// Result.FinalAnswer.
func (rt *Router) RunStream(ctx context.Context, question string, onToken func(string)) (*Result, error) {
	return rt.run(ctx, question, onToken)
}

func (rt *Router) run(ctx context.Context, question string, sink func(string)) (*Result, error) {
	if strings.TrimSpace(question) == "" {
		return nil, ErrEmptyInput
	}

	start := time.Now()
	run, err := rt.runner.Run(ctx, State{Input: question, sink: sink})
	result := &Result{
		FinalAnswer: run.State.FinalAnswer,
		Intent:      run.State.Intent,
		RAGOutput:   run.State.RAGOutput,
		SQLOutput:   run.State.SQLOutput,
		Visited:     run.Visited,
		Duration:    time.Since(start),
	}
	if err != nil {
		var nodeErr *graph.NodeError
		if errors.As(err, &nodeErr) {
			switch nodeErr.Node {
			case NodeClassify:
				return nil, &ClassificationError{Err: nodeErr.Err}
			case NodeSummarize:
				return result, &SummarizationError{Err: nodeErr.Err}
			}
		}
		return result, err
	}
	return result, nil
}

// routeAfterClassify dispatches on intent; hybrid starts with retrieval so
// the summarizer sees document context ahead of the structured answer.
func routeAfterClassify(s State) string {
	switch s.Intent {
	case IntentSQL:
		return NodeSQL
	case IntentRAG, IntentHybrid:
		return NodeRAG
	}
	return ""
}

func routeAfterRAG(s State) string {
	if s.Intent == IntentHybrid {
		return NodeSQL
	}
	return NodeSummarize
}

func (rt *Router) classifyNode(ctx context.Context, s State) (State, error) {
	intent, err := rt.classifier.Classify(ctx, s.Input)
	if err != nil {
		return s, err
	}
	s.Intent = intent
	return s, nil
}

// sqlNode and ragNode fold backend failures into visible output strings:
// the walk continues and the summarizer rephrases the error for the user.
func (rt *Router) sqlNode(ctx context.Context, s State) (State, error) {
	res, err := rt.sql.Query(ctx, s.Input)
	out := FormatSQLOutput(res, err)
	s.SQLOutput = &out
	return s, nil
}

func (rt *Router) ragNode(ctx context.Context, s State) (State, error) {
	answer, err := rt.retriever.Answer(ctx, s.Input)
	if err != nil {
		answer = "Error: " + err.Error()
	}
	s.RAGOutput = &answer
	return s, nil
}

func (rt *Router) summarizeNode(ctx context.Context, s State) (State, error) {
	answers := s.answers()
	if len(answers) == 0 {
		return s, ErrNoAnswers
	}

	if s.sink == nil {
		final, err := rt.summarizer.Summarize(ctx, answers)
		if err != nil {
			return s, err
		}
		s.FinalAnswer = final
		return s, nil
	}

	ch, err := rt.summarizer.SummarizeStream(ctx, answers)
	if err != nil {
		return s, err
	}
	var b strings.Builder
	for frag := range ch {
		b.WriteString(frag)
		s.sink(frag)
	}
	if err := ctx.Err(); err != nil {
		return s, err
	}
	s.FinalAnswer = b.String()
	return s, nil
}
