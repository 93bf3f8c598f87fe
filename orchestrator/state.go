// Package orchestrator routes a user question to the structured-data and
// document backends and merges their answers into one reply.
//
// The flow is a four-node graph: classify -> {sql | rag | rag-then-sql} ->
// summarize. Hybrid questions always retrieve document context before the
// structured query; that ordering is a fixed policy, not data-driven.
package orchestrator

import (
	"context"
	"strings"
	"time"
)

// Intent is the classifier's decision steering which backends answer a question.
type Intent string

const (
	IntentSQL    Intent = "sql"
	IntentRAG    Intent = "rag"
	IntentHybrid Intent = "hybrid"
)

// ParseIntent normalizes a raw classifier label and maps it onto the closed
// intent set. Out-of-vocabulary labels yield an *UnrecognizedIntentError.
func ParseIntent(raw string) (Intent, error) {
	switch Intent(strings.ToLower(strings.TrimSpace(raw))) {
	case IntentSQL:
		return IntentSQL, nil
	case IntentRAG:
		return IntentRAG, nil
	case IntentHybrid:
		return IntentHybrid, nil
	default:
		return "", &UnrecognizedIntentError{Label: raw}
	}
}

// State is the value threaded through the graph. Nodes receive it by value
// and return an updated copy; nothing is shared or mutated across nodes.
type State struct {
	Input       string
	Intent      Intent
	RAGOutput   *string
	SQLOutput   *string
	FinalAnswer string

	// sink, when set, receives summary fragments as they are generated.
	sink func(string)
}

// answers collects the node outputs for summarization, document answer first.
func (s State) answers() []string {
	var out []string
	if s.RAGOutput != nil {
		out = append(out, *s.RAGOutput)
	}
	if s.SQLOutput != nil {
		out = append(out, *s.SQLOutput)
	}
	return out
}

// Result is what a completed (or partially completed) walk hands back.
type Result struct {
	FinalAnswer string   `json:"final_answer"`
	Intent      Intent   `json:"intent"`
	RAGOutput   *string  `json:"rag_output,omitempty"`
	SQLOutput   *string  `json:"sql_output,omitempty"`
	Visited     []string `json:"visited,omitempty"`

	Duration time.Duration `json:"-"`
}

// SQLResult is the structured outcome of the SQL backend: the generated
// query, an optional explanation, and the rows it produced. Failures are
// reported through the error return of SQLBackend.Query, never in-band.
type SQLResult struct {
	Query       string
	Explanation string
	Columns     []string
	Rows        []map[string]any
}

// Classifier labels a question with exactly one intent.
type Classifier interface {
	Classify(ctx context.Context, question string) (Intent, error)
}

// SQLBackend turns a question into a query over the structured data and runs it.
type SQLBackend interface {
	Query(ctx context.Context, question string) (*SQLResult, error)
}

// Retriever answers a question from the document knowledge base.
type Retriever interface {
	Answer(ctx context.Context, question string) (string, error)
}

// Summarizer merges one or more backend answers into a single reply.
// SummarizeStream delivers the reply as ordered fragments whose
// concatenation equals the complete answer; the channel closes exactly once.
type Summarizer interface {
	Summarize(ctx context.Context, answers []string) (string, error)
	SummarizeStream(ctx context.Context, answers []string) (<-chan string, error)
}
