// Package ragagent answers questions from the document knowledge base.
package ragagent

import (
	"context"
	"fmt"
	"strings"

	"github.com/Dagger77/tabdoc/engine/model"
	"github.com/Dagger77/tabdoc/knowledge"
)

const systemPrompt = "You are a helpful assistant that answers questions about how demographic factors influence student performance based on the provided documents. " +
	"Reply in a short, crisp manner. " +
	"Prefer the document content over general knowledge. " +
	"If the question is not related to the documents topic, mention it in the reply. " +
	"In case the documents don't contain the answer, clearly state that the information isn't available " +
	"in the current documents and provide your best general knowledge response."

const defaultTopK = 3

// Agent retrieves relevant passages and asks the model to answer from them.
// The knowledge handle is opened once at process start and shared read-only
// across questions.
type Agent struct {
	provider model.Provider
	kb       knowledge.Knowledge
	topK     int
}

// Option configures the agent.
type Option func(*Agent)

// WithTopK sets how many passages are retrieved per question.
func WithTopK(k int) Option {
	return func(a *Agent) {
		if k > 0 {
			a.topK = k
		}
	}
}

// New creates a retrieval agent over the given knowledge base.
func New(p model.Provider, kb knowledge.Knowledge, opts ...Option) *Agent {
	a := &Agent{provider: p, kb: kb, topK: defaultTopK}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Answer retrieves context for the question and synthesizes a reply.
func (a *Agent) Answer(ctx context.Context, question string) (string, error) {
	docs, err := a.kb.Search(ctx, question, a.topK)
	if err != nil {
		return "", fmt.Errorf("retrieve: %w", err)
	}

	resp, err := a.provider.Chat(ctx, &model.ChatRequest{
		Messages: []model.Message{
			{Role: model.RoleSystem, Content: systemPrompt},
			{Role: model.RoleUser, Content: buildPrompt(question, docs)},
		},
	})
	if err != nil {
		return "", fmt.Errorf("rag answer: %w", err)
	}
	return resp.Content, nil
}

func buildPrompt(question string, docs []knowledge.Document) string {
	var b strings.Builder
	if len(docs) == 0 {
		b.WriteString("No relevant documents were found.\n\n")
	} else {
		b.WriteString("Context from the documents:\n\n")
		for i, doc := range docs {
			fmt.Fprintf(&b, "[%d] %s\n\n", i+1, doc.Content)
		}
	}
	b.WriteString("Question: ")
	b.WriteString(question)
	return b.String()
}
