// Package summary merges backend answers into one user-facing reply.
package summary

import (
	"context"
	"fmt"
	"strings"

	"github.com/Dagger77/tabdoc/engine/model"
	"github.com/Dagger77/tabdoc/orchestrator"
)

const systemPrompt = "You are a summarizer agent. Your job is to take multiple answers from RAG and SQL agents, and create a clear, concise, and natural response for the user. " +
	"Focus on clarity, avoid raw SQL or formatting, and make it sound like one coherent assistant response. " +
	"If you receive only one input, simply rephrase it nicely."

// Agent rephrases and reconciles answers through the model.
type Agent struct {
	provider model.Provider
}

// New creates a model-backed summarizer.
func New(p model.Provider) *Agent {
	return &Agent{provider: p}
}

// Summarize merges the answers into a single reply.
func (a *Agent) Summarize(ctx context.Context, answers []string) (string, error) {
	req, err := buildRequest(answers)
	if err != nil {
		return "", err
	}
	resp, err := a.provider.Chat(ctx, req)
	if err != nil {
		return "", fmt.Errorf("summarize: %w", err)
	}
	return resp.Content, nil
}

// SummarizeStream merges the answers, delivering the reply as ordered text
// fragments. The returned channel closes exactly once, after the final
// fragment.
func (a *Agent) SummarizeStream(ctx context.Context, answers []string) (<-chan string, error) {
	req, err := buildRequest(answers)
	if err != nil {
		return nil, err
	}
	req.Stream = true

	deltas, err := a.provider.StreamChat(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("summarize stream: %w", err)
	}

	out := make(chan string, 64)
	go func() {
		defer close(out)
		for chunk := range deltas {
			if chunk.Content == "" {
				continue
			}
			select {
			case out <- chunk.Content:
			case <-ctx.Done():
				// Keep consuming so the provider's reader can finish
				// and release its connection.
				for range deltas {
				}
				return
			}
		}
	}()
	return out, nil
}

func buildRequest(answers []string) (*model.ChatRequest, error) {
	if len(answers) == 0 {
		return nil, orchestrator.ErrNoAnswers
	}
	blocks := make([]string, len(answers))
	for i, answer := range answers {
		blocks[i] = fmt.Sprintf("Answer %d: %s", i+1, answer)
	}
	return &model.ChatRequest{
		Messages: []model.Message{
			{Role: model.RoleSystem, Content: systemPrompt},
			{Role: model.RoleUser, Content: strings.Join(blocks, "\n\n")},
		},
	}, nil
}
