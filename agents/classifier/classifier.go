// Package classifier labels questions with the intent that steers routing.
package classifier

import (
	"context"
	"fmt"

	"github.com/Dagger77/tabdoc/engine/model"
	"github.com/Dagger77/tabdoc/orchestrator"
)

const systemPrompt = "You are an intent classifier for a multi-agent system.\n\n" +
	"Given a user's question, respond with just one word:\n" +
	"- `sql` if the question asks for patterns, averages, trends, group comparisons, or any analysis of structured data in tables.\n" +
	"- `rag` if the question asks for definitions, context, or information that can be found in documents.\n" +
	"- `hybrid` if both documents and data are needed to answer the question.\n\n" +
	"Examples:\n" +
	"- \"What is the average reading score by lunch type?\" -> sql\n" +
	"- \"How does lunch type affect performance?\" -> sql\n" +
	"- \"What are the common parental education levels?\" -> sql\n" +
	"- \"Why is parental education important?\" -> rag\n" +
	"- \"Show me data and explanation about lunch impact\" -> hybrid\n\n" +
	"Available tables and columns:\n" +
	"- student_info_basic(Gender, EthnicGroup, ParentEduc, LunchType, TestPrep, MathScore, ReadingScore, WritingScore)\n" +
	"- student_info_detailed(Gender, EthnicGroup, ParentEduc, LunchType, TestPrep, ParentMaritalStatus, PracticeSport, IsFirstChild, NrSiblings, TransportMeans, WklyStudyHours, MathScore, ReadingScore, WritingScore)\n\n" +
	"Consider this schema when deciding if a question involves structured data."

// Classifier asks the model for a one-word intent label.
type Classifier struct {
	provider model.Provider
}

// New creates a model-backed classifier.
func New(p model.Provider) *Classifier {
	return &Classifier{provider: p}
}

// Classify returns the intent for a question. The raw label is normalized
// and validated against the closed intent set; anything else is an error,
// never a silent default route.
func (c *Classifier) Classify(ctx context.Context, question string) (orchestrator.Intent, error) {
	resp, err := c.provider.Chat(ctx, &model.ChatRequest{
		Messages: []model.Message{
			{Role: model.RoleSystem, Content: systemPrompt},
			{Role: model.RoleUser, Content: question},
		},
		MaxTokens: 8,
	})
	if err != nil {
		return "", fmt.Errorf("classify: %w", err)
	}
	return orchestrator.ParseIntent(resp.Content)
}
