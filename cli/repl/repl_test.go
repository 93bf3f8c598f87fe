package repl

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dagger77/tabdoc/orchestrator"
	"github.com/Dagger77/tabdoc/storage/adapters/sqlite"
)

type fixedClassifier struct{}

func (fixedClassifier) Classify(context.Context, string) (orchestrator.Intent, error) {
	return orchestrator.IntentRAG, nil
}

type fixedSQL struct{}

func (fixedSQL) Query(context.Context, string) (*orchestrator.SQLResult, error) {
	return &orchestrator.SQLResult{}, nil
}

type fixedRetriever struct{}

func (fixedRetriever) Answer(context.Context, string) (string, error) {
	return "Lunch type correlates with scores.", nil
}

type fixedSummarizer struct{}

func (fixedSummarizer) Summarize(_ context.Context, answers []string) (string, error) {
	return answers[0], nil
}

func (fixedSummarizer) SummarizeStream(_ context.Context, answers []string) (<-chan string, error) {
	ch := make(chan string, 1)
	ch <- answers[0]
	close(ch)
	return ch, nil
}

func newTestREPL(t *testing.T, input string) (*REPL, *bytes.Buffer) {
	t.Helper()
	rt, err := orchestrator.New(fixedClassifier{}, fixedSQL{}, fixedRetriever{}, fixedSummarizer{})
	require.NoError(t, err)

	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	require.NoError(t, store.Migrate(context.Background()))
	t.Cleanup(func() { store.Close() })

	r := New(rt, store)
	var out bytes.Buffer
	r.in = strings.NewReader(input)
	r.out = &out
	return r, &out
}

func TestQuestionRoundTrip(t *testing.T) {
	r, out := newTestREPL(t, "does lunch type matter?\n/quit\n")
	require.NoError(t, r.Start(context.Background()))

	assert.Contains(t, out.String(), "Lunch type correlates with scores.")
	assert.Contains(t, out.String(), "Goodbye.")
}

func TestHistoryCommand(t *testing.T) {
	r, out := newTestREPL(t, "does lunch type matter?\n/history\n/quit\n")
	require.NoError(t, r.Start(context.Background()))

	assert.Contains(t, out.String(), "[rag   ] does lunch type matter?")
}

func TestIntentCommand(t *testing.T) {
	r, out := newTestREPL(t, "does lunch type matter?\n/intent\n/quit\n")
	require.NoError(t, r.Start(context.Background()))

	assert.Contains(t, out.String(), "intent:  rag")
	assert.Contains(t, out.String(), "classify -> rag -> summarize")
}

func TestUnknownCommand(t *testing.T) {
	r, out := newTestREPL(t, "/frobnicate\n/quit\n")
	require.NoError(t, r.Start(context.Background()))
	assert.Contains(t, out.String(), "Goodbye.")
}

func TestSessionsCommand(t *testing.T) {
	r, out := newTestREPL(t, "/sessions\n/quit\n")
	require.NoError(t, r.Start(context.Background()))
	assert.Contains(t, out.String(), "channel=cli")
}
