package classifier

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dagger77/tabdoc/engine/model"
	"github.com/Dagger77/tabdoc/orchestrator"
)

type fakeProvider struct {
	content string
	err     error
	gotReq  *model.ChatRequest
}

func (f *fakeProvider) Chat(_ context.Context, req *model.ChatRequest) (*model.ChatResponse, error) {
	f.gotReq = req
	if f.err != nil {
		return nil, f.err
	}
	return &model.ChatResponse{Content: f.content}, nil
}

func (f *fakeProvider) StreamChat(context.Context, *model.ChatRequest) (<-chan *model.ChatResponse, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeProvider) Name() string  { return "fake" }
func (f *fakeProvider) Model() string { return "fake-model" }

func TestClassifyNormalizesLabel(t *testing.T) {
	p := &fakeProvider{content: " Hybrid\n"}
	intent, err := New(p).Classify(context.Background(), "Show me data and explanation about lunch impact")
	require.NoError(t, err)
	assert.Equal(t, orchestrator.IntentHybrid, intent)

	require.Len(t, p.gotReq.Messages, 2)
	assert.Equal(t, model.RoleSystem, p.gotReq.Messages[0].Role)
	assert.Contains(t, p.gotReq.Messages[0].Content, "student_info_basic")
}

func TestClassifyRejectsUnknownLabel(t *testing.T) {
	p := &fakeProvider{content: "both, probably"}
	_, err := New(p).Classify(context.Background(), "What is STEM?")
	var intentErr *orchestrator.UnrecognizedIntentError
	require.ErrorAs(t, err, &intentErr)
	assert.Equal(t, "both, probably", intentErr.Label)
}

func TestClassifyProviderError(t *testing.T) {
	p := &fakeProvider{err: errors.New("upstream 500")}
	_, err := New(p).Classify(context.Background(), "What is STEM?")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upstream 500")
}
