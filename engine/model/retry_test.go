package model

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flakyProvider struct {
	failures int
	calls    int
}

func (f *flakyProvider) Chat(context.Context, *ChatRequest) (*ChatResponse, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, errors.New("temporarily unavailable")
	}
	return &ChatResponse{Content: "ok"}, nil
}

func (f *flakyProvider) StreamChat(ctx context.Context, req *ChatRequest) (<-chan *ChatResponse, error) {
	if _, err := f.Chat(ctx, req); err != nil {
		return nil, err
	}
	ch := make(chan *ChatResponse, 1)
	ch <- &ChatResponse{Content: "ok", Delta: true}
	close(ch)
	return ch, nil
}

func (f *flakyProvider) Name() string  { return "flaky" }
func (f *flakyProvider) Model() string { return "flaky-model" }

func fastRetries(p Provider, n int) *Retried {
	r := WithRetries(p, n)
	r.baseDelay = time.Millisecond
	r.maxDelay = time.Millisecond
	return r
}

func TestRetriedChatRecovers(t *testing.T) {
	flaky := &flakyProvider{failures: 2}
	r := fastRetries(flaky, 3)

	resp, err := r.Chat(context.Background(), &ChatRequest{})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content)
	assert.Equal(t, 3, flaky.calls)
}

func TestRetriedChatExhausted(t *testing.T) {
	flaky := &flakyProvider{failures: 10}
	r := fastRetries(flaky, 2)

	_, err := r.Chat(context.Background(), &ChatRequest{})
	require.Error(t, err)
	assert.Equal(t, 3, flaky.calls, "initial call plus two retries")
}

func TestRetriedSkipsNonRetryable(t *testing.T) {
	flaky := &flakyProvider{failures: 10}
	r := fastRetries(flaky, 3)
	r.RetryableError = func(error) bool { return false }

	_, err := r.Chat(context.Background(), &ChatRequest{})
	require.Error(t, err)
	assert.Equal(t, 1, flaky.calls)
}

func TestRetriedStreamChatRecovers(t *testing.T) {
	flaky := &flakyProvider{failures: 1}
	r := fastRetries(flaky, 2)

	ch, err := r.StreamChat(context.Background(), &ChatRequest{})
	require.NoError(t, err)
	frag := <-ch
	assert.Equal(t, "ok", frag.Content)
}
