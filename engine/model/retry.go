package model

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// Retried wraps a Provider and replays failed Chat calls with exponential
// backoff and jitter. Streaming calls are retried only until the stream is
// established; fragments already delivered are never replayed.
type Retried struct {
	Provider
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration

	// RetryableError optionally classifies errors. If nil, all errors trigger retry.
	RetryableError func(err error) bool
}

// WithRetries wraps p so transient failures are retried up to maxRetries times.
func WithRetries(p Provider, maxRetries int) *Retried {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &Retried{
		Provider:   p,
		maxRetries: maxRetries,
		baseDelay:  500 * time.Millisecond,
		maxDelay:   30 * time.Second,
	}
}

func (r *Retried) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	var resp *ChatResponse
	err := r.attempt(ctx, func() error {
		var err error
		resp, err = r.Provider.Chat(ctx, req)
		return err
	})
	return resp, err
}

func (r *Retried) StreamChat(ctx context.Context, req *ChatRequest) (<-chan *ChatResponse, error) {
	var ch <-chan *ChatResponse
	err := r.attempt(ctx, func() error {
		var err error
		ch, err = r.Provider.StreamChat(ctx, req)
		return err
	})
	return ch, err
}

func (r *Retried) attempt(ctx context.Context, call func() error) error {
	var err error
	for attempt := 0; ; attempt++ {
		err = call()
		if err == nil {
			return nil
		}
		if attempt >= r.maxRetries {
			return err
		}
		if r.RetryableError != nil && !r.RetryableError(err) {
			return err
		}
		select {
		case <-time.After(r.backoff(attempt + 1)):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (r *Retried) backoff(attempt int) time.Duration {
	delay := time.Duration(float64(r.baseDelay) * math.Pow(2, float64(attempt-1)))
	if delay > r.maxDelay {
		delay = r.maxDelay
	}
	// Full jitter keeps concurrent retries from thundering.
	return time.Duration(rand.Int63n(int64(delay) + 1))
}
