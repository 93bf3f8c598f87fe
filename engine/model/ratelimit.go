package model

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// RateLimited wraps a Provider with a token-bucket limiter so bursts of
// graph walks cannot exceed the upstream API's request budget.
type RateLimited struct {
	Provider
	limiter *rate.Limiter
}

// WithRateLimit wraps the provider, allowing rps requests per second with
// the given burst size.
func WithRateLimit(p Provider, rps float64, burst int) *RateLimited {
	if burst < 1 {
		burst = 1
	}
	return &RateLimited{
		Provider: p,
		limiter:  rate.NewLimiter(rate.Limit(rps), burst),
	}
}

func (r *RateLimited) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}
	return r.Provider.Chat(ctx, req)
}

func (r *RateLimited) StreamChat(ctx context.Context, req *ChatRequest) (<-chan *ChatResponse, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}
	return r.Provider.StreamChat(ctx, req)
}
