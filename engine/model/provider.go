// Package model defines pluggable LLM provider interfaces.
package model

import "context"

// Role constants for chat messages.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message represents a chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the input to a chat completion.
type ChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature,omitempty"`
	Stream      bool      `json:"stream,omitempty"`
	// ResponseFormat optionally forces JSON output. Set to "json_object" for JSON mode.
	ResponseFormat string `json:"response_format,omitempty"`
}

// ChatResponse is the output of a chat completion.
type ChatResponse struct {
	ID      string `json:"id"`
	Content string `json:"content"`
	Role    string `json:"role"`
	Usage   Usage  `json:"usage"`
	// Delta is true when this is a partial streaming response.
	Delta bool `json:"delta,omitempty"`
}

// Usage tracks token consumption.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

// Provider is the interface all LLM backends must implement.
type Provider interface {
	// Chat sends a request and returns a complete response.
	Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error)
	// StreamChat returns a channel of partial responses for streaming.
	// The channel is closed when the response is complete.
	StreamChat(ctx context.Context, req *ChatRequest) (<-chan *ChatResponse, error)
	// Name returns a human-readable name for this provider.
	Name() string
	// Model returns the default model ID for this provider.
	Model() string
}

// ProviderConfig holds common configuration shared by all providers.
type ProviderConfig struct {
	APIKey     string `json:"api_key"`
	BaseURL    string `json:"base_url,omitempty"`
	Model      string `json:"model"`
	TimeoutSec int    `json:"timeout_sec,omitempty"`
	OrgID      string `json:"org_id,omitempty"`
}
