package model

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultTimeout = 120 * time.Second

// OpenAI implements Provider for OpenAI chat completion endpoints and any
// API speaking the same wire format.
type OpenAI struct {
	name    string
	config  ProviderConfig
	client  *http.Client
	headers http.Header
}

// NewOpenAI creates a new OpenAI provider with the given API key.
func NewOpenAI(apiKey string) *OpenAI {
	return NewOpenAIWithConfig(ProviderConfig{
		APIKey:  apiKey,
		BaseURL: "https://api.openai.com/v1",
		Model:   "gpt-4o-mini",
	})
}

// NewOpenAIWithConfig creates an OpenAI provider with full configuration.
func NewOpenAIWithConfig(cfg ProviderConfig) *OpenAI {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}

	timeout := defaultTimeout
	if cfg.TimeoutSec > 0 {
		timeout = time.Duration(cfg.TimeoutSec) * time.Second
	}

	headers := http.Header{}
	headers.Set("Content-Type", "application/json")
	headers.Set("Authorization", "Bearer "+cfg.APIKey)
	if cfg.OrgID != "" {
		headers.Set("OpenAI-Organization", cfg.OrgID)
	}

	return &OpenAI{
		name:    "openai",
		config:  cfg,
		client:  &http.Client{Timeout: timeout},
		headers: headers,
	}
}

func (o *OpenAI) Name() string  { return o.name }
func (o *OpenAI) Model() string { return o.config.Model }

func (o *OpenAI) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	resp, err := o.postChat(ctx, o.requestBody(req, false))
	if err != nil {
		return nil, fmt.Errorf("%s chat: %w", o.name, err)
	}
	defer func() {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	var raw openAIChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("%s chat decode: %w", o.name, err)
	}
	return convertOpenAIResponse(&raw), nil
}

func (o *OpenAI) StreamChat(ctx context.Context, req *ChatRequest) (<-chan *ChatResponse, error) {
	resp, err := o.postChat(ctx, o.requestBody(req, true))
	if err != nil {
		return nil, fmt.Errorf("%s stream: %w", o.name, err)
	}

	ch := make(chan *ChatResponse, 64)
	go func() {
		defer resp.Body.Close()
		defer close(ch)
		readOpenAISSEStream(resp, ch)
	}()
	return ch, nil
}

// postChat sends one chat-completion request and returns the response with
// its body still open. Non-200 statuses are turned into errors, with the
// leading bytes of the body attached for diagnosis.
func (o *OpenAI) postChat(ctx context.Context, body map[string]any) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		o.config.BaseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header = o.headers.Clone()

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, fmt.Errorf("%s: %s", resp.Status, detail)
	}
	return resp, nil
}

func (o *OpenAI) requestBody(req *ChatRequest, stream bool) map[string]any {
	modelID := req.Model
	if modelID == "" {
		modelID = o.config.Model
	}

	messages := make([]map[string]any, 0, len(req.Messages))
	for _, m := range req.Messages {
		messages = append(messages, map[string]any{"role": m.Role, "content": m.Content})
	}

	body := map[string]any{
		"model":    modelID,
		"messages": messages,
	}
	if req.MaxTokens > 0 {
		body["max_tokens"] = req.MaxTokens
	}
	if req.Temperature > 0 {
		body["temperature"] = req.Temperature
	}
	if req.ResponseFormat == "json_object" {
		body["response_format"] = map[string]string{"type": "json_object"}
	}
	if stream {
		body["stream"] = true
	}
	return body
}

// convertOpenAIResponse maps the raw API response to a ChatResponse.
func convertOpenAIResponse(raw *openAIChatResponse) *ChatResponse {
	if len(raw.Choices) == 0 {
		return &ChatResponse{ID: raw.ID, Role: RoleAssistant}
	}
	return &ChatResponse{
		ID:      raw.ID,
		Content: raw.Choices[0].Message.Content,
		Role:    RoleAssistant,
		Usage: Usage{
			PromptTokens:     raw.Usage.PromptTokens,
			CompletionTokens: raw.Usage.CompletionTokens,
		},
	}
}

// readOpenAISSEStream reads SSE events from an OpenAI-compatible streaming response.
func readOpenAISSEStream(resp *http.Response, ch chan<- *ChatResponse) {
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")
		if data == "[DONE]" {
			return
		}
		var chunk openAIChatResponse
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			continue
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		ch <- &ChatResponse{
			ID:      chunk.ID,
			Content: chunk.Choices[0].Delta.Content,
			Role:    RoleAssistant,
			Delta:   true,
		}
	}
}

// openAIChatResponse is the raw OpenAI API response shape.
type openAIChatResponse struct {
	ID      string `json:"id"`
	Choices []struct {
		Index        int    `json:"index"`
		FinishReason string `json:"finish_reason"`
		Message      struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		Delta struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}
