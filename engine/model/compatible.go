package model

// Base URLs for popular OpenAI-compatible inference endpoints.
var compatibleBaseURLs = map[string]string{
	"groq":     "https://api.groq.com/openai/v1",
	"deepseek": "https://api.deepseek.com/v1",
	"together": "https://api.together.xyz/v1",
	"ollama":   "http://localhost:11434/v1",
}

// NewCompatible creates a provider for an OpenAI-compatible endpoint.
// Known names (groq, deepseek, together, ollama) get a preset base URL;
// anything else must supply cfg.BaseURL.
func NewCompatible(name string, cfg ProviderConfig) *OpenAI {
	if cfg.BaseURL == "" {
		cfg.BaseURL = compatibleBaseURLs[name]
	}
	p := NewOpenAIWithConfig(cfg)
	p.name = name
	return p
}
