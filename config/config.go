// Package config loads the YAML configuration for the router service.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Dagger77/tabdoc/engine/model"
)

// ModelConfig describes which model provider and settings to use.
type ModelConfig struct {
	Provider   string  `yaml:"provider"`          // openai, groq, deepseek, together, ollama, compatible
	Model      string  `yaml:"model,omitempty"`   // model ID, e.g. "gpt-4o-mini"
	APIKey     string  `yaml:"api_key,omitempty"` // literal or ${ENV_VAR}
	BaseURL    string  `yaml:"base_url,omitempty"`
	TimeoutSec int     `yaml:"timeout_sec,omitempty"`
	RPS        float64 `yaml:"rps,omitempty"`     // requests per second, 0 disables limiting
	Retries    int     `yaml:"retries,omitempty"` // transient-failure retries, 0 disables
}

// DataConfig locates the knowledge base inputs and derived stores.
type DataConfig struct {
	Dir       string `yaml:"dir,omitempty"`        // CSV source directory
	DocsDir   string `yaml:"docs_dir,omitempty"`   // RTF source directory
	DBPath    string `yaml:"db_path,omitempty"`    // SQLite database file
	IndexPath string `yaml:"index_path,omitempty"` // document index directory
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Addr string `yaml:"addr,omitempty"`
}

// RouterConfig tunes routing behavior.
type RouterConfig struct {
	NodeTimeoutSec int `yaml:"node_timeout_sec,omitempty"`
	SQLMaxRetries  int `yaml:"sql_max_retries,omitempty"`
	RAGTopK        int `yaml:"rag_top_k,omitempty"`
}

// Config is the top-level structure of a YAML config file.
type Config struct {
	Model  ModelConfig  `yaml:"model"`
	Data   DataConfig   `yaml:"data,omitempty"`
	Server ServerConfig `yaml:"server,omitempty"`
	Router RouterConfig `yaml:"router,omitempty"`
}

// Load parses a YAML config file. Searches in order: given path,
// tabdoc.yaml, tabdoc.yml, ~/.tabdoc/config.yaml. ${VAR} references in
// string fields are expanded from the environment.
func Load(path string) (*Config, error) {
	data, resolvedPath, err := readConfigFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", resolvedPath, err)
	}
	expandEnvInConfig(cfg)
	return cfg, nil
}

// Default returns a config with all defaults applied and no provider set.
func Default() *Config {
	return &Config{
		Model: ModelConfig{Provider: "openai"},
		Data: DataConfig{
			Dir:       "data/knowledgebase-data",
			DocsDir:   "data/knowledgebase-docs",
			DBPath:    "student_data.db",
			IndexPath: "student_docs.bleve",
		},
		Server: ServerConfig{Addr: ":8080"},
		Router: RouterConfig{
			NodeTimeoutSec: 120,
			SQLMaxRetries:  2,
			RAGTopK:        3,
		},
	}
}

// NodeTimeout returns the per-node timeout as a duration.
func (c *Config) NodeTimeout() time.Duration {
	return time.Duration(c.Router.NodeTimeoutSec) * time.Second
}

// BuildProvider constructs the model provider described by the config,
// wrapped in a rate limiter when one is configured.
func (c *Config) BuildProvider() (model.Provider, error) {
	mc := c.Model
	pc := model.ProviderConfig{
		APIKey:     mc.APIKey,
		Model:      mc.Model,
		BaseURL:    mc.BaseURL,
		TimeoutSec: mc.TimeoutSec,
	}

	var p model.Provider
	switch strings.ToLower(mc.Provider) {
	case "", "openai":
		p = model.NewOpenAIWithConfig(pc)
	case "groq", "deepseek", "together", "ollama", "compatible":
		p = model.NewCompatible(strings.ToLower(mc.Provider), pc)
	default:
		return nil, fmt.Errorf("unknown provider %q (supported: openai, groq, deepseek, together, ollama, compatible)", mc.Provider)
	}

	if mc.RPS > 0 {
		p = model.WithRateLimit(p, mc.RPS, 1)
	}
	if mc.Retries > 0 {
		p = model.WithRetries(p, mc.Retries)
	}
	return p, nil
}

func readConfigFile(path string) ([]byte, string, error) {
	candidates := []string{path}
	if path == "" {
		candidates = []string{"tabdoc.yaml", "tabdoc.yml"}
		if home, err := os.UserHomeDir(); err == nil {
			candidates = append(candidates,
				filepath.Join(home, ".tabdoc", "config.yaml"),
				filepath.Join(home, ".tabdoc", "config.yml"),
			)
		}
	}

	for _, p := range candidates {
		data, err := os.ReadFile(p)
		if err == nil {
			return data, p, nil
		}
	}

	if path != "" {
		return nil, path, fmt.Errorf("config file not found: %s", path)
	}
	return nil, "", fmt.Errorf("no config found (looked in: %s)", strings.Join(candidates, ", "))
}

// expandEnvInConfig replaces ${VAR} references with environment variable values.
func expandEnvInConfig(cfg *Config) {
	cfg.Model.APIKey = expandEnv(cfg.Model.APIKey)
	cfg.Model.BaseURL = expandEnv(cfg.Model.BaseURL)
	cfg.Data.Dir = expandEnv(cfg.Data.Dir)
	cfg.Data.DocsDir = expandEnv(cfg.Data.DocsDir)
	cfg.Data.DBPath = expandEnv(cfg.Data.DBPath)
	cfg.Data.IndexPath = expandEnv(cfg.Data.IndexPath)
	cfg.Server.Addr = expandEnv(cfg.Server.Addr)
}

func expandEnv(s string) string {
	if s == "" {
		return s
	}
	return os.ExpandEnv(s)
}
