package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Storage   StorageConfig   `json:"storage"`
	Providers ProvidersConfig `json:"providers"`
	Generator GeneratorConfig `json:"generator"`
	Engine    EngineConfig    `json:"engine"`
	AutoSave  AutoSaveConfig  `json:"autosave"`
	mu        sync.RWMutex
}

type StorageConfig struct {
	Workspace string `json:"workspace" env:"LOREWEAVER_STORAGE_WORKSPACE"`
	CacheSize int    `json:"cache_size" env:"LOREWEAVER_STORAGE_CACHE_SIZE"`
}

type ProvidersConfig struct {
	OpenRouter ProviderConfig `json:"openrouter"`
}

type ProviderConfig struct {
	APIKey     string `json:"api_key" env:"LOREWEAVER_PROVIDERS_OPENROUTER_API_KEY"`
	APIKeyFile string `json:"api_key_file,omitempty" env:"LOREWEAVER_PROVIDERS_OPENROUTER_API_KEY_FILE"`
	APIBase    string `json:"api_base" env:"LOREWEAVER_PROVIDERS_OPENROUTER_API_BASE"`
	Proxy      string `json:"proxy,omitempty" env:"LOREWEAVER_PROVIDERS_OPENROUTER_PROXY"`
}

type GeneratorConfig struct {
	Provider       string  `json:"provider" env:"LOREWEAVER_GENERATOR_PROVIDER"`
	Model          string  `json:"model" env:"LOREWEAVER_GENERATOR_MODEL"`
	MaxTokens      int     `json:"max_tokens" env:"LOREWEAVER_GENERATOR_MAX_TOKENS"`
	Temperature    float64 `json:"temperature" env:"LOREWEAVER_GENERATOR_TEMPERATURE"`
	TimeoutSeconds int     `json:"timeout_seconds" env:"LOREWEAVER_GENERATOR_TIMEOUT_SECONDS"`
}

type EngineConfig struct {
	GuestModeLimit            int `json:"guest_mode_limit" env:"LOREWEAVER_ENGINE_GUEST_MODE_LIMIT"`
	MemoryImportanceThreshold int `json:"memory_importance_threshold" env:"LOREWEAVER_ENGINE_MEMORY_IMPORTANCE_THRESHOLD"`
	MemoryQueryLimit          int `json:"memory_query_limit" env:"LOREWEAVER_ENGINE_MEMORY_QUERY_LIMIT"`
}

type AutoSaveConfig struct {
	Enabled  bool   `json:"enabled" env:"LOREWEAVER_AUTOSAVE_ENABLED"`
	Schedule string `json:"schedule" env:"LOREWEAVER_AUTOSAVE_SCHEDULE"` // cron expression or gronx tag
}

func DefaultConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			Workspace: "~/.loreweaver/workspace",
			CacheSize: 512,
		},
		Providers: ProvidersConfig{
			OpenRouter: ProviderConfig{},
		},
		Generator: GeneratorConfig{
			Provider:       "openrouter",
			Model:          "openai/gpt-5.2",
			MaxTokens:      2048,
			Temperature:    0.8,
			TimeoutSeconds: 30,
		},
		Engine: EngineConfig{
			GuestModeLimit:            10,
			MemoryImportanceThreshold: 5,
			MemoryQueryLimit:          50,
		},
		AutoSave: AutoSaveConfig{
			Enabled:  true,
			Schedule: "@5minutes",
		},
	}
}

func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
	} else if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func SaveConfig(path string, cfg *Config) error {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600)
}

func (c *Config) WorkspacePath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return expandHome(c.Storage.Workspace)
}

// DatabasePath is where the sqlite-backed store keeps engine state.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.WorkspacePath(), "state", "loreweaver.db")
}

func (c *Config) GetAPIKey() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Providers.OpenRouter.APIKey
}

func (c *Config) GetAPIBase() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.Providers.OpenRouter.APIBase != "" {
		return c.Providers.OpenRouter.APIBase
	}
	return "https://openrouter.ai/api/v1"
}

func (c *Config) GenerationTimeout() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.Generator.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.Generator.TimeoutSeconds) * time.Second
}

func expandHome(path string) string {
	if path == "" {
		return path
	}
	if path[0] == '~' {
		home, _ := os.UserHomeDir()
		if len(path) > 1 && path[1] == '/' {
			return home + path[1:]
		}
		return home
	}
	return path
}
