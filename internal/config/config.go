package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config represents runtime configuration for the service.
type Config struct {
	BasicConfig BasicConfig               `json:"basic_config"`
	Providers   map[string]ProviderConfig `json:"providers"`
}

type ProviderConfig struct {
	BaseURL string `json:"base_url"`
	Model   string `json:"model"`
	APIKey  string `json:"api_key"`
}

type BasicConfig struct {
	ServerAddress string `json:"server_address"`
	// DatabaseDSN backs the conversation store. The default keeps all
	// state in process memory; no history outlives the server.
	DatabaseDSN          string `json:"database_dsn"`
	DefaultProvider      string `json:"default_provider"`
	SystemPrompt         string `json:"system_prompt"`
	LogLevel             string `json:"log_level"`
	LogPretty            bool   `json:"log_pretty"`
	StreamTimeoutSeconds int    `json:"stream_timeout_seconds"`
}

// Load reads configuration from the provided path (defaults to config.json).
func Load(path string) (*Config, error) {
	if path == "" {
		path = "config.json"
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	file, err := os.Open(absPath)
	if err != nil {
		return nil, fmt.Errorf("open config %s: %w", absPath, err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if len(cfg.Providers) == 0 {
		return nil, fmt.Errorf("at least one provider must be configured")
	}
	if cfg.BasicConfig.DefaultProvider == "" {
		cfg.BasicConfig.DefaultProvider = "openai"
	}
	if cfg.BasicConfig.DatabaseDSN == "" {
		cfg.BasicConfig.DatabaseDSN = ":memory:"
	}

	return &cfg, nil
}

// Provider returns the configuration block for the named provider.
func (c *Config) Provider(name string) (ProviderConfig, error) {
	provCfg, ok := c.Providers[name]
	if !ok {
		return ProviderConfig{}, fmt.Errorf("provider %s not configured", name)
	}
	return provCfg, nil
}
