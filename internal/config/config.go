package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all foundrygate configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// Provider selection. Both values are opaque and forwarded as-is.
	IsLocal               bool   `yaml:"is_local"`
	ProviderName          string `yaml:"provider_name"`
	ProviderModel         string `yaml:"provider_model"`
	ProviderServerAddress string `yaml:"provider_server_address"`

	// Local runtime invocation
	Foundry FoundryConfig `yaml:"foundry"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "foundrygate",
		Version: "0.3.0",

		IsLocal:               true,
		ProviderName:          "foundry",
		ProviderModel:         "phi-3.5-mini",
		ProviderServerAddress: "127.0.0.1:5000",

		Foundry: DefaultFoundryConfig(),

		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load loads configuration from a YAML file.
// A .env file in the working directory is loaded first so its values can feed
// the environment overrides; variables already set in the process win.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Defaults if config file doesn't exist
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("FOUNDRYGATE_PROVIDER"); v != "" {
		c.ProviderName = v
	}
	if v := os.Getenv("FOUNDRYGATE_MODEL"); v != "" {
		c.ProviderModel = v
	}
	if v := os.Getenv("FOUNDRY_BINARY"); v != "" {
		c.Foundry.Binary = v
	}
	if v := os.Getenv("FOUNDRY_TIMEOUT"); v != "" {
		c.Foundry.Timeout = v
	}
	if v := os.Getenv("FOUNDRY_FALLBACK_PATH"); v != "" {
		c.Foundry.Fallback.Path = v
	}
	if v := os.Getenv("FOUNDRYGATE_TEMP_DIR"); v != "" {
		c.Foundry.TempDir = v
	}
	// The raw runtime version only comes from the ambient env when the config
	// does not pin one.
	if v := os.Getenv("CUDA_VERSION"); v != "" && c.Foundry.CUDAVersion == "" {
		c.Foundry.CUDAVersion = v
	}
	if v := os.Getenv("FOUNDRYGATE_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// GetFoundryTimeout returns the per-launch timeout as a duration.
func (c *Config) GetFoundryTimeout() time.Duration {
	d, err := time.ParseDuration(c.Foundry.Timeout)
	if err != nil || d <= 0 {
		return DefaultFoundryTimeout
	}
	return d
}

// ValidProviders lists the provider names the dispatch boundary recognizes.
// Only "foundry" is built into this gateway.
var ValidProviders = []string{"foundry", "ollama", "lm-studio", "openai", "deepseek", "huggingface", "server"}

// Validate validates the configuration.
func (c *Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.ProviderName) == "" {
		errs = append(errs, errors.New("provider_name is required"))
	} else {
		validProvider := false
		for _, p := range ValidProviders {
			if c.ProviderName == p {
				validProvider = true
				break
			}
		}
		if !validProvider {
			errs = append(errs, fmt.Errorf("invalid provider_name: %s (valid: %v)", c.ProviderName, ValidProviders))
		}
	}

	if c.ProviderName == "foundry" {
		if strings.TrimSpace(c.ProviderModel) == "" {
			errs = append(errs, errors.New("provider_model is required for the foundry provider"))
		}
		if err := c.Foundry.Validate(); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
