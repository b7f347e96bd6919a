package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearGatewayEnv blanks every variable applyEnvOverrides reads.
func clearGatewayEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"FOUNDRYGATE_PROVIDER", "FOUNDRYGATE_MODEL", "FOUNDRY_BINARY", "FOUNDRY_TIMEOUT",
		"FOUNDRY_FALLBACK_PATH", "FOUNDRYGATE_TEMP_DIR", "CUDA_VERSION", "FOUNDRYGATE_LOG_LEVEL",
	} {
		t.Setenv(k, "")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "foundrygate", cfg.Name)
	assert.Equal(t, "foundry", cfg.ProviderName)
	assert.True(t, cfg.IsLocal)
	assert.Equal(t, "foundry", cfg.Foundry.Binary)
	assert.Equal(t, DefaultFoundryTimeout, cfg.GetFoundryTimeout())
	assert.Equal(t, DefaultMaxVersionDigits, cfg.Foundry.GetMaxVersionDigits())
	assert.NoError(t, cfg.Validate())
}

func TestConfig_SaveLoad(t *testing.T) {
	clearGatewayEnv(t)

	path := filepath.Join(t.TempDir(), "nested", "foundrygate.yaml")

	cfg := DefaultConfig()
	cfg.ProviderModel = "microsoft/DialoGPT-small"
	cfg.Foundry.Timeout = "45s"
	cfg.Foundry.CUDAVersion = "5\n      7"
	cfg.Foundry.Fallback.Path = "/opt/foundry-cpu"

	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "microsoft/DialoGPT-small", loaded.ProviderModel)
	assert.Equal(t, 45*time.Second, loaded.GetFoundryTimeout())
	assert.Equal(t, "5\n      7", loaded.Foundry.CUDAVersion)
	assert.Equal(t, "/opt/foundry-cpu", loaded.Foundry.Fallback.Path)
}

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	clearGatewayEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().ProviderModel, cfg.ProviderModel)
}

func TestLoad_InvalidYAML(t *testing.T) {
	clearGatewayEnv(t)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("foundry: [unterminated"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	clearGatewayEnv(t)

	path := filepath.Join(t.TempDir(), "partial.yaml")
	content := `provider_name: foundry
provider_model: custom/model-name
provider_server_address: 127.0.0.1:8080
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "custom/model-name", cfg.ProviderModel)
	assert.Equal(t, "127.0.0.1:8080", cfg.ProviderServerAddress)
	assert.Equal(t, "foundry", cfg.Foundry.Binary)
	assert.NotEmpty(t, cfg.Foundry.Args)
}

func TestGetFoundryTimeout_Fallbacks(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want time.Duration
	}{
		{"valid", "90s", 90 * time.Second},
		{"empty", "", DefaultFoundryTimeout},
		{"garbage", "soon", DefaultFoundryTimeout},
		{"negative", "-5s", DefaultFoundryTimeout},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Foundry.Timeout = tt.in
			assert.Equal(t, tt.want, cfg.GetFoundryTimeout())
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "empty provider",
			mutate:  func(c *Config) { c.ProviderName = "" },
			wantErr: "provider_name is required",
		},
		{
			name:    "unknown provider",
			mutate:  func(c *Config) { c.ProviderName = "nonexistent" },
			wantErr: "invalid provider_name",
		},
		{
			name:    "foundry without model",
			mutate:  func(c *Config) { c.ProviderModel = " " },
			wantErr: "provider_model is required",
		},
		{
			name:    "args without artifact",
			mutate:  func(c *Config) { c.Foundry.Args = []string{"model", "run", "{model}"} },
			wantErr: "{artifact}",
		},
		{
			name:    "bad timeout",
			mutate:  func(c *Config) { c.Foundry.Timeout = "later" },
			wantErr: "foundry.timeout",
		},
		{
			name:    "digit bound out of range",
			mutate:  func(c *Config) { c.Foundry.MaxVersionDigits = 40 },
			wantErr: "max_version_digits",
		},
		{
			name:   "other catalog provider skips foundry checks",
			mutate: func(c *Config) { c.ProviderName = "ollama"; c.Foundry.Binary = "" },
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoggingConfig_IsCategoryEnabled(t *testing.T) {
	c := LoggingConfig{}
	assert.False(t, c.IsCategoryEnabled("gateway"))

	c.DebugMode = true
	assert.True(t, c.IsCategoryEnabled("gateway"))

	c.Categories = map[string]bool{"gateway": false}
	assert.False(t, c.IsCategoryEnabled("gateway"))
	assert.True(t, c.IsCategoryEnabled("tactile"))
}
