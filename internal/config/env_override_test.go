package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnvOverrides_Provider(t *testing.T) {
	t.Run("provider and model", func(t *testing.T) {
		clearGatewayEnv(t)
		t.Setenv("FOUNDRYGATE_PROVIDER", "ollama")
		t.Setenv("FOUNDRYGATE_MODEL", "deepseek-r1:14b")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.Equal(t, "ollama", cfg.ProviderName)
		assert.Equal(t, "deepseek-r1:14b", cfg.ProviderModel)
	})

	t.Run("empty values leave config untouched", func(t *testing.T) {
		clearGatewayEnv(t)

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.Equal(t, DefaultConfig(), cfg)
	})
}

func TestEnvOverrides_Foundry(t *testing.T) {
	clearGatewayEnv(t)
	t.Setenv("FOUNDRY_BINARY", "/usr/local/bin/foundry")
	t.Setenv("FOUNDRY_TIMEOUT", "12s")
	t.Setenv("FOUNDRY_FALLBACK_PATH", "/opt/cpu/foundry-cpu")
	t.Setenv("FOUNDRYGATE_TEMP_DIR", "/var/tmp/fg")
	t.Setenv("FOUNDRYGATE_LOG_LEVEL", "debug")

	cfg := DefaultConfig()
	cfg.applyEnvOverrides()

	assert.Equal(t, "/usr/local/bin/foundry", cfg.Foundry.Binary)
	assert.Equal(t, "12s", cfg.Foundry.Timeout)
	assert.Equal(t, "/opt/cpu/foundry-cpu", cfg.Foundry.Fallback.Path)
	assert.Equal(t, "/var/tmp/fg", cfg.Foundry.TempDir)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestEnvOverrides_CUDAVersion(t *testing.T) {
	t.Run("ambient value fills empty config", func(t *testing.T) {
		clearGatewayEnv(t)
		t.Setenv("CUDA_VERSION", "5\n      7")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.Equal(t, "5\n      7", cfg.Foundry.CUDAVersion)
	})

	t.Run("pinned config value wins", func(t *testing.T) {
		clearGatewayEnv(t)
		t.Setenv("CUDA_VERSION", "11.8")

		cfg := DefaultConfig()
		cfg.Foundry.CUDAVersion = "12.4.1"
		cfg.applyEnvOverrides()

		assert.Equal(t, "12.4.1", cfg.Foundry.CUDAVersion)
	})
}
