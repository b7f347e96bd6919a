package perception

import (
	"errors"
	"testing"

	"foundrygate/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClientFromConfig(t *testing.T) {
	t.Run("foundry", func(t *testing.T) {
		cfg := config.DefaultConfig()
		cfg.ProviderModel = "microsoft/DialoGPT-small"

		client, err := NewClientFromConfig(ProviderConfigFromConfig(cfg))
		require.NoError(t, err)

		fc, ok := client.(*FoundryClient)
		require.True(t, ok, "expected *FoundryClient, got %T", client)
		assert.Equal(t, "microsoft/DialoGPT-small", fc.Model())
	})

	t.Run("foundry without runtime config", func(t *testing.T) {
		client, err := NewClientFromConfig(&ProviderConfig{Provider: ProviderFoundry, Model: "phi"})
		require.NoError(t, err)
		assert.Equal(t, "phi", client.(*FoundryClient).Model())
	})

	for _, name := range []Provider{ProviderOllama, ProviderLMStudio, ProviderOpenAI, ProviderDeepSeek, ProviderHuggingFace, ProviderServer} {
		t.Run(string(name), func(t *testing.T) {
			_, err := NewClientFromConfig(&ProviderConfig{Provider: name})
			assert.True(t, errors.Is(err, ErrProviderNotBuiltIn))
			assert.Contains(t, err.Error(), string(name))
		})
	}

	t.Run("unknown", func(t *testing.T) {
		_, err := NewClientFromConfig(&ProviderConfig{Provider: "nonexistent"})
		require.Error(t, err)
		assert.False(t, errors.Is(err, ErrProviderNotBuiltIn))
		assert.Contains(t, err.Error(), "unknown provider")
	})
}

func TestProviderCatalogMatchesConfig(t *testing.T) {
	// Every name config accepts must dispatch to something other than "unknown".
	for _, name := range config.ValidProviders {
		_, err := NewClientFromConfig(&ProviderConfig{Provider: Provider(name)})
		if err != nil {
			assert.ErrorIs(t, err, ErrProviderNotBuiltIn, name)
		}
	}
}

func TestProviderConfigFromConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.ProviderName = "foundry"
	cfg.ProviderModel = "custom/model"
	cfg.ProviderServerAddress = "127.0.0.1:8080"

	pc := ProviderConfigFromConfig(cfg)
	assert.Equal(t, ProviderFoundry, pc.Provider)
	assert.Equal(t, "custom/model", pc.Model)
	assert.Equal(t, "127.0.0.1:8080", pc.ServerAddress)
	assert.True(t, pc.IsLocal)
	assert.Same(t, cfg, pc.Config)
}
