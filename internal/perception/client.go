package perception

import (
	"errors"
	"fmt"

	"foundrygate/internal/config"
	"foundrygate/internal/types"
)

// LLMClient defines the interface for text-generation backends.
// This is an alias to types.LLMClient for use within the perception package.
type LLMClient = types.LLMClient

// Provider represents a text-generation backend.
type Provider string

const (
	ProviderFoundry     Provider = "foundry"
	ProviderOllama      Provider = "ollama"
	ProviderLMStudio    Provider = "lm-studio"
	ProviderOpenAI      Provider = "openai"
	ProviderDeepSeek    Provider = "deepseek"
	ProviderHuggingFace Provider = "huggingface"
	ProviderServer      Provider = "server"
)

// ErrProviderNotBuiltIn is returned for catalog providers this gateway
// recognizes but does not implement.
var ErrProviderNotBuiltIn = errors.New("provider not built in")

// ProviderConfig holds the resolved provider selection. Provider and Model
// are opaque and forwarded as-is.
type ProviderConfig struct {
	Provider      Provider
	Model         string
	ServerAddress string
	IsLocal       bool

	// Config carries the runtime invocation settings for the foundry provider.
	Config *config.Config
}

// ProviderConfigFromConfig resolves the provider selection from cfg.
func ProviderConfigFromConfig(cfg *config.Config) *ProviderConfig {
	return &ProviderConfig{
		Provider:      Provider(cfg.ProviderName),
		Model:         cfg.ProviderModel,
		ServerAddress: cfg.ProviderServerAddress,
		IsLocal:       cfg.IsLocal,
		Config:        cfg,
	}
}

// NewClientFromConfig creates an LLM client from a provider config.
func NewClientFromConfig(pc *ProviderConfig) (LLMClient, error) {
	switch pc.Provider {
	case ProviderFoundry:
		cfg := pc.Config
		if cfg == nil {
			cfg = config.DefaultConfig()
		}
		client := NewFoundryClient(cfg)
		if pc.Model != "" {
			client.SetModel(pc.Model)
		}
		return client, nil

	case ProviderOllama, ProviderLMStudio, ProviderOpenAI, ProviderDeepSeek, ProviderHuggingFace, ProviderServer:
		return nil, fmt.Errorf("%w: %s", ErrProviderNotBuiltIn, pc.Provider)

	default:
		return nil, fmt.Errorf("unknown provider: %s", pc.Provider)
	}
}
