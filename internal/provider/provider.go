package provider

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino-ext/components/model/claude"
	"github.com/cloudwego/eino-ext/components/model/ollama"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"

	"github.com/dkovac/seeker/internal/config"
)

type providerName string

const (
	providerOpenRouter providerName = "openrouter"
	providerClaude     providerName = "claude"
	providerOpenAI     providerName = "openai"
	providerDeepSeek   providerName = "deepseek"
	providerOllama     providerName = "ollama"
)

// NewChatModel creates a ChatModel based on configuration. The model name's
// vendor prefix (e.g. "anthropic/...") picks the provider when its key is set;
// otherwise the first configured provider wins.
func NewChatModel(ctx context.Context, cfg *config.Config) (model.ChatModel, error) {
	name, pcfg, err := resolveProvider(cfg)
	if err != nil {
		return nil, err
	}

	d := cfg.Agents.Defaults
	switch name {
	case providerOpenRouter:
		// OpenRouter routes on the full vendor-prefixed name.
		return openai.NewChatModel(ctx, &openai.ChatModelConfig{
			Model:       d.Model,
			APIKey:      pcfg.APIKey,
			BaseURL:     "https://openrouter.ai/api/v1",
			Temperature: toFloat32Ptr(d.Temperature),
			MaxTokens:   toIntPtr(d.MaxTokens),
		})
	case providerClaude:
		return newClaudeModel(ctx, pcfg, d)
	case providerOpenAI:
		return newOpenAICompatModel(ctx, pcfg.APIKey, pcfg.BaseURL, d)
	case providerDeepSeek:
		return newOpenAICompatModel(ctx, pcfg.APIKey, "https://api.deepseek.com/v1", d)
	case providerOllama:
		return newOllamaModel(ctx, pcfg, d)
	default:
		return nil, fmt.Errorf("no provider configured: set api_key for at least one provider")
	}
}

// providerFromModel maps a "vendor/model" name to its provider.
func providerFromModel(modelName string) providerName {
	vendor, _, ok := strings.Cut(modelName, "/")
	if !ok {
		return ""
	}
	switch strings.ToLower(vendor) {
	case "openai":
		return providerOpenAI
	case "anthropic", "claude":
		return providerClaude
	case "deepseek":
		return providerDeepSeek
	case "ollama":
		return providerOllama
	case "openrouter":
		return providerOpenRouter
	default:
		return ""
	}
}

func resolveProvider(cfg *config.Config) (providerName, config.ProviderConfig, error) {
	p := cfg.Providers

	if name := providerFromModel(cfg.Agents.Defaults.Model); name != "" {
		if pcfg, ok := providerConfigFor(p, name); ok {
			return name, pcfg, nil
		}
		if name == providerOllama {
			return "", config.ProviderConfig{}, fmt.Errorf("ollama provider requires base_url")
		}
	}

	switch {
	case p.OpenRouter.APIKey != "":
		return providerOpenRouter, p.OpenRouter, nil
	case p.Claude.APIKey != "":
		return providerClaude, p.Claude, nil
	case p.OpenAI.APIKey != "":
		return providerOpenAI, p.OpenAI, nil
	case p.DeepSeek.APIKey != "":
		return providerDeepSeek, p.DeepSeek, nil
	case p.Ollama.BaseURL != "":
		return providerOllama, p.Ollama, nil
	default:
		return "", config.ProviderConfig{}, fmt.Errorf("no provider configured: set api_key for at least one provider")
	}
}

func providerConfigFor(p config.ProvidersConfig, name providerName) (config.ProviderConfig, bool) {
	switch name {
	case providerOpenRouter:
		return p.OpenRouter, p.OpenRouter.APIKey != ""
	case providerClaude:
		return p.Claude, p.Claude.APIKey != ""
	case providerOpenAI:
		return p.OpenAI, p.OpenAI.APIKey != ""
	case providerDeepSeek:
		return p.DeepSeek, p.DeepSeek.APIKey != ""
	case providerOllama:
		return p.Ollama, p.Ollama.BaseURL != ""
	default:
		return config.ProviderConfig{}, false
	}
}

func newOpenAICompatModel(ctx context.Context, apiKey, baseURL string, d config.AgentDefaults) (model.ChatModel, error) {
	cfg := &openai.ChatModelConfig{
		Model:       modelSuffix(d.Model),
		APIKey:      apiKey,
		Temperature: toFloat32Ptr(d.Temperature),
		MaxTokens:   toIntPtr(d.MaxTokens),
	}
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return openai.NewChatModel(ctx, cfg)
}

func newClaudeModel(ctx context.Context, p config.ProviderConfig, d config.AgentDefaults) (model.ChatModel, error) {
	cfg := &claude.Config{
		APIKey:      p.APIKey,
		Model:       modelSuffix(d.Model),
		MaxTokens:   d.MaxTokens,
		Temperature: toFloat32Ptr(d.Temperature),
	}
	if p.BaseURL != "" {
		cfg.BaseURL = &p.BaseURL
	}
	return claude.NewChatModel(ctx, cfg)
}

func newOllamaModel(ctx context.Context, p config.ProviderConfig, d config.AgentDefaults) (model.ChatModel, error) {
	baseURL := p.BaseURL
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	return ollama.NewChatModel(ctx, &ollama.ChatModelConfig{
		BaseURL: baseURL,
		Model:   modelSuffix(d.Model),
	})
}

// modelSuffix strips a known vendor prefix: "anthropic/claude-sonnet-4-5"
// becomes "claude-sonnet-4-5". Unknown prefixes pass through untouched.
func modelSuffix(name string) string {
	_, rest, ok := strings.Cut(name, "/")
	if !ok || providerFromModel(name) == "" {
		return name
	}
	return rest
}

func toFloat32Ptr(f float64) *float32 {
	v := float32(f)
	return &v
}

func toIntPtr(i int) *int {
	return &i
}
