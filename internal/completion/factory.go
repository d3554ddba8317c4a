package completion

import (
	"context"
	"fmt"
	"net/http"

	"github.com/lewisedginton/chat_relay/internal/config"
	"github.com/lewisedginton/chat_relay/pkg/logger"
)

// NewProvider builds the provider selected in cfg.
func NewProvider(ctx context.Context, cfg config.CompletionConfig) (Provider, error) {
	httpClient := &http.Client{Timeout: cfg.Timeout}

	switch cfg.Provider {
	case config.ProviderOpenAI:
		return NewOpenAIProvider(cfg.OpenAI.APIKey, cfg.OpenAI.Model, cfg.Temperature,
			OpenAIOptions(cfg.OpenAI.APIBaseURL, httpClient)...)
	case config.ProviderClaude:
		return NewAnthropicProvider(cfg.Anthropic.APIKey, cfg.Anthropic.Model, cfg.MaxTokens, cfg.Temperature,
			AnthropicOptions(cfg.Anthropic.APIBaseURL, httpClient)...)
	case config.ProviderGemini:
		return NewGeminiProvider(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model, cfg.MaxTokens, cfg.Temperature, "", httpClient)
	case config.ProviderEcho:
		return EchoProvider{}, nil
	default:
		return nil, fmt.Errorf("unsupported completion provider %q", cfg.Provider)
	}
}

// NewFromConfig builds a Client for the configured provider.
func NewFromConfig(ctx context.Context, cfg config.CompletionConfig, log logger.Logger, opts ...Option) (*Client, error) {
	provider, err := NewProvider(ctx, cfg)
	if err != nil {
		return nil, err
	}

	log.Info("completion provider configured", logger.StringField("provider", provider.Name()))

	base := []Option{
		WithTimeout(cfg.Timeout),
		WithFallbackMessage(cfg.FallbackMessage),
		WithLogger(log),
	}
	return NewClient(provider, append(base, opts...)...), nil
}
