package config

import (
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
)

// Completion provider constants
const (
	ProviderOpenAI = "openai"
	ProviderClaude = "claude"
	ProviderGemini = "gemini"
	ProviderEcho   = "echo"
)

// CompletionConfig holds completion provider selection and per-provider settings.
type CompletionConfig struct {
	// Provider specifies which backend answers messages: "openai", "claude", "gemini" or "echo"
	Provider string `env:"COMPLETION_PROVIDER" yaml:"provider" default:"openai"`

	Timeout     time.Duration `env:"COMPLETION_TIMEOUT" yaml:"timeout" default:"60s"`
	Temperature float64       `env:"COMPLETION_TEMPERATURE" yaml:"temperature" default:"0.7"`
	MaxTokens   int           `env:"COMPLETION_MAX_TOKENS" yaml:"max_tokens" default:"1024"`

	// FallbackMessage replaces the reply whenever the provider fails
	FallbackMessage string `env:"COMPLETION_FALLBACK_MESSAGE" yaml:"fallback_message" default:"I'm sorry, but I'm unable to process your request at the moment."`

	OpenAI    OpenAIConfig    `yaml:"openai"`
	Anthropic AnthropicConfig `yaml:"anthropic"`
	Gemini    GeminiConfig    `yaml:"gemini"`
}

// OpenAIConfig holds OpenAI-specific configuration
type OpenAIConfig struct {
	APIKey     string `env:"OPENAI_API_KEY" yaml:"api_key"`
	Model      string `env:"OPENAI_MODEL" yaml:"model" default:"gpt-4-1106-preview"`
	APIBaseURL string `env:"OPENAI_API_URL" yaml:"api_base_url"`
}

// AnthropicConfig holds Anthropic-specific configuration
type AnthropicConfig struct {
	APIKey     string `env:"ANTHROPIC_API_KEY" yaml:"api_key"`
	Model      string `env:"CLAUDE_MODEL" yaml:"model" default:"claude-sonnet-4-5-20250929"`
	APIBaseURL string `env:"ANTHROPIC_API_URL" yaml:"api_base_url"`
}

// GeminiConfig holds Google Gemini-specific configuration
type GeminiConfig struct {
	APIKey string `env:"GEMINI_API_KEY" yaml:"-"`
	Model  string `env:"GEMINI_MODEL" yaml:"model" default:"gemini-2.5-flash"`
}

// Validate checks the selected provider is configured.
func (c CompletionConfig) Validate() error {
	var result error

	switch c.Provider {
	case ProviderOpenAI:
		if c.OpenAI.APIKey == "" {
			result = multierror.Append(result, fmt.Errorf("OPENAI_API_KEY is required for provider %q", c.Provider))
		}
	case ProviderClaude:
		if c.Anthropic.APIKey == "" {
			result = multierror.Append(result, fmt.Errorf("ANTHROPIC_API_KEY is required for provider %q", c.Provider))
		}
	case ProviderGemini:
		if c.Gemini.APIKey == "" {
			result = multierror.Append(result, fmt.Errorf("GEMINI_API_KEY is required for provider %q", c.Provider))
		}
	case ProviderEcho:
	default:
		result = multierror.Append(result, fmt.Errorf("completion provider must be one of [%s, %s, %s, %s], got %q",
			ProviderOpenAI, ProviderClaude, ProviderGemini, ProviderEcho, c.Provider))
	}

	if c.Timeout <= 0 {
		result = multierror.Append(result, fmt.Errorf("completion timeout must be positive, got %s", c.Timeout))
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		result = multierror.Append(result, fmt.Errorf("completion temperature must be within [0, 2], got %v", c.Temperature))
	}
	if c.FallbackMessage == "" {
		result = multierror.Append(result, fmt.Errorf("completion fallback_message must not be empty"))
	}

	return result
}
