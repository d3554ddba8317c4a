package completion

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicProvider calls the Anthropic Messages API.
type AnthropicProvider struct {
	client      anthropic.Client
	model       string
	maxTokens   int64
	temperature float64
}

// NewAnthropicProvider creates an AnthropicProvider. SDK retries are disabled.
func NewAnthropicProvider(apiKey, model string, maxTokens int, temperature float64, opts ...option.RequestOption) (*AnthropicProvider, error) {
	if apiKey == "" {
		return nil, errors.New("anthropic api key is required")
	}
	if model == "" {
		model = string(anthropic.ModelClaudeSonnet4_5_20250929)
	}
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	reqOpts := append([]option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}, opts...)

	return &AnthropicProvider{
		client:      anthropic.NewClient(reqOpts...),
		model:       model,
		maxTokens:   int64(maxTokens),
		temperature: temperature,
	}, nil
}

// AnthropicOptions builds request options for an optional base URL and HTTP client.
func AnthropicOptions(baseURL string, httpClient *http.Client) []option.RequestOption {
	var opts []option.RequestOption
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if httpClient != nil {
		opts = append(opts, option.WithHTTPClient(httpClient))
	}
	return opts
}

func (a *AnthropicProvider) Name() string { return "claude" }

func (a *AnthropicProvider) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(a.model),
		MaxTokens:   a.maxTokens,
		Messages:    []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(prompt))},
		Temperature: anthropic.Float(a.temperature),
	})
	if err != nil {
		return "", fmt.Errorf("anthropic API error: %w", err)
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return sb.String(), nil
}
