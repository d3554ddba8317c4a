package completion

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIProvider calls the OpenAI chat completions API.
type OpenAIProvider struct {
	client      openai.Client
	model       string
	temperature float64
}

// NewOpenAIProvider creates an OpenAIProvider. SDK retries are disabled.
func NewOpenAIProvider(apiKey, model string, temperature float64, opts ...option.RequestOption) (*OpenAIProvider, error) {
	if apiKey == "" {
		return nil, errors.New("openai api key is required")
	}
	if model == "" {
		return nil, errors.New("openai model is required")
	}

	reqOpts := append([]option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}, opts...)

	return &OpenAIProvider{
		client:      openai.NewClient(reqOpts...),
		model:       model,
		temperature: temperature,
	}, nil
}

// OpenAIOptions builds request options for an optional base URL and HTTP client.
func OpenAIOptions(baseURL string, httpClient *http.Client) []option.RequestOption {
	var opts []option.RequestOption
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if httpClient != nil {
		opts = append(opts, option.WithHTTPClient(httpClient))
	}
	return opts
}

func (o *OpenAIProvider) Name() string { return "openai" }

func (o *OpenAIProvider) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(o.model),
		Messages:    []openai.ChatCompletionMessageParamUnion{openai.UserMessage(prompt)},
		Temperature: openai.Float(o.temperature),
	})
	if err != nil {
		return "", fmt.Errorf("openai API error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
