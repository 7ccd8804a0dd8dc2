package llm

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/complykit/groundd/internal/retry"
)

// OpenAIConfig holds configuration for the OpenAI completion provider.
type OpenAIConfig struct {
	// APIKey is the OpenAI API key.
	APIKey string

	// Model is the chat model (defaults to gpt-4o-mini).
	Model string

	// BaseURL overrides the API endpoint for compatible local servers.
	BaseURL string

	// Temperature for completions. The grounding prompts expect
	// near-deterministic output; default 0.1.
	Temperature float32

	// MaxTokens caps the response size (default 1024).
	MaxTokens int
}

// Validate validates the configuration.
func (c OpenAIConfig) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("%w: API key required", ErrInvalidConfig)
	}
	return nil
}

// OpenAIProvider produces structured completions via the OpenAI chat API.
type OpenAIProvider struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
	retryCfg    retry.Config
	logger      *zap.Logger
}

// NewOpenAIProvider creates an OpenAI-backed completion provider.
func NewOpenAIProvider(cfg OpenAIConfig, logger *zap.Logger) (*OpenAIProvider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	model := cfg.Model
	if model == "" {
		model = openai.GPT4oMini
	}
	temperature := cfg.Temperature
	if temperature == 0 {
		temperature = 0.1
	}
	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = 1024
	}

	retryCfg := retry.DefaultConfig()
	retryCfg.Logger = logger

	return &OpenAIProvider{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       model,
		temperature: temperature,
		maxTokens:   maxTokens,
		retryCfg:    retryCfg,
		logger:      logger,
	}, nil
}

// CompleteJSON sends the prompts and returns the raw JSON-object response.
func (p *OpenAIProvider) CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	resp, err := retry.DoWithResult(ctx, p.retryCfg, func() (openai.ChatCompletionResponse, error) {
		return p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:       p.model,
			Temperature: p.temperature,
			MaxTokens:   p.maxTokens,
			ResponseFormat: &openai.ChatCompletionResponseFormat{
				Type: openai.ChatCompletionResponseFormatTypeJSONObject,
			},
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
				{Role: openai.ChatMessageRoleUser, Content: userPrompt},
			},
		})
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCompletionFailed, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices returned", ErrMalformedResponse)
	}

	return resp.Choices[0].Message.Content, nil
}
