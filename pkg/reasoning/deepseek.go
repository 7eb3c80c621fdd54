package reasoning

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/teslashibe/agrivoice/internal/httpc"
)

const providerDeepSeek = "deepseek"

// DeepSeek defaults.
const (
	DeepSeekBaseURL   = "https://api.deepseek.com/v1"
	DeepSeekModel     = "deepseek-chat"
	DeepSeekMaxTokens = 500
)

// DeepSeek talks to DeepSeek's OpenAI-compatible chat completions API.
type DeepSeek struct {
	client *openai.Client
	config *Config
	logger *slog.Logger
}

// NewDeepSeek creates a DeepSeek provider.
func NewDeepSeek(opts ...Option) (*DeepSeek, error) {
	cfg := DefaultConfig()
	cfg.BaseURL = DeepSeekBaseURL
	cfg.Model = DeepSeekModel
	cfg.MaxTokens = DeepSeekMaxTokens
	cfg.Apply(opts...)

	if err := cfg.Validate(); err != nil {
		return nil, WrapError(providerDeepSeek, err)
	}

	oc := openai.DefaultConfig(cfg.APIKey)
	oc.BaseURL = cfg.BaseURL
	oc.HTTPClient = httpc.NewClient(cfg.Timeout)

	return &DeepSeek{
		client: openai.NewClientWithConfig(oc),
		config: cfg,
		logger: cfg.Logger.With("component", "reasoning.deepseek"),
	}, nil
}

// Name implements Provider.
func (d *DeepSeek) Name() string { return providerDeepSeek }

// Generate implements Provider.
func (d *DeepSeek) Generate(ctx context.Context, req *Request) (*Completion, error) {
	start := time.Now()

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = d.config.MaxTokens
	}
	temp := req.Temperature
	if temp == 0 {
		temp = d.config.Temperature
	}

	resp, err := d.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: d.config.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.System},
			{Role: openai.ChatMessageRoleUser, Content: req.Query},
		},
		MaxTokens:   maxTokens,
		Temperature: float32(temp),
	})
	if err != nil {
		return nil, d.convertError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, WrapError(providerDeepSeek, ErrEmptyResponse)
	}

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return nil, WrapError(providerDeepSeek, ErrEmptyResponse)
	}

	d.logger.Debug("generated", "model", resp.Model, "tokens", resp.Usage.TotalTokens)

	return &Completion{
		Text:         text,
		Provider:     providerDeepSeek,
		Model:        resp.Model,
		FinishReason: string(resp.Choices[0].FinishReason),
		Usage: Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
		LatencyMs: time.Since(start).Milliseconds(),
	}, nil
}

// convertError maps go-openai errors onto *APIError.
func (d *DeepSeek) convertError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		code := ""
		if apiErr.Code != nil {
			code = fmt.Sprint(apiErr.Code)
		}
		return &APIError{
			StatusCode: apiErr.HTTPStatusCode,
			Message:    apiErr.Message,
			Code:       code,
			Provider:   providerDeepSeek,
		}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &APIError{StatusCode: reqErr.HTTPStatusCode, Message: reqErr.Error(), Provider: providerDeepSeek}
	}
	return WrapError(providerDeepSeek, err)
}

// Health lists models to verify credentials.
func (d *DeepSeek) Health(ctx context.Context) error {
	if _, err := d.client.ListModels(ctx); err != nil {
		return d.convertError(err)
	}
	return nil
}

// Close implements Provider.
func (d *DeepSeek) Close() error { return nil }

var _ Provider = (*DeepSeek)(nil)
