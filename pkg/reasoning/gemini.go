package reasoning

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/teslashibe/agrivoice/internal/httpc"
)

const providerGemini = "gemini"

// Gemini defaults.
const (
	GeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	GeminiModel   = "gemini-2.0-flash"
)

var geminiSafetyCategories = []string{
	"HARM_CATEGORY_HARASSMENT",
	"HARM_CATEGORY_HATE_SPEECH",
	"HARM_CATEGORY_SEXUALLY_EXPLICIT",
	"HARM_CATEGORY_DANGEROUS_CONTENT",
}

// Gemini calls Google's generateContent REST endpoint.
type Gemini struct {
	config *Config
	http   *http.Client
	logger *slog.Logger
}

// NewGemini creates a Gemini provider.
func NewGemini(opts ...Option) (*Gemini, error) {
	cfg := DefaultConfig()
	cfg.BaseURL = GeminiBaseURL
	cfg.Model = GeminiModel
	cfg.Apply(opts...)

	if err := cfg.Validate(); err != nil {
		return nil, WrapError(providerGemini, err)
	}

	return &Gemini{
		config: cfg,
		http:   httpc.NewClient(cfg.Timeout),
		logger: cfg.Logger.With("component", "reasoning.gemini"),
	}, nil
}

// Name implements Provider.
func (g *Gemini) Name() string { return providerGemini }

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiSafety struct {
	Category  string `json:"category"`
	Threshold string `json:"threshold"`
}

type geminiGenerationConfig struct {
	Temperature     float64 `json:"temperature"`
	TopK            int     `json:"topK"`
	TopP            float64 `json:"topP"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type geminiRequest struct {
	Contents         []geminiContent        `json:"contents"`
	GenerationConfig geminiGenerationConfig `json:"generationConfig"`
	SafetySettings   []geminiSafety         `json:"safetySettings"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// Generate implements Provider.
func (g *Gemini) Generate(ctx context.Context, req *Request) (*Completion, error) {
	start := time.Now()

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = g.config.MaxTokens
	}
	temp := req.Temperature
	if temp == 0 {
		temp = g.config.Temperature
	}

	payload := geminiRequest{
		Contents: []geminiContent{{Parts: []geminiPart{{Text: userPrompt(req)}}}},
		GenerationConfig: geminiGenerationConfig{
			Temperature:     temp,
			TopK:            g.config.TopK,
			TopP:            g.config.TopP,
			MaxOutputTokens: maxTokens,
		},
	}
	for _, c := range geminiSafetyCategories {
		payload.SafetySettings = append(payload.SafetySettings, geminiSafety{Category: c, Threshold: "BLOCK_MEDIUM_AND_ABOVE"})
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, WrapError(providerGemini, err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", g.config.BaseURL, g.config.Model, g.config.APIKey)
	resp, err := httpc.PostJSON(ctx, g.http, url, body)
	if err != nil {
		return nil, WrapError(providerGemini, err)
	}
	respBody, err := httpc.ReadBody(resp)
	if err != nil {
		return nil, g.parseError(respBody, err)
	}

	var result geminiResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, WrapError(providerGemini, fmt.Errorf("decode response: %w", err))
	}
	if result.Error.Message != "" {
		return nil, &APIError{StatusCode: result.Error.Code, Message: result.Error.Message, Code: result.Error.Status, Provider: providerGemini}
	}
	if len(result.Candidates) == 0 || len(result.Candidates[0].Content.Parts) == 0 {
		return nil, WrapError(providerGemini, ErrEmptyResponse)
	}

	text := strings.TrimSpace(result.Candidates[0].Content.Parts[0].Text)
	if text == "" {
		return nil, WrapError(providerGemini, ErrEmptyResponse)
	}

	g.logger.Debug("generated", "model", g.config.Model, "latency_ms", time.Since(start).Milliseconds())

	return &Completion{
		Text:         text,
		Provider:     providerGemini,
		Model:        g.config.Model,
		FinishReason: result.Candidates[0].FinishReason,
		Usage: Usage{
			PromptTokens:     result.UsageMetadata.PromptTokenCount,
			CompletionTokens: result.UsageMetadata.CandidatesTokenCount,
			TotalTokens:      result.UsageMetadata.TotalTokenCount,
		},
		LatencyMs: time.Since(start).Milliseconds(),
	}, nil
}

// parseError converts a non-2xx response into an *APIError.
func (g *Gemini) parseError(body []byte, err error) error {
	var status *httpc.StatusError
	if !errors.As(err, &status) {
		return WrapError(providerGemini, err)
	}
	var errResp geminiResponse
	if json.Unmarshal(body, &errResp) == nil && errResp.Error.Message != "" {
		return &APIError{StatusCode: status.StatusCode, Message: errResp.Error.Message, Code: errResp.Error.Status, Provider: providerGemini}
	}
	return &APIError{StatusCode: status.StatusCode, Message: status.Body, Provider: providerGemini}
}

// Health fetches the model descriptor.
func (g *Gemini) Health(ctx context.Context) error {
	url := fmt.Sprintf("%s/models/%s?key=%s", g.config.BaseURL, g.config.Model, g.config.APIKey)
	resp, err := httpc.Get(ctx, g.http, url)
	if err != nil {
		return WrapError(providerGemini, err)
	}
	body, err := httpc.ReadBody(resp)
	if err != nil {
		return g.parseError(body, err)
	}
	return nil
}

// Close implements Provider.
func (g *Gemini) Close() error { return nil }

var _ Provider = (*Gemini)(nil)
