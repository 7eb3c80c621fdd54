// Package reasoning answers farmers' questions through an LLM provider
// chain, enriched with weather context.
//
// A Gateway fetches weather for the requested location, builds an
// agricultural-advisor prompt, and tries each configured Provider in order.
// When every provider fails it answers from a local keyword rule table, so
// ProcessQuery always produces a localized answer.
//
//	gw := reasoning.NewGateway(weatherClient, []reasoning.Provider{gemini, deepseek})
//	res, err := gw.ProcessQuery(ctx, "Will it rain tomorrow?", "en", "Pune")
package reasoning

import (
	"context"
	"time"

	"github.com/teslashibe/agrivoice/pkg/weather"
)

// Request is one normalized generation request.
type Request struct {
	// System carries the persona, response language and weather context.
	System string

	// Query is the farmer's question verbatim.
	Query string

	// Language is the requested response language code.
	Language string

	// Weather is the snapshot embedded in System, kept for rule matching.
	Weather *weather.Report

	MaxTokens   int
	Temperature float64
}

// Usage tracks token consumption when the provider reports it.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Completion is a provider answer normalized to one shape.
type Completion struct {
	Text         string
	Provider     string
	Model        string
	FinishReason string
	Usage        Usage
	LatencyMs    int64
}

// Provider generates an answer for a Request.
type Provider interface {
	// Name identifies the provider in logs and results.
	Name() string

	// Generate produces a completion.
	Generate(ctx context.Context, req *Request) (*Completion, error)

	// Health checks that the provider is reachable.
	Health(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// Result is what the Gateway hands back to callers.
type Result struct {
	Response  string          `json:"response"`
	Language  string          `json:"language"`
	Weather   *weather.Report `json:"weather"`
	Timestamp time.Time       `json:"timestamp"`

	// Provider is the backend that produced Response ("local" for rules).
	Provider string `json:"provider"`
	Model    string `json:"model,omitempty"`

	// Fallback is true when the first-choice provider did not answer.
	Fallback bool `json:"fallback"`

	LatencyMs int64    `json:"latency_ms"`
	Usage     Usage    `json:"usage"`
	Errors    []string `json:"errors,omitempty"`
}
