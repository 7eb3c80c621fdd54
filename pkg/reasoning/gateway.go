package reasoning

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/teslashibe/agrivoice/pkg/language"
	"github.com/teslashibe/agrivoice/pkg/weather"
)

// GatewayConfig configures a Gateway.
type GatewayConfig struct {
	// Timeout bounds the whole provider chain. When it expires the local
	// rules answer instead.
	Timeout time.Duration

	// WeatherTimeout bounds the weather lookup.
	WeatherTimeout time.Duration

	// ForecastDays is the forecast horizon requested.
	ForecastDays int

	// DefaultLocation is used when a query carries no location.
	DefaultLocation string

	Logger *slog.Logger

	// Now is the clock used for result timestamps.
	Now func() time.Time
}

// GatewayOption configures a Gateway.
type GatewayOption func(*GatewayConfig)

// WithGatewayTimeout sets the provider chain deadline.
func WithGatewayTimeout(d time.Duration) GatewayOption {
	return func(c *GatewayConfig) { c.Timeout = d }
}

// WithWeatherTimeout sets the weather lookup deadline.
func WithWeatherTimeout(d time.Duration) GatewayOption {
	return func(c *GatewayConfig) { c.WeatherTimeout = d }
}

// WithDefaultLocation sets the location used when none is given.
func WithDefaultLocation(loc string) GatewayOption {
	return func(c *GatewayConfig) { c.DefaultLocation = loc }
}

// WithGatewayLogger sets the logger.
func WithGatewayLogger(l *slog.Logger) GatewayOption {
	return func(c *GatewayConfig) { c.Logger = l }
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) GatewayOption {
	return func(c *GatewayConfig) { c.Now = now }
}

// DefaultGatewayConfig returns the defaults.
func DefaultGatewayConfig() *GatewayConfig {
	return &GatewayConfig{
		Timeout:         20 * time.Second,
		WeatherTimeout:  weather.DefaultTimeout,
		ForecastDays:    weather.DefaultDays,
		DefaultLocation: weather.DefaultLocation,
		Logger:          slog.Default(),
		Now:             time.Now,
	}
}

// Gateway normalizes weather lookup, prompting and provider fallback into
// one call.
type Gateway struct {
	weather weather.Provider
	chain   *Chain
	rules   *Rules
	config  *GatewayConfig
	logger  *slog.Logger
}

// NewGateway creates a Gateway. wp may be nil (mock weather is used) and
// providers may be empty (rules answer everything).
func NewGateway(wp weather.Provider, providers []Provider, opts ...GatewayOption) *Gateway {
	cfg := DefaultGatewayConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	g := &Gateway{
		weather: wp,
		rules:   NewRules(),
		config:  cfg,
		logger:  cfg.Logger.With("component", "reasoning.gateway"),
	}
	if chain, err := NewChain(cfg.Logger, providers...); err == nil {
		g.chain = chain
	} else {
		g.logger.Warn("no reasoning providers configured, answering from local rules")
	}
	return g
}

// ProcessQuery answers query in lang for location. The only errors are
// ErrEmptyQuery and cancellation of ctx by the caller. Provider and
// weather failures degrade to fallbacks, and so does an expiring ctx
// deadline: the local rules answer instead.
func (g *Gateway) ProcessQuery(ctx context.Context, query, lang, location string) (*Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if location == "" {
		location = g.config.DefaultLocation
	}
	if !language.IsSupported(lang) {
		lang = language.Default
	}

	start := time.Now()
	report := g.fetchWeather(ctx, location)

	req := &Request{
		System:   BuildSystemPrompt(lang, report),
		Query:    query,
		Language: lang,
		Weather:  report,
	}

	result := &Result{
		Weather:  report,
		Language: lang,
	}

	completion, fallback, errs := g.generate(ctx, req)
	if err := ctx.Err(); errors.Is(err, context.Canceled) {
		return nil, err
	}

	result.Response = completion.Text
	result.Language = responseLanguage(lang, completion.Text)
	result.Provider = completion.Provider
	result.Model = completion.Model
	result.Usage = completion.Usage
	result.Fallback = fallback
	result.LatencyMs = time.Since(start).Milliseconds()
	result.Timestamp = g.config.Now()
	for _, err := range errs {
		result.Errors = append(result.Errors, err.Error())
	}

	g.logger.Info("query processed",
		"provider", result.Provider,
		"fallback", result.Fallback,
		"language", result.Language,
		"location", location,
		"latency_ms", result.LatencyMs,
	)
	return result, nil
}

// generate runs the provider chain under the gateway deadline and falls
// back to local rules. It always returns a completion.
func (g *Gateway) generate(ctx context.Context, req *Request) (*Completion, bool, []error) {
	if g.chain != nil {
		cctx, cancel := bounded(ctx, g.config.Timeout, 9, 10)
		completion, idx, err := g.chain.generate(cctx, req)
		cancel()
		if err == nil {
			return completion, idx > 0, nil
		}
		g.logger.Warn("all reasoning providers failed, using local rules", "error", err)
		var errs []error
		if ce, ok := err.(*ChainError); ok {
			errs = ce.Errors
		} else {
			errs = []error{err}
		}
		completion, _ = g.rules.Generate(ctx, req)
		return completion, true, errs
	}
	completion, _ := g.rules.Generate(ctx, req)
	return completion, false, nil
}

func (g *Gateway) fetchWeather(ctx context.Context, location string) *weather.Report {
	wctx, cancel := bounded(ctx, g.config.WeatherTimeout, 1, 4)
	defer cancel()
	return weather.Resolve(wctx, g.weather, location, g.config.ForecastDays, g.logger)
}

// bounded limits ctx to d, or to num/den of the caller's remaining time
// when that is shorter. The rest of the caller's budget is left for the
// rules fallback and the response.
func bounded(ctx context.Context, d time.Duration, num, den int64) (context.Context, context.CancelFunc) {
	if deadline, ok := ctx.Deadline(); ok {
		if share := time.Until(deadline) * time.Duration(num) / time.Duration(den); share < d {
			d = share
		}
	}
	return context.WithTimeout(ctx, d)
}

// CropRecommendations asks which crops suit a season at a location.
func (g *Gateway) CropRecommendations(ctx context.Context, location, season, lang string) (*Result, error) {
	return g.ProcessQuery(ctx, fmt.Sprintf("What crops should I grow in %s season?", season), lang, location)
}

// FertilizerRecommendations asks which fertilizer suits a crop and soil.
func (g *Gateway) FertilizerRecommendations(ctx context.Context, crop, soil, lang string) (*Result, error) {
	return g.ProcessQuery(ctx, fmt.Sprintf("What fertilizer should I use for %s crop in %s soil?", crop, soil), lang, "")
}

// Health reports whether at least one remote provider is reachable.
func (g *Gateway) Health(ctx context.Context) error {
	if g.chain == nil {
		return ErrProviderUnavailable
	}
	return g.chain.Health(ctx)
}

// Close releases provider resources.
func (g *Gateway) Close() error {
	if g.chain == nil {
		return nil
	}
	return g.chain.Close()
}

// responseLanguage reports the language an answer is actually written in.
// Script siblings of the requested language keep the requested code.
func responseLanguage(requested, text string) string {
	detected := language.Detect(text)
	for _, m := range language.Matches(text) {
		if m == requested {
			return requested
		}
	}
	return detected
}
