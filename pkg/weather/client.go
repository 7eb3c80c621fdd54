package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/teslashibe/agrivoice/internal/httpc"
)

// DefaultBaseURL is the weatherapi.com v1 endpoint.
const DefaultBaseURL = "https://api.weatherapi.com/v1"

// ErrNoAPIKey is returned when the client has no key configured.
var ErrNoAPIKey = errors.New("weather: API key required")

// Client talks to weatherapi.com.
type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
	timeout time.Duration
	logger  *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API endpoint.
func WithBaseURL(u string) Option { return func(c *Client) { c.baseURL = u } }

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(h *http.Client) Option { return func(c *Client) { c.http = h } }

// WithTimeout bounds each call.
func WithTimeout(d time.Duration) Option { return func(c *Client) { c.timeout = d } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(c *Client) { c.logger = l } }

// NewClient creates a weatherapi.com client.
func NewClient(apiKey string, opts ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}
	c := &Client{
		apiKey:  apiKey,
		baseURL: DefaultBaseURL,
		http:    httpc.Client,
		timeout: DefaultTimeout,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "weather.client")
	return c, nil
}

// Forecast implements Provider.
func (c *Client) Forecast(ctx context.Context, location string, days int) (*Report, error) {
	if location == "" {
		location = DefaultLocation
	}
	if days <= 0 {
		days = DefaultDays
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	q := url.Values{}
	q.Set("key", c.apiKey)
	q.Set("q", location)
	q.Set("days", strconv.Itoa(days))
	q.Set("aqi", "no")
	q.Set("alerts", "yes")

	resp, err := httpc.Get(ctx, c.http, c.baseURL+"/forecast.json?"+q.Encode())
	if err != nil {
		return nil, fmt.Errorf("weather: request: %w", err)
	}
	body, err := httpc.ReadBody(resp)
	if err != nil {
		return nil, fmt.Errorf("weather: %w", err)
	}

	var report Report
	if err := json.Unmarshal(body, &report); err != nil {
		return nil, fmt.Errorf("weather: decode: %w", err)
	}
	c.logger.Debug("forecast fetched", "location", location, "days", len(report.Forecast.ForecastDay))
	return &report, nil
}

var _ Provider = (*Client)(nil)

// Resolve fetches a report from p, returning the mock payload when p is nil
// or fails. It never returns nil.
func Resolve(ctx context.Context, p Provider, location string, days int, logger *slog.Logger) *Report {
	if p == nil {
		return Mock(location)
	}
	report, err := p.Forecast(ctx, location, days)
	if err != nil || report == nil {
		if logger != nil {
			logger.Warn("weather unavailable, using mock data", "location", location, "error", err)
		}
		return Mock(location)
	}
	return report
}
