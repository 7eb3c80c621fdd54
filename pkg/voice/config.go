package voice

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/teslashibe/agrivoice/pkg/language"
	"github.com/teslashibe/agrivoice/pkg/tts"
	"github.com/teslashibe/agrivoice/pkg/weather"
)

// Config holds orchestrator settings.
type Config struct {
	// Language is the initial interaction language.
	Language string

	// Location is passed verbatim to the gateway.
	Location string

	// UserID owns the transcript sessions opened by the orchestrator.
	UserID string

	// VoiceOutput speaks responses. When false a turn ends at the answer.
	VoiceOutput bool

	// SpeakErrors also speaks the localized message when a turn fails.
	SpeakErrors bool

	// AutoLanguage adopts the gateway's response language for later turns
	// once SwitchThreshold consecutive answers agree on it.
	AutoLanguage    bool
	SwitchThreshold int

	// GatewayTimeout bounds one reasoning round-trip.
	GatewayTimeout time.Duration

	// Playback is passed to every Speak call.
	Playback tts.Options

	Logger *slog.Logger
}

// Option configures the orchestrator.
type Option func(*Config)

// DefaultConfig returns English, Delhi, spoken answers and a 30s gateway
// timeout.
func DefaultConfig() *Config {
	return &Config{
		Language:        language.Default,
		Location:        weather.DefaultLocation,
		UserID:          "anonymous",
		VoiceOutput:     true,
		SpeakErrors:     true,
		SwitchThreshold: 2,
		GatewayTimeout:  30 * time.Second,
		Playback:        tts.DefaultOptions(),
	}
}

func WithLanguage(code string) Option   { return func(c *Config) { c.Language = code } }
func WithLocation(place string) Option  { return func(c *Config) { c.Location = place } }
func WithUserID(id string) Option       { return func(c *Config) { c.UserID = id } }
func WithVoiceOutput(on bool) Option    { return func(c *Config) { c.VoiceOutput = on } }
func WithSpeakErrors(on bool) Option    { return func(c *Config) { c.SpeakErrors = on } }
func WithLogger(l *slog.Logger) Option  { return func(c *Config) { c.Logger = l } }
func WithPlayback(o tts.Options) Option { return func(c *Config) { c.Playback = o } }

// WithAutoLanguage enables damped language switching after threshold
// consecutive agreeing answers.
func WithAutoLanguage(threshold int) Option {
	return func(c *Config) {
		c.AutoLanguage = true
		c.SwitchThreshold = threshold
	}
}

// WithGatewayTimeout bounds one reasoning round-trip.
func WithGatewayTimeout(d time.Duration) Option {
	return func(c *Config) { c.GatewayTimeout = d }
}

// Apply applies opts and fills zero values with defaults.
func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.SwitchThreshold <= 0 {
		c.SwitchThreshold = 2
	}
	if c.GatewayTimeout <= 0 {
		c.GatewayTimeout = 30 * time.Second
	}
	if c.Location == "" {
		c.Location = weather.DefaultLocation
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if !language.IsSupported(c.Language) {
		return fmt.Errorf("%w: %q", ErrUnsupportedLanguage, c.Language)
	}
	return nil
}
