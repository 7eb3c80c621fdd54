package tts

import (
	"log/slog"
	"time"
)

// Observers receive playback lifecycle events. Any field may be nil.
// Observers run on the playback goroutine, outside the synthesizer's lock.
type Observers struct {
	OnStart  func(p *Playback)
	OnEnd    func(p *Playback)
	OnError  func(p *Playback, err error)
	OnPause  func(p *Playback)
	OnResume func(p *Playback)
}

// Config holds Synthesizer configuration.
// Use functional options (WithXxx) to set these values.
type Config struct {
	// Scorer ranks voices; defaults to QualityScore.
	Scorer Scorer

	// Preferences override the ranking per language.
	Preferences Preferences

	Observers Observers

	// VoiceCacheTTL bounds how long an engine's voice list is reused.
	VoiceCacheTTL time.Duration

	Logger *slog.Logger
}

// Option is a functional option for configuring a Synthesizer.
type Option func(*Config)

// WithScorer replaces the voice ranking heuristic.
func WithScorer(s Scorer) Option {
	return func(c *Config) {
		c.Scorer = s
	}
}

// WithPreferences sets the voice preference store.
func WithPreferences(p Preferences) Option {
	return func(c *Config) {
		c.Preferences = p
	}
}

// WithObservers sets the lifecycle observers.
func WithObservers(o Observers) Option {
	return func(c *Config) {
		c.Observers = o
	}
}

// WithVoiceCacheTTL sets how long voice lists are cached.
func WithVoiceCacheTTL(d time.Duration) Option {
	return func(c *Config) {
		c.VoiceCacheTTL = d
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// DefaultConfig returns sensible default configuration.
func DefaultConfig() *Config {
	return &Config{
		Scorer:        QualityScore,
		Preferences:   NewMemoryPreferences(),
		VoiceCacheTTL: 5 * time.Minute,
		Logger:        slog.Default(),
	}
}

// Apply applies functional options to the config.
func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
	if c.Scorer == nil {
		c.Scorer = QualityScore
	}
	if c.Preferences == nil {
		c.Preferences = NewMemoryPreferences()
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}
