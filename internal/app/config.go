// Package app assembles the agrivoice services from configuration.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/teslashibe/agrivoice/internal/config"
	"github.com/teslashibe/agrivoice/internal/gcp"
	"github.com/teslashibe/agrivoice/pkg/language"
	"github.com/teslashibe/agrivoice/pkg/transcript"
)

// Engine names accepted for STT_ENGINE and TTS_ENGINE.
const (
	EngineRelay  = "relay"  // the browser's own speech capabilities over the bridge
	EngineGoogle = "google" // Google Cloud, audio over WebRTC in and the bridge out
	EngineChain  = "chain"  // TTS only: google, then relay
	EngineMock   = "mock"
)

// Config holds everything needed to build the services. Flag parsing is
// done in the commands; this struct is data only.
type Config struct {
	Addr      string
	StaticDir string

	Language     string
	Location     string
	UserID       string
	VoiceOutput  bool
	AutoLanguage bool

	STTEngine string
	TTSEngine string

	Store    transcript.StoreConfig
	RedisURL string // voice preferences; file under DataDir when empty
	DataDir  string

	GatewayTimeout time.Duration

	GeminiKey   string
	DeepSeekKey string
	WeatherKey  string
	Google      gcp.Credentials
}

// DefaultConfig returns a config that runs without any credentials.
func DefaultConfig() Config {
	return Config{
		Addr:           config.DefaultListenAddr,
		StaticDir:      "./web",
		Language:       language.Hindi,
		Location:       "Delhi",
		UserID:         "anonymous",
		VoiceOutput:    true,
		STTEngine:      EngineRelay,
		TTSEngine:      EngineRelay,
		GatewayTimeout: 30 * time.Second,
	}
}

// LoadEnvConfig applies environment overrides. Keys are resolved through
// secrets so they may live in SSM Parameter Store.
func (c *Config) LoadEnvConfig(ctx context.Context, secrets *config.Secrets) {
	c.Addr = config.String(config.EnvListenAddr, c.Addr)
	c.STTEngine = config.String(config.EnvSTTEngine, c.STTEngine)
	c.TTSEngine = config.String(config.EnvTTSEngine, c.TTSEngine)
	c.Language = config.String("AGRIVOICE_LANGUAGE", c.Language)
	c.Location = config.String("AGRIVOICE_LOCATION", c.Location)
	c.AutoLanguage = config.Bool("AGRIVOICE_AUTO_LANGUAGE", c.AutoLanguage)
	c.GatewayTimeout = config.Duration("AGRIVOICE_GATEWAY_TIMEOUT", c.GatewayTimeout)
	if c.DataDir == "" {
		c.DataDir = config.DataDir()
	}

	c.Store.Type = transcript.StoreType(config.String(config.EnvTranscriptDrv, string(c.Store.Type)))
	if c.Store.Dir == "" {
		c.Store.Dir = c.DataDir
	}
	c.Store.RedisURL = config.String(config.EnvRedisURL, c.Store.RedisURL)
	c.Store.Table = config.String(config.EnvDynamoTable, c.Store.Table)
	c.Store.URL = config.String(config.EnvSupabaseURL, c.Store.URL)
	c.RedisURL = config.String(config.EnvRedisURL, c.RedisURL)

	c.GeminiKey = secrets.Lookup(ctx, config.EnvGeminiKey)
	c.DeepSeekKey = secrets.Lookup(ctx, config.EnvDeepSeekKey)
	c.WeatherKey = secrets.Lookup(ctx, config.EnvWeatherKey)
	c.Store.Key = secrets.Lookup(ctx, config.EnvSupabaseKey)
	c.Google.APIKey = secrets.Lookup(ctx, config.EnvGoogleAPIKey)
	c.Google.CredentialsFile = config.String(config.EnvGoogleCreds, c.Google.CredentialsFile)
}

// Validate checks the engine names and the starting language.
func (c *Config) Validate() error {
	switch c.STTEngine {
	case EngineRelay, EngineGoogle, EngineMock:
	default:
		return &ConfigError{Field: "STTEngine", Message: fmt.Sprintf("unknown STT engine %q", c.STTEngine)}
	}
	switch c.TTSEngine {
	case EngineRelay, EngineGoogle, EngineChain, EngineMock:
	default:
		return &ConfigError{Field: "TTSEngine", Message: fmt.Sprintf("unknown TTS engine %q", c.TTSEngine)}
	}
	if !language.IsSupported(c.Language) {
		return &ConfigError{Field: "Language", Message: fmt.Sprintf("unsupported language %q", c.Language)}
	}
	return nil
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Message
}
