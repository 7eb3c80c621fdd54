package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/redis/go-redis/v9"

	"github.com/teslashibe/agrivoice/pkg/audioio"
	"github.com/teslashibe/agrivoice/pkg/bridge"
	"github.com/teslashibe/agrivoice/pkg/hub"
	"github.com/teslashibe/agrivoice/pkg/reasoning"
	"github.com/teslashibe/agrivoice/pkg/stt"
	"github.com/teslashibe/agrivoice/pkg/transcript"
	"github.com/teslashibe/agrivoice/pkg/tts"
	"github.com/teslashibe/agrivoice/pkg/voice"
	"github.com/teslashibe/agrivoice/pkg/weather"
	"github.com/teslashibe/agrivoice/pkg/web"
)

// App owns every component of a running agrivoice server and their
// lifecycle.
type App struct {
	config Config
	logger *slog.Logger

	bridge *bridge.Bridge
	events *hub.Hub
	mic    *audioio.WebRTCSource

	recognizer   stt.Recognizer
	synth        *tts.Synthesizer
	gateway      *reasoning.Gateway
	transcripts  *transcript.Logger
	orchestrator *voice.Orchestrator
	server       *web.Server
}

// New validates cfg. Call Init before Run.
func New(cfg Config, logger *slog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &App{config: cfg, logger: logger}, nil
}

// Init builds the components. On error, whatever was built is released.
func (a *App) Init(ctx context.Context) (err error) {
	defer func() {
		if err != nil {
			a.Shutdown()
		}
	}()

	a.bridge = bridge.New(a.logger)
	a.events = hub.New("events", a.logger)

	store, err := transcript.OpenStore(ctx, a.config.Store)
	if err != nil {
		return fmt.Errorf("transcript store: %w", err)
	}
	a.transcripts = transcript.New(store, transcript.WithLogger(a.logger))

	if a.recognizer, err = a.initSTT(ctx); err != nil {
		return fmt.Errorf("stt: %w", err)
	}
	if a.synth, err = a.initTTS(ctx); err != nil {
		return fmt.Errorf("tts: %w", err)
	}
	a.gateway = BuildGateway(a.config, a.logger)

	opts := []voice.Option{
		voice.WithLanguage(a.config.Language),
		voice.WithLocation(a.config.Location),
		voice.WithUserID(a.config.UserID),
		voice.WithVoiceOutput(a.config.VoiceOutput),
		voice.WithGatewayTimeout(a.config.GatewayTimeout),
		voice.WithLogger(a.logger),
	}
	if a.config.AutoLanguage {
		opts = append(opts, voice.WithAutoLanguage(0))
	}
	a.orchestrator, err = voice.New(voice.Deps{
		Recognizer:  a.recognizer,
		Synthesizer: a.synth,
		Gateway:     a.gateway,
		Transcripts: a.transcripts,
		Events:      a.events,
	}, opts...)
	if err != nil {
		return fmt.Errorf("orchestrator: %w", err)
	}

	deps := web.Deps{
		Orchestrator: a.orchestrator,
		Voices:       a.synth,
		Transcripts:  a.transcripts,
		Events:       a.events,
		Bridge:       a.bridge,
	}
	if a.mic != nil {
		deps.Mic = a.mic
	}
	a.server, err = web.New(deps,
		web.WithAddr(a.config.Addr),
		web.WithStaticDir(a.config.StaticDir),
		web.WithLogger(a.logger),
	)
	if err != nil {
		return fmt.Errorf("web: %w", err)
	}

	a.logger.Info("agrivoice ready",
		"stt", a.recognizer.Name(),
		"tts", a.synth.Engine().Name(),
		"store", a.config.Store.Type,
		"language", a.config.Language,
	)
	return nil
}

func (a *App) initSTT(ctx context.Context) (stt.Recognizer, error) {
	switch a.config.STTEngine {
	case EngineMock:
		return stt.NewMock(), nil
	case EngineGoogle:
		a.mic = audioio.NewWebRTCSource(audioio.DefaultConfig(), a.logger)
		cfg := stt.DefaultGoogleConfig()
		cfg.Credentials = a.config.Google
		return stt.NewGoogle(ctx, a.mic, cfg, a.logger)
	default:
		return stt.NewRelay(a.bridge, a.logger), nil
	}
}

func (a *App) initTTS(ctx context.Context) (*tts.Synthesizer, error) {
	prefs, err := a.preferences()
	if err != nil {
		return nil, err
	}

	var engine tts.Engine
	switch a.config.TTSEngine {
	case EngineMock:
		engine = tts.NewMock()
	case EngineGoogle, EngineChain:
		g, err := tts.NewGoogle(ctx, tts.NewBridgeSink(a.bridge, a.logger), tts.GoogleConfig{
			Credentials: a.config.Google,
			Logger:      a.logger,
		})
		if err != nil {
			return nil, err
		}
		engine = g
		if a.config.TTSEngine == EngineChain {
			if engine, err = tts.NewChain(a.logger, g, tts.NewRelay(a.bridge, a.logger)); err != nil {
				return nil, err
			}
		}
	default:
		engine = tts.NewRelay(a.bridge, a.logger)
	}
	return tts.New(engine, tts.WithPreferences(prefs), tts.WithLogger(a.logger)), nil
}

func (a *App) preferences() (tts.Preferences, error) {
	if a.config.RedisURL != "" {
		opts, err := redis.ParseURL(a.config.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("redis url: %w", err)
		}
		return tts.NewRedisPreferences(redis.NewClient(opts)), nil
	}
	if a.config.DataDir == "" {
		return tts.NewMemoryPreferences(), nil
	}
	return tts.NewFilePreferences(filepath.Join(a.config.DataDir, tts.DefaultPreferencesFile))
}

// BuildGateway wires the weather client and the LLM providers that have
// keys. With no keys at all the gateway answers from its local rules and
// the mock forecast.
func BuildGateway(cfg Config, logger *slog.Logger) *reasoning.Gateway {
	if logger == nil {
		logger = slog.Default()
	}

	var wp weather.Provider
	if c, err := weather.NewClient(cfg.WeatherKey, weather.WithLogger(logger)); err == nil {
		wp = c
	}

	var providers []reasoning.Provider
	if p, err := reasoning.NewGemini(reasoning.WithAPIKey(cfg.GeminiKey), reasoning.WithLogger(logger)); err == nil {
		providers = append(providers, p)
	}
	if p, err := reasoning.NewDeepSeek(reasoning.WithAPIKey(cfg.DeepSeekKey), reasoning.WithLogger(logger)); err == nil {
		providers = append(providers, p)
	}

	return reasoning.NewGateway(wp, providers,
		reasoning.WithDefaultLocation(cfg.Location),
		reasoning.WithGatewayLogger(logger),
	)
}

// Run serves until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	if a.server == nil {
		return errors.New("app: Init was not called")
	}
	return a.server.Start(ctx)
}

// Orchestrator returns the voice orchestrator built by Init.
func (a *App) Orchestrator() *voice.Orchestrator { return a.orchestrator }

// Server returns the HTTP server built by Init.
func (a *App) Server() *web.Server { return a.server }

// Shutdown releases every component. It is safe to call more than once.
func (a *App) Shutdown() {
	if a.orchestrator != nil {
		if err := a.orchestrator.Close(); err != nil {
			a.logger.Warn("orchestrator close", "error", err)
		}
		a.orchestrator = nil
	}
	if a.mic != nil {
		if err := a.mic.Close(); err != nil {
			a.logger.Warn("microphone close", "error", err)
		}
		a.mic = nil
	}
	if a.gateway != nil {
		_ = a.gateway.Close()
		a.gateway = nil
	}
	if a.transcripts != nil {
		if err := a.transcripts.Close(); err != nil {
			a.logger.Warn("transcript close", "error", err)
		}
		a.transcripts = nil
	}
}
