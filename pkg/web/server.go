// Package web serves the agrivoice HTTP API, the event stream and the
// browser bridge.
package web

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"github.com/pion/webrtc/v3"

	"github.com/teslashibe/agrivoice/pkg/audioio"
	"github.com/teslashibe/agrivoice/pkg/bridge"
	"github.com/teslashibe/agrivoice/pkg/hub"
	"github.com/teslashibe/agrivoice/pkg/reasoning"
	"github.com/teslashibe/agrivoice/pkg/transcript"
	"github.com/teslashibe/agrivoice/pkg/tts"
	"github.com/teslashibe/agrivoice/pkg/voice"
)

// Orchestrator is the part of *voice.Orchestrator the API drives.
type Orchestrator interface {
	StartVoiceInteraction() error
	StopVoiceInteraction()
	ProcessTextQuery(ctx context.Context, text, lang string) (*reasoning.Result, error)
	SetLanguage(code string) error
	SetLocation(place string)
	SetVoiceOutput(on bool)
	Status() voice.Status
	Metrics() *voice.MetricsCollector
}

// Voices is the part of *tts.Synthesizer the API exposes.
type Voices interface {
	VoicesFor(ctx context.Context, lang string) ([]tts.VoiceQuality, error)
	SetPreferredVoice(ctx context.Context, lang, voiceID string) error
	Preferences(ctx context.Context) (map[string]string, error)
	Stats(ctx context.Context) (tts.VoiceStats, error)
}

// Transcripts is the part of *transcript.Logger the API exposes.
type Transcripts interface {
	StartSession(userID string, meta transcript.Metadata) (string, error)
	EndSession() *transcript.Session
	CurrentSession() *transcript.Session
	Filter(f transcript.Filter) []*transcript.Session
	Export(w io.Writer, format transcript.Format, f transcript.Filter) error
	Analytics(f transcript.Filter) transcript.Analytics
	Clear()
}

// MicIngress accepts a browser microphone over WebRTC.
type MicIngress interface {
	Answer(ctx context.Context, offer webrtc.SessionDescription) (*webrtc.SessionDescription, error)
}

var (
	_ Orchestrator = (*voice.Orchestrator)(nil)
	_ Voices       = (*tts.Synthesizer)(nil)
	_ Transcripts  = (*transcript.Logger)(nil)
	_ MicIngress   = (*audioio.WebRTCSource)(nil)
)

// Deps are the services behind the API. Only Orchestrator is required.
type Deps struct {
	Orchestrator Orchestrator
	Voices       Voices
	Transcripts  Transcripts
	Events       *hub.Hub
	Bridge       *bridge.Bridge
	Mic          MicIngress
}

// Config holds server settings.
type Config struct {
	Addr         string
	StaticDir    string
	AllowOrigins string
	OfferTimeout time.Duration
	Logger       *slog.Logger
}

// Option configures the server.
type Option func(*Config)

// DefaultConfig listens on :8080 and serves ./web.
func DefaultConfig() *Config {
	return &Config{
		Addr:         ":8080",
		StaticDir:    "./web",
		AllowOrigins: "*",
		OfferTimeout: 10 * time.Second,
	}
}

func WithAddr(addr string) Option      { return func(c *Config) { c.Addr = addr } }
func WithStaticDir(dir string) Option  { return func(c *Config) { c.StaticDir = dir } }
func WithAllowOrigins(o string) Option { return func(c *Config) { c.AllowOrigins = o } }
func WithLogger(l *slog.Logger) Option { return func(c *Config) { c.Logger = l } }
func WithOfferTimeout(d time.Duration) Option {
	return func(c *Config) { c.OfferTimeout = d }
}

// Server is the HTTP front end.
type Server struct {
	app     *fiber.App
	cfg     *Config
	deps    Deps
	logger  *slog.Logger
	started time.Time
}

// ErrNoOrchestrator is returned by New without an orchestrator.
var ErrNoOrchestrator = errors.New("web: orchestrator is required")

// New builds the server and its routes.
func New(deps Deps, opts ...Option) (*Server, error) {
	if deps.Orchestrator == nil {
		return nil, ErrNoOrchestrator
	}
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	s := &Server{
		cfg:     cfg,
		deps:    deps,
		logger:  cfg.Logger.With("component", "web.server"),
		started: time.Now(),
	}

	app := fiber.New(fiber.Config{
		AppName:               "AgriVoice",
		DisableStartupMessage: true,
		ErrorHandler:          s.handleError,
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{AllowOrigins: cfg.AllowOrigins}))
	app.Use(s.logRequests)

	api := app.Group("/api")
	api.Get("/health", s.handleHealth)
	api.Post("/query", s.handleQuery)
	api.Post("/voice/start", s.handleVoiceStart)
	api.Post("/voice/stop", s.handleVoiceStop)
	api.Put("/voice/output", s.handleVoiceOutput)
	api.Get("/language", s.handleGetLanguage)
	api.Put("/language", s.handleSetLanguage)
	api.Put("/location", s.handleSetLocation)
	api.Get("/state", s.handleState)

	api.Get("/voices", s.handleVoices)
	api.Get("/voices/stats", s.handleVoiceStats)
	api.Get("/voices/preference", s.handleGetPreferences)
	api.Put("/voices/preference", s.handleSetPreference)

	api.Get("/transcripts", s.handleTranscripts)
	api.Delete("/transcripts", s.handleClearTranscripts)
	api.Get("/transcripts/current", s.handleCurrentSession)
	api.Post("/transcripts/session", s.handleStartSession)
	api.Delete("/transcripts/session", s.handleEndSession)
	api.Get("/transcripts/export", s.handleExport)
	api.Get("/analytics", s.handleAnalytics)

	api.Post("/webrtc/offer", s.handleOffer)

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	if deps.Events != nil {
		app.Get("/ws/events", websocket.New(func(c *websocket.Conn) {
			hub.NewClient(deps.Events, c).Run()
		}))
	}
	if deps.Bridge != nil {
		deps.Bridge.RegisterRoutes(app)
	}

	if cfg.StaticDir != "" {
		app.Static("/", cfg.StaticDir)
	}

	s.app = app
	return s, nil
}

// App exposes the fiber app, mainly for tests.
func (s *Server) App() *fiber.App { return s.app }

// Start runs the event hub and serves until ctx is cancelled or the
// listener fails.
func (s *Server) Start(ctx context.Context) error {
	if s.deps.Events != nil {
		go s.deps.Events.Run(ctx)
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", s.cfg.Addr)
		errc <- s.app.Listen(s.cfg.Addr)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.app.ShutdownWithContext(shutdownCtx)
	}
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

func (s *Server) logRequests(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()
	s.logger.Debug("request",
		"method", c.Method(),
		"path", c.Path(),
		"status", c.Response().StatusCode(),
		"latency", time.Since(start),
	)
	return err
}
