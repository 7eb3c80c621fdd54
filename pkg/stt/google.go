package stt

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"google.golang.org/api/speech/v1"

	"github.com/teslashibe/agrivoice/internal/gcp"
	"github.com/teslashibe/agrivoice/pkg/audioio"
	"github.com/teslashibe/agrivoice/pkg/language"
)

// GoogleConfig configures the Cloud Speech recognizer.
type GoogleConfig struct {
	Credentials gcp.Credentials

	Model           string
	Boost           float64
	EnergyThreshold float64       // mean power above which a chunk counts as speech
	EndSilence      time.Duration // silence that ends an utterance
	NoSpeechTimeout time.Duration // capture ends with ErrNoSpeech after this
	MaxUtterance    time.Duration
	RequestTimeout  time.Duration
}

// DefaultGoogleConfig returns sensible defaults.
func DefaultGoogleConfig() GoogleConfig {
	return GoogleConfig{
		Model:           "latest_long",
		Boost:           20,
		EnergyThreshold: 0.001,
		EndSilence:      800 * time.Millisecond,
		NoSpeechTimeout: 8 * time.Second,
		MaxUtterance:    15 * time.Second,
		RequestTimeout:  10 * time.Second,
	}
}

type recognizeAPI interface {
	Recognize(ctx context.Context, req *speech.RecognizeRequest) (*speech.RecognizeResponse, error)
}

type speechService struct{ svc *speech.Service }

func (s speechService) Recognize(ctx context.Context, req *speech.RecognizeRequest) (*speech.RecognizeResponse, error) {
	return s.svc.Speech.Recognize(req).Context(ctx).Do()
}

// Google recognizes speech captured from an audio source with the Cloud
// Speech-to-Text REST API. Utterances are endpointed locally by energy and
// each one is sent as a synchronous recognize request.
type Google struct {
	api    recognizeAPI
	source audioio.Source
	cfg    GoogleConfig
	logger *slog.Logger

	mu     sync.Mutex
	gen    uint64
	cancel context.CancelFunc
}

// NewGoogle creates a Cloud Speech recognizer reading from source.
func NewGoogle(ctx context.Context, source audioio.Source, cfg GoogleConfig, logger *slog.Logger) (*Google, error) {
	opts, err := gcp.ClientOptions(ctx, cfg.Credentials)
	if err != nil {
		return nil, err
	}
	svc, err := speech.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("stt: create speech client: %w", err)
	}
	return newGoogle(speechService{svc}, source, cfg, logger), nil
}

func newGoogle(api recognizeAPI, source audioio.Source, cfg GoogleConfig, logger *slog.Logger) *Google {
	def := DefaultGoogleConfig()
	if cfg.Model == "" {
		cfg.Model = def.Model
	}
	if cfg.Boost == 0 {
		cfg.Boost = def.Boost
	}
	if cfg.EnergyThreshold == 0 {
		cfg.EnergyThreshold = def.EnergyThreshold
	}
	if cfg.EndSilence == 0 {
		cfg.EndSilence = def.EndSilence
	}
	if cfg.NoSpeechTimeout == 0 {
		cfg.NoSpeechTimeout = def.NoSpeechTimeout
	}
	if cfg.MaxUtterance == 0 {
		cfg.MaxUtterance = def.MaxUtterance
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = def.RequestTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Google{api: api, source: source, cfg: cfg, logger: logger.With("component", "stt.google")}
}

// Name returns "google".
func (g *Google) Name() string { return "google" }

// IsSupported reports whether the audio source can capture.
func (g *Google) IsSupported() bool { return g.source != nil && g.source.Ready() }

// IsListening reports whether a capture is in progress.
func (g *Google) IsListening() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.cancel != nil
}

// Start begins capturing utterances in lang until Stop, ctx cancellation,
// or a capture error.
func (g *Google) Start(ctx context.Context, lang string, cb Callbacks) error {
	if !g.IsSupported() {
		return NewError(KindUnsupported, "audio source not ready", nil)
	}
	_ = g.Stop()

	if err := g.source.Start(ctx); err != nil {
		return NewError(KindAudioCapture, "start audio source", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	g.mu.Lock()
	g.gen++
	gen := g.gen
	g.cancel = cancel
	g.mu.Unlock()

	go g.run(runCtx, gen, lang, cb)
	return nil
}

// Stop ends the capture. Callbacks from the ended capture are suppressed.
func (g *Google) Stop() error {
	g.mu.Lock()
	cancel := g.cancel
	g.cancel = nil
	g.gen++
	g.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	return g.source.Stop()
}

func (g *Google) current(gen uint64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.gen == gen
}

// finish clears the capture if gen is still current.
func (g *Google) finish(gen uint64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.gen != gen {
		return false
	}
	if g.cancel != nil {
		g.cancel()
	}
	g.cancel = nil
	g.gen++
	return true
}

func (g *Google) run(ctx context.Context, gen uint64, lang string, cb Callbacks) {
	cb.start()

	err := g.capture(ctx, gen, lang, cb)
	if !g.finish(gen) {
		return
	}
	_ = g.source.Stop()
	if err != nil {
		cb.fail(err)
	}
	cb.end()
}

// capture reads chunks and dispatches utterances until the source ends.
func (g *Google) capture(ctx context.Context, gen uint64, lang string, cb Callbacks) error {
	var (
		utterance  []int16
		speaking   bool
		silence    time.Duration
		spoken     time.Duration
		waited     time.Duration
		recognized bool
	)
	rate := g.source.Config().SampleRate

	flush := func() error {
		samples := utterance
		utterance, speaking, silence, spoken = nil, false, 0, 0
		if len(samples) == 0 {
			return nil
		}
		ev, ok, err := g.recognize(ctx, samples, rate, lang)
		if err != nil {
			return err
		}
		if ok && g.current(gen) {
			recognized = true
			cb.result(ev)
		}
		return nil
	}

	for {
		chunk, err := g.source.Read(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				if ferr := flush(); ferr != nil && ctx.Err() == nil {
					return ferr
				}
				return nil
			}
			return NewError(KindAudioCapture, "read audio", err)
		}
		if chunk.SampleRate != 0 {
			rate = chunk.SampleRate
		}
		d := chunk.Duration()
		loud := audioio.Energy(chunk.Samples) >= g.cfg.EnergyThreshold

		switch {
		case loud:
			speaking = true
			silence = 0
			spoken += d
			utterance = append(utterance, chunk.Samples...)
		case speaking:
			silence += d
			spoken += d
			utterance = append(utterance, chunk.Samples...)
		default:
			waited += d
			if !recognized && waited >= g.cfg.NoSpeechTimeout {
				return ErrNoSpeech
			}
			continue
		}

		if (speaking && silence >= g.cfg.EndSilence) || spoken >= g.cfg.MaxUtterance {
			waited = 0
			if err := flush(); err != nil {
				return err
			}
		}
	}
}

// recognize sends one utterance. ok is false when nothing was recognized.
func (g *Google) recognize(ctx context.Context, samples []int16, rate int, lang string) (Event, bool, error) {
	locale := googleLocale(lang)
	req := &speech.RecognizeRequest{
		Config: &speech.RecognitionConfig{
			Encoding:                   "LINEAR16",
			SampleRateHertz:            int64(rate),
			AudioChannelCount:          1,
			LanguageCode:               locale,
			AlternativeLanguageCodes:   alternativeLocales(locale),
			MaxAlternatives:            MaxAlternatives,
			EnableAutomaticPunctuation: true,
			Model:                      g.cfg.Model,
			SpeechContexts: []*speech.SpeechContext{{
				Phrases: Phrases(lang),
				Boost:   g.cfg.Boost,
			}},
		},
		Audio: &speech.RecognitionAudio{
			Content: base64.StdEncoding.EncodeToString(audioio.SamplesToBytes(samples)),
		},
	}

	reqCtx, cancel := context.WithTimeout(ctx, g.cfg.RequestTimeout)
	defer cancel()

	start := time.Now()
	resp, err := g.api.Recognize(reqCtx, req)
	if err != nil {
		if ctx.Err() != nil {
			return Event{}, false, nil
		}
		return Event{}, false, NewError(KindNetwork, "recognize request failed", err)
	}
	g.logger.Debug("recognize complete", "language", lang, "results", len(resp.Results), "latency", time.Since(start))
	return eventFromResponse(resp, lang)
}

func eventFromResponse(resp *speech.RecognizeResponse, lang string) (Event, bool, error) {
	var (
		parts    []string
		conf     float64
		alts     []Alternative
		detected = lang
	)
	for i, r := range resp.Results {
		if len(r.Alternatives) == 0 {
			continue
		}
		parts = append(parts, strings.TrimSpace(r.Alternatives[0].Transcript))
		if i == 0 {
			conf = r.Alternatives[0].Confidence
			for _, a := range r.Alternatives {
				alts = append(alts, Alternative{Text: strings.TrimSpace(a.Transcript), Confidence: a.Confidence})
			}
			if code, ok := language.FromLocale(r.LanguageCode); ok {
				detected = code
			}
		}
	}
	text := strings.TrimSpace(strings.Join(parts, " "))
	if text == "" {
		return Event{}, false, nil
	}
	return NewEvent(text, "", conf, alts, detected), true, nil
}

var _ Recognizer = (*Google)(nil)
