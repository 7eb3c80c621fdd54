package tts

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/texttospeech/v1"

	"github.com/teslashibe/agrivoice/internal/gcp"
	"github.com/teslashibe/agrivoice/pkg/audioio"
)

// GoogleConfig configures the Cloud Text-to-Speech engine.
type GoogleConfig struct {
	Credentials gcp.Credentials
	SampleRate  int
	Logger      *slog.Logger
}

type synthesizeAPI interface {
	Synthesize(ctx context.Context, req *texttospeech.SynthesizeSpeechRequest) (*texttospeech.SynthesizeSpeechResponse, error)
	ListVoices(ctx context.Context) (*texttospeech.ListVoicesResponse, error)
}

type ttsService struct{ svc *texttospeech.Service }

func (s ttsService) Synthesize(ctx context.Context, req *texttospeech.SynthesizeSpeechRequest) (*texttospeech.SynthesizeSpeechResponse, error) {
	return s.svc.Text.Synthesize(req).Context(ctx).Do()
}

func (s ttsService) ListVoices(ctx context.Context) (*texttospeech.ListVoicesResponse, error) {
	return s.svc.Voices.List().Context(ctx).Do()
}

// Google synthesizes with Cloud Text-to-Speech and plays the audio on a
// sink, typically the browser through a BridgeSink.
type Google struct {
	api        synthesizeAPI
	sink       audioio.Sink
	sampleRate int
	logger     *slog.Logger
}

// NewGoogle creates a Cloud Text-to-Speech engine playing on sink.
func NewGoogle(ctx context.Context, sink audioio.Sink, cfg GoogleConfig) (*Google, error) {
	opts, err := gcp.ClientOptions(ctx, cfg.Credentials)
	if err != nil {
		return nil, err
	}
	svc, err := texttospeech.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("tts: create texttospeech client: %w", err)
	}
	return newGoogle(ttsService{svc}, sink, cfg), nil
}

func newGoogle(api synthesizeAPI, sink audioio.Sink, cfg GoogleConfig) *Google {
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 24000
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Google{
		api:        api,
		sink:       sink,
		sampleRate: cfg.SampleRate,
		logger:     cfg.Logger.With("component", "tts.google"),
	}
}

// Name returns "google".
func (g *Google) Name() string { return "google" }

// IsSupported reports whether a sink is available.
func (g *Google) IsSupported() bool { return g.sink != nil }

// Voices lists the Cloud voices. Each multi-locale voice is reported once
// per locale.
func (g *Google) Voices(ctx context.Context) ([]Voice, error) {
	resp, err := g.api.ListVoices(ctx)
	if err != nil {
		return nil, g.apiError(err)
	}
	var out []Voice
	for _, v := range resp.Voices {
		for _, locale := range v.LanguageCodes {
			out = append(out, Voice{
				ID:     v.Name,
				Name:   "Google " + v.Name,
				Locale: locale,
				Gender: Gender(strings.ToLower(v.SsmlGender)),
			})
		}
	}
	return out, nil
}

// Speak synthesizes u and plays it on the sink.
func (g *Google) Speak(ctx context.Context, u Utterance, started func()) error {
	req := &texttospeech.SynthesizeSpeechRequest{
		Input: &texttospeech.SynthesisInput{Text: u.Text},
		Voice: &texttospeech.VoiceSelectionParams{
			LanguageCode: u.Locale,
			Name:         u.Voice.ID,
		},
		AudioConfig: &texttospeech.AudioConfig{
			AudioEncoding:   "LINEAR16",
			SampleRateHertz: int64(g.sampleRate),
			SpeakingRate:    clamp(u.Options.Rate, 0.25, 4),
			Pitch:           semitones(u.Options.Pitch),
			VolumeGainDb:    gainDB(u.Options.Volume),
		},
	}
	resp, err := g.api.Synthesize(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return ErrInterrupted
		}
		return g.apiError(err)
	}
	audio, err := base64.StdEncoding.DecodeString(resp.AudioContent)
	if err != nil {
		return WrapError(g.Name(), fmt.Errorf("decode audio: %w", err))
	}

	started()
	err = g.sink.Play(ctx, audioio.Clip{
		ID:         u.ID,
		Format:     "pcm16",
		SampleRate: g.sampleRate,
		Data:       stripWAVHeader(audio),
	})
	if errors.Is(err, audioio.ErrInterrupted) || errors.Is(err, context.Canceled) {
		return ErrInterrupted
	}
	return err
}

// Stop implements Engine.
func (g *Google) Stop() error { return g.sink.Stop() }

// Pause implements Engine.
func (g *Google) Pause() error { return g.sink.Pause() }

// Resume implements Engine.
func (g *Google) Resume() error { return g.sink.Resume() }

func (g *Google) apiError(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return &APIError{StatusCode: gerr.Code, Message: gerr.Message, Provider: g.Name()}
	}
	return WrapError(g.Name(), err)
}

// stripWAVHeader drops the RIFF header Cloud TTS puts on LINEAR16 audio.
func stripWAVHeader(b []byte) []byte {
	if len(b) < 44 || string(b[0:4]) != "RIFF" || string(b[8:12]) != "WAVE" {
		return b
	}
	// Walk chunks to find "data".
	off := 12
	for off+8 <= len(b) {
		id := string(b[off : off+4])
		size := int(b[off+4]) | int(b[off+5])<<8 | int(b[off+6])<<16 | int(b[off+7])<<24
		off += 8
		if id == "data" {
			return b[off:]
		}
		off += size + size%2
	}
	return b[44:]
}

// semitones maps a relative pitch (1.0 = normal, 0..2) to Cloud's -20..20.
func semitones(pitch float64) float64 {
	return clamp((pitch-1)*20, -20, 20)
}

// gainDB maps a 0..1 volume to Cloud's -96..16 dB gain.
func gainDB(volume float64) float64 {
	if volume <= 0 {
		return -96
	}
	return clamp(20*math.Log10(volume), -96, 16)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

var _ Engine = (*Google)(nil)
