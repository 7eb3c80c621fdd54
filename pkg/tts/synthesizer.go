package tts

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/teslashibe/agrivoice/pkg/language"
)

// Playback tracks one spoken utterance.
type Playback struct {
	ID       string
	Text     string
	Language string
	Voice    Voice
	Options  Options
	Engine   string

	mu        sync.Mutex
	startedAt time.Time
	endedAt   time.Time
	paused    bool
	err       error
	once      sync.Once
	done      chan struct{}
	cancel    context.CancelFunc
}

// Done is closed when playback ends, fails or is interrupted.
func (p *Playback) Done() <-chan struct{} { return p.done }

// Err returns the playback outcome once Done is closed: nil on a normal
// end, ErrInterrupted when stopped or replaced, otherwise an ErrSynthesis.
func (p *Playback) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// Wait blocks until playback resolves or ctx is done.
func (p *Playback) Wait(ctx context.Context) error {
	select {
	case <-p.done:
		return p.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Duration is the measured time from audio start to end. It is zero until
// both are known.
func (p *Playback) Duration() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.startedAt.IsZero() || p.endedAt.IsZero() {
		return 0
	}
	return p.endedAt.Sub(p.startedAt)
}

// Paused reports whether the playback is paused.
func (p *Playback) Paused() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.paused
}

func (p *Playback) markStarted() {
	p.mu.Lock()
	if p.startedAt.IsZero() {
		p.startedAt = time.Now()
	}
	p.mu.Unlock()
}

func (p *Playback) setPaused(v bool) {
	p.mu.Lock()
	p.paused = v
	p.mu.Unlock()
}

// resolve records the outcome. It returns false if already resolved.
func (p *Playback) resolve(err error) bool {
	resolved := false
	p.once.Do(func() {
		p.mu.Lock()
		p.err = err
		p.endedAt = time.Now()
		p.mu.Unlock()
		p.cancel()
		close(p.done)
		resolved = true
	})
	return resolved
}

// Synthesizer speaks text through an Engine, one utterance at a time.
type Synthesizer struct {
	engine Engine
	cfg    *Config
	logger *slog.Logger

	mu        sync.Mutex
	current   *Playback
	voices    []Voice
	fetchedAt time.Time
}

// New creates a synthesizer on engine.
func New(engine Engine, opts ...Option) *Synthesizer {
	cfg := DefaultConfig()
	cfg.Apply(opts...)
	return &Synthesizer{
		engine: engine,
		cfg:    cfg,
		logger: cfg.Logger.With("component", "tts.synthesizer", "engine", engine.Name()),
	}
}

// Engine returns the underlying engine.
func (s *Synthesizer) Engine() Engine { return s.engine }

// IsSupported reports whether the engine can speak.
func (s *Synthesizer) IsSupported() bool { return s.engine.IsSupported() }

// SetObservers replaces the lifecycle observers.
func (s *Synthesizer) SetObservers(o Observers) {
	s.mu.Lock()
	s.cfg.Observers = o
	s.mu.Unlock()
}

func (s *Synthesizer) observers() Observers {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.Observers
}

// Speak stops any utterance in progress and starts speaking text in lang.
// It returns once playback is under way; use the Playback to wait for it.
func (s *Synthesizer) Speak(ctx context.Context, text, lang string, opts Options) (*Playback, error) {
	if !s.engine.IsSupported() {
		return nil, ErrUnsupported
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyText
	}
	if !language.IsSupported(lang) {
		lang = language.Default
	}
	opts = opts.normalized()

	voice, err := s.ResolveVoice(ctx, lang, opts)
	if err != nil {
		s.logger.Warn("voice resolution failed, using engine default", "language", lang, "error", err)
	}

	s.Stop()

	pctx, cancel := context.WithCancel(ctx)
	pb := &Playback{
		ID:       uuid.NewString(),
		Text:     text,
		Language: lang,
		Voice:    voice,
		Options:  opts,
		Engine:   s.engine.Name(),
		done:     make(chan struct{}),
		cancel:   cancel,
	}
	s.mu.Lock()
	s.current = pb
	s.mu.Unlock()

	u := Utterance{
		ID:       pb.ID,
		Text:     text,
		Language: lang,
		Locale:   language.Locale(lang),
		Voice:    voice,
		Options:  opts,
	}
	if voice.Locale != "" {
		u.Locale = voice.Locale
	}

	go s.play(pctx, pb, u)
	return pb, nil
}

func (s *Synthesizer) play(ctx context.Context, pb *Playback, u Utterance) {
	obs := s.observers()
	started := sync.OnceFunc(func() {
		pb.markStarted()
		if obs.OnStart != nil {
			obs.OnStart(pb)
		}
	})

	err := s.engine.Speak(ctx, u, started)

	s.mu.Lock()
	if s.current == pb {
		s.current = nil
	}
	s.mu.Unlock()

	switch {
	case err == nil:
		if pb.resolve(nil) && obs.OnEnd != nil {
			obs.OnEnd(pb)
		}
	case errors.Is(err, ErrInterrupted) || errors.Is(err, context.Canceled):
		pb.resolve(ErrInterrupted)
	default:
		err = synthesisError(s.engine.Name(), err)
		if pb.resolve(err) {
			s.logger.Warn("playback failed", "id", pb.ID, "language", pb.Language, "error", err)
			if obs.OnError != nil {
				obs.OnError(pb, err)
			}
		}
	}
}

// Stop interrupts the current utterance. It is safe to call at any time.
// The interrupted Playback resolves with ErrInterrupted and no observer
// fires for it.
func (s *Synthesizer) Stop() {
	s.mu.Lock()
	pb := s.current
	s.current = nil
	s.mu.Unlock()
	if pb == nil {
		return
	}
	if pb.resolve(ErrInterrupted) {
		if err := s.engine.Stop(); err != nil {
			s.logger.Debug("engine stop failed", "error", err)
		}
	}
}

// Pause suspends the current utterance.
func (s *Synthesizer) Pause() error {
	return s.toggle(true)
}

// Resume continues a paused utterance.
func (s *Synthesizer) Resume() error {
	return s.toggle(false)
}

func (s *Synthesizer) toggle(pause bool) error {
	s.mu.Lock()
	pb := s.current
	s.mu.Unlock()
	if pb == nil {
		return ErrNotSpeaking
	}

	obs := s.observers()
	if pause {
		if err := s.engine.Pause(); err != nil {
			return WrapError(s.engine.Name(), err)
		}
		pb.setPaused(true)
		if obs.OnPause != nil {
			obs.OnPause(pb)
		}
		return nil
	}
	if err := s.engine.Resume(); err != nil {
		return WrapError(s.engine.Name(), err)
	}
	pb.setPaused(false)
	if obs.OnResume != nil {
		obs.OnResume(pb)
	}
	return nil
}

// IsSpeaking reports whether an utterance is in progress.
func (s *Synthesizer) IsSpeaking() bool {
	return s.Current() != nil
}

// Current returns the utterance in progress, or nil.
func (s *Synthesizer) Current() *Playback {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Voices returns the engine's voices, cached for VoiceCacheTTL.
func (s *Synthesizer) Voices(ctx context.Context) ([]Voice, error) {
	s.mu.Lock()
	if s.voices != nil && time.Since(s.fetchedAt) < s.cfg.VoiceCacheTTL {
		v := s.voices
		s.mu.Unlock()
		return v, nil
	}
	s.mu.Unlock()

	voices, err := s.engine.Voices(ctx)
	if err != nil {
		return nil, WrapError(s.engine.Name(), err)
	}
	s.mu.Lock()
	s.voices = voices
	s.fetchedAt = time.Now()
	s.mu.Unlock()
	return voices, nil
}

// RefreshVoices drops the cached voice list.
func (s *Synthesizer) RefreshVoices() {
	s.mu.Lock()
	s.voices = nil
	s.mu.Unlock()
}

// ResolveVoice returns the voice Speak would use for lang. An explicit
// opts.Voice wins, then the stored preference, then the ranking.
func (s *Synthesizer) ResolveVoice(ctx context.Context, lang string, opts Options) (Voice, error) {
	voices, err := s.Voices(ctx)
	if err != nil {
		if opts.Voice != "" {
			return Voice{ID: opts.Voice}, nil
		}
		return Voice{}, err
	}

	preferred := opts.Voice
	if preferred == "" {
		p, err := s.cfg.Preferences.Get(ctx, lang)
		if err != nil {
			s.logger.Warn("failed to read voice preference", "language", lang, "error", err)
		}
		preferred = p
	}
	v, _ := SelectVoice(voices, lang, preferred, s.cfg.Scorer)
	return v, nil
}

// VoiceQuality is a voice annotated for display.
type VoiceQuality struct {
	Voice
	Score       int    `json:"qualityScore"`
	Tier        Tier   `json:"tier"`
	Selected    bool   `json:"isSelected"`
	DisplayName string `json:"displayName"`
}

// VoicesFor lists the voices for lang, best first, annotated with their
// score and whether they are the user's preference.
func (s *Synthesizer) VoicesFor(ctx context.Context, lang string) ([]VoiceQuality, error) {
	voices, err := s.Voices(ctx)
	if err != nil {
		return nil, err
	}
	preferred, _ := s.cfg.Preferences.Get(ctx, lang)
	ranked := VoicesFor(voices, lang, s.cfg.Scorer)
	out := make([]VoiceQuality, len(ranked))
	for i, v := range ranked {
		score := s.cfg.Scorer(v, lang)
		out[i] = VoiceQuality{
			Voice:       v,
			Score:       score,
			Tier:        TierOf(score),
			Selected:    v.ID == preferred,
			DisplayName: DisplayName(v),
		}
	}
	return out, nil
}

// SetPreferredVoice stores voiceID as the choice for lang. The voice must
// be offered by the engine; an empty ID clears the preference.
func (s *Synthesizer) SetPreferredVoice(ctx context.Context, lang, voiceID string) error {
	if !language.IsSupported(lang) {
		return ErrUnsupportedLanguage
	}
	if voiceID != "" {
		voices, err := s.Voices(ctx)
		if err != nil {
			return err
		}
		found := false
		for _, v := range voices {
			if v.ID == voiceID {
				found = true
				break
			}
		}
		if !found {
			return ErrUnknownVoice
		}
	}
	if err := s.cfg.Preferences.Set(ctx, lang, voiceID); err != nil {
		return err
	}
	s.logger.Info("voice preference updated", "language", lang, "voice", voiceID)
	return nil
}

// Preferences returns every stored preference.
func (s *Synthesizer) Preferences(ctx context.Context) (map[string]string, error) {
	return s.cfg.Preferences.All(ctx)
}

// Stats summarizes the engine's voices.
func (s *Synthesizer) Stats(ctx context.Context) (VoiceStats, error) {
	voices, err := s.Voices(ctx)
	if err != nil {
		return VoiceStats{}, err
	}
	return Stats(voices), nil
}
