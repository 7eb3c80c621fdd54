package tts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/teslashibe/agrivoice/pkg/bridge"
	"github.com/teslashibe/agrivoice/pkg/protocol"
)

// tracker follows the one browser utterance in flight, matched by ID.
type tracker struct {
	mu      sync.Mutex
	id      string
	started func()
	done    chan error
}

func (t *tracker) begin(id string, started func()) chan error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done != nil {
		t.done <- ErrInterrupted
	}
	t.id = id
	t.started = started
	t.done = make(chan error, 1)
	return t.done
}

// finish resolves the utterance id; an empty id matches any.
func (t *tracker) finish(id string, err error) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done == nil || (id != "" && id != t.id) {
		return false
	}
	t.done <- err
	t.done = nil
	t.started = nil
	return true
}

func (t *tracker) start(id string) {
	t.mu.Lock()
	fn := t.started
	match := t.done != nil && id == t.id
	t.mu.Unlock()
	if match && fn != nil {
		fn()
	}
}

func (t *tracker) active() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.done != nil
}

// wait blocks until the utterance resolves or ctx ends.
func (t *tracker) wait(ctx context.Context, id string, done chan error) error {
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		t.finish(id, ErrInterrupted)
		return ErrInterrupted
	}
}

func (t *tracker) subscribe(tr bridge.Transport) {
	tr.Handle(protocol.TypeTTSStarted, func(msg *protocol.Message) {
		if ev, err := msg.GetTTSEvent(); err == nil {
			t.start(ev.ID)
		}
	})
	tr.Handle(protocol.TypeTTSEnded, func(msg *protocol.Message) {
		if ev, err := msg.GetTTSEvent(); err == nil {
			t.finish(ev.ID, nil)
		}
	})
	tr.Handle(protocol.TypeTTSError, func(msg *protocol.Message) {
		e, err := msg.GetErrorData()
		if err != nil {
			return
		}
		t.finish(e.ID, browserError(e))
	})
	tr.Handle(bridge.TypeDisconnected, func(*protocol.Message) {
		t.finish("", bridge.ErrNotConnected)
	})
}

func browserError(e *protocol.ErrorData) error {
	switch e.Kind {
	case "interrupted", "canceled":
		return ErrInterrupted
	}
	if e.Message != "" {
		return fmt.Errorf("browser synthesis error %q: %s", e.Kind, e.Message)
	}
	return fmt.Errorf("browser synthesis error %q", e.Kind)
}

type capsProvider interface {
	Caps() protocol.Caps
}

// Relay speaks through the browser's speechSynthesis over the bridge.
type Relay struct {
	transport bridge.Transport
	tracker   tracker
	logger    *slog.Logger

	// VoicesTimeout bounds a voice list request.
	VoicesTimeout time.Duration

	mu      sync.Mutex
	voices  []Voice
	waiters []chan []Voice
}

// NewRelay creates a browser-backed engine on t.
func NewRelay(t bridge.Transport, logger *slog.Logger) *Relay {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Relay{
		transport:     t,
		logger:        logger.With("component", "tts.relay"),
		VoicesTimeout: 2 * time.Second,
	}
	r.tracker.subscribe(t)
	t.Handle(protocol.TypeTTSVoices, r.onVoices)
	return r
}

// Name returns "relay".
func (r *Relay) Name() string { return "relay" }

// IsSupported reports whether a browser with speech synthesis is attached.
func (r *Relay) IsSupported() bool {
	if !r.transport.Connected() {
		return false
	}
	if cp, ok := r.transport.(capsProvider); ok {
		caps := cp.Caps()
		if caps.Recognition || caps.Synthesis {
			return caps.Synthesis
		}
	}
	return true
}

// Speak sends u to the browser and waits for it to finish.
func (r *Relay) Speak(ctx context.Context, u Utterance, started func()) error {
	done := r.tracker.begin(u.ID, started)
	err := r.transport.Send(protocol.TypeTTSSpeak, protocol.TTSSpeak{
		ID:       u.ID,
		Text:     u.Text,
		Language: u.Language,
		Locale:   u.Locale,
		Voice:    u.Voice.ID,
		Rate:     u.Options.Rate,
		Pitch:    u.Options.Pitch,
		Volume:   u.Options.Volume,
	})
	if err != nil {
		r.tracker.finish(u.ID, err)
		return WrapError(r.Name(), err)
	}
	if err := r.tracker.wait(ctx, u.ID, done); err != nil {
		if errors.Is(err, ErrInterrupted) {
			r.sendQuiet(protocol.TypeTTSStop)
		}
		return err
	}
	return nil
}

// Stop cancels the browser utterance.
func (r *Relay) Stop() error {
	if r.tracker.finish("", ErrInterrupted) {
		r.sendQuiet(protocol.TypeTTSStop)
	}
	return nil
}

// Pause suspends the browser utterance.
func (r *Relay) Pause() error {
	if !r.tracker.active() {
		return ErrNotSpeaking
	}
	return r.transport.Send(protocol.TypeTTSPause, nil)
}

// Resume continues the browser utterance.
func (r *Relay) Resume() error {
	if !r.tracker.active() {
		return ErrNotSpeaking
	}
	return r.transport.Send(protocol.TypeTTSResume, nil)
}

func (r *Relay) sendQuiet(t protocol.MessageType) {
	if err := r.transport.Send(t, nil); err != nil && !errors.Is(err, bridge.ErrNotConnected) {
		r.logger.Debug("send failed", "type", t, "error", err)
	}
}

// Voices asks the browser for its voice list. The last list the browser
// announced is returned when it is already known.
func (r *Relay) Voices(ctx context.Context) ([]Voice, error) {
	r.mu.Lock()
	if len(r.voices) > 0 {
		v := r.voices
		r.mu.Unlock()
		return v, nil
	}
	ch := make(chan []Voice, 1)
	r.waiters = append(r.waiters, ch)
	r.mu.Unlock()

	if err := r.transport.Send(protocol.TypeTTSVoicesRequest, nil); err != nil {
		return nil, WrapError(r.Name(), err)
	}

	timer := time.NewTimer(r.VoicesTimeout)
	defer timer.Stop()
	select {
	case v := <-ch:
		return v, nil
	case <-timer.C:
		return nil, WrapError(r.Name(), context.DeadlineExceeded)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (r *Relay) onVoices(msg *protocol.Message) {
	data, err := msg.GetVoices()
	if err != nil {
		r.logger.Warn("invalid voice list", "error", err)
		return
	}
	voices := make([]Voice, 0, len(data.Voices))
	for _, v := range data.Voices {
		id := v.VoiceURI
		if id == "" {
			id = v.Name
		}
		voices = append(voices, Voice{
			ID:           id,
			Name:         v.Name,
			Locale:       v.Lang,
			LocalService: v.LocalService,
			Default:      v.Default,
		})
	}

	r.mu.Lock()
	r.voices = voices
	waiters := r.waiters
	r.waiters = nil
	r.mu.Unlock()

	for _, ch := range waiters {
		ch <- voices
	}
	r.logger.Debug("browser voices updated", "count", len(voices))
}

var _ Engine = (*Relay)(nil)
