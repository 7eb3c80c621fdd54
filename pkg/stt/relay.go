package stt

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/teslashibe/agrivoice/pkg/bridge"
	"github.com/teslashibe/agrivoice/pkg/language"
	"github.com/teslashibe/agrivoice/pkg/protocol"
)

type capsProvider interface {
	Caps() protocol.Caps
}

// Relay drives the browser's SpeechRecognition over the bridge.
type Relay struct {
	transport bridge.Transport
	logger    *slog.Logger

	mu        sync.Mutex
	listening bool
	lang      string
	cb        Callbacks
	done      chan struct{}
}

// NewRelay creates a relay recognizer and subscribes it to t.
func NewRelay(t bridge.Transport, logger *slog.Logger) *Relay {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Relay{transport: t, logger: logger.With("component", "stt.relay")}
	t.Handle(protocol.TypeSTTStarted, r.onStarted)
	t.Handle(protocol.TypeSTTResult, r.onResult)
	t.Handle(protocol.TypeSTTError, r.onError)
	t.Handle(protocol.TypeSTTEnded, r.onEnded)
	t.Handle(bridge.TypeDisconnected, r.onDisconnected)
	return r
}

// Name returns "relay".
func (r *Relay) Name() string { return "relay" }

// IsSupported reports whether a browser with speech recognition is attached.
func (r *Relay) IsSupported() bool {
	if !r.transport.Connected() {
		return false
	}
	if cp, ok := r.transport.(capsProvider); ok {
		caps := cp.Caps()
		if caps.Recognition || caps.Synthesis {
			return caps.Recognition
		}
	}
	return true
}

// IsListening reports whether a capture is in progress.
func (r *Relay) IsListening() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.listening
}

// Start asks the browser to begin recognition in lang.
func (r *Relay) Start(ctx context.Context, lang string, cb Callbacks) error {
	if !r.IsSupported() {
		return NewError(KindUnsupported, "browser speech recognition unavailable", nil)
	}
	_ = r.Stop()

	done := make(chan struct{})
	r.mu.Lock()
	r.listening = true
	r.lang = lang
	r.cb = cb
	r.done = done
	r.mu.Unlock()

	start := protocol.NewSTTStart(lang, language.Locale(lang), MaxAlternatives)
	if err := r.transport.Send(protocol.TypeSTTStart, start); err != nil {
		r.reset(done)
		if errors.Is(err, bridge.ErrNotConnected) {
			return NewError(KindUnsupported, "browser disconnected", err)
		}
		return NewError(KindNetwork, "send start", err)
	}

	go func() {
		select {
		case <-ctx.Done():
			r.mu.Lock()
			current := r.done == done
			r.mu.Unlock()
			if current {
				_ = r.Stop()
			}
		case <-done:
		}
	}()
	r.logger.Debug("recognition requested", "language", lang)
	return nil
}

// Stop ends recognition. Pending browser events are discarded.
func (r *Relay) Stop() error {
	r.mu.Lock()
	if !r.listening {
		r.mu.Unlock()
		return nil
	}
	r.clearLocked()
	r.mu.Unlock()

	if err := r.transport.Send(protocol.TypeSTTStop, nil); err != nil && !errors.Is(err, bridge.ErrNotConnected) {
		r.logger.Warn("failed to send stop", "error", err)
	}
	return nil
}

func (r *Relay) clearLocked() {
	r.listening = false
	r.cb = Callbacks{}
	if r.done != nil {
		close(r.done)
		r.done = nil
	}
}

func (r *Relay) reset(done chan struct{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.done == done {
		r.clearLocked()
	}
}

// current returns the active callbacks and language, or ok=false.
func (r *Relay) current() (Callbacks, string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cb, r.lang, r.listening
}

// finish ends the capture from the browser side and returns the callbacks
// that were active.
func (r *Relay) finish() (Callbacks, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.listening {
		return Callbacks{}, false
	}
	cb := r.cb
	r.clearLocked()
	return cb, true
}

func (r *Relay) onStarted(*protocol.Message) {
	if cb, _, ok := r.current(); ok {
		cb.start()
	}
}

func (r *Relay) onResult(msg *protocol.Message) {
	cb, lang, ok := r.current()
	if !ok {
		return
	}
	res, err := msg.GetSTTResult()
	if err != nil {
		r.logger.Warn("invalid recognition result", "error", err)
		return
	}
	alts := make([]Alternative, 0, len(res.Alternatives))
	for _, a := range res.Alternatives {
		alts = append(alts, Alternative{Text: a.Text, Confidence: a.Confidence})
	}
	final := ""
	if res.IsFinal {
		final = res.Final
	}
	cb.result(NewEvent(final, res.Interim, res.Confidence, alts, lang))
}

func (r *Relay) onError(msg *protocol.Message) {
	cb, ok := r.finish()
	if !ok {
		return
	}
	e, err := msg.GetErrorData()
	if err != nil {
		e = &protocol.ErrorData{Kind: "unknown"}
	}
	cb.fail(NewError(KindFromCode(e.Kind), e.Message, nil))
	cb.end()
}

func (r *Relay) onEnded(*protocol.Message) {
	if cb, ok := r.finish(); ok {
		cb.end()
	}
}

func (r *Relay) onDisconnected(*protocol.Message) {
	if cb, ok := r.finish(); ok {
		cb.fail(NewError(KindNetwork, "browser disconnected", nil))
		cb.end()
	}
}

var _ Recognizer = (*Relay)(nil)
