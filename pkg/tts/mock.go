package tts

import (
	"context"
	"sync"
	"time"
)

// Mock implements Engine for testing.
// Speak plays for PlayDuration unless SpeakFunc is set.
type Mock struct {
	// SpeakFunc, when set, replaces the default timed playback.
	SpeakFunc func(ctx context.Context, u Utterance, started func()) error

	// VoiceList is returned by Voices.
	VoiceList []Voice

	// VoicesErr, when set, is returned by Voices.
	VoicesErr error

	PlayDuration time.Duration

	mu          sync.Mutex
	unsupported bool
	stopCh      chan struct{}
	paused      bool
	calls       []MockCall
}

// MockCall records a method invocation for verification.
type MockCall struct {
	Method   string
	Text     string
	Language string
	Voice    string
	Options  Options
	Time     time.Time
}

// NewMock creates a mock engine with a few Indian voices and a short
// playback time.
func NewMock() *Mock {
	return &Mock{
		PlayDuration: 10 * time.Millisecond,
		VoiceList: []Voice{
			{ID: "hi-local", Name: "Lekha", Locale: "hi-IN", LocalService: true},
			{ID: "hi-neural", Name: "Google हिन्दी Neural Female", Locale: "hi-IN"},
			{ID: "en-in", Name: "Google English India", Locale: "en-IN"},
			{ID: "en-us", Name: "Samantha", Locale: "en-US", LocalService: true},
			{ID: "ta-in", Name: "Google Tamil", Locale: "ta-IN"},
		},
	}
}

// Name returns "mock".
func (m *Mock) Name() string { return "mock" }

// IsSupported is true unless SetSupported(false) was called.
func (m *Mock) IsSupported() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.unsupported
}

// SetSupported toggles IsSupported.
func (m *Mock) SetSupported(v bool) {
	m.mu.Lock()
	m.unsupported = !v
	m.mu.Unlock()
}

// Voices returns VoiceList.
func (m *Mock) Voices(context.Context) ([]Voice, error) {
	m.recordCall(MockCall{Method: "Voices"})
	if m.VoicesErr != nil {
		return nil, m.VoicesErr
	}
	return m.VoiceList, nil
}

// Speak records the call and plays u.
func (m *Mock) Speak(ctx context.Context, u Utterance, started func()) error {
	m.recordCall(MockCall{Method: "Speak", Text: u.Text, Language: u.Language, Voice: u.Voice.ID, Options: u.Options})
	if m.SpeakFunc != nil {
		return m.SpeakFunc(ctx, u, started)
	}

	stop := make(chan struct{})
	m.mu.Lock()
	m.stopCh = stop
	m.mu.Unlock()

	started()
	timer := time.NewTimer(m.PlayDuration)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-stop:
		return ErrInterrupted
	case <-ctx.Done():
		return ErrInterrupted
	}
}

// Stop interrupts the current Speak.
func (m *Mock) Stop() error {
	m.recordCall(MockCall{Method: "Stop"})
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopCh != nil {
		close(m.stopCh)
		m.stopCh = nil
	}
	return nil
}

// Pause records the call.
func (m *Mock) Pause() error {
	m.recordCall(MockCall{Method: "Pause"})
	m.mu.Lock()
	m.paused = true
	m.mu.Unlock()
	return nil
}

// Resume records the call.
func (m *Mock) Resume() error {
	m.recordCall(MockCall{Method: "Resume"})
	m.mu.Lock()
	m.paused = false
	m.mu.Unlock()
	return nil
}

// Paused reports whether Pause was called last.
func (m *Mock) Paused() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.paused
}

// recordCall adds a call to the tracking list.
func (m *Mock) recordCall(c MockCall) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c.Time = time.Now()
	m.calls = append(m.calls, c)
}

// Calls returns all recorded method calls.
func (m *Mock) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]MockCall, len(m.calls))
	copy(result, m.calls)
	return result
}

// CallCount returns the number of times a method was called.
func (m *Mock) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, c := range m.calls {
		if c.Method == method {
			count++
		}
	}
	return count
}

// LastSpeak returns the most recent Speak call, or nil if none.
func (m *Mock) LastSpeak() *MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.calls) - 1; i >= 0; i-- {
		if m.calls[i].Method == "Speak" {
			c := m.calls[i]
			return &c
		}
	}
	return nil
}

// Reset clears all recorded calls.
func (m *Mock) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

// WithError returns a mock whose Speak always fails with err.
func WithError(err error) *Mock {
	m := NewMock()
	m.SpeakFunc = func(ctx context.Context, u Utterance, started func()) error {
		return err
	}
	return m
}

// WithLatency delays the start of every utterance by delay.
func WithLatency(m *Mock, delay time.Duration) *Mock {
	original := m.SpeakFunc
	m.SpeakFunc = func(ctx context.Context, u Utterance, started func()) error {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ErrInterrupted
		}
		if original != nil {
			return original(ctx, u, started)
		}
		started()
		return nil
	}
	return m
}

var _ Engine = (*Mock)(nil)
