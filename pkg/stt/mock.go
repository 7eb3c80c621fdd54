package stt

import (
	"context"
	"sync"
)

// Mock is a scriptable recognizer for tests and demos.
type Mock struct {
	mu        sync.Mutex
	supported bool
	listening bool
	startErr  error
	cb        Callbacks
	langs     []string
	script    []Event
}

// NewMock returns a supported mock. Events in script are emitted, in order,
// after each Start.
func NewMock(script ...Event) *Mock {
	return &Mock{supported: true, script: script}
}

// Name returns "mock".
func (m *Mock) Name() string { return "mock" }

// IsSupported reports the value set by SetSupported (default true).
func (m *Mock) IsSupported() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.supported
}

// SetSupported toggles IsSupported.
func (m *Mock) SetSupported(v bool) {
	m.mu.Lock()
	m.supported = v
	m.mu.Unlock()
}

// SetStartError makes the next Start calls fail with err.
func (m *Mock) SetStartError(err error) {
	m.mu.Lock()
	m.startErr = err
	m.mu.Unlock()
}

// IsListening reports whether Start was called without a matching end.
func (m *Mock) IsListening() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listening
}

// Start records lang and replays the script asynchronously.
func (m *Mock) Start(ctx context.Context, lang string, cb Callbacks) error {
	m.mu.Lock()
	if !m.supported {
		m.mu.Unlock()
		return NewError(KindUnsupported, "mock recognizer disabled", nil)
	}
	if m.startErr != nil {
		err := m.startErr
		m.mu.Unlock()
		return err
	}
	m.listening = true
	m.cb = cb
	m.langs = append(m.langs, lang)
	script := m.script
	m.mu.Unlock()

	cb.start()
	if len(script) > 0 {
		go func() {
			for _, ev := range script {
				if ctx.Err() != nil {
					return
				}
				m.Emit(ev)
			}
		}()
	}
	return nil
}

// Stop ends the capture without firing OnEnd.
func (m *Mock) Stop() error {
	m.mu.Lock()
	m.listening = false
	m.cb = Callbacks{}
	m.mu.Unlock()
	return nil
}

func (m *Mock) active() (Callbacks, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cb, m.listening
}

// Emit delivers ev to the active capture.
func (m *Mock) Emit(ev Event) {
	if cb, ok := m.active(); ok {
		cb.result(ev)
	}
}

// EmitText delivers a final transcript in lang.
func (m *Mock) EmitText(text, lang string) {
	m.Emit(NewEvent(text, "", 0.9, nil, lang))
}

// Fail delivers err and ends the capture.
func (m *Mock) Fail(err error) {
	m.mu.Lock()
	cb, ok := m.cb, m.listening
	m.listening = false
	m.cb = Callbacks{}
	m.mu.Unlock()
	if ok {
		cb.fail(err)
		cb.end()
	}
}

// End ends the capture as if the engine stopped on its own.
func (m *Mock) End() {
	m.mu.Lock()
	cb, ok := m.cb, m.listening
	m.listening = false
	m.cb = Callbacks{}
	m.mu.Unlock()
	if ok {
		cb.end()
	}
}

// Starts returns how many captures began.
func (m *Mock) Starts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.langs)
}

// LastLanguage returns the language of the most recent Start.
func (m *Mock) LastLanguage() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.langs) == 0 {
		return ""
	}
	return m.langs[len(m.langs)-1]
}

var _ Recognizer = (*Mock)(nil)
