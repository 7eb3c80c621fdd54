package audioio

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// ErrInterrupted is returned by Sink.Play when playback is stopped early.
var ErrInterrupted = errors.New("audioio: playback interrupted")

// MockSource replays scripted chunks. Chunks passed to NewMockSource are
// delivered on every Start; Push injects more while running.
type MockSource struct {
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	running bool
	closed  bool
	ready   bool
	ch      chan AudioChunk
	script  []AudioChunk

	chunksRead atomic.Int64
	dropped    atomic.Int64
	starts     atomic.Int64
}

// NewMockSource creates a ready mock source.
func NewMockSource(cfg Config, logger *slog.Logger, script ...AudioChunk) *MockSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &MockSource{cfg: cfg, logger: logger, ready: true, script: script}
}

// Start queues the script and begins accepting pushes.
func (m *MockSource) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return io.ErrClosedPipe
	}
	if m.running {
		return nil
	}
	m.running = true
	m.starts.Add(1)
	m.ch = make(chan AudioChunk, len(m.script)+256)
	for _, c := range m.script {
		m.ch <- c
	}
	m.logger.Debug("mock audio source started", "scripted", len(m.script))
	return nil
}

// Push delivers a chunk if the source is running.
func (m *MockSource) Push(chunk AudioChunk) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		m.dropped.Add(1)
		return
	}
	select {
	case m.ch <- chunk:
	default:
		m.dropped.Add(1)
	}
}

// Stop halts delivery.
func (m *MockSource) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return nil
	}
	m.running = false
	close(m.ch)
	return nil
}

// Read reads the next audio chunk.
func (m *MockSource) Read(ctx context.Context) (AudioChunk, error) {
	m.mu.Lock()
	ch := m.ch
	m.mu.Unlock()
	if ch == nil {
		return AudioChunk{}, io.EOF
	}
	select {
	case <-ctx.Done():
		return AudioChunk{}, ctx.Err()
	case chunk, ok := <-ch:
		if !ok {
			return AudioChunk{}, io.EOF
		}
		m.chunksRead.Add(1)
		return chunk, nil
	}
}

// Ready reports whether the source can capture.
func (m *MockSource) Ready() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ready && !m.closed
}

// SetReady toggles Ready.
func (m *MockSource) SetReady(v bool) {
	m.mu.Lock()
	m.ready = v
	m.mu.Unlock()
}

// Starts returns how many times Start began a capture.
func (m *MockSource) Starts() int { return int(m.starts.Load()) }

// Config returns the audio configuration.
func (m *MockSource) Config() Config { return m.cfg }

// Name returns "mock".
func (m *MockSource) Name() string { return "mock" }

// Close releases resources.
func (m *MockSource) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return m.Stop()
}

// Stats returns source statistics.
func (m *MockSource) Stats() SourceStats {
	m.mu.Lock()
	running := m.running
	m.mu.Unlock()
	return SourceStats{
		ChunksRead: m.chunksRead.Load(),
		Dropped:    m.dropped.Load(),
		Running:    running,
		Backend:    "mock",
	}
}

var _ Source = (*MockSource)(nil)

// Tone returns a sine chunk of duration d at 440 Hz.
func Tone(cfg Config, d time.Duration, amplitude float64) AudioChunk {
	n := int(float64(cfg.SampleRate) * d.Seconds())
	samples := make([]int16, n)
	for i := range samples {
		samples[i] = int16(amplitude * 32767 * math.Sin(2*math.Pi*440*float64(i)/float64(cfg.SampleRate)))
	}
	return AudioChunk{Samples: samples, SampleRate: cfg.SampleRate, Channels: 1}
}

// Silence returns a silent chunk of duration d.
func Silence(cfg Config, d time.Duration) AudioChunk {
	n := int(float64(cfg.SampleRate) * d.Seconds())
	return AudioChunk{Samples: make([]int16, n), SampleRate: cfg.SampleRate, Channels: 1}
}

// MockSink records clips. Each Play lasts PlayDuration unless stopped.
type MockSink struct {
	PlayDuration time.Duration

	mu      sync.Mutex
	clips   []Clip
	err     error
	stopCh  chan struct{}
	paused  bool
	playing bool
}

// NewMockSink creates a sink that finishes every clip after d.
func NewMockSink(d time.Duration) *MockSink {
	return &MockSink{PlayDuration: d}
}

// SetError makes Play fail with err.
func (m *MockSink) SetError(err error) {
	m.mu.Lock()
	m.err = err
	m.mu.Unlock()
}

// Play implements Sink.
func (m *MockSink) Play(ctx context.Context, clip Clip) error {
	m.mu.Lock()
	m.clips = append(m.clips, clip)
	if m.err != nil {
		err := m.err
		m.mu.Unlock()
		return err
	}
	stop := make(chan struct{})
	m.stopCh = stop
	m.playing = true
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.playing = false
		m.mu.Unlock()
	}()

	timer := time.NewTimer(m.PlayDuration)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-stop:
		return ErrInterrupted
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop implements Sink.
func (m *MockSink) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopCh != nil {
		close(m.stopCh)
		m.stopCh = nil
	}
	return nil
}

// Pause implements Sink.
func (m *MockSink) Pause() error {
	m.mu.Lock()
	m.paused = true
	m.mu.Unlock()
	return nil
}

// Resume implements Sink.
func (m *MockSink) Resume() error {
	m.mu.Lock()
	m.paused = false
	m.mu.Unlock()
	return nil
}

// Paused reports whether Pause was called last.
func (m *MockSink) Paused() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.paused
}

// Clips returns the clips played so far.
func (m *MockSink) Clips() []Clip {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Clip(nil), m.clips...)
}

// Name returns "mock".
func (m *MockSink) Name() string { return "mock" }

var _ Sink = (*MockSink)(nil)
