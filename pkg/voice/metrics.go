package voice

import (
	"sync"
	"time"
)

// historySize caps the turns kept for averaging.
const historySize = 100

// Metrics tracks latency at each stage of one turn.
// Durations are measured from the moment the turn began.
type Metrics struct {
	Turn     uint64 `json:"turn"`
	Source   string `json:"source"` // "voice" or "text"
	Language string `json:"language,omitempty"`
	Provider string `json:"provider,omitempty"`
	Fallback bool   `json:"fallback,omitempty"`

	StartTime      time.Time `json:"start_time"`
	TranscriptTime time.Time `json:"transcript_time,omitempty"`
	ResponseTime   time.Time `json:"response_time,omitempty"`
	SpeechTime     time.Time `json:"speech_time,omitempty"`
	DoneTime       time.Time `json:"done_time,omitempty"`

	ListenLatency time.Duration `json:"listen_latency"` // start → final transcript
	ReasonLatency time.Duration `json:"reason_latency"` // transcript → answer
	SpeakLatency  time.Duration `json:"speak_latency"`  // answer → playback end
	TotalLatency  time.Duration `json:"total_latency"`
}

// MetricsCollector collects latency metrics for the current turn.
// It is goroutine-safe.
type MetricsCollector struct {
	mu      sync.Mutex
	current Metrics
	history []Metrics

	onUpdate func(Metrics)
}

// NewMetricsCollector creates a new metrics collector.
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		history: make([]Metrics, 0, historySize),
	}
}

// OnUpdate sets a callback that fires whenever metrics are updated.
func (m *MetricsCollector) OnUpdate(fn func(Metrics)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onUpdate = fn
}

// Begin resets the collector for a new turn.
func (m *MetricsCollector) Begin(turn uint64, source string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = Metrics{Turn: turn, Source: source, StartTime: time.Now()}
}

// MarkTranscript records the final transcript of turn.
func (m *MetricsCollector) MarkTranscript(turn uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current.Turn != turn {
		return
	}
	m.current.TranscriptTime = time.Now()
	m.current.ListenLatency = m.current.TranscriptTime.Sub(m.current.StartTime)
	m.notify()
}

// MarkResponse records the gateway answer of turn.
func (m *MetricsCollector) MarkResponse(turn uint64, lang, provider string, fallback bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current.Turn != turn {
		return
	}
	m.current.ResponseTime = time.Now()
	m.current.Language = lang
	m.current.Provider = provider
	m.current.Fallback = fallback
	from := m.current.TranscriptTime
	if from.IsZero() {
		from = m.current.StartTime
	}
	m.current.ReasonLatency = m.current.ResponseTime.Sub(from)
	m.notify()
}

// MarkSpeech records the end of playback for turn.
func (m *MetricsCollector) MarkSpeech(turn uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current.Turn != turn || m.current.ResponseTime.IsZero() {
		return
	}
	m.current.SpeechTime = time.Now()
	m.current.SpeakLatency = m.current.SpeechTime.Sub(m.current.ResponseTime)
}

// Done archives turn. Turns that were replaced are ignored.
func (m *MetricsCollector) Done(turn uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current.Turn != turn || !m.current.DoneTime.IsZero() {
		return
	}
	m.current.DoneTime = time.Now()
	m.current.TotalLatency = m.current.DoneTime.Sub(m.current.StartTime)
	m.history = append(m.history, m.current)
	if len(m.history) > historySize {
		m.history = m.history[1:]
	}
	m.notify()
}

// Current returns the current metrics snapshot.
func (m *MetricsCollector) Current() Metrics {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// History returns a copy of the archived turns, oldest first.
func (m *MetricsCollector) History() []Metrics {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Metrics, len(m.history))
	copy(out, m.history)
	return out
}

// Average returns average latencies over recent turns.
func (m *MetricsCollector) Average() Metrics {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.history) == 0 {
		return Metrics{}
	}

	var avg Metrics
	for _, h := range m.history {
		avg.ListenLatency += h.ListenLatency
		avg.ReasonLatency += h.ReasonLatency
		avg.SpeakLatency += h.SpeakLatency
		avg.TotalLatency += h.TotalLatency
	}

	n := time.Duration(len(m.history))
	avg.ListenLatency /= n
	avg.ReasonLatency /= n
	avg.SpeakLatency /= n
	avg.TotalLatency /= n

	return avg
}

// notify calls the update callback if set.
// Must be called with mutex held.
func (m *MetricsCollector) notify() {
	if m.onUpdate != nil {
		metrics := m.current
		go m.onUpdate(metrics)
	}
}

// FormatLatency returns a one-line summary of the stage latencies.
func (m *Metrics) FormatLatency() string {
	return formatDuration(m.ListenLatency) + " LISTEN | " +
		formatDuration(m.ReasonLatency) + " REASON | " +
		formatDuration(m.SpeakLatency) + " SPEAK | " +
		formatDuration(m.TotalLatency) + " TOTAL"
}

func formatDuration(d time.Duration) string {
	if d == 0 {
		return "---ms"
	}
	return d.Round(time.Millisecond).String()
}
