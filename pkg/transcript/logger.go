// Package transcript records voice conversations as sessions of typed
// messages with running statistics, and exports them as JSON, CSV or text.
//
// Logging is best effort. Sessions are updated in memory on the caller's
// goroutine and written to the store by a single background writer, so a
// slow or broken store never holds up a conversation. Failed writes are
// logged and swallowed; writes that find the queue full are dropped.
package transcript

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Defaults for retention and capping.
const (
	DefaultRetention       = 30 * 24 * time.Hour
	DefaultMaxPerDay       = 100
	DefaultWriteTimeout    = 3 * time.Second
	DefaultQueueSize       = 256
	DefaultUserID          = "anonymous"
	DefaultLocation        = "Unknown"
	DefaultRecognitionMode = "speech_recognition"
)

// Config configures a Logger.
type Config struct {
	Retention    time.Duration
	MaxPerDay    int
	WriteTimeout time.Duration
	QueueSize    int
	Logger       *slog.Logger
	Now          func() time.Time
}

// Option configures a Logger.
type Option func(*Config)

// WithRetention sets how long sessions are kept.
func WithRetention(d time.Duration) Option { return func(c *Config) { c.Retention = d } }

// WithMaxPerDay caps the sessions accepted per calendar day. Zero disables
// the cap.
func WithMaxPerDay(n int) Option { return func(c *Config) { c.MaxPerDay = n } }

// WithWriteTimeout bounds each store write.
func WithWriteTimeout(d time.Duration) Option { return func(c *Config) { c.WriteTimeout = d } }

// WithQueueSize sets how many pending store writes are buffered.
func WithQueueSize(n int) Option { return func(c *Config) { c.QueueSize = n } }

// WithLogger sets the diagnostic logger.
func WithLogger(l *slog.Logger) Option { return func(c *Config) { c.Logger = l } }

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option { return func(c *Config) { c.Now = now } }

// DefaultConfig returns the defaults.
func DefaultConfig() *Config {
	return &Config{
		Retention:    DefaultRetention,
		MaxPerDay:    DefaultMaxPerDay,
		WriteTimeout: DefaultWriteTimeout,
		QueueSize:    DefaultQueueSize,
		Logger:       slog.Default(),
		Now:          time.Now,
	}
}

// Logger is the transcript log. It is safe for concurrent use.
type Logger struct {
	mu        sync.Mutex
	store     Store
	sessions  map[string]*Session
	currentID string

	// sendMu guards queue against sends after Close.
	sendMu sync.RWMutex
	closed bool
	queue  chan writeOp
	done   chan struct{}

	config *Config
	logger *slog.Logger
}

// writeOp is one unit of work for the store writer. Exactly one field is
// set.
type writeOp struct {
	save    *Session
	remove  []string
	barrier chan struct{}
}

// New creates a Logger backed by store, loading existing sessions and
// running the retention sweep. A nil store keeps everything in memory.
func New(store Store, opts ...Option) *Logger {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if store == nil {
		store = NewMemoryStore()
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}

	l := &Logger{
		store:    store,
		sessions: make(map[string]*Session),
		queue:    make(chan writeOp, cfg.QueueSize),
		done:     make(chan struct{}),
		config:   cfg,
		logger:   cfg.Logger.With("component", "transcript.logger"),
	}

	ctx, cancel := l.writeContext()
	loaded, err := store.Load(ctx)
	cancel()
	if err != nil {
		l.logger.Warn("failed to load transcript history", "error", &StorageError{Op: "load", Err: err})
	}
	for _, s := range loaded {
		if s != nil && s.ID != "" {
			l.sessions[s.ID] = s
		}
	}

	go l.writer()

	if n := l.Cleanup(); n > 0 {
		l.logger.Info("expired old conversations", "removed", n)
	}
	return l
}

// StartSession opens a new session and makes it current. A session that is
// still open is ended first. When today's cap is reached no session is
// opened and ErrDailyCap is returned.
func (l *Logger) StartSession(userID string, meta Metadata) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.startLocked(userID, meta)
}

// EnsureSession returns the current session ID, first opening a session
// for userID with meta when none is open. It fails only with ErrDailyCap.
func (l *Logger) EnsureSession(userID string, meta Metadata) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.sessions[l.currentID]; ok {
		return l.currentID, nil
	}
	return l.startLocked(userID, meta)
}

func (l *Logger) startLocked(userID string, meta Metadata) (string, error) {
	if l.currentID != "" {
		l.endLocked()
	}

	now := l.config.Now()
	if l.config.MaxPerDay > 0 && l.startedOnLocked(now) >= l.config.MaxPerDay {
		l.logger.Warn("daily conversation cap reached", "max", l.config.MaxPerDay)
		return "", ErrDailyCap
	}

	if userID == "" {
		userID = DefaultUserID
	}
	if meta.Location == "" {
		meta.Location = DefaultLocation
	}

	s := &Session{
		ID:        fmt.Sprintf("session_%d_%s", now.UnixMilli(), shortID()),
		UserID:    userID,
		StartTime: now,
		Metadata:  meta,
		Messages:  []Message{},
		Stats:     Stats{LanguagesUsed: []string{}},
	}
	l.sessions[s.ID] = s
	l.currentID = s.ID
	l.persistLocked(s)

	l.logger.Info("started conversation session", "session_id", s.ID, "user_id", userID)
	return s.ID, nil
}

// EndSession closes the current session, finalizes its statistics and
// returns a copy. It returns nil when no session is open.
func (l *Logger) EndSession() *Session {
	l.mu.Lock()
	defer l.mu.Unlock()
	s := l.endLocked()
	if s == nil {
		return nil
	}
	return s.clone()
}

func (l *Logger) endLocked() *Session {
	s, ok := l.sessions[l.currentID]
	l.currentID = ""
	if !ok {
		return nil
	}

	end := l.config.Now()
	s.EndTime = &end
	s.Stats.ConversationDuration = end.Sub(s.StartTime).Milliseconds()
	if s.Stats.ConfidenceCount > 0 {
		s.Stats.AverageConfidence = s.Stats.ConfidenceSum / float64(s.Stats.ConfidenceCount)
	}
	l.persistLocked(s)

	l.logger.Info("ended conversation session", "session_id", s.ID, "duration_ms", s.Stats.ConversationDuration)
	return s
}

// LogUserInput records a user utterance, opening a session if needed.
// It returns the message ID, or "" when nothing was recorded.
func (l *Logger) LogUserInput(in UserInput) string {
	if in.Language == "" {
		in.Language = UnknownLanguage
	}
	if in.Method == "" {
		in.Method = DefaultRecognitionMode
	}
	return l.append(TypeUserInput, true, func(m *Message) { m.UserInput = &in })
}

// LogAIResponse records a gateway answer, opening a session if needed.
func (l *Logger) LogAIResponse(r AIResponse) string {
	if r.Language == "" {
		r.Language = UnknownLanguage
	}
	return l.append(TypeAIResponse, true, func(m *Message) { m.AIResponse = &r })
}

// LogTTSPlayback records a playback. It is dropped when no session is open.
func (l *Logger) LogTTSPlayback(p TTSPlayback) string {
	if p.Language == "" {
		p.Language = UnknownLanguage
	}
	if p.Voice == "" {
		p.Voice = "default"
	}
	if p.Rate == 0 {
		p.Rate = 1
	}
	if p.Pitch == 0 {
		p.Pitch = 1
	}
	if p.Volume == 0 {
		p.Volume = 1
	}
	return l.append(TypeTTSPlayback, false, func(m *Message) { m.TTSPlayback = &p })
}

// LogError records a pipeline failure, opening a session if needed.
func (l *Logger) LogError(e ErrorEntry) string {
	if e.Severity == "" {
		e.Severity = "error"
	}
	if e.Component == "" {
		e.Component = "unknown"
	}
	if e.Context == "" {
		e.Context = "unknown"
	}
	l.logger.Debug("logged pipeline error", "error", e.Message, "component", e.Component)
	return l.append(TypeError, true, func(m *Message) { m.Error = &e })
}

func (l *Logger) append(t MessageType, autoStart bool, fill func(*Message)) string {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.currentID == "" {
		if !autoStart {
			return ""
		}
		if _, err := l.startLocked("", Metadata{}); err != nil {
			l.logger.Warn("dropping message, no session available", "type", t, "error", err)
			return ""
		}
	}
	s, ok := l.sessions[l.currentID]
	if !ok {
		l.logger.Warn("no active session for message", "type", t)
		return ""
	}

	msg := Message{
		ID:        fmt.Sprintf("msg_%d_%s", l.config.Now().UnixMilli(), shortID()),
		SessionID: s.ID,
		Type:      t,
		Timestamp: l.config.Now(),
	}
	fill(&msg)
	if n := len(s.Messages); n > 0 && msg.Timestamp.Before(s.Messages[n-1].Timestamp) {
		msg.Timestamp = s.Messages[n-1].Timestamp
	}
	s.Messages = append(s.Messages, msg)

	s.Stats.TotalMessages++
	switch t {
	case TypeUserInput:
		s.Stats.TotalUserMessages++
		s.Stats.ConfidenceSum += msg.UserInput.Confidence
		s.Stats.ConfidenceCount++
		s.Stats.AverageConfidence = s.Stats.ConfidenceSum / float64(s.Stats.ConfidenceCount)
	case TypeAIResponse:
		s.Stats.TotalBotMessages++
	}
	if lang := msg.Language(); lang != "" && !s.HasLanguage(lang) {
		s.Stats.LanguagesUsed = append(s.Stats.LanguagesUsed, lang)
	}

	l.persistLocked(s)
	return msg.ID
}

// persistLocked queues a snapshot of s for the writer.
func (l *Logger) persistLocked(s *Session) {
	l.enqueue(writeOp{save: s.clone()}, "session_id", s.ID)
}

// enqueue hands op to the writer without blocking. It reports whether op
// was accepted.
func (l *Logger) enqueue(op writeOp, attrs ...any) bool {
	l.sendMu.RLock()
	defer l.sendMu.RUnlock()
	if l.closed {
		return false
	}
	select {
	case l.queue <- op:
		return true
	default:
		l.logger.Warn("transcript write queue full, dropping write", attrs...)
		return false
	}
}

// writer applies queued operations in order until the queue is closed.
func (l *Logger) writer() {
	defer close(l.done)
	for op := range l.queue {
		switch {
		case op.barrier != nil:
			close(op.barrier)
		case op.save != nil:
			if err := l.guard(func(ctx context.Context) error { return l.store.Save(ctx, op.save) }); err != nil {
				l.logger.Warn("failed to persist transcript", "session_id", op.save.ID, "error", &StorageError{Op: "save", Err: err})
			}
		default:
			if err := l.guard(func(ctx context.Context) error { return l.store.Delete(ctx, op.remove...) }); err != nil {
				l.logger.Warn("failed to delete transcripts", "count", len(op.remove), "error", &StorageError{Op: "delete", Err: err})
			}
		}
	}
}

// guard runs one store call under the write timeout and converts a panic
// into an error.
func (l *Logger) guard(fn func(context.Context) error) (err error) {
	ctx, cancel := l.writeContext()
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("store panic: %v", r)
		}
	}()
	return fn(ctx)
}

// Sync waits until every write queued before the call has reached the
// store, or ctx is done.
func (l *Logger) Sync(ctx context.Context) error {
	barrier := make(chan struct{})
	l.sendMu.RLock()
	if l.closed {
		l.sendMu.RUnlock()
		return nil
	}
	select {
	case l.queue <- writeOp{barrier: barrier}:
	case <-ctx.Done():
		l.sendMu.RUnlock()
		return ctx.Err()
	}
	l.sendMu.RUnlock()

	select {
	case <-barrier:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Logger) writeContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), l.config.WriteTimeout)
}

func (l *Logger) startedOnLocked(now time.Time) int {
	y, m, d := now.Date()
	n := 0
	for _, s := range l.sessions {
		sy, sm, sd := s.StartTime.In(now.Location()).Date()
		if sy == y && sm == m && sd == d {
			n++
		}
	}
	return n
}

// CurrentSession returns a copy of the open session, or nil.
func (l *Logger) CurrentSession() *Session {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.sessions[l.currentID]
	if !ok {
		return nil
	}
	return s.clone()
}

// Conversations returns copies of every session, oldest first.
func (l *Logger) Conversations() []*Session {
	return l.Filter(Filter{})
}

// Filter selects sessions. Zero-valued fields match everything.
type Filter struct {
	From     time.Time `json:"from,omitempty"`
	To       time.Time `json:"to,omitempty"`
	Language string    `json:"language,omitempty"`
	UserID   string    `json:"userId,omitempty"`
}

func (f Filter) match(s *Session) bool {
	if !f.From.IsZero() && s.StartTime.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && s.StartTime.After(f.To) {
		return false
	}
	if f.Language != "" && !s.HasLanguage(f.Language) {
		return false
	}
	if f.UserID != "" && s.UserID != f.UserID {
		return false
	}
	return true
}

// Filter returns copies of the sessions matching f, oldest first.
func (l *Logger) Filter(f Filter) []*Session {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]*Session, 0, len(l.sessions))
	for _, s := range l.sessions {
		if f.match(s) {
			out = append(out, s.clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartTime.Equal(out[j].StartTime) {
			return out[i].ID < out[j].ID
		}
		return out[i].StartTime.Before(out[j].StartTime)
	})
	return out
}

// ByDateRange returns sessions started within [from, to].
func (l *Logger) ByDateRange(from, to time.Time) []*Session {
	return l.Filter(Filter{From: from, To: to})
}

// ByLanguage returns sessions that used lang.
func (l *Logger) ByLanguage(lang string) []*Session {
	return l.Filter(Filter{Language: lang})
}

// Cleanup removes sessions older than the retention window and returns how
// many were dropped. The current session is never removed.
func (l *Logger) Cleanup() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.config.Now().Add(-l.config.Retention)
	var expired []string
	for id, s := range l.sessions {
		if id != l.currentID && s.StartTime.Before(cutoff) {
			expired = append(expired, id)
		}
	}
	if len(expired) == 0 {
		return 0
	}
	for _, id := range expired {
		delete(l.sessions, id)
	}
	l.enqueue(writeOp{remove: expired}, "op", "cleanup", "count", len(expired))
	return len(expired)
}

// Clear removes every session, including the current one.
func (l *Logger) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()

	ids := make([]string, 0, len(l.sessions))
	for id := range l.sessions {
		ids = append(ids, id)
	}
	l.sessions = make(map[string]*Session)
	l.currentID = ""

	if len(ids) == 0 {
		return
	}
	l.enqueue(writeOp{remove: ids}, "op", "clear", "count", len(ids))
}

// Close ends the current session, drains pending writes and closes the
// store.
func (l *Logger) Close() error {
	l.EndSession()

	l.sendMu.Lock()
	if !l.closed {
		l.closed = true
		close(l.queue)
	}
	l.sendMu.Unlock()

	<-l.done
	return l.store.Close()
}

func shortID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
}
