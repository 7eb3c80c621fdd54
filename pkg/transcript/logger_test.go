package transcript_test

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/agrivoice/internal/log"
	"github.com/teslashibe/agrivoice/pkg/transcript"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock {
	return &clock{now: time.Date(2024, 1, 20, 9, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newLogger(t *testing.T, store transcript.Store, c *clock, opts ...transcript.Option) *transcript.Logger {
	t.Helper()
	opts = append([]transcript.Option{
		transcript.WithLogger(log.Discard()),
		transcript.WithClock(c.Now),
	}, opts...)
	return transcript.New(store, opts...)
}

type failingStore struct {
	transcript.MemoryStore
	panics bool
	saves  int
}

func (f *failingStore) Save(context.Context, *transcript.Session) error {
	f.saves++
	if f.panics {
		panic("disk on fire")
	}
	return errors.New("write failed")
}

func (f *failingStore) Load(context.Context) ([]*transcript.Session, error) {
	return nil, errors.New("read failed")
}

func TestSessionStats(t *testing.T) {
	c := newClock()
	l := newLogger(t, nil, c)

	id, err := l.StartSession("farmer-1", transcript.Metadata{Locale: "hi-IN"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(id, "session_"))

	confidences := []float64{0.9, 0.6, 0.75}
	for _, conf := range confidences {
		c.Advance(time.Second)
		require.NotEmpty(t, l.LogUserInput(transcript.UserInput{Transcript: "बारिश", Confidence: conf, Language: "hi"}))
		c.Advance(time.Second)
		require.NotEmpty(t, l.LogAIResponse(transcript.AIResponse{Response: "ok", Language: "en"}))
	}
	l.LogError(transcript.ErrorEntry{Message: "boom", Context: "stt"})

	c.Advance(10 * time.Second)
	s := l.EndSession()
	require.NotNil(t, s)

	assert.Equal(t, 7, s.Stats.TotalMessages)
	assert.Equal(t, 3, s.Stats.TotalUserMessages)
	assert.Equal(t, 3, s.Stats.TotalBotMessages)
	assert.InDelta(t, 0.75, s.Stats.AverageConfidence, 1e-9)
	assert.Equal(t, []string{"hi", "en"}, s.Stats.LanguagesUsed)
	assert.Equal(t, int64(16000), s.Stats.ConversationDuration)
	assert.Equal(t, "Unknown", s.Metadata.Location)
	require.NotNil(t, s.EndTime)
	assert.False(t, s.Open())

	for i := 1; i < len(s.Messages); i++ {
		assert.False(t, s.Messages[i].Timestamp.Before(s.Messages[i-1].Timestamp))
		assert.Equal(t, id, s.Messages[i].SessionID)
	}
	assert.Nil(t, l.CurrentSession())
	assert.Nil(t, l.EndSession())
}

func TestLogUserInputAutoStartsSession(t *testing.T) {
	l := newLogger(t, nil, newClock())

	msgID := l.LogUserInput(transcript.UserInput{Transcript: "hello", Confidence: 0.8})
	require.NotEmpty(t, msgID)

	cur := l.CurrentSession()
	require.NotNil(t, cur)
	assert.Equal(t, transcript.DefaultUserID, cur.UserID)
	require.Len(t, cur.Messages, 1)
	assert.Equal(t, transcript.UnknownLanguage, cur.Messages[0].UserInput.Language)
	assert.Equal(t, transcript.DefaultRecognitionMode, cur.Messages[0].UserInput.Method)
}

func TestTTSPlaybackDroppedWithoutSession(t *testing.T) {
	l := newLogger(t, nil, newClock())

	assert.Empty(t, l.LogTTSPlayback(transcript.TTSPlayback{Text: "namaste"}))
	assert.Empty(t, l.Conversations())

	_, err := l.StartSession("", transcript.Metadata{})
	require.NoError(t, err)
	require.NotEmpty(t, l.LogTTSPlayback(transcript.TTSPlayback{Text: "namaste", Language: "hi"}))

	p := l.CurrentSession().Messages[0].TTSPlayback
	require.NotNil(t, p)
	assert.Equal(t, "default", p.Voice)
	assert.Equal(t, 1.0, p.Rate)
}

func TestStartSessionClosesOpenSession(t *testing.T) {
	c := newClock()
	l := newLogger(t, nil, c)

	first, err := l.StartSession("a", transcript.Metadata{})
	require.NoError(t, err)
	c.Advance(time.Minute)
	second, err := l.StartSession("b", transcript.Metadata{})
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	all := l.Conversations()
	require.Len(t, all, 2)
	assert.Equal(t, first, all[0].ID)
	assert.False(t, all[0].Open())
	assert.True(t, all[1].Open())
}

func TestEnsureSession(t *testing.T) {
	l := newLogger(t, nil, newClock())

	id, err := l.EnsureSession("farmer-9", transcript.Metadata{Location: "Nashik"})
	require.NoError(t, err)
	again, err := l.EnsureSession("someone-else", transcript.Metadata{Location: "Pune"})
	require.NoError(t, err)
	assert.Equal(t, id, again)

	s := l.CurrentSession()
	require.NotNil(t, s)
	assert.Equal(t, "farmer-9", s.UserID)
	assert.Equal(t, "Nashik", s.Metadata.Location)
}

func TestDailyCap(t *testing.T) {
	c := newClock()
	l := newLogger(t, nil, c, transcript.WithMaxPerDay(2))

	for i := 0; i < 2; i++ {
		_, err := l.StartSession("", transcript.Metadata{})
		require.NoError(t, err)
	}
	_, err := l.StartSession("", transcript.Metadata{})
	assert.ErrorIs(t, err, transcript.ErrDailyCap)

	assert.Empty(t, l.LogUserInput(transcript.UserInput{Transcript: "dropped"}))
	assert.Len(t, l.Conversations(), 2)

	c.Advance(24 * time.Hour)
	_, err = l.StartSession("", transcript.Metadata{})
	assert.NoError(t, err)
}

func TestRetentionCleanup(t *testing.T) {
	c := newClock()
	store := transcript.NewMemoryStore()
	old := &transcript.Session{ID: "old", StartTime: c.Now().Add(-31 * 24 * time.Hour)}
	recent := &transcript.Session{ID: "recent", StartTime: c.Now().Add(-24 * time.Hour)}
	require.NoError(t, store.Save(context.Background(), old))
	require.NoError(t, store.Save(context.Background(), recent))

	l := newLogger(t, store, c)
	all := l.Conversations()
	require.Len(t, all, 1)
	assert.Equal(t, "recent", all[0].ID)
	require.NoError(t, l.Sync(context.Background()))
	assert.Equal(t, 1, store.Len())

	c.Advance(30 * 24 * time.Hour)
	assert.Equal(t, 1, l.Cleanup())
	assert.Empty(t, l.Conversations())
}

func TestCleanupKeepsCurrentSession(t *testing.T) {
	c := newClock()
	l := newLogger(t, nil, c, transcript.WithRetention(time.Hour))

	_, err := l.StartSession("", transcript.Metadata{})
	require.NoError(t, err)
	c.Advance(2 * time.Hour)
	assert.Zero(t, l.Cleanup())
	assert.NotNil(t, l.CurrentSession())
}

func TestStorageFailuresNeverInterrupt(t *testing.T) {
	for _, panics := range []bool{false, true} {
		store := &failingStore{panics: panics}
		l := newLogger(t, store, newClock())

		_, err := l.StartSession("", transcript.Metadata{})
		require.NoError(t, err)
		assert.NotEmpty(t, l.LogUserInput(transcript.UserInput{Transcript: "x", Confidence: 1}))
		assert.NotEmpty(t, l.LogAIResponse(transcript.AIResponse{Response: "y"}))
		require.NotNil(t, l.EndSession())
		assert.Len(t, l.Conversations(), 1)
		require.NoError(t, l.Sync(context.Background()))
		assert.Greater(t, store.saves, 0)
	}
}

// blockingStore holds every Save until release is closed, ignoring ctx.
type blockingStore struct {
	transcript.MemoryStore
	release chan struct{}
	mu      sync.Mutex
	saves   int
}

func (b *blockingStore) Save(ctx context.Context, s *transcript.Session) error {
	<-b.release
	b.mu.Lock()
	b.saves++
	b.mu.Unlock()
	return b.MemoryStore.Save(ctx, s)
}

func (b *blockingStore) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.saves
}

func TestHungStoreDoesNotBlockLogging(t *testing.T) {
	store := &blockingStore{release: make(chan struct{})}
	l := newLogger(t, store, newClock(), transcript.WithQueueSize(4))

	start := time.Now()
	_, err := l.StartSession("farmer-1", transcript.Metadata{Location: "Pune"})
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		assert.NotEmpty(t, l.LogUserInput(transcript.UserInput{Transcript: "rain?", Confidence: 1}))
		assert.NotEmpty(t, l.LogAIResponse(transcript.AIResponse{Response: "Irrigate lightly."}))
	}
	assert.Less(t, time.Since(start), 500*time.Millisecond)

	cur := l.CurrentSession()
	require.NotNil(t, cur)
	assert.Len(t, cur.Messages, 20, "in-memory log is complete even when writes are dropped")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, l.Sync(ctx), context.DeadlineExceeded)

	close(store.release)
	require.NoError(t, l.Sync(context.Background()))
	assert.Less(t, store.count(), 21, "writes beyond the queue are dropped")

	saved, err := store.MemoryStore.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, saved, 1)
	assert.Equal(t, "farmer-1", saved[0].UserID)
}

func TestCloseDrainsPendingWrites(t *testing.T) {
	store := transcript.NewMemoryStore()
	l := newLogger(t, store, newClock())

	_, err := l.StartSession("", transcript.Metadata{})
	require.NoError(t, err)
	l.LogUserInput(transcript.UserInput{Transcript: "wheat price?", Confidence: 0.8})
	require.NoError(t, l.Close())

	saved, err := store.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, saved, 1)
	assert.False(t, saved[0].Open())
	assert.Len(t, saved[0].Messages, 1)

	assert.NoError(t, l.Sync(context.Background()), "sync after close is a no-op")
	assert.NotEmpty(t, l.LogUserInput(transcript.UserInput{Transcript: "late"}), "memory log still accepts entries")
}

func TestFilters(t *testing.T) {
	c := newClock()
	l := newLogger(t, nil, c)

	_, _ = l.StartSession("ravi", transcript.Metadata{})
	l.LogUserInput(transcript.UserInput{Transcript: "மழை", Language: "ta"})
	c.Advance(48 * time.Hour)
	_, _ = l.StartSession("asha", transcript.Metadata{})
	l.LogUserInput(transcript.UserInput{Transcript: "rain", Language: "en"})
	l.EndSession()

	assert.Len(t, l.ByLanguage("ta"), 1)
	assert.Len(t, l.ByLanguage("en"), 1)
	assert.Empty(t, l.ByLanguage("bn"))
	assert.Len(t, l.Filter(transcript.Filter{UserID: "asha"}), 1)

	start := newClock().Now()
	assert.Len(t, l.ByDateRange(start, start.Add(time.Hour)), 1)
	assert.Len(t, l.ByDateRange(start, start.Add(72*time.Hour)), 2)

	l.Clear()
	assert.Empty(t, l.Conversations())
	assert.Nil(t, l.CurrentSession())
}

func populated(t *testing.T) *transcript.Logger {
	t.Helper()
	c := newClock()
	l := newLogger(t, nil, c)

	_, err := l.StartSession("u1", transcript.Metadata{})
	require.NoError(t, err)
	l.LogUserInput(transcript.UserInput{Transcript: "will it rain", Confidence: 0.8, Language: "en"})
	l.LogAIResponse(transcript.AIResponse{Response: "Yes, 80% chance", Language: "en"})
	l.LogTTSPlayback(transcript.TTSPlayback{Text: "Yes, 80% chance", Language: "en", Voice: "en-IN-Standard-A"})
	l.LogError(transcript.ErrorEntry{Message: "mic lost", Context: "speech_recognition"})
	c.Advance(5 * time.Second)
	l.EndSession()

	c.Advance(time.Minute)
	_, err = l.StartSession("u2", transcript.Metadata{})
	require.NoError(t, err)
	l.LogUserInput(transcript.UserInput{Transcript: "बारिश", Confidence: 0.6, Language: "hi"})
	l.LogError(transcript.ErrorEntry{Message: "timeout"})
	return l
}

func TestExportJSON(t *testing.T) {
	l := populated(t)

	out, err := l.ExportString(transcript.FormatJSON, transcript.Filter{})
	require.NoError(t, err)

	var data transcript.Export
	require.NoError(t, json.Unmarshal([]byte(out), &data))
	assert.Equal(t, 2, data.TotalConversations)
	require.Len(t, data.Conversations, 2)
	assert.Len(t, data.Conversations[0].Messages, 4)
}

func TestExportCSV(t *testing.T) {
	l := populated(t)

	out, err := l.ExportString(transcript.FormatCSV, transcript.Filter{})
	require.NoError(t, err)

	rows, err := csv.NewReader(strings.NewReader(out)).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Session ID", rows[0][0])
	assert.Equal(t, "5000", rows[1][3])
	assert.Equal(t, "0.80", rows[1][7])
	assert.Equal(t, "N/A", rows[2][2])
	assert.Equal(t, "hi", rows[2][6])
}

func TestExportTXT(t *testing.T) {
	l := populated(t)

	out, err := l.ExportString(transcript.FormatTXT, transcript.Filter{Language: "en"})
	require.NoError(t, err)
	assert.Contains(t, out, "Total Conversations: 1")
	assert.Contains(t, out, "=== Conversation 1 ===")
	assert.Contains(t, out, `USER_INPUT: "will it rain" (en, 80.0%)`)
	assert.Contains(t, out, "ERROR: mic lost")
	assert.NotContains(t, out, "Ongoing")
}

func TestParseFormat(t *testing.T) {
	f, err := transcript.ParseFormat("CSV")
	require.NoError(t, err)
	assert.Equal(t, transcript.FormatCSV, f)
	assert.Equal(t, "text/csv; charset=utf-8", f.ContentType())

	f, err = transcript.ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, transcript.FormatJSON, f)

	_, err = transcript.ParseFormat("xml")
	assert.ErrorIs(t, err, transcript.ErrUnknownFormat)

	_, err = populated(t).ExportString("xml", transcript.Filter{})
	assert.ErrorIs(t, err, transcript.ErrUnknownFormat)
}

func TestAnalytics(t *testing.T) {
	a := populated(t).Analytics(transcript.Filter{})

	assert.Equal(t, 2, a.TotalConversations)
	assert.Equal(t, 6, a.TotalMessages)
	assert.Equal(t, 2, a.TotalUserMessages)
	assert.Equal(t, 1, a.TotalBotMessages)
	assert.InDelta(t, 5000, a.AverageConversationDuration, 1e-9)
	assert.InDelta(t, 0.7, a.AverageConfidence, 1e-9)
	assert.Equal(t, map[string]int{"en": 1, "hi": 1}, a.LanguageBreakdown)
	assert.Equal(t, map[string]int{"2024-01-20": 2}, a.DailyActivity)
	assert.Equal(t, 2, a.ErrorCount)
	assert.Equal(t, map[string]int{"speech_recognition": 1, "unknown": 1}, a.CommonErrors)
}
