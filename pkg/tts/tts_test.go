package tts_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/agrivoice/internal/log"
	"github.com/teslashibe/agrivoice/pkg/bridge"
	"github.com/teslashibe/agrivoice/pkg/language"
	"github.com/teslashibe/agrivoice/pkg/protocol"
	"github.com/teslashibe/agrivoice/pkg/tts"
)

type events struct {
	mu     sync.Mutex
	names  []string
	errs   []error
	ended  chan *tts.Playback
	failed chan error
}

func newEvents() *events {
	return &events{ended: make(chan *tts.Playback, 4), failed: make(chan error, 4)}
}

func (e *events) add(name string) {
	e.mu.Lock()
	e.names = append(e.names, name)
	e.mu.Unlock()
}

func (e *events) list() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.names...)
}

func (e *events) observers() tts.Observers {
	return tts.Observers{
		OnStart:  func(*tts.Playback) { e.add("start") },
		OnEnd:    func(p *tts.Playback) { e.add("end"); e.ended <- p },
		OnError:  func(_ *tts.Playback, err error) { e.add("error"); e.failed <- err },
		OnPause:  func(*tts.Playback) { e.add("pause") },
		OnResume: func(*tts.Playback) { e.add("resume") },
	}
}

func waitEnded(t *testing.T, ev *events) {
	t.Helper()
	select {
	case <-ev.ended:
	case <-time.After(time.Second):
		t.Fatal("OnEnd not called")
	}
}

func newSynth(engine tts.Engine, ev *events, opts ...tts.Option) *tts.Synthesizer {
	opts = append([]tts.Option{tts.WithLogger(log.Discard()), tts.WithObservers(ev.observers())}, opts...)
	return tts.New(engine, opts...)
}

func TestSynthesizerSpeak(t *testing.T) {
	ctx := context.Background()
	engine := tts.NewMock()
	ev := newEvents()
	s := newSynth(engine, ev)

	pb, err := s.Speak(ctx, "  गेहूं की बुआई नवंबर में करें  ", language.Hindi, tts.Options{})
	require.NoError(t, err)
	require.NoError(t, pb.Wait(ctx))
	waitEnded(t, ev)

	assert.Equal(t, []string{"start", "end"}, ev.list())
	assert.Equal(t, "hi-neural", pb.Voice.ID)
	assert.Equal(t, tts.DefaultOptions(), pb.Options)
	assert.Positive(t, pb.Duration())
	assert.False(t, s.IsSpeaking())

	call := engine.LastSpeak()
	require.NotNil(t, call)
	assert.Equal(t, "गेहूं की बुआई नवंबर में करें", call.Text)
	assert.InDelta(t, 0.9, call.Options.Rate, 1e-9)
}

func TestSynthesizerValidation(t *testing.T) {
	ctx := context.Background()
	engine := tts.NewMock()
	s := newSynth(engine, newEvents())

	_, err := s.Speak(ctx, "   ", language.English, tts.Options{})
	assert.ErrorIs(t, err, tts.ErrEmptyText)

	engine.SetSupported(false)
	_, err = s.Speak(ctx, "hello", language.English, tts.Options{})
	assert.ErrorIs(t, err, tts.ErrUnsupported)

	assert.ErrorIs(t, s.Pause(), tts.ErrNotSpeaking)
	assert.ErrorIs(t, s.Resume(), tts.ErrNotSpeaking)
}

func TestSynthesizerNewestWins(t *testing.T) {
	ctx := context.Background()
	engine := tts.NewMock()
	engine.PlayDuration = time.Minute
	ev := newEvents()
	s := newSynth(engine, ev)

	first, err := s.Speak(ctx, "first answer", language.English, tts.Options{})
	require.NoError(t, err)
	second, err := s.Speak(ctx, "second answer", language.English, tts.Options{})
	require.NoError(t, err)

	assert.ErrorIs(t, first.Wait(ctx), tts.ErrInterrupted)
	assert.Same(t, second, s.Current())

	s.Stop()
	assert.ErrorIs(t, second.Wait(ctx), tts.ErrInterrupted)
	assert.Nil(t, s.Current())
	assert.Eventually(t, func() bool { return engine.CallCount("Speak") == 2 }, time.Second, time.Millisecond)
}

func TestSynthesizerStop(t *testing.T) {
	ctx := context.Background()
	engine := tts.NewMock()
	engine.PlayDuration = time.Second
	ev := newEvents()
	s := newSynth(engine, ev)

	pb, err := s.Speak(ctx, "long answer", language.English, tts.Options{})
	require.NoError(t, err)
	require.Eventually(t, func() bool { return len(ev.list()) > 0 }, time.Second, time.Millisecond)

	require.NoError(t, s.Pause())
	assert.True(t, pb.Paused())
	assert.True(t, engine.Paused())
	require.NoError(t, s.Resume())
	assert.False(t, pb.Paused())

	s.Stop()
	s.Stop()
	assert.ErrorIs(t, pb.Wait(ctx), tts.ErrInterrupted)
	assert.Equal(t, []string{"start", "pause", "resume"}, ev.list(), "interruption fires no observer")
}

func TestSynthesizerFailure(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("audio device lost")
	ev := newEvents()
	s := newSynth(tts.WithError(boom), ev)

	pb, err := s.Speak(ctx, "hello", language.English, tts.Options{})
	require.NoError(t, err)

	err = pb.Wait(ctx)
	assert.ErrorIs(t, err, tts.ErrSynthesis)
	assert.ErrorIs(t, err, boom)

	select {
	case got := <-ev.failed:
		assert.ErrorIs(t, got, tts.ErrSynthesis)
	case <-time.After(time.Second):
		t.Fatal("OnError not called")
	}
}

func TestSynthesizerPreferences(t *testing.T) {
	ctx := context.Background()
	prefs := tts.NewMemoryPreferences()
	s := newSynth(tts.NewMock(), newEvents(), tts.WithPreferences(prefs))

	assert.ErrorIs(t, s.SetPreferredVoice(ctx, language.Hindi, "nope"), tts.ErrUnknownVoice)
	assert.ErrorIs(t, s.SetPreferredVoice(ctx, "xx", "hi-local"), tts.ErrUnsupportedLanguage)
	require.NoError(t, s.SetPreferredVoice(ctx, language.Hindi, "hi-local"))

	v, err := s.ResolveVoice(ctx, language.Hindi, tts.Options{})
	require.NoError(t, err)
	assert.Equal(t, "hi-local", v.ID)

	v, err = s.ResolveVoice(ctx, language.Hindi, tts.Options{Voice: "en-in"})
	require.NoError(t, err)
	assert.Equal(t, "en-in", v.ID, "explicit voice beats preference")

	list, err := s.VoicesFor(ctx, language.Hindi)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "hi-neural", list[0].ID)
	assert.Equal(t, tts.TierPremium, list[0].Tier)
	assert.True(t, list[1].Selected)

	all, err := s.Preferences(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{language.Hindi: "hi-local"}, all)

	require.NoError(t, s.SetPreferredVoice(ctx, language.Hindi, ""))
	v, _ = s.ResolveVoice(ctx, language.Hindi, tts.Options{})
	assert.Equal(t, "hi-neural", v.ID)
}

func TestSynthesizerVoiceCache(t *testing.T) {
	ctx := context.Background()
	engine := tts.NewMock()
	s := newSynth(engine, newEvents())

	_, err := s.Voices(ctx)
	require.NoError(t, err)
	_, err = s.Voices(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, engine.CallCount("Voices"))

	s.RefreshVoices()
	_, err = s.Voices(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, engine.CallCount("Voices"))

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, stats.Total)
}

func TestSynthesizerVoicesUnavailable(t *testing.T) {
	ctx := context.Background()
	engine := tts.NewMock()
	engine.VoicesErr = errors.New("voices not loaded")
	s := newSynth(engine, newEvents())

	pb, err := s.Speak(ctx, "hello", language.English, tts.Options{})
	require.NoError(t, err, "speaking does not depend on the voice list")
	require.NoError(t, pb.Wait(ctx))
	assert.Empty(t, pb.Voice.ID)
}

func TestFilePreferences(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "prefs", tts.DefaultPreferencesFile)

	p, err := tts.NewFilePreferences(path)
	require.NoError(t, err)
	require.NoError(t, p.Set(ctx, language.Tamil, "ta-in"))
	require.NoError(t, p.Set(ctx, language.Hindi, "hi-local"))
	require.NoError(t, p.Set(ctx, language.Hindi, ""))

	reopened, err := tts.NewFilePreferences(path)
	require.NoError(t, err)
	got, err := reopened.Get(ctx, language.Tamil)
	require.NoError(t, err)
	assert.Equal(t, "ta-in", got)
	got, _ = reopened.Get(ctx, language.Hindi)
	assert.Empty(t, got)
}

// browser plays the far side of the bridge for the relay engine.
func browser(tr *bridge.Mock, voices []protocol.VoiceInfo, fail string) {
	tr.OnSend = func(msg *protocol.Message) {
		switch msg.Type {
		case protocol.TypeTTSVoicesRequest:
			tr.Deliver(protocol.TypeTTSVoices, protocol.VoicesData{Voices: voices})
		case protocol.TypeTTSSpeak, protocol.TypeTTSAudio:
			var ev protocol.TTSEvent
			_ = msg.ParseData(&ev)
			if fail != "" {
				tr.Deliver(protocol.TypeTTSError, protocol.ErrorData{ID: ev.ID, Kind: fail})
				return
			}
			tr.Deliver(protocol.TypeTTSStarted, ev)
			tr.Deliver(protocol.TypeTTSEnded, ev)
		}
	}
}

func TestRelayEngine(t *testing.T) {
	ctx := context.Background()
	tr := bridge.NewMock()
	browser(tr, []protocol.VoiceInfo{
		{Name: "Google हिन्दी", Lang: "hi-IN", VoiceURI: "google-hi"},
		{Name: "Lekha", Lang: "hi-IN", VoiceURI: "lekha", LocalService: true},
	}, "")
	ev := newEvents()
	s := newSynth(tts.NewRelay(tr, log.Discard()), ev)

	pb, err := s.Speak(ctx, "नमस्ते किसान", language.Hindi, tts.Options{Rate: 1.1})
	require.NoError(t, err)
	require.NoError(t, pb.Wait(ctx))
	waitEnded(t, ev)
	assert.Equal(t, []string{"start", "end"}, ev.list())

	speak := tr.Last(protocol.TypeTTSSpeak)
	require.NotNil(t, speak)
	var req protocol.TTSSpeak
	require.NoError(t, speak.ParseData(&req))
	assert.Equal(t, pb.ID, req.ID)
	assert.Equal(t, "google-hi", req.Voice)
	assert.Equal(t, "hi-IN", req.Locale)
	assert.InDelta(t, 1.1, req.Rate, 1e-9)
}

func TestRelayEngineError(t *testing.T) {
	ctx := context.Background()
	tr := bridge.NewMock()
	browser(tr, nil, "synthesis-failed")
	ev := newEvents()
	relay := tts.NewRelay(tr, log.Discard())
	relay.VoicesTimeout = 20 * time.Millisecond
	s := newSynth(relay, ev)

	pb, err := s.Speak(ctx, "hello", language.English, tts.Options{})
	require.NoError(t, err)
	assert.ErrorIs(t, pb.Wait(ctx), tts.ErrSynthesis)
}

func TestRelayEngineDisconnect(t *testing.T) {
	ctx := context.Background()
	tr := bridge.NewMock()
	relay := tts.NewRelay(tr, log.Discard())
	tr.Deliver(protocol.TypeTTSVoices, protocol.VoicesData{Voices: []protocol.VoiceInfo{{Name: "Samantha", Lang: "en-US"}}})

	started := make(chan struct{})
	errc := make(chan error, 1)
	go func() {
		errc <- relay.Speak(ctx, tts.Utterance{ID: "u1", Text: "hello", Locale: "en-IN"}, func() { close(started) })
	}()
	require.Eventually(t, func() bool { return tr.Last(protocol.TypeTTSSpeak) != nil }, time.Second, time.Millisecond)

	tr.Deliver(protocol.TypeTTSStarted, protocol.TTSEvent{ID: "other"})
	tr.Deliver(protocol.TypeTTSStarted, protocol.TTSEvent{ID: "u1"})
	<-started
	require.NoError(t, relay.Pause())
	assert.Contains(t, tr.SentTypes(), protocol.TypeTTSPause)

	tr.Deliver(bridge.TypeDisconnected, nil)
	assert.ErrorIs(t, <-errc, bridge.ErrNotConnected)
	assert.ErrorIs(t, relay.Pause(), tts.ErrNotSpeaking)

	tr.SetConnected(false)
	assert.False(t, relay.IsSupported())
}

func TestChainFallback(t *testing.T) {
	ctx := context.Background()
	broken := tts.WithError(errors.New("quota exceeded"))
	offline := tts.NewMock()
	offline.SetSupported(false)
	good := tts.NewMock()

	chain, err := tts.NewChain(log.Discard(), offline, broken, good)
	require.NoError(t, err)
	assert.True(t, chain.IsSupported())

	called := false
	require.NoError(t, chain.Speak(ctx, tts.Utterance{ID: "x", Text: "hello"}, func() { called = true }))
	assert.True(t, called)
	assert.Zero(t, offline.CallCount("Speak"))
	assert.Equal(t, 1, broken.CallCount("Speak"))
	assert.Equal(t, 1, good.CallCount("Speak"))

	only, err := tts.NewChain(log.Discard(), broken)
	require.NoError(t, err)
	var chainErr *tts.ChainError
	assert.ErrorAs(t, only.Speak(ctx, tts.Utterance{Text: "x"}, func() {}), &chainErr)

	_, err = tts.NewChain(nil)
	assert.ErrorIs(t, err, tts.ErrProviderUnavailable)
}

func TestMockWithLatency(t *testing.T) {
	m := tts.WithLatency(tts.NewMock(), 30*time.Millisecond)
	start := time.Now()
	require.NoError(t, m.Speak(context.Background(), tts.Utterance{Text: "x"}, func() {}))
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, m.Speak(ctx, tts.Utterance{Text: "x"}, func() {}), tts.ErrInterrupted)
}
