package stt

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/speech/v1"

	"github.com/teslashibe/agrivoice/internal/log"
	"github.com/teslashibe/agrivoice/pkg/audioio"
	"github.com/teslashibe/agrivoice/pkg/bridge"
	"github.com/teslashibe/agrivoice/pkg/language"
	"github.com/teslashibe/agrivoice/pkg/protocol"
)

// recorder collects callback activity.
type recorder struct {
	mu      sync.Mutex
	results []Event
	errs    []error
	starts  int
	ends    int
	ended   chan struct{}
	gotOne  chan struct{}
}

func newRecorder() *recorder {
	return &recorder{ended: make(chan struct{}, 8), gotOne: make(chan struct{}, 8)}
}

func (r *recorder) callbacks() Callbacks {
	return Callbacks{
		OnResult: func(e Event) {
			r.mu.Lock()
			r.results = append(r.results, e)
			r.mu.Unlock()
			r.gotOne <- struct{}{}
		},
		OnError: func(err error) {
			r.mu.Lock()
			r.errs = append(r.errs, err)
			r.mu.Unlock()
		},
		OnStart: func() {
			r.mu.Lock()
			r.starts++
			r.mu.Unlock()
		},
		OnEnd: func() {
			r.mu.Lock()
			r.ends++
			r.mu.Unlock()
			r.ended <- struct{}{}
		},
	}
}

func (r *recorder) snapshot() ([]Event, []error, int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.results...), append([]error(nil), r.errs...), r.starts, r.ends
}

func wait(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out")
	}
}

func TestNewEvent(t *testing.T) {
	alts := []Alternative{{"a", 0.9}, {"b", 0.8}, {"c", 0.7}, {"d", 0.6}}
	ev := NewEvent("  गेहूं में खाद  ", "", 0.9, alts, language.English)
	assert.True(t, ev.IsFinal)
	assert.Equal(t, "गेहूं में खाद", ev.Final)
	assert.Len(t, ev.Alternatives, MaxAlternatives)
	assert.Equal(t, language.Hindi, ev.DetectedLanguage)

	ev = NewEvent("", "when to sow", 0.5, nil, language.Tamil)
	assert.False(t, ev.IsFinal)
	assert.Equal(t, "when to sow", ev.Transcript())
	assert.Equal(t, language.Tamil, ev.DetectedLanguage, "latin text keeps the requested language")

	ev = NewEvent("", "", -1, nil, "")
	assert.Zero(t, ev.Confidence)
	assert.Equal(t, language.Default, ev.DetectedLanguage)
}

func TestErrors(t *testing.T) {
	err := NewError(KindNoSpeech, "nothing heard", nil)
	assert.ErrorIs(t, err, ErrNoSpeech)
	assert.NotErrorIs(t, err, ErrNetwork)
	assert.Equal(t, KindNoSpeech, KindOf(fmt.Errorf("wrapped: %w", err)))
	assert.Equal(t, KindUnknown, KindOf(errors.New("plain")))

	cause := errors.New("dial failed")
	assert.ErrorIs(t, NewError(KindNetwork, "x", cause), cause)

	assert.Equal(t, KindPermissionDenied, KindFromCode("not-allowed"))
	assert.Equal(t, KindPermissionDenied, KindFromCode("service-not-allowed"))
	assert.Equal(t, KindAudioCapture, KindFromCode("audio-capture"))
	assert.Equal(t, KindUnknown, KindFromCode("aborted"))
}

func TestPhrasesAndLocales(t *testing.T) {
	assert.Contains(t, Phrases(language.Hindi), "फसल")
	assert.Equal(t, Phrases(language.English), Phrases(language.Bengali))
	assert.Equal(t, "pa-Guru-IN", googleLocale(language.Punjabi))
	assert.Equal(t, "hi-IN", googleLocale(language.Hindi))
	assert.Equal(t, []string{"en-US", "en-GB"}, alternativeLocales("en-IN"))
	assert.Equal(t, []string{"bn-BD"}, alternativeLocales("bn-IN"))
	assert.Nil(t, alternativeLocales("hi-IN"))
}

func TestRelayRoundTrip(t *testing.T) {
	tr := bridge.NewMock()
	r := NewRelay(tr, log.Discard())
	rec := newRecorder()

	require.True(t, r.IsSupported())
	require.NoError(t, r.Start(context.Background(), language.Hindi, rec.callbacks()))
	assert.True(t, r.IsListening())

	start := tr.Last(protocol.TypeSTTStart)
	require.NotNil(t, start)
	var payload protocol.STTStart
	require.NoError(t, start.ParseData(&payload))
	assert.Equal(t, "hi-IN", payload.Locale)
	assert.True(t, payload.Continuous)
	assert.Equal(t, MaxAlternatives, payload.MaxAlternatives)

	tr.Deliver(protocol.TypeSTTStarted, nil)
	tr.Deliver(protocol.TypeSTTResult, protocol.STTResult{Interim: "गेहूं", Confidence: 0.4})
	tr.Deliver(protocol.TypeSTTResult, protocol.STTResult{Final: "गेहूं की बुआई", IsFinal: true, Confidence: 0.92})
	tr.Deliver(protocol.TypeSTTEnded, nil)

	results, errs, starts, ends := rec.snapshot()
	require.Len(t, results, 2)
	assert.False(t, results[0].IsFinal)
	assert.True(t, results[1].IsFinal)
	assert.Equal(t, language.Hindi, results[1].DetectedLanguage)
	assert.Empty(t, errs)
	assert.Equal(t, 1, starts)
	assert.Equal(t, 1, ends)
	assert.False(t, r.IsListening())

	tr.Deliver(protocol.TypeSTTResult, protocol.STTResult{Final: "late", IsFinal: true})
	results, _, _, _ = rec.snapshot()
	assert.Len(t, results, 2, "events after end are dropped")
}

func TestRelayError(t *testing.T) {
	tr := bridge.NewMock()
	r := NewRelay(tr, log.Discard())
	rec := newRecorder()
	require.NoError(t, r.Start(context.Background(), language.English, rec.callbacks()))

	tr.Deliver(protocol.TypeSTTError, protocol.ErrorData{Kind: "not-allowed", Message: "denied"})

	_, errs, _, ends := rec.snapshot()
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], ErrPermissionDenied)
	assert.Equal(t, 1, ends)
	assert.False(t, r.IsListening())
}

func TestRelayStopSuppressesEvents(t *testing.T) {
	tr := bridge.NewMock()
	r := NewRelay(tr, log.Discard())
	rec := newRecorder()
	require.NoError(t, r.Start(context.Background(), language.English, rec.callbacks()))

	require.NoError(t, r.Stop())
	require.NoError(t, r.Stop())
	assert.Contains(t, tr.SentTypes(), protocol.TypeSTTStop)

	tr.Deliver(protocol.TypeSTTResult, protocol.STTResult{Final: "x", IsFinal: true})
	tr.Deliver(protocol.TypeSTTEnded, nil)
	results, _, _, ends := rec.snapshot()
	assert.Empty(t, results)
	assert.Zero(t, ends)
}

func TestRelayDisconnect(t *testing.T) {
	tr := bridge.NewMock()
	r := NewRelay(tr, log.Discard())
	rec := newRecorder()
	require.NoError(t, r.Start(context.Background(), language.English, rec.callbacks()))

	tr.Deliver(bridge.TypeDisconnected, nil)
	_, errs, _, ends := rec.snapshot()
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], ErrNetwork)
	assert.Equal(t, 1, ends)
}

func TestRelayUnsupported(t *testing.T) {
	tr := bridge.NewMock()
	tr.SetConnected(false)
	r := NewRelay(tr, log.Discard())
	assert.False(t, r.IsSupported())
	err := r.Start(context.Background(), language.English, Callbacks{})
	assert.ErrorIs(t, err, ErrUnsupported)

	tr.SetConnected(true)
	tr.SetSendError(errors.New("write: broken pipe"))
	err = r.Start(context.Background(), language.English, Callbacks{})
	assert.ErrorIs(t, err, ErrNetwork)
	assert.False(t, r.IsListening())
}

func TestRelayContextCancel(t *testing.T) {
	tr := bridge.NewMock()
	r := NewRelay(tr, log.Discard())
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, r.Start(ctx, language.English, Callbacks{}))
	cancel()
	assert.Eventually(t, func() bool { return !r.IsListening() }, time.Second, 5*time.Millisecond)
}

type fakeRecognize struct {
	mu   sync.Mutex
	reqs []*speech.RecognizeRequest
	resp *speech.RecognizeResponse
	err  error
}

func (f *fakeRecognize) Recognize(ctx context.Context, req *speech.RecognizeRequest) (*speech.RecognizeResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reqs = append(f.reqs, req)
	return f.resp, f.err
}

func (f *fakeRecognize) requests() []*speech.RecognizeRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*speech.RecognizeRequest(nil), f.reqs...)
}

func testGoogleConfig() GoogleConfig {
	cfg := DefaultGoogleConfig()
	cfg.EndSilence = 200 * time.Millisecond
	cfg.NoSpeechTimeout = 300 * time.Millisecond
	return cfg
}

func TestGoogleRecognizesUtterance(t *testing.T) {
	acfg := audioio.DefaultConfig()
	src := audioio.NewMockSource(acfg, log.Discard(),
		audioio.Silence(acfg, 100*time.Millisecond),
		audioio.Tone(acfg, 400*time.Millisecond, 0.5),
		audioio.Silence(acfg, 300*time.Millisecond),
	)
	api := &fakeRecognize{resp: &speech.RecognizeResponse{Results: []*speech.SpeechRecognitionResult{{
		LanguageCode: "ta-in",
		Alternatives: []*speech.SpeechRecognitionAlternative{
			{Transcript: "நெல் விதை", Confidence: 0.88},
			{Transcript: "நெல் விதைகள்", Confidence: 0.6},
		},
	}}}}
	g := newGoogle(api, src, testGoogleConfig(), log.Discard())
	rec := newRecorder()

	require.True(t, g.IsSupported())
	require.NoError(t, g.Start(context.Background(), language.Tamil, rec.callbacks()))
	wait(t, rec.gotOne)

	results, errs, starts, _ := rec.snapshot()
	require.Len(t, results, 1)
	assert.Equal(t, "நெல் விதை", results[0].Final)
	assert.InDelta(t, 0.88, results[0].Confidence, 1e-9)
	assert.Len(t, results[0].Alternatives, 2)
	assert.Equal(t, language.Tamil, results[0].DetectedLanguage)
	assert.Empty(t, errs)
	assert.Equal(t, 1, starts)

	reqs := api.requests()
	require.Len(t, reqs, 1)
	c := reqs[0].Config
	assert.Equal(t, "ta-IN", c.LanguageCode)
	assert.Equal(t, []string{"ta-LK", "ta-SG"}, c.AlternativeLanguageCodes)
	assert.Equal(t, "LINEAR16", c.Encoding)
	assert.EqualValues(t, 16000, c.SampleRateHertz)
	assert.EqualValues(t, MaxAlternatives, c.MaxAlternatives)
	require.Len(t, c.SpeechContexts, 1)
	assert.Equal(t, Phrases(language.Tamil), c.SpeechContexts[0].Phrases)
	assert.NotEmpty(t, reqs[0].Audio.Content)

	require.NoError(t, g.Stop())
	assert.False(t, g.IsListening())
}

func TestGoogleNoSpeech(t *testing.T) {
	acfg := audioio.DefaultConfig()
	src := audioio.NewMockSource(acfg, log.Discard(), audioio.Silence(acfg, 400*time.Millisecond))
	api := &fakeRecognize{resp: &speech.RecognizeResponse{}}
	g := newGoogle(api, src, testGoogleConfig(), log.Discard())
	rec := newRecorder()

	require.NoError(t, g.Start(context.Background(), language.English, rec.callbacks()))
	wait(t, rec.ended)

	_, errs, _, ends := rec.snapshot()
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], ErrNoSpeech)
	assert.Equal(t, 1, ends)
	assert.Empty(t, api.requests())
	assert.False(t, g.IsListening())
}

func TestGoogleRequestFailure(t *testing.T) {
	acfg := audioio.DefaultConfig()
	src := audioio.NewMockSource(acfg, log.Discard(),
		audioio.Tone(acfg, 300*time.Millisecond, 0.5),
		audioio.Silence(acfg, 300*time.Millisecond),
	)
	api := &fakeRecognize{err: errors.New("503 unavailable")}
	g := newGoogle(api, src, testGoogleConfig(), log.Discard())
	rec := newRecorder()

	require.NoError(t, g.Start(context.Background(), language.English, rec.callbacks()))
	wait(t, rec.ended)

	_, errs, _, _ := rec.snapshot()
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], ErrNetwork)
}

func TestGoogleStopSuppressesCallbacks(t *testing.T) {
	acfg := audioio.DefaultConfig()
	src := audioio.NewMockSource(acfg, log.Discard())
	g := newGoogle(&fakeRecognize{resp: &speech.RecognizeResponse{}}, src, testGoogleConfig(), log.Discard())
	rec := newRecorder()

	require.NoError(t, g.Start(context.Background(), language.English, rec.callbacks()))
	require.NoError(t, g.Stop())
	time.Sleep(50 * time.Millisecond)

	_, errs, _, ends := rec.snapshot()
	assert.Empty(t, errs)
	assert.Zero(t, ends)
}

func TestGoogleUnsupported(t *testing.T) {
	acfg := audioio.DefaultConfig()
	src := audioio.NewMockSource(acfg, log.Discard())
	src.SetReady(false)
	g := newGoogle(&fakeRecognize{}, src, GoogleConfig{}, log.Discard())
	assert.ErrorIs(t, g.Start(context.Background(), language.English, Callbacks{}), ErrUnsupported)
}

func TestEventFromResponse(t *testing.T) {
	resp := &speech.RecognizeResponse{Results: []*speech.SpeechRecognitionResult{
		{LanguageCode: "en-us", Alternatives: []*speech.SpeechRecognitionAlternative{{Transcript: "when should I", Confidence: 0.8}}},
		{Alternatives: []*speech.SpeechRecognitionAlternative{{Transcript: " irrigate wheat", Confidence: 0.7}}},
		{},
	}}
	ev, ok, err := eventFromResponse(resp, language.Hindi)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "when should I irrigate wheat", ev.Final)
	assert.Equal(t, language.English, ev.DetectedLanguage)

	_, ok, err = eventFromResponse(&speech.RecognizeResponse{}, language.Hindi)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMock(t *testing.T) {
	m := NewMock(NewEvent("hello farm", "", 0.9, nil, language.English))
	rec := newRecorder()
	require.NoError(t, m.Start(context.Background(), language.English, rec.callbacks()))
	wait(t, rec.gotOne)
	assert.Equal(t, 1, m.Starts())
	assert.Equal(t, language.English, m.LastLanguage())

	m.Fail(ErrNoSpeech)
	_, errs, _, ends := rec.snapshot()
	assert.Len(t, errs, 1)
	assert.Equal(t, 1, ends)
	assert.False(t, m.IsListening())

	m.SetSupported(false)
	assert.ErrorIs(t, m.Start(context.Background(), language.English, Callbacks{}), ErrUnsupported)
}
