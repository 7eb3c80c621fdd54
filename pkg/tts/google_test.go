package tts

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/texttospeech/v1"

	"github.com/teslashibe/agrivoice/internal/log"
	"github.com/teslashibe/agrivoice/pkg/audioio"
	"github.com/teslashibe/agrivoice/pkg/bridge"
	"github.com/teslashibe/agrivoice/pkg/protocol"
)

type fakeTTS struct {
	req    *texttospeech.SynthesizeSpeechRequest
	audio  []byte
	err    error
	voices []*texttospeech.Voice
}

func (f *fakeTTS) Synthesize(_ context.Context, req *texttospeech.SynthesizeSpeechRequest) (*texttospeech.SynthesizeSpeechResponse, error) {
	f.req = req
	if f.err != nil {
		return nil, f.err
	}
	return &texttospeech.SynthesizeSpeechResponse{AudioContent: base64.StdEncoding.EncodeToString(f.audio)}, nil
}

func (f *fakeTTS) ListVoices(context.Context) (*texttospeech.ListVoicesResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &texttospeech.ListVoicesResponse{Voices: f.voices}, nil
}

func wav(pcm []byte) []byte {
	b := make([]byte, 44, 44+len(pcm))
	copy(b[0:], "RIFF")
	binary.LittleEndian.PutUint32(b[4:], uint32(36+len(pcm)))
	copy(b[8:], "WAVE")
	copy(b[12:], "fmt ")
	binary.LittleEndian.PutUint32(b[16:], 16)
	copy(b[36:], "data")
	binary.LittleEndian.PutUint32(b[40:], uint32(len(pcm)))
	return append(b, pcm...)
}

func TestGoogleSpeak(t *testing.T) {
	pcm := []byte{1, 2, 3, 4, 5, 6}
	api := &fakeTTS{audio: wav(pcm)}
	sink := audioio.NewMockSink(time.Millisecond)
	g := newGoogle(api, sink, GoogleConfig{Logger: log.Discard()})

	started := false
	err := g.Speak(context.Background(), Utterance{
		ID:      "u1",
		Text:    "ನೀರಾವರಿ",
		Locale:  "kn-IN",
		Voice:   Voice{ID: "kn-IN-Wavenet-B"},
		Options: Options{Rate: 0.9, Pitch: 1.5, Volume: 0.5},
	}, func() { started = true })
	require.NoError(t, err)
	assert.True(t, started)

	cfg := api.req.AudioConfig
	assert.Equal(t, "LINEAR16", cfg.AudioEncoding)
	assert.EqualValues(t, 24000, cfg.SampleRateHertz)
	assert.InDelta(t, 0.9, cfg.SpeakingRate, 1e-9)
	assert.InDelta(t, 10, cfg.Pitch, 1e-9)
	assert.InDelta(t, -6.02, cfg.VolumeGainDb, 0.01)
	assert.Equal(t, "kn-IN", api.req.Voice.LanguageCode)
	assert.Equal(t, "kn-IN-Wavenet-B", api.req.Voice.Name)

	clips := sink.Clips()
	require.Len(t, clips, 1)
	assert.Equal(t, pcm, clips[0].Data)
	assert.Equal(t, "pcm16", clips[0].Format)
	assert.Equal(t, "u1", clips[0].ID)
}

func TestGoogleErrors(t *testing.T) {
	api := &fakeTTS{err: &googleapi.Error{Code: 429, Message: "quota"}}
	g := newGoogle(api, audioio.NewMockSink(time.Millisecond), GoogleConfig{Logger: log.Discard()})

	err := g.Speak(context.Background(), Utterance{Text: "x"}, func() { t.Fatal("must not start") })
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 429, apiErr.StatusCode)
	assert.True(t, apiErr.IsRetryable())

	_, err = g.Voices(context.Background())
	assert.ErrorAs(t, err, &apiErr)
}

func TestGoogleInterrupted(t *testing.T) {
	sink := audioio.NewMockSink(time.Minute)
	g := newGoogle(&fakeTTS{audio: []byte{0, 0}}, sink, GoogleConfig{Logger: log.Discard()})

	errc := make(chan error, 1)
	go func() { errc <- g.Speak(context.Background(), Utterance{ID: "u", Text: "x"}, func() {}) }()
	require.Eventually(t, func() bool { return len(sink.Clips()) == 1 }, time.Second, time.Millisecond)
	require.NoError(t, g.Stop())
	assert.ErrorIs(t, <-errc, ErrInterrupted)
}

func TestGoogleVoices(t *testing.T) {
	api := &fakeTTS{voices: []*texttospeech.Voice{
		{Name: "hi-IN-Neural2-A", LanguageCodes: []string{"hi-IN"}, SsmlGender: "FEMALE"},
		{Name: "en-IN-Wavenet-B", LanguageCodes: []string{"en-IN", "en-US"}, SsmlGender: "MALE"},
	}}
	g := newGoogle(api, audioio.NewMockSink(0), GoogleConfig{})

	voices, err := g.Voices(context.Background())
	require.NoError(t, err)
	require.Len(t, voices, 3)
	assert.Equal(t, GenderFemale, voices[0].Gender)
	assert.Equal(t, "en-US", voices[2].Locale)
	assert.False(t, voices[0].LocalService)
}

func TestStripWAVHeader(t *testing.T) {
	assert.Equal(t, []byte{9, 9}, stripWAVHeader(wav([]byte{9, 9})))
	raw := []byte{1, 2, 3}
	assert.Equal(t, raw, stripWAVHeader(raw))
}

func TestConversions(t *testing.T) {
	assert.InDelta(t, 0, semitones(1), 1e-9)
	assert.InDelta(t, -20, semitones(0), 1e-9)
	assert.InDelta(t, 20, semitones(3), 1e-9)
	assert.InDelta(t, 0, gainDB(1), 1e-9)
	assert.InDelta(t, -96, gainDB(0), 1e-9)
}

func TestBridgeSink(t *testing.T) {
	tr := bridge.NewMock()
	sink := NewBridgeSink(tr, log.Discard())
	tr.OnSend = func(msg *protocol.Message) {
		if msg.Type != protocol.TypeTTSAudio {
			return
		}
		audio := protocol.TTSAudio{}
		_ = msg.ParseData(&audio)
		tr.Deliver(protocol.TypeTTSEnded, protocol.TTSEvent{ID: audio.ID})
	}

	err := sink.Play(context.Background(), audioio.Clip{ID: "c1", Format: "pcm16", SampleRate: 24000, Data: []byte{1, 2}})
	require.NoError(t, err)

	msg := tr.Last(protocol.TypeTTSAudio)
	require.NotNil(t, msg)
	audio := protocol.TTSAudio{}
	require.NoError(t, msg.ParseData(&audio))
	data, err := base64.StdEncoding.DecodeString(audio.Data)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2}, data)

	tr.OnSend = nil
	errc := make(chan error, 1)
	go func() { errc <- sink.Play(context.Background(), audioio.Clip{ID: "c2"}) }()
	require.Eventually(t, func() bool { return tr.Last(protocol.TypeTTSAudio) != msg }, time.Second, time.Millisecond)
	require.NoError(t, sink.Stop())
	assert.ErrorIs(t, <-errc, audioio.ErrInterrupted)

	tr.SetSendError(errors.New("closed"))
	assert.Error(t, sink.Play(context.Background(), audioio.Clip{ID: "c3"}))
}
