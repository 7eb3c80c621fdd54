package voice

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/agrivoice/pkg/language"
	"github.com/teslashibe/agrivoice/pkg/reasoning"
	"github.com/teslashibe/agrivoice/pkg/stt"
	"github.com/teslashibe/agrivoice/pkg/tts"
)

func TestProcessingLanguage(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		current string
		want    string
	}{
		{"latin keeps current", "Will it rain?", language.Hindi, language.Hindi},
		{"latin in english", "Will it rain?", language.English, language.English},
		{"tamil script wins", "மழை வருமா", language.Hindi, language.Tamil},
		{"devanagari from english", "बारिश", language.English, language.Hindi},
		{"marathi selection kept", "पाऊस येईल का", language.Marathi, language.Marathi},
		{"assamese selection kept", "বৰষুণ", language.Assamese, language.Assamese},
		{"empty keeps current", "  ", language.Telugu, language.Telugu},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, processingLanguage(tt.text, tt.current))
		})
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		err  error
		want ErrorKind
	}{
		{stt.NewError(stt.KindNoSpeech, "", nil), KindNoSpeech},
		{stt.NewError(stt.KindAudioCapture, "mic busy", nil), KindAudioCapture},
		{stt.NewError(stt.KindPermissionDenied, "", nil), KindPermissionDenied},
		{fmt.Errorf("start: %w", stt.NewError(stt.KindNetwork, "", nil)), KindNetwork},
		{stt.NewError(stt.KindUnsupported, "", nil), KindCapabilityUnsupported},
		{stt.NewError(stt.KindUnknown, "", nil), KindUnknown},
		{tts.ErrUnsupported, KindCapabilityUnsupported},
		{fmt.Errorf("%w: boom", tts.ErrSynthesis), KindSynthesis},
		{reasoning.ErrProviderUnavailable, KindProviderUnavailable},
		{context.DeadlineExceeded, KindProviderUnavailable},
		{ErrUnsupported, KindCapabilityUnsupported},
		{errors.New("mystery"), KindUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestMessage(t *testing.T) {
	assert.Equal(t, "Network connection issue.", Message(KindNetwork, language.English))
	assert.Equal(t, "इंटरनेट कनेक्शन की समस्या।", Message(KindNetwork, language.Hindi))

	// Unknown languages get English; unknown kinds get the default.
	assert.Equal(t, "No speech detected. Please try again.", Message(KindNoSpeech, language.Tamil))
	assert.Equal(t, "Something went wrong. Please try again.", Message(KindStorage, language.English))
	assert.Equal(t, "कुछ गलत हुआ। कृपया दोबारा कोशिश करें।", Message(KindProviderUnavailable, language.Hindi))
}

func TestErrorIs(t *testing.T) {
	err := &Error{Kind: KindCapabilityUnsupported, Err: errors.New("no mic")}
	assert.ErrorIs(t, err, ErrUnsupported)
	assert.NotErrorIs(t, &Error{Kind: KindNetwork}, ErrUnsupported)
	assert.Equal(t, "voice capability-unsupported: no mic", err.Error())
}

func TestTransitions(t *testing.T) {
	legal := [][2]State{
		{StateIdle, StateListening},
		{StateIdle, StateProcessing},
		{StateListening, StateProcessing},
		{StateListening, StateIdle},
		{StateListening, StateError},
		{StateProcessing, StateSpeaking},
		{StateProcessing, StateIdle},
		{StateProcessing, StateError},
		{StateSpeaking, StateIdle},
		{StateSpeaking, StateError},
		{StateError, StateIdle},
	}
	for _, e := range legal {
		assert.True(t, CanTransition(e[0], e[1]), "%s → %s", e[0], e[1])
	}

	assert.False(t, CanTransition(StateIdle, StateSpeaking))
	assert.False(t, CanTransition(StateIdle, StateError))
	assert.False(t, CanTransition(StateError, StateListening))
	assert.False(t, CanTransition(StateSpeaking, StateProcessing))

	assert.True(t, StateSpeaking.Busy())
	assert.False(t, StateIdle.Busy())
	assert.False(t, StateError.Busy())
}

func TestMetricsHistoryIsCapped(t *testing.T) {
	m := NewMetricsCollector()
	for i := uint64(1); i <= historySize+5; i++ {
		m.Begin(i, "text")
		m.MarkResponse(i, language.Hindi, "mock", false)
		m.Done(i)
	}
	h := m.History()
	require.Len(t, h, historySize)
	assert.Equal(t, uint64(6), h[0].Turn)
	assert.Equal(t, uint64(historySize+5), h[len(h)-1].Turn)
}

func TestMetricsIgnoreStaleTurns(t *testing.T) {
	m := NewMetricsCollector()
	m.Begin(1, "voice")
	m.Begin(2, "text")

	m.MarkTranscript(1)
	m.MarkResponse(1, language.English, "mock", false)
	m.Done(1)
	assert.Empty(t, m.History())
	assert.True(t, m.Current().ResponseTime.IsZero())

	m.MarkResponse(2, language.English, "echo", true)
	m.Done(2)
	m.Done(2)
	require.Len(t, m.History(), 1)
	assert.Equal(t, "echo", m.History()[0].Provider)
	assert.True(t, m.History()[0].Fallback)
}

func TestFormatLatency(t *testing.T) {
	var m Metrics
	assert.Equal(t, "---ms LISTEN | ---ms REASON | ---ms SPEAK | ---ms TOTAL", m.FormatLatency())
}

func TestConfigDefaults(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Apply(WithAutoLanguage(0), WithLocation(""))
	assert.Equal(t, language.Hindi, cfg.Language)
	assert.Equal(t, "Delhi", cfg.Location)
	assert.Equal(t, 2, cfg.SwitchThreshold)
	assert.True(t, cfg.AutoLanguage)
	assert.True(t, cfg.VoiceOutput)
	assert.InDelta(t, 0.9, cfg.Playback.Rate, 1e-9)
	assert.NotNil(t, cfg.Logger)
	assert.NoError(t, cfg.Validate())
}
