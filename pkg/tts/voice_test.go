package tts_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/teslashibe/agrivoice/pkg/language"
	"github.com/teslashibe/agrivoice/pkg/tts"
)

func TestQualityScore(t *testing.T) {
	tests := []struct {
		name  string
		voice tts.Voice
		lang  string
		want  int
	}{
		{"remote neural google female", tts.Voice{Name: "Google हिन्दी Neural Female", Locale: "hi-IN"}, language.Hindi, 130},
		{"local plain", tts.Voice{Name: "Lekha", Locale: "hi-IN", LocalService: true}, language.Hindi, 45},
		{"kannada prefers male", tts.Voice{Name: "Microsoft Male", Locale: "kn-IN", LocalService: true}, language.Kannada, 75},
		{"kannada female gets no gender bonus", tts.Voice{Name: "Microsoft Female", Locale: "kn-IN", LocalService: true}, language.Kannada, 65},
		{"regional mismatch", tts.Voice{Name: "Samantha", Locale: "en-US", LocalService: true}, language.English, 20},
		{"robotic penalty", tts.Voice{Name: "Robotic Compact", Locale: "en-GB", LocalService: true}, language.English, 5},
		{"language independent", tts.Voice{Name: "Google Wavenet", Locale: "ta-IN"}, "", 85},
		{"known gender wins over name", tts.Voice{Name: "Standard A", Locale: "pa-IN", Gender: tts.GenderMale}, language.Punjabi, 85},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tts.QualityScore(tt.voice, tt.lang))
		})
	}
}

func TestSelectVoice(t *testing.T) {
	voices := tts.NewMock().VoiceList

	t.Run("best match", func(t *testing.T) {
		v, ok := tts.SelectVoice(voices, language.Hindi, "", nil)
		assert.True(t, ok)
		assert.Equal(t, "hi-neural", v.ID)

		v, _ = tts.SelectVoice(voices, language.English, "", nil)
		assert.Equal(t, "en-in", v.ID)
	})

	t.Run("preference wins when offered", func(t *testing.T) {
		v, _ := tts.SelectVoice(voices, language.Hindi, "hi-local", nil)
		assert.Equal(t, "hi-local", v.ID)
	})

	t.Run("stale preference falls back to ranking", func(t *testing.T) {
		v, _ := tts.SelectVoice(voices, language.Hindi, "gone", nil)
		assert.Equal(t, "hi-neural", v.ID)
	})

	t.Run("no match uses first voice", func(t *testing.T) {
		v, ok := tts.SelectVoice(voices, language.Odia, "", nil)
		assert.True(t, ok)
		assert.Equal(t, voices[0].ID, v.ID)
	})

	t.Run("empty", func(t *testing.T) {
		_, ok := tts.SelectVoice(nil, language.Hindi, "", nil)
		assert.False(t, ok)
	})

	t.Run("custom scorer", func(t *testing.T) {
		local := func(v tts.Voice, _ string) int {
			if v.LocalService {
				return 1
			}
			return 0
		}
		v, _ := tts.SelectVoice(voices, language.Hindi, "", local)
		assert.Equal(t, "hi-local", v.ID)
	})
}

func TestMatchesLanguage(t *testing.T) {
	assert.True(t, tts.MatchesLanguage(tts.Voice{Locale: "hi-IN"}, language.Hindi))
	assert.True(t, tts.MatchesLanguage(tts.Voice{Locale: "en_GB"}, language.English))
	assert.True(t, tts.MatchesLanguage(tts.Voice{Locale: "bn-BD"}, language.Bengali))
	assert.False(t, tts.MatchesLanguage(tts.Voice{Locale: "ta-IN"}, language.Telugu))
}

func TestStats(t *testing.T) {
	s := tts.Stats(tts.NewMock().VoiceList)
	assert.Equal(t, 5, s.Total)
	assert.Equal(t, 2, s.ByLanguage[language.Hindi])
	assert.Equal(t, 2, s.ByLanguage[language.English])
	assert.Equal(t, 1, s.ByLanguage[language.Tamil])
	assert.Zero(t, s.ByLanguage[language.Gujarati])
	assert.Equal(t, 3, s.Quality[tts.TierPremium])
	assert.Equal(t, 2, s.Quality[tts.TierStandard])
	assert.Equal(t, 2, s.Local)
	assert.Equal(t, 3, s.Remote)
}

func TestTierOf(t *testing.T) {
	assert.Equal(t, tts.TierPremium, tts.TierOf(50))
	assert.Equal(t, tts.TierEnhanced, tts.TierOf(30))
	assert.Equal(t, tts.TierStandard, tts.TierOf(15))
	assert.Equal(t, tts.TierBasic, tts.TierOf(14))
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "Swara Neural (Premium) (Indian)",
		tts.DisplayName(tts.Voice{Name: "Microsoft Swara Neural", Locale: "hi-IN"}))
	assert.Equal(t, "Samantha", tts.DisplayName(tts.Voice{Name: "Samantha", Locale: "en-US"}))
	assert.Equal(t, "Wavenet (Enhanced)", tts.DisplayName(tts.Voice{Name: "Google Wavenet - A", Locale: "en-GB"}))
}
