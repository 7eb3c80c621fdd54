package tts

import (
	"regexp"
	"sort"
	"strings"

	"github.com/teslashibe/agrivoice/pkg/language"
)

// Gender of a voice, when known.
type Gender string

const (
	GenderUnknown Gender = ""
	GenderFemale  Gender = "female"
	GenderMale    Gender = "male"
)

// Voice is one synthesis voice offered by an engine.
type Voice struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Locale       string `json:"locale"`
	LocalService bool   `json:"localService"`
	Default      bool   `json:"default,omitempty"`
	Gender       Gender `json:"gender,omitempty"`
}

// Primary returns the voice's primary language tag, lowercased.
func (v Voice) Primary() string {
	tag, _, _ := strings.Cut(strings.ToLower(v.Locale), "-")
	if tag == "" {
		tag, _, _ = strings.Cut(strings.ToLower(v.Locale), "_")
	}
	return tag
}

// inferredGender returns Gender, falling back to words in the name.
func (v Voice) inferredGender() Gender {
	if v.Gender != GenderUnknown {
		return v.Gender
	}
	for _, w := range nameWords(v.Name) {
		switch w {
		case "female", "woman":
			return GenderFemale
		case "male", "man":
			return GenderMale
		}
	}
	return GenderUnknown
}

var wordSplit = regexp.MustCompile(`[^a-z]+`)

func nameWords(name string) []string {
	return wordSplit.Split(strings.ToLower(name), -1)
}

// Scorer ranks a voice for a target language. Higher is better.
type Scorer func(v Voice, lang string) int

// PreferredGender returns the default gender for lang: male for Kannada
// and Punjabi, female otherwise.
func PreferredGender(lang string) Gender {
	switch lang {
	case language.Kannada, language.Punjabi:
		return GenderMale
	}
	return GenderFemale
}

type bonus struct {
	keywords []string
	points   int
}

var (
	qualityBonuses = []bonus{
		{[]string{"neural", "premium"}, 30},
		{[]string{"enhanced", "high-quality"}, 25},
		{[]string{"natural", "wavenet"}, 20},
		{[]string{"standard"}, 10},
		{[]string{"basic", "compact"}, 5},
	}
	vendorBonuses = []bonus{
		{[]string{"google"}, 25},
		{[]string{"microsoft", "cortana"}, 20},
		{[]string{"amazon", "polly"}, 20},
		{[]string{"speechify"}, 15},
	}
	penalties = []bonus{
		{[]string{"robotic", "low"}, -20},
	}
)

func (b bonus) apply(name string) int {
	for _, k := range b.keywords {
		if strings.Contains(name, k) {
			return b.points
		}
	}
	return 0
}

// QualityScore is the default Scorer. It favors remote and neural voices
// from well-known vendors, an exact locale match, and the language's
// preferred gender. An empty lang scores the voice alone.
func QualityScore(v Voice, lang string) int {
	name := strings.ToLower(v.Name)
	score := 40
	if v.LocalService {
		score = 20
	}
	for _, groups := range [][]bonus{qualityBonuses, vendorBonuses, penalties} {
		for _, b := range groups {
			score += b.apply(name)
		}
	}
	if lang == "" {
		return score
	}

	target := strings.ToLower(language.Locale(lang))
	locale := strings.ToLower(v.Locale)
	if locale == target {
		score += 15
	}
	if strings.HasSuffix(locale, "-in") || strings.HasSuffix(locale, "_in") {
		score += 10
	}
	if g := v.inferredGender(); g != GenderUnknown && g == PreferredGender(lang) {
		score += 10
	}
	return score
}

// MatchesLanguage reports whether v can speak lang, by exact locale or
// primary tag.
func MatchesLanguage(v Voice, lang string) bool {
	if strings.EqualFold(v.Locale, language.Locale(lang)) {
		return true
	}
	primary, _, _ := strings.Cut(strings.ToLower(language.Locale(lang)), "-")
	return v.Primary() == primary
}

// VoicesFor returns the voices matching lang, best first.
func VoicesFor(voices []Voice, lang string, scorer Scorer) []Voice {
	if scorer == nil {
		scorer = QualityScore
	}
	var out []Voice
	for _, v := range voices {
		if MatchesLanguage(v, lang) {
			out = append(out, v)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return scorer(out[i], lang) > scorer(out[j], lang)
	})
	return out
}

// SelectVoice picks the voice for lang. A preferred ID wins when it is
// still offered; otherwise the best-scoring match, then the first voice.
// ok is false only when voices is empty.
func SelectVoice(voices []Voice, lang, preferred string, scorer Scorer) (Voice, bool) {
	if len(voices) == 0 {
		return Voice{}, false
	}
	if preferred != "" {
		for _, v := range voices {
			if v.ID == preferred {
				return v, true
			}
		}
	}
	if ranked := VoicesFor(voices, lang, scorer); len(ranked) > 0 {
		return ranked[0], true
	}
	return voices[0], true
}

// Tier buckets a quality score.
type Tier string

const (
	TierPremium  Tier = "premium"
	TierEnhanced Tier = "enhanced"
	TierStandard Tier = "standard"
	TierBasic    Tier = "basic"
)

// TierOf returns the tier for a language-independent score.
func TierOf(score int) Tier {
	switch {
	case score >= 50:
		return TierPremium
	case score >= 30:
		return TierEnhanced
	case score >= 15:
		return TierStandard
	default:
		return TierBasic
	}
}

// VoiceStats summarizes an engine's voices.
type VoiceStats struct {
	Total      int            `json:"totalVoices"`
	ByLanguage map[string]int `json:"voicesByLanguage"`
	Quality    map[Tier]int   `json:"qualityDistribution"`
	Local      int            `json:"local"`
	Remote     int            `json:"remote"`
}

// Stats computes VoiceStats over voices for every supported language.
func Stats(voices []Voice) VoiceStats {
	s := VoiceStats{
		Total:      len(voices),
		ByLanguage: make(map[string]int),
		Quality:    map[Tier]int{TierPremium: 0, TierEnhanced: 0, TierStandard: 0, TierBasic: 0},
	}
	for _, info := range language.All() {
		s.ByLanguage[info.Code] = len(VoicesFor(voices, info.Code, QualityScore))
	}
	for _, v := range voices {
		s.Quality[TierOf(QualityScore(v, ""))]++
		if v.LocalService {
			s.Local++
		} else {
			s.Remote++
		}
	}
	return s
}

// DisplayName returns a friendlier label for v.
func DisplayName(v Voice) string {
	name := v.Name
	for _, vendor := range []string{"Google", "Microsoft", "Amazon", "Speechify"} {
		if len(name) >= len(vendor) && strings.EqualFold(name[:len(vendor)], vendor) {
			name = strings.TrimSpace(name[len(vendor):])
			break
		}
	}
	if i := strings.Index(name, " ("); i >= 0 && strings.HasSuffix(name, ")") {
		name = name[:i]
	}
	if i := strings.Index(name, " -"); i >= 0 {
		name = name[:i]
	}

	lower := strings.ToLower(v.Name)
	switch {
	case strings.Contains(lower, "neural") || strings.Contains(lower, "premium"):
		name += " (Premium)"
	case strings.Contains(lower, "enhanced") || strings.Contains(lower, "wavenet"):
		name += " (Enhanced)"
	case strings.Contains(lower, "natural"):
		name += " (Natural)"
	}
	if !strings.Contains(name, "Indian") && strings.Contains(v.Locale, "IN") {
		name += " (Indian)"
	}
	return name
}
