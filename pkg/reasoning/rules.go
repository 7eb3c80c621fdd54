package reasoning

import (
	"context"
	"fmt"
	"strings"

	"github.com/teslashibe/agrivoice/pkg/language"
)

const providerLocal = "local"

// heavyRainThreshold is the rain chance above which irrigation is discouraged.
const heavyRainThreshold = 70

var (
	rainKeywords = []string{"rain", "बारिश", "వర్షం"}
	cropKeywords = []string{"crop", "फसल", "పంట"}
)

// localized holds per-language canned answers. English is mandatory.
type localized map[string]string

func (l localized) pick(lang string) string {
	if s, ok := l[lang]; ok {
		return s
	}
	return l[language.English]
}

var (
	cropAnswers = localized{
		language.Hindi:   "इस मौसम में गेहूं और सरसों की बुआई अच्छी होगी। मिट्टी की नमी बनाए रखें।",
		language.English: "This season is good for wheat and mustard sowing. Maintain soil moisture.",
	}
	defaultAnswers = localized{
		language.Hindi:   "मैं आपकी कृषि संबंधी समस्या को समझने की कोशिश कर रहा हूँ। कृपया अधिक विवरण दें।",
		language.English: "I am trying to understand your agricultural query. Please provide more details.",
	}
)

func rainAnswer(lang string, chance int) string {
	switch lang {
	case language.Hindi:
		advice := "हल्की सिंचाई कर सकते हैं।"
		if chance > heavyRainThreshold {
			advice = "सिंचाई न करें।"
		}
		return fmt.Sprintf("हाँ, कल %d%% बारिश की संभावना है। %s", chance, advice)
	default:
		advice := "Light irrigation is okay."
		if chance > heavyRainThreshold {
			advice = "Avoid irrigation."
		}
		return fmt.Sprintf("Yes, %d%% chance of rain tomorrow. %s", chance, advice)
	}
}

// Rules answers from a small keyword table. It never fails and needs no
// network, which makes it the terminal fallback of a Gateway.
type Rules struct{}

// NewRules creates the local rule provider.
func NewRules() *Rules { return &Rules{} }

// Name implements Provider.
func (r *Rules) Name() string { return providerLocal }

// Answer returns the canned answer for query in lang.
func (r *Rules) Answer(req *Request) string {
	q := strings.ToLower(req.Query)

	if containsAny(q, rainKeywords) {
		if today, ok := req.Weather.Today(); ok {
			return rainAnswer(req.Language, today.Day.DailyChanceOfRain)
		}
	}
	if containsAny(q, cropKeywords) {
		return cropAnswers.pick(req.Language)
	}
	return defaultAnswers.pick(req.Language)
}

// Generate implements Provider.
func (r *Rules) Generate(_ context.Context, req *Request) (*Completion, error) {
	return &Completion{
		Text:         r.Answer(req),
		Provider:     providerLocal,
		Model:        "rules",
		FinishReason: "stop",
	}, nil
}

// Health implements Provider.
func (r *Rules) Health(context.Context) error { return nil }

// Close implements Provider.
func (r *Rules) Close() error { return nil }

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

var _ Provider = (*Rules)(nil)
