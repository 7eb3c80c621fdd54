package reasoning

import (
	"fmt"
	"strings"

	"github.com/teslashibe/agrivoice/pkg/language"
	"github.com/teslashibe/agrivoice/pkg/weather"
)

// Persona is the fixed agricultural-advisor system prompt.
const Persona = `You are an expert agricultural advisor specializing in Indian farming practices.
You have deep knowledge of:
- Indian crops (rice, wheat, cotton, sugarcane, etc.)
- Weather patterns and seasonal farming
- Pest and disease management
- Soil health and fertilizers
- Irrigation techniques
- Crop yields and market prices
- Government schemes for farmers

Always provide practical, actionable advice suitable for Indian farmers.
Keep responses concise but informative.
When discussing weather, mention specific timelines and probabilities.
Include local agricultural practices when relevant.`

// LanguageName returns the English name used to instruct the model.
// Unknown codes fall back to Hindi.
func LanguageName(code string) string {
	if info, ok := language.Lookup(code); ok {
		return info.Name
	}
	return "Hindi"
}

// BuildSystemPrompt combines the persona, the response language and the
// weather context.
func BuildSystemPrompt(lang string, report *weather.Report) string {
	var b strings.Builder
	b.WriteString(Persona)
	fmt.Fprintf(&b, "\n\nRespond in %s language.", LanguageName(lang))
	if ctx := WeatherContext(report); ctx != "" {
		b.WriteString("\n\n")
		b.WriteString(ctx)
	}
	return b.String()
}

// WeatherContext renders a report as prompt text. A nil report renders "".
func WeatherContext(report *weather.Report) string {
	if report == nil {
		return ""
	}
	upcoming, rain := "Not available", 0
	if today, ok := report.Today(); ok {
		upcoming = today.Day.Condition.Text
		rain = today.Day.DailyChanceOfRain
	}
	return fmt.Sprintf("Current weather context:\nTemperature: %g°C\nHumidity: %g%%\nCondition: %s\nUpcoming forecast: %s\nRain probability: %d%%",
		report.Current.TempC, report.Current.Humidity, report.Current.Condition.Text, upcoming, rain)
}

// userPrompt is the single-turn text sent to providers that take no
// separate system message.
func userPrompt(req *Request) string {
	return fmt.Sprintf("%s\n\nFarmer's question: %s\n\nProvide a helpful, practical response in %s.",
		req.System, req.Query, LanguageName(req.Language))
}
