package transcript

// Analytics is an aggregate snapshot over a set of sessions.
type Analytics struct {
	TotalConversations          int            `json:"totalConversations"`
	TotalMessages               int            `json:"totalMessages"`
	TotalUserMessages           int            `json:"totalUserMessages"`
	TotalBotMessages            int            `json:"totalBotMessages"`
	AverageConversationDuration float64        `json:"averageConversationDuration"`
	AverageConfidence           float64        `json:"averageConfidence"`
	LanguageBreakdown           map[string]int `json:"languageBreakdown"`
	DailyActivity               map[string]int `json:"dailyActivity"`
	ErrorCount                  int            `json:"errorCount"`
	CommonErrors                map[string]int `json:"commonErrors"`
}

// Analytics aggregates the sessions matching f. Averages skip sessions
// with no recorded duration or confidence.
func (l *Logger) Analytics(f Filter) Analytics {
	sessions := l.Filter(f)

	a := Analytics{
		TotalConversations: len(sessions),
		LanguageBreakdown:  make(map[string]int),
		DailyActivity:      make(map[string]int),
		CommonErrors:       make(map[string]int),
	}

	var durSum, confSum float64
	var durN, confN int
	for _, s := range sessions {
		a.TotalMessages += s.Stats.TotalMessages
		a.TotalUserMessages += s.Stats.TotalUserMessages
		a.TotalBotMessages += s.Stats.TotalBotMessages

		if d := s.Stats.ConversationDuration; d > 0 {
			durSum += float64(d)
			durN++
		}
		if c := s.Stats.AverageConfidence; c > 0 {
			confSum += c
			confN++
		}
		for _, lang := range s.Stats.LanguagesUsed {
			a.LanguageBreakdown[lang]++
		}
		a.DailyActivity[s.StartTime.UTC().Format("2006-01-02")]++

		for _, m := range s.Messages {
			if m.Type != TypeError {
				continue
			}
			a.ErrorCount++
			ctx := "unknown"
			if m.Error != nil && m.Error.Context != "" {
				ctx = m.Error.Context
			}
			a.CommonErrors[ctx]++
		}
	}
	if durN > 0 {
		a.AverageConversationDuration = durSum / float64(durN)
	}
	if confN > 0 {
		a.AverageConfidence = confSum / float64(confN)
	}
	return a
}
