package transcript

import (
	"time"

	"github.com/teslashibe/agrivoice/pkg/weather"
)

// MessageType tags the payload carried by a Message.
type MessageType string

const (
	TypeUserInput   MessageType = "user_input"
	TypeAIResponse  MessageType = "ai_response"
	TypeTTSPlayback MessageType = "tts_playback"
	TypeError       MessageType = "error"
)

// UnknownLanguage is recorded when a message carries no language.
const UnknownLanguage = "unknown"

// Metadata describes the client that opened a session.
type Metadata struct {
	Locale    string            `json:"locale,omitempty"`
	Location  string            `json:"location"`
	UserAgent string            `json:"userAgent,omitempty"`
	Extra     map[string]string `json:"extra,omitempty"`
}

// Stats are maintained incrementally as messages arrive and finalized when
// the session ends.
type Stats struct {
	TotalMessages        int      `json:"totalMessages"`
	TotalUserMessages    int      `json:"totalUserMessages"`
	TotalBotMessages     int      `json:"totalBotMessages"`
	AverageConfidence    float64  `json:"averageConfidence"`
	LanguagesUsed        []string `json:"languagesUsed"`
	ConversationDuration int64    `json:"conversationDuration"`

	ConfidenceSum   float64 `json:"confidenceSum"`
	ConfidenceCount int     `json:"confidenceCount"`
}

// Session is one conversation. EndTime is nil while it is open.
type Session struct {
	ID        string     `json:"id"`
	UserID    string     `json:"userId"`
	StartTime time.Time  `json:"startTime"`
	EndTime   *time.Time `json:"endTime"`
	Metadata  Metadata   `json:"metadata"`
	Messages  []Message  `json:"messages"`
	Stats     Stats      `json:"stats"`
}

// Open reports whether the session has not been ended.
func (s *Session) Open() bool { return s.EndTime == nil }

// HasLanguage reports whether lang was used in the session.
func (s *Session) HasLanguage(lang string) bool {
	for _, l := range s.Stats.LanguagesUsed {
		if l == lang {
			return true
		}
	}
	return false
}

func (s *Session) clone() *Session {
	c := *s
	c.Messages = append([]Message(nil), s.Messages...)
	c.Stats.LanguagesUsed = append([]string(nil), s.Stats.LanguagesUsed...)
	if s.EndTime != nil {
		end := *s.EndTime
		c.EndTime = &end
	}
	if s.Metadata.Extra != nil {
		c.Metadata.Extra = make(map[string]string, len(s.Metadata.Extra))
		for k, v := range s.Metadata.Extra {
			c.Metadata.Extra[k] = v
		}
	}
	return &c
}

// Alternative is one recognition hypothesis.
type Alternative struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// UserInput is a final user utterance or typed query.
type UserInput struct {
	Transcript        string        `json:"transcript"`
	InterimTranscript string        `json:"interimTranscript,omitempty"`
	Confidence        float64       `json:"confidence"`
	Language          string        `json:"language"`
	Alternatives      []Alternative `json:"alternatives,omitempty"`
	Method            string        `json:"recognitionMethod,omitempty"`
	ProcessingTimeMs  int64         `json:"processingTime,omitempty"`
}

// AIResponse is an answer from the reasoning gateway.
type AIResponse struct {
	Response   string          `json:"response"`
	Query      string          `json:"query"`
	Language   string          `json:"language"`
	Weather    *weather.Report `json:"weather"`
	Provider   string          `json:"aiService,omitempty"`
	Fallback   bool            `json:"fallback,omitempty"`
	LatencyMs  int64           `json:"processingTime,omitempty"`
	TokensUsed int             `json:"tokensUsed,omitempty"`
}

// TTSPlayback records one spoken response.
type TTSPlayback struct {
	Text       string  `json:"text"`
	Language   string  `json:"language"`
	Voice      string  `json:"voice"`
	Rate       float64 `json:"rate"`
	Pitch      float64 `json:"pitch"`
	Volume     float64 `json:"volume"`
	DurationMs int64   `json:"duration"`
}

// ErrorEntry records a failure somewhere in the pipeline.
type ErrorEntry struct {
	Message   string `json:"error"`
	Context   string `json:"context"`
	Component string `json:"component"`
	Severity  string `json:"severity"`
}

// Message is one logged event. Exactly one payload pointer is set,
// matching Type.
type Message struct {
	ID        string      `json:"id"`
	SessionID string      `json:"sessionId"`
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`

	UserInput   *UserInput   `json:"userInput,omitempty"`
	AIResponse  *AIResponse  `json:"aiResponse,omitempty"`
	TTSPlayback *TTSPlayback `json:"ttsPlayback,omitempty"`
	Error       *ErrorEntry  `json:"error,omitempty"`
}

// Language returns the language recorded on the payload, or "" for errors.
func (m *Message) Language() string {
	switch {
	case m.UserInput != nil:
		return m.UserInput.Language
	case m.AIResponse != nil:
		return m.AIResponse.Language
	case m.TTSPlayback != nil:
		return m.TTSPlayback.Language
	}
	return ""
}
