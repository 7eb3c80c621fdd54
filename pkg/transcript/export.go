package transcript

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// Format is an export format.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
	FormatTXT  Format = "txt"
)

// ParseFormat maps a string to a Format. The empty string means JSON.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatJSON:
		return FormatJSON, nil
	case FormatCSV:
		return FormatCSV, nil
	case FormatTXT, "text":
		return FormatTXT, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

// ContentType returns the MIME type for f.
func (f Format) ContentType() string {
	switch f {
	case FormatCSV:
		return "text/csv; charset=utf-8"
	case FormatTXT:
		return "text/plain; charset=utf-8"
	}
	return "application/json"
}

// timeLayout renders timestamps in exports.
const timeLayout = "2006-01-02T15:04:05.000Z07:00"

// Export is the JSON projection of a set of sessions.
type Export struct {
	ExportDate         time.Time  `json:"exportDate"`
	TotalConversations int        `json:"totalConversations"`
	Filter             Filter     `json:"filter"`
	Conversations      []*Session `json:"conversations"`
}

// Export writes the sessions matching f to w in the given format.
func (l *Logger) Export(w io.Writer, format Format, f Filter) error {
	data := Export{
		ExportDate:    l.config.Now(),
		Filter:        f,
		Conversations: l.Filter(f),
	}
	data.TotalConversations = len(data.Conversations)

	switch format {
	case FormatJSON, "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	case FormatCSV:
		return writeCSV(w, data)
	case FormatTXT:
		return writeTXT(w, data)
	}
	return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
}

// ExportString is Export into a string.
func (l *Logger) ExportString(format Format, f Filter) (string, error) {
	var buf bytes.Buffer
	if err := l.Export(&buf, format, f); err != nil {
		return "", err
	}
	return buf.String(), nil
}

var csvHeader = []string{"Session ID", "Start Time", "End Time", "Duration (ms)", "User Messages", "Bot Messages", "Languages", "Avg Confidence"}

func writeCSV(w io.Writer, data Export) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, s := range data.Conversations {
		end := "N/A"
		if s.EndTime != nil {
			end = s.EndTime.Format(timeLayout)
		}
		row := []string{
			s.ID,
			s.StartTime.Format(timeLayout),
			end,
			strconv.FormatInt(s.Stats.ConversationDuration, 10),
			strconv.Itoa(s.Stats.TotalUserMessages),
			strconv.Itoa(s.Stats.TotalBotMessages),
			strings.Join(s.Stats.LanguagesUsed, ";"),
			strconv.FormatFloat(s.Stats.AverageConfidence, 'f', 2, 64),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func writeTXT(w io.Writer, data Export) error {
	var b strings.Builder
	b.WriteString("Voice Assistant Conversation Export\n")
	fmt.Fprintf(&b, "Export Date: %s\n", data.ExportDate.Format(timeLayout))
	fmt.Fprintf(&b, "Total Conversations: %d\n\n", data.TotalConversations)

	for i, s := range data.Conversations {
		end := "Ongoing"
		if s.EndTime != nil {
			end = s.EndTime.Format(timeLayout)
		}
		fmt.Fprintf(&b, "=== Conversation %d ===\n", i+1)
		fmt.Fprintf(&b, "Session ID: %s\n", s.ID)
		fmt.Fprintf(&b, "Start: %s\n", s.StartTime.Format(timeLayout))
		fmt.Fprintf(&b, "End: %s\n", end)
		fmt.Fprintf(&b, "Languages: %s\n", strings.Join(s.Stats.LanguagesUsed, ", "))
		fmt.Fprintf(&b, "Messages: %d\n\n", s.Stats.TotalMessages)

		for _, m := range s.Messages {
			fmt.Fprintf(&b, "[%s] %s: ", m.Timestamp.Format(timeLayout), strings.ToUpper(string(m.Type)))
			switch {
			case m.UserInput != nil:
				fmt.Fprintf(&b, "%q (%s, %.1f%%)\n", m.UserInput.Transcript, m.UserInput.Language, m.UserInput.Confidence*100)
			case m.AIResponse != nil:
				fmt.Fprintf(&b, "%q (%s)\n", m.AIResponse.Response, m.AIResponse.Language)
			case m.TTSPlayback != nil:
				fmt.Fprintf(&b, "%q (%s, %s)\n", m.TTSPlayback.Text, m.TTSPlayback.Language, m.TTSPlayback.Voice)
			case m.Error != nil:
				fmt.Fprintf(&b, "%s\n", m.Error.Message)
			default:
				b.WriteString("\n")
			}
		}
		b.WriteString("\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}
