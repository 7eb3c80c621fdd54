// Package protocol defines the WebSocket messages exchanged with the
// browser. Two channels share the same envelope: the bridge, which relays
// speech capture and playback to the browser's own engines, and the event
// stream, which reports orchestrator activity to observers.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"
)

// MessageType identifies the type of WebSocket message
type MessageType string

const (
	// Server → browser (bridge)
	TypeSTTStart         MessageType = "stt.start"
	TypeSTTStop          MessageType = "stt.stop"
	TypeTTSSpeak         MessageType = "tts.speak"
	TypeTTSStop          MessageType = "tts.stop"
	TypeTTSPause         MessageType = "tts.pause"
	TypeTTSResume        MessageType = "tts.resume"
	TypeTTSVoicesRequest MessageType = "tts.voices.request"
	TypeTTSAudio         MessageType = "tts.audio" // server-synthesized audio to play

	// Browser → server (bridge)
	TypeSTTResult  MessageType = "stt.result"
	TypeSTTError   MessageType = "stt.error"
	TypeSTTStarted MessageType = "stt.started"
	TypeSTTEnded   MessageType = "stt.ended"
	TypeTTSStarted MessageType = "tts.started"
	TypeTTSEnded   MessageType = "tts.ended"
	TypeTTSError   MessageType = "tts.error"
	TypeTTSPaused  MessageType = "tts.paused"
	TypeTTSResumed MessageType = "tts.resumed"
	TypeTTSVoices  MessageType = "tts.voices"
	TypeCaps       MessageType = "caps" // sent once after connecting

	// Server → observers (event stream)
	TypeState         MessageType = "state"
	TypeTranscription MessageType = "transcription"
	TypeResponse      MessageType = "response"
	TypeError         MessageType = "error"
	TypeLanguage      MessageType = "language"

	// Bidirectional
	TypePing MessageType = "ping"
	TypePong MessageType = "pong"
)

// Message is the base wrapper for all WebSocket messages
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp int64           `json:"ts,omitempty"` // Unix milliseconds
	Data      json.RawMessage `json:"data,omitempty"`
}

// NewMessage creates a new message with the current timestamp
func NewMessage(msgType MessageType, data any) (*Message, error) {
	var rawData json.RawMessage
	if data != nil {
		var err error
		rawData, err = json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal message data: %w", err)
		}
	}

	return &Message{
		Type:      msgType,
		Timestamp: time.Now().UnixMilli(),
		Data:      rawData,
	}, nil
}

// ParseData unmarshals the message data into v. A message without data
// leaves v untouched.
func (m *Message) ParseData(v any) error {
	if len(m.Data) == 0 {
		return nil
	}
	return json.Unmarshal(m.Data, v)
}

// Bytes returns the JSON-encoded message
func (m *Message) Bytes() ([]byte, error) {
	return json.Marshal(m)
}

// ParseMessage parses a JSON message from bytes
func ParseMessage(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}
	if msg.Type == "" {
		return nil, fmt.Errorf("failed to parse message: missing type")
	}
	return &msg, nil
}

// Decode extracts a typed payload from m.
func Decode[T any](m *Message) (*T, error) {
	var v T
	if err := m.ParseData(&v); err != nil {
		return nil, fmt.Errorf("decode %s: %w", m.Type, err)
	}
	return &v, nil
}

// =============================================================================
// Bridge payloads
// =============================================================================

// STTStart asks the browser to begin continuous recognition.
type STTStart struct {
	Language        string `json:"language"`
	Locale          string `json:"locale"` // BCP-47, e.g. "hi-IN"
	Continuous      bool   `json:"continuous"`
	InterimResults  bool   `json:"interim_results"`
	MaxAlternatives int    `json:"max_alternatives"`
}

// Alternative is one recognition hypothesis.
type Alternative struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// STTResult is a recognition event from the browser.
type STTResult struct {
	Final        string        `json:"final"`
	Interim      string        `json:"interim"`
	Confidence   float64       `json:"confidence"`
	Alternatives []Alternative `json:"alternatives,omitempty"`
	IsFinal      bool          `json:"is_final"`
}

// ErrorData reports a browser-side failure. Kind carries the engine's
// error code, e.g. "no-speech" or "not-allowed".
type ErrorData struct {
	ID      string `json:"id,omitempty"`
	Kind    string `json:"kind"`
	Message string `json:"message,omitempty"`
}

// TTSSpeak asks the browser to speak an utterance.
type TTSSpeak struct {
	ID       string  `json:"id"`
	Text     string  `json:"text"`
	Language string  `json:"language"`
	Locale   string  `json:"locale"`
	Voice    string  `json:"voice,omitempty"`
	Rate     float64 `json:"rate"`
	Pitch    float64 `json:"pitch"`
	Volume   float64 `json:"volume"`
}

// TTSEvent reports a lifecycle change of an utterance.
type TTSEvent struct {
	ID string `json:"id"`
}

// TTSAudio carries synthesized audio for the browser to play.
type TTSAudio struct {
	ID         string `json:"id"`
	Format     string `json:"format"` // "mp3", "pcm16"
	SampleRate int    `json:"sample_rate"`
	Data       string `json:"data"` // base64 encoded
}

// VoiceInfo describes one browser voice.
type VoiceInfo struct {
	Name         string `json:"name"`
	Lang         string `json:"lang"`
	VoiceURI     string `json:"voice_uri,omitempty"`
	LocalService bool   `json:"local_service"`
	Default      bool   `json:"default,omitempty"`
}

// VoicesData lists the browser's voices.
type VoicesData struct {
	Voices []VoiceInfo `json:"voices"`
}

// Caps reports what the browser can do.
type Caps struct {
	Recognition bool   `json:"recognition"`
	Synthesis   bool   `json:"synthesis"`
	UserAgent   string `json:"user_agent,omitempty"`
	Locale      string `json:"locale,omitempty"`
}

// =============================================================================
// Event stream payloads
// =============================================================================

// StateData reports an orchestrator transition.
type StateData struct {
	State    string `json:"state"`
	Previous string `json:"previous"`
	Language string `json:"language"`
}

// TranscriptionData reports interim and final transcripts.
type TranscriptionData struct {
	Text       string  `json:"text"`
	Language   string  `json:"language"`
	Confidence float64 `json:"confidence"`
	IsFinal    bool    `json:"is_final"`
}

// ResponseData reports a gateway answer.
type ResponseData struct {
	Query     string `json:"query"`
	Response  string `json:"response"`
	Language  string `json:"language"`
	Provider  string `json:"provider"`
	Fallback  bool   `json:"fallback,omitempty"`
	LatencyMs int64  `json:"latency_ms"`
}

// ErrorEvent reports a localized user-facing error.
type ErrorEvent struct {
	Kind     string `json:"kind"`
	Message  string `json:"message"`
	Language string `json:"language"`
}

// LanguageData reports a change of the active language.
type LanguageData struct {
	Language string `json:"language"`
	Previous string `json:"previous"`
	Auto     bool   `json:"auto"`
}

// =============================================================================
// Bidirectional Message Types
// =============================================================================

// PingData contains ping information
type PingData struct {
	ID        string `json:"id"`
	Timestamp int64  `json:"ts"`
}

// PongData contains pong response
type PongData struct {
	ID        string `json:"id"`
	PingTS    int64  `json:"ping_ts"`
	PongTS    int64  `json:"pong_ts"`
	LatencyMs int64  `json:"latency_ms"`
}
