package protocol

import (
	"encoding/base64"
	"time"
)

// =============================================================================
// Helper functions for creating payloads and messages
// =============================================================================

// NewSTTStart asks for continuous recognition with interim results.
func NewSTTStart(language, locale string, maxAlternatives int) STTStart {
	return STTStart{
		Language:        language,
		Locale:          locale,
		Continuous:      true,
		InterimResults:  true,
		MaxAlternatives: maxAlternatives,
	}
}

// NewTTSAudio wraps synthesized audio for browser playback
func NewTTSAudio(id string, audio []byte, format string, sampleRate int) TTSAudio {
	return TTSAudio{
		ID:         id,
		Format:     format,
		SampleRate: sampleRate,
		Data:       base64.StdEncoding.EncodeToString(audio),
	}
}

// NewPongMessage creates a pong response message
func NewPongMessage(id string, pingTS, pongTS int64) (*Message, error) {
	return NewMessage(TypePong, PongData{
		ID:        id,
		PingTS:    pingTS,
		PongTS:    pongTS,
		LatencyMs: pongTS - pingTS,
	})
}

// Pong answers a ping message.
func Pong(ping *Message) (*Message, error) {
	p, err := Decode[PingData](ping)
	if err != nil {
		return nil, err
	}
	return NewPongMessage(p.ID, p.Timestamp, time.Now().UnixMilli())
}

// =============================================================================
// Helper functions for parsing messages
// =============================================================================

// GetSTTResult extracts a recognition result from a message
func (m *Message) GetSTTResult() (*STTResult, error) {
	return Decode[STTResult](m)
}

// GetErrorData extracts a browser error from a message
func (m *Message) GetErrorData() (*ErrorData, error) {
	return Decode[ErrorData](m)
}

// GetTTSEvent extracts an utterance event from a message
func (m *Message) GetTTSEvent() (*TTSEvent, error) {
	return Decode[TTSEvent](m)
}

// GetVoices extracts the voice list from a message
func (m *Message) GetVoices() (*VoicesData, error) {
	return Decode[VoicesData](m)
}
