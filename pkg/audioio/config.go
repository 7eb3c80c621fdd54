// Package audioio moves raw speech audio between the browser and the
// server-side speech engines. Sources deliver PCM16 chunks captured from
// the user; sinks play synthesized clips back.
//
// Backends:
//   - WebRTC: the browser streams its microphone as Opus over a peer connection
//   - Mock: scripted audio for tests
package audioio

import (
	"fmt"
	"time"
)

// Backend represents the audio backend type.
type Backend string

const (
	// BackendWebRTC receives microphone audio over WebRTC.
	BackendWebRTC Backend = "webrtc"
	// BackendMock uses a scripted implementation for testing.
	BackendMock Backend = "mock"
)

// Config holds audio configuration.
type Config struct {
	Backend Backend `json:"backend"`

	// SampleRate is the rate chunks are delivered at.
	// Default: 16000, what the recognizers expect
	SampleRate int `json:"sample_rate"`

	// Channels is the number of audio channels. Default: 1
	Channels int `json:"channels"`

	// BufferDuration is the size of delivered chunks.
	// Default: 20ms, one Opus frame
	BufferDuration time.Duration `json:"buffer_duration"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Backend:        BackendWebRTC,
		SampleRate:     16000,
		Channels:       1,
		BufferDuration: 20 * time.Millisecond,
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("sample_rate must be positive, got %d", c.SampleRate)
	}
	if c.Channels <= 0 {
		return fmt.Errorf("channels must be positive, got %d", c.Channels)
	}
	if c.BufferDuration <= 0 {
		return fmt.Errorf("buffer_duration must be positive, got %v", c.BufferDuration)
	}
	return nil
}

// BufferSize returns the number of samples per buffer.
func (c *Config) BufferSize() int {
	return int(float64(c.SampleRate) * c.BufferDuration.Seconds())
}
