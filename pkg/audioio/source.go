package audioio

import (
	"context"
	"io"
	"time"
)

// AudioChunk is a run of PCM16 samples.
type AudioChunk struct {
	Samples    []int16
	SampleRate int
	Channels   int
}

// Bytes returns the samples as little-endian PCM16.
func (c *AudioChunk) Bytes() []byte {
	return SamplesToBytes(c.Samples)
}

// Duration returns the duration of this audio chunk.
func (c *AudioChunk) Duration() time.Duration {
	if c.SampleRate == 0 || c.Channels == 0 {
		return 0
	}
	return time.Duration(len(c.Samples)) * time.Second / time.Duration(c.SampleRate*c.Channels)
}

// Source captures the user's speech.
type Source interface {
	// Start begins delivering chunks. Audio arriving before Start is dropped.
	Start(ctx context.Context) error

	// Stop halts delivery. It is safe to call Stop multiple times.
	Stop() error

	// Read returns the next chunk, blocking if necessary.
	// Returns io.EOF once the source is stopped.
	Read(ctx context.Context) (AudioChunk, error)

	// Ready reports whether audio can currently be captured.
	Ready() bool

	Config() Config
	Name() string

	// Close releases all resources.
	io.Closer
}

// SourceStats contains statistics about the audio source.
type SourceStats struct {
	ChunksRead int64  `json:"chunks_read"`
	Dropped    int64  `json:"dropped"`
	Running    bool   `json:"running"`
	Backend    string `json:"backend"`
}
