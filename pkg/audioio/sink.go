package audioio

import (
	"context"
	"time"
)

// Clip is one synthesized utterance ready for playback.
type Clip struct {
	ID         string
	Format     string // "mp3", "pcm16"
	SampleRate int
	Data       []byte
}

// Duration estimates the playback length of a PCM16 clip. It returns zero
// for compressed formats.
func (c Clip) Duration() time.Duration {
	if c.Format != "pcm16" || c.SampleRate == 0 {
		return 0
	}
	return time.Duration(len(c.Data)/2) * time.Second / time.Duration(c.SampleRate)
}

// Sink plays synthesized clips.
type Sink interface {
	// Play blocks until the clip finishes, fails, or ctx is cancelled.
	Play(ctx context.Context, clip Clip) error

	// Stop interrupts the clip being played, if any.
	Stop() error

	// Pause and Resume suspend the clip being played.
	Pause() error
	Resume() error

	Name() string
}
