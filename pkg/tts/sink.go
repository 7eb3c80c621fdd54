package tts

import (
	"context"
	"errors"
	"log/slog"

	"github.com/teslashibe/agrivoice/pkg/audioio"
	"github.com/teslashibe/agrivoice/pkg/bridge"
	"github.com/teslashibe/agrivoice/pkg/protocol"
)

// BridgeSink plays server-synthesized clips in the browser. Play sends the
// audio and blocks until the browser reports the clip ended.
type BridgeSink struct {
	transport bridge.Transport
	tracker   tracker
	logger    *slog.Logger
}

// NewBridgeSink creates a sink on t.
func NewBridgeSink(t bridge.Transport, logger *slog.Logger) *BridgeSink {
	if logger == nil {
		logger = slog.Default()
	}
	s := &BridgeSink{transport: t, logger: logger.With("component", "tts.bridge_sink")}
	s.tracker.subscribe(t)
	return s
}

// Play implements audioio.Sink.
func (s *BridgeSink) Play(ctx context.Context, clip audioio.Clip) error {
	done := s.tracker.begin(clip.ID, nil)
	err := s.transport.Send(protocol.TypeTTSAudio,
		protocol.NewTTSAudio(clip.ID, clip.Data, clip.Format, clip.SampleRate))
	if err != nil {
		s.tracker.finish(clip.ID, err)
		return err
	}
	err = s.tracker.wait(ctx, clip.ID, done)
	if errors.Is(err, ErrInterrupted) {
		_ = s.transport.Send(protocol.TypeTTSStop, nil)
		return audioio.ErrInterrupted
	}
	return err
}

// Stop implements audioio.Sink.
func (s *BridgeSink) Stop() error {
	if s.tracker.finish("", ErrInterrupted) {
		return s.transport.Send(protocol.TypeTTSStop, nil)
	}
	return nil
}

// Pause implements audioio.Sink.
func (s *BridgeSink) Pause() error { return s.transport.Send(protocol.TypeTTSPause, nil) }

// Resume implements audioio.Sink.
func (s *BridgeSink) Resume() error { return s.transport.Send(protocol.TypeTTSResume, nil) }

// Name returns "bridge".
func (s *BridgeSink) Name() string { return "bridge" }

var _ audioio.Sink = (*BridgeSink)(nil)
