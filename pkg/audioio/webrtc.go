package audioio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v3"
	"gopkg.in/hraban/opus.v2"
)

const (
	opusSampleRate = 48000
	// maxOpusFrame is 120ms at 48kHz, the longest Opus frame.
	maxOpusFrame = 5760
)

// DefaultICEServers is used when NewWebRTCSource gets none.
var DefaultICEServers = []webrtc.ICEServer{{URLs: []string{"stun:stun.l.google.com:19302"}}}

type opusDecoder interface {
	Decode(data []byte, pcm []int16) (int, error)
}

// WebRTCSource receives the browser microphone as an Opus track, decodes
// it and delivers mono PCM16 at the configured rate.
type WebRTCSource struct {
	cfg        Config
	logger     *slog.Logger
	iceServers []webrtc.ICEServer
	newDecoder func() (opusDecoder, error)

	mu      sync.Mutex
	pc      *webrtc.PeerConnection
	running bool
	closed  bool
	ch      chan AudioChunk

	connected  atomic.Bool
	chunksRead atomic.Int64
	dropped    atomic.Int64
}

// NewWebRTCSource creates a source with no peer attached yet. Call Answer
// with the browser's offer to attach one.
func NewWebRTCSource(cfg Config, logger *slog.Logger, iceServers ...webrtc.ICEServer) *WebRTCSource {
	if logger == nil {
		logger = slog.Default()
	}
	if len(iceServers) == 0 {
		iceServers = DefaultICEServers
	}
	return &WebRTCSource{
		cfg:        cfg,
		logger:     logger.With("component", "audioio.webrtc"),
		iceServers: iceServers,
		newDecoder: func() (opusDecoder, error) { return opus.NewDecoder(opusSampleRate, 1) },
	}
}

// Answer accepts an SDP offer from the browser, replacing any previous
// peer, and returns the answer once ICE gathering completes.
func (s *WebRTCSource) Answer(ctx context.Context, offer webrtc.SessionDescription) (*webrtc.SessionDescription, error) {
	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{ICEServers: s.iceServers})
	if err != nil {
		return nil, fmt.Errorf("create peer connection: %w", err)
	}
	if _, err := pc.AddTransceiverFromKind(webrtc.RTPCodecTypeAudio, webrtc.RTPTransceiverInit{
		Direction: webrtc.RTPTransceiverDirectionRecvonly,
	}); err != nil {
		pc.Close()
		return nil, fmt.Errorf("add audio transceiver: %w", err)
	}

	pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		if track.Kind() != webrtc.RTPCodecTypeAudio {
			return
		}
		s.logger.Info("microphone track attached", "codec", track.Codec().MimeType)
		go s.readTrack(track)
	})
	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		s.logger.Info("peer connection state", "state", state.String())
		switch state {
		case webrtc.PeerConnectionStateConnected:
			s.connected.Store(true)
		case webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateClosed, webrtc.PeerConnectionStateDisconnected:
			s.connected.Store(false)
		}
	})

	if err := pc.SetRemoteDescription(offer); err != nil {
		pc.Close()
		return nil, fmt.Errorf("set remote description: %w", err)
	}
	answer, err := pc.CreateAnswer(nil)
	if err != nil {
		pc.Close()
		return nil, fmt.Errorf("create answer: %w", err)
	}
	gathered := webrtc.GatheringCompletePromise(pc)
	if err := pc.SetLocalDescription(answer); err != nil {
		pc.Close()
		return nil, fmt.Errorf("set local description: %w", err)
	}
	select {
	case <-gathered:
	case <-ctx.Done():
		pc.Close()
		return nil, ctx.Err()
	}

	s.mu.Lock()
	prev := s.pc
	s.pc = pc
	s.mu.Unlock()
	if prev != nil {
		prev.Close()
	}
	return pc.LocalDescription(), nil
}

func (s *WebRTCSource) readTrack(track *webrtc.TrackRemote) {
	dec, err := s.newDecoder()
	if err != nil {
		s.logger.Error("failed to create opus decoder", "error", err)
		return
	}
	frame := make([]int16, maxOpusFrame)
	for {
		pkt, _, err := track.ReadRTP()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.logger.Warn("microphone track ended", "error", err)
			}
			return
		}
		s.handlePacket(dec, pkt, frame)
	}
}

// handlePacket decodes one RTP packet and delivers it while running.
func (s *WebRTCSource) handlePacket(dec opusDecoder, pkt *rtp.Packet, frame []int16) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}

	n, err := dec.Decode(pkt.Payload, frame)
	if err != nil {
		s.dropped.Add(1)
		s.logger.Debug("opus decode failed", "seq", pkt.SequenceNumber, "error", err)
		return
	}
	samples := Resample(append([]int16(nil), frame[:n]...), opusSampleRate, s.cfg.SampleRate)
	select {
	case s.ch <- AudioChunk{Samples: samples, SampleRate: s.cfg.SampleRate, Channels: 1}:
	default:
		s.dropped.Add(1)
	}
}

// Start begins delivering decoded audio.
func (s *WebRTCSource) Start(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return io.ErrClosedPipe
	}
	if s.running {
		return nil
	}
	s.running = true
	s.ch = make(chan AudioChunk, 500)
	return nil
}

// Stop halts delivery. The peer connection stays up.
func (s *WebRTCSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return nil
	}
	s.running = false
	close(s.ch)
	return nil
}

// Read returns the next decoded chunk.
func (s *WebRTCSource) Read(ctx context.Context) (AudioChunk, error) {
	s.mu.Lock()
	ch := s.ch
	s.mu.Unlock()
	if ch == nil {
		return AudioChunk{}, io.EOF
	}
	select {
	case <-ctx.Done():
		return AudioChunk{}, ctx.Err()
	case chunk, ok := <-ch:
		if !ok {
			return AudioChunk{}, io.EOF
		}
		s.chunksRead.Add(1)
		return chunk, nil
	}
}

// Ready reports whether a browser peer is connected.
func (s *WebRTCSource) Ready() bool { return s.connected.Load() }

// Config returns the audio configuration.
func (s *WebRTCSource) Config() Config { return s.cfg }

// Name returns "webrtc".
func (s *WebRTCSource) Name() string { return string(BackendWebRTC) }

// Close tears down the peer connection.
func (s *WebRTCSource) Close() error {
	s.Stop()
	s.mu.Lock()
	s.closed = true
	pc := s.pc
	s.pc = nil
	s.mu.Unlock()
	s.connected.Store(false)
	if pc != nil {
		return pc.Close()
	}
	return nil
}

// Stats returns source statistics.
func (s *WebRTCSource) Stats() SourceStats {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()
	return SourceStats{
		ChunksRead: s.chunksRead.Load(),
		Dropped:    s.dropped.Load(),
		Running:    running,
		Backend:    s.Name(),
	}
}

var _ Source = (*WebRTCSource)(nil)
