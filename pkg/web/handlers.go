package web

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/pion/webrtc/v3"

	"github.com/teslashibe/agrivoice/pkg/language"
	"github.com/teslashibe/agrivoice/pkg/stt"
	"github.com/teslashibe/agrivoice/pkg/transcript"
	"github.com/teslashibe/agrivoice/pkg/tts"
	"github.com/teslashibe/agrivoice/pkg/voice"
)

var (
	errBadRequest  = errors.New("bad request")
	errUnavailable = errors.New("not configured")
)

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

// handleError maps domain errors to HTTP status codes.
func (s *Server) handleError(c *fiber.Ctx, err error) error {
	code := statusFor(err)
	if code >= fiber.StatusInternalServerError {
		s.logger.Error("request failed", "method", c.Method(), "path", c.Path(), "error", err)
	}
	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}

func statusFor(err error) int {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	var se *stt.Error
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, voice.ErrEmptyQuery),
		errors.Is(err, voice.ErrUnsupportedLanguage),
		errors.Is(err, tts.ErrUnsupportedLanguage),
		errors.Is(err, tts.ErrUnknownVoice),
		errors.Is(err, transcript.ErrUnknownFormat):
		return fiber.StatusBadRequest
	case errors.Is(err, voice.ErrSuperseded):
		return fiber.StatusConflict
	case errors.Is(err, transcript.ErrDailyCap):
		return fiber.StatusTooManyRequests
	case errors.Is(err, errUnavailable),
		errors.Is(err, voice.ErrUnsupported),
		errors.Is(err, tts.ErrUnsupported),
		errors.As(err, &se):
		return fiber.StatusServiceUnavailable
	}
	return fiber.StatusInternalServerError
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	out := fiber.Map{
		"status": "ok",
		"uptime": time.Since(s.started).Round(time.Second).String(),
	}
	if s.deps.Bridge != nil {
		out["bridge"] = s.deps.Bridge.GetStats()
	}
	if s.deps.Events != nil {
		out["eventClients"] = s.deps.Events.ClientCount()
	}
	return c.JSON(out)
}

// QueryRequest is the body of POST /api/query.
type QueryRequest struct {
	Text     string `json:"text"`
	Language string `json:"language,omitempty"`
}

func (s *Server) handleQuery(c *fiber.Ctx) error {
	var req QueryRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest("invalid body: %v", err)
	}
	res, err := s.deps.Orchestrator.ProcessTextQuery(c.UserContext(), req.Text, req.Language)
	if err != nil {
		return err
	}
	return c.JSON(res)
}

func (s *Server) handleVoiceStart(c *fiber.Ctx) error {
	if err := s.deps.Orchestrator.StartVoiceInteraction(); err != nil {
		return err
	}
	return c.JSON(s.deps.Orchestrator.Status())
}

func (s *Server) handleVoiceStop(c *fiber.Ctx) error {
	s.deps.Orchestrator.StopVoiceInteraction()
	return c.JSON(s.deps.Orchestrator.Status())
}

func (s *Server) handleVoiceOutput(c *fiber.Ctx) error {
	var req struct {
		Enabled *bool `json:"enabled"`
	}
	if err := c.BodyParser(&req); err != nil || req.Enabled == nil {
		return badRequest("enabled is required")
	}
	s.deps.Orchestrator.SetVoiceOutput(*req.Enabled)
	return c.JSON(s.deps.Orchestrator.Status())
}

func (s *Server) handleGetLanguage(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"language":  s.deps.Orchestrator.Status().Language,
		"supported": language.All(),
	})
}

func (s *Server) handleSetLanguage(c *fiber.Ctx) error {
	var req struct {
		Language string `json:"language"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest("invalid body: %v", err)
	}
	if err := s.deps.Orchestrator.SetLanguage(req.Language); err != nil {
		return err
	}
	return c.JSON(s.deps.Orchestrator.Status())
}

func (s *Server) handleSetLocation(c *fiber.Ctx) error {
	var req struct {
		Location string `json:"location"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest("invalid body: %v", err)
	}
	if strings.TrimSpace(req.Location) == "" {
		return badRequest("location is required")
	}
	s.deps.Orchestrator.SetLocation(req.Location)
	return c.JSON(s.deps.Orchestrator.Status())
}

func (s *Server) handleState(c *fiber.Ctx) error {
	m := s.deps.Orchestrator.Metrics()
	return c.JSON(fiber.Map{
		"status": s.deps.Orchestrator.Status(),
		"metrics": fiber.Map{
			"current": m.Current(),
			"average": m.Average(),
		},
	})
}

func (s *Server) voices() (Voices, error) {
	if s.deps.Voices == nil {
		return nil, fmt.Errorf("voices: %w", errUnavailable)
	}
	return s.deps.Voices, nil
}

func (s *Server) handleVoices(c *fiber.Ctx) error {
	v, err := s.voices()
	if err != nil {
		return err
	}
	lang := c.Query("language", s.deps.Orchestrator.Status().Language)
	if !language.IsSupported(lang) {
		return badRequest("unsupported language %q", lang)
	}
	list, err := v.VoicesFor(c.UserContext(), lang)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"language": lang, "voices": list})
}

func (s *Server) handleVoiceStats(c *fiber.Ctx) error {
	v, err := s.voices()
	if err != nil {
		return err
	}
	stats, err := v.Stats(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(stats)
}

func (s *Server) handleGetPreferences(c *fiber.Ctx) error {
	v, err := s.voices()
	if err != nil {
		return err
	}
	prefs, err := v.Preferences(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(prefs)
}

// PreferenceRequest is the body of PUT /api/voices/preference. An empty
// Voice clears the preference.
type PreferenceRequest struct {
	Language string `json:"language"`
	Voice    string `json:"voice"`
}

func (s *Server) handleSetPreference(c *fiber.Ctx) error {
	v, err := s.voices()
	if err != nil {
		return err
	}
	var req PreferenceRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest("invalid body: %v", err)
	}
	if err := v.SetPreferredVoice(c.UserContext(), req.Language, req.Voice); err != nil {
		return err
	}
	return c.JSON(req)
}

func (s *Server) transcripts() (Transcripts, error) {
	if s.deps.Transcripts == nil {
		return nil, fmt.Errorf("transcripts: %w", errUnavailable)
	}
	return s.deps.Transcripts, nil
}

// parseFilter reads language, user, from and to query parameters. Dates
// are RFC 3339 or YYYY-MM-DD; a bare "to" date covers the whole day.
func parseFilter(c *fiber.Ctx) (transcript.Filter, error) {
	f := transcript.Filter{
		Language: c.Query("language"),
		UserID:   c.Query("user"),
	}
	var err error
	if f.From, err = parseTime(c.Query("from"), false); err != nil {
		return f, badRequest("from: %v", err)
	}
	if f.To, err = parseTime(c.Query("to"), true); err != nil {
		return f, badRequest("to: %v", err)
	}
	return f, nil
}

func parseTime(v string, endOfDay bool) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.DateOnly, v)
	if err != nil {
		return time.Time{}, err
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return t, nil
}

func (s *Server) handleTranscripts(c *fiber.Ctx) error {
	tr, err := s.transcripts()
	if err != nil {
		return err
	}
	f, err := parseFilter(c)
	if err != nil {
		return err
	}
	return c.JSON(tr.Filter(f))
}

func (s *Server) handleClearTranscripts(c *fiber.Ctx) error {
	tr, err := s.transcripts()
	if err != nil {
		return err
	}
	tr.Clear()
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) handleCurrentSession(c *fiber.Ctx) error {
	tr, err := s.transcripts()
	if err != nil {
		return err
	}
	sess := tr.CurrentSession()
	if sess == nil {
		return fiber.NewError(fiber.StatusNotFound, transcript.ErrNoSession.Error())
	}
	return c.JSON(sess)
}

// SessionRequest is the body of POST /api/transcripts/session.
type SessionRequest struct {
	UserID   string            `json:"userId"`
	Locale   string            `json:"locale"`
	Location string            `json:"location"`
	Extra    map[string]string `json:"extra,omitempty"`
}

func (s *Server) handleStartSession(c *fiber.Ctx) error {
	tr, err := s.transcripts()
	if err != nil {
		return err
	}
	var req SessionRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return badRequest("invalid body: %v", err)
		}
	}
	id, err := tr.StartSession(req.UserID, transcript.Metadata{
		Locale:    req.Locale,
		Location:  req.Location,
		UserAgent: c.Get(fiber.HeaderUserAgent),
		Extra:     req.Extra,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"sessionId": id})
}

func (s *Server) handleEndSession(c *fiber.Ctx) error {
	tr, err := s.transcripts()
	if err != nil {
		return err
	}
	sess := tr.EndSession()
	if sess == nil {
		return fiber.NewError(fiber.StatusNotFound, transcript.ErrNoSession.Error())
	}
	return c.JSON(sess)
}

func (s *Server) handleExport(c *fiber.Ctx) error {
	tr, err := s.transcripts()
	if err != nil {
		return err
	}
	format, err := transcript.ParseFormat(c.Query("format"))
	if err != nil {
		return err
	}
	f, err := parseFilter(c)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := tr.Export(&buf, format, f); err != nil {
		return err
	}
	name := fmt.Sprintf("conversations-%s.%s", time.Now().Format(time.DateOnly), format)
	c.Attachment(name)
	c.Set(fiber.HeaderContentType, format.ContentType())
	return c.Send(buf.Bytes())
}

func (s *Server) handleAnalytics(c *fiber.Ctx) error {
	tr, err := s.transcripts()
	if err != nil {
		return err
	}
	f, err := parseFilter(c)
	if err != nil {
		return err
	}
	return c.JSON(tr.Analytics(f))
}

func (s *Server) handleOffer(c *fiber.Ctx) error {
	if s.deps.Mic == nil {
		return fmt.Errorf("webrtc microphone: %w", errUnavailable)
	}
	var offer webrtc.SessionDescription
	if err := c.BodyParser(&offer); err != nil {
		return badRequest("invalid offer: %v", err)
	}
	if offer.Type != webrtc.SDPTypeOffer || offer.SDP == "" {
		return badRequest("expected an SDP offer")
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), s.cfg.OfferTimeout)
	defer cancel()
	answer, err := s.deps.Mic.Answer(ctx, offer)
	if err != nil {
		return err
	}
	return c.JSON(answer)
}
