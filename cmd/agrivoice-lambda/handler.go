package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"

	"github.com/teslashibe/agrivoice/pkg/language"
	"github.com/teslashibe/agrivoice/pkg/reasoning"
	"github.com/teslashibe/agrivoice/pkg/transcript"
)

// Answerer is satisfied by *reasoning.Gateway.
type Answerer interface {
	ProcessQuery(ctx context.Context, query, lang, location string) (*reasoning.Result, error)
}

// Recorder is satisfied by *transcript.Logger.
type Recorder interface {
	StartSession(userID string, meta transcript.Metadata) (string, error)
	LogUserInput(in transcript.UserInput) string
	LogAIResponse(r transcript.AIResponse) string
	EndSession() *transcript.Session
}

var (
	_ Answerer = (*reasoning.Gateway)(nil)
	_ Recorder = (*transcript.Logger)(nil)
)

type queryRequest struct {
	Text     string `json:"text"`
	Language string `json:"language,omitempty"`
	Location string `json:"location,omitempty"`
	UserID   string `json:"userId,omitempty"`
}

type queryResponse struct {
	Response  string `json:"response"`
	Language  string `json:"language"`
	Provider  string `json:"provider"`
	Fallback  bool   `json:"fallback"`
	LatencyMs int64  `json:"latency_ms"`
	SessionID string `json:"sessionId,omitempty"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Handler answers text queries arriving through API Gateway.
type Handler struct {
	answers     Answerer
	transcripts Recorder // optional
	location    string
	logger      *slog.Logger
}

// NewHandler requires an Answerer; transcripts may be nil.
func NewHandler(a Answerer, transcripts Recorder, defaultLocation string, logger *slog.Logger) (*Handler, error) {
	if a == nil {
		return nil, errors.New("handler: answerer is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{answers: a, transcripts: transcripts, location: defaultLocation, logger: logger}, nil
}

// Handle processes one API Gateway proxy request.
func (h *Handler) Handle(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	correlationID := req.RequestContext.RequestID
	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	log := h.logger.With("correlation_id", correlationID)

	var in queryRequest
	if err := json.Unmarshal([]byte(req.Body), &in); err != nil {
		return respond(http.StatusBadRequest, correlationID, errorResponse{Error: "invalid_input", Message: "body must be JSON"}), nil
	}
	in.Text = strings.TrimSpace(in.Text)
	if in.Text == "" {
		return respond(http.StatusBadRequest, correlationID, errorResponse{Error: "invalid_input", Message: "text is required"}), nil
	}
	if in.Language == "" {
		in.Language = language.Detect(in.Text)
	}
	if !language.IsSupported(in.Language) {
		return respond(http.StatusBadRequest, correlationID, errorResponse{Error: "invalid_input", Message: "unsupported language " + in.Language}), nil
	}
	if in.Location == "" {
		in.Location = h.location
	}

	res, err := h.answers.ProcessQuery(ctx, in.Text, in.Language, in.Location)
	if err != nil {
		log.Error("query failed", "error", err)
		if errors.Is(err, context.DeadlineExceeded) {
			return respond(http.StatusGatewayTimeout, correlationID, errorResponse{Error: "timeout", Message: "the answer took too long"}), nil
		}
		return respond(http.StatusInternalServerError, correlationID, errorResponse{Error: "internal", Message: "could not answer"}), nil
	}

	out := queryResponse{
		Response:  res.Response,
		Language:  res.Language,
		Provider:  res.Provider,
		Fallback:  res.Fallback,
		LatencyMs: res.LatencyMs,
	}
	out.SessionID = h.record(in, res, req.Headers["User-Agent"])

	log.Info("query answered", "language", res.Language, "provider", res.Provider, "latency_ms", res.LatencyMs)
	return respond(http.StatusOK, correlationID, out), nil
}

// record stores the exchange as its own session. Failures are logged by
// the transcript logger and never fail the request.
func (h *Handler) record(in queryRequest, res *reasoning.Result, userAgent string) string {
	if h.transcripts == nil {
		return ""
	}
	id, err := h.transcripts.StartSession(in.UserID, transcript.Metadata{
		Locale:    language.Locale(in.Language),
		Location:  in.Location,
		UserAgent: userAgent,
	})
	if err != nil {
		h.logger.Warn("transcript session refused", "error", err)
		return ""
	}
	h.transcripts.LogUserInput(transcript.UserInput{
		Transcript: in.Text,
		Confidence: 1,
		Language:   in.Language,
		Method:     "text",
	})
	h.transcripts.LogAIResponse(transcript.AIResponse{
		Response:   res.Response,
		Query:      in.Text,
		Language:   res.Language,
		Weather:    res.Weather,
		Provider:   res.Provider,
		Fallback:   res.Fallback,
		LatencyMs:  res.LatencyMs,
		TokensUsed: res.Usage.TotalTokens,
	})
	h.transcripts.EndSession()
	return id
}

func respond(status int, correlationID string, body any) events.APIGatewayProxyResponse {
	raw, err := json.Marshal(body)
	if err != nil {
		status, raw = http.StatusInternalServerError, []byte(`{"error":"internal"}`)
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers: map[string]string{
			"Content-Type":     "application/json",
			"X-Correlation-Id": correlationID,
		},
		Body: string(raw),
	}
}
