package main

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/agrivoice/internal/log"
	"github.com/teslashibe/agrivoice/pkg/language"
	"github.com/teslashibe/agrivoice/pkg/reasoning"
	"github.com/teslashibe/agrivoice/pkg/transcript"
)

type stubAnswerer struct {
	res  *reasoning.Result
	err  error
	lang string
	loc  string
}

func (s *stubAnswerer) ProcessQuery(_ context.Context, _, lang, location string) (*reasoning.Result, error) {
	s.lang, s.loc = lang, location
	return s.res, s.err
}

func makeEvent(body string) events.APIGatewayProxyRequest {
	return events.APIGatewayProxyRequest{
		HTTPMethod: http.MethodPost,
		Path:       "/query",
		Headers:    map[string]string{"Content-Type": "application/json", "User-Agent": "test"},
		Body:       body,
	}
}

func parseBody[T any](t *testing.T, body string) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal([]byte(body), &v))
	return v
}

func TestNewHandlerValidatesDependency(t *testing.T) {
	_, err := NewHandler(nil, nil, "Delhi", nil)
	require.Error(t, err)
}

func TestHandleHappyPath(t *testing.T) {
	ans := &stubAnswerer{res: &reasoning.Result{Response: "हाँ", Language: language.Hindi, Provider: "gemini", LatencyMs: 40}}
	h, err := NewHandler(ans, nil, "Delhi", log.Discard())
	require.NoError(t, err)

	resp, err := h.Handle(context.Background(), makeEvent(`{"text":"क्या बारिश होगी?"}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, language.Hindi, ans.lang, "language detected from the script")
	assert.Equal(t, "Delhi", ans.loc)
	assert.NotEmpty(t, resp.Headers["X-Correlation-Id"])

	out := parseBody[queryResponse](t, resp.Body)
	assert.Equal(t, "हाँ", out.Response)
	assert.Equal(t, "gemini", out.Provider)
	assert.Empty(t, out.SessionID)
}

func TestHandleInvalidInput(t *testing.T) {
	h, err := NewHandler(&stubAnswerer{}, nil, "Delhi", log.Discard())
	require.NoError(t, err)

	for _, body := range []string{`not-json`, `{"text":"   "}`, `{"text":"hello","language":"fr"}`} {
		resp, err := h.Handle(context.Background(), makeEvent(body))
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, body)
		assert.Equal(t, "invalid_input", parseBody[errorResponse](t, resp.Body).Error)
	}
}

func TestHandleMapsErrors(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{reasoning.ErrProviderUnavailable, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		h, err := NewHandler(&stubAnswerer{err: tc.err}, nil, "Delhi", log.Discard())
		require.NoError(t, err)
		resp, err := h.Handle(context.Background(), makeEvent(`{"text":"rain?","language":"en"}`))
		require.NoError(t, err)
		assert.Equal(t, tc.want, resp.StatusCode)
	}
}

func TestHandleRecordsTranscript(t *testing.T) {
	store := transcript.NewMemoryStore()
	logger := transcript.New(store, transcript.WithLogger(log.Discard()))
	t.Cleanup(func() { _ = logger.Close() })

	ans := &stubAnswerer{res: &reasoning.Result{Response: "Light irrigation.", Language: language.English, Provider: "local", Fallback: true}}
	h, err := NewHandler(ans, logger, "Delhi", log.Discard())
	require.NoError(t, err)

	resp, err := h.Handle(context.Background(), makeEvent(`{"text":"rain?","language":"en","location":"Pune","userId":"farmer-7"}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	out := parseBody[queryResponse](t, resp.Body)
	require.NotEmpty(t, out.SessionID)
	assert.Nil(t, logger.CurrentSession(), "session is closed after the exchange")

	sessions := logger.Filter(transcript.Filter{UserID: "farmer-7"})
	require.Len(t, sessions, 1)
	s := sessions[0]
	assert.Equal(t, out.SessionID, s.ID)
	assert.Equal(t, "Pune", s.Metadata.Location)
	assert.Len(t, s.Messages, 2)
	assert.False(t, s.Open())
}
