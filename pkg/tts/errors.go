package tts

import (
	"errors"
	"fmt"
)

// Sentinel errors for common error conditions.
var (
	// ErrUnsupported is returned when the engine cannot speak.
	ErrUnsupported = errors.New("tts: synthesis unsupported")

	// ErrEmptyText is returned by Speak for blank text.
	ErrEmptyText = errors.New("tts: empty text")

	// ErrInterrupted resolves a playback that was stopped or replaced.
	ErrInterrupted = errors.New("tts: playback interrupted")

	// ErrSynthesis marks an engine failure during playback.
	ErrSynthesis = errors.New("tts: synthesis failed")

	// ErrNotSpeaking is returned by Pause and Resume with nothing playing.
	ErrNotSpeaking = errors.New("tts: nothing is playing")

	// ErrProviderUnavailable is returned when no engine in a chain can speak.
	ErrProviderUnavailable = errors.New("tts: no engines available")

	// ErrUnsupportedLanguage is returned for a language outside the
	// supported set.
	ErrUnsupportedLanguage = errors.New("tts: unsupported language")

	// ErrUnknownVoice is returned when a preference names a voice that is
	// not offered.
	ErrUnknownVoice = errors.New("tts: unknown voice")
)

// APIError represents an error response from a synthesis API.
type APIError struct {
	StatusCode int
	Message    string
	Provider   string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("tts [%s]: API error %d: %s", e.Provider, e.StatusCode, e.Message)
}

// IsRetryable returns true for rate limits and server errors.
func (e *APIError) IsRetryable() bool {
	return e.StatusCode == 429 || (e.StatusCode >= 500 && e.StatusCode < 600)
}

// ProviderError wraps an error with engine context.
type ProviderError struct {
	Provider string
	Err      error
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	return fmt.Sprintf("tts [%s]: %v", e.Provider, e.Err)
}

// Unwrap returns the underlying error.
func (e *ProviderError) Unwrap() error {
	return e.Err
}

// WrapError wraps an error with engine context.
func WrapError(provider string, err error) error {
	if err == nil {
		return nil
	}
	return &ProviderError{Provider: provider, Err: err}
}

// synthesisError marks err as ErrSynthesis while keeping it inspectable.
func synthesisError(engine string, err error) error {
	if errors.Is(err, ErrSynthesis) || errors.Is(err, ErrInterrupted) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrSynthesis, WrapError(engine, err))
}
