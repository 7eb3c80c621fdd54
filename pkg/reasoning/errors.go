package reasoning

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for common conditions.
var (
	// ErrNoAPIKey is returned when a provider is built without credentials.
	ErrNoAPIKey = errors.New("reasoning: API key required")

	// ErrProviderUnavailable is returned when no provider can serve a request.
	ErrProviderUnavailable = errors.New("reasoning: provider unavailable")

	// ErrEmptyQuery is returned for blank queries.
	ErrEmptyQuery = errors.New("reasoning: query is empty")

	// ErrEmptyResponse is returned when a provider answers with no text.
	ErrEmptyResponse = errors.New("reasoning: empty response")
)

// APIError represents an error response from a reasoning API.
type APIError struct {
	StatusCode int
	Message    string
	Code       string
	Provider   string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("reasoning [%s]: API error %d (%s): %s", e.Provider, e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("reasoning [%s]: API error %d: %s", e.Provider, e.StatusCode, e.Message)
}

// IsRateLimited returns true for HTTP 429.
func (e *APIError) IsRateLimited() bool { return e.StatusCode == 429 }

// IsUnauthorized returns true for HTTP 401 and 403.
func (e *APIError) IsUnauthorized() bool { return e.StatusCode == 401 || e.StatusCode == 403 }

// IsServerError returns true for HTTP 5xx.
func (e *APIError) IsServerError() bool { return e.StatusCode >= 500 && e.StatusCode < 600 }

// IsQuotaExceeded reports exhausted quota or balance.
func (e *APIError) IsQuotaExceeded() bool {
	msg := strings.ToLower(e.Message + " " + e.Code)
	return e.StatusCode == 402 || strings.Contains(msg, "quota") || strings.Contains(msg, "insufficient")
}

// IsRetryable returns true if the request may succeed when retried.
func (e *APIError) IsRetryable() bool { return e.IsRateLimited() || e.IsServerError() }

// ProviderError wraps an error with provider context.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("reasoning [%s]: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// WrapError wraps err with provider context. A nil err stays nil.
func WrapError(provider string, err error) error {
	if err == nil {
		return nil
	}
	return &ProviderError{Provider: provider, Err: err}
}

// ChainError aggregates errors from every provider in a chain.
type ChainError struct {
	Errors []error
}

func (e *ChainError) Error() string {
	switch len(e.Errors) {
	case 0:
		return "reasoning chain: no errors recorded"
	case 1:
		return fmt.Sprintf("reasoning chain: %v", e.Errors[0])
	}
	return fmt.Sprintf("reasoning chain: all %d providers failed, last error: %v",
		len(e.Errors), e.Errors[len(e.Errors)-1])
}

// Unwrap exposes every recorded error to errors.Is and errors.As.
func (e *ChainError) Unwrap() []error { return e.Errors }

// IsRetryable reports whether err is a transient API failure.
func IsRetryable(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.IsRetryable()
}

// IsRateLimited reports whether err is a rate-limit response.
func IsRateLimited(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.IsRateLimited()
}

// IsQuotaExceeded reports whether err signals exhausted quota.
func IsQuotaExceeded(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.IsQuotaExceeded()
}

// IsUnavailable reports whether err means the provider cannot serve at all
// (missing credentials, rejected credentials, or exhausted quota).
func IsUnavailable(err error) bool {
	if errors.Is(err, ErrNoAPIKey) || errors.Is(err, ErrProviderUnavailable) {
		return true
	}
	var apiErr *APIError
	return errors.As(err, &apiErr) && (apiErr.IsUnauthorized() || apiErr.IsQuotaExceeded())
}
