package reasoning

import (
	"context"
	"sync"
	"time"
)

// Mock implements Provider for testing.
type Mock struct {
	// GenerateFunc is called when Generate is invoked.
	GenerateFunc func(ctx context.Context, req *Request) (*Completion, error)

	// HealthFunc is called when Health is invoked.
	HealthFunc func(ctx context.Context) error

	// NameValue overrides Name. Defaults to "mock".
	NameValue string

	// Latency delays every Generate call, honoring ctx.
	Latency time.Duration

	mu       sync.Mutex
	calls    []MockCall
	requests []*Request
}

// MockCall records a method invocation.
type MockCall struct {
	Method string
	Time   time.Time
}

// NewMock creates a mock that answers "Mock response".
func NewMock() *Mock {
	return &Mock{
		GenerateFunc: func(ctx context.Context, req *Request) (*Completion, error) {
			return &Completion{Text: "Mock response", Provider: "mock", Model: "mock", FinishReason: "stop"}, nil
		},
	}
}

// Echo creates a mock that answers with the query text.
func Echo() *Mock {
	return &Mock{
		GenerateFunc: func(ctx context.Context, req *Request) (*Completion, error) {
			return &Completion{Text: req.Query, Provider: "echo", Model: "echo", FinishReason: "stop"}, nil
		},
		NameValue: "echo",
	}
}

// WithError returns a mock that always fails with err.
func WithError(err error) *Mock {
	return &Mock{
		GenerateFunc: func(ctx context.Context, req *Request) (*Completion, error) { return nil, err },
		HealthFunc:   func(ctx context.Context) error { return err },
	}
}

// WithLatency returns a mock that answers text after d.
func WithLatency(d time.Duration, text string) *Mock {
	m := NewMock()
	m.Latency = d
	m.GenerateFunc = func(ctx context.Context, req *Request) (*Completion, error) {
		return &Completion{Text: text, Provider: "mock", Model: "mock", FinishReason: "stop"}, nil
	}
	return m
}

// Name implements Provider.
func (m *Mock) Name() string {
	if m.NameValue != "" {
		return m.NameValue
	}
	return "mock"
}

// Generate calls GenerateFunc and records the call.
func (m *Mock) Generate(ctx context.Context, req *Request) (*Completion, error) {
	m.record("Generate", req)
	if m.Latency > 0 {
		select {
		case <-time.After(m.Latency):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, req)
	}
	return nil, WrapError(m.Name(), ErrProviderUnavailable)
}

// Health calls HealthFunc and records the call.
func (m *Mock) Health(ctx context.Context) error {
	m.record("Health", nil)
	if m.HealthFunc != nil {
		return m.HealthFunc(ctx)
	}
	return nil
}

// Close records the call.
func (m *Mock) Close() error {
	m.record("Close", nil)
	return nil
}

func (m *Mock) record(method string, req *Request) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, MockCall{Method: method, Time: time.Now()})
	if req != nil {
		m.requests = append(m.requests, req)
	}
}

// CallCount returns how many times method was called.
func (m *Mock) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c.Method == method {
			n++
		}
	}
	return n
}

// LastRequest returns the most recent Generate request, or nil.
func (m *Mock) LastRequest() *Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.requests) == 0 {
		return nil
	}
	return m.requests[len(m.requests)-1]
}

// Reset clears recorded calls.
func (m *Mock) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
	m.requests = nil
}

var _ Provider = (*Mock)(nil)
