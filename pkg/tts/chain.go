package tts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Chain implements Engine by trying engines in order. The first supported
// engine speaks; if it fails before audio starts, the next one is tried.
type Chain struct {
	engines []Engine
	logger  *slog.Logger

	mu     sync.Mutex
	active Engine
}

// NewChain creates an engine chain. At least one engine is required.
func NewChain(logger *slog.Logger, engines ...Engine) (*Chain, error) {
	if len(engines) == 0 {
		return nil, ErrProviderUnavailable
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Chain{engines: engines, logger: logger.With("component", "tts.chain")}, nil
}

// Name returns "chain".
func (c *Chain) Name() string { return "chain" }

// IsSupported reports whether any engine can speak.
func (c *Chain) IsSupported() bool {
	return c.first() != nil
}

func (c *Chain) first() Engine {
	for _, e := range c.engines {
		if e.IsSupported() {
			return e
		}
	}
	return nil
}

// Voices returns the voices of the first supported engine.
func (c *Chain) Voices(ctx context.Context) ([]Voice, error) {
	e := c.first()
	if e == nil {
		return nil, ErrProviderUnavailable
	}
	return e.Voices(ctx)
}

// Speak tries each supported engine until one plays u.
func (c *Chain) Speak(ctx context.Context, u Utterance, started func()) error {
	var errs []error
	for i, e := range c.engines {
		if !e.IsSupported() {
			continue
		}
		c.setActive(e)

		var began atomic.Bool
		err := e.Speak(ctx, u, func() {
			began.Store(true)
			started()
		})
		if err == nil {
			if i > 0 {
				c.logger.Info("fallback engine succeeded", "engine", e.Name(), "chars", len(u.Text))
			}
			return nil
		}
		if began.Load() || ctx.Err() != nil || errors.Is(err, ErrInterrupted) {
			return err
		}
		errs = append(errs, err)
		c.logger.Warn("engine failed, trying next", "engine", e.Name(), "error", err)
	}
	if len(errs) == 0 {
		return ErrProviderUnavailable
	}
	return &ChainError{Errors: errs}
}

func (c *Chain) setActive(e Engine) {
	c.mu.Lock()
	c.active = e
	c.mu.Unlock()
}

func (c *Chain) current() Engine {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// Stop implements Engine.
func (c *Chain) Stop() error {
	if e := c.current(); e != nil {
		return e.Stop()
	}
	return nil
}

// Pause implements Engine.
func (c *Chain) Pause() error {
	if e := c.current(); e != nil {
		return e.Pause()
	}
	return ErrNotSpeaking
}

// Resume implements Engine.
func (c *Chain) Resume() error {
	if e := c.current(); e != nil {
		return e.Resume()
	}
	return ErrNotSpeaking
}

// Engines returns the engines in the chain.
func (c *Chain) Engines() []Engine {
	return c.engines
}

// ChainError aggregates errors from all engines in a chain.
type ChainError struct {
	Errors []error
}

// Error implements the error interface.
func (e *ChainError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("tts chain: %v", e.Errors[0])
	}
	return fmt.Sprintf("tts chain: all %d engines failed, last error: %v", len(e.Errors), e.Errors[len(e.Errors)-1])
}

// Unwrap returns the last error in the chain.
func (e *ChainError) Unwrap() error {
	if len(e.Errors) == 0 {
		return nil
	}
	return e.Errors[len(e.Errors)-1]
}

var _ Engine = (*Chain)(nil)
