package reasoning

import (
	"context"
	"log/slog"
	"time"
)

// Chain tries providers in order until one succeeds.
type Chain struct {
	providers []Provider
	logger    *slog.Logger
}

// NewChain creates a provider chain. At least one provider is required.
func NewChain(logger *slog.Logger, providers ...Provider) (*Chain, error) {
	if len(providers) == 0 {
		return nil, ErrProviderUnavailable
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Chain{
		providers: providers,
		logger:    logger.With("component", "reasoning.chain"),
	}, nil
}

// Name implements Provider.
func (c *Chain) Name() string { return "chain" }

// generate tries each provider until one succeeds. The returned index is
// the position of the provider that answered. When ctx carries a deadline,
// each provider gets an equal share of the time still left, so a hung
// provider cannot starve the ones after it.
func (c *Chain) generate(ctx context.Context, req *Request) (*Completion, int, error) {
	var errs []error

	for i, p := range c.providers {
		pctx, cancel := providerContext(ctx, len(c.providers)-i)
		resp, err := p.Generate(pctx, req)
		cancel()
		if err == nil {
			if i > 0 {
				c.logger.Info("fallback provider succeeded", "provider", p.Name(), "provider_index", i)
			}
			return resp, i, nil
		}

		errs = append(errs, WrapError(p.Name(), err))
		c.logger.Warn("provider failed, trying next",
			"provider", p.Name(),
			"provider_index", i,
			"error", err,
		)

		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
	}

	return nil, -1, &ChainError{Errors: errs}
}

// providerContext bounds one attempt to 1/remaining of the parent's time.
func providerContext(ctx context.Context, remaining int) (context.Context, context.CancelFunc) {
	deadline, ok := ctx.Deadline()
	if !ok || remaining <= 1 {
		return context.WithCancel(ctx)
	}
	share := time.Until(deadline) / time.Duration(remaining)
	return context.WithTimeout(ctx, share)
}

// Generate implements Provider.
func (c *Chain) Generate(ctx context.Context, req *Request) (*Completion, error) {
	resp, _, err := c.generate(ctx, req)
	return resp, err
}

// Health returns an error only when every provider is unhealthy.
func (c *Chain) Health(ctx context.Context) error {
	var healthy int
	var lastErr error
	for _, p := range c.providers {
		if err := p.Health(ctx); err != nil {
			lastErr = err
			continue
		}
		healthy++
	}
	if healthy == 0 {
		return WrapError("chain", lastErr)
	}
	c.logger.Debug("health check complete", "healthy", healthy, "total", len(c.providers))
	return nil
}

// Close closes every provider and returns the last error seen.
func (c *Chain) Close() error {
	var lastErr error
	for _, p := range c.providers {
		if err := p.Close(); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// Providers returns the providers in order.
func (c *Chain) Providers() []Provider { return c.providers }

var _ Provider = (*Chain)(nil)
