package llm

import (
	"context"
	"errors"
	"time"

	"github.com/akolanti/PdfQA/pkg/logger_i"
)

var logger = logger_i.NewLogger("llm_fallback")

type fallbackProvider struct {
	primary   Provider
	secondary Provider
}

// NewFallbackProvider tries primary and, on failure, secondary exactly once.
// A nil secondary returns primary unchanged.
func NewFallbackProvider(primary Provider, secondary Provider) Provider {
	if secondary == nil {
		return primary
	}
	return &fallbackProvider{primary: primary, secondary: secondary}
}

func (f *fallbackProvider) Attempts() int { return 2 }

// Attempts reports how many model calls p may make for one request. Callers size the
// deadline they pass to Generate by it.
func Attempts(p Provider) int {
	if a, ok := p.(interface{ Attempts() int }); ok {
		return a.Attempts()
	}
	return 1
}

// Generate gives the primary half of the time left on ctx, so a hung primary still
// leaves the secondary its own share.
func (f *fallbackProvider) Generate(ctx context.Context, req Request) (Generation, error) {
	primaryCtx, cancel := attemptContext(ctx, f.Attempts())
	gen, err := f.primary.Generate(primaryCtx, req)
	cancel()
	if err == nil {
		return gen, nil
	}
	//a cancelled caller does not want a second attempt, a timed out primary does
	if errors.Is(ctx.Err(), context.Canceled) {
		return Generation{}, err
	}
	logger.FromContext(ctx).Warn("Primary model failed, trying fallback", "error", err)
	return f.secondary.Generate(ctx, req)
}

// attemptContext bounds one of the remaining attempts to its share of ctx's deadline.
func attemptContext(ctx context.Context, remaining int) (context.Context, context.CancelFunc) {
	deadline, ok := ctx.Deadline()
	if !ok || remaining <= 1 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, time.Until(deadline)/time.Duration(remaining))
}
