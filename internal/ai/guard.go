package ai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/lead-scorer/internal/leads"
	"github.com/spigell/lead-scorer/internal/logger"
)

// DefaultTimeout bounds a single classification when none is configured.
const DefaultTimeout = 30 * time.Second

// Result is a classification that never fails. Degraded results carry the
// fallback intent and the reason the provider call was abandoned.
type Result struct {
	Intent    leads.Intent
	Reasoning string
	Degraded  bool
	Error     string
	Duration  time.Duration
}

// Fallback is the result applied when classification fails.
func Fallback(err error) Result {
	reason := "unknown error"
	if err != nil {
		reason = err.Error()
	}
	return Result{
		Intent:   leads.IntentLow,
		Degraded: true,
		Error:    reason,
	}
}

// Guard wraps a Classifier with a per-call timeout and the degraded fallback policy.
type Guard struct {
	classifier Classifier
	timeout    time.Duration
	logger     *zap.Logger
}

// NewGuard returns a Guard around c. A nil classifier behaves like Disabled.
func NewGuard(c Classifier, timeout time.Duration, log *zap.Logger) *Guard {
	if c == nil {
		c = Disabled{}
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Guard{
		classifier: c,
		timeout:    timeout,
		logger:     logger.WithFields(log),
	}
}

// Timeout returns the per-call deadline applied by Classify.
func (g *Guard) Timeout() time.Duration { return g.timeout }

// Classify calls the wrapped classifier. Errors, timeouts, panics and
// responses without a valid intent all produce Fallback.
func (g *Guard) Classify(ctx context.Context, lead leads.Lead, offer leads.Offer) Result {
	start := time.Now()

	cls, err := g.call(ctx, lead, offer)
	if err == nil && (cls == nil || !cls.Intent.Valid()) {
		err = ErrUnparsable
	}

	if err != nil {
		res := Fallback(err)
		res.Duration = time.Since(start)
		if !errors.Is(err, ErrNotConfigured) {
			g.logger.Warn("AI classification degraded",
				zap.String("lead", lead.Label()),
				zap.Duration("duration", res.Duration),
				zap.Error(err),
			)
		}
		return res
	}

	return Result{
		Intent:    cls.Intent,
		Reasoning: cls.Reasoning,
		Duration:  time.Since(start),
	}
}

func (g *Guard) call(ctx context.Context, lead leads.Lead, offer leads.Offer) (*Classification, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	type outcome struct {
		cls *Classification
		err error
	}
	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("classifier panic: %v", r)}
			}
		}()
		c, e := g.classifier.Classify(ctx, lead, offer)
		done <- outcome{cls: c, err: e}
	}()

	// A classifier that ignores ctx must not hold the lead past its deadline.
	select {
	case o := <-done:
		if o.err != nil && ctx.Err() != nil {
			return nil, g.interrupted(ctx.Err(), o.err)
		}
		return o.cls, o.err
	case <-ctx.Done():
		return nil, g.interrupted(ctx.Err(), ctx.Err())
	}
}

func (g *Guard) interrupted(cause, err error) error {
	if errors.Is(cause, context.DeadlineExceeded) {
		return fmt.Errorf("classification timed out after %s: %w", g.timeout, err)
	}
	return fmt.Errorf("classification cancelled: %w", err)
}
