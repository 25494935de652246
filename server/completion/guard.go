package completion

import (
	"context"
	"errors"
	"time"

	"github.com/rentfleet/aigw/config"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// Guard wraps a Client with the policies every completion call obeys:
//   - a deadline, longer for calls carrying attachments;
//   - a circuit breaker that opens after consecutive backend failures;
//   - an info-level audit line holding the raw completion text.
//
// Rejections are answers, not failures, and never trip the breaker.
// Guard does not retry.
type Guard struct {
	client          Client
	breaker         *gobreaker.CircuitBreaker
	textTimeout     time.Duration
	documentTimeout time.Duration
	logger          *zap.Logger
}

// NewGuard wraps client. A zero cb.FailureThreshold disables the breaker.
func NewGuard(client Client, llm config.LLMConfig, cb config.CircuitBreakerConfig, logger *zap.Logger) *Guard {
	g := &Guard{
		client:          client,
		textTimeout:     llm.TextTimeout,
		documentTimeout: llm.DocumentTimeout,
		logger:          logger.With(zap.String("provider", llm.Provider), zap.String("model", llm.Model)),
	}

	if cb.FailureThreshold > 0 {
		threshold := cb.FailureThreshold
		g.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        llm.Provider,
			MaxRequests: cb.MaxRequests,
			Interval:    cb.Interval,
			Timeout:     cb.Timeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= threshold
			},
			IsSuccessful: func(err error) bool {
				// a caller hanging up says nothing about backend health
				return err == nil || errors.Is(err, ErrRejected) || errors.Is(err, context.Canceled)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				g.logger.Warn("Circuit breaker state changed",
					zap.String("from", from.String()),
					zap.String("to", to.String()),
				)
			},
		})
	}

	return g
}

// Complete calls the wrapped client under the guard's policies. Every error
// it returns matches ErrUnavailable or ErrRejected.
func (g *Guard) Complete(ctx context.Context, prompt string, attachments []Attachment) (string, error) {
	timeout := g.textTimeout
	if len(attachments) > 0 {
		timeout = g.documentTimeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	text, err := g.execute(ctx, prompt, attachments)
	duration := time.Since(start)

	if err != nil {
		g.logger.Warn("Completion failed",
			zap.Int("attachments", len(attachments)),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return "", err
	}

	g.logger.Info("Completion received",
		zap.Int("attachments", len(attachments)),
		zap.Duration("duration", duration),
		zap.String("raw", text),
	)
	return text, nil
}

// State reports the breaker state; StateClosed when the breaker is disabled.
func (g *Guard) State() gobreaker.State {
	if g.breaker == nil {
		return gobreaker.StateClosed
	}
	return g.breaker.State()
}

func (g *Guard) execute(ctx context.Context, prompt string, attachments []Attachment) (string, error) {
	call := func() (interface{}, error) {
		text, err := g.client.Complete(ctx, prompt, attachments)
		if err != nil {
			return "", classify(err)
		}
		return text, nil
	}

	if g.breaker == nil {
		v, err := call()
		return v.(string), err
	}

	v, err := g.breaker.Execute(call)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return "", unavailable(err)
	}
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// classify maps arbitrary client errors onto the two completion sentinels.
func classify(err error) error {
	if errors.Is(err, ErrRejected) || errors.Is(err, ErrUnavailable) {
		return err
	}
	return unavailable(err)
}
