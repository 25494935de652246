// Package completion talks to generative-AI backends.
//
// Every backend is adapted to Client, a single-shot text completion with
// optional binary attachments. Guard wraps a Client with the per-call
// timeout, the circuit breaker and the audit log shared by all backends.
package completion

import (
	"context"
	"errors"
	"fmt"

	"github.com/rentfleet/aigw/config"
)

var (
	// ErrUnavailable means the backend could not be reached or did not
	// answer in time: transport errors, backend errors, timeouts and an
	// open circuit breaker.
	ErrUnavailable = errors.New("completion backend unavailable")

	// ErrRejected means the backend answered but declined to produce
	// output, e.g. a safety block or an empty candidate list.
	ErrRejected = errors.New("completion rejected by backend")
)

// Attachment is a binary input sent alongside the prompt, typically an image.
type Attachment struct {
	MIMEType string
	Data     []byte
}

// Client produces a completion for a prompt and its ordered attachments.
// Implementations return errors matching ErrUnavailable or ErrRejected.
type Client interface {
	Complete(ctx context.Context, prompt string, attachments []Attachment) (string, error)
}

// ClientFunc adapts a function to Client.
type ClientFunc func(ctx context.Context, prompt string, attachments []Attachment) (string, error)

// Complete calls f.
func (f ClientFunc) Complete(ctx context.Context, prompt string, attachments []Attachment) (string, error) {
	return f(ctx, prompt, attachments)
}

// unavailable wraps a backend failure so that it matches ErrUnavailable
// as well as its cause.
func unavailable(err error) error {
	return fmt.Errorf("%w: %w", ErrUnavailable, err)
}

func rejected(reason string) error {
	return fmt.Errorf("%w: %s", ErrRejected, reason)
}

// New builds the provider selected by cfg.Provider. The returned close
// function releases provider resources and is never nil.
func New(ctx context.Context, cfg config.LLMConfig) (Client, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Provider {
	case config.ProviderGemini:
		g, err := NewGemini(ctx, cfg)
		if err != nil {
			return nil, noop, err
		}
		return g, g.Close, nil
	case config.ProviderOpenAI:
		return NewOpenAI(cfg), noop, nil
	case config.ProviderGollm:
		g, err := NewGollm(cfg)
		if err != nil {
			return nil, noop, err
		}
		return g, noop, nil
	default:
		return nil, noop, fmt.Errorf("unsupported provider: %s", cfg.Provider)
	}
}
