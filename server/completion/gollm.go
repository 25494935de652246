package completion

import (
	"context"
	"fmt"

	"github.com/rentfleet/aigw/config"
	"github.com/teilomillet/gollm"
	"github.com/teilomillet/gollm/llm"
)

// TextGenerator is the part of gollm.LLM used by Gollm.
type TextGenerator interface {
	Generate(ctx context.Context, prompt *gollm.Prompt, opts ...llm.GenerateOption) (string, error)
}

// Gollm is a text-only Client backed by any gollm provider (anthropic,
// ollama, groq, ...). Requests carrying attachments are rejected.
type Gollm struct {
	llm TextGenerator
}

// NewGollm creates a gollm LLM for cfg.Backend and cfg.Model.
func NewGollm(cfg config.LLMConfig) (*Gollm, error) {
	l, err := gollm.NewLLM(
		gollm.SetProvider(cfg.Backend),
		gollm.SetModel(cfg.Model),
		gollm.SetAPIKey(cfg.APIKey),
	)
	if err != nil {
		return nil, fmt.Errorf("create gollm %s client: %w", cfg.Backend, err)
	}
	return &Gollm{llm: l}, nil
}

// NewGollmWith wraps an existing generator.
func NewGollmWith(g TextGenerator) *Gollm {
	return &Gollm{llm: g}
}

func (g *Gollm) Complete(ctx context.Context, prompt string, attachments []Attachment) (string, error) {
	if len(attachments) > 0 {
		return "", rejected("provider does not accept attachments")
	}

	out, err := g.llm.Generate(ctx, &gollm.Prompt{
		Messages: []gollm.PromptMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", unavailable(err)
	}
	if out == "" {
		return "", rejected("empty output")
	}
	return out, nil
}
