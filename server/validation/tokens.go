package validation

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

// fallbackEncoding is used for models tiktoken does not know, which includes
// every Gemini model. Counts are then an approximation.
const fallbackEncoding = "cl100k_base"

// Tokenizer defines the interface for token counting
type Tokenizer interface {
	CountTokens(text string) int
}

type tiktokenWrapper struct {
	*tiktoken.Tiktoken
}

func (t *tiktokenWrapper) CountTokens(text string) int {
	return len(t.Encode(text, nil, nil))
}

// TokenCounter counts tokens in request text.
type TokenCounter struct {
	encoding Tokenizer
}

// NewTokenCounter creates a counter using model's encoding, or cl100k_base
// when tiktoken has no mapping for model.
func NewTokenCounter(model string) (*TokenCounter, error) {
	encoding, err := tiktoken.EncodingForModel(model)
	if err != nil {
		encoding, err = tiktoken.GetEncoding(fallbackEncoding)
		if err != nil {
			return nil, fmt.Errorf("failed to get encoding for model %s: %w", model, err)
		}
	}
	return &TokenCounter{encoding: &tiktokenWrapper{encoding}}, nil
}

// Count returns the number of tokens in text.
func (tc *TokenCounter) Count(text string) int {
	return tc.encoding.CountTokens(text)
}
