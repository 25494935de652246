// Package mocks provides test doubles for the completion backends and the
// configuration watcher.
package mocks

import (
	"context"
	"sync"

	"github.com/rentfleet/aigw/server/completion"
	"github.com/teilomillet/gollm"
	"github.com/teilomillet/gollm/llm"
)

// MockLLM implements completion.TextGenerator, the slice of gollm.LLM the
// gollm adapter uses.
//
//	mockLLM := NewMockLLM(func(ctx context.Context, prompt *gollm.Prompt) (string, error) {
//	    return "mocked response", nil
//	})
type MockLLM struct {
	GenerateFunc func(context.Context, *gollm.Prompt) (string, error)
}

var _ completion.TextGenerator = (*MockLLM)(nil)

// NewMockLLM creates a MockLLM. A nil generateFunc yields empty output.
func NewMockLLM(generateFunc func(context.Context, *gollm.Prompt) (string, error)) *MockLLM {
	return &MockLLM{GenerateFunc: generateFunc}
}

func (m *MockLLM) Generate(ctx context.Context, prompt *gollm.Prompt, opts ...llm.GenerateOption) (string, error) {
	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, prompt)
	}
	return "", nil
}

// Call records one Complete invocation.
type Call struct {
	Prompt      string
	Attachments []completion.Attachment
}

// MockClient is a completion.Client that answers with Response/Err, or with
// CompleteFunc when set, and records every call.
type MockClient struct {
	Response     string
	Err          error
	CompleteFunc func(ctx context.Context, prompt string, attachments []completion.Attachment) (string, error)

	mu    sync.Mutex
	calls []Call
}

var _ completion.Client = (*MockClient)(nil)

// NewMockClient returns a client that always answers response.
func NewMockClient(response string) *MockClient {
	return &MockClient{Response: response}
}

// NewFailingClient returns a client that always fails with err.
func NewFailingClient(err error) *MockClient {
	return &MockClient{Err: err}
}

func (m *MockClient) Complete(ctx context.Context, prompt string, attachments []completion.Attachment) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, Call{Prompt: prompt, Attachments: attachments})
	m.mu.Unlock()

	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, prompt, attachments)
	}
	if m.Err != nil {
		return "", m.Err
	}
	return m.Response, nil
}

// Calls returns a copy of the recorded calls.
func (m *MockClient) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Call(nil), m.calls...)
}
