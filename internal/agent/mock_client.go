package agent

import (
	"context"
	"sync"
)

// MockClient provides scripted responses for testing. Every prompt is
// recorded in call order.
type MockClient struct {
	mu      sync.Mutex
	handler func(prompt string) (string, error)
	prompts []string
}

// NewMockClient creates a mock that answers with handler.
func NewMockClient(handler func(prompt string) (string, error)) *MockClient {
	return &MockClient{handler: handler}
}

// NewEchoClient returns a mock that answers every prompt with itself.
func NewEchoClient() *MockClient {
	return NewMockClient(func(prompt string) (string, error) {
		return prompt, nil
	})
}

// NewFailingClient returns a mock that fails every call with err.
func NewFailingClient(err error) *MockClient {
	return NewMockClient(func(string) (string, error) {
		return "", err
	})
}

// Complete records the prompt and returns the scripted response.
func (m *MockClient) Complete(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	handler := m.handler
	m.mu.Unlock()
	return handler(prompt)
}

// Prompts returns a copy of every prompt received.
func (m *MockClient) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.prompts...)
}

// Calls returns the number of prompts received.
func (m *MockClient) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.prompts)
}

// StaticSelector always hands out the same client, or err when set.
type StaticSelector struct {
	Client AIClient
	Err    error
}

func (s StaticSelector) Select(ctx context.Context) (AIClient, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	return s.Client, nil
}
