package testutils

import (
	"context"
	"strings"
	"sync"

	"github.com/papercomputeco/researcher/pkg/llm"
)

// MockProvider is a test chat provider. By default it answers every request
// with "context for: <last user message>" and fixed usage.
type MockProvider struct {
	mu sync.Mutex

	// Respond overrides the default reply.
	Respond func(req *llm.ChatRequest) (*llm.ChatResponse, error)

	// Usage is attached to default replies.
	Usage llm.Usage

	// Requests records every request received.
	Requests []*llm.ChatRequest
}

func NewMockProvider() *MockProvider {
	return &MockProvider{
		Usage: llm.Usage{PromptTokens: 100, CompletionTokens: 10, TotalTokens: 110},
	}
}

func (m *MockProvider) Name() string {
	return "mock"
}

func (m *MockProvider) Chat(_ context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	m.mu.Lock()
	m.Requests = append(m.Requests, req)
	respond := m.Respond
	usage := m.Usage
	m.mu.Unlock()

	if respond != nil {
		return respond(req)
	}

	var last string
	if n := len(req.Messages); n > 0 {
		last = req.Messages[n-1].GetText()
	}
	return &llm.ChatResponse{
		Model:      req.Model,
		Message:    llm.NewTextMessage(llm.RoleAssistant, "context for: "+last),
		StopReason: "stop",
		Usage:      &usage,
	}, nil
}

// ChatStream replies like Chat and streams the text word by word.
func (m *MockProvider) ChatStream(ctx context.Context, req *llm.ChatRequest, fn llm.StreamFunc) (*llm.ChatResponse, error) {
	resp, err := m.Chat(ctx, req)
	if err != nil {
		return nil, err
	}

	words := strings.SplitAfter(resp.Text(), " ")
	for _, w := range words {
		if err := fn(llm.NewTextChunk(resp.Model, w)); err != nil {
			return nil, err
		}
	}
	if err := fn(&llm.StreamChunk{Model: resp.Model, Done: true, StopReason: resp.StopReason, Usage: resp.Usage}); err != nil {
		return nil, err
	}
	return resp, nil
}

// RequestCount returns the number of requests received so far.
func (m *MockProvider) RequestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Requests)
}
