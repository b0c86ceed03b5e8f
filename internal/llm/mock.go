package llm

import (
	"context"
	"fmt"
	"sync"
)

// MockResponse configures a single response from the mock client.
type MockResponse struct {
	Content string
	Error   error
}

// MockCall records the arguments of one Complete invocation.
type MockCall struct {
	Messages []Message
	Options  Options
}

// MockClient is a configurable mock completion client for testing and
// for running the server without provider credentials.
type MockClient struct {
	mu        sync.Mutex
	responses []MockResponse
	callIndex int
	calls     []MockCall
}

// NewMockClient creates a mock client with a sequence of responses.
// Responses are returned in order; once exhausted, the last repeats.
func NewMockClient(responses ...MockResponse) *MockClient {
	return &MockClient{responses: responses}
}

// Complete returns the next configured response.
func (m *MockClient) Complete(_ context.Context, messages []Message, opts Options) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, MockCall{Messages: messages, Options: opts})

	if len(m.responses) == 0 {
		return "", fmt.Errorf("mock: no responses configured")
	}

	idx := m.callIndex
	if idx >= len(m.responses) {
		idx = len(m.responses) - 1
	} else {
		m.callIndex++
	}

	resp := m.responses[idx]
	if resp.Error != nil {
		return "", resp.Error
	}
	return resp.Content, nil
}

// Calls returns all requests made to the mock client.
func (m *MockClient) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MockCall(nil), m.calls...)
}
