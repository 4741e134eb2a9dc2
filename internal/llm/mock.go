package llm

import (
	"context"
	"sync"
)

// MockClient permite tests sin llamar a un LLM real.
type MockClient struct {
	Response string
	Err      error

	mu        sync.Mutex
	calls     int
	lastInput string
}

func (m *MockClient) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	m.mu.Lock()
	m.calls++
	m.lastInput = userPrompt
	m.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return m.Response, m.Err
}

// Calls devuelve cuantas veces se invoco Generate.
func (m *MockClient) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// LastInput devuelve el ultimo texto de usuario recibido.
func (m *MockClient) LastInput() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastInput
}
