package llmservice

import (
	"context"
	"strings"
	"sync"

	"github.com/tmc/langchaingo/llms"
)

// MockModel is an llms.Model for tests. It answers with Answer (or Err) and
// records every prompt it receives.
type MockModel struct {
	Answer string
	Err    error

	mu      sync.Mutex
	prompts []string
	temps   []float64
}

func NewMockModel(answer string) *MockModel {
	return &MockModel{Answer: answer}
}

func (m *MockModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	opts := llms.CallOptions{}
	for _, o := range options {
		o(&opts)
	}

	var b strings.Builder
	for _, msg := range messages {
		for _, part := range msg.Parts {
			if t, ok := part.(llms.TextContent); ok {
				b.WriteString(string(msg.Role))
				b.WriteString(": ")
				b.WriteString(t.Text)
				b.WriteString("\n")
			}
		}
	}

	m.mu.Lock()
	m.prompts = append(m.prompts, b.String())
	m.temps = append(m.temps, opts.Temperature)
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.Err != nil {
		return nil, m.Err
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: m.Answer}}}, nil
}

func (m *MockModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

// Prompts returns the rendered messages of every call so far.
func (m *MockModel) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.prompts...)
}

// Temperatures returns the temperature option of every call so far.
func (m *MockModel) Temperatures() []float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]float64(nil), m.temps...)
}
