package llmservice

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"legal-rag/internal/config"
	"legal-rag/internal/models"
)

// NewModel creates the text-generation client described by llmConfig.
// A missing key for a hosted provider is reported as models.ErrUpstream.
func NewModel(llmConfig *config.LLMConfig) (llms.Model, error) {
	log.Debug().
		Str("provider", llmConfig.Provider).
		Str("base_url", llmConfig.BaseURL).
		Str("model", llmConfig.Model).
		Msg("Creating language model client")

	switch strings.ToLower(llmConfig.Provider) {
	case "openai", "":
		if llmConfig.Key == "" {
			return nil, fmt.Errorf("%w: %s not set", models.ErrUpstream, llmConfig.KeyEnv)
		}
		opts := []openai.Option{
			openai.WithToken(strings.TrimPrefix(llmConfig.Key, "Bearer ")),
			openai.WithModel(llmConfig.Model),
		}
		if llmConfig.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(llmConfig.BaseURL))
		}
		llm, err := openai.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", models.ErrUpstream, err)
		}
		return llm, nil
	case "ollama":
		opts := []ollama.Option{ollama.WithModel(llmConfig.Model)}
		if llmConfig.BaseURL != "" {
			opts = append(opts, ollama.WithServerURL(llmConfig.BaseURL))
		}
		llm, err := ollama.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", models.ErrUpstream, err)
		}
		return llm, nil
	default:
		return nil, fmt.Errorf("%w: unknown inference provider %q", models.ErrInvalidInput, llmConfig.Provider)
	}
}

// GenerateContent calls the model with greedy decoding and returns the text
// of the first choice.
func GenerateContent(ctx context.Context, llm llms.Model, messages []llms.MessageContent) (string, error) {
	res, err := llm.GenerateContent(ctx, messages, llms.WithTemperature(0))
	if err != nil {
		return "", fmt.Errorf("%w: %w", models.ErrUpstream, err)
	}
	if res == nil || len(res.Choices) == 0 {
		return "", fmt.Errorf("%w: model returned no choices", models.ErrUpstream)
	}
	content := strings.TrimSpace(res.Choices[0].Content)
	if content == "" {
		return "", fmt.Errorf("%w: model returned an empty answer", models.ErrUpstream)
	}
	return content, nil
}
