package llmservice

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/prompts"
	"github.com/tmc/langchaingo/schema"

	"legal-rag/internal/models"
)

// Template is a named system prompt plus a user prompt template.
type Template struct {
	Name   string
	System string
	Prompt prompts.PromptTemplate
}

var templates = map[string]Template{
	models.TemplateLegalQA: {
		Name:   models.TemplateLegalQA,
		System: models.LegalQASystemPrompt,
		Prompt: prompts.NewPromptTemplate(models.LegalQAPromptTemplate, []string{"context", "question"}),
	},
	models.TemplateInvestigation: {
		Name:   models.TemplateInvestigation,
		System: models.InvestigationSystemPrompt,
		Prompt: prompts.NewPromptTemplate(models.InvestigationPromptTemplate, []string{"context", "question"}),
	},
	models.TemplateAssistant: {
		Name:   models.TemplateAssistant,
		System: models.AssistantSystemPrompt,
		Prompt: prompts.NewPromptTemplate(models.AssistantPromptTemplate, []string{"question", "reference"}),
	},
}

// LookupTemplate returns the named template.
func LookupTemplate(name string) (Template, error) {
	t, ok := templates[name]
	if !ok {
		return Template{}, fmt.Errorf("%w: unknown prompt template %q", models.ErrInvalidInput, name)
	}
	return t, nil
}

// Composer turns retrieved chunks and a question into a model answer.
type Composer struct {
	llm llms.Model
}

func NewComposer(llm llms.Model) *Composer {
	return &Composer{llm: llm}
}

// Compose stuffs the chunk contents, in retrieval order, into tmpl and asks
// the model for an answer.
func (c *Composer) Compose(ctx context.Context, question string, chunks []models.SearchResult, tmpl Template) (string, error) {
	parts := make([]string, len(chunks))
	for i, ch := range chunks {
		parts[i] = ch.Content
	}
	return c.render(ctx, tmpl, map[string]any{
		"context":  strings.Join(parts, models.ContextSeparator),
		"question": question,
	})
}

// ComposeWithReference re-prompts with an earlier answer as reference
// material instead of retrieved chunks.
func (c *Composer) ComposeWithReference(ctx context.Context, question, reference string, tmpl Template) (string, error) {
	return c.render(ctx, tmpl, map[string]any{
		"question":  question,
		"reference": reference,
	})
}

func (c *Composer) render(ctx context.Context, tmpl Template, values map[string]any) (string, error) {
	if c == nil || c.llm == nil {
		return "", fmt.Errorf("%w: no language model configured", models.ErrUpstream)
	}
	prompt, err := tmpl.Prompt.Format(values)
	if err != nil {
		return "", fmt.Errorf("render %s prompt: %w", tmpl.Name, err)
	}

	messages := make([]llms.MessageContent, 0, 2)
	if tmpl.System != "" {
		messages = append(messages, llms.TextParts(schema.ChatMessageTypeSystem, tmpl.System))
	}
	messages = append(messages, llms.TextParts(schema.ChatMessageTypeHuman, prompt))

	log.Debug().Str("template", tmpl.Name).Int("prompt_len", len(prompt)).Msg("Calling language model")
	answer, err := GenerateContent(ctx, c.llm, messages)
	if err != nil {
		log.Error().Err(err).Str("template", tmpl.Name).Msg("Language model call failed")
		return "", err
	}
	return answer, nil
}
