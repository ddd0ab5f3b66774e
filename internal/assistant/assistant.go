// Package assistant serves reporting guidance built on top of the
// investigation endpoint.
package assistant

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"

	"legal-rag/internal/llmservice"
	"legal-rag/internal/models"
)

// Investigator answers investigation questions, usually over HTTP.
type Investigator interface {
	Investigate(ctx context.Context, question string) (string, error)
}

// Assistant asks the investigation service first and then re-prompts the
// model with that answer as reference material.
type Assistant struct {
	remote   Investigator
	composer *llmservice.Composer
	template llmservice.Template
	modelErr error
}

// NewAssistant wires the assistant. modelErr is the failure from building
// llm, if any; it is reported on every request without calling remote.
func NewAssistant(remote Investigator, llm llms.Model, modelErr error) (*Assistant, error) {
	tmpl, err := llmservice.LookupTemplate(models.TemplateAssistant)
	if err != nil {
		return nil, err
	}
	a := &Assistant{remote: remote, template: tmpl, modelErr: modelErr}
	if modelErr == nil && llm != nil {
		a.composer = llmservice.NewComposer(llm)
	}
	return a, nil
}

// Guide returns structured guidance for question.
func (a *Assistant) Guide(ctx context.Context, question string) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", fmt.Errorf("%w: question is required", models.ErrInvalidInput)
	}
	if a.composer == nil {
		if a.modelErr != nil {
			return "", a.modelErr
		}
		return "", fmt.Errorf("%w: no language model configured", models.ErrUpstream)
	}

	reference, err := a.remote.Investigate(ctx, question)
	if err != nil {
		log.Error().Err(err).Msg("Investigation call failed")
		return "", err
	}

	return a.composer.ComposeWithReference(ctx, question, reference, a.template)
}
