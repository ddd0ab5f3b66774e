package rag

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"

	"legal-rag/internal/config"
	"legal-rag/internal/embedding"
	"legal-rag/internal/llmservice"
	"legal-rag/internal/models"
)

// State is the lifecycle state of an index or answer chain.
type State int

const (
	StateUninitialized State = iota
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return "uninitialized"
	}
}

// Pipeline answers questions against one corpus.
type Pipeline struct {
	CorpusID string

	index    *Index
	template llmservice.Template
	composer *llmservice.Composer

	indexState State
	chainState State
	chainErr   error
}

// PipelineHealth reports the state of one pipeline.
type PipelineHealth struct {
	CorpusID string `json:"corpus_id"`
	Index    string `json:"index"`
	Chain    string `json:"chain"`
	Entries  int    `json:"entries"`
	Error    string `json:"error,omitempty"`
}

// Dependencies are the external clients Initialize wires into pipelines.
type Dependencies struct {
	Embedder embedding.Embedder
	// NewModel is called once; its error marks every answer chain failed
	// without aborting startup.
	NewModel func() (llms.Model, error)
}

// App holds every pipeline. It is read-only after Initialize and safe for
// concurrent use.
type App struct {
	pipelines map[string]*Pipeline
	order     []string
	retriever Retriever
	topK      int
}

// NewIndexSpec describes the index of corpus under the chunking settings of ragConfig.
func NewIndexSpec(ragConfig *config.RAGConfig, corpus config.CorpusConfig) IndexSpec {
	return IndexSpec{
		CorpusID:     corpus.ID,
		Source:       corpus.Source,
		StoragePath:  corpus.StoragePath,
		ChunkSize:    ragConfig.ChunkSize,
		ChunkOverlap: ragConfig.ChunkOverlap,
	}
}

// Initialize builds or loads the index of every configured corpus and binds
// an answer chain to each. Index failures are fatal. A model construction
// failure leaves the indexes usable and the chains failed.
func Initialize(ctx context.Context, cfg *config.Config, deps Dependencies) (*App, error) {
	if deps.Embedder == nil {
		return nil, fmt.Errorf("%w: embedder is required", models.ErrInvalidInput)
	}

	app := &App{
		pipelines: make(map[string]*Pipeline, len(cfg.Corpora)),
		retriever: NewRetriever(cfg.RAG.FetchK, cfg.RAG.Lambda),
		topK:      cfg.RAG.TopK,
	}

	for _, corpus := range cfg.Corpora {
		tmpl, err := llmservice.LookupTemplate(corpus.Template)
		if err != nil {
			return nil, fmt.Errorf("corpus %s: %w", corpus.ID, err)
		}
		p := &Pipeline{CorpusID: corpus.ID, template: tmpl}

		ix, err := BuildOrLoad(ctx, NewIndexSpec(&cfg.RAG, corpus), deps.Embedder)
		if err != nil {
			return nil, fmt.Errorf("corpus %s: %w", corpus.ID, err)
		}
		p.index = ix
		p.indexState = StateReady

		app.pipelines[corpus.ID] = p
		app.order = append(app.order, corpus.ID)
	}

	var (
		model    llms.Model
		modelErr error
	)
	if deps.NewModel == nil {
		modelErr = fmt.Errorf("%w: no language model configured", models.ErrUpstream)
	} else {
		model, modelErr = deps.NewModel()
	}
	if modelErr != nil {
		log.Error().Err(modelErr).Msg("Language model unavailable; answer chains disabled")
	}

	for _, id := range app.order {
		p := app.pipelines[id]
		if modelErr != nil {
			p.chainState = StateFailed
			p.chainErr = modelErr
			continue
		}
		p.composer = llmservice.NewComposer(model)
		p.chainState = StateReady
	}

	log.Info().Strs("corpora", app.order).Msg("Pipelines initialized")
	return app, nil
}

// Answer retrieves the top chunks of corpusID for question and composes an
// answer from them.
func (a *App) Answer(ctx context.Context, corpusID, question string) (models.PromptResponse, error) {
	resp := models.PromptResponse{Query: question}

	p, ok := a.pipelines[corpusID]
	if !ok {
		return resp, fmt.Errorf("%w: no pipeline for corpus %q", models.ErrUninitialized, corpusID)
	}
	if p.indexState != StateReady {
		return resp, fmt.Errorf("%w: index for %s", models.ErrUninitialized, corpusID)
	}
	if p.chainState != StateReady {
		return resp, fmt.Errorf("%w: answer chain for %s: %w", models.ErrUninitialized, corpusID, p.chainErr)
	}

	chunks, err := a.retriever.Retrieve(ctx, p.index, question, a.topK)
	if err != nil {
		return resp, err
	}
	for _, c := range chunks {
		resp.Sources = append(resp.Sources, c.ID)
	}

	answer, err := p.composer.Compose(ctx, question, chunks, p.template)
	if err != nil {
		return resp, err
	}
	resp.Content = answer
	return resp, nil
}

// Retrieve exposes the retriever of corpusID without calling the model.
func (a *App) Retrieve(ctx context.Context, corpusID, query string, k int) ([]models.SearchResult, error) {
	p, ok := a.pipelines[corpusID]
	if !ok || p.indexState != StateReady {
		return nil, fmt.Errorf("%w: index for %s", models.ErrUninitialized, corpusID)
	}
	return a.retriever.Retrieve(ctx, p.index, query, k)
}

// Index returns the loaded index of corpusID.
func (a *App) Index(corpusID string) (*Index, bool) {
	p, ok := a.pipelines[corpusID]
	if !ok {
		return nil, false
	}
	return p.index, p.index != nil
}

// Ready reports whether corpusID can answer questions.
func (a *App) Ready(corpusID string) bool {
	p, ok := a.pipelines[corpusID]
	return ok && p.indexState == StateReady && p.chainState == StateReady
}

// Health reports every pipeline, in configuration order.
func (a *App) Health() []PipelineHealth {
	out := make([]PipelineHealth, 0, len(a.pipelines))
	for _, id := range a.order {
		p := a.pipelines[id]
		h := PipelineHealth{
			CorpusID: id,
			Index:    p.indexState.String(),
			Chain:    p.chainState.String(),
		}
		if p.index != nil {
			h.Entries = p.index.Len()
		}
		if p.chainErr != nil {
			h.Error = p.chainErr.Error()
		}
		out = append(out, h)
	}
	return out
}
