package embedding

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"legal-rag/internal/config"
	"legal-rag/internal/models"
)

const defaultBatchSize = 32

// Embedder is the embedding function shared by index build and query time,
// with an identity recorded in the index manifest.
type Embedder interface {
	embeddings.Embedder
	ID() string
}

type namedEmbedder struct {
	embeddings.Embedder
	id string
}

func (e namedEmbedder) ID() string { return e.id }

// NewFromConfig builds the embedder selected by cfg.Provider: ollama (the
// default, serving all-minilm), onnx (all-MiniLM-L6-v2 in process) or any
// OpenAI-compatible embeddings API.
func NewFromConfig(cfg *config.LLMConfig) (Embedder, error) {
	switch strings.ToLower(cfg.Provider) {
	case "onnx":
		if cfg.ModelPath == "" || cfg.VocabPath == "" {
			return nil, fmt.Errorf("%w: onnx embedder needs model_path and vocab_path", models.ErrInvalidInput)
		}
		if cfg.Dimensions <= 0 || cfg.MaxTokens < 2 {
			return nil, fmt.Errorf("%w: onnx embedder needs dimensions and max_tokens", models.ErrInvalidInput)
		}
		e, err := NewONNXEmbedder(cfg)
		if err != nil {
			return nil, err
		}
		return e, nil
	case "openai":
		e, err := NewEmbedder(cfg.Key, cfg.BaseURL, cfg.Model, cfg.BatchSize)
		if err != nil {
			return nil, err
		}
		return namedEmbedder{Embedder: e, id: "openai:" + cfg.Model}, nil
	case "ollama", "":
		e, err := NewOllamaEmbedder(cfg)
		if err != nil {
			return nil, err
		}
		return namedEmbedder{Embedder: e, id: "ollama:" + cfg.Model}, nil
	default:
		return nil, fmt.Errorf("%w: unknown embedding provider %q", models.ErrInvalidInput, cfg.Provider)
	}
}

// NewEmbedder creates an embedder for any OpenAI-compatible embeddings API
func NewEmbedder(apiKey, baseURL, embeddingModel string, batchSize int) (*embeddings.EmbedderImpl, error) {
	log.Debug().Interface("config", map[string]string{
		"base_url":        baseURL,
		"embedding_model": embeddingModel,
	}).Msg("Creating OpenAI-compatible embedder")

	if apiKey == "" {
		return nil, fmt.Errorf("%w: missing embedding API key", models.ErrUpstream)
	}
	opts := []openai.Option{
		openai.WithToken(strings.TrimPrefix(apiKey, "Bearer ")),
		openai.WithEmbeddingModel(embeddingModel),
	}
	if baseURL != "" {
		opts = append(opts, openai.WithBaseURL(baseURL))
	}
	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrUpstream, err)
	}
	return embeddings.NewEmbedder(llm, embeddings.WithBatchSize(batchSizeOrDefault(batchSize)))
}

// new ollama embedder
func NewOllamaEmbedder(llmConfig *config.LLMConfig) (*embeddings.EmbedderImpl, error) {
	log.Debug().Interface("config", map[string]string{
		"base_url":        llmConfig.BaseURL,
		"embedding_model": llmConfig.Model,
	}).Msg("Creating ollama embedder")

	opts := []ollama.Option{ollama.WithModel(llmConfig.Model)}
	if llmConfig.BaseURL != "" {
		opts = append(opts, ollama.WithServerURL(llmConfig.BaseURL))
	}
	llm, err := ollama.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrUpstream, err)
	}
	return embeddings.NewEmbedder(llm, embeddings.WithBatchSize(batchSizeOrDefault(llmConfig.BatchSize)))
}

// EmbedChunks embeds chunk contents in one batched call and pairs the
// vectors with their chunks.
func EmbedChunks(ctx context.Context, embedder embeddings.Embedder, chunks []models.Chunk) ([]models.ChunkEmbedding, error) {
	if len(chunks) == 0 {
		log.Info().Msg("No chunks to embed")
		return nil, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	vectors, err := embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("%w: embed documents: %w", models.ErrUpstream, err)
	}
	if len(vectors) != len(chunks) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d chunks", models.ErrUpstream, len(vectors), len(chunks))
	}

	out := make([]models.ChunkEmbedding, len(chunks))
	for i, c := range chunks {
		out[i] = models.ChunkEmbedding{Chunk: c, Embedding: vectors[i]}
	}
	return out, nil
}

func onnxID(cfg *config.LLMConfig) string {
	return fmt.Sprintf("onnx:%s:%d", filepath.Base(cfg.ModelPath), cfg.Dimensions)
}

func batchSizeOrDefault(n int) int {
	if n <= 0 {
		return defaultBatchSize
	}
	return n
}
