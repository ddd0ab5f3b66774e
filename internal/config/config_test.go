package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"legal-rag/internal/models"
)

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte("{}"))
	require.NoError(t, err)

	assert.Equal(t, 1000, cfg.RAG.ChunkSize)
	assert.Equal(t, 200, cfg.RAG.ChunkOverlap)
	assert.Equal(t, 4, cfg.RAG.TopK)
	assert.Equal(t, 20, cfg.RAG.FetchK)
	assert.InDelta(t, 0.5, cfg.RAG.Lambda, 1e-9)
	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, 8001, cfg.Assistant.Port)
	assert.Equal(t, "openai", cfg.InferenceLLM.Provider)
	assert.Equal(t, "GROQ_API_KEY", cfg.InferenceLLM.KeyEnv)
	assert.Equal(t, "ollama", cfg.EmbedLLM.Provider)
	assert.Equal(t, "all-minilm", cfg.EmbedLLM.Model)
	assert.Equal(t, "sqlite", cfg.Database.Driver)

	require.Len(t, cfg.Corpora, 2)
	qa, ok := cfg.Corpus(models.CorpusLegalQA)
	require.True(t, ok)
	assert.Equal(t, models.TemplateLegalQA, qa.Template)
	_, ok = cfg.Corpus("missing")
	assert.False(t, ok)
}

func TestParse_ExplicitZeroOverlapAndLambda(t *testing.T) {
	cfg, err := Parse([]byte("rag: {chunk_overlap: 0, lambda: 0}"))
	require.NoError(t, err)
	assert.Equal(t, 0, cfg.RAG.ChunkOverlap)
	assert.InDelta(t, 0.0, cfg.RAG.Lambda, 1e-9)

	cfg, err = Parse([]byte("rag: {chunk_size: 500}"))
	require.NoError(t, err)
	assert.Equal(t, 500, cfg.RAG.ChunkSize)
	assert.Equal(t, 200, cfg.RAG.ChunkOverlap)
	assert.InDelta(t, 0.5, cfg.RAG.Lambda, 1e-9)
}

func TestParse_ServicePortsDiffer(t *testing.T) {
	cfg, err := Parse([]byte("server: {port: 9000}"))
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 8001, cfg.Assistant.Port)
}

func TestParse_ONNXEmbedderDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
embed_llm:
  provider: onnx
  model_path: models/all-MiniLM-L6-v2/model.onnx
`))
	require.NoError(t, err)
	assert.Equal(t, 384, cfg.EmbedLLM.Dimensions)
	assert.Equal(t, 256, cfg.EmbedLLM.MaxTokens)
	assert.Equal(t, filepath.Join("models", "all-MiniLM-L6-v2", "vocab.txt"), cfg.EmbedLLM.VocabPath)
}

func TestParse_CorpusTemplateDefaultsToID(t *testing.T) {
	cfg, err := Parse([]byte(`
corpora:
  - id: investigation
    source: inv.pdf
    storage_path: inv_db
`))
	require.NoError(t, err)
	require.Len(t, cfg.Corpora, 1)
	assert.Equal(t, "investigation", cfg.Corpora[0].Template)
}

func TestParse_Invalid(t *testing.T) {
	cases := map[string]string{
		"overlap too large": "rag: {chunk_size: 100, chunk_overlap: 100}",
		"lambda":            "rag: {lambda: 1.5}",
		"duplicate corpus":  "corpora: [{id: a, storage_path: x}, {id: a, storage_path: y}]",
		"missing path":      "corpora: [{id: a}]",
		"driver":            "database: {driver: mongo}",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			require.ErrorIs(t, err, models.ErrInvalidInput)
		})
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
inference_llm:
  key_env: TEST_LEGALRAG_KEY
assistant:
  rag_api_url: http://localhost:1
`), 0o644))

	t.Setenv("TEST_LEGALRAG_KEY", "secret")
	t.Setenv("RAG_API_URL", "https://rag.example.com")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "secret", cfg.InferenceLLM.Key)
	assert.Equal(t, "https://rag.example.com", cfg.Assistant.RAGAPIURL)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoadConfig_RepositoryConfig(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join("..", "..", "configs", "config.yaml"))
	require.NoError(t, err)
	require.Len(t, cfg.Corpora, 2)
	assert.Equal(t, models.CorpusLegalQA, cfg.Corpora[0].ID)
	assert.Equal(t, "chroma_db", cfg.Corpora[0].StoragePath)
	assert.Equal(t, 8001, cfg.Assistant.Port)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "ollama", cfg.EmbedLLM.Provider)
	assert.Equal(t, "all-minilm", cfg.EmbedLLM.Model)
}
