package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"legal-rag/internal/models"
)

type Config struct {
	Server       ServerConfig    `yaml:"server"`
	Assistant    AssistantConfig `yaml:"assistant"`
	Log          LogConfig       `yaml:"log"`
	EmbedLLM     LLMConfig       `yaml:"embed_llm"`
	InferenceLLM LLMConfig       `yaml:"inference_llm"`
	RAG          RAGConfig       `yaml:"rag"`
	Corpora      []CorpusConfig  `yaml:"corpora"`
	Database     DatabaseConfig  `yaml:"database"`
}

type ServerConfig struct {
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	TimeoutSecs    int      `yaml:"timeout_secs"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// AssistantConfig configures the user-facing service that calls the
// investigation endpoint.
type AssistantConfig struct {
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	RAGAPIURL   string `yaml:"rag_api_url"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// LLMConfig describes a model endpoint. Provider is one of openai (any
// OpenAI-compatible API such as Groq), ollama or onnx (embeddings only,
// run in process from ModelPath).
type LLMConfig struct {
	Provider   string `yaml:"provider"`
	BaseURL    string `yaml:"base_url"`
	Key        string `yaml:"key"`
	KeyEnv     string `yaml:"key_env"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
	BatchSize  int    `yaml:"batch_size"`

	// onnx only
	ModelPath   string `yaml:"model_path"`
	VocabPath   string `yaml:"vocab_path"`
	LibraryPath string `yaml:"library_path"`
	MaxTokens   int    `yaml:"max_tokens"`
}

type RAGConfig struct {
	ChunkSize     int     `yaml:"chunk_size"`
	ChunkOverlap  int     `yaml:"chunk_overlap"`
	TopK          int     `yaml:"top_k"`
	FetchK        int     `yaml:"fetch_k"`
	Lambda        float64 `yaml:"lambda"`
	EncryptionKey string  `yaml:"encryption_key"`
}

type CorpusConfig struct {
	ID          string `yaml:"id"`
	Source      string `yaml:"source"`
	StoragePath string `yaml:"storage_path"`
	Template    string `yaml:"template"`
}

// DatabaseConfig configures the query log. An empty DSN disables it.
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
	Debug  bool   `yaml:"debug"`
}

const (
	defaultChunkSize     = 1000
	defaultChunkOverlap  = 200
	defaultTopK          = 4
	defaultFetchK        = 20
	defaultLambda        = 0.5
	defaultPort          = 8000
	defaultAssistantPort = 8001
	defaultTimeoutSecs   = 120

	defaultInferenceBaseURL = "https://api.groq.com/openai/v1"
	defaultInferenceModel   = "mixtral-8x7b-32768"
	defaultInferenceKeyEnv  = "GROQ_API_KEY"
	defaultEmbedKeyEnv      = "EMBEDDING_API_KEY"
	defaultEmbedProvider    = "ollama"
	defaultEmbedModel       = "all-minilm"
	defaultEmbedDimensions  = 384
	defaultEmbedMaxTokens   = 256
)

// LoadConfig reads the YAML file at path, loads a .env file when present and
// applies defaults and environment overrides.
func LoadConfig(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.applyEnv()
	return cfg, nil
}

// Parse decodes YAML and applies defaults without touching the environment.
// chunk_overlap and lambda are preset before decoding because zero is a
// valid explicit value for both.
func Parse(data []byte) (*Config, error) {
	cfg := Config{
		RAG: RAGConfig{ChunkOverlap: defaultChunkOverlap, Lambda: defaultLambda},
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = defaultPort
	}
	if c.Assistant.Port == 0 {
		c.Assistant.Port = defaultAssistantPort
	}
	if c.Assistant.TimeoutSecs == 0 {
		c.Assistant.TimeoutSecs = defaultTimeoutSecs
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}

	if c.RAG.ChunkSize == 0 {
		c.RAG.ChunkSize = defaultChunkSize
	}
	if c.RAG.TopK == 0 {
		c.RAG.TopK = defaultTopK
	}
	if c.RAG.FetchK == 0 {
		c.RAG.FetchK = defaultFetchK
	}

	if c.InferenceLLM.Provider == "" {
		c.InferenceLLM.Provider = "openai"
	}
	if c.InferenceLLM.Provider == "openai" && c.InferenceLLM.BaseURL == "" {
		c.InferenceLLM.BaseURL = defaultInferenceBaseURL
	}
	if c.InferenceLLM.Model == "" {
		c.InferenceLLM.Model = defaultInferenceModel
	}
	if c.InferenceLLM.KeyEnv == "" {
		c.InferenceLLM.KeyEnv = defaultInferenceKeyEnv
	}

	if c.EmbedLLM.Provider == "" {
		c.EmbedLLM.Provider = defaultEmbedProvider
	}
	if c.EmbedLLM.KeyEnv == "" {
		c.EmbedLLM.KeyEnv = defaultEmbedKeyEnv
	}
	switch c.EmbedLLM.Provider {
	case "ollama":
		if c.EmbedLLM.Model == "" {
			c.EmbedLLM.Model = defaultEmbedModel
		}
	case "onnx":
		if c.EmbedLLM.Dimensions == 0 {
			c.EmbedLLM.Dimensions = defaultEmbedDimensions
		}
		if c.EmbedLLM.MaxTokens == 0 {
			c.EmbedLLM.MaxTokens = defaultEmbedMaxTokens
		}
		if c.EmbedLLM.VocabPath == "" && c.EmbedLLM.ModelPath != "" {
			c.EmbedLLM.VocabPath = filepath.Join(filepath.Dir(c.EmbedLLM.ModelPath), "vocab.txt")
		}
	}

	if len(c.Corpora) == 0 {
		c.Corpora = []CorpusConfig{
			{ID: models.CorpusLegalQA, Source: "data/legal.pdf", StoragePath: "chroma_db", Template: models.TemplateLegalQA},
			{ID: models.CorpusInvestigation, Source: "data/investigation.pdf", StoragePath: "investigation_db", Template: models.TemplateInvestigation},
		}
	}
	for i := range c.Corpora {
		if c.Corpora[i].Template == "" {
			c.Corpora[i].Template = c.Corpora[i].ID
		}
	}

	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
}

func (c *Config) applyEnv() {
	if c.InferenceLLM.Key == "" {
		c.InferenceLLM.Key = os.Getenv(c.InferenceLLM.KeyEnv)
	}
	if c.EmbedLLM.Key == "" {
		c.EmbedLLM.Key = os.Getenv(c.EmbedLLM.KeyEnv)
	}
	if v := os.Getenv("RAG_API_URL"); v != "" {
		c.Assistant.RAGAPIURL = v
	}
}

// Validate checks values that would make the pipeline misbehave.
func (c *Config) Validate() error {
	if c.RAG.ChunkSize <= 0 {
		return fmt.Errorf("%w: chunk_size must be positive", models.ErrInvalidInput)
	}
	if c.RAG.ChunkOverlap < 0 || c.RAG.ChunkOverlap >= c.RAG.ChunkSize {
		return fmt.Errorf("%w: chunk_overlap must be in [0, chunk_size)", models.ErrInvalidInput)
	}
	if c.RAG.Lambda < 0 || c.RAG.Lambda > 1 {
		return fmt.Errorf("%w: lambda must be in [0, 1]", models.ErrInvalidInput)
	}
	seen := make(map[string]bool, len(c.Corpora))
	for _, corpus := range c.Corpora {
		if corpus.ID == "" || corpus.StoragePath == "" {
			return fmt.Errorf("%w: corpus needs id and storage_path", models.ErrInvalidInput)
		}
		if seen[corpus.ID] {
			return fmt.Errorf("%w: duplicate corpus %q", models.ErrInvalidInput, corpus.ID)
		}
		seen[corpus.ID] = true
	}
	switch strings.ToLower(c.Database.Driver) {
	case "sqlite", "pg", "postgres":
	default:
		return fmt.Errorf("%w: unknown database driver %q", models.ErrInvalidInput, c.Database.Driver)
	}
	return nil
}

// Corpus returns the configuration of the named corpus.
func (c *Config) Corpus(id string) (CorpusConfig, bool) {
	for _, corpus := range c.Corpora {
		if corpus.ID == id {
			return corpus, true
		}
	}
	return CorpusConfig{}, false
}
