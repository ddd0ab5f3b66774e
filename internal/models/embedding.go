package models

import "time"

// Document is a loaded source file split into pages
type Document struct {
	Source string
	Pages  []Page
}

// Page holds the plain text of one page, slide or sheet (1-based)
type Page struct {
	Number int
	Text   string
}

// Chunk represents a parsed chunk with metadata.
// Start and End are rune offsets into the page text.
type Chunk struct {
	Content    string
	Source     string
	PageNumber int
	ChunkID    int
	Start      int
	End        int
}

// ChunkEmbedding pairs a chunk with its vector
type ChunkEmbedding struct {
	Chunk
	Embedding []float32
}

// SearchResult is one retrieved index entry
type SearchResult struct {
	ID         string            `json:"id"`
	Content    string            `json:"content"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	Similarity float32           `json:"similarity"`
	Embedding  []float32         `json:"-"`
}

type PromptResponse struct {
	Query   string
	Sources []string
	Content string
}

// IndexManifest is persisted next to a built index.
type IndexManifest struct {
	CorpusID     string    `yaml:"corpus_id"`
	Source       string    `yaml:"source"`
	Collection   string    `yaml:"collection"`
	Embedder     string    `yaml:"embedder"`
	ChunkSize    int       `yaml:"chunk_size"`
	ChunkOverlap int       `yaml:"chunk_overlap"`
	Entries      int       `yaml:"entries"`
	BuiltAt      time.Time `yaml:"built_at"`
}
