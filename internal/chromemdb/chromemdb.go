package chromemdb

import (
	"context"
	"fmt"
	"runtime"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"
)

// VectorDBManager encapsulates the chromem-go database operations
type VectorDBManager struct {
	db         *chromem.DB
	collection *chromem.Collection
	dbPath     string
	compress   bool
}

const (
	compress = false
)

// NewVectorDBManager opens (or creates) a persistent database at dbPath,
// or an in-memory one when inMemory is set.
func NewVectorDBManager(dbPath string, inMemory bool) (*VectorDBManager, error) {
	var db *chromem.DB
	var err error
	if inMemory {
		db = chromem.NewDB()
	} else {
		db, err = chromem.NewPersistentDB(dbPath, compress)
		if err != nil {
			return nil, fmt.Errorf("failed to create database: %w", err)
		}
	}

	return &VectorDBManager{
		db:       db,
		dbPath:   dbPath,
		compress: compress,
	}, nil
}

// GetOrCreateCollection creates or reads the named collection. embed is used
// by chromem whenever a document or query comes without a vector.
func (m *VectorDBManager) GetOrCreateCollection(collectionName string, embed chromem.EmbeddingFunc) (*chromem.Collection, error) {
	c, err := m.db.GetOrCreateCollection(collectionName, nil, embed)
	if err != nil {
		return nil, fmt.Errorf("failed to create/get collection: %w", err)
	}
	m.collection = c
	return c, nil
}

// CreateDocs adds documents with precomputed embeddings
func (m *VectorDBManager) CreateDocs(ctx context.Context, documents []chromem.Document) error {
	if m.collection == nil {
		return fmt.Errorf("collection is required")
	}
	err := m.collection.AddDocuments(ctx, documents, runtime.NumCPU())
	if err != nil {
		return fmt.Errorf("failed to add documents: %w", err)
	}
	return nil
}

// Count returns the number of documents in the collection.
func (m *VectorDBManager) Count() int {
	if m.collection == nil {
		return 0
	}
	return m.collection.Count()
}

// SearchByEmbedding returns the n most similar documents, most similar first.
func (m *VectorDBManager) SearchByEmbedding(ctx context.Context, embedding []float32, n int) ([]chromem.Result, error) {
	if m.collection == nil {
		return nil, fmt.Errorf("collection is required")
	}
	if len(embedding) == 0 {
		return nil, fmt.Errorf("query embedding must be provided")
	}
	n = min(n, m.collection.Count())
	if n <= 0 {
		return nil, nil
	}

	results, err := m.collection.QueryEmbedding(ctx, embedding, n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query by similarity: %w", err)
	}
	return results, nil
}

// Export writes the collection to a single file, encrypted when
// encryptionKey is set (chromem requires 32 bytes).
func (m *VectorDBManager) Export(filePath, encryptionKey string) error {
	if m.collection == nil {
		return fmt.Errorf("collection is required")
	}
	if filePath == "" {
		return fmt.Errorf("export path is required")
	}

	log.Debug().
		Str("collection", m.collection.Name).
		Str("file", filePath).
		Bool("compress", m.compress).
		Bool("encrypted", encryptionKey != "").
		Msg("Exporting collection")

	err := m.db.ExportToFile(filePath, m.compress, encryptionKey, m.collection.Name)
	if err != nil {
		return fmt.Errorf("failed to export database: %w", err)
	}
	return nil
}

// Import loads a collection previously written by Export.
func (m *VectorDBManager) Import(filePath, encryptionKey, collectionName string, embed chromem.EmbeddingFunc) error {
	err := m.db.ImportFromFile(filePath, encryptionKey, collectionName)
	if err != nil {
		return fmt.Errorf("failed to import database: %w", err)
	}
	c := m.db.GetCollection(collectionName, embed)
	if c == nil {
		return fmt.Errorf("collection %q not found in %s", collectionName, filePath)
	}
	m.collection = c
	return nil
}
