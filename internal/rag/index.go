package rag

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"legal-rag/internal/chromemdb"
	"legal-rag/internal/embedding"
	"legal-rag/internal/models"
	"legal-rag/internal/parser"
)

// IndexSpec describes one corpus index.
type IndexSpec struct {
	CorpusID     string
	Source       string
	StoragePath  string
	ChunkSize    int
	ChunkOverlap int
}

// Index is a persisted, read-only vector index for one corpus.
type Index struct {
	CorpusID string
	Manifest models.IndexManifest

	db       *chromemdb.VectorDBManager
	embedder embedding.Embedder
}

// BuildOrLoad opens the index at spec.StoragePath when it exists. Otherwise
// it loads spec.Source, chunks and embeds it and persists the result. The
// store is assembled in a temporary sibling directory and renamed into place,
// so a failed build leaves nothing at StoragePath.
func BuildOrLoad(ctx context.Context, spec IndexSpec, embedder embedding.Embedder) (*Index, error) {
	if spec.CorpusID == "" || spec.StoragePath == "" {
		return nil, fmt.Errorf("%w: corpus id and storage path are required", models.ErrInvalidInput)
	}

	info, err := os.Stat(spec.StoragePath)
	switch {
	case err == nil && info.IsDir():
		return loadIndex(spec, embedder)
	case err == nil:
		return nil, fmt.Errorf("%w: %s is not a directory", models.ErrInvalidInput, spec.StoragePath)
	case !errors.Is(err, fs.ErrNotExist):
		return nil, err
	}

	if err := buildIndex(ctx, spec, embedder); err != nil {
		return nil, err
	}
	return loadIndex(spec, embedder)
}

func loadIndex(spec IndexSpec, embedder embedding.Embedder) (*Index, error) {
	manifest, err := readManifest(filepath.Join(spec.StoragePath, models.ManifestFile))
	if err != nil {
		return nil, err
	}
	if manifest.Embedder != embedder.ID() {
		return nil, fmt.Errorf("%w: index %s was built with %q, configured embedder is %q",
			models.ErrEmbedderMismatch, spec.StoragePath, manifest.Embedder, embedder.ID())
	}

	db, err := chromemdb.NewVectorDBManager(spec.StoragePath, false)
	if err != nil {
		return nil, err
	}
	if _, err := db.GetOrCreateCollection(manifest.Collection, embedFunc(embedder)); err != nil {
		return nil, err
	}
	if db.Count() != manifest.Entries {
		return nil, fmt.Errorf("%w: index %s holds %d entries, manifest expects %d",
			models.ErrNotFound, spec.StoragePath, db.Count(), manifest.Entries)
	}

	log.Info().
		Str("corpus", spec.CorpusID).
		Str("path", spec.StoragePath).
		Int("entries", manifest.Entries).
		Msg("Loaded existing index")

	return &Index{CorpusID: spec.CorpusID, Manifest: manifest, db: db, embedder: embedder}, nil
}

func buildIndex(ctx context.Context, spec IndexSpec, embedder embedding.Embedder) (err error) {
	doc, err := parser.LoadDocument(spec.Source)
	if err != nil {
		return err
	}
	chunks, err := parser.ChunkDocument(doc, spec.ChunkSize, spec.ChunkOverlap)
	if err != nil {
		return err
	}
	if len(chunks) == 0 {
		log.Warn().Str("source", spec.Source).Msg("Source document has no text; building an empty index")
	}

	embedded, err := embedding.EmbedChunks(ctx, embedder, chunks)
	if err != nil {
		return err
	}

	tmp, err := stagingDir(spec.StoragePath)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = os.RemoveAll(tmp)
		}
	}()

	db, err := chromemdb.NewVectorDBManager(tmp, false)
	if err != nil {
		return err
	}
	if _, err = db.GetOrCreateCollection(spec.CorpusID, embedFunc(embedder)); err != nil {
		return err
	}
	if len(embedded) > 0 {
		if err = db.CreateDocs(ctx, toDocuments(spec.CorpusID, embedded)); err != nil {
			return err
		}
	}

	manifest := models.IndexManifest{
		CorpusID:     spec.CorpusID,
		Source:       spec.Source,
		Collection:   spec.CorpusID,
		Embedder:     embedder.ID(),
		ChunkSize:    spec.ChunkSize,
		ChunkOverlap: spec.ChunkOverlap,
		Entries:      len(embedded),
		BuiltAt:      time.Now().UTC(),
	}
	if err = commit(tmp, spec.StoragePath, manifest); err != nil {
		return err
	}

	log.Info().
		Str("corpus", spec.CorpusID).
		Str("source", spec.Source).
		Str("path", spec.StoragePath).
		Int("entries", len(embedded)).
		Msg("Built index")
	return nil
}

// stagingDir creates a temporary sibling of storagePath.
func stagingDir(storagePath string) (string, error) {
	parent := filepath.Dir(storagePath)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return "", err
	}
	return os.MkdirTemp(parent, "."+filepath.Base(storagePath)+".tmp-")
}

// commit writes the manifest into tmp and renames tmp to storagePath.
func commit(tmp, storagePath string, manifest models.IndexManifest) error {
	if err := writeManifest(filepath.Join(tmp, models.ManifestFile), manifest); err != nil {
		return err
	}
	if err := os.Rename(tmp, storagePath); err != nil {
		return fmt.Errorf("commit index: %w", err)
	}
	return nil
}

// ImportIndex restores a snapshot written by Index.Export into
// spec.StoragePath, which must not exist yet. The snapshot must have been
// built with the same embedder.
func ImportIndex(spec IndexSpec, embedder embedding.Embedder, path, encryptionKey string) (ix *Index, err error) {
	if spec.CorpusID == "" || spec.StoragePath == "" {
		return nil, fmt.Errorf("%w: corpus id and storage path are required", models.ErrInvalidInput)
	}
	if _, statErr := os.Stat(spec.StoragePath); statErr == nil {
		return nil, fmt.Errorf("%w: %s already exists", models.ErrInvalidInput, spec.StoragePath)
	} else if !errors.Is(statErr, fs.ErrNotExist) {
		return nil, statErr
	}

	manifest, err := readManifest(path + models.SnapshotManifestSuffix)
	if err != nil {
		return nil, err
	}
	if manifest.CorpusID != spec.CorpusID {
		return nil, fmt.Errorf("%w: snapshot %s holds corpus %q, not %q",
			models.ErrInvalidInput, path, manifest.CorpusID, spec.CorpusID)
	}
	if manifest.Embedder != embedder.ID() {
		return nil, fmt.Errorf("%w: snapshot %s was built with %q, configured embedder is %q",
			models.ErrEmbedderMismatch, path, manifest.Embedder, embedder.ID())
	}

	tmp, err := stagingDir(spec.StoragePath)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = os.RemoveAll(tmp)
		}
	}()

	db, err := chromemdb.NewVectorDBManager(tmp, false)
	if err != nil {
		return nil, err
	}
	if err = db.Import(path, encryptionKey, manifest.Collection, embedFunc(embedder)); err != nil {
		return nil, err
	}
	if db.Count() != manifest.Entries {
		err = fmt.Errorf("%w: snapshot %s holds %d entries, manifest expects %d",
			models.ErrNotFound, path, db.Count(), manifest.Entries)
		return nil, err
	}
	if err = commit(tmp, spec.StoragePath, manifest); err != nil {
		return nil, err
	}

	log.Info().
		Str("corpus", spec.CorpusID).
		Str("file", path).
		Str("path", spec.StoragePath).
		Int("entries", manifest.Entries).
		Msg("Imported index")
	return loadIndex(spec, embedder)
}

func toDocuments(corpusID string, embedded []models.ChunkEmbedding) []chromem.Document {
	docs := make([]chromem.Document, len(embedded))
	for i, ce := range embedded {
		docs[i] = chromem.Document{
			ID:        fmt.Sprintf("%s-p%d-c%d", corpusID, ce.PageNumber, ce.ChunkID),
			Content:   ce.Content,
			Embedding: ce.Embedding,
			Metadata: map[string]string{
				models.MetaSource: ce.Source,
				models.MetaPage:   strconv.Itoa(ce.PageNumber),
				models.MetaChunk:  strconv.Itoa(ce.ChunkID),
				models.MetaStart:  strconv.Itoa(ce.Start),
				models.MetaEnd:    strconv.Itoa(ce.End),
			},
		}
	}
	return docs
}

func embedFunc(embedder embedding.Embedder) chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		return embedder.EmbedQuery(ctx, text)
	}
}

func readManifest(path string) (models.IndexManifest, error) {
	var m models.IndexManifest
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return m, fmt.Errorf("%w: index manifest %s", models.ErrNotFound, path)
		}
		return m, err
	}
	if err := yaml.Unmarshal(data, &m); err != nil {
		return m, fmt.Errorf("decode index manifest: %w", err)
	}
	return m, nil
}

func writeManifest(path string, m models.IndexManifest) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Len returns the number of entries in the index.
func (ix *Index) Len() int {
	return ix.db.Count()
}

// Export writes a portable snapshot of the index collection to path and
// its manifest to path + ".yaml".
func (ix *Index) Export(path, encryptionKey string) error {
	if err := ix.db.Export(path, encryptionKey); err != nil {
		return err
	}
	return writeManifest(path+models.SnapshotManifestSuffix, ix.Manifest)
}
