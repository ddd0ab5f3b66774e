//go:build cgo

package embedding

import (
	"context"
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"legal-rag/internal/config"
	"legal-rag/internal/models"
)

var (
	runtimeOnce sync.Once
	runtimeErr  error
)

func initRuntime(libraryPath string) error {
	runtimeOnce.Do(func() {
		if libraryPath != "" {
			ort.SetSharedLibraryPath(libraryPath)
		}
		runtimeErr = ort.InitializeEnvironment()
	})
	return runtimeErr
}

// ONNXEmbedder runs a sentence-transformer export such as all-MiniLM-L6-v2
// in process. It mean-pools last_hidden_state over the attention mask.
// Requires CGO and the onnxruntime shared library.
type ONNXEmbedder struct {
	mu         sync.Mutex
	id         string
	dimensions int
	maxTokens  int
	tokenizer  *WordPieceTokenizer

	session       *ort.AdvancedSession
	inputIDs      *ort.Tensor[int64]
	attentionMask *ort.Tensor[int64]
	tokenTypeIDs  *ort.Tensor[int64]
	hidden        *ort.Tensor[float32]
}

// NewONNXEmbedder loads cfg.ModelPath and cfg.VocabPath.
func NewONNXEmbedder(cfg *config.LLMConfig) (*ONNXEmbedder, error) {
	tokenizer, err := LoadWordPieceVocab(cfg.VocabPath)
	if err != nil {
		return nil, err
	}
	if err := initRuntime(cfg.LibraryPath); err != nil {
		return nil, fmt.Errorf("%w: initialize onnx runtime: %w", models.ErrUpstream, err)
	}

	e := &ONNXEmbedder{
		id:         onnxID(cfg),
		dimensions: cfg.Dimensions,
		maxTokens:  cfg.MaxTokens,
		tokenizer:  tokenizer,
	}
	shape := ort.NewShape(1, int64(e.maxTokens))
	if e.inputIDs, err = ort.NewTensor(shape, make([]int64, e.maxTokens)); err != nil {
		return nil, e.fail("input_ids tensor", err)
	}
	if e.attentionMask, err = ort.NewTensor(shape, make([]int64, e.maxTokens)); err != nil {
		return nil, e.fail("attention_mask tensor", err)
	}
	if e.tokenTypeIDs, err = ort.NewTensor(shape, make([]int64, e.maxTokens)); err != nil {
		return nil, e.fail("token_type_ids tensor", err)
	}
	hiddenShape := ort.NewShape(1, int64(e.maxTokens), int64(e.dimensions))
	if e.hidden, err = ort.NewTensor(hiddenShape, make([]float32, e.maxTokens*e.dimensions)); err != nil {
		return nil, e.fail("output tensor", err)
	}

	e.session, err = ort.NewAdvancedSession(
		cfg.ModelPath,
		[]string{"input_ids", "attention_mask", "token_type_ids"},
		[]string{"last_hidden_state"},
		[]ort.ArbitraryTensor{e.inputIDs, e.attentionMask, e.tokenTypeIDs},
		[]ort.ArbitraryTensor{e.hidden},
		nil,
	)
	if err != nil {
		return nil, e.fail("session", err)
	}
	return e, nil
}

func (e *ONNXEmbedder) fail(what string, err error) error {
	_ = e.Close()
	return fmt.Errorf("%w: onnx %s: %w", models.ErrUpstream, what, err)
}

func (e *ONNXEmbedder) ID() string { return e.id }

func (e *ONNXEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		vec, err := e.embed(text)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

func (e *ONNXEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return e.embed(text)
}

func (e *ONNXEmbedder) embed(text string) ([]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ids, mask, types := e.tokenizer.Tokenize(text, e.maxTokens)
	copy(e.inputIDs.GetData(), ids)
	copy(e.attentionMask.GetData(), mask)
	copy(e.tokenTypeIDs.GetData(), types)

	if err := e.session.Run(); err != nil {
		return nil, fmt.Errorf("%w: onnx inference: %w", models.ErrUpstream, err)
	}
	return meanPool(e.hidden.GetData(), mask, e.dimensions), nil
}

// Close releases the session and its tensors.
func (e *ONNXEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	var err error
	if e.session != nil {
		err = e.session.Destroy()
		e.session = nil
	}
	for _, t := range []*ort.Tensor[int64]{e.inputIDs, e.attentionMask, e.tokenTypeIDs} {
		if t != nil {
			_ = t.Destroy()
		}
	}
	e.inputIDs, e.attentionMask, e.tokenTypeIDs = nil, nil, nil
	if e.hidden != nil {
		_ = e.hidden.Destroy()
		e.hidden = nil
	}
	return err
}
