//go:build !cgo

package embedding

import (
	"context"
	"fmt"

	"legal-rag/internal/config"
	"legal-rag/internal/models"
)

// ONNXEmbedder is unavailable without CGO (see onnx.go).
type ONNXEmbedder struct{}

// NewONNXEmbedder always fails when built without CGO.
func NewONNXEmbedder(_ *config.LLMConfig) (*ONNXEmbedder, error) {
	return nil, fmt.Errorf("%w: onnx embedder requires CGO_ENABLED=1 and onnxruntime", models.ErrUpstream)
}

func (e *ONNXEmbedder) ID() string { return "" }

func (e *ONNXEmbedder) EmbedDocuments(context.Context, []string) ([][]float32, error) {
	return nil, fmt.Errorf("%w: onnx embedder unavailable", models.ErrUpstream)
}

func (e *ONNXEmbedder) EmbedQuery(context.Context, string) ([]float32, error) {
	return nil, fmt.Errorf("%w: onnx embedder unavailable", models.ErrUpstream)
}

func (e *ONNXEmbedder) Close() error { return nil }
