package parser

import (
	"fmt"
	"strings"
	"unicode"

	"legal-rag/internal/models"
)

// break preferences, strongest first
var sentenceEnds = []string{". ", "? ", "! ", "; "}

// Split chunks text into windows of chunkSize runes where consecutive windows
// share exactly overlap runes. A window that does not reach the end of the
// text is cut at the nearest natural break in its last tenth. Once a window
// reaches the end the stride falls back to chunkSize-overlap, and chunking
// stops when the next start passes the end of the text.
func Split(text string, chunkSize, overlap int) ([]models.Chunk, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", models.ErrInvalidInput, chunkSize)
	}
	if overlap < 0 || overlap >= chunkSize {
		return nil, fmt.Errorf("%w: overlap must be in [0, %d), got %d", models.ErrInvalidInput, chunkSize, overlap)
	}

	runes := []rune(text)
	n := len(runes)
	if n == 0 {
		return nil, nil
	}

	var chunks []models.Chunk
	stride := chunkSize - overlap
	start := 0
	for start < n {
		end := min(start+chunkSize, n)
		next := start + stride
		if end < n {
			end = breakPoint(runes, start, end, overlap, chunkSize)
			next = end - overlap
		}

		chunks = append(chunks, models.Chunk{
			Content: string(runes[start:end]),
			ChunkID: len(chunks) + 1,
			Start:   start,
			End:     end,
		})
		start = next
	}
	return chunks, nil
}

// breakPoint returns the exclusive end of the window [start, end). Only cut
// positions in the last tenth of the window and strictly after start+overlap
// are considered so the next window always advances.
func breakPoint(runes []rune, start, end, overlap, chunkSize int) int {
	lookBack := max(chunkSize/10, 1)
	lowest := max(end-lookBack, start+overlap+1)
	if lowest >= end {
		return end
	}
	window := string(runes[lowest:end])

	if cut := lastCut(window, []string{"\n\n"}); cut > 0 {
		return lowest + cut
	}
	if cut := lastCut(window, []string{"\n"}); cut > 0 {
		return lowest + cut
	}
	if cut := lastCut(window, sentenceEnds); cut > 0 {
		return lowest + cut
	}
	for i := end - 1; i >= lowest; i-- {
		if unicode.IsSpace(runes[i]) {
			return i + 1
		}
	}
	return end
}

// lastCut returns the rune offset just past the last occurrence of any
// separator in window, or 0.
func lastCut(window string, separators []string) int {
	best := -1
	for _, sep := range separators {
		if i := strings.LastIndex(window, sep); i >= 0 && i+len(sep) > best {
			best = i + len(sep)
		}
	}
	if best <= 0 {
		return 0
	}
	return len([]rune(window[:best]))
}

// getChunks splits one page and tags the chunks with source metadata
func (p *ParserConfig) getChunks(source string, page models.Page) ([]models.Chunk, error) {
	chunks, err := Split(page.Text, p.ChunkSize, p.ChunkOverlap)
	if err != nil {
		return nil, err
	}
	for i := range chunks {
		chunks[i].Source = source
		chunks[i].PageNumber = page.Number
	}
	return chunks, nil
}

// ChunkDocument splits every page of doc. Whitespace-only chunks are dropped.
func ChunkDocument(doc models.Document, chunkSize, overlap int) ([]models.Chunk, error) {
	p := ParserConfig{ChunkSize: chunkSize, ChunkOverlap: overlap}
	var out []models.Chunk
	for _, page := range doc.Pages {
		chunks, err := p.getChunks(doc.Source, page)
		if err != nil {
			return nil, err
		}
		for _, c := range chunks {
			if strings.TrimSpace(c.Content) == "" {
				continue
			}
			out = append(out, c)
		}
	}
	return out, nil
}
