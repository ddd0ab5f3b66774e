package rag

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"

	"legal-rag/internal/models"
)

// Retriever selects chunks from an Index by maximal marginal relevance.
type Retriever struct {
	// FetchK is the size of the candidate pool taken by plain similarity.
	FetchK int
	// Lambda trades relevance (1) against diversity (0).
	Lambda float64
}

func NewRetriever(fetchK int, lambda float64) Retriever {
	return Retriever{FetchK: fetchK, Lambda: lambda}
}

// Retrieve returns up to k chunks for query. Candidates are ordered by
// similarity with ties broken by ID, so the result is deterministic for a
// given index. When the index holds no more than k entries every entry is
// returned in relevance order.
func (r Retriever) Retrieve(ctx context.Context, ix *Index, query string, k int) ([]models.SearchResult, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be positive, got %d", models.ErrInvalidInput, k)
	}
	if ix == nil {
		return nil, fmt.Errorf("%w: index not loaded", models.ErrUninitialized)
	}
	if ix.Len() == 0 {
		return []models.SearchResult{}, nil
	}

	qvec, err := ix.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: embed query: %w", models.ErrUpstream, err)
	}

	fetchK := max(k, r.FetchK)
	results, err := ix.db.SearchByEmbedding(ctx, qvec, fetchK)
	if err != nil {
		return nil, err
	}
	sortCandidates(results)

	var picked []chromem.Result
	if len(results) <= k {
		picked = results
	} else {
		picked = mmr(results, k, r.Lambda)
	}

	log.Debug().
		Str("corpus", ix.CorpusID).
		Int("candidates", len(results)).
		Int("selected", len(picked)).
		Msg("Retrieved chunks")

	out := make([]models.SearchResult, len(picked))
	for i, res := range picked {
		out[i] = models.SearchResult{
			ID:         res.ID,
			Content:    res.Content,
			Metadata:   res.Metadata,
			Similarity: res.Similarity,
			Embedding:  res.Embedding,
		}
	}
	return out, nil
}

func sortCandidates(results []chromem.Result) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Similarity != results[j].Similarity {
			return results[i].Similarity > results[j].Similarity
		}
		return results[i].ID < results[j].ID
	})
}

// mmr greedily picks k results maximising
// lambda*sim(query, d) - (1-lambda)*max sim(d, selected).
// The first pick is always the most relevant candidate.
func mmr(cands []chromem.Result, k int, lambda float64) []chromem.Result {
	selected := make([]chromem.Result, 0, k)
	used := make([]bool, len(cands))
	// maxSim[i] is the highest similarity of candidate i to anything selected.
	maxSim := make([]float64, len(cands))

	for len(selected) < k {
		best := -1
		bestScore := math.Inf(-1)
		for i, c := range cands {
			if used[i] {
				continue
			}
			score := lambda * float64(c.Similarity)
			if len(selected) > 0 {
				score -= (1 - lambda) * maxSim[i]
			}
			// strict comparison keeps the earlier (higher ranked) candidate on ties
			if score > bestScore {
				best, bestScore = i, score
			}
		}
		if best < 0 {
			break
		}
		used[best] = true
		selected = append(selected, cands[best])

		for i, c := range cands {
			if used[i] {
				continue
			}
			s := cosine(c.Embedding, cands[best].Embedding)
			if len(selected) == 1 || s > maxSim[i] {
				maxSim[i] = s
			}
		}
	}
	return selected
}

func cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
