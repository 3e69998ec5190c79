package rag

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"sync"
)

// Embedder produces one dense vector per input text, rows aligned with the
// input. Stateless; implementations wrap an external model.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Result is one similarity hit.
type Result struct {
	Chunk string
	Score float64
}

// Store is one job's retrieval index: parallel slices of chunks and their
// unit-normalized embeddings. Read-heavy with occasional appends; reads take
// the read lock, appends take the write lock for the whole chunk+index
// update so the cardinality invariant (len(vectors) == len(chunks)) holds
// at every observable point.
//
// When the embedder is missing or failing the store degrades to keyword
// overlap scoring. Degradation is sticky and observable via Degraded().
type Store struct {
	mu       sync.RWMutex
	embedder Embedder
	chunks   []string
	vectors  [][]float32
	degraded bool
}

// NewStore creates an empty store. A nil embedder starts degraded.
func NewStore(embedder Embedder) *Store {
	return &Store{
		embedder: embedder,
		degraded: embedder == nil,
	}
}

// Add chunks the text and appends the chunks (and their embeddings) to the
// index. On embedding failure the store switches to degraded mode and keeps
// the chunks for keyword retrieval; text is never dropped.
func (s *Store) Add(ctx context.Context, text string) error {
	chunks := SplitChunks(text, DefaultChunkSize)
	if len(chunks) == 0 {
		return nil
	}

	var vectors [][]float32
	s.mu.RLock()
	degraded := s.degraded
	s.mu.RUnlock()

	if !degraded {
		var err error
		vectors, err = s.embedder.Embed(ctx, chunks)
		if err != nil || len(vectors) != len(chunks) {
			slog.Warn("Embedding failed, RAG store degrading to keyword retrieval",
				"chunks", len(chunks), "error", err)
			vectors = nil
			degraded = true
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if degraded && !s.degraded {
		s.degraded = true
		// Drop the vector side entirely: mixed indexing would break the
		// cardinality invariant.
		s.vectors = nil
	}
	s.chunks = append(s.chunks, chunks...)
	if !s.degraded {
		for _, v := range vectors {
			s.vectors = append(s.vectors, normalize(v))
		}
	}
	return nil
}

// Query returns the k most similar chunks with their scores, most similar
// first. In degraded mode scores are keyword-overlap ratios instead of
// cosine similarities.
func (s *Store) Query(ctx context.Context, query string, k int) ([]Result, error) {
	if k <= 0 {
		return nil, nil
	}

	s.mu.RLock()
	degraded := s.degraded
	chunks := s.chunks
	s.mu.RUnlock()

	if len(chunks) == 0 {
		return nil, nil
	}

	if degraded {
		return keywordTopK(chunks, query, k), nil
	}

	qvecs, err := s.embedder.Embed(ctx, []string{query})
	if err != nil || len(qvecs) != 1 {
		slog.Warn("Query embedding failed, falling back to keyword retrieval", "error", err)
		return keywordTopK(chunks, query, k), nil
	}
	qvec := normalize(qvecs[0])

	s.mu.RLock()
	defer s.mu.RUnlock()
	// A concurrent Add may have degraded the store since the first snapshot.
	if s.degraded {
		return keywordTopK(s.chunks, query, k), nil
	}
	if len(s.vectors) != len(s.chunks) {
		return nil, fmt.Errorf("rag: index cardinality %d does not match chunk count %d", len(s.vectors), len(s.chunks))
	}

	results := make([]Result, len(s.chunks))
	for i, v := range s.vectors {
		results[i] = Result{Chunk: s.chunks[i], Score: dot(qvec, v)}
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// Len returns the number of indexed chunks.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks)
}

// Degraded reports whether the store fell back to keyword retrieval.
func (s *Store) Degraded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.degraded
}

// keywordTopK scores chunks by token-overlap ratio with the query.
func keywordTopK(chunks []string, query string, k int) []Result {
	qTokens := tokenSet(query)
	results := make([]Result, len(chunks))
	for i, c := range chunks {
		results[i] = Result{Chunk: c, Score: overlap(qTokens, tokenSet(c))}
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > k {
		results = results[:k]
	}
	return results
}

func tokenSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, tok := range strings.Fields(strings.ToLower(s)) {
		tok = strings.Trim(tok, ".,;:!?\"'()[]{}")
		if len(tok) > 2 {
			set[tok] = struct{}{}
		}
	}
	return set
}

// overlap is |q ∩ c| / |q|, the share of query tokens present in the chunk.
func overlap(q, c map[string]struct{}) float64 {
	if len(q) == 0 {
		return 0
	}
	var hits int
	for tok := range q {
		if _, ok := c[tok]; ok {
			hits++
		}
	}
	return float64(hits) / float64(len(q))
}

// normalize returns v scaled to unit length. Cosine similarity between unit
// vectors is equivalent to ranking by L2 distance on a flat index.
func normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	norm := float32(math.Sqrt(sum))
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = x / norm
	}
	return out
}

func dot(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
