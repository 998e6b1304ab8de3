package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloo-solutions/ragbot/internal/domain"
	"github.com/cloo-solutions/ragbot/internal/metrics"
	"github.com/cloo-solutions/ragbot/internal/telemetry"
)

// DefaultTopK is used when a caller asks for zero or fewer results.
const DefaultTopK = 5

// Embedder turns texts into vectors. Queries and corpus chunks must use the
// same model.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorIndex is the read side of a namespace index.
type VectorIndex interface {
	Size(ctx context.Context, ns domain.Namespace) (int, error)
	Search(ctx context.Context, ns domain.Namespace, vector []float32, k int) ([]domain.ScoredChunk, error)
}

// Retriever finds the chunks most similar to a query.
type Retriever struct {
	embedder Embedder
	index    VectorIndex
}

// NewRetriever creates a Retriever.
func NewRetriever(embedder Embedder, index VectorIndex) *Retriever {
	return &Retriever{embedder: embedder, index: index}
}

// Search returns at most topK hits from ns, best first. An empty or missing
// namespace yields no hits and does not call the embedder.
func (r *Retriever) Search(ctx context.Context, query string, ns domain.Namespace, topK int) ([]domain.SearchHit, error) {
	ctx, span := telemetry.StartSpan(ctx, "retriever.search", telemetry.SpanAttributes{
		Namespace: ns.String(),
		Operation: "search",
	})
	defer span.End()

	if topK <= 0 {
		topK = DefaultTopK
	}

	size, err := r.index.Size(ctx, ns)
	if err != nil {
		span.SetError(err)
		return nil, fmt.Errorf("index size: %w", err)
	}
	if size == 0 || strings.TrimSpace(query) == "" {
		metrics.RetrievalHits.WithLabelValues(ns.String()).Observe(0)
		return []domain.SearchHit{}, nil
	}

	vectors, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		span.SetError(err)
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, domain.Wrap(domain.ErrUpstream, fmt.Errorf("expected 1 query vector, got %d", len(vectors)))
	}

	scored, err := r.index.Search(ctx, ns, vectors[0], min(topK, size))
	if err != nil {
		span.SetError(err)
		return nil, fmt.Errorf("index search: %w", err)
	}

	hits := make([]domain.SearchHit, 0, len(scored))
	for _, sc := range scored {
		hits = append(hits, domain.SearchHit{
			ID:     sc.Chunk.ID,
			Text:   sc.Chunk.Text,
			Score:  sc.Score,
			Source: sc.Chunk.DisplaySource(),
		})
	}

	span.SetData("hits", len(hits))
	metrics.RetrievalHits.WithLabelValues(ns.String()).Observe(float64(len(hits)))
	return hits, nil
}
