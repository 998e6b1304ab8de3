package service

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"sync"

	"github.com/cloo-solutions/ragbot/internal/domain"
	"github.com/stretchr/testify/mock"
)

// MockEmbedder mocks the embedding client
type MockEmbedder struct {
	mock.Mock
}

func (m *MockEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	args := m.Called(ctx, texts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([][]float32), args.Error(1)
}

// MockVectorIndex mocks a namespace index
type MockVectorIndex struct {
	mock.Mock
}

func (m *MockVectorIndex) Size(ctx context.Context, ns domain.Namespace) (int, error) {
	args := m.Called(ctx, ns)
	return args.Int(0), args.Error(1)
}

func (m *MockVectorIndex) Search(ctx context.Context, ns domain.Namespace, vector []float32, k int) ([]domain.ScoredChunk, error) {
	args := m.Called(ctx, ns, vector, k)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.ScoredChunk), args.Error(1)
}

// hashEmbedder is a deterministic bag-of-words embedder. Identical texts map
// to identical vectors.
type hashEmbedder struct {
	dim int

	mu    sync.Mutex
	calls int
}

func (h *hashEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	h.mu.Lock()
	h.calls++
	h.mu.Unlock()

	out := make([][]float32, len(texts))
	for i, text := range texts {
		v := make([]float32, h.dim)
		for _, word := range strings.Fields(strings.ToLower(text)) {
			f := fnv.New32a()
			_, _ = f.Write([]byte(word))
			v[f.Sum32()%uint32(h.dim)]++
		}
		var sum float64
		for _, x := range v {
			sum += float64(x) * float64(x)
		}
		if sum > 0 {
			n := float32(math.Sqrt(sum))
			for j := range v {
				v[j] /= n
			}
		}
		out[i] = v
	}
	return out, nil
}

func (h *hashEmbedder) callCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.calls
}
