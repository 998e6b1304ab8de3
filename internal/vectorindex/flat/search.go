package flat

import (
	"cmp"
	"slices"

	"github.com/cloo-solutions/ragbot/internal/domain"
)

// Similarity converts a cosine distance into a score in [1/3, 1].
func Similarity(distance float64) float64 {
	return 1.0 / (1.0 + distance)
}

type scored struct {
	row   int
	score float64
}

// search scores every row exactly. Ties keep row order.
func (t *table) search(q []float32, k int) []domain.ScoredChunk {
	qn := norm(q)

	all := make([]scored, t.size())
	for i := range all {
		cos := 0.0
		if qn > 0 && t.norms[i] > 0 {
			cos = dot(q, t.row(i)) / (qn * t.norms[i])
			cos = max(-1, min(1, cos))
		}
		all[i] = scored{row: i, score: Similarity(1 - cos)}
	}

	slices.SortStableFunc(all, func(a, b scored) int {
		return cmp.Compare(b.score, a.score)
	})

	k = min(k, len(all))
	out := make([]domain.ScoredChunk, k)
	for i := 0; i < k; i++ {
		out[i] = domain.ScoredChunk{Chunk: t.chunks[all[i].row], Score: all[i].score}
	}
	return out
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
