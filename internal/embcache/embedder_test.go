package embcache

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEmbedder struct {
	calls [][]string
	err   error
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.calls = append(f.calls, texts)
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t)), 1}
	}
	return out, nil
}

type memStore struct {
	mu     sync.Mutex
	data   map[string][]byte
	getErr error
	setErr error
}

func newMemStore() *memStore {
	return &memStore{data: map[string][]byte{}}
}

func (m *memStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	v, ok := m.data[key]
	if !ok {
		return nil, ErrKeyNotFound
	}
	return v, nil
}

func (m *memStore) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	m.data[key] = value
	return nil
}

func newCounter() *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{Name: "test_cache_total"}, []string{"result"})
}

func TestCachedEmbedder_MissThenHit(t *testing.T) {
	inner := &fakeEmbedder{}
	store := newMemStore()
	counter := newCounter()
	ce := New(inner, "m1", store, counter, nil)
	ctx := context.Background()

	first, err := ce.Embed(ctx, []string{"abc"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{3, 1}}, first)
	assert.Len(t, store.data, 1)

	second, err := ce.Embed(ctx, []string{"abc"})
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Len(t, inner.calls, 1)

	assert.Equal(t, 1.0, testutil.ToFloat64(counter.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(counter.WithLabelValues("miss")))
}

func TestCachedEmbedder_PartialHitKeepsOrder(t *testing.T) {
	inner := &fakeEmbedder{}
	ce := New(inner, "m1", newMemStore(), nil, nil)
	ctx := context.Background()

	_, err := ce.Embed(ctx, []string{"bb"})
	require.NoError(t, err)

	vecs, err := ce.Embed(ctx, []string{"a", "bb", "cccc"})
	require.NoError(t, err)

	assert.Equal(t, [][]float32{{1, 1}, {2, 1}, {4, 1}}, vecs)
	require.Len(t, inner.calls, 2)
	assert.Equal(t, []string{"a", "cccc"}, inner.calls[1])
}

func TestCachedEmbedder_ModelInKey(t *testing.T) {
	store := newMemStore()
	a := New(&fakeEmbedder{}, "model-a", store, nil, nil)
	b := New(&fakeEmbedder{}, "model-b", store, nil, nil)

	assert.NotEqual(t, a.cacheKey("text"), b.cacheKey("text"))
	assert.Equal(t, a.cacheKey("text"), a.cacheKey("text"))
}

func TestCachedEmbedder_StoreErrorsAreMisses(t *testing.T) {
	inner := &fakeEmbedder{}
	store := newMemStore()
	store.getErr = errors.New("connection refused")
	store.setErr = errors.New("connection refused")
	ce := New(inner, "m1", store, nil, nil)

	vecs, err := ce.Embed(context.Background(), []string{"abc"})

	require.NoError(t, err)
	assert.Equal(t, [][]float32{{3, 1}}, vecs)
}

func TestCachedEmbedder_CorruptEntryIsMiss(t *testing.T) {
	inner := &fakeEmbedder{}
	store := newMemStore()
	ce := New(inner, "m1", store, nil, nil)
	store.data[ce.cacheKey("abc")] = []byte{1, 2, 3}

	vecs, err := ce.Embed(context.Background(), []string{"abc"})

	require.NoError(t, err)
	assert.Equal(t, [][]float32{{3, 1}}, vecs)
	assert.Len(t, inner.calls, 1)
}

func TestCachedEmbedder_InnerError(t *testing.T) {
	inner := &fakeEmbedder{err: errors.New("upstream down")}
	store := newMemStore()
	ce := New(inner, "m1", store, nil, nil)

	_, err := ce.Embed(context.Background(), []string{"abc"})

	assert.ErrorContains(t, err, "upstream down")
	assert.Empty(t, store.data)
}

func TestVectorBytesRoundTrip(t *testing.T) {
	v := []float32{0.1, -2.5, 3e10}
	got, err := bytesToVector(vectorToBytes(v))
	require.NoError(t, err)
	assert.Equal(t, v, got)

	_, err = bytesToVector([]byte{1})
	assert.Error(t, err)
}
