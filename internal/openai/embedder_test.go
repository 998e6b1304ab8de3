package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/cloo-solutions/ragbot/internal/domain"
)

// MockEmbeddingAPI is a mock for the embeddings endpoint
type MockEmbeddingAPI struct {
	mock.Mock
}

func (m *MockEmbeddingAPI) CreateEmbeddings(ctx context.Context, conv openai.EmbeddingRequestConverter) (openai.EmbeddingResponse, error) {
	args := m.Called(ctx, conv.Convert())
	return args.Get(0).(openai.EmbeddingResponse), args.Error(1)
}

func embeddingResponse(vectors map[int][]float32) openai.EmbeddingResponse {
	resp := openai.EmbeddingResponse{}
	for idx, v := range vectors {
		resp.Data = append(resp.Data, openai.Embedding{Object: "embedding", Embedding: v, Index: idx})
	}
	return resp
}

func inputsEqual(expected ...string) interface{} {
	return mock.MatchedBy(func(req openai.EmbeddingRequest) bool {
		inputs, ok := req.Input.([]string)
		if !ok || len(inputs) != len(expected) {
			return false
		}
		for i := range inputs {
			if inputs[i] != expected[i] {
				return false
			}
		}
		return true
	})
}

func TestEmbedder_Embed_PreservesOrder(t *testing.T) {
	api := new(MockEmbeddingAPI)
	emb := newEmbedder(api, EmbedderConfig{Model: "test-model"})
	ctx := context.Background()

	// response items arrive out of order; Index decides placement
	resp := openai.EmbeddingResponse{Data: []openai.Embedding{
		{Embedding: []float32{0, 1}, Index: 1},
		{Embedding: []float32{1, 0}, Index: 0},
	}}
	api.On("CreateEmbeddings", ctx, inputsEqual("first", "second")).Return(resp, nil)

	vecs, err := emb.Embed(ctx, []string{"first", "second"})

	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 0}, {0, 1}}, vecs)
	api.AssertExpectations(t)
}

func TestEmbedder_Embed_Batches(t *testing.T) {
	api := new(MockEmbeddingAPI)
	emb := newEmbedder(api, EmbedderConfig{BatchSize: 2})
	ctx := context.Background()

	api.On("CreateEmbeddings", ctx, inputsEqual("a", "b")).
		Return(embeddingResponse(map[int][]float32{0: {1, 0, 0}, 1: {0, 1, 0}}), nil).Once()
	api.On("CreateEmbeddings", ctx, inputsEqual("c")).
		Return(embeddingResponse(map[int][]float32{0: {0, 0, 1}}), nil).Once()

	vecs, err := emb.Embed(ctx, []string{"a", "b", "c"})

	require.NoError(t, err)
	require.Len(t, vecs, 3)
	assert.Equal(t, []float32{0, 0, 1}, vecs[2])
	api.AssertNumberOfCalls(t, "CreateEmbeddings", 2)
}

func TestEmbedder_Embed_EmptyInput(t *testing.T) {
	emb := newEmbedder(new(MockEmbeddingAPI), EmbedderConfig{})

	vecs, err := emb.Embed(context.Background(), nil)

	assert.Nil(t, vecs)
	assert.ErrorIs(t, err, domain.ErrEmptyInput)
}

func TestEmbedder_Embed_DimensionMismatch(t *testing.T) {
	ctx := context.Background()

	t.Run("configured dimension", func(t *testing.T) {
		api := new(MockEmbeddingAPI)
		emb := newEmbedder(api, EmbedderConfig{Dimensions: 4})
		api.On("CreateEmbeddings", ctx, mock.Anything).
			Return(embeddingResponse(map[int][]float32{0: {1, 2, 3}}), nil)

		_, err := emb.Embed(ctx, []string{"x"})
		assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
	})

	t.Run("inconsistent vectors", func(t *testing.T) {
		api := new(MockEmbeddingAPI)
		emb := newEmbedder(api, EmbedderConfig{})
		api.On("CreateEmbeddings", ctx, mock.Anything).
			Return(embeddingResponse(map[int][]float32{0: {1, 2, 3}, 1: {1, 2}}), nil)

		_, err := emb.Embed(ctx, []string{"x", "y"})
		assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
	})
}

func TestEmbedder_Embed_ShortResponse(t *testing.T) {
	api := new(MockEmbeddingAPI)
	emb := newEmbedder(api, EmbedderConfig{})
	ctx := context.Background()
	api.On("CreateEmbeddings", ctx, mock.Anything).
		Return(embeddingResponse(map[int][]float32{0: {1}}), nil)

	_, err := emb.Embed(ctx, []string{"x", "y"})
	assert.ErrorIs(t, err, domain.ErrUpstream)
}

func TestEmbedder_Embed_APIError(t *testing.T) {
	api := new(MockEmbeddingAPI)
	emb := newEmbedder(api, EmbedderConfig{})
	ctx := context.Background()
	api.On("CreateEmbeddings", ctx, mock.Anything).
		Return(openai.EmbeddingResponse{}, errors.New("connection reset"))

	_, err := emb.Embed(ctx, []string{"x"})

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUpstream)
	assert.Contains(t, err.Error(), "create embeddings")
}

func TestEmbedder_Embed_HTTP(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req struct {
			Input []string `json:"input"`
			Model string   `json:"model"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req.Model)

		data := make([]map[string]interface{}, 0, len(req.Input))
		for i := range req.Input {
			data = append(data, map[string]interface{}{
				"object":    "embedding",
				"embedding": []float32{float32(i), 1},
				"index":     i,
			})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"object": "list",
			"data":   data,
			"model":  req.Model,
			"usage":  map[string]int{"prompt_tokens": 4, "total_tokens": 4},
		})
	}))
	defer server.Close()

	emb := NewEmbedder(EmbedderConfig{APIKey: "test-key", BaseURL: server.URL, Model: "test-model"})

	vecs, err := emb.Embed(context.Background(), []string{"hello", "world"})

	require.NoError(t, err)
	assert.Equal(t, [][]float32{{0, 1}, {1, 1}}, vecs)
	assert.Equal(t, "test-model", emb.Model())
}

func TestEmbedder_Embed_RateLimitedHTTP(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"Rate limit reached","type":"requests","code":"rate_limit_exceeded"}}`))
	}))
	defer server.Close()

	emb := NewEmbedder(EmbedderConfig{APIKey: "test-key", BaseURL: server.URL})

	_, err := emb.Embed(context.Background(), []string{"hello"})

	assert.ErrorIs(t, err, domain.ErrRateLimited)
}
