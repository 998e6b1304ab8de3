package openai

import (
	"context"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/cloo-solutions/ragbot/internal/domain"
	"github.com/cloo-solutions/ragbot/internal/metrics"
)

const (
	// DefaultEmbeddingModel is used when no model is configured
	DefaultEmbeddingModel = openai.SmallEmbedding3
	// DefaultBatchSize caps the number of inputs sent in one embeddings request
	DefaultBatchSize = 256
)

// EmbeddingAPI is the subset of the go-openai client used for embeddings.
type EmbeddingAPI interface {
	CreateEmbeddings(ctx context.Context, conv openai.EmbeddingRequestConverter) (openai.EmbeddingResponse, error)
}

// EmbedderConfig holds the embedding provider settings.
type EmbedderConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	Dimensions int
	BatchSize  int
	Logger     *zap.Logger
}

// Embedder turns texts into vectors using an OpenAI-compatible API.
// The same instance must serve ingestion and queries so both share a model.
type Embedder struct {
	api        EmbeddingAPI
	model      openai.EmbeddingModel
	dimensions int
	batchSize  int
	logger     *zap.Logger
}

// NewEmbedder creates an OpenAI-compatible embedding provider.
func NewEmbedder(cfg EmbedderConfig) *Embedder {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return newEmbedder(openai.NewClientWithConfig(clientCfg), cfg)
}

func newEmbedder(api EmbeddingAPI, cfg EmbedderConfig) *Embedder {
	model := openai.EmbeddingModel(cfg.Model)
	if model == "" {
		model = DefaultEmbeddingModel
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Embedder{
		api:        api,
		model:      model,
		dimensions: cfg.Dimensions,
		batchSize:  batchSize,
		logger:     logger,
	}
}

// Model returns the embedding model name.
func (e *Embedder) Model() string {
	return string(e.model)
}

// Embed returns one vector per input text, in input order. All vectors share
// one dimension; a response violating that is domain.ErrDimensionMismatch.
func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, domain.ErrEmptyInput
	}

	out := make([][]float32, len(texts))
	for start := 0; start < len(texts); start += e.batchSize {
		end := min(start+e.batchSize, len(texts))
		if err := e.embedBatch(ctx, texts[start:end], out[start:end]); err != nil {
			return nil, err
		}
	}

	dim := len(out[0])
	if e.dimensions > 0 && dim != e.dimensions {
		return nil, domain.Wrap(domain.ErrDimensionMismatch,
			fmt.Errorf("model %s returned %d dimensions, expected %d", e.model, dim, e.dimensions))
	}
	for i, v := range out {
		if len(v) != dim {
			return nil, domain.Wrap(domain.ErrDimensionMismatch,
				fmt.Errorf("vector %d has %d dimensions, expected %d", i, len(v), dim))
		}
	}

	return out, nil
}

func (e *Embedder) embedBatch(ctx context.Context, texts []string, dst [][]float32) error {
	req := openai.EmbeddingRequest{
		Input:          texts,
		Model:          e.model,
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
	}
	if e.dimensions > 0 {
		req.Dimensions = e.dimensions
	}

	start := time.Now()
	resp, err := e.api.CreateEmbeddings(ctx, req)
	if err != nil {
		err = classifyError(err)
		metrics.EmbeddingRequestsTotal.WithLabelValues(string(e.model), statusLabel(err)).Inc()
		return fmt.Errorf("create embeddings: %w", err)
	}
	metrics.EmbeddingRequestDuration.WithLabelValues(string(e.model)).Observe(time.Since(start).Seconds())

	if len(resp.Data) != len(texts) {
		metrics.EmbeddingRequestsTotal.WithLabelValues(string(e.model), metrics.StatusError).Inc()
		return domain.Wrap(domain.ErrUpstream,
			fmt.Errorf("embeddings response has %d items for %d inputs", len(resp.Data), len(texts)))
	}

	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(dst) || dst[d.Index] != nil {
			metrics.EmbeddingRequestsTotal.WithLabelValues(string(e.model), metrics.StatusError).Inc()
			return domain.Wrap(domain.ErrUpstream, fmt.Errorf("embeddings response has bad index %d", d.Index))
		}
		dst[d.Index] = d.Embedding
	}

	metrics.EmbeddingRequestsTotal.WithLabelValues(string(e.model), metrics.StatusSuccess).Inc()
	if resp.Usage.TotalTokens > 0 {
		metrics.EmbeddingTokensTotal.WithLabelValues(string(e.model)).Add(float64(resp.Usage.TotalTokens))
	}
	e.logger.Debug("embedded batch",
		zap.Int("inputs", len(texts)),
		zap.Duration("took", time.Since(start)),
	)
	return nil
}
