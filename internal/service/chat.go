package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloo-solutions/ragbot/internal/domain"
	"github.com/cloo-solutions/ragbot/internal/logger"
	"github.com/cloo-solutions/ragbot/internal/metrics"
	"github.com/cloo-solutions/ragbot/internal/telemetry"
	"go.uber.org/zap"
)

const (
	// SnippetMaxRunes bounds the text excerpt attached to a source.
	SnippetMaxRunes = 400

	generalConfidence = 0.6
	noHitsConfidence  = 0.5
	defaultMaxTopK    = 50
)

// Searcher retrieves hits for a query within a namespace.
type Searcher interface {
	Search(ctx context.Context, query string, ns domain.Namespace, topK int) ([]domain.SearchHit, error)
}

// Generator produces an answer from a question, its context and history.
type Generator interface {
	Generate(ctx context.Context, query string, contexts []string, history []domain.ChatTurn) domain.Generation
}

// Classifier routes a query to a namespace.
type Classifier interface {
	Classify(query string) domain.Namespace
}

// IndexStatter reports what is indexed for a namespace.
type IndexStatter interface {
	Stats(ctx context.Context, ns domain.Namespace) (domain.IndexStats, error)
}

// ChatInput is one chat request. The last message is the question.
type ChatInput struct {
	Messages       []domain.ChatTurn
	TopK           int
	IncludeSources bool
}

// SearchInput is a direct retrieval request against a named namespace.
type SearchInput struct {
	Query     string
	Namespace string
	TopK      int
}

// ChatService runs the classify, retrieve, generate pipeline.
type ChatService struct {
	classifier Classifier
	retriever  Searcher
	generator  Generator
	stats      IndexStatter
	maxTopK    int
}

// NewChatService creates a ChatService. maxTopK caps caller-supplied top_k.
func NewChatService(classifier Classifier, retriever Searcher, generator Generator, stats IndexStatter, maxTopK int) *ChatService {
	if maxTopK <= 0 {
		maxTopK = defaultMaxTopK
	}
	return &ChatService{
		classifier: classifier,
		retriever:  retriever,
		generator:  generator,
		stats:      stats,
		maxTopK:    maxTopK,
	}
}

// Chat answers the last message of the conversation.
func (s *ChatService) Chat(ctx context.Context, input ChatInput) (*domain.ChatResponse, error) {
	if len(input.Messages) == 0 {
		return nil, domain.ErrMessagesRequired
	}
	if err := domain.ValidateTurns(input.Messages); err != nil {
		return nil, err
	}
	query := input.Messages[len(input.Messages)-1].Content
	if strings.TrimSpace(query) == "" {
		return nil, domain.ErrQueryRequired
	}

	intent := s.classifier.Classify(query)
	metrics.IntentTotal.WithLabelValues(intent.String()).Inc()

	ctx, span := telemetry.StartSpan(ctx, "chat.answer", telemetry.SpanAttributes{
		Intent:    intent.String(),
		Operation: "chat",
	})
	defer span.End()

	log := logger.FromContext(ctx).With(zap.String("intent", intent.String()))

	if intent == domain.NamespaceGeneral {
		gen := s.generator.Generate(ctx, query, nil, input.Messages)
		return newChatResponse(intent, gen, generalConfidence), nil
	}

	hits, err := s.retriever.Search(ctx, query, intent, s.clampTopK(input.TopK))
	if err != nil {
		span.SetError(err)
		return nil, fmt.Errorf("retrieve %s: %w", intent, err)
	}
	log.Debug("retrieved context", zap.Int("hits", len(hits)))

	contexts := make([]string, len(hits))
	for i, h := range hits {
		contexts[i] = h.Text
	}
	gen := s.generator.Generate(ctx, query, contexts, input.Messages)

	resp := newChatResponse(intent, gen, meanScore(hits))
	resp.Source = intent.String()
	if input.IncludeSources {
		resp.Sources = toSources(hits)
	}
	return resp, nil
}

// Search runs retrieval only, against a namespace chosen by the caller.
func (s *ChatService) Search(ctx context.Context, input SearchInput) ([]domain.Source, error) {
	if strings.TrimSpace(input.Query) == "" {
		return nil, domain.ErrQueryRequired
	}
	ns, err := domain.ParseNamespace(input.Namespace)
	if err != nil {
		return nil, err
	}

	hits, err := s.retriever.Search(ctx, input.Query, ns, s.clampTopK(input.TopK))
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", ns, err)
	}
	return toSources(hits), nil
}

// Namespaces reports the index size of every indexed namespace.
func (s *ChatService) Namespaces(ctx context.Context) ([]domain.IndexStats, error) {
	out := make([]domain.IndexStats, 0, len(domain.IndexedNamespaces))
	for _, ns := range domain.IndexedNamespaces {
		st, err := s.stats.Stats(ctx, ns)
		if err != nil {
			return nil, fmt.Errorf("stats %s: %w", ns, err)
		}
		out = append(out, st)
	}
	return out, nil
}

func (s *ChatService) clampTopK(topK int) int {
	if topK <= 0 {
		return DefaultTopK
	}
	return min(topK, s.maxTopK)
}

func newChatResponse(intent domain.Namespace, gen domain.Generation, confidence float64) *domain.ChatResponse {
	resp := &domain.ChatResponse{
		Answer:     gen.AnswerText(),
		Intent:     intent,
		Confidence: confidence,
	}
	if gen.Degraded() {
		resp.Degraded = true
		resp.ErrorKind = gen.Failure.Kind
	}
	return resp
}

func meanScore(hits []domain.SearchHit) float64 {
	if len(hits) == 0 {
		return noHitsConfidence
	}
	var sum float64
	for _, h := range hits {
		sum += h.Score
	}
	return sum / float64(len(hits))
}

func toSources(hits []domain.SearchHit) []domain.Source {
	sources := make([]domain.Source, len(hits))
	for i, h := range hits {
		sources[i] = domain.Source{
			Source:  h.Source,
			ChunkID: h.ID,
			Score:   h.Score,
			Snippet: truncateRunes(h.Text, SnippetMaxRunes),
		}
	}
	return sources
}

func truncateRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
