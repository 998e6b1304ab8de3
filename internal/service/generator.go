package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloo-solutions/ragbot/internal/domain"
	"github.com/cloo-solutions/ragbot/internal/logger"
	"github.com/cloo-solutions/ragbot/internal/metrics"
	"github.com/cloo-solutions/ragbot/internal/telemetry"
	"go.uber.org/zap"
)

// DefaultSystemPrompt instructs the model to prefer the supplied context.
const DefaultSystemPrompt = "You are a helpful assistant. If provided with context snippets, use them to answer. " +
	"Always be accurate and concise. If the answer is not in the provided context, say you " +
	"don't have enough information and provide a helpful general answer if possible."

const (
	defaultHistoryTurns = 6
	defaultMaxContexts  = 8
	defaultAttempts     = 4
	defaultBaseDelay    = 2 * time.Second
	defaultMaxTokens    = 1000
)

// LLM completes a chat conversation.
type LLM interface {
	Complete(ctx context.Context, req domain.CompletionRequest) (string, error)
}

// GeneratorConfig configures an AnswerGenerator. Zero values other than
// Temperature take defaults.
type GeneratorConfig struct {
	Model        string
	Temperature  float32
	MaxTokens    int
	SystemPrompt string
	HistoryTurns int
	MaxContexts  int
	Attempts     int
	BaseDelay    time.Duration
}

func (c GeneratorConfig) withDefaults() GeneratorConfig {
	if c.MaxTokens <= 0 {
		c.MaxTokens = defaultMaxTokens
	}
	if strings.TrimSpace(c.SystemPrompt) == "" {
		c.SystemPrompt = DefaultSystemPrompt
	}
	if c.HistoryTurns <= 0 {
		c.HistoryTurns = defaultHistoryTurns
	}
	if c.MaxContexts <= 0 {
		c.MaxContexts = defaultMaxContexts
	}
	if c.Attempts <= 0 {
		c.Attempts = defaultAttempts
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = defaultBaseDelay
	}
	return c
}

// AnswerGenerator asks the LLM to answer a question from retrieved context.
type AnswerGenerator struct {
	llm   LLM
	cfg   GeneratorConfig
	sleep func(ctx context.Context, d time.Duration) error
}

// NewAnswerGenerator creates an AnswerGenerator.
func NewAnswerGenerator(llm LLM, cfg GeneratorConfig) *AnswerGenerator {
	return &AnswerGenerator{
		llm:   llm,
		cfg:   cfg.withDefaults(),
		sleep: sleepContext,
	}
}

// Generate produces an answer. It never returns an error: failures are
// reported through Generation.Failure.
func (g *AnswerGenerator) Generate(ctx context.Context, query string, contexts []string, history []domain.ChatTurn) domain.Generation {
	ctx, span := telemetry.StartSpan(ctx, "generator.generate", telemetry.SpanAttributes{
		Model:     g.cfg.Model,
		Operation: "generate",
	})
	defer span.End()

	req := domain.CompletionRequest{
		Model:       g.cfg.Model,
		Temperature: g.cfg.Temperature,
		MaxTokens:   g.cfg.MaxTokens,
		Messages:    g.buildMessages(query, contexts, history),
	}
	span.SetData("contexts", min(len(contexts), g.cfg.MaxContexts))

	log := logger.FromContext(ctx)
	delay := g.cfg.BaseDelay

	var err error
	for attempt := 1; attempt <= g.cfg.Attempts; attempt++ {
		var text string
		text, err = g.llm.Complete(ctx, req)
		if err == nil {
			metrics.GenerationsTotal.WithLabelValues("ok").Inc()
			return domain.Generation{Text: text}
		}
		if !errors.Is(err, domain.ErrRateLimited) || attempt == g.cfg.Attempts {
			break
		}

		metrics.LLMRetriesTotal.Inc()
		log.Warn("llm rate limited, backing off",
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
		)
		if serr := g.sleep(ctx, delay); serr != nil {
			err = serr
			break
		}
		delay *= 2
	}

	failure := &domain.GenerationFailure{Kind: failureKind(err), Message: err.Error()}
	metrics.GenerationsTotal.WithLabelValues(string(failure.Kind)).Inc()
	log.Error("answer generation failed",
		zap.String("kind", string(failure.Kind)),
		zap.Error(err),
	)
	if failure.Kind != domain.FailureCanceled {
		telemetry.CaptureErrorWithTags(ctx, err, map[string]string{"failure_kind": string(failure.Kind)})
	}
	return domain.Generation{Failure: failure}
}

func (g *AnswerGenerator) buildMessages(query string, contexts []string, history []domain.ChatTurn) []domain.ChatTurn {
	messages := []domain.ChatTurn{{Role: domain.RoleSystem, Content: g.cfg.SystemPrompt}}

	if n := len(history); n > 0 && history[n-1].Role == domain.RoleUser && history[n-1].Content == query {
		history = history[:n-1]
	}
	if len(history) > g.cfg.HistoryTurns {
		history = history[len(history)-g.cfg.HistoryTurns:]
	}
	messages = append(messages, history...)

	return append(messages, domain.ChatTurn{Role: domain.RoleUser, Content: g.userPrompt(query, contexts)})
}

func (g *AnswerGenerator) userPrompt(query string, contexts []string) string {
	if len(contexts) > g.cfg.MaxContexts {
		contexts = contexts[:g.cfg.MaxContexts]
	}
	if len(contexts) == 0 {
		return "Question: " + query
	}

	blocks := make([]string, len(contexts))
	for i, c := range contexts {
		blocks[i] = fmt.Sprintf("[Context %d]\n%s", i+1, c)
	}
	return "Context:\n" + strings.Join(blocks, "\n\n") + "\n\nQuestion: " + query
}

func failureKind(err error) domain.FailureKind {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return domain.FailureCanceled
	case errors.Is(err, domain.ErrRateLimited):
		return domain.FailureRateLimited
	default:
		return domain.FailureUpstream
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
