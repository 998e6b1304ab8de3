package openai

import (
	"context"
	"fmt"
	"math"

	openai "github.com/sashabaranov/go-openai"

	"github.com/cloo-solutions/ragbot/internal/domain"
	"github.com/cloo-solutions/ragbot/internal/metrics"
)

// DefaultChatModel is used when a request does not name a model
const DefaultChatModel = openai.GPT4oMini

// ChatAPI is the subset of the go-openai client used for completions.
type ChatAPI interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// ChatClient sends chat completions to an OpenAI-compatible API.
type ChatClient struct {
	api ChatAPI
}

// NewChatClient creates a chat client. baseURL may be empty for api.openai.com.
func NewChatClient(apiKey, baseURL string) *ChatClient {
	clientCfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		clientCfg.BaseURL = baseURL
	}
	return &ChatClient{api: openai.NewClientWithConfig(clientCfg)}
}

// Complete runs one completion and returns the first choice's text.
// Rate limiting surfaces as domain.ErrRateLimited; it is never retried here.
func (c *ChatClient) Complete(ctx context.Context, req domain.CompletionRequest) (string, error) {
	model := req.Model
	if model == "" {
		model = DefaultChatModel
	}

	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    toOpenAIRole(m.Role),
			Content: m.Content,
		})
	}

	// go-openai omits a zero temperature, which the API reads as its default
	// of 1. The smallest positive value keeps the request deterministic.
	temperature := req.Temperature
	if temperature == 0 {
		temperature = math.SmallestNonzeroFloat32
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		Temperature: temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		err = classifyError(err)
		metrics.LLMRequestsTotal.WithLabelValues(model, statusLabel(err)).Inc()
		return "", fmt.Errorf("chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		metrics.LLMRequestsTotal.WithLabelValues(model, metrics.StatusError).Inc()
		return "", domain.Wrap(domain.ErrUpstream, fmt.Errorf("chat completion returned no choices"))
	}

	metrics.LLMRequestsTotal.WithLabelValues(model, metrics.StatusSuccess).Inc()
	return resp.Choices[0].Message.Content, nil
}

func toOpenAIRole(r domain.Role) string {
	switch r {
	case domain.RoleSystem:
		return openai.ChatMessageRoleSystem
	case domain.RoleAssistant:
		return openai.ChatMessageRoleAssistant
	default:
		return openai.ChatMessageRoleUser
	}
}
