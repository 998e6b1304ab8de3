package handlers

import (
	"context"
	"net/http"

	"github.com/cloo-solutions/ragbot/internal/api"
	"github.com/cloo-solutions/ragbot/internal/domain"
	"github.com/cloo-solutions/ragbot/internal/service"
)

type ChatService interface {
	Chat(ctx context.Context, input service.ChatInput) (*domain.ChatResponse, error)
	Search(ctx context.Context, input service.SearchInput) ([]domain.Source, error)
	Namespaces(ctx context.Context) ([]domain.IndexStats, error)
}

type ChatHandler struct {
	svc ChatService
}

func NewChatHandler(svc ChatService) *ChatHandler {
	return &ChatHandler{svc: svc}
}

type ChatRequest struct {
	Messages       []domain.ChatTurn `json:"messages"`
	TopK           int               `json:"top_k,omitempty"`
	IncludeSources *bool             `json:"include_sources,omitempty"`
}

// Chat handles POST /chat. Degraded answers are still 200 responses.
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.HandleError(w, err)
		return
	}

	includeSources := true
	if req.IncludeSources != nil {
		includeSources = *req.IncludeSources
	}

	resp, err := h.svc.Chat(r.Context(), service.ChatInput{
		Messages:       req.Messages,
		TopK:           req.TopK,
		IncludeSources: includeSources,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, resp)
}
