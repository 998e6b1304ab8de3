package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/cloo-solutions/ragbot/internal/domain"
	"github.com/cloo-solutions/ragbot/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockChatService struct {
	mock.Mock
}

func (m *MockChatService) Chat(ctx context.Context, input service.ChatInput) (*domain.ChatResponse, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ChatResponse), args.Error(1)
}

func (m *MockChatService) Search(ctx context.Context, input service.SearchInput) ([]domain.Source, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Source), args.Error(1)
}

func (m *MockChatService) Namespaces(ctx context.Context) ([]domain.IndexStats, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.IndexStats), args.Error(1)
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data, ok := resp["data"].(map[string]interface{})
	require.True(t, ok, "response has no data object: %s", w.Body.String())
	return data
}

func TestChatHandler_Chat_Success(t *testing.T) {
	mockSvc := new(MockChatService)
	handler := NewChatHandler(mockSvc)

	expected := service.ChatInput{
		Messages:       []domain.ChatTurn{{Role: domain.RoleUser, Content: "What is NEC Article 250?"}},
		TopK:           3,
		IncludeSources: true,
	}
	mockSvc.On("Chat", mock.Anything, expected).Return(&domain.ChatResponse{
		Answer:     "Grounding and bonding.",
		Intent:     domain.NamespaceNEC,
		Source:     "nec",
		Confidence: 0.8,
		Sources:    []domain.Source{{Source: "nfpa70.pdf", ChunkID: "c1", Score: 0.8, Snippet: "Article 250"}},
	}, nil)

	body := `{"messages":[{"role":"user","content":"What is NEC Article 250?"}],"top_k":3}`
	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(body))
	w := httptest.NewRecorder()

	handler.Chat(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, "Grounding and bonding.", data["answer"])
	assert.Equal(t, "nec", data["intent"])
	assert.Equal(t, "nec", data["source"])
	assert.Len(t, data["sources"], 1)
	assert.NotContains(t, data, "degraded")
	mockSvc.AssertExpectations(t)
}

func TestChatHandler_Chat_IncludeSourcesFalse(t *testing.T) {
	mockSvc := new(MockChatService)
	handler := NewChatHandler(mockSvc)

	mockSvc.On("Chat", mock.Anything, mock.MatchedBy(func(in service.ChatInput) bool {
		return !in.IncludeSources
	})).Return(&domain.ChatResponse{Answer: "ok", Intent: domain.NamespaceGeneral, Confidence: 0.6}, nil)

	body := `{"messages":[{"role":"user","content":"hi"}],"include_sources":false}`
	w := httptest.NewRecorder()
	handler.Chat(w, httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(body)))

	assert.Equal(t, http.StatusOK, w.Code)
	mockSvc.AssertExpectations(t)
}

func TestChatHandler_Chat_Degraded(t *testing.T) {
	mockSvc := new(MockChatService)
	handler := NewChatHandler(mockSvc)

	mockSvc.On("Chat", mock.Anything, mock.Anything).Return(&domain.ChatResponse{
		Answer:    "Error generating answer: rate limited",
		Intent:    domain.NamespaceWattmonk,
		Degraded:  true,
		ErrorKind: domain.FailureRateLimited,
	}, nil)

	body := `{"messages":[{"role":"user","content":"wattmonk pricing"}]}`
	w := httptest.NewRecorder()
	handler.Chat(w, httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(body)))

	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, true, data["degraded"])
	assert.Equal(t, "rate_limited", data["error_kind"])
}

func TestChatHandler_Chat_EmptyMessages(t *testing.T) {
	mockSvc := new(MockChatService)
	handler := NewChatHandler(mockSvc)

	mockSvc.On("Chat", mock.Anything, mock.Anything).Return(nil, domain.ErrMessagesRequired)

	w := httptest.NewRecorder()
	handler.Chat(w, httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(`{"messages":[]}`)))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "messages must not be empty")
}

func TestChatHandler_Chat_InvalidJSON(t *testing.T) {
	mockSvc := new(MockChatService)
	handler := NewChatHandler(mockSvc)

	w := httptest.NewRecorder()
	handler.Chat(w, httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(`{"messages":`)))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	mockSvc.AssertNotCalled(t, "Chat", mock.Anything, mock.Anything)
}

func TestChatHandler_Chat_RetrievalFailure(t *testing.T) {
	mockSvc := new(MockChatService)
	handler := NewChatHandler(mockSvc)

	mockSvc.On("Chat", mock.Anything, mock.Anything).Return(nil, domain.ErrDimensionMismatch)

	body := `{"messages":[{"role":"user","content":"NEC"}]}`
	w := httptest.NewRecorder()
	handler.Chat(w, httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(body)))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestChatHandler_Search(t *testing.T) {
	mockSvc := new(MockChatService)
	handler := NewChatHandler(mockSvc)

	mockSvc.On("Search", mock.Anything, service.SearchInput{Query: "permit", Namespace: "wattmonk"}).
		Return([]domain.Source{{Source: "sla.pdf", ChunkID: "w1", Score: 0.7, Snippet: "permit"}}, nil)

	body := `{"query":"permit","namespace":"wattmonk"}`
	w := httptest.NewRecorder()
	handler.Search(w, httptest.NewRequest(http.MethodPost, "/search", strings.NewReader(body)))

	assert.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Data []domain.Source `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "w1", resp.Data[0].ChunkID)
}

func TestChatHandler_Search_UnknownNamespace(t *testing.T) {
	mockSvc := new(MockChatService)
	handler := NewChatHandler(mockSvc)

	mockSvc.On("Search", mock.Anything, mock.Anything).Return(nil, domain.ErrUnknownNamespace)

	body := `{"query":"x","namespace":"solar"}`
	w := httptest.NewRecorder()
	handler.Search(w, httptest.NewRequest(http.MethodPost, "/search", strings.NewReader(body)))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestChatHandler_Namespaces(t *testing.T) {
	mockSvc := new(MockChatService)
	handler := NewChatHandler(mockSvc)

	mockSvc.On("Namespaces", mock.Anything).Return([]domain.IndexStats{
		{Namespace: domain.NamespaceNEC, Chunks: 42, Dimension: 1536},
		{Namespace: domain.NamespaceWattmonk},
	}, nil)

	w := httptest.NewRecorder()
	handler.Namespaces(w, httptest.NewRequest(http.MethodGet, "/namespaces", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Data []NamespaceResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 2)
	assert.Equal(t, 42, resp.Data[0].Chunks)
	assert.Equal(t, domain.NamespaceWattmonk, resp.Data[1].Namespace)
}
