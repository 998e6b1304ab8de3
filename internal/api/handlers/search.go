package handlers

import (
	"net/http"

	"github.com/cloo-solutions/ragbot/internal/api"
	"github.com/cloo-solutions/ragbot/internal/domain"
	"github.com/cloo-solutions/ragbot/internal/service"
)

type SearchRequest struct {
	Query     string `json:"query"`
	Namespace string `json:"namespace"`
	TopK      int    `json:"top_k,omitempty"`
}

// Search handles POST /search.
func (h *ChatHandler) Search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.HandleError(w, err)
		return
	}

	sources, err := h.svc.Search(r.Context(), service.SearchInput{
		Query:     req.Query,
		Namespace: req.Namespace,
		TopK:      req.TopK,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, sources)
}

type NamespaceResponse struct {
	Namespace domain.Namespace `json:"namespace"`
	Chunks    int              `json:"chunks"`
	Dimension int              `json:"dimension,omitempty"`
}

// Namespaces handles GET /namespaces.
func (h *ChatHandler) Namespaces(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Namespaces(r.Context())
	if err != nil {
		api.HandleError(w, err)
		return
	}

	out := make([]NamespaceResponse, len(stats))
	for i, st := range stats {
		out[i] = NamespaceResponse{Namespace: st.Namespace, Chunks: st.Chunks, Dimension: st.Dimension}
	}
	api.Success(w, http.StatusOK, out)
}
