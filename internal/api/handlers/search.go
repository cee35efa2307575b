package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/studyforge/studyforge/internal/api"
	"github.com/studyforge/studyforge/internal/api/middleware"
	"github.com/studyforge/studyforge/internal/domain"
	"github.com/studyforge/studyforge/internal/service"
)

type SearchService interface {
	Search(ctx context.Context, input service.SearchInput) ([]*domain.SearchResultItem, error)
}

type ProjectVerifier interface {
	GetForOwner(ctx context.Context, ownerID, projectID string) (*domain.Project, error)
}

type DocumentVerifier interface {
	GetForOwner(ctx context.Context, ownerID, documentID string) (*domain.Document, error)
}

type SearchHandler struct {
	svc      SearchService
	projects ProjectVerifier
	docs     DocumentVerifier
}

func NewSearchHandler(svc SearchService, projects ProjectVerifier, docs DocumentVerifier) *SearchHandler {
	return &SearchHandler{svc: svc, projects: projects, docs: docs}
}

type SearchRequest struct {
	Query       string   `json:"query"`
	ProjectID   string   `json:"project_id,omitempty"`
	DocumentIDs []string `json:"document_ids,omitempty"`
	TopK        int      `json:"top_k,omitempty"`
}

type SearchResultResponse struct {
	CitationIndex int     `json:"citation_index"`
	DocumentID    string  `json:"document_id"`
	Title         string  `json:"title"`
	Content       string  `json:"content"`
	Score         float64 `json:"score"`
}

// Search runs semantic retrieval over the caller's documents. The scope
// (project or explicit document list) is verified against the caller before
// any search work happens.
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	ownerID := middleware.GetOwnerID(r.Context())
	if ownerID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.ProjectID == "" && len(req.DocumentIDs) == 0 {
		api.Error(w, http.StatusBadRequest, "project_id or document_ids is required")
		return
	}

	if len(req.DocumentIDs) > 0 {
		for _, id := range req.DocumentIDs {
			if _, err := h.docs.GetForOwner(r.Context(), ownerID, id); err != nil {
				api.HandleError(w, err)
				return
			}
		}
	} else {
		if _, err := h.projects.GetForOwner(r.Context(), ownerID, req.ProjectID); err != nil {
			api.HandleError(w, err)
			return
		}
	}

	results, err := h.svc.Search(r.Context(), service.SearchInput{
		Query:       req.Query,
		ProjectID:   req.ProjectID,
		DocumentIDs: req.DocumentIDs,
		TopK:        req.TopK,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	responses := make([]*SearchResultResponse, len(results))
	for i, res := range results {
		responses[i] = &SearchResultResponse{
			CitationIndex: res.CitationIndex,
			DocumentID:    res.DocumentID,
			Title:         res.Title,
			Content:       res.Content,
			Score:         res.Score,
		}
	}

	api.Success(w, http.StatusOK, responses)
}
