package handlers

import (
	"context"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/studyforge/studyforge/internal/api"
	"github.com/studyforge/studyforge/internal/api/middleware"
	"github.com/studyforge/studyforge/internal/domain"
	"github.com/studyforge/studyforge/internal/service"
)

// maxUploadMemory bounds the multipart parser's in-memory buffer; larger
// parts spill to temp files.
const maxUploadMemory = 10 << 20

type DocumentService interface {
	UploadAll(ctx context.Context, input service.UploadInput) ([]service.UploadResult, error)
	GetForOwner(ctx context.Context, ownerID, documentID string) (*domain.Document, error)
	List(ctx context.Context, input service.ListInput) (*service.DocumentPageResult, error)
	GetDownloadURL(ctx context.Context, ownerID, documentID string) (string, error)
	Delete(ctx context.Context, ownerID, documentID string) error
}

type DocumentHandler struct {
	svc DocumentService
}

func NewDocumentHandler(svc DocumentService) *DocumentHandler {
	return &DocumentHandler{svc: svc}
}

type DocumentResponse struct {
	ID          string `json:"id"`
	ProjectID   string `json:"project_id,omitempty"`
	Filename    string `json:"filename"`
	FileType    string `json:"file_type"`
	SizeBytes   int64  `json:"size_bytes"`
	Status      string `json:"status"`
	Summary     string `json:"summary,omitempty"`
	UploadedAt  string `json:"uploaded_at"`
	ProcessedAt string `json:"processed_at,omitempty"`
}

func documentToResponse(d *domain.Document) *DocumentResponse {
	resp := &DocumentResponse{
		ID:         d.ID,
		ProjectID:  d.ProjectID,
		Filename:   d.Filename,
		FileType:   d.FileType,
		SizeBytes:  d.SizeBytes,
		Status:     string(d.Status),
		Summary:    d.Summary,
		UploadedAt: d.UploadedAt.Format("2006-01-02T15:04:05Z"),
	}
	if !d.ProcessedAt.IsZero() {
		resp.ProcessedAt = d.ProcessedAt.Format("2006-01-02T15:04:05Z")
	}
	return resp
}

type UploadResultResponse struct {
	Filename   string `json:"filename"`
	DocumentID string `json:"document_id,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Upload accepts one or more files as multipart form data under the "files"
// field and queues each for processing. The response reports per-file
// outcomes; a rejected file does not fail the request.
func (h *DocumentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	ownerID := middleware.GetOwnerID(r.Context())
	if ownerID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid multipart request")
		return
	}
	defer r.MultipartForm.RemoveAll()

	parts := r.MultipartForm.File["files"]
	if len(parts) == 0 {
		api.Error(w, http.StatusBadRequest, "no files in upload request")
		return
	}

	files := make([]service.UploadFile, 0, len(parts))
	for _, part := range parts {
		f, err := part.Open()
		if err != nil {
			api.Error(w, http.StatusBadRequest, "failed to read uploaded file")
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			api.Error(w, http.StatusBadRequest, "failed to read uploaded file")
			return
		}
		files = append(files, service.UploadFile{Filename: part.Filename, Data: data})
	}

	input := service.UploadInput{
		OwnerID:   ownerID,
		ProjectID: r.FormValue("project_id"),
		Files:     files,
	}

	results, err := h.svc.UploadAll(r.Context(), input)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	responses := make([]*UploadResultResponse, len(results))
	for i, res := range results {
		responses[i] = &UploadResultResponse{
			Filename:   res.Filename,
			DocumentID: res.DocumentID,
		}
		if res.Err != nil {
			responses[i].Error = res.Err.Error()
		}
	}

	api.Success(w, http.StatusAccepted, responses)
}

func (h *DocumentHandler) Get(w http.ResponseWriter, r *http.Request) {
	ownerID := middleware.GetOwnerID(r.Context())
	if ownerID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	doc, err := h.svc.GetForOwner(r.Context(), ownerID, id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, documentToResponse(doc))
}

type DocumentListResponse struct {
	Items   []*DocumentResponse `json:"items"`
	Cursor  string              `json:"cursor,omitempty"`
	HasMore bool                `json:"has_more"`
}

func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	ownerID := middleware.GetOwnerID(r.Context())
	if ownerID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	limit := 20
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	input := service.ListInput{
		OwnerID:   ownerID,
		ProjectID: r.URL.Query().Get("project_id"),
		Cursor:    r.URL.Query().Get("cursor"),
		Limit:     limit,
	}

	page, err := h.svc.List(r.Context(), input)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	responses := make([]*DocumentResponse, len(page.Items))
	for i, d := range page.Items {
		responses[i] = documentToResponse(d)
	}

	api.Success(w, http.StatusOK, DocumentListResponse{
		Items:   responses,
		Cursor:  page.NextCursor,
		HasMore: page.HasMore,
	})
}

type DownloadURLResponse struct {
	URL string `json:"url"`
}

func (h *DocumentHandler) GetDownloadURL(w http.ResponseWriter, r *http.Request) {
	ownerID := middleware.GetOwnerID(r.Context())
	if ownerID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	url, err := h.svc.GetDownloadURL(r.Context(), ownerID, id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, DownloadURLResponse{URL: url})
}

func (h *DocumentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ownerID := middleware.GetOwnerID(r.Context())
	if ownerID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	if err := h.svc.Delete(r.Context(), ownerID, id); err != nil {
		api.HandleError(w, err)
		return
	}

	api.JSON(w, http.StatusNoContent, nil)
}
