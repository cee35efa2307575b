package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/studyforge/studyforge/internal/domain"
	"github.com/studyforge/studyforge/internal/service"
)

// MockSearchService is a mock implementation of SearchService
type MockSearchService struct {
	mock.Mock
}

func (m *MockSearchService) Search(ctx context.Context, input service.SearchInput) ([]*domain.SearchResultItem, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.SearchResultItem), args.Error(1)
}

// MockProjectVerifier is a mock implementation of ProjectVerifier
type MockProjectVerifier struct {
	mock.Mock
}

func (m *MockProjectVerifier) GetForOwner(ctx context.Context, ownerID, projectID string) (*domain.Project, error) {
	args := m.Called(ctx, ownerID, projectID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Project), args.Error(1)
}

// MockDocumentVerifier is a mock implementation of DocumentVerifier
type MockDocumentVerifier struct {
	mock.Mock
}

func (m *MockDocumentVerifier) GetForOwner(ctx context.Context, ownerID, documentID string) (*domain.Document, error) {
	args := m.Called(ctx, ownerID, documentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Document), args.Error(1)
}

func searchRequest(t *testing.T, ownerID string, body SearchRequest) *http.Request {
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/search", bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	return authedRequest(req, ownerID)
}

// TestSearch_ProjectScope tests a successful project-scoped search.
func TestSearch_ProjectScope(t *testing.T) {
	mockSvc := new(MockSearchService)
	mockProjects := new(MockProjectVerifier)
	mockDocs := new(MockDocumentVerifier)

	mockProjects.On("GetForOwner", mock.Anything, "owner-1", "proj-1").
		Return(&domain.Project{ID: "proj-1", OwnerID: "owner-1"}, nil)
	mockSvc.On("Search", mock.Anything, service.SearchInput{
		Query:     "mitochondria",
		ProjectID: "proj-1",
		TopK:      3,
	}).Return([]*domain.SearchResultItem{
		{CitationIndex: 1, DocumentID: "doc-1", Title: "biology.pdf", Content: "the powerhouse", Score: 0.91},
	}, nil)

	handler := NewSearchHandler(mockSvc, mockProjects, mockDocs)
	rec := httptest.NewRecorder()
	handler.Search(rec, searchRequest(t, "owner-1", SearchRequest{Query: "mitochondria", ProjectID: "proj-1", TopK: 3}))

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data []*SearchResultResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, 1, resp.Data[0].CitationIndex)
	assert.Equal(t, "biology.pdf", resp.Data[0].Title)
	mockSvc.AssertExpectations(t)
}

// TestSearch_MissingScope tests that a request without project or documents
// is rejected before any service call.
func TestSearch_MissingScope(t *testing.T) {
	mockSvc := new(MockSearchService)
	handler := NewSearchHandler(mockSvc, new(MockProjectVerifier), new(MockDocumentVerifier))

	rec := httptest.NewRecorder()
	handler.Search(rec, searchRequest(t, "owner-1", SearchRequest{Query: "anything"}))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	mockSvc.AssertNotCalled(t, "Search", mock.Anything, mock.Anything)
}

// TestSearch_DocumentScopeVerifiesEveryID tests that each requested document
// is checked against the caller before searching.
func TestSearch_DocumentScopeVerifiesEveryID(t *testing.T) {
	mockSvc := new(MockSearchService)
	mockProjects := new(MockProjectVerifier)
	mockDocs := new(MockDocumentVerifier)

	mockDocs.On("GetForOwner", mock.Anything, "owner-1", "doc-a").
		Return(&domain.Document{ID: "doc-a", OwnerID: "owner-1"}, nil)
	mockDocs.On("GetForOwner", mock.Anything, "owner-1", "doc-b").
		Return(nil, domain.ErrDocumentNotFound)

	handler := NewSearchHandler(mockSvc, mockProjects, mockDocs)
	rec := httptest.NewRecorder()
	handler.Search(rec, searchRequest(t, "owner-1", SearchRequest{
		Query:       "q",
		DocumentIDs: []string{"doc-a", "doc-b"},
	}))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	mockSvc.AssertNotCalled(t, "Search", mock.Anything, mock.Anything)
	mockProjects.AssertNotCalled(t, "GetForOwner", mock.Anything, mock.Anything, mock.Anything)
}

// TestSearch_ForeignProject tests that another owner's project reads as
// not-found.
func TestSearch_ForeignProject(t *testing.T) {
	mockSvc := new(MockSearchService)
	mockProjects := new(MockProjectVerifier)

	mockProjects.On("GetForOwner", mock.Anything, "owner-1", "proj-foreign").
		Return(nil, domain.ErrProjectNotFound)

	handler := NewSearchHandler(mockSvc, mockProjects, new(MockDocumentVerifier))
	rec := httptest.NewRecorder()
	handler.Search(rec, searchRequest(t, "owner-1", SearchRequest{Query: "q", ProjectID: "proj-foreign"}))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	mockSvc.AssertNotCalled(t, "Search", mock.Anything, mock.Anything)
}

// TestSearch_BackendError tests that retrieval backend failures map to 502.
func TestSearch_BackendError(t *testing.T) {
	mockSvc := new(MockSearchService)
	mockProjects := new(MockProjectVerifier)

	mockProjects.On("GetForOwner", mock.Anything, "owner-1", "proj-1").
		Return(&domain.Project{ID: "proj-1", OwnerID: "owner-1"}, nil)
	mockSvc.On("Search", mock.Anything, mock.Anything).Return(nil, domain.ErrSearchBackend)

	handler := NewSearchHandler(mockSvc, mockProjects, new(MockDocumentVerifier))
	rec := httptest.NewRecorder()
	handler.Search(rec, searchRequest(t, "owner-1", SearchRequest{Query: "q", ProjectID: "proj-1"}))

	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

// TestSearch_InvalidBody tests malformed JSON rejection.
func TestSearch_InvalidBody(t *testing.T) {
	handler := NewSearchHandler(new(MockSearchService), new(MockProjectVerifier), new(MockDocumentVerifier))

	req := httptest.NewRequest(http.MethodPost, "/search", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	handler.Search(rec, authedRequest(req, "owner-1"))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
