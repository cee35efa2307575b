package service

import (
	"context"
	"strings"

	"github.com/studyforge/studyforge/internal/domain"
	"github.com/studyforge/studyforge/internal/telemetry"
)

const (
	// DefaultTopK is the raw hit count fetched when the caller does not ask
	// for a specific limit.
	DefaultTopK = 5
	// BroadSampleTopK is used by generation features (flashcards, quizzes,
	// notes) together with an empty query to pull a wide sample of project
	// content instead of a targeted match.
	BroadSampleTopK = 100

	// maxSegmentsPerDocument bounds how many segments contribute to one
	// document's combined content block.
	maxSegmentsPerDocument = 3
	// segmentContentCap truncates each contributing segment.
	segmentContentCap = 500
)

// VectorIndex performs similarity search over embedded segments, restricted
// to the given document IDs. Hits come back in ascending distance order.
type VectorIndex interface {
	SimilaritySearch(ctx context.Context, embedding []float32, documentIDs []string, k int) ([]*domain.SegmentHit, error)
}

// RetrievalDocumentRepository resolves project scopes to document ID sets.
type RetrievalDocumentRepository interface {
	ListIndexedIDsByProject(ctx context.Context, projectID string) ([]string, error)
}

// RetrievalService turns a free-text query into ranked, deduplicated,
// citation-ready passages grounded in the caller's documents.
type RetrievalService struct {
	embedder EmbeddingClient
	index    VectorIndex
	docRepo  RetrievalDocumentRepository
}

// NewRetrievalService creates a new RetrievalService instance.
func NewRetrievalService(embedder EmbeddingClient, index VectorIndex, docRepo RetrievalDocumentRepository) *RetrievalService {
	return &RetrievalService{
		embedder: embedder,
		index:    index,
		docRepo:  docRepo,
	}
}

// SearchInput describes one retrieval call. Exactly one of ProjectID or
// DocumentIDs provides the scope; DocumentIDs wins when both are set.
type SearchInput struct {
	Query       string
	ProjectID   string
	DocumentIDs []string
	TopK        int
}

// Search runs the retrieval algorithm: embed the query, similarity-search
// within scope, group hits by source document, and assign citation indices.
// Errors propagate uncaught; retrieval sits on the synchronous request path
// and must fail fast.
func (s *RetrievalService) Search(ctx context.Context, input SearchInput) ([]*domain.SearchResultItem, error) {
	ctx, span := telemetry.StartSpan(ctx, "RetrievalService.Search", telemetry.SpanAttributes{
		ProjectID: input.ProjectID,
		Operation: "search",
	})
	defer span.End()

	scope := input.DocumentIDs
	if len(scope) == 0 && input.ProjectID != "" {
		ids, err := s.docRepo.ListIndexedIDsByProject(ctx, input.ProjectID)
		if err != nil {
			span.SetError(err)
			return nil, err
		}
		scope = ids
	}

	// Empty scope is the designed "no documents in project" no-op: return
	// before touching the embedder or the index.
	if len(scope) == 0 {
		return []*domain.SearchResultItem{}, nil
	}

	topK := input.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}

	// An empty query is not special-cased: it still produces an embedding
	// and a similarity ordering, which is how generation features sample
	// broad project content.
	embeddings, err := s.embedder.EmbedMany(ctx, []string{input.Query})
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	hits, err := s.index.SimilaritySearch(ctx, embeddings[0], scope, topK)
	if err != nil {
		span.SetError(err)
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeSearchBackend, "vector search failed", err)
	}

	return groupHits(hits), nil
}

// documentGroup accumulates the hits of one source document.
type documentGroup struct {
	documentID string
	title      string
	hits       []*domain.SegmentHit
}

// groupHits folds raw segment hits into per-document SearchResultItems:
// at most maxSegmentsPerDocument best segments per document, each truncated
// to segmentContentCap and joined with newlines; score is 1 − avg(distance)
// clamped to [0,1]; citation indices are assigned 1..N in first-seen order
// and never reused within a call.
func groupHits(hits []*domain.SegmentHit) []*domain.SearchResultItem {
	groups := make(map[string]*documentGroup, len(hits))
	order := make([]string, 0, len(hits))

	for _, hit := range hits {
		group, ok := groups[hit.DocumentID]
		if !ok {
			group = &documentGroup{documentID: hit.DocumentID, title: hit.Title}
			groups[hit.DocumentID] = group
			order = append(order, hit.DocumentID)
		}
		if len(group.hits) < maxSegmentsPerDocument {
			group.hits = append(group.hits, hit)
		}
	}

	results := make([]*domain.SearchResultItem, 0, len(order))
	citation := 1
	for _, documentID := range order {
		group := groups[documentID]

		parts := make([]string, 0, len(group.hits))
		var distanceSum float64
		for _, hit := range group.hits {
			parts = append(parts, truncateContent(hit.Content, segmentContentCap))
			distanceSum += hit.Distance
		}

		content := strings.Join(parts, "\n")
		if strings.TrimSpace(content) == "" {
			// Corrupt or blank segments produce no citation.
			continue
		}

		score := 1.0 - distanceSum/float64(len(group.hits))
		if score < 0 {
			score = 0
		}
		if score > 1 {
			score = 1
		}

		results = append(results, &domain.SearchResultItem{
			CitationIndex: citation,
			DocumentID:    group.documentID,
			Title:         group.title,
			Content:       content,
			Score:         score,
		})
		citation++
	}

	return results
}

func truncateContent(content string, limit int) string {
	runes := []rune(content)
	if len(runes) <= limit {
		return content
	}
	return string(runes[:limit])
}
