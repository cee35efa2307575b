//go:build integration

package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studyforge/studyforge/internal/domain"
	"github.com/studyforge/studyforge/internal/service"
	"github.com/studyforge/studyforge/internal/testutil"
)

const embeddingDim = 1536

// unitVector returns a 1536-dim unit vector pointing along one axis, so two
// distinct vectors have cosine distance 1 and identical ones distance 0.
func unitVector(axis int) []float32 {
	v := make([]float32, embeddingDim)
	v[axis] = 1
	return v
}

func insertSegments(t *testing.T, repo *SegmentRepository, documentID string, n int) []*domain.Segment {
	segments := make([]*domain.Segment, n)
	for i := range segments {
		segments[i] = &domain.Segment{
			ID:          uuid.NewString(),
			DocumentID:  documentID,
			Position:    i,
			Content:     "segment content",
			ContentType: domain.SegmentContentTypeText,
			Page:        1,
		}
	}
	require.NoError(t, repo.CreateBatch(context.Background(), segments))
	return segments
}

func TestSegmentRepository_Integration(t *testing.T) {
	pool := setupTestDB(t)
	docRepo := NewDocumentRepository(pool)
	repo := NewSegmentRepository(pool)
	ctx := context.Background()

	t.Run("CreateBatchAndCount", func(t *testing.T) {
		require.NoError(t, testutil.TruncateAll(ctx, pool))

		doc := insertDocument(t, docRepo, "owner-1", "", domain.DocumentStatusProcessing, time.Now().UTC())
		insertSegments(t, repo, doc.ID, 3)

		count, err := repo.CountByDocument(ctx, doc.ID)
		require.NoError(t, err)
		assert.Equal(t, 3, count)

		count, err = repo.CountByDocument(ctx, uuid.NewString())
		require.NoError(t, err)
		assert.Equal(t, 0, count)
	})

	t.Run("EmbeddingLifecycle", func(t *testing.T) {
		require.NoError(t, testutil.TruncateAll(ctx, pool))

		doc := insertDocument(t, docRepo, "owner-1", "", domain.DocumentStatusProcessing, time.Now().UTC())
		segments := insertSegments(t, repo, doc.ID, 3)

		pending, err := repo.ListWithoutEmbedding(ctx, doc.ID)
		require.NoError(t, err)
		require.Len(t, pending, 3)
		assert.Equal(t, 0, pending[0].Position)
		assert.Equal(t, 2, pending[2].Position)

		// Embed the first two; only the third stays pending.
		err = repo.UpdateEmbeddings(ctx, []service.SegmentEmbedding{
			{SegmentID: segments[0].ID, Embedding: unitVector(0)},
			{SegmentID: segments[1].ID, Embedding: unitVector(1)},
		})
		require.NoError(t, err)

		pending, err = repo.ListWithoutEmbedding(ctx, doc.ID)
		require.NoError(t, err)
		require.Len(t, pending, 1)
		assert.Equal(t, segments[2].ID, pending[0].ID)
	})

	t.Run("SimilaritySearch", func(t *testing.T) {
		require.NoError(t, testutil.TruncateAll(ctx, pool))

		doc := insertDocument(t, docRepo, "owner-1", "", domain.DocumentStatusIndexed, time.Now().UTC())
		other := insertDocument(t, docRepo, "owner-1", "", domain.DocumentStatusIndexed, time.Now().UTC())
		segments := insertSegments(t, repo, doc.ID, 3)
		otherSegments := insertSegments(t, repo, other.ID, 1)

		require.NoError(t, repo.UpdateEmbeddings(ctx, []service.SegmentEmbedding{
			{SegmentID: segments[0].ID, Embedding: unitVector(0)},
			{SegmentID: segments[1].ID, Embedding: unitVector(1)},
			// segments[2] stays unembedded and must never match.
			{SegmentID: otherSegments[0].ID, Embedding: unitVector(0)},
		}))

		hits, err := repo.SimilaritySearch(ctx, unitVector(0), []string{doc.ID}, 10)
		require.NoError(t, err)
		require.Len(t, hits, 2)

		// The aligned vector comes first with distance 0.
		assert.Equal(t, doc.ID, hits[0].DocumentID)
		assert.Equal(t, "notes.pdf", hits[0].Title)
		assert.InDelta(t, 0.0, hits[0].Distance, 1e-6)
		assert.InDelta(t, 1.0, hits[1].Distance, 1e-6)

		// Scope includes the other document when asked.
		hits, err = repo.SimilaritySearch(ctx, unitVector(0), []string{doc.ID, other.ID}, 10)
		require.NoError(t, err)
		assert.Len(t, hits, 3)

		// Empty scope matches nothing.
		hits, err = repo.SimilaritySearch(ctx, unitVector(0), []string{}, 10)
		require.NoError(t, err)
		assert.Empty(t, hits)
	})

	t.Run("CascadeDeleteWithDocument", func(t *testing.T) {
		require.NoError(t, testutil.TruncateAll(ctx, pool))

		doc := insertDocument(t, docRepo, "owner-1", "", domain.DocumentStatusProcessing, time.Now().UTC())
		insertSegments(t, repo, doc.ID, 2)

		require.NoError(t, docRepo.Delete(ctx, doc.ID))

		count, err := repo.CountByDocument(ctx, doc.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, count)
	})
}

func TestTxRunner_Integration(t *testing.T) {
	pool := setupTestDB(t)
	docRepo := NewDocumentRepository(pool)
	runner := NewTxRunner(pool)
	ctx := context.Background()

	t.Run("CommitsOnSuccess", func(t *testing.T) {
		require.NoError(t, testutil.TruncateAll(ctx, pool))

		doc := insertDocument(t, docRepo, "owner-1", "", domain.DocumentStatusProcessing, time.Now().UTC())

		err := runner.WithTx(ctx, func(repos service.TxRepositories) error {
			if err := repos.Segments().CreateBatch(ctx, []*domain.Segment{{
				ID:          uuid.NewString(),
				DocumentID:  doc.ID,
				Position:    0,
				Content:     "chunk",
				ContentType: domain.SegmentContentTypeText,
			}}); err != nil {
				return err
			}
			return repos.Documents().UpdateStatus(ctx, doc.ID, domain.DocumentStatusProcessing, domain.DocumentStatusProcessed)
		})
		require.NoError(t, err)

		got, err := docRepo.GetByID(ctx, doc.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.DocumentStatusProcessed, got.Status)

		count, err := NewSegmentRepository(pool).CountByDocument(ctx, doc.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})

	t.Run("RollsBackOnError", func(t *testing.T) {
		require.NoError(t, testutil.TruncateAll(ctx, pool))

		doc := insertDocument(t, docRepo, "owner-1", "", domain.DocumentStatusProcessing, time.Now().UTC())
		boom := errors.New("stage failed")

		err := runner.WithTx(ctx, func(repos service.TxRepositories) error {
			if err := repos.Segments().CreateBatch(ctx, []*domain.Segment{{
				ID:          uuid.NewString(),
				DocumentID:  doc.ID,
				Position:    0,
				Content:     "chunk",
				ContentType: domain.SegmentContentTypeText,
			}}); err != nil {
				return err
			}
			return boom
		})
		assert.ErrorIs(t, err, boom)

		// Neither the segment nor any status change survived.
		count, err := NewSegmentRepository(pool).CountByDocument(ctx, doc.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, count)
	})
}
