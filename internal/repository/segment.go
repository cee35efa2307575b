package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/studyforge/studyforge/internal/domain"
	"github.com/studyforge/studyforge/internal/service"
)

// SegmentRepository handles persistence of document segments and their
// embedding vectors.
type SegmentRepository struct {
	db dbtx
}

func NewSegmentRepository(pool *pgxpool.Pool) *SegmentRepository {
	return &SegmentRepository{db: pool}
}

func NewSegmentRepositoryWithTx(tx pgx.Tx) *SegmentRepository {
	return &SegmentRepository{db: tx}
}

func (r *SegmentRepository) CreateBatch(ctx context.Context, segments []*domain.Segment) error {
	for _, s := range segments {
		_, err := r.db.Exec(ctx,
			`INSERT INTO segments (id, document_id, position, content, content_type, page)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			s.ID, s.DocumentID, s.Position, s.Content, s.ContentType, s.Page,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *SegmentRepository) CountByDocument(ctx context.Context, documentID string) (int, error) {
	var count int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM segments WHERE document_id = $1`,
		documentID,
	).Scan(&count)
	return count, err
}

// ListWithoutEmbedding returns a document's segments that still lack a
// vector, in ordinal order. This is what makes the embedding stage
// re-entrant.
func (r *SegmentRepository) ListWithoutEmbedding(ctx context.Context, documentID string) ([]*domain.Segment, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, document_id, position, content, content_type, page
		 FROM segments WHERE document_id = $1 AND embedding IS NULL
		 ORDER BY position ASC`,
		documentID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var segments []*domain.Segment
	for rows.Next() {
		var s domain.Segment
		if err := rows.Scan(&s.ID, &s.DocumentID, &s.Position, &s.Content, &s.ContentType, &s.Page); err != nil {
			return nil, err
		}
		segments = append(segments, &s)
	}
	return segments, rows.Err()
}

func (r *SegmentRepository) UpdateEmbeddings(ctx context.Context, updates []service.SegmentEmbedding) error {
	for _, u := range updates {
		_, err := r.db.Exec(ctx,
			`UPDATE segments SET embedding = $1 WHERE id = $2`,
			pgvector.NewVector(u.Embedding), u.SegmentID,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

// SimilaritySearch returns the k nearest embedded segments to the query
// vector within the given document scope, ascending by cosine distance.
func (r *SegmentRepository) SimilaritySearch(ctx context.Context, embedding []float32, documentIDs []string, k int) ([]*domain.SegmentHit, error) {
	rows, err := r.db.Query(ctx,
		`SELECT s.document_id, d.filename, s.content, s.position, s.page, s.embedding <=> $1 AS distance
		 FROM segments s
		 JOIN documents d ON d.id = s.document_id
		 WHERE s.document_id = ANY($2) AND s.embedding IS NOT NULL
		 ORDER BY distance ASC
		 LIMIT $3`,
		pgvector.NewVector(embedding), documentIDs, k,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hits []*domain.SegmentHit
	for rows.Next() {
		var h domain.SegmentHit
		if err := rows.Scan(&h.DocumentID, &h.Title, &h.Content, &h.Position, &h.Page, &h.Distance); err != nil {
			return nil, err
		}
		hits = append(hits, &h)
	}
	return hits, rows.Err()
}

func (r *SegmentRepository) DeleteByDocument(ctx context.Context, documentID string) error {
	_, err := r.db.Exec(ctx,
		`DELETE FROM segments WHERE document_id = $1`,
		documentID,
	)
	return err
}
