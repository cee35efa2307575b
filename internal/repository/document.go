package repository

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/studyforge/studyforge/internal/domain"
	"github.com/studyforge/studyforge/internal/pagination"
	"github.com/studyforge/studyforge/internal/service"
)

type DocumentRepository struct {
	db dbtx
}

func NewDocumentRepository(pool *pgxpool.Pool) *DocumentRepository {
	return &DocumentRepository{db: pool}
}

func NewDocumentRepositoryWithTx(tx pgx.Tx) *DocumentRepository {
	return &DocumentRepository{db: tx}
}

func (r *DocumentRepository) Create(ctx context.Context, d *domain.Document) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO documents (id, owner_id, project_id, filename, file_type, size_bytes, status, storage_key, processed_key, summary, uploaded_at, processed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		d.ID, d.OwnerID, nullableString(d.ProjectID), d.Filename, d.FileType, d.SizeBytes, d.Status,
		d.StorageKey, nullableString(d.ProcessedKey), d.Summary, d.UploadedAt, nullableTime(d.ProcessedAt),
	)
	return err
}

func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	row := r.db.QueryRow(ctx,
		`SELECT id, owner_id, project_id, filename, file_type, size_bytes, status, storage_key, processed_key, summary, uploaded_at, processed_at
		 FROM documents WHERE id = $1`,
		id,
	)
	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrDocumentNotFound
		}
		return nil, err
	}
	return doc, nil
}

func (r *DocumentRepository) ListByOwnerWithCursor(ctx context.Context, ownerID, projectID string, cursor *pagination.Cursor, limit int) (*service.DocumentPageResult, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `SELECT id, owner_id, project_id, filename, file_type, size_bytes, status, storage_key, processed_key, summary, uploaded_at, processed_at
		 FROM documents WHERE owner_id = $1`
	args := []any{ownerID}

	if projectID != "" {
		args = append(args, projectID)
		query += ` AND project_id = $2`
	}
	if cursor != nil {
		base := len(args)
		args = append(args, cursor.Timestamp, cursor.LastID)
		query += ` AND (uploaded_at, id) < ($` + strconv.Itoa(base+1) + `, $` + strconv.Itoa(base+2) + `)`
	}
	args = append(args, limit+1)
	query += ` ORDER BY uploaded_at DESC, id DESC LIMIT $` + strconv.Itoa(len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items, err := scanDocumentRows(rows)
	if err != nil {
		return nil, err
	}

	hasMore := len(items) > limit
	if hasMore {
		items = items[:limit]
	}

	var nextCursor string
	if hasMore && len(items) > 0 {
		lastItem := items[len(items)-1]
		nextCursor = pagination.EncodeCursor(lastItem.ID, lastItem.UploadedAt)
	}

	return &service.DocumentPageResult{
		Items:      items,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	}, nil
}

// UpdateStatus performs a guarded transition: the row only changes when it is
// still in the expected source status, so concurrent workers cannot move a
// document backwards or double-advance it.
func (r *DocumentRepository) UpdateStatus(ctx context.Context, id string, from, to domain.DocumentStatus) error {
	if !from.CanTransition(to) {
		return domain.NewDomainError(domain.ErrCodeInternalError,
			"invalid status transition "+string(from)+" -> "+string(to))
	}
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE documents SET status = $1 WHERE id = $2 AND status = $3`,
		to, id, from,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

// SetExtracted records the processed-text location and summary produced by
// the extraction stage.
func (r *DocumentRepository) SetExtracted(ctx context.Context, id, processedKey, summary string, processedAt time.Time) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE documents SET processed_key = $1, summary = $2, processed_at = $3 WHERE id = $4`,
		processedKey, summary, processedAt, id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

// ListPendingProcessing returns documents awaiting pipeline work, oldest
// first. Both PROCESSING and PROCESSED qualify so an interrupted run is
// picked up again at the embedding stage.
func (r *DocumentRepository) ListPendingProcessing(ctx context.Context, limit int) ([]*domain.Document, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, owner_id, project_id, filename, file_type, size_bytes, status, storage_key, processed_key, summary, uploaded_at, processed_at
		 FROM documents WHERE status = ANY($1) ORDER BY uploaded_at ASC LIMIT $2`,
		[]string{string(domain.DocumentStatusProcessing), string(domain.DocumentStatusProcessed)}, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanDocumentRows(rows)
}

// ListIndexedIDsByProject returns the IDs of a project's searchable
// documents. Only INDEXED documents participate in retrieval.
func (r *DocumentRepository) ListIndexedIDsByProject(ctx context.Context, projectID string) ([]string, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id FROM documents WHERE project_id = $1 AND status = $2 ORDER BY uploaded_at DESC`,
		projectID, domain.DocumentStatusIndexed,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *DocumentRepository) Delete(ctx context.Context, id string) error {
	cmdTag, err := r.db.Exec(ctx,
		`DELETE FROM documents WHERE id = $1`,
		id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

func scanDocument(row pgx.Row) (*domain.Document, error) {
	var d domain.Document
	var projectID, processedKey *string
	var processedAt *time.Time
	err := row.Scan(&d.ID, &d.OwnerID, &projectID, &d.Filename, &d.FileType, &d.SizeBytes, &d.Status,
		&d.StorageKey, &processedKey, &d.Summary, &d.UploadedAt, &processedAt)
	if err != nil {
		return nil, err
	}
	if projectID != nil {
		d.ProjectID = *projectID
	}
	if processedKey != nil {
		d.ProcessedKey = *processedKey
	}
	if processedAt != nil {
		d.ProcessedAt = *processedAt
	}
	return &d, nil
}

func scanDocumentRows(rows pgx.Rows) ([]*domain.Document, error) {
	var results []*domain.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, doc)
	}
	return results, rows.Err()
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
