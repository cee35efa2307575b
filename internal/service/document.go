package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/studyforge/studyforge/internal/domain"
	"github.com/studyforge/studyforge/internal/pagination"
	"github.com/studyforge/studyforge/internal/telemetry"
)

// BlobStore persists original and processed document bytes.
type BlobStore interface {
	PutObject(ctx context.Context, key string, data []byte, contentType string) error
	GetObject(ctx context.Context, key string) ([]byte, error)
	DeleteObject(ctx context.Context, key string) error
	GenerateDownloadURL(ctx context.Context, key string) (string, error)
}

// ContentExtractor converts raw file bytes into normalized text plus an
// optional summary.
type ContentExtractor interface {
	Extract(ctx context.Context, data []byte, fileType string) (*domain.Extraction, error)
}

// DocumentRepositoryInterface defines the repository interface for document persistence.
type DocumentRepositoryInterface interface {
	Create(ctx context.Context, d *domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	ListByOwnerWithCursor(ctx context.Context, ownerID, projectID string, cursor *pagination.Cursor, limit int) (*DocumentPageResult, error)
	UpdateStatus(ctx context.Context, id string, from, to domain.DocumentStatus) error
	SetExtracted(ctx context.Context, id, processedKey, summary string, processedAt time.Time) error
	Delete(ctx context.Context, id string) error
}

// SegmentRepositoryInterface defines the repository interface for segment persistence.
type SegmentRepositoryInterface interface {
	CreateBatch(ctx context.Context, segments []*domain.Segment) error
	CountByDocument(ctx context.Context, documentID string) (int, error)
}

// EmbeddingProcessor runs the batched embedding stage for one document.
type EmbeddingProcessor interface {
	EmbedDocumentSegments(ctx context.Context, documentID string) error
}

// ProjectRepositoryInterface is the slice of project persistence the
// document service needs for scope validation.
type ProjectRepositoryInterface interface {
	GetByID(ctx context.Context, id string) (*domain.Project, error)
}

// FileTypeValidator reports whether an upload extension is accepted.
type FileTypeValidator interface {
	ExtensionAllowed(ext string) bool
}

// DocumentService coordinates the ingestion pipeline: upload, extraction,
// chunking, embedding, and deletion of documents.
type DocumentService struct {
	docRepo     DocumentRepositoryInterface
	projectRepo ProjectRepositoryInterface
	txRunner    TxRunner
	blobs       BlobStore
	extractor   ContentExtractor
	embedder    EmbeddingProcessor
	validator   FileTypeValidator
	chunkCfg    ChunkConfig
	uuidGen     UUIDGenerator
}

// NewDocumentService creates a new DocumentService instance.
func NewDocumentService(
	docRepo DocumentRepositoryInterface,
	projectRepo ProjectRepositoryInterface,
	txRunner TxRunner,
	blobs BlobStore,
	extractor ContentExtractor,
	embedder EmbeddingProcessor,
	validator FileTypeValidator,
	chunkCfg ChunkConfig,
) *DocumentService {
	return &DocumentService{
		docRepo:     docRepo,
		projectRepo: projectRepo,
		txRunner:    txRunner,
		blobs:       blobs,
		extractor:   extractor,
		embedder:    embedder,
		validator:   validator,
		chunkCfg:    chunkCfg,
		uuidGen:     &DefaultUUIDGenerator{},
	}
}

// UploadFile is one file in an upload request.
type UploadFile struct {
	Filename string
	Data     []byte
}

// UploadInput represents a multi-file upload request.
type UploadInput struct {
	OwnerID   string
	ProjectID string
	Files     []UploadFile
}

// UploadResult reports the outcome for one file of an upload request.
type UploadResult struct {
	Filename   string
	DocumentID string
	Err        error
}

// maxUploadConcurrency bounds how many files of one request are stored at once.
const maxUploadConcurrency = 4

// UploadAll uploads every file of the request concurrently. Each file
// independently follows the document state machine; one file failing does
// not affect its siblings, so per-file errors are reported in the results
// rather than returned.
func (s *DocumentService) UploadAll(ctx context.Context, input UploadInput) ([]UploadResult, error) {
	if len(input.Files) == 0 {
		return nil, domain.ErrEmptyUpload
	}

	if input.ProjectID != "" {
		project, err := s.projectRepo.GetByID(ctx, input.ProjectID)
		if err != nil {
			return nil, err
		}
		if project.OwnerID != input.OwnerID {
			return nil, domain.ErrProjectNotFound
		}
	}

	results := make([]UploadResult, len(input.Files))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxUploadConcurrency)

	for i, file := range input.Files {
		i, file := i, file
		g.Go(func() error {
			doc, err := s.upload(ctx, input.OwnerID, input.ProjectID, file)
			results[i] = UploadResult{Filename: file.Filename, Err: err}
			if doc != nil {
				results[i].DocumentID = doc.ID
			}
			return nil
		})
	}

	_ = g.Wait() // per-file errors live in results
	return results, nil
}

// upload stores one file and hands it to the processing pipeline. It returns
// as soon as the original bytes are durable and the document has entered
// PROCESSING; extraction and embedding run decoupled from the request.
func (s *DocumentService) upload(ctx context.Context, ownerID, projectID string, file UploadFile) (*domain.Document, error) {
	ctx, span := telemetry.StartSpan(ctx, "DocumentService.Upload", telemetry.SpanAttributes{
		OwnerID:   ownerID,
		ProjectID: projectID,
		Operation: "upload",
	})
	defer span.End()

	ext := domain.FileExtension(file.Filename)
	if !s.validator.ExtensionAllowed(ext) {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, fmt.Sprintf("unsupported file type: %q", ext))
	}

	doc := domain.NewDocument(s.uuidGen.NewString(), ownerID, projectID, file.Filename, int64(len(file.Data)), time.Now().UTC())
	doc.StorageKey = originalKey(projectID, doc.ID, file.Filename)

	if err := domain.ValidateDocument(doc); err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid document", err)
	}

	if err := s.docRepo.Create(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to create document: %w", err)
	}

	if err := s.blobs.PutObject(ctx, doc.StorageKey, file.Data, contentTypeFor(ext)); err != nil {
		span.SetError(err)
		return nil, fmt.Errorf("failed to store original bytes: %w", err)
	}

	// Entering PROCESSING is the dispatch: the pipeline worker polls for
	// documents in this state.
	if err := s.docRepo.UpdateStatus(ctx, doc.ID, domain.DocumentStatusUploaded, domain.DocumentStatusProcessing); err != nil {
		span.SetError(err)
		return nil, fmt.Errorf("failed to queue document for processing: %w", err)
	}
	doc.Status = domain.DocumentStatusProcessing

	return doc, nil
}

// Process runs the pipeline body for one document: extraction → chunking →
// embedding → INDEXED. Any stage error marks the document FAILED and is
// re-raised for the caller (the pipeline worker) to log. Stages are guarded
// so a crashed run resumes instead of redoing completed work.
func (s *DocumentService) Process(ctx context.Context, documentID string) error {
	ctx, span := telemetry.StartSpan(ctx, "DocumentService.Process", telemetry.SpanAttributes{
		DocumentID: documentID,
		Operation:  "process",
	})
	defer span.End()

	doc, err := s.docRepo.GetByID(ctx, documentID)
	if err != nil {
		return err
	}
	if doc.Status != domain.DocumentStatusProcessing && doc.Status != domain.DocumentStatusProcessed {
		return domain.NewDomainError(domain.ErrCodeInternalError,
			fmt.Sprintf("document %s is not processable in status %s", documentID, doc.Status))
	}

	if err := s.process(ctx, doc); err != nil {
		span.SetError(err)
		if markErr := s.docRepo.UpdateStatus(ctx, doc.ID, doc.Status, domain.DocumentStatusFailed); markErr != nil {
			log.Printf("failed to mark document %s failed: %v", doc.ID, markErr)
		}
		return err
	}

	return nil
}

func (s *DocumentService) process(ctx context.Context, doc *domain.Document) error {
	if doc.Status == domain.DocumentStatusProcessing {
		content, err := s.extractContent(ctx, doc)
		if err != nil {
			return err
		}

		// Segments and the PROCESSED advance commit atomically so a crash
		// between them cannot strand a half-chunked document.
		err = s.txRunner.WithTx(ctx, func(repos TxRepositories) error {
			if err := s.createSegments(ctx, repos.Segments(), doc, content); err != nil {
				return err
			}
			return repos.Documents().UpdateStatus(ctx, doc.ID, domain.DocumentStatusProcessing, domain.DocumentStatusProcessed)
		})
		if err != nil {
			return fmt.Errorf("failed to advance document to processed: %w", err)
		}
		doc.Status = domain.DocumentStatusProcessed
	}

	if err := s.embedder.EmbedDocumentSegments(ctx, doc.ID); err != nil {
		return err
	}

	if err := s.docRepo.UpdateStatus(ctx, doc.ID, domain.DocumentStatusProcessed, domain.DocumentStatusIndexed); err != nil {
		return fmt.Errorf("failed to advance document to indexed: %w", err)
	}

	return nil
}

// extractContent runs the extraction stage, persisting the processed text
// blob and the summary. When a previous run already extracted the document,
// the stored processed text is reused.
func (s *DocumentService) extractContent(ctx context.Context, doc *domain.Document) (string, error) {
	if doc.ProcessedKey != "" {
		data, err := s.blobs.GetObject(ctx, doc.ProcessedKey)
		if err != nil {
			return "", fmt.Errorf("failed to load processed text: %w", err)
		}
		return string(data), nil
	}

	data, err := s.blobs.GetObject(ctx, doc.StorageKey)
	if err != nil {
		return "", fmt.Errorf("failed to load original bytes: %w", err)
	}

	extraction, err := s.extractor.Extract(ctx, data, doc.FileType)
	if err != nil {
		return "", err
	}

	processedKey := processedKeyFor(doc.ProjectID, doc.ID)
	if err := s.blobs.PutObject(ctx, processedKey, []byte(extraction.Content), "text/markdown"); err != nil {
		return "", fmt.Errorf("failed to store processed text: %w", err)
	}

	if err := s.docRepo.SetExtracted(ctx, doc.ID, processedKey, extraction.Summary, time.Now().UTC()); err != nil {
		return "", fmt.Errorf("failed to record extraction: %w", err)
	}
	doc.ProcessedKey = processedKey
	doc.Summary = extraction.Summary

	return extraction.Content, nil
}

// createSegments chunks extracted content and persists all segments in one
// batch, before any embedding runs. A document with empty extracted text
// legitimately produces zero segments and still proceeds to INDEXED.
func (s *DocumentService) createSegments(ctx context.Context, segmentRepo SegmentRepositoryInterface, doc *domain.Document, content string) error {
	existing, err := segmentRepo.CountByDocument(ctx, doc.ID)
	if err != nil {
		return fmt.Errorf("failed to count segments: %w", err)
	}
	if existing > 0 {
		return nil // resumed run: chunking already happened
	}

	chunks := ChunkDocument(content, s.chunkCfg)
	if len(chunks) == 0 {
		return nil
	}

	segments := make([]*domain.Segment, len(chunks))
	for i, chunk := range chunks {
		segments[i] = &domain.Segment{
			ID:          s.uuidGen.NewString(),
			DocumentID:  doc.ID,
			Position:    i,
			Content:     chunk.Content,
			ContentType: domain.SegmentContentTypeText,
			Page:        chunk.Page,
		}
	}

	if err := segmentRepo.CreateBatch(ctx, segments); err != nil {
		return fmt.Errorf("failed to persist segments: %w", err)
	}

	log.Printf("document %s chunked into %d segments", doc.ID, len(segments))
	return nil
}

// GetForOwner returns a document after verifying ownership.
func (s *DocumentService) GetForOwner(ctx context.Context, ownerID, documentID string) (*domain.Document, error) {
	doc, err := s.docRepo.GetByID(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if doc.OwnerID != ownerID {
		return nil, domain.ErrDocumentNotFound
	}
	return doc, nil
}

// DocumentPageResult is one page of a document listing.
type DocumentPageResult struct {
	Items      []*domain.Document
	NextCursor string
	HasMore    bool
}

// ListInput describes a document listing request.
type ListInput struct {
	OwnerID   string
	ProjectID string
	Cursor    string
	Limit     int
}

// List returns the caller's documents, newest first, cursor-paginated.
func (s *DocumentService) List(ctx context.Context, input ListInput) (*DocumentPageResult, error) {
	cursor, err := pagination.DecodeCursor(input.Cursor)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid cursor", err)
	}
	return s.docRepo.ListByOwnerWithCursor(ctx, input.OwnerID, input.ProjectID, cursor, input.Limit)
}

// GetDownloadURL returns a presigned URL for the original file bytes.
func (s *DocumentService) GetDownloadURL(ctx context.Context, ownerID, documentID string) (string, error) {
	doc, err := s.GetForOwner(ctx, ownerID, documentID)
	if err != nil {
		return "", err
	}
	return s.blobs.GenerateDownloadURL(ctx, doc.StorageKey)
}

// Delete removes a document, its segments (database cascade), and both
// storage blobs.
func (s *DocumentService) Delete(ctx context.Context, ownerID, documentID string) error {
	doc, err := s.GetForOwner(ctx, ownerID, documentID)
	if err != nil {
		return err
	}

	if err := s.blobs.DeleteObject(ctx, doc.StorageKey); err != nil {
		return fmt.Errorf("failed to delete original bytes: %w", err)
	}
	if doc.ProcessedKey != "" {
		if err := s.blobs.DeleteObject(ctx, doc.ProcessedKey); err != nil {
			return fmt.Errorf("failed to delete processed text: %w", err)
		}
	}

	return s.docRepo.Delete(ctx, doc.ID)
}

func originalKey(projectID, documentID, filename string) string {
	if projectID == "" {
		projectID = "unassigned"
	}
	return fmt.Sprintf("projects/%s/documents/%s/%s", projectID, documentID, filename)
}

func processedKeyFor(projectID, documentID string) string {
	if projectID == "" {
		projectID = "unassigned"
	}
	return fmt.Sprintf("projects/%s/documents/%s/processed.md", projectID, documentID)
}

func contentTypeFor(ext string) string {
	switch ext {
	case "pdf":
		return "application/pdf"
	case "docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case "doc":
		return "application/msword"
	case "rtf":
		return "application/rtf"
	case "md":
		return "text/markdown"
	default:
		return "text/plain"
	}
}
