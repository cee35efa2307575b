package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/studyforge/studyforge/internal/domain"
)

// EmbeddingClient defines the interface for generating embeddings in batches.
// Implementations report throttling as a RATE_LIMITED domain error; any other
// failure is fatal for the document.
type EmbeddingClient interface {
	EmbedMany(ctx context.Context, texts []string) ([][]float32, error)
}

// EmbeddingSegmentRepository defines the repository interface the batch
// processor needs. ListWithoutEmbedding is the re-entrancy point: re-running
// the stage only embeds segments that still lack a vector.
type EmbeddingSegmentRepository interface {
	ListWithoutEmbedding(ctx context.Context, documentID string) ([]*domain.Segment, error)
	UpdateEmbeddings(ctx context.Context, updates []SegmentEmbedding) error
}

// SegmentEmbedding pairs a segment with its computed vector.
type SegmentEmbedding struct {
	SegmentID string
	Embedding []float32
}

// EmbeddingConfig tunes batching and throttling behaviour.
type EmbeddingConfig struct {
	BatchSize int
	// MaxRetries bounds retries of a single batch after rate-limit errors.
	MaxRetries int
	// BackoffBase is the first retry delay; it doubles on each attempt.
	BackoffBase time.Duration
	// PacingDelay is inserted between successful batches (not after the
	// last) to stay under provider rate limits proactively.
	PacingDelay time.Duration
}

// DefaultEmbeddingConfig provides sane defaults for batched embedding.
func DefaultEmbeddingConfig() EmbeddingConfig {
	return EmbeddingConfig{
		BatchSize:   20,
		MaxRetries:  5,
		BackoffBase: 5 * time.Second,
		PacingDelay: time.Second,
	}
}

// EmbeddingService assigns embedding vectors to a document's segments in
// rate-limited batches.
type EmbeddingService struct {
	client EmbeddingClient
	repo   EmbeddingSegmentRepository
	cfg    EmbeddingConfig
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewEmbeddingService creates a new EmbeddingService instance.
func NewEmbeddingService(client EmbeddingClient, repo EmbeddingSegmentRepository, cfg EmbeddingConfig) *EmbeddingService {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultEmbeddingConfig().BatchSize
	}
	return &EmbeddingService{
		client: client,
		repo:   repo,
		cfg:    cfg,
		sleep:  sleepContext,
	}
}

// EmbedDocumentSegments embeds every segment of the document that does not
// yet have a vector. Each batch commits independently, so an interrupted run
// resumes where it left off.
func (s *EmbeddingService) EmbedDocumentSegments(ctx context.Context, documentID string) error {
	segments, err := s.repo.ListWithoutEmbedding(ctx, documentID)
	if err != nil {
		return fmt.Errorf("failed to list unembedded segments: %w", err)
	}
	if len(segments) == 0 {
		return nil
	}

	log.Printf("embedding %d segments for document %s in batches of %d", len(segments), documentID, s.cfg.BatchSize)

	for offset := 0; offset < len(segments); offset += s.cfg.BatchSize {
		limit := offset + s.cfg.BatchSize
		if limit > len(segments) {
			limit = len(segments)
		}
		batch := segments[offset:limit]

		if offset > 0 && s.cfg.PacingDelay > 0 {
			if err := s.sleep(ctx, s.cfg.PacingDelay); err != nil {
				return err
			}
		}

		embeddings, err := s.embedBatch(ctx, batch)
		if err != nil {
			return err
		}

		updates := make([]SegmentEmbedding, len(batch))
		for i, segment := range batch {
			updates[i] = SegmentEmbedding{SegmentID: segment.ID, Embedding: embeddings[i]}
		}
		if err := s.repo.UpdateEmbeddings(ctx, updates); err != nil {
			return fmt.Errorf("failed to store embeddings: %w", err)
		}
	}

	return nil
}

// embedBatch calls the embedding client for one batch, retrying the same
// batch with exponential backoff while the provider reports throttling.
func (s *EmbeddingService) embedBatch(ctx context.Context, batch []*domain.Segment) ([][]float32, error) {
	texts := make([]string, len(batch))
	for i, segment := range batch {
		texts[i] = segment.Content
	}

	delay := s.cfg.BackoffBase
	for attempt := 0; ; attempt++ {
		embeddings, err := s.client.EmbedMany(ctx, texts)
		if err == nil {
			if len(embeddings) != len(batch) {
				return nil, domain.NewDomainErrorWithCause(domain.ErrCodeEmbedding, "embedding batch size mismatch",
					fmt.Errorf("sent %d texts, got %d vectors", len(batch), len(embeddings)))
			}
			return embeddings, nil
		}

		if !errors.Is(err, domain.ErrRateLimited) {
			return nil, err
		}
		if attempt >= s.cfg.MaxRetries {
			return nil, fmt.Errorf("rate limit retries exhausted after %d attempts: %w", attempt+1, err)
		}

		log.Printf("embedding batch rate limited, retrying in %s (attempt %d/%d)", delay, attempt+1, s.cfg.MaxRetries)
		if err := s.sleep(ctx, delay); err != nil {
			return nil, err
		}
		delay *= 2
	}
}

// sleepContext waits for d, returning early if ctx is cancelled.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
