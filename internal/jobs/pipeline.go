package jobs

import (
	"context"
	"fmt"
	"log"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/studyforge/studyforge/internal/domain"
)

// pendingBatchSize caps how many documents one poll cycle picks up.
const pendingBatchSize = 50

// PendingDocumentRepository lists documents that still need pipeline work.
type PendingDocumentRepository interface {
	ListPendingProcessing(ctx context.Context, limit int) ([]*domain.Document, error)
}

// DocumentProcessor runs the full pipeline for one document.
type DocumentProcessor interface {
	Process(ctx context.Context, documentID string) error
}

// PipelineProcessor drives uploaded documents through extraction, chunking,
// and embedding. The documents table is the queue: anything in PROCESSING or
// PROCESSED is pending work, which also makes crash recovery automatic.
type PipelineProcessor struct {
	repo        PendingDocumentRepository
	processor   DocumentProcessor
	concurrency int

	mu       sync.Mutex
	inflight map[string]struct{}
}

// NewPipelineProcessor creates a new PipelineProcessor instance
func NewPipelineProcessor(repo PendingDocumentRepository, processor DocumentProcessor, concurrency int) *PipelineProcessor {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &PipelineProcessor{
		repo:        repo,
		processor:   processor,
		concurrency: concurrency,
		inflight:    make(map[string]struct{}),
	}
}

// ProcessPending implements the DocumentPipeline interface
func (p *PipelineProcessor) ProcessPending(ctx context.Context) error {
	docs, err := p.repo.ListPendingProcessing(ctx, pendingBatchSize)
	if err != nil {
		return fmt.Errorf("failed to fetch pending documents: %w", err)
	}

	if len(docs) == 0 {
		return nil
	}

	log.Printf("Processing %d pending documents", len(docs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)

	for _, doc := range docs {
		doc := doc
		if !p.claim(doc.ID) {
			// Still running from a previous poll cycle.
			continue
		}
		g.Go(func() error {
			defer p.release(doc.ID)
			if err := p.processor.Process(ctx, doc.ID); err != nil {
				// One document failing must not sink the batch; Process
				// already marked it FAILED.
				log.Printf("Error processing document %s: %v", doc.ID, err)
			}
			return nil
		})
	}

	return g.Wait()
}

func (p *PipelineProcessor) claim(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.inflight[id]; ok {
		return false
	}
	p.inflight[id] = struct{}{}
	return true
}

func (p *PipelineProcessor) release(id string) {
	p.mu.Lock()
	delete(p.inflight, id)
	p.mu.Unlock()
}
