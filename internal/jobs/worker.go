package jobs

import (
	"context"
	"log"
	"time"
)

// DocumentPipeline is one sweep over the pending documents.
type DocumentPipeline interface {
	ProcessPending(ctx context.Context) error
}

// Worker drives the document pipeline on a fixed poll interval. The documents
// table is the queue, so polling is the whole dispatch mechanism.
type Worker struct {
	pipeline     DocumentPipeline
	pollInterval time.Duration
	stopChan     chan struct{}
	doneChan     chan struct{}
}

// NewWorker creates a new Worker instance
func NewWorker(pipeline DocumentPipeline, pollInterval time.Duration) *Worker {
	return &Worker{
		pipeline:     pipeline,
		pollInterval: pollInterval,
		stopChan:     make(chan struct{}),
		doneChan:     make(chan struct{}),
	}
}

// Start polls until the context is cancelled or Stop is called. A failed
// sweep is logged and the next tick tries again.
func (w *Worker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()
	defer close(w.doneChan)

	log.Printf("document pipeline worker started, polling every %v", w.pollInterval)

	for {
		select {
		case <-ctx.Done():
			log.Println("document pipeline worker stopped: context cancelled")
			return
		case <-w.stopChan:
			log.Println("document pipeline worker stopped: stop signal received")
			return
		case <-ticker.C:
			if err := w.pipeline.ProcessPending(ctx); err != nil {
				log.Printf("document pipeline sweep failed: %v", err)
			}
		}
	}
}

// Stop signals the polling loop and waits for the in-progress sweep to end.
func (w *Worker) Stop() {
	close(w.stopChan)
	<-w.doneChan
	log.Println("document pipeline worker shut down")
}
