package domain

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// DocumentStatus represents the processing state of an uploaded document.
type DocumentStatus string

const (
	DocumentStatusUploaded   DocumentStatus = "uploaded"
	DocumentStatusProcessing DocumentStatus = "processing"
	DocumentStatusProcessed  DocumentStatus = "processed"
	DocumentStatusIndexed    DocumentStatus = "indexed"
	DocumentStatusFailed     DocumentStatus = "failed"
)

// Document represents one uploaded file and its pipeline state.
type Document struct {
	ID           string
	OwnerID      string
	ProjectID    string // empty when the document is not attached to a project
	Filename     string
	FileType     string
	SizeBytes    int64
	Status       DocumentStatus
	StorageKey   string
	ProcessedKey string // empty until extraction has run
	Summary      string
	UploadedAt   time.Time
	ProcessedAt  time.Time // zero until the pipeline completes extraction
}

// NewDocument creates a Document in the initial uploaded state.
func NewDocument(id, ownerID, projectID, filename string, sizeBytes int64, uploadedAt time.Time) *Document {
	return &Document{
		ID:         id,
		OwnerID:    ownerID,
		ProjectID:  projectID,
		Filename:   filename,
		FileType:   FileExtension(filename),
		SizeBytes:  sizeBytes,
		Status:     DocumentStatusUploaded,
		UploadedAt: uploadedAt,
	}
}

// FileExtension returns the lowercased extension of filename without the dot.
func FileExtension(filename string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
}

// CanTransition reports whether a status change is allowed. Statuses move
// strictly forward (uploaded → processing → processed → indexed); failed is
// reachable from any non-terminal state and is itself terminal.
func (s DocumentStatus) CanTransition(to DocumentStatus) bool {
	if s == to {
		return false
	}
	switch to {
	case DocumentStatusFailed:
		return s != DocumentStatusIndexed && s != DocumentStatusFailed
	case DocumentStatusProcessing:
		return s == DocumentStatusUploaded
	case DocumentStatusProcessed:
		return s == DocumentStatusProcessing
	case DocumentStatusIndexed:
		return s == DocumentStatusProcessed
	}
	return false
}

// Terminal reports whether no further automatic transitions happen.
func (s DocumentStatus) Terminal() bool {
	return s == DocumentStatusIndexed || s == DocumentStatusFailed
}

// ValidateDocument validates a Document instance.
func ValidateDocument(d *Document) error {
	if d == nil {
		return fmt.Errorf("document cannot be nil")
	}
	if d.ID == "" {
		return fmt.Errorf("document ID is required")
	}
	if d.OwnerID == "" {
		return fmt.Errorf("document OwnerID is required")
	}
	if d.Filename == "" {
		return fmt.Errorf("document Filename is required")
	}
	if !isValidDocumentStatus(d.Status) {
		return fmt.Errorf("document Status is invalid: %s", d.Status)
	}
	return nil
}

func isValidDocumentStatus(s DocumentStatus) bool {
	switch s {
	case DocumentStatusUploaded, DocumentStatusProcessing, DocumentStatusProcessed,
		DocumentStatusIndexed, DocumentStatusFailed:
		return true
	}
	return false
}
