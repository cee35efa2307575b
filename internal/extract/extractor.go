// Package extract converts uploaded file bytes into normalized text for the
// ingestion pipeline. Format handlers are selected by file extension; every
// failure is reported as an extraction domain error, which fails the whole
// document with no partial state persisted.
package extract

import (
	"context"
	"log"
	"strings"

	"github.com/studyforge/studyforge/internal/domain"
)

// Summarizer produces a short summary of extracted text. Optional: when nil,
// documents carry no summary.
type Summarizer interface {
	Summarize(ctx context.Context, text string) (string, error)
}

// Extractor dispatches to a format handler by file type.
type Extractor struct {
	summarizer Summarizer
}

func New(summarizer Summarizer) *Extractor {
	return &Extractor{summarizer: summarizer}
}

// Extract converts raw file bytes into normalized text plus an optional
// summary. fileType is the lowercased extension without the dot.
func (e *Extractor) Extract(ctx context.Context, data []byte, fileType string) (*domain.Extraction, error) {
	var content string
	var err error

	switch fileType {
	case "pdf":
		content, err = extractPDF(data)
	case "docx":
		content, err = extractDOCX(data)
	case "txt", "md", "rtf", "doc":
		content, err = extractPlaintext(data)
	default:
		return nil, domain.NewDomainError(domain.ErrCodeExtraction, "no extractor for file type "+fileType)
	}
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeExtraction, "content extraction failed", err)
	}

	result := &domain.Extraction{Content: content}

	if e.summarizer != nil && strings.TrimSpace(content) != "" {
		summary, err := e.summarizer.Summarize(ctx, content)
		if err != nil {
			// A missing summary is not worth failing the document over.
			log.Printf("extract: summary generation failed: %v", err)
		} else {
			result.Summary = summary
		}
	}

	return result, nil
}
