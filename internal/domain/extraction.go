package domain

// PageBreakDelimiter separates pages in extracted document text. Extractors
// that know page boundaries join pages with it; the chunking engine splits on
// it so a chunk never spans a page break. Form feed is the conventional page
// separator and cannot occur in normalized text.
const PageBreakDelimiter = "\n\f\n"

// Extraction is the normalized output of a content extractor.
type Extraction struct {
	// Content is markdown-like text, pages joined with PageBreakDelimiter
	// when the source format has page boundaries.
	Content string
	// Summary is a short description of the document, empty when no
	// summarizer is configured.
	Summary string
}
