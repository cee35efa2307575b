package service

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/studyforge/studyforge/internal/domain"
)

// ChunkConfig controls how extracted text is split into segments.
type ChunkConfig struct {
	Size    int
	Overlap int
}

// DefaultChunkConfig provides sane defaults for chunking.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{
		Size:    1000,
		Overlap: 200,
	}
}

// Chunk is one bounded slice of a document's extracted text, annotated with
// the 1-based page it came from.
type Chunk struct {
	Content string
	Page    int
}

var headingPattern = regexp.MustCompile(`(?m)^#{1,3} `)

// ChunkDocument splits extracted text into ordered, bounded, overlapping
// chunks. Pages (separated by the page-break delimiter) are chunked
// independently so no chunk spans a page break; within a page, markdown
// heading sections are chunked independently so no chunk spans a heading.
// The result order defines segment ordinal positions.
func ChunkDocument(text string, cfg ChunkConfig) []Chunk {
	if cfg.Size <= 0 {
		cfg = DefaultChunkConfig()
	}
	if cfg.Overlap >= cfg.Size {
		cfg.Overlap = cfg.Size / 4
	}

	var chunks []Chunk
	for i, page := range strings.Split(text, domain.PageBreakDelimiter) {
		if strings.TrimSpace(page) == "" {
			continue
		}
		for _, section := range splitSections(page) {
			for _, piece := range splitSection(section, cfg) {
				chunks = append(chunks, Chunk{Content: piece, Page: i + 1})
			}
		}
	}

	return chunks
}

// splitSections splits a page at markdown heading markers (#, ##, ###),
// keeping each heading with the text that follows it. A page without
// headings is one section.
func splitSections(page string) []string {
	starts := headingPattern.FindAllStringIndex(page, -1)
	if len(starts) == 0 {
		return []string{page}
	}

	var sections []string
	prev := 0
	for _, loc := range starts {
		if loc[0] > prev {
			if head := page[prev:loc[0]]; strings.TrimSpace(head) != "" {
				sections = append(sections, head)
			}
		}
		prev = loc[0]
	}
	sections = append(sections, page[prev:])

	return sections
}

// splitSection applies the bounded sliding-window splitter to one section.
// Each window holds at most cfg.Size runes; the cut point prefers a
// paragraph break, then a sentence end, then a word boundary, before falling
// back to a hard cut. Consecutive windows overlap by cfg.Overlap runes.
func splitSection(section string, cfg ChunkConfig) []string {
	clean := strings.TrimSpace(section)
	if clean == "" {
		return nil
	}

	runes := []rune(clean)
	if len(runes) <= cfg.Size {
		return []string{clean}
	}

	var pieces []string
	start := 0
	for start < len(runes) {
		end := start + cfg.Size
		if end >= len(runes) {
			end = len(runes)
		} else {
			end = findCut(runes, start, end)
		}

		piece := strings.TrimSpace(string(runes[start:end]))
		if piece != "" {
			pieces = append(pieces, piece)
		}

		if end >= len(runes) {
			break
		}

		nextStart := end - cfg.Overlap
		if nextStart <= start {
			nextStart = end
		}
		start = nextStart
	}

	return pieces
}

// findCut scans backwards from the window limit for the best boundary. Only
// the second half of the window is considered so that boundary-seeking never
// produces degenerately small chunks.
func findCut(runes []rune, start, end int) int {
	min := start + (end-start)/2

	// Paragraph break.
	for i := end; i > min+1; i-- {
		if runes[i-1] == '\n' && runes[i-2] == '\n' {
			return i
		}
	}

	// Sentence end followed by whitespace.
	for i := end; i > min+1; i-- {
		if isSentenceEnd(runes[i-2]) && unicode.IsSpace(runes[i-1]) {
			return i
		}
	}

	// Word boundary.
	for i := end; i > min; i-- {
		if unicode.IsSpace(runes[i-1]) {
			return i
		}
	}

	// Hard cut.
	return end
}

func isSentenceEnd(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}
