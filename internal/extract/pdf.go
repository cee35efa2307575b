package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/studyforge/studyforge/internal/domain"
)

// extractPDF pulls plain text out of a PDF, one page at a time, joining pages
// with the page-break delimiter so the chunker can respect page boundaries.
func extractPDF(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to open pdf: %w", err)
	}

	var pages []string
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			// Keep the slot so later pages keep their original numbers.
			pages = append(pages, "")
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("failed to extract page %d: %w", i, err)
		}

		pages = append(pages, normalizeText(text))
	}

	return strings.Join(pages, domain.PageBreakDelimiter), nil
}

// normalizeText collapses Windows line endings and strips trailing
// whitespace per line; it keeps blank lines so paragraph boundaries survive
// for the chunker.
func normalizeText(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
