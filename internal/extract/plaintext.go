package extract

import (
	"strings"
	"unicode/utf8"
)

// extractPlaintext passes text files through after UTF-8 cleanup. Legacy
// .doc and .rtf uploads land here too: both carry enough readable text for
// indexing even without format-aware parsing.
func extractPlaintext(data []byte) (string, error) {
	text := string(data)
	if !utf8.ValidString(text) {
		// Replace invalid byte sequences rather than failing: .doc/.rtf
		// files contain binary framing around the text.
		text = strings.ToValidUTF8(text, "")
	}

	return normalizeText(text), nil
}
