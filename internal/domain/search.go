package domain

// SearchResultItem is one grouped retrieval hit. It is transient: built per
// search call and never persisted. Citation indices are 1-based, unique
// within a single call, and assigned in the order groups are emitted.
type SearchResultItem struct {
	CitationIndex int
	DocumentID    string
	Title         string
	Content       string
	Score         float64
}

// SegmentHit is one raw similarity-search hit before grouping. Distance is
// the vector distance reported by the index; lower means more similar.
type SegmentHit struct {
	DocumentID string
	Title      string
	Content    string
	Position   int
	Page       int
	Distance   float64
}
