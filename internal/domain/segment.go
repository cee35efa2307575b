package domain

// SegmentContentTypeText is the default content type for extracted text segments.
const SegmentContentTypeText = "text"

// Segment represents one chunk of a document's extracted text. Positions are
// 0-based and contiguous within a document; the embedding is nil until the
// batch processor assigns it.
type Segment struct {
	ID          string
	DocumentID  string
	Position    int
	Content     string
	ContentType string
	Page        int // 0 when no page information is available
	Embedding   []float32
}

// Embedded reports whether the segment has a stored embedding vector.
func (s *Segment) Embedded() bool {
	return len(s.Embedding) > 0
}
