package domain

// PageText is one page of extracted PDF text, as delivered by the upload
// pipeline. PageNumber is 1-indexed and matches the page the viewer opens.
type PageText struct {
	PageNumber int    `json:"page_number"`
	Text       string `json:"text"`
}

// CharSpan is a half-open [Start, End) offset range into the original page
// text. Offsets index the page text, not the chunk text, so spans stay
// valid for sentence highlighting after retrieval.
type CharSpan struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

func (s CharSpan) Len() int {
	return s.End - s.Start
}

// Overlap returns the number of characters shared by two spans.
func (s CharSpan) Overlap(other CharSpan) int {
	start := s.Start
	if other.Start > start {
		start = other.Start
	}
	end := s.End
	if other.End < end {
		end = other.End
	}
	if end <= start {
		return 0
	}
	return end - start
}

// Chunk is the atomic retrievable unit: a contiguous slice of one page's
// text. Chunks are created at ingest and immutable afterwards.
type Chunk struct {
	ID         string   `json:"chunk_id"`
	FileID     string   `json:"file_id"`
	FileName   string   `json:"file_name"`
	PageNumber int      `json:"page_number"`
	Span       CharSpan `json:"char_span"`
	Text       string   `json:"text"`
}
