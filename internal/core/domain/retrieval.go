package domain

// SearchHit is a single index result: which chunk and how similar. Both the
// dense and the sparse index return hits in descending score order.
type SearchHit struct {
	ChunkID string
	Score   float64
}

// Snippet is one fused retrieval result with full citation metadata.
type Snippet struct {
	ChunkID    string   `json:"chunk_id"`
	FusedScore float64  `json:"fused_score"`
	FileID     string   `json:"file_id"`
	FileName   string   `json:"file_name"`
	PageNumber int      `json:"page_number"`
	Span       CharSpan `json:"char_span"`
	Text       string   `json:"text"`
}

// FileScope restricts a query to a subset of the session's files. A nil
// scope means all files; a scope naming unknown files degrades to an empty
// result, never an error.
type FileScope map[string]struct{}

func NewFileScope(fileIDs []string) FileScope {
	if len(fileIDs) == 0 {
		return nil
	}
	scope := make(FileScope, len(fileIDs))
	for _, id := range fileIDs {
		scope[id] = struct{}{}
	}
	return scope
}

func (s FileScope) Contains(fileID string) bool {
	if s == nil {
		return true
	}
	_, ok := s[fileID]
	return ok
}
