package chunking

import (
	"fmt"
	"unicode"

	"github.com/askdocs/pdfchat/internal/core/domain"
)

// Splitter cuts each page's text into overlapping windows of whitespace
// tokens. Chunks never cross a page boundary: the page number is part of
// the citation.
type Splitter struct {
	chunkTokens  int
	overlapRatio float64
}

func NewSplitter(chunkTokens int, overlapRatio float64) *Splitter {
	if chunkTokens <= 0 {
		chunkTokens = 500
	}
	if overlapRatio < 0 || overlapRatio >= 1 {
		overlapRatio = 0.15
	}
	return &Splitter{
		chunkTokens:  chunkTokens,
		overlapRatio: overlapRatio,
	}
}

func (s *Splitter) Chunk(fileID, fileName string, pages []domain.PageText) []domain.Chunk {
	out := make([]domain.Chunk, 0, len(pages))
	for _, page := range pages {
		out = append(out, s.chunkPage(fileID, fileName, page)...)
	}
	return out
}

func (s *Splitter) chunkPage(fileID, fileName string, page domain.PageText) []domain.Chunk {
	tokens := tokenSpans(page.Text)
	if len(tokens) == 0 {
		return nil
	}

	overlap := int(float64(s.chunkTokens) * s.overlapRatio)
	step := s.chunkTokens - overlap
	if step <= 0 {
		step = s.chunkTokens
	}

	chunks := make([]domain.Chunk, 0, len(tokens)/step+1)
	for start, ordinal := 0, 0; start < len(tokens); start, ordinal = start+step, ordinal+1 {
		end := start + s.chunkTokens
		if end > len(tokens) {
			end = len(tokens)
		}

		span := domain.CharSpan{
			Start: tokens[start].Start,
			End:   tokens[end-1].End,
		}
		// Stretch the first and last window to the page edges so that the
		// union of spans covers every character of the page.
		if start == 0 {
			span.Start = 0
		}
		if end == len(tokens) {
			span.End = len(page.Text)
		}

		chunks = append(chunks, domain.Chunk{
			ID:         fmt.Sprintf("%s:p%d:c%d", fileID, page.PageNumber, ordinal),
			FileID:     fileID,
			FileName:   fileName,
			PageNumber: page.PageNumber,
			Span:       span,
			Text:       page.Text[span.Start:span.End],
		})

		if end == len(tokens) {
			break
		}
	}
	return chunks
}

// tokenSpans returns the byte offsets of every whitespace-delimited token.
func tokenSpans(text string) []domain.CharSpan {
	spans := make([]domain.CharSpan, 0, len(text)/6)
	start := -1
	for i, r := range text {
		if unicode.IsSpace(r) {
			if start >= 0 {
				spans = append(spans, domain.CharSpan{Start: start, End: i})
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		spans = append(spans, domain.CharSpan{Start: start, End: len(text)})
	}
	return spans
}
