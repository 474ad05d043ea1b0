package usecase

import (
	"sort"

	"github.com/askdocs/pdfchat/internal/core/domain"
)

type fusedCandidate struct {
	chunk   domain.Chunk
	ordinal int
	score   float64
}

// fuseRRF merges the dense and sparse rankings with Reciprocal Rank Fusion:
// each appearance at 1-based rank r contributes 1/(c+r) to the chunk's
// fused score, and absence from a list contributes nothing. Rank-based
// fusion needs no score normalization across the two indexes' incomparable
// scales. Results are sorted by fused score descending, ties broken by
// chunk insertion order.
func fuseRRF(
	denseHits, sparseHits []domain.SearchHit,
	c int,
	lookup func(chunkID string) (domain.Chunk, int, bool),
) []fusedCandidate {
	if c <= 0 {
		c = 60
	}

	acc := make(map[string]*fusedCandidate, len(denseHits)+len(sparseHits))
	addList := func(hits []domain.SearchHit) {
		for rank, hit := range hits {
			cand, ok := acc[hit.ChunkID]
			if !ok {
				chunk, ordinal, found := lookup(hit.ChunkID)
				if !found {
					continue
				}
				cand = &fusedCandidate{chunk: chunk, ordinal: ordinal}
				acc[hit.ChunkID] = cand
			}
			cand.score += 1.0 / float64(c+rank+1)
		}
	}
	addList(denseHits)
	addList(sparseHits)

	out := make([]fusedCandidate, 0, len(acc))
	for _, cand := range acc {
		out = append(out, *cand)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].score != out[j].score {
			return out[i].score > out[j].score
		}
		return out[i].ordinal < out[j].ordinal
	})
	return out
}

// filterScope drops out-of-scope candidates before any truncation, so an
// in-scope chunk can never lose its slot to a higher-ranked out-of-scope
// one. A scope naming no known files simply yields an empty list.
func filterScope(cands []fusedCandidate, scope domain.FileScope) []fusedCandidate {
	if scope == nil {
		return cands
	}
	out := make([]fusedCandidate, 0, len(cands))
	for _, cand := range cands {
		if scope.Contains(cand.chunk.FileID) {
			out = append(out, cand)
		}
	}
	return out
}

// dedupOverlapping collapses candidates on the same (file, page) whose
// spans share at least minOverlap of the shorter span — adjacent chunker
// windows covering the same passage. The input is score-sorted, so the
// first of a duplicate pair is the higher-scoring survivor.
func dedupOverlapping(cands []fusedCandidate, minOverlap float64) []fusedCandidate {
	if minOverlap <= 0 || len(cands) < 2 {
		return cands
	}

	kept := make([]fusedCandidate, 0, len(cands))
	for _, cand := range cands {
		duplicate := false
		for _, winner := range kept {
			if winner.chunk.FileID != cand.chunk.FileID || winner.chunk.PageNumber != cand.chunk.PageNumber {
				continue
			}
			shared := winner.chunk.Span.Overlap(cand.chunk.Span)
			if shared == 0 {
				continue
			}
			shorter := winner.chunk.Span.Len()
			if cand.chunk.Span.Len() < shorter {
				shorter = cand.chunk.Span.Len()
			}
			if shorter > 0 && float64(shared)/float64(shorter) >= minOverlap {
				duplicate = true
				break
			}
		}
		if !duplicate {
			kept = append(kept, cand)
		}
	}
	return kept
}

func toSnippets(cands []fusedCandidate, limit int) []domain.Snippet {
	if limit > 0 && len(cands) > limit {
		cands = cands[:limit]
	}
	out := make([]domain.Snippet, 0, len(cands))
	for _, cand := range cands {
		out = append(out, domain.Snippet{
			ChunkID:    cand.chunk.ID,
			FusedScore: cand.score,
			FileID:     cand.chunk.FileID,
			FileName:   cand.chunk.FileName,
			PageNumber: cand.chunk.PageNumber,
			Span:       cand.chunk.Span,
			Text:       cand.chunk.Text,
		})
	}
	return out
}
