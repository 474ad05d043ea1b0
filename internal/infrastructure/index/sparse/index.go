package sparse

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/askdocs/pdfchat/internal/core/domain"
)

const (
	bm25K1 = 1.2
	bm25B  = 0.75
)

// Index is an in-memory BM25 index over one session's chunk texts. It keeps
// per-chunk term frequencies, corpus document frequencies and lengths —
// everything the scorer needs, nothing persisted.
type Index struct {
	mu       sync.RWMutex
	docs     []document
	byID     map[string]int
	df       map[string]int
	totalLen int
}

type document struct {
	chunkID string
	tf      map[string]int
	length  int
}

func New() *Index {
	return &Index{
		byID: make(map[string]int),
		df:   make(map[string]int),
	}
}

// Add tokenizes the chunk text and folds it into the corpus statistics.
// A chunk id may be added once; re-adding is rejected.
func (idx *Index) Add(chunkID, text string) error {
	tokens := Tokenize(text)
	tf := make(map[string]int, len(tokens))
	for _, token := range tokens {
		tf[token]++
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	if _, exists := idx.byID[chunkID]; exists {
		return domain.WrapError(domain.ErrInvalidInput, "keyword index add",
			fmt.Errorf("duplicate chunk id %s", chunkID))
	}
	for token := range tf {
		idx.df[token]++
	}
	idx.byID[chunkID] = len(idx.docs)
	idx.docs = append(idx.docs, document{chunkID: chunkID, tf: tf, length: len(tokens)})
	idx.totalLen += len(tokens)
	return nil
}

// Search scores every chunk sharing at least one term with the query and
// returns the top k by BM25, descending, ties broken by insertion order.
// A query with no overlapping terms yields no hits.
func (idx *Index) Search(queryText string, k int) []domain.SearchHit {
	if k <= 0 {
		return nil
	}
	terms := uniqueTokens(queryText)
	if len(terms) == 0 {
		return nil
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if len(idx.docs) == 0 {
		return nil
	}
	avgLen := float64(idx.totalLen) / float64(len(idx.docs))

	hits := make([]domain.SearchHit, 0, k)
	for _, doc := range idx.docs {
		score := idx.scoreBM25(doc, terms, avgLen)
		if score <= 0 {
			continue
		}
		hits = append(hits, domain.SearchHit{ChunkID: doc.chunkID, Score: score})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits
}

func (idx *Index) scoreBM25(doc document, terms []string, avgLen float64) float64 {
	var score float64
	for _, term := range terms {
		tf := doc.tf[term]
		if tf == 0 {
			continue
		}
		df := idx.df[term]
		idf := math.Log(1.0 + (float64(len(idx.docs))-float64(df)+0.5)/(float64(df)+0.5))
		lengthNorm := 1.0 - bm25B + bm25B*float64(doc.length)/avgLen
		score += idf * float64(tf) * (bm25K1 + 1.0) / (float64(tf) + bm25K1*lengthNorm)
	}
	return score
}

func (idx *Index) Remove(chunkIDs ...string) {
	if len(chunkIDs) == 0 {
		return
	}
	drop := make(map[string]struct{}, len(chunkIDs))
	for _, id := range chunkIDs {
		drop[id] = struct{}{}
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	kept := idx.docs[:0]
	for _, doc := range idx.docs {
		if _, gone := drop[doc.chunkID]; gone {
			delete(idx.byID, doc.chunkID)
			for token := range doc.tf {
				if idx.df[token] <= 1 {
					delete(idx.df, token)
				} else {
					idx.df[token]--
				}
			}
			idx.totalLen -= doc.length
			continue
		}
		idx.byID[doc.chunkID] = len(kept)
		kept = append(kept, doc)
	}
	idx.docs = kept
}

func (idx *Index) RemoveAll() {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.docs = nil
	idx.byID = make(map[string]int)
	idx.df = make(map[string]int)
	idx.totalLen = 0
}

func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.docs)
}

func uniqueTokens(s string) []string {
	tokens := Tokenize(s)
	seen := make(map[string]struct{}, len(tokens))
	out := tokens[:0]
	for _, token := range tokens {
		if _, dup := seen[token]; dup {
			continue
		}
		seen[token] = struct{}{}
		out = append(out, token)
	}
	return out
}
