package dense

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/askdocs/pdfchat/internal/core/domain"
)

// Index is an in-memory exact nearest-neighbour index over one session's
// chunk vectors. Vectors are L2-normalized on insert, so inner product is
// cosine similarity. Brute-force scan is the right trade at session scale
// (hundreds to low thousands of chunks); an ANN structure would change the
// constant factor, not the contract.
type Index struct {
	mu      sync.RWMutex
	entries []entry
	byID    map[string]int
}

type entry struct {
	chunkID string
	vector  []float32
}

func New() *Index {
	return &Index{byID: make(map[string]int)}
}

// Add inserts one chunk vector. Re-adding an existing chunk id is a caller
// bug and is rejected rather than silently overwritten.
func (idx *Index) Add(chunkID string, vector []float32) error {
	normalized, ok := normalize(vector)
	if !ok {
		return domain.WrapError(domain.ErrInvalidInput, "dense index add",
			fmt.Errorf("chunk %s: vector is empty or zero", chunkID))
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	if _, exists := idx.byID[chunkID]; exists {
		return domain.WrapError(domain.ErrInvalidInput, "dense index add",
			fmt.Errorf("duplicate chunk id %s", chunkID))
	}
	idx.byID[chunkID] = len(idx.entries)
	idx.entries = append(idx.entries, entry{chunkID: chunkID, vector: normalized})
	return nil
}

// Search returns up to k nearest chunks by cosine similarity, descending,
// ties broken by insertion order. An empty index yields no hits.
func (idx *Index) Search(queryVector []float32, k int) []domain.SearchHit {
	if k <= 0 {
		return nil
	}
	query, ok := normalize(queryVector)
	if !ok {
		return nil
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	hits := make([]domain.SearchHit, 0, len(idx.entries))
	for _, e := range idx.entries {
		if len(e.vector) != len(query) {
			continue
		}
		hits = append(hits, domain.SearchHit{ChunkID: e.chunkID, Score: dot(query, e.vector)})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits
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

	kept := idx.entries[:0]
	for _, e := range idx.entries {
		if _, gone := drop[e.chunkID]; gone {
			delete(idx.byID, e.chunkID)
			continue
		}
		idx.byID[e.chunkID] = len(kept)
		kept = append(kept, e)
	}
	idx.entries = kept
}

func (idx *Index) RemoveAll() {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.entries = nil
	idx.byID = make(map[string]int)
}

func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.entries)
}

func normalize(vector []float32) ([]float32, bool) {
	if len(vector) == 0 {
		return nil, false
	}
	var sum float64
	for _, v := range vector {
		sum += float64(v) * float64(v)
	}
	norm := math.Sqrt(sum)
	if norm == 0 || math.IsNaN(norm) || math.IsInf(norm, 0) {
		return nil, false
	}
	out := make([]float32, len(vector))
	for i, v := range vector {
		out[i] = float32(float64(v) / norm)
	}
	return out, true
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
