package dense

import (
	"testing"

	"github.com/askdocs/pdfchat/internal/core/domain"
)

func TestSearchOrdersByCosineSimilarity(t *testing.T) {
	idx := New()
	mustAdd(t, idx, "a", []float32{1, 0})
	mustAdd(t, idx, "b", []float32{0.9, 0.1})
	mustAdd(t, idx, "c", []float32{0, 1})

	hits := idx.Search([]float32{1, 0}, 3)
	if len(hits) != 3 {
		t.Fatalf("expected 3 hits, got %d", len(hits))
	}
	if hits[0].ChunkID != "a" || hits[1].ChunkID != "b" || hits[2].ChunkID != "c" {
		t.Fatalf("unexpected order: %v", ids(hits))
	}
	if hits[0].Score < hits[1].Score || hits[1].Score < hits[2].Score {
		t.Fatalf("scores not descending: %v", hits)
	}
}

func TestSearchTiesKeepInsertionOrder(t *testing.T) {
	idx := New()
	// Same direction after normalization, so identical cosine scores.
	mustAdd(t, idx, "first", []float32{1, 1})
	mustAdd(t, idx, "second", []float32{2, 2})

	hits := idx.Search([]float32{1, 1}, 2)
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(hits))
	}
	if hits[0].ChunkID != "first" || hits[1].ChunkID != "second" {
		t.Fatalf("tie not broken by insertion order: %v", ids(hits))
	}
}

func TestSearchTruncatesToK(t *testing.T) {
	idx := New()
	mustAdd(t, idx, "a", []float32{1, 0})
	mustAdd(t, idx, "b", []float32{0, 1})
	mustAdd(t, idx, "c", []float32{1, 1})

	hits := idx.Search([]float32{1, 0}, 2)
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(hits))
	}
}

func TestSearchEmptyIndex(t *testing.T) {
	idx := New()
	if hits := idx.Search([]float32{1, 0}, 5); len(hits) != 0 {
		t.Fatalf("expected no hits, got %v", hits)
	}
}

func TestAddRejectsZeroVectorAndDuplicates(t *testing.T) {
	idx := New()
	if err := idx.Add("zero", []float32{0, 0}); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input for zero vector, got %v", err)
	}
	if err := idx.Add("empty", nil); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input for empty vector, got %v", err)
	}
	mustAdd(t, idx, "a", []float32{1, 0})
	if err := idx.Add("a", []float32{0, 1}); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input for duplicate id, got %v", err)
	}
	if idx.Len() != 1 {
		t.Fatalf("expected len 1, got %d", idx.Len())
	}
}

func TestRemoveAndRemoveAll(t *testing.T) {
	idx := New()
	mustAdd(t, idx, "a", []float32{1, 0})
	mustAdd(t, idx, "b", []float32{0, 1})
	mustAdd(t, idx, "c", []float32{1, 1})

	idx.Remove("b")
	if idx.Len() != 2 {
		t.Fatalf("expected len 2 after remove, got %d", idx.Len())
	}
	hits := idx.Search([]float32{0, 1}, 3)
	for _, hit := range hits {
		if hit.ChunkID == "b" {
			t.Fatal("removed chunk still searchable")
		}
	}

	// Removed ids may be re-added, e.g. after an ingest rollback.
	mustAdd(t, idx, "b", []float32{0, 1})

	idx.RemoveAll()
	if idx.Len() != 0 {
		t.Fatalf("expected empty index, got len %d", idx.Len())
	}
	if hits := idx.Search([]float32{1, 0}, 3); len(hits) != 0 {
		t.Fatalf("expected no hits after RemoveAll, got %v", hits)
	}
}

func mustAdd(t *testing.T, idx *Index, id string, vector []float32) {
	t.Helper()
	if err := idx.Add(id, vector); err != nil {
		t.Fatalf("Add(%s) error = %v", id, err)
	}
}

func ids(hits []domain.SearchHit) []string {
	out := make([]string, len(hits))
	for i, hit := range hits {
		out[i] = hit.ChunkID
	}
	return out
}
