package usecase

import (
	"context"
	"fmt"
	"sync"

	"github.com/askdocs/pdfchat/internal/core/domain"
	"github.com/askdocs/pdfchat/internal/core/ports"
)

// RetrievalConfig carries the tunables of the hybrid pipeline.
type RetrievalConfig struct {
	KPerIndex       int
	KFused          int
	RRFConstant     int
	DedupMinOverlap float64
}

func (c RetrievalConfig) normalize() RetrievalConfig {
	out := c
	if out.KPerIndex <= 0 {
		out.KPerIndex = 20
	}
	if out.KFused <= 0 {
		out.KFused = 8
	}
	if out.RRFConstant <= 0 {
		out.RRFConstant = 60
	}
	if out.DedupMinOverlap < 0 || out.DedupMinOverlap >= 1 {
		out.DedupMinOverlap = 0.1
	}
	return out
}

// SessionRetriever owns one session's retrieval state: the dense index, the
// sparse index and the chunk table, always built from the same chunk set.
// Nothing here is shared across sessions and nothing survives Destroy.
//
// Ingest and Destroy take the write lock, so ingests within a session are
// serialized and teardown waits for in-flight calls; queries take the read
// lock and run in parallel with each other.
type SessionRetriever struct {
	chunker  ports.Chunker
	embedder ports.Embedder
	dense    ports.VectorIndex
	sparse   ports.KeywordIndex
	cfg      RetrievalConfig

	mu     sync.RWMutex
	chunks []domain.Chunk
	byID   map[string]int
}

func NewSessionRetriever(
	chunker ports.Chunker,
	embedder ports.Embedder,
	dense ports.VectorIndex,
	sparse ports.KeywordIndex,
	cfg RetrievalConfig,
) *SessionRetriever {
	return &SessionRetriever{
		chunker:  chunker,
		embedder: embedder,
		dense:    dense,
		sparse:   sparse,
		cfg:      cfg.normalize(),
		byID:     make(map[string]int),
	}
}

// Ingest chunks, embeds and indexes one file. On any mid-file failure every
// chunk of the file is removed from both indexes before the error returns:
// a partially indexed file would silently degrade recall, which is worse
// than a reported failure. Files already in the session are never touched.
// Returns the number of chunks indexed.
func (r *SessionRetriever) Ingest(ctx context.Context, fileID, fileName string, pages []domain.PageText) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	chunks := r.chunker.Chunk(fileID, fileName, pages)
	if len(chunks) == 0 {
		return 0, nil
	}
	for _, chunk := range chunks {
		if _, exists := r.byID[chunk.ID]; exists {
			return 0, domain.WrapError(domain.ErrIndexingFailed, "ingest file",
				fmt.Errorf("file %s already ingested", fileID))
		}
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}

	vectors, err := r.embedder.Embed(ctx, texts)
	if err != nil {
		return 0, domain.WrapError(domain.ErrIndexingFailed, "embed chunks", err)
	}
	if len(vectors) != len(chunks) {
		return 0, domain.WrapError(domain.ErrIndexingFailed, "embed chunks",
			fmt.Errorf("vectors/chunks mismatch: %d/%d", len(vectors), len(chunks)))
	}

	var denseAdded, sparseAdded []string
	rollback := func() {
		r.dense.Remove(denseAdded...)
		r.sparse.Remove(sparseAdded...)
	}
	for i, chunk := range chunks {
		if err := r.dense.Add(chunk.ID, vectors[i]); err != nil {
			rollback()
			return 0, domain.WrapError(domain.ErrIndexingFailed, "index chunk vectors", err)
		}
		denseAdded = append(denseAdded, chunk.ID)

		if err := r.sparse.Add(chunk.ID, chunk.Text); err != nil {
			rollback()
			return 0, domain.WrapError(domain.ErrIndexingFailed, "index chunk terms", err)
		}
		sparseAdded = append(sparseAdded, chunk.ID)
	}

	for _, chunk := range chunks {
		r.byID[chunk.ID] = len(r.chunks)
		r.chunks = append(r.chunks, chunk)
	}
	return len(chunks), nil
}

// Query embeds the question, runs both index searches concurrently, fuses
// the rankings with RRF, applies the file scope, collapses overlapping
// duplicates and truncates to the fused limit. An empty session yields an
// empty result, not an error.
func (r *SessionRetriever) Query(ctx context.Context, question string, scope domain.FileScope) ([]domain.Snippet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.chunks) == 0 {
		return []domain.Snippet{}, nil
	}

	queryVector, err := r.embedder.EmbedQuery(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}

	var denseHits, sparseHits []domain.SearchHit
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		denseHits = r.dense.Search(queryVector, r.cfg.KPerIndex)
	}()
	go func() {
		defer wg.Done()
		sparseHits = r.sparse.Search(question, r.cfg.KPerIndex)
	}()
	wg.Wait()

	cands := fuseRRF(denseHits, sparseHits, r.cfg.RRFConstant, r.lookupChunk)
	cands = filterScope(cands, scope)
	cands = dedupOverlapping(cands, r.cfg.DedupMinOverlap)
	return toSnippets(cands, r.cfg.KFused), nil
}

// Destroy releases both indexes and the chunk table. It waits for in-flight
// ingests and queries; once it returns, nothing reads this session's state.
func (r *SessionRetriever) Destroy() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.dense.RemoveAll()
	r.sparse.RemoveAll()
	r.chunks = nil
	r.byID = make(map[string]int)
}

// ChunkCount reports the size of the chunk table; after a successful ingest
// it equals the length of both indexes.
func (r *SessionRetriever) ChunkCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.chunks)
}

func (r *SessionRetriever) lookupChunk(chunkID string) (domain.Chunk, int, bool) {
	pos, ok := r.byID[chunkID]
	if !ok {
		return domain.Chunk{}, 0, false
	}
	return r.chunks[pos], pos, true
}
