package ports

import (
	"context"
	"io"

	"github.com/askdocs/pdfchat/internal/core/domain"
)

// FileRepository persists per-session file metadata and indexing state.
type FileRepository interface {
	Create(ctx context.Context, file *domain.File) error
	GetByID(ctx context.Context, sessionID, fileID string) (*domain.File, error)
	UpdateStatus(ctx context.Context, sessionID, fileID string, status domain.FileStatus, errMessage string) error
	SaveCounts(ctx context.Context, sessionID, fileID string, pages, chunks int) error
	DeleteBySession(ctx context.Context, sessionID string) error
}

// ObjectStorage stores uploaded source PDFs. Keys are "<session>/<file>"
// so a whole session's uploads can be removed on teardown.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	RemovePrefix(ctx context.Context, prefix string) error
}

// MessageQueue carries file-extracted events from the upload handler to the
// indexing consumer.
type MessageQueue interface {
	PublishFileUploaded(ctx context.Context, sessionID, fileID string) error
	SubscribeFileUploaded(ctx context.Context, handler func(ctx context.Context, sessionID, fileID string) error) error
}

// PageExtractor produces per-page plain text from a stored PDF.
type PageExtractor interface {
	ExtractPages(ctx context.Context, r io.Reader) ([]domain.PageText, error)
}

// Chunker splits per-page text into overlapping chunks with provenance.
type Chunker interface {
	Chunk(fileID, fileName string, pages []domain.PageText) []domain.Chunk
}

// Embedder builds dense vectors for chunk texts and query text. Order is
// preserved: vector i corresponds to texts[i].
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// VectorIndex is a per-session dense nearest-neighbour index.
type VectorIndex interface {
	Add(chunkID string, vector []float32) error
	Search(queryVector []float32, k int) []domain.SearchHit
	Remove(chunkIDs ...string)
	RemoveAll()
	Len() int
}

// KeywordIndex is a per-session sparse lexical index.
type KeywordIndex interface {
	Add(chunkID, text string) error
	Search(queryText string, k int) []domain.SearchHit
	Remove(chunkIDs ...string)
	RemoveAll()
	Len() int
}
