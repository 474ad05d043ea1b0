package ports

import (
	"context"
	"io"

	"github.com/askdocs/pdfchat/internal/core/domain"
)

// SessionAdmin is the inbound contract for session lifecycle, driven by the
// auth/session collaborator. Destroy tears down the session's indexes,
// metadata rows and stored uploads as one logical operation.
type SessionAdmin interface {
	CreateSession(sessionID string) error
	DestroySession(ctx context.Context, sessionID string) error
}

// FileIngestor is the inbound contract for the upload side: accept a PDF,
// persist it, and schedule indexing.
type FileIngestor interface {
	Upload(ctx context.Context, sessionID, filename string, body io.Reader) (*domain.File, error)
}

// FileIndexer is the inbound contract for asynchronous indexing of an
// already-uploaded file.
type FileIndexer interface {
	IndexByID(ctx context.Context, sessionID, fileID string) error
}

// FileReader exposes upload/indexing state so clients can hold chat until a
// file reaches ready.
type FileReader interface {
	FileStatus(ctx context.Context, sessionID, fileID string) (*domain.File, error)
}

// SnippetRetriever is the inbound contract for answering questions against a
// session's indexes. The result is ranked, deduplicated snippets with
// citation metadata; answer generation is a downstream concern.
type SnippetRetriever interface {
	Query(ctx context.Context, sessionID, question string, scope domain.FileScope) ([]domain.Snippet, error)
}
