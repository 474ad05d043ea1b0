package usecase

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/askdocs/pdfchat/internal/core/domain"
	"github.com/askdocs/pdfchat/internal/core/ports"
)

// Engine is the retrieval engine's service facade: session lifecycle, the
// upload-to-index pipeline and query answering, all scoped to one session
// per call.
type Engine struct {
	registry  *SessionRegistry
	files     ports.FileRepository
	storage   ports.ObjectStorage
	queue     ports.MessageQueue
	extractor ports.PageExtractor
}

func NewEngine(
	registry *SessionRegistry,
	files ports.FileRepository,
	storage ports.ObjectStorage,
	queue ports.MessageQueue,
	extractor ports.PageExtractor,
) *Engine {
	return &Engine{
		registry:  registry,
		files:     files,
		storage:   storage,
		queue:     queue,
		extractor: extractor,
	}
}

func (e *Engine) CreateSession(sessionID string) error {
	return e.registry.Create(sessionID)
}

// DestroySession tears the session down as one logical operation: the
// registry entry goes first so no new call can land, then indexes, metadata
// rows and stored uploads.
func (e *Engine) DestroySession(ctx context.Context, sessionID string) error {
	if err := e.registry.Destroy(sessionID); err != nil {
		return err
	}
	if err := e.files.DeleteBySession(ctx, sessionID); err != nil {
		return fmt.Errorf("delete session file rows: %w", err)
	}
	if err := e.storage.RemovePrefix(ctx, sessionID); err != nil {
		return fmt.Errorf("delete session uploads: %w", err)
	}
	return nil
}

// Upload stores the PDF, records its metadata and schedules indexing. The
// session must already exist; uploads never create one implicitly.
func (e *Engine) Upload(ctx context.Context, sessionID, filename string, body io.Reader) (*domain.File, error) {
	if _, err := e.registry.Get(sessionID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(filename) == "" {
		filename = "document.pdf"
	}

	fileID := uuid.NewString()
	storageKey := sessionID + "/" + fileID + ".pdf"
	now := time.Now().UTC()

	if err := e.storage.Save(ctx, storageKey, body); err != nil {
		return nil, fmt.Errorf("save upload: %w", err)
	}

	file := &domain.File{
		ID:          fileID,
		SessionID:   sessionID,
		Filename:    filename,
		StoragePath: storageKey,
		Status:      domain.FileStatusUploaded,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := e.files.Create(ctx, file); err != nil {
		return nil, fmt.Errorf("create file metadata: %w", err)
	}

	if err := e.queue.PublishFileUploaded(ctx, sessionID, fileID); err != nil {
		return nil, fmt.Errorf("publish upload event: %w", err)
	}
	return file, nil
}

// IndexByID runs the slow half of the pipeline for one uploaded file:
// per-page extraction, chunking, embedding, indexing. The file's status row
// tracks progress so clients know when the session is queryable; a failure
// marks only this file failed and leaves the rest of the session intact.
func (e *Engine) IndexByID(ctx context.Context, sessionID, fileID string) error {
	retriever, err := e.registry.Get(sessionID)
	if err != nil {
		return err
	}
	file, err := e.files.GetByID(ctx, sessionID, fileID)
	if err != nil {
		return err
	}
	if err := e.files.UpdateStatus(ctx, sessionID, fileID, domain.FileStatusIndexing, ""); err != nil {
		return fmt.Errorf("set status=indexing: %w", err)
	}

	pages, err := e.extractPages(ctx, file)
	if err != nil {
		return e.failFile(ctx, sessionID, fileID, err)
	}

	chunkCount, err := retriever.Ingest(ctx, fileID, file.Filename, pages)
	if err != nil {
		return e.failFile(ctx, sessionID, fileID, err)
	}

	if err := e.files.SaveCounts(ctx, sessionID, fileID, len(pages), chunkCount); err != nil {
		return fmt.Errorf("save file counts: %w", err)
	}
	if err := e.files.UpdateStatus(ctx, sessionID, fileID, domain.FileStatusReady, ""); err != nil {
		return fmt.Errorf("set status=ready: %w", err)
	}
	return nil
}

func (e *Engine) FileStatus(ctx context.Context, sessionID, fileID string) (*domain.File, error) {
	if _, err := e.registry.Get(sessionID); err != nil {
		return nil, err
	}
	return e.files.GetByID(ctx, sessionID, fileID)
}

// Query answers a question against one session's indexes. Scope never
// errors: unknown file ids just shrink the candidate set.
func (e *Engine) Query(ctx context.Context, sessionID, question string, scope domain.FileScope) ([]domain.Snippet, error) {
	retriever, err := e.registry.Get(sessionID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(question) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "query", fmt.Errorf("empty question"))
	}
	return retriever.Query(ctx, question, scope)
}

func (e *Engine) SessionCount() int {
	return e.registry.Count()
}

func (e *Engine) extractPages(ctx context.Context, file *domain.File) ([]domain.PageText, error) {
	reader, err := e.storage.Open(ctx, file.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("open stored upload: %w", err)
	}
	defer reader.Close()

	pages, err := e.extractor.ExtractPages(ctx, reader)
	if err != nil {
		return nil, fmt.Errorf("extract pages: %w", err)
	}
	return pages, nil
}

func (e *Engine) failFile(ctx context.Context, sessionID, fileID string, cause error) error {
	if statusErr := e.files.UpdateStatus(ctx, sessionID, fileID, domain.FileStatusFailed, cause.Error()); statusErr != nil {
		return fmt.Errorf("%w; mark failed status: %v", cause, statusErr)
	}
	return cause
}
