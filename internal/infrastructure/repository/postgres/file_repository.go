package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/askdocs/pdfchat/internal/core/domain"
)

// FileRepository persists per-session upload metadata and indexing status.
// The searchable indexes themselves are in-memory and session-scoped; only
// this bookkeeping row survives a process restart.
type FileRepository struct {
	db *sql.DB
}

func NewFileRepository(db *sql.DB) *FileRepository {
	return &FileRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *FileRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across concurrent service startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026083101)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS session_files (
	session_id TEXT NOT NULL,
	id TEXT NOT NULL,
	filename TEXT NOT NULL,
	storage_path TEXT NOT NULL,
	pages INTEGER NOT NULL DEFAULT 0,
	chunks INTEGER NOT NULL DEFAULT 0,
	status TEXT NOT NULL,
	error_message TEXT,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (session_id, id)
);

CREATE INDEX IF NOT EXISTS idx_session_files_status ON session_files(status);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *FileRepository) Create(ctx context.Context, file *domain.File) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO session_files (
	session_id, id, filename, storage_path, pages, chunks, status, error_message, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
`,
		file.SessionID, file.ID, file.Filename, file.StoragePath, file.Pages, file.Chunks,
		string(file.Status), file.Error, file.CreatedAt, file.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert session file: %w", err)
	}
	return nil
}

func (r *FileRepository) GetByID(ctx context.Context, sessionID, fileID string) (*domain.File, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT session_id, id, filename, storage_path, pages, chunks, status, error_message, created_at, updated_at
FROM session_files
WHERE session_id = $1 AND id = $2
`, sessionID, fileID)

	var file domain.File
	var status string

	err := row.Scan(
		&file.SessionID, &file.ID, &file.Filename, &file.StoragePath, &file.Pages, &file.Chunks,
		&status, &file.Error, &file.CreatedAt, &file.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrFileNotFound, "get session file",
				fmt.Errorf("session %s file %s", sessionID, fileID))
		}
		return nil, fmt.Errorf("scan session file: %w", err)
	}
	file.Status = domain.FileStatus(status)
	return &file, nil
}

func (r *FileRepository) UpdateStatus(ctx context.Context, sessionID, fileID string, status domain.FileStatus, errMessage string) error {
	_, err := r.db.ExecContext(ctx, `
UPDATE session_files
SET status = $3, error_message = $4, updated_at = $5
WHERE session_id = $1 AND id = $2
`, sessionID, fileID, string(status), errMessage, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update session file status: %w", err)
	}
	return nil
}

func (r *FileRepository) SaveCounts(ctx context.Context, sessionID, fileID string, pages, chunks int) error {
	_, err := r.db.ExecContext(ctx, `
UPDATE session_files
SET pages = $3, chunks = $4, updated_at = $5
WHERE session_id = $1 AND id = $2
`, sessionID, fileID, pages, chunks, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update session file counts: %w", err)
	}
	return nil
}

func (r *FileRepository) DeleteBySession(ctx context.Context, sessionID string) error {
	_, err := r.db.ExecContext(ctx, `
DELETE FROM session_files
WHERE session_id = $1
`, sessionID)
	if err != nil {
		return fmt.Errorf("delete session files: %w", err)
	}
	return nil
}
