package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/askdocs/pdfchat/internal/core/domain"
)

func newRepoWithMock(t *testing.T) (*FileRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return &FileRepository{db: db}, mock, func() { _ = db.Close() }
}

func TestCreateInsertsRow(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	now := time.Now().UTC()
	file := &domain.File{
		ID:          "file-1",
		SessionID:   "s1",
		Filename:    "report.pdf",
		StoragePath: "s1/file-1.pdf",
		Status:      domain.FileStatusUploaded,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	mock.ExpectExec("INSERT INTO session_files").
		WithArgs("s1", "file-1", "report.pdf", "s1/file-1.pdf", 0, 0,
			string(domain.FileStatusUploaded), "", now, now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Create(context.Background(), file); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetByIDScansFile(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{
		"session_id", "id", "filename", "storage_path", "pages", "chunks",
		"status", "error_message", "created_at", "updated_at",
	}).AddRow("s1", "file-1", "report.pdf", "s1/file-1.pdf", 4, 12,
		string(domain.FileStatusReady), "", now, now)

	mock.ExpectQuery("SELECT session_id, id, filename, storage_path").
		WithArgs("s1", "file-1").
		WillReturnRows(rows)

	file, err := repo.GetByID(context.Background(), "s1", "file-1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if file.Status != domain.FileStatusReady || file.Pages != 4 || file.Chunks != 12 {
		t.Fatalf("unexpected file: %+v", file)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetByIDReturnsDomainNotFound(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT session_id, id, filename, storage_path").
		WithArgs("s1", "missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "s1", "missing")
	if !domain.IsKind(err, domain.ErrFileNotFound) {
		t.Fatalf("expected ErrFileNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestUpdateStatusWritesStatusAndError(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectExec("UPDATE session_files").
		WithArgs("s1", "file-1", string(domain.FileStatusFailed), "no text layer", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.UpdateStatus(context.Background(), "s1", "file-1", domain.FileStatusFailed, "no text layer"); err != nil {
		t.Fatalf("UpdateStatus() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSaveCountsWritesPagesAndChunks(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectExec("UPDATE session_files").
		WithArgs("s1", "file-1", 4, 12, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.SaveCounts(context.Background(), "s1", "file-1", 4, 12); err != nil {
		t.Fatalf("SaveCounts() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestDeleteBySessionRemovesAllRows(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectExec("DELETE FROM session_files").
		WithArgs("s1").
		WillReturnResult(sqlmock.NewResult(0, 3))

	if err := repo.DeleteBySession(context.Background(), "s1"); err != nil {
		t.Fatalf("DeleteBySession() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestEnsureSchemaRunsInTransaction(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectExec("SELECT pg_advisory_xact_lock").
		WithArgs(int64(2026083101)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS session_files").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	if err := repo.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("EnsureSchema() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
