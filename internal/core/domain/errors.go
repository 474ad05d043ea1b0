package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrIndexingFailed means a file's ingest could not complete; the file's
	// chunks were rolled back and the caller may retry that file alone.
	ErrIndexingFailed = errors.New("indexing failed")

	// ErrEmbeddingUnavailable means the embedding model is unreachable.
	// Distinct from ErrIndexingFailed so callers can pick retry policy.
	ErrEmbeddingUnavailable = errors.New("embedding model unavailable")

	// ErrSessionNotFound means the referenced session has no retriever.
	ErrSessionNotFound = errors.New("session not found")

	ErrFileNotFound = errors.New("file not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrTemporary    = errors.New("temporary failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
