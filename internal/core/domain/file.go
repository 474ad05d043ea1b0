package domain

import "time"

type FileStatus string

const (
	FileStatusUploaded FileStatus = "uploaded"
	FileStatusIndexing FileStatus = "indexing"
	FileStatusReady    FileStatus = "ready"
	FileStatusFailed   FileStatus = "failed"
)

// File is the metadata record for one uploaded PDF within a session. The
// extracted chunks live only in the session's in-memory indexes; this row
// tracks upload and indexing state so clients know when chat may start.
type File struct {
	ID          string     `json:"id"`
	SessionID   string     `json:"session_id"`
	Filename    string     `json:"filename"`
	StoragePath string     `json:"storage_path"`
	Pages       int        `json:"pages"`
	Chunks      int        `json:"chunks"`
	Status      FileStatus `json:"status"`
	Error       string     `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}
