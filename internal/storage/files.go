package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/sanixdarker/strapisource/internal/nodes"
)

// FileRepository records downloaded files so later builds can reuse them.
type FileRepository struct {
	db *sql.DB
}

// NewFileRepository creates a new FileRepository.
func NewFileRepository(db *sql.DB) *FileRepository {
	return &FileRepository{db: db}
}

// GetByURL retrieves the file downloaded from url, or nil.
func (r *FileRepository) GetByURL(url string) (*nodes.FileNode, error) {
	return r.get("url", url)
}

// GetByID retrieves a file by node id, or nil.
func (r *FileRepository) GetByID(id string) (*nodes.FileNode, error) {
	return r.get("id", id)
}

func (r *FileRepository) get(column, value string) (*nodes.FileNode, error) {
	f := &nodes.FileNode{}
	err := r.db.QueryRow(`
		SELECT id, url, path, media_type, size, digest, parent, created_at
		FROM files WHERE `+column+` = ?
	`, value).Scan(&f.ID, &f.URL, &f.Path, &f.MediaType, &f.Size, &f.Digest, &f.ParentNodeID, &f.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get file: %w", err)
	}
	return f, nil
}

// Put inserts or replaces the record for f.
func (r *FileRepository) Put(f *nodes.FileNode) error {
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.Exec(`
		INSERT INTO files (id, url, path, media_type, size, digest, parent, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			url = excluded.url, path = excluded.path, media_type = excluded.media_type,
			size = excluded.size, digest = excluded.digest, parent = excluded.parent
	`, f.ID, f.URL, f.Path, f.MediaType, f.Size, f.Digest, f.ParentNodeID, f.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to store file: %w", err)
	}
	return nil
}

// Count returns the number of recorded files.
func (r *FileRepository) Count() (int, error) {
	var n int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM files").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count files: %w", err)
	}
	return n, nil
}
