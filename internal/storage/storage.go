// Package storage is the seam to the blob-store collaborator: bytes in,
// durable URL out. The core only ever persists the returned reference.
package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

type BlobStore interface {
	Store(ctx context.Context, data []byte, suggestedName string) (string, error)
}

// LocalStore writes blobs under a directory served as static files. Used in
// development and tests.
type LocalStore struct {
	Dir       string
	PublicURL string
}

func NewLocalStore(dir, publicURL string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &LocalStore{Dir: dir, PublicURL: publicURL}, nil
}

func (s *LocalStore) Store(_ context.Context, data []byte, suggestedName string) (string, error) {
	name := uuid.New().String() + filepath.Ext(suggestedName)
	path := filepath.Join(s.Dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write blob: %w", err)
	}
	return s.PublicURL + "/" + name, nil
}
