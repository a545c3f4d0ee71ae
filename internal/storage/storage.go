package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/talenthub/apiserver/config"
)

// ObjectStorage is implemented by every blob backend.
type ObjectStorage interface {
	EnsureBucket(ctx context.Context) error
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Delete(ctx context.Context, key string) error
	// ObjectURL renders the canonical location of key in this backend.
	ObjectURL(key string) string
	Close() error
}

// Storage fronts the configured backend for resume files.
type Storage struct {
	backend ObjectStorage
}

func NewStorage(backend ObjectStorage) *Storage {
	return &Storage{backend: backend}
}

// Open builds the backend selected by cfg.Backend and makes sure its
// bucket exists.
func Open(ctx context.Context, cfg config.StorageConfig) (*Storage, error) {
	var backend ObjectStorage
	var err error
	switch cfg.Backend {
	case config.StorageMinio:
		backend, err = NewMinioClient(cfg.Minio)
	case config.StorageGCS:
		backend, err = NewGCSClient(ctx, cfg.GCS)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("%s storage: %w", cfg.Backend, err)
	}
	if err := backend.EnsureBucket(ctx); err != nil {
		_ = backend.Close()
		return nil, fmt.Errorf("%s storage bucket: %w", cfg.Backend, err)
	}
	return NewStorage(backend), nil
}

func (s *Storage) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	return s.backend.Put(ctx, key, r, size, contentType)
}

func (s *Storage) Delete(ctx context.Context, key string) error {
	return s.backend.Delete(ctx, key)
}

func (s *Storage) Close() error {
	return s.backend.Close()
}

// Reference is the opaque resume reference handed back to clients and
// stored on the profile.
func (s *Storage) Reference(key string) string {
	return s.backend.ObjectURL(key)
}

// KeyOf is the inverse of Reference. It fails for references that point
// outside this backend's bucket.
func (s *Storage) KeyOf(ref string) (string, bool) {
	key, ok := strings.CutPrefix(ref, s.backend.ObjectURL(""))
	if !ok || key == "" {
		return "", false
	}
	return key, true
}

// ResumeKey is the object key for an uploaded resume. The filename is
// reduced to its base name so it cannot escape the user's prefix.
func ResumeKey(userID, objectID, filename string) string {
	name := path.Base(strings.ReplaceAll(strings.TrimSpace(filename), `\`, "/"))
	if name == "." || name == "/" || name == "" {
		name = "resume.pdf"
	}
	return fmt.Sprintf("%s%s-%s", ResumePrefix(userID), objectID, name)
}

// ResumePrefix is the key prefix under which a user's resumes live.
func ResumePrefix(userID string) string {
	return "resumes/" + userID + "/"
}
