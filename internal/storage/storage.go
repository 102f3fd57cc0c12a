// Package storage keeps attachment blobs on the local filesystem under
// content-addressed keys.
package storage

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/zeebo/blake3"
)

const keyLength = 64

var (
	// ErrTooLarge is returned when an upload exceeds the size limit.
	ErrTooLarge = errors.New("object exceeds size limit")
	// ErrInvalidKey is returned for keys that are not blake3 hex digests.
	ErrInvalidKey = errors.New("invalid object key")
	// ErrNotFound is returned when no blob is stored under the key.
	ErrNotFound = errors.New("object not found")
)

// ObjectStore is the blob store used for ticket attachments.
type ObjectStore interface {
	// Put stores the content and returns its key. created is false when an
	// identical blob already existed.
	Put(ctx context.Context, r io.Reader) (key string, size int64, created bool, err error)
	Open(ctx context.Context, key string) (*os.File, error)
	Delete(ctx context.Context, key string) error
	URL(key string) string
}

// FileStore implements ObjectStore on a directory.
type FileStore struct {
	dir      string
	baseURL  string
	maxBytes int64
}

// NewFileStore creates dir if needed.
func NewFileStore(dir, publicBaseURL string, maxBytes int64) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &FileStore{dir: dir, baseURL: publicBaseURL, maxBytes: maxBytes}, nil
}

// Put streams r into a temp file while hashing it, then moves the file to
// its content address.
func (s *FileStore) Put(ctx context.Context, r io.Reader) (string, int64, bool, error) {
	tmp, err := os.CreateTemp(s.dir, "upload-*")
	if err != nil {
		return "", 0, false, err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	hasher := blake3.New()
	src := r
	if s.maxBytes > 0 {
		src = io.LimitReader(r, s.maxBytes+1)
	}
	size, err := io.Copy(io.MultiWriter(tmp, hasher), src)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return "", 0, false, err
	}
	if s.maxBytes > 0 && size > s.maxBytes {
		return "", 0, false, ErrTooLarge
	}
	if err := ctx.Err(); err != nil {
		return "", 0, false, err
	}

	key := hex.EncodeToString(hasher.Sum(nil))
	dest := s.path(key)
	if _, err := os.Stat(dest); err == nil {
		return key, size, false, nil
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o750); err != nil {
		return "", 0, false, err
	}
	if err := os.Rename(tmpName, dest); err != nil {
		return "", 0, false, err
	}
	return key, size, true, nil
}

// Open returns the blob for reading. The caller closes it.
func (s *FileStore) Open(_ context.Context, key string) (*os.File, error) {
	if !ValidKey(key) {
		return nil, ErrInvalidKey
	}
	f, err := os.Open(s.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	return f, err
}

// Delete removes a blob. Deleting a missing blob is not an error.
func (s *FileStore) Delete(_ context.Context, key string) error {
	if !ValidKey(key) {
		return ErrInvalidKey
	}
	err := os.Remove(s.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// URL returns the public download path for key.
func (s *FileStore) URL(key string) string {
	return s.baseURL + "/" + key
}

func (s *FileStore) path(key string) string {
	return filepath.Join(s.dir, key[:2], key)
}

// ValidKey reports whether key is a lowercase hex blake3 digest.
func ValidKey(key string) bool {
	if len(key) != keyLength {
		return false
	}
	for _, c := range key {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
