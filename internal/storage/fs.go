package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// fsStorage implements Storage on a local directory. Objects are written to
// a temp file in the same directory and renamed into place, so a failed Put
// never leaves a partially written object visible under its key.
type fsStorage struct {
	dir string
}

// NewFS creates a directory-backed blob store rooted at dir, creating the
// directory if it does not exist.
func NewFS(dir string) (Storage, error) {
	if dir == "" {
		return nil, fmt.Errorf("blob directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create blob directory: %w", err)
	}
	return &fsStorage{dir: dir}, nil
}

func (f *fsStorage) path(key string) (string, error) {
	// Keys are server-generated names, but reject anything that would
	// escape the blob directory.
	clean := filepath.Clean(key)
	if clean != key || strings.ContainsRune(key, os.PathSeparator) || key == "." || key == ".." {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	return filepath.Join(f.dir, key), nil
}

// Put streams the reader into a temp file and renames it onto the final name.
func (f *fsStorage) Put(ctx context.Context, key string, r io.Reader, opt PutObjectOptions) (ObjectInfo, error) {
	dst, err := f.path(key)
	if err != nil {
		return ObjectInfo{}, err
	}

	tmp, err := os.CreateTemp(f.dir, ".put-*")
	if err != nil {
		return ObjectInfo{}, fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	n, err := io.Copy(tmp, r)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	if err != nil {
		_ = os.Remove(tmpName)
		return ObjectInfo{}, fmt.Errorf("write object: %w", err)
	}

	if err := os.Rename(tmpName, dst); err != nil {
		_ = os.Remove(tmpName)
		return ObjectInfo{}, fmt.Errorf("finalize object: %w", err)
	}

	return ObjectInfo{
		Key:          key,
		Size:         n,
		ContentType:  opt.ContentType,
		LastModified: time.Now(),
		Metadata:     opt.Metadata,
	}, nil
}

// Get opens the object file for sequential reading.
func (f *fsStorage) Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error) {
	p, err := f.path(key)
	if err != nil {
		return nil, ObjectInfo{}, err
	}

	file, err := os.Open(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ObjectInfo{}, ErrObjectNotFound
		}
		return nil, ObjectInfo{}, fmt.Errorf("open object: %w", err)
	}

	st, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, ObjectInfo{}, fmt.Errorf("stat object: %w", err)
	}

	return file, ObjectInfo{
		Key:          key,
		Size:         st.Size(),
		LastModified: st.ModTime(),
	}, nil
}

// Delete removes the object file; a missing file is treated as success.
func (f *fsStorage) Delete(ctx context.Context, key string) error {
	p, err := f.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove object: %w", err)
	}
	return nil
}
