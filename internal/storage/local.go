package storage

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// =============================================================================
// LocalStorage Implementation
// =============================================================================

// LocalStorage implements Storage on the local filesystem. Keys map to paths
// under basePath; resolvePath rejects keys that would escape it.
type LocalStorage struct {
	basePath string
	baseURL  string
	logger   *slog.Logger
}

// NewLocalStorage creates the base directory if needed and returns a
// LocalStorage rooted there.
func NewLocalStorage(cfg LocalConfig, logger *slog.Logger) (*LocalStorage, error) {
	absPath, err := filepath.Abs(cfg.BasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve base path: %w", err)
	}

	if err := os.MkdirAll(absPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")

	logger.Info("initialized local storage",
		"base_path", absPath,
		"base_url", baseURL,
	)

	return &LocalStorage{
		basePath: absPath,
		baseURL:  baseURL,
		logger:   logger,
	}, nil
}

// Put stores data at the specified key. Partial files are removed on error.
func (s *LocalStorage) Put(ctx context.Context, key string, data io.Reader, opts PutOptions) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	filePath, err := s.resolvePath(key)
	if err != nil {
		return &StorageError{Op: "Put", Key: key, Err: err}
	}

	if !opts.Overwrite {
		if _, err := os.Stat(filePath); err == nil {
			return &StorageError{Op: "Put", Key: key, Err: ErrKeyExists}
		}
	}

	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return &StorageError{Op: "Put", Key: key, Err: fmt.Errorf("failed to create directory: %w", err)}
	}

	file, err := os.Create(filePath)
	if err != nil {
		return &StorageError{Op: "Put", Key: key, Err: fmt.Errorf("failed to create file: %w", err)}
	}
	defer file.Close()

	src := data
	if opts.MaxSize > 0 {
		src = io.LimitReader(data, opts.MaxSize+1)
	}

	written, err := io.Copy(file, src)
	if err != nil {
		os.Remove(filePath)
		return &StorageError{Op: "Put", Key: key, Err: fmt.Errorf("failed to write file: %w", err)}
	}
	if opts.MaxSize > 0 && written > opts.MaxSize {
		os.Remove(filePath)
		return &StorageError{Op: "Put", Key: key, Err: ErrTooLarge}
	}

	s.logger.Debug("stored file",
		"key", key,
		"size", written,
		"content_type", DetectContentType(opts.ContentType, key),
	)

	return nil
}

// Get opens the file at key.
func (s *LocalStorage) Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error) {
	if ctx.Err() != nil {
		return nil, ObjectInfo{}, ctx.Err()
	}

	filePath, err := s.resolvePath(key)
	if err != nil {
		return nil, ObjectInfo{}, &StorageError{Op: "Get", Key: key, Err: err}
	}

	stat, err := os.Stat(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ObjectInfo{}, &StorageError{Op: "Get", Key: key, Err: ErrNotFound}
		}
		return nil, ObjectInfo{}, &StorageError{Op: "Get", Key: key, Err: fmt.Errorf("failed to stat file: %w", err)}
	}
	if stat.IsDir() {
		return nil, ObjectInfo{}, &StorageError{Op: "Get", Key: key, Err: ErrNotFound}
	}

	file, err := os.Open(filePath)
	if err != nil {
		return nil, ObjectInfo{}, &StorageError{Op: "Get", Key: key, Err: fmt.Errorf("failed to open file: %w", err)}
	}

	return file, s.objectInfo(key, stat), nil
}

// Delete removes the file at key. Missing files are not an error.
func (s *LocalStorage) Delete(ctx context.Context, key string) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	filePath, err := s.resolvePath(key)
	if err != nil {
		return &StorageError{Op: "Delete", Key: key, Err: err}
	}

	if err := os.Remove(filePath); err != nil && !os.IsNotExist(err) {
		return &StorageError{Op: "Delete", Key: key, Err: fmt.Errorf("failed to delete file: %w", err)}
	}

	s.logger.Debug("deleted file", "key", key)
	return nil
}

// URL returns baseURL/key. The expires argument is ignored.
func (s *LocalStorage) URL(ctx context.Context, key string, _ time.Duration) (string, error) {
	if ctx.Err() != nil {
		return "", ctx.Err()
	}

	if _, err := s.resolvePath(key); err != nil {
		return "", &StorageError{Op: "URL", Key: key, Err: err}
	}

	return fmt.Sprintf("%s/%s", s.baseURL, filepath.ToSlash(filepath.Clean(key))), nil
}

// Exists checks if a file exists at key.
func (s *LocalStorage) Exists(ctx context.Context, key string) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}

	filePath, err := s.resolvePath(key)
	if err != nil {
		return false, &StorageError{Op: "Exists", Key: key, Err: err}
	}

	if _, err := os.Stat(filePath); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, &StorageError{Op: "Exists", Key: key, Err: fmt.Errorf("failed to stat file: %w", err)}
	}
	return true, nil
}

// List walks basePath and returns files whose slash-separated key starts
// with prefix.
func (s *LocalStorage) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	if strings.Contains(prefix, "..") {
		return nil, &StorageError{Op: "List", Key: prefix, Err: ErrInvalidKey}
	}

	var out []ObjectInfo
	err := filepath.WalkDir(s.basePath, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(s.basePath, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if !strings.HasPrefix(key, prefix) {
			return nil
		}

		stat, err := d.Info()
		if err != nil {
			return err
		}
		out = append(out, s.objectInfo(key, stat))
		return nil
	})
	if err != nil {
		return nil, &StorageError{Op: "List", Key: prefix, Err: err}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// =============================================================================
// Internal Helpers
// =============================================================================

func (s *LocalStorage) objectInfo(key string, stat fs.FileInfo) ObjectInfo {
	return ObjectInfo{
		Key:          key,
		Size:         stat.Size(),
		ContentType:  DetectContentType("", key),
		LastModified: stat.ModTime(),
	}
}

// resolvePath converts a storage key to an absolute file path inside
// basePath. Keys containing ".." are rejected.
func (s *LocalStorage) resolvePath(key string) (string, error) {
	if key == "" {
		return "", ErrInvalidKey
	}

	cleanKey := filepath.Clean(key)
	if strings.Contains(cleanKey, "..") || filepath.IsAbs(cleanKey) {
		return "", ErrInvalidKey
	}

	absPath := filepath.Join(s.basePath, cleanKey)
	if !strings.HasPrefix(absPath, s.basePath+string(filepath.Separator)) {
		return "", ErrInvalidKey
	}

	return absPath, nil
}
