// Package storage persists generated export files.
//
// This package defines a Storage interface with implementations for:
// - LocalStorage: File system storage for development and single-host installs
// - S3Storage: S3-compatible object storage (AWS S3, MinIO, R2)
//
// Export runs write one folder per run; the keys are built with ExportKey.
package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"
)

// =============================================================================
// Interface Definition
// =============================================================================

// Storage defines the interface for file storage operations.
//
// All methods are context-aware for timeout and cancellation support.
type Storage interface {
	// Put stores data at the specified key with the given options.
	// Returns ErrKeyExists if the key already exists and opts.Overwrite is false.
	Put(ctx context.Context, key string, data io.Reader, opts PutOptions) error

	// Get retrieves the data at the specified key. The caller must close the
	// reader. Returns ErrNotFound if the key doesn't exist.
	Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error)

	// Delete removes the object at the specified key.
	// This operation is idempotent - no error is returned if the key doesn't exist.
	Delete(ctx context.Context, key string) error

	// URL returns a URL for accessing the object at the specified key.
	URL(ctx context.Context, key string, expires time.Duration) (string, error)

	// Exists checks if an object exists at the specified key.
	Exists(ctx context.Context, key string) (bool, error)

	// List returns objects whose key starts with prefix, sorted by key.
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
}

// =============================================================================
// Data Types
// =============================================================================

// PutOptions configures how an object is stored.
type PutOptions struct {
	// ContentType specifies the MIME type of the object.
	// If empty, it will be detected from the file extension.
	ContentType string

	// MaxSize specifies the maximum allowed size in bytes. 0 means no limit.
	MaxSize int64

	// Overwrite allows replacing an existing object at the same key.
	Overwrite bool
}

// ObjectInfo contains metadata about a stored object.
type ObjectInfo struct {
	Key          string    // Object key/path
	Size         int64     // Size in bytes
	ContentType  string    // MIME type
	LastModified time.Time // Last modification time
	ETag         string    // Entity tag (if available)
}

// =============================================================================
// Configuration Types
// =============================================================================

// LocalConfig holds configuration for local filesystem storage.
type LocalConfig struct {
	// BasePath is the root directory where files are stored.
	// Example: "./exports" or "/var/lib/tsfwatch/exports"
	BasePath string

	// BaseURL is the public URL prefix for accessing files.
	// Example: "http://localhost:8080/files"
	BaseURL string
}

// S3Config holds configuration for S3-compatible storage.
type S3Config struct {
	// Endpoint overrides the AWS endpoint, e.g. "http://localhost:9000" for
	// MinIO. Empty uses the SDK's regional AWS endpoint.
	Endpoint string

	AccessKeyID     string
	SecretAccessKey string
	BucketName      string

	// PublicURL is the public URL for the bucket. If empty, presigned URLs
	// are used for all access.
	PublicURL string

	// Region defaults to "us-east-1".
	Region string
}

// =============================================================================
// Provider Constants
// =============================================================================

const (
	// ProviderLocal identifies the local filesystem storage provider.
	ProviderLocal = "local"

	// ProviderS3 identifies the S3-compatible storage provider.
	ProviderS3 = "s3"
)

// =============================================================================
// Key Generation Helpers
// =============================================================================

// ExportFolderLayout is the time layout of per-run export folders.
const ExportFolderLayout = "20060102_150405"

// ExportFolder returns the folder name for an export run started at t.
// Example: "TSF_MapData_20250601_093000"
func ExportFolder(t time.Time) string {
	return "TSF_MapData_" + t.Format(ExportFolderLayout)
}

// ReportName returns the base name (without extension) of a safety report
// generated at t. Example: "TSF_Report_20250601_093000"
func ReportName(t time.Time) string {
	return "TSF_Report_" + t.Format(ExportFolderLayout)
}

// ExportKey joins a folder and file name into a storage key.
// Example: "TSF_MapData_20250601_093000/facilities.geojson"
func ExportKey(folder, name string) string {
	return path.Join(folder, name)
}

// ReportKey returns the key of a report file under the reports/ prefix.
// Example: "reports/TSF_Report_20250601_093000.pdf"
func ReportKey(name, ext string) string {
	return fmt.Sprintf("reports/%s.%s", name, strings.TrimPrefix(ext, "."))
}

// New returns the Storage for provider ("local" or "s3").
func New(provider string, local LocalConfig, s3cfg S3Config, logger *slog.Logger) (Storage, error) {
	switch provider {
	case ProviderLocal, "":
		return NewLocalStorage(local, logger)
	case ProviderS3:
		return NewS3Storage(s3cfg, logger)
	default:
		return nil, fmt.Errorf("unknown storage provider %q", provider)
	}
}
