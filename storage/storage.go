package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// BlobStorage persists raw evidence documents. Only extracted text ever
// reaches a prompt; the blobs are kept so a case record stays auditable.
type BlobStorage interface {
	// Upload stores a document blob and returns the storage path
	Upload(ctx context.Context, caseID string, docID uuid.UUID, filename string, data io.Reader) (string, error)

	// Download retrieves a blob by storage path
	Download(ctx context.Context, storagePath string) (io.ReadCloser, error)

	// Delete removes a blob by storage path
	Delete(ctx context.Context, storagePath string) error
}

// BackendType selects the storage backend
type BackendType string

const (
	BackendLocal BackendType = "local"
	BackendS3    BackendType = "s3"
)

// Config holds configuration for blob storage
type Config struct {
	Type         BackendType
	LocalPath    string // For local storage
	S3Bucket     string // For S3 storage
	S3Region     string // For S3 storage
	AWSAccessKey string
	AWSSecretKey string
}

// New creates a blob storage instance from configuration
func New(cfg Config) (BlobStorage, error) {
	switch cfg.Type {
	case BackendLocal:
		return NewLocalStorage(cfg.LocalPath)
	case BackendS3:
		return NewS3Storage(cfg)
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}

// NewFromEnv creates a blob storage instance from environment variables
func NewFromEnv() (BlobStorage, error) {
	backend := os.Getenv("STORAGE_TYPE")
	if backend == "" {
		backend = "local" // Default to local for development
	}

	switch BackendType(backend) {
	case BackendLocal:
		localPath := os.Getenv("STORAGE_LOCAL_PATH")
		if localPath == "" {
			localPath = "./storage/documents"
		}
		return NewLocalStorage(localPath)

	case BackendS3:
		cfg := Config{
			Type:         BackendS3,
			S3Bucket:     os.Getenv("AWS_S3_BUCKET"),
			S3Region:     os.Getenv("AWS_REGION"),
			AWSAccessKey: os.Getenv("AWS_ACCESS_KEY_ID"),
			AWSSecretKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
		}
		if cfg.S3Region == "" {
			cfg.S3Region = "us-east-1"
		}
		if cfg.S3Bucket == "" {
			return nil, errors.New("AWS_S3_BUCKET environment variable is required for S3 storage")
		}
		return NewS3Storage(cfg)

	default:
		return nil, fmt.Errorf("unknown storage type: %s", backend)
	}
}

// documentPath builds a storage path grouped by case, with the document
// id guaranteeing uniqueness across re-uploads of the same filename
func documentPath(caseID string, docID uuid.UUID, filename string) string {
	base := filepath.Base(filename)
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.ReplaceAll(base, "/", "_")
	base = strings.ReplaceAll(base, "\\", "_")
	return fmt.Sprintf("cases/%s/%s_%s", sanitizeCaseID(caseID), docID.String(), base)
}

func sanitizeCaseID(caseID string) string {
	var b strings.Builder
	for _, r := range caseID {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}
