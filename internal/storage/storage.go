package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cinevault/apiserver/config"
)

// ErrObjectNotFound is returned when the requested object does not exist.
var ErrObjectNotFound = errors.New("object not found")

const defaultPresignExpiry = 15 * time.Minute

// ObjectInfo is the metadata reported by a backend for a stored object.
type ObjectInfo struct {
	ContentType string
	Size        int64
	ETag        string
}

// ObjectStorage defines common object operations across backends.
type ObjectStorage interface {
	EnsureBucket(ctx context.Context) error
	PresignPut(ctx context.Context, key, contentType string, expiry time.Duration) (string, error)
	PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error)
	Stat(ctx context.Context, key string) (ObjectInfo, error)
	Delete(ctx context.Context, key string) error
	Bucket() string
}

// Presigned is a time-limited URL granting direct access to one object.
type Presigned struct {
	URL string `json:"url"`
	Key string `json:"key"`
	// ExpiresIn is the validity of URL in seconds.
	ExpiresIn int `json:"expiresIn"`
}

// Storage wraps an ObjectStorage backend with a stable API.
type Storage struct {
	backend ObjectStorage
	expiry  time.Duration
}

// NewStorage constructs a Storage wrapper for the provided backend. A
// non-positive expiry falls back to 15 minutes.
func NewStorage(backend ObjectStorage, expiry time.Duration) *Storage {
	if expiry <= 0 {
		expiry = defaultPresignExpiry
	}
	return &Storage{backend: backend, expiry: expiry}
}

// New builds the backend selected by cfg.Backend ("minio" or "gcs").
func New(ctx context.Context, cfg config.StorageConfig) (*Storage, error) {
	var (
		backend ObjectStorage
		err     error
	)
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", "minio", "s3", "r2":
		backend, err = NewMinioClient(cfg.Minio)
	case "gcs":
		backend, err = NewGCSClient(ctx, cfg.GCS)
	default:
		return nil, fmt.Errorf("unsupported storage backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}
	return NewStorage(backend, cfg.PresignExpires), nil
}

// EnsureBucket ensures the configured bucket exists.
func (s *Storage) EnsureBucket(ctx context.Context) error {
	return s.backend.EnsureBucket(ctx)
}

// PresignPut returns a URL the client can PUT the object bytes to.
func (s *Storage) PresignPut(ctx context.Context, key, contentType string) (Presigned, error) {
	url, err := s.backend.PresignPut(ctx, key, contentType, s.expiry)
	if err != nil {
		return Presigned{}, err
	}
	return s.presigned(url, key), nil
}

// PresignGet returns a URL the client can download the object from. The
// object's existence is not checked.
func (s *Storage) PresignGet(ctx context.Context, key string) (Presigned, error) {
	url, err := s.backend.PresignGet(ctx, key, s.expiry)
	if err != nil {
		return Presigned{}, err
	}
	return s.presigned(url, key), nil
}

// Stat returns the backend's metadata for key.
func (s *Storage) Stat(ctx context.Context, key string) (ObjectInfo, error) {
	return s.backend.Stat(ctx, key)
}

// Delete removes an object from the configured bucket.
func (s *Storage) Delete(ctx context.Context, key string) error {
	return s.backend.Delete(ctx, key)
}

// Bucket returns the configured bucket name.
func (s *Storage) Bucket() string {
	return s.backend.Bucket()
}

// Expiry returns the lifetime of presigned URLs.
func (s *Storage) Expiry() time.Duration {
	return s.expiry
}

func (s *Storage) presigned(url, key string) Presigned {
	return Presigned{URL: url, Key: key, ExpiresIn: int(s.expiry / time.Second)}
}
