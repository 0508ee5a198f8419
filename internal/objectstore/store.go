// Package objectstore wraps the object storage that holds uploaded media and
// derived artifacts. A MinIO backend serves production; a local directory
// backend serves development and tests.
package objectstore

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"mediaflow/internal/config"
	"mediaflow/internal/services"
)

// Info describes a stored object.
type Info struct {
	Key          string
	Size         int64
	ContentType  string
	ETag         string
	LastModified time.Time
}

// Store is the narrow object storage contract used by the pipeline.
type Store interface {
	// Get opens the object. A missing key yields an error marked
	// services.ErrNotFound.
	Get(ctx context.Context, key string) (io.ReadCloser, Info, error)
	// Put stores size bytes from r. A negative size streams until EOF.
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (Info, error)
	// Delete removes the object. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	Stat(ctx context.Context, key string) (Info, error)
	// Ping verifies the backing bucket or directory is reachable.
	Ping(ctx context.Context) error
}

// New builds the backend selected by cfg.Storage.Backend.
func New(cfg *config.Config) (Store, error) {
	if cfg == nil {
		return nil, services.Wrap(services.ErrConfiguration, "objectstore", "new", "config is nil", nil)
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Storage.Backend)) {
	case config.StorageBackendLocal:
		return NewLocal(cfg.Storage.LocalDir)
	case config.StorageBackendMinIO, "":
		return NewMinIO(MinIOOptions{
			Endpoint:  cfg.Storage.Endpoint,
			AccessKey: cfg.Storage.AccessKey,
			SecretKey: cfg.Storage.SecretKey,
			Bucket:    cfg.Storage.Bucket,
			UseSSL:    cfg.Storage.UseSSL,
		})
	default:
		return nil, services.Wrap(services.ErrConfiguration, "objectstore", "new",
			fmt.Sprintf("unknown storage backend %q", cfg.Storage.Backend), nil)
	}
}

func validateKey(key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return services.Wrap(services.ErrValidation, "objectstore", "key", "object key is empty", nil)
	}
	if strings.HasPrefix(key, "/") {
		return services.Wrap(services.ErrValidation, "objectstore", "key", fmt.Sprintf("object key %q must be relative", key), nil)
	}
	for _, segment := range strings.Split(key, "/") {
		if segment == ".." {
			return services.Wrap(services.ErrValidation, "objectstore", "key", fmt.Sprintf("object key %q escapes the bucket", key), nil)
		}
	}
	return nil
}
