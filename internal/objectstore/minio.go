package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"mediaflow/internal/services"
)

// MinIOOptions configures the MinIO backend.
type MinIOOptions struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// MinIOStore stores objects in a single MinIO bucket.
type MinIOStore struct {
	client *minio.Client
	bucket string
}

// NewMinIO connects to the MinIO endpoint. No request is made until first use.
func NewMinIO(opts MinIOOptions) (*MinIOStore, error) {
	if strings.TrimSpace(opts.Endpoint) == "" {
		return nil, services.Wrap(services.ErrConfiguration, "objectstore", "minio", "endpoint is required", nil)
	}
	if strings.TrimSpace(opts.Bucket) == "" {
		return nil, services.Wrap(services.ErrConfiguration, "objectstore", "minio", "bucket is required", nil)
	}
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
	})
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "objectstore", "minio", "create client", err)
	}
	return &MinIOStore{client: client, bucket: opts.Bucket}, nil
}

// Bucket returns the configured bucket name.
func (s *MinIOStore) Bucket() string {
	return s.bucket
}

func (s *MinIOStore) Get(ctx context.Context, key string) (io.ReadCloser, Info, error) {
	if err := validateKey(key); err != nil {
		return nil, Info{}, err
	}
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, Info{}, mapMinIOError("get object", key, err)
	}
	// GetObject is lazy; Stat issues the request and surfaces NoSuchKey.
	stat, err := obj.Stat()
	if err != nil {
		_ = obj.Close()
		return nil, Info{}, mapMinIOError("get object", key, err)
	}
	return obj, infoFromObject(stat), nil
}

func (s *MinIOStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (Info, error) {
	if err := validateKey(key); err != nil {
		return Info{}, err
	}
	if size < 0 {
		size = -1
	}
	upload, err := s.client.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return Info{}, mapMinIOError("put object", key, err)
	}
	return Info{
		Key:          upload.Key,
		Size:         upload.Size,
		ContentType:  contentType,
		ETag:         upload.ETag,
		LastModified: upload.LastModified,
	}, nil
}

func (s *MinIOStore) Delete(ctx context.Context, key string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		mapped := mapMinIOError("remove object", key, err)
		if errors.Is(mapped, services.ErrNotFound) {
			return nil
		}
		return mapped
	}
	return nil
}

func (s *MinIOStore) Stat(ctx context.Context, key string) (Info, error) {
	if err := validateKey(key); err != nil {
		return Info{}, err
	}
	stat, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		return Info{}, mapMinIOError("stat object", key, err)
	}
	return infoFromObject(stat), nil
}

func (s *MinIOStore) Ping(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return mapMinIOError("bucket exists", s.bucket, err)
	}
	if !exists {
		return services.Wrap(services.ErrNotFound, "objectstore", "ping", fmt.Sprintf("bucket %q does not exist", s.bucket), nil)
	}
	return nil
}

// EnsureBucket creates the bucket when it is missing.
func (s *MinIOStore) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return mapMinIOError("bucket exists", s.bucket, err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		resp := minio.ToErrorResponse(err)
		if resp.Code == "BucketAlreadyOwnedByYou" || resp.Code == "BucketAlreadyExists" {
			return nil
		}
		return mapMinIOError("make bucket", s.bucket, err)
	}
	return nil
}

func infoFromObject(obj minio.ObjectInfo) Info {
	return Info{
		Key:          obj.Key,
		Size:         obj.Size,
		ContentType:  obj.ContentType,
		ETag:         obj.ETag,
		LastModified: obj.LastModified,
	}
}

// mapMinIOError tags MinIO failures with the retry class the pipeline expects:
// missing objects and credential problems are permanent, everything else is
// assumed to be a transient storage or network failure.
func mapMinIOError(op, key string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	resp := minio.ToErrorResponse(err)
	switch resp.Code {
	case "NoSuchKey", "NoSuchBucket", "NoSuchObject":
		return services.Wrap(services.ErrNotFound, "objectstore", op, key, err)
	case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch", "InvalidBucketName", "InvalidArgument":
		return services.Wrap(services.ErrConfiguration, "objectstore", op, key, err)
	case "":
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return services.Wrap(services.ErrTimeout, "objectstore", op, key, err)
		}
	}
	return services.Wrap(services.ErrTransient, "objectstore", op, key, err)
}
