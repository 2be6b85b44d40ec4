package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	Secure    bool
}

// MinIO stores blobs in an S3-compatible bucket. Tokens are ETags, and
// writes are conditional puts (If-None-Match for create, If-Match for
// update).
type MinIO struct {
	bucket string
	client *minio.Client
}

func NewMinIO(ctx context.Context, cfg MinIOConfig) (*MinIO, error) {
	c, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Region: cfg.Region,
		Secure: cfg.Secure,
	})
	if err != nil {
		return nil, fmt.Errorf("minio.New: %w", err)
	}
	ok, err := c.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("%w: BucketExists(%q): %w", ErrUnavailable, cfg.Bucket, err)
	}
	if !ok {
		return nil, fmt.Errorf("bucket %s: %w", cfg.Bucket, ErrNotFound)
	}
	return &MinIO{cfg.Bucket, c}, nil
}

func (s *MinIO) Name() string {
	return fmt.Sprintf("minio::%s", s.bucket)
}

func isNoSuchKey(err error) bool {
	code := minio.ToErrorResponse(err).Code
	return code == "NoSuchKey" || code == "NotFound"
}

func (s *MinIO) List(ctx context.Context, prefix string) ([]Entry, error) {
	prefix, err := cleanPath(prefix)
	if err != nil {
		return nil, err
	}
	opts := minio.ListObjectsOptions{Recursive: false}
	if prefix != "" {
		opts.Prefix = prefix + "/"
	}
	var entries []Entry
	for obj := range s.client.ListObjects(ctx, s.bucket, opts) {
		if obj.Err != nil {
			return nil, fmt.Errorf("%w: ListObjects(%q): %w", ErrUnavailable, prefix, obj.Err)
		}
		name := strings.TrimPrefix(obj.Key, opts.Prefix)
		if strings.HasSuffix(name, "/") {
			entries = append(entries, Entry{strings.TrimSuffix(name, "/"), true})
		} else if name != "" {
			entries = append(entries, Entry{name, false})
		}
	}
	return entries, nil
}

func (s *MinIO) stat(ctx context.Context, path string) (minio.ObjectInfo, error) {
	info, err := s.client.StatObject(ctx, s.bucket, path, minio.StatObjectOptions{})
	if err != nil {
		if isNoSuchKey(err) {
			return info, fmt.Errorf("%s: %w", path, ErrNotFound)
		}
		return info, fmt.Errorf("%w: StatObject(%q): %w", ErrUnavailable, path, err)
	}
	return info, nil
}

func (s *MinIO) Read(ctx context.Context, path string) (Blob, error) {
	path, err := cleanPath(path)
	if err != nil {
		return Blob{}, err
	}
	obj, err := s.client.GetObject(ctx, s.bucket, path, minio.GetObjectOptions{})
	if err != nil {
		return Blob{}, fmt.Errorf("%w: GetObject(%q): %w", ErrUnavailable, path, err)
	}
	defer obj.Close()
	info, err := obj.Stat()
	if err != nil {
		if isNoSuchKey(err) {
			return Blob{}, fmt.Errorf("%s: %w", path, ErrNotFound)
		}
		return Blob{}, fmt.Errorf("%w: Stat(%q): %w", ErrUnavailable, path, err)
	}
	data, err := io.ReadAll(obj)
	if err != nil {
		return Blob{}, fmt.Errorf("%w: read %s: %w", ErrUnavailable, path, err)
	}
	return Blob{data, info.ETag}, nil
}

func (s *MinIO) Write(ctx context.Context, path string, data []byte, mode WriteMode, token string) error {
	path, err := cleanPath(path)
	if err != nil {
		return err
	}
	if path == "" {
		return fmt.Errorf("%w: empty path", ErrInvalidPath)
	}
	opts := minio.PutObjectOptions{ContentType: "application/octet-stream"}
	switch mode {
	case CreateOnly:
		opts.SetMatchETagExcept("*")
	case UpdateOnly:
		if token == "" {
			token = "*"
		}
		opts.SetMatchETag(token)
	default:
		return fmt.Errorf("unknown write mode %d", mode)
	}
	_, err = s.client.PutObject(ctx, s.bucket, path, bytes.NewReader(data), int64(len(data)), opts)
	if err != nil {
		return s.writeError(ctx, path, mode, err)
	}
	return nil
}

func (s *MinIO) writeError(ctx context.Context, path string, mode WriteMode, err error) error {
	resp := minio.ToErrorResponse(err)
	if mode == UpdateOnly && isNoSuchKey(err) {
		return fmt.Errorf("%s: %w", path, ErrNotFound)
	}
	if resp.Code != minio.PreconditionFailed && resp.StatusCode != http.StatusPreconditionFailed {
		return fmt.Errorf("%w: PutObject(%q): %w", ErrUnavailable, path, err)
	}
	if mode == CreateOnly {
		return fmt.Errorf("%s: %w", path, ErrConflict)
	}
	// A failed If-Match means either changed or gone.
	if _, serr := s.stat(ctx, path); errors.Is(serr, ErrNotFound) {
		return fmt.Errorf("%s: %w", path, ErrNotFound)
	}
	return fmt.Errorf("%s: stale etag: %w", path, ErrConflict)
}

func (s *MinIO) Delete(ctx context.Context, path string) error {
	path, err := cleanPath(path)
	if err != nil {
		return err
	}
	// RemoveObject succeeds on missing keys and takes no precondition,
	// so a racing delete of the same key can also succeed.
	if _, err := s.stat(ctx, path); err != nil {
		return err
	}
	if err := s.client.RemoveObject(ctx, s.bucket, path, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("%w: RemoveObject(%q): %w", ErrUnavailable, path, err)
	}
	return nil
}
