package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"rpucella.net/red-drive/internal/logger"
	"rpucella.net/red-drive/internal/util"
)

// Examples mostly culled from
//   https://github.com/GoogleCloudPlatform/golang-samples/tree/main/storage

// GoogleCloud stores blobs as objects of one bucket. Tokens are object
// generations, so updates are conditional on GenerationMatch.
type GoogleCloud struct {
	bucket string
	client *storage.Client
	log    *logrus.Entry
}

func NewGoogleCloud(ctx context.Context, bucket string, opts ...option.ClientOption) (*GoogleCloud, error) {
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: storage.NewClient: %w", ErrUnavailable, err)
	}
	return &GoogleCloud{bucket, client, logger.For("storage.gcs")}, nil
}

func (s *GoogleCloud) Name() string {
	return fmt.Sprintf("gcs::%s", s.bucket)
}

func (s *GoogleCloud) Close() error {
	return s.client.Close()
}

func (s *GoogleCloud) List(ctx context.Context, prefix string) ([]Entry, error) {
	prefix, err := cleanPath(prefix)
	if err != nil {
		return nil, err
	}
	query := &storage.Query{Delimiter: "/"}
	if prefix != "" {
		query.Prefix = prefix + "/"
	}
	var entries []Entry
	it := s.client.Bucket(s.bucket).Objects(ctx, query)
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: Bucket(%q).Objects: %w", ErrUnavailable, s.bucket, err)
		}
		if attrs.Prefix != "" {
			name := strings.TrimSuffix(strings.TrimPrefix(attrs.Prefix, query.Prefix), "/")
			entries = append(entries, Entry{name, true})
			continue
		}
		entries = append(entries, Entry{strings.TrimPrefix(attrs.Name, query.Prefix), false})
	}
	return entries, nil
}

func (s *GoogleCloud) Read(ctx context.Context, path string) (Blob, error) {
	path, err := cleanPath(path)
	if err != nil {
		return Blob{}, err
	}
	rc, err := s.client.Bucket(s.bucket).Object(path).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return Blob{}, fmt.Errorf("%s: %w", path, ErrNotFound)
	}
	if err != nil {
		return Blob{}, fmt.Errorf("%w: Object(%q).NewReader: %w", ErrUnavailable, path, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return Blob{}, fmt.Errorf("%w: io.ReadAll: %w", ErrUnavailable, err)
	}
	return Blob{data, strconv.FormatInt(rc.Attrs.Generation, 10)}, nil
}

func (s *GoogleCloud) Write(ctx context.Context, path string, data []byte, mode WriteMode, token string) error {
	path, err := cleanPath(path)
	if err != nil {
		return err
	}
	if path == "" {
		return fmt.Errorf("%w: empty path", ErrInvalidPath)
	}
	obj := s.client.Bucket(s.bucket).Object(path)
	var cond storage.Conditions
	switch mode {
	case CreateOnly:
		cond.DoesNotExist = true
	case UpdateOnly:
		if token == "" {
			attrs, err := obj.Attrs(ctx)
			if errors.Is(err, storage.ErrObjectNotExist) {
				return fmt.Errorf("%s: %w", path, ErrNotFound)
			}
			if err != nil {
				return fmt.Errorf("%w: Object(%q).Attrs: %w", ErrUnavailable, path, err)
			}
			token = strconv.FormatInt(attrs.Generation, 10)
		}
		gen, err := strconv.ParseInt(token, 10, 64)
		if err != nil {
			return fmt.Errorf("%s: bad generation token %q: %w", path, token, ErrConflict)
		}
		cond.GenerationMatch = gen
	default:
		return fmt.Errorf("unknown write mode %d", mode)
	}

	s.log.WithFields(logrus.Fields{"object": path, "mode": mode}).Debug("writing object")
	wc := obj.If(cond).NewWriter(ctx)
	crcw := util.NewCRCwriter(wc)
	if _, err := crcw.Write(data); err != nil {
		wc.Close()
		return s.writeError(ctx, obj, path, mode, err)
	}
	if err := wc.Close(); err != nil {
		return s.writeError(ctx, obj, path, mode, err)
	}
	if crc32c := crcw.Sum(); crc32c != wc.Attrs().CRC32C {
		return fmt.Errorf("%w: crc32c of %s is %x, expected %x", ErrUnavailable, path, wc.Attrs().CRC32C, crc32c)
	}
	return nil
}

func (s *GoogleCloud) writeError(ctx context.Context, obj *storage.ObjectHandle, path string, mode WriteMode, err error) error {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) || gerr.Code != http.StatusPreconditionFailed {
		return fmt.Errorf("%w: Writer.Close(%q): %w", ErrUnavailable, path, err)
	}
	if mode == CreateOnly {
		return fmt.Errorf("%s: %w", path, ErrConflict)
	}
	// A failed GenerationMatch means either changed or gone.
	if _, aerr := obj.Attrs(ctx); errors.Is(aerr, storage.ErrObjectNotExist) {
		return fmt.Errorf("%s: %w", path, ErrNotFound)
	}
	return fmt.Errorf("%s: stale generation: %w", path, ErrConflict)
}

func (s *GoogleCloud) Delete(ctx context.Context, path string) error {
	path, err := cleanPath(path)
	if err != nil {
		return err
	}
	err = s.client.Bucket(s.bucket).Object(path).Delete(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("%s: %w", path, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("%w: Object(%q).Delete: %w", ErrUnavailable, path, err)
	}
	return nil
}
