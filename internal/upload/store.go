package upload

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/memblob"
	"gocloud.dev/gcerrors"

	"github.com/frahmantamala/procurement-workflow/internal"
)

// PublicPath is where stored blobs are served back from.
const PublicPath = "/api/v1/uploads/"

var ErrBlobNotFound = internal.NewNotFoundError("file not found", internal.ErrCodeUploadNotFound)

// Store keeps cost proof files in a gocloud bucket (local directory, memory, or any cloud driver linked in).
type Store struct {
	bucket  *blob.Bucket
	baseURL string
}

// OpenStore opens bucketURL, creating the directory first for file:// buckets.
func OpenStore(ctx context.Context, bucketURL, baseURL string) (*Store, error) {
	u, err := url.Parse(bucketURL)
	if err != nil {
		return nil, fmt.Errorf("parse bucket url: %w", err)
	}
	if u.Scheme == "file" {
		if err := os.MkdirAll(u.Path, 0o755); err != nil {
			return nil, fmt.Errorf("create upload dir: %w", err)
		}
	}

	bucket, err := blob.OpenBucket(ctx, bucketURL)
	if err != nil {
		return nil, fmt.Errorf("open bucket %s: %w", bucketURL, err)
	}
	return NewStore(bucket, baseURL), nil
}

func NewStore(bucket *blob.Bucket, baseURL string) *Store {
	return &Store{bucket: bucket, baseURL: strings.TrimRight(baseURL, "/")}
}

// Put writes data under key and returns the URL the file is served from.
func (s *Store) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	opts := &blob.WriterOptions{ContentType: contentType}
	if err := s.bucket.WriteAll(ctx, key, data, opts); err != nil {
		return "", internal.NewUpstreamError(fmt.Errorf("write blob %s: %w", key, err))
	}
	return s.baseURL + PublicPath + key, nil
}

// Object is an open blob. Callers must Close it.
type Object struct {
	io.ReadCloser
	ContentType string
	Size        int64
}

func (s *Store) Open(ctx context.Context, key string) (*Object, error) {
	r, err := s.bucket.NewReader(ctx, key, nil)
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return nil, ErrBlobNotFound
		}
		return nil, internal.NewUpstreamError(fmt.Errorf("open blob %s: %w", key, err))
	}
	return &Object{ReadCloser: r, ContentType: r.ContentType(), Size: r.Size()}, nil
}

func (s *Store) Close() error {
	return s.bucket.Close()
}
