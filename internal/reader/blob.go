package reader

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"

	"gocloud.dev/blob"
	"gocloud.dev/gcerrors"
)

// BlobReader reads content from a bucket. The URL's host and path, joined
// and appended to the configured prefix, name the blob key
type BlobReader struct {
	bucket *blob.Bucket
	prefix string
}

var ErrBlobNotFound = errors.New("blob not found")

var _ Reader = (*BlobReader)(nil)

// NewBlobReader creates a reader over an opened bucket
func NewBlobReader(bucket *blob.Bucket, prefix string) *BlobReader {
	return &BlobReader{
		bucket: bucket,
		prefix: prefix,
	}
}

// ReadURL reads the blob addressed by rawURL
func (r *BlobReader) ReadURL(
	ctx context.Context, rawURL string,
) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURL, rawURL)
	}
	key := r.prefix + strings.TrimPrefix(path.Join(u.Host, u.Path), "/")
	data, err := r.bucket.ReadAll(ctx, key)
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return nil, fmt.Errorf("%w: %s", ErrBlobNotFound, key)
		}
		return nil, err
	}
	return data, nil
}
