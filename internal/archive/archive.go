package archive

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"gocloud.dev/blob"
	"gocloud.dev/gcerrors"

	"github.com/kode4food/swfcatalog/pkg/api"

	_ "gocloud.dev/blob/azureblob"
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/gcsblob"
	_ "gocloud.dev/blob/memblob"
	_ "gocloud.dev/blob/s3blob"
)

type (
	// Archiver writes every applied snapshot to a bucket, one object per
	// provider holding that provider's most recent snapshot
	Archiver struct {
		bucket *blob.Bucket
		prefix string
		now    func() time.Time
	}

	// Record is the archived form of a snapshot
	Record struct {
		Provider   string                `json:"provider"`
		MutationID string                `json:"mutation_id"`
		ArchivedAt time.Time             `json:"archived_at"`
		Entities   []*api.DeferredEntity `json:"entities"`
	}
)

var (
	ErrBucketRequired   = errors.New("bucket is required")
	ErrMutationRequired = errors.New("mutation is required")
	ErrRecordNotFound   = errors.New("archive record not found")
)

// Open opens the bucket at bucketURL. S3, GCS, Azure Blob Storage,
// local file, and in-memory buckets are supported
func Open(ctx context.Context, bucketURL, prefix string) (*Archiver, error) {
	bucket, err := blob.OpenBucket(ctx, bucketURL)
	if err != nil {
		return nil, err
	}
	return New(bucket, prefix)
}

// New creates an archiver over an opened bucket
func New(bucket *blob.Bucket, prefix string) (*Archiver, error) {
	if bucket == nil {
		return nil, ErrBucketRequired
	}
	return &Archiver{
		bucket: bucket,
		prefix: normalizePrefix(prefix),
		now:    time.Now,
	}, nil
}

// Apply archives the mutation as the provider's latest snapshot
func (a *Archiver) Apply(
	ctx context.Context, provider string, m *api.Mutation,
) error {
	if m == nil {
		return ErrMutationRequired
	}
	entities := m.Entities
	if entities == nil {
		entities = []*api.DeferredEntity{}
	}
	data, err := json.Marshal(&Record{
		Provider:   provider,
		MutationID: m.ID,
		ArchivedAt: a.now().UTC(),
		Entities:   entities,
	})
	if err != nil {
		return err
	}
	return a.bucket.WriteAll(ctx, a.keyFor(provider), data, &blob.WriterOptions{
		ContentType: "application/json",
	})
}

// Get reads the provider's latest archived snapshot
func (a *Archiver) Get(ctx context.Context, provider string) (*Record, error) {
	data, err := a.bucket.ReadAll(ctx, a.keyFor(provider))
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Entities returns the entities of the provider's latest archived
// snapshot, or an empty list when nothing has been archived yet
func (a *Archiver) Entities(
	ctx context.Context, provider string,
) ([]*api.DeferredEntity, error) {
	rec, err := a.Get(ctx, provider)
	if errors.Is(err, ErrRecordNotFound) {
		return []*api.DeferredEntity{}, nil
	}
	if err != nil {
		return nil, err
	}
	return rec.Entities, nil
}

func (a *Archiver) Close() error {
	return a.bucket.Close()
}

func (a *Archiver) keyFor(provider string) string {
	return a.prefix + provider + ".json"
}

func normalizePrefix(prefix string) string {
	if prefix == "" || strings.HasSuffix(prefix, "/") {
		return prefix
	}
	return prefix + "/"
}
