package archive_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocloud.dev/blob/memblob"

	"github.com/kode4food/swfcatalog/internal/archive"
	"github.com/kode4food/swfcatalog/pkg/api"
)

const testProvider = "ServerlessWorkflowEntityProvider:development"

func TestArchiver(t *testing.T) {
	ctx := context.Background()

	a, err := archive.Open(ctx, "mem://", "snapshots/")
	require.NoError(t, err)
	defer func() { _ = a.Close() }()

	t.Run("get_missing", func(t *testing.T) {
		_, err := a.Get(ctx, testProvider)
		assert.ErrorIs(t, err, archive.ErrRecordNotFound)

		entities, err := a.Entities(ctx, testProvider)
		assert.NoError(t, err)
		assert.NotNil(t, entities)
		assert.Empty(t, entities)
	})

	t.Run("apply_and_get", func(t *testing.T) {
		m := &api.Mutation{
			ID:   "m-1",
			Type: api.MutationTypeFull,
			Entities: []*api.DeferredEntity{
				{
					Entity: &api.TemplateEntity{
						APIVersion: api.TemplateAPIVersion,
						Kind:       api.TemplateKind,
						Metadata:   api.TemplateMetadata{Name: "swf1"},
					},
					LocationKey: "swf-provider:development",
				},
			},
		}
		require.NoError(t, a.Apply(ctx, testProvider, m))

		rec, err := a.Get(ctx, testProvider)
		require.NoError(t, err)
		assert.Equal(t, testProvider, rec.Provider)
		assert.Equal(t, "m-1", rec.MutationID)
		assert.False(t, rec.ArchivedAt.IsZero())
		require.Len(t, rec.Entities, 1)
		assert.Equal(t, "swf1", rec.Entities[0].Entity.Metadata.Name)

		entities, err := a.Entities(ctx, testProvider)
		require.NoError(t, err)
		require.Len(t, entities, 1)
		assert.Equal(t, "swf-provider:development", entities[0].LocationKey)
	})

	t.Run("apply_replaces", func(t *testing.T) {
		m := &api.Mutation{ID: "m-2", Type: api.MutationTypeFull}
		require.NoError(t, a.Apply(ctx, testProvider, m))

		rec, err := a.Get(ctx, testProvider)
		require.NoError(t, err)
		assert.Equal(t, "m-2", rec.MutationID)
		assert.NotNil(t, rec.Entities)
		assert.Empty(t, rec.Entities)
	})

	t.Run("nil_mutation", func(t *testing.T) {
		err := a.Apply(ctx, testProvider, nil)
		assert.ErrorIs(t, err, archive.ErrMutationRequired)
	})
}

func TestArchiverPrefix(t *testing.T) {
	ctx := context.Background()
	bucket := memblob.OpenBucket(nil)

	a, err := archive.New(bucket, "archive")
	require.NoError(t, err)
	defer func() { _ = a.Close() }()

	m := &api.Mutation{ID: "m-1", Type: api.MutationTypeFull}
	require.NoError(t, a.Apply(ctx, "provider", m))

	exists, err := bucket.Exists(ctx, "archive/provider.json")
	assert.NoError(t, err)
	assert.True(t, exists)
}

func TestNewRequiresBucket(t *testing.T) {
	_, err := archive.New(nil, "")
	assert.ErrorIs(t, err, archive.ErrBucketRequired)
}
