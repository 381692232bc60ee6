package catalog_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kode4food/swfcatalog/internal/catalog"
	"github.com/kode4food/swfcatalog/internal/events"
	"github.com/kode4food/swfcatalog/pkg/api"
)

type (
	sinkFunc func(context.Context, string, *api.Mutation) error

	eventCollector struct {
		received chan *api.EventParams
	}
)

const testProvider = "ServerlessWorkflowEntityProvider:development"

func TestConnectionFansOut(t *testing.T) {
	var calls []string
	record := func(name string) catalog.Sink {
		return sinkFunc(func(
			_ context.Context, provider string, _ *api.Mutation,
		) error {
			assert.Equal(t, testProvider, provider)
			calls = append(calls, name)
			return nil
		})
	}

	conn := catalog.Connect(testProvider, record("store"), record("notify"))
	err := conn.ApplyMutation(context.Background(), testMutation("swf1"))
	assert.NoError(t, err)
	assert.Equal(t, []string{"store", "notify"}, calls)
}

func TestConnectionStopsAtFirstFailure(t *testing.T) {
	boom := errors.New("boom")
	called := false
	conn := catalog.Connect(testProvider,
		sinkFunc(func(context.Context, string, *api.Mutation) error {
			return boom
		}),
		sinkFunc(func(context.Context, string, *api.Mutation) error {
			called = true
			return nil
		}),
	)

	err := conn.ApplyMutation(context.Background(), testMutation("swf1"))
	assert.ErrorIs(t, err, boom)
	assert.False(t, called)
}

func TestConnectionRejectsInvalidMutations(t *testing.T) {
	conn := catalog.Connect(testProvider)
	ctx := context.Background()

	assert.ErrorIs(t,
		conn.ApplyMutation(ctx, nil), catalog.ErrMutationRequired,
	)
	assert.ErrorIs(t,
		conn.ApplyMutation(ctx, &api.Mutation{Type: "delta"}),
		catalog.ErrUnsupportedMutation,
	)
}

func TestRedisStoreReplacesSnapshot(t *testing.T) {
	store := newRedisStore(t)
	ctx := context.Background()

	entities, err := store.Entities(ctx, testProvider)
	assert.NoError(t, err)
	assert.Empty(t, entities)

	require.NoError(t,
		store.Apply(ctx, testProvider, testMutation("swf1", "swf2")),
	)
	entities, err = store.Entities(ctx, testProvider)
	assert.NoError(t, err)
	assert.Equal(t, []string{"swf1", "swf2"}, entityNames(entities))
	assert.Equal(t, "swf-provider:development", entities[0].LocationKey)

	require.NoError(t, store.Apply(ctx, testProvider, testMutation("swf3")))
	entities, err = store.Entities(ctx, testProvider)
	assert.NoError(t, err)
	assert.Equal(t, []string{"swf3"}, entityNames(entities))

	require.NoError(t, store.Apply(ctx, testProvider, testMutation()))
	entities, err = store.Entities(ctx, testProvider)
	assert.NoError(t, err)
	assert.Empty(t, entities)
}

func TestRedisStoreProviders(t *testing.T) {
	store := newRedisStore(t)
	ctx := context.Background()

	require.NoError(t, store.Apply(ctx, "b-provider", testMutation("x")))
	require.NoError(t, store.Apply(ctx, "a-provider", testMutation("y")))
	require.NoError(t, store.Apply(ctx, "b-provider", testMutation("z")))

	names, err := store.Providers(ctx)
	assert.NoError(t, err)
	assert.Equal(t, []string{"a-provider", "b-provider"}, names)
	assert.NoError(t, store.Ping(ctx))
}

func TestRedisStoreErrors(t *testing.T) {
	_, err := catalog.NewRedisStore(nil, "swf-catalog")
	assert.ErrorIs(t, err, catalog.ErrRedisClientRequired)

	store := newRedisStore(t)
	assert.ErrorIs(t,
		store.Apply(context.Background(), testProvider, nil),
		catalog.ErrMutationRequired,
	)
}

func TestNotifierPublishes(t *testing.T) {
	broker := events.NewBroker(nil)
	broker.Start()
	defer broker.Stop()

	collector := &eventCollector{received: make(chan *api.EventParams, 1)}
	broker.Subscribe(collector)

	n, err := catalog.NewNotifier(broker)
	require.NoError(t, err)

	m := testMutation("swf1", "swf2")
	require.NoError(t, n.Apply(context.Background(), testProvider, m))

	var ev *api.EventParams
	select {
	case ev = <-collector.received:
	case <-time.After(time.Second):
		t.Fatal("snapshot event was not published")
	}

	var applied api.SnapshotAppliedEvent
	require.NoError(t, json.Unmarshal(ev.Payload, &applied))
	assert.Equal(t, testProvider, applied.Provider)
	assert.Equal(t, m.ID, applied.MutationID)
	assert.Equal(t, 2, applied.Count)
	assert.Equal(t, []string{"swf1", "swf2"}, applied.Names)
	assert.Positive(t, applied.Timestamp)
}

func TestNotifierErrors(t *testing.T) {
	_, err := catalog.NewNotifier(nil)
	assert.ErrorIs(t, err, catalog.ErrPublisherRequired)

	broker := events.NewBroker(nil)
	n, err := catalog.NewNotifier(broker)
	require.NoError(t, err)
	assert.ErrorIs(t,
		n.Apply(context.Background(), testProvider, nil),
		catalog.ErrMutationRequired,
	)
}

func newRedisStore(t *testing.T) *catalog.RedisStore {
	t.Helper()
	server, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(server.Close)

	client := redis.NewClient(&redis.Options{
		Addr:            server.Addr(),
		Protocol:        2,
		DisableIdentity: true,
	})
	t.Cleanup(func() { _ = client.Close() })

	store, err := catalog.NewRedisStore(client, "swf-catalog")
	require.NoError(t, err)
	return store
}

func testMutation(names ...string) *api.Mutation {
	m := &api.Mutation{
		ID:       "mutation-" + time.Now().Format(time.RFC3339Nano),
		Type:     api.MutationTypeFull,
		Entities: []*api.DeferredEntity{},
	}
	for _, name := range names {
		m.Entities = append(m.Entities, &api.DeferredEntity{
			Entity: catalog.NewTemplateEntity(
				"http://localhost:8899", "infrastructure",
				&api.WorkflowItem{ID: api.WorkflowID(name), Name: name}, nil,
			),
			LocationKey: "swf-provider:development",
		})
	}
	return m
}

func entityNames(entities []*api.DeferredEntity) []string {
	res := make([]string, 0, len(entities))
	for _, e := range entities {
		res = append(res, e.Entity.Metadata.Name)
	}
	return res
}

func (f sinkFunc) Apply(
	ctx context.Context, provider string, m *api.Mutation,
) error {
	return f(ctx, provider, m)
}

func (c *eventCollector) SupportsEventTopics() []string {
	return []string{api.CatalogTopic}
}

func (c *eventCollector) OnEvent(
	_ context.Context, ev *api.EventParams,
) error {
	c.received <- ev
	return nil
}
