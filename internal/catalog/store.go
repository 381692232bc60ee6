package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"slices"

	"github.com/redis/go-redis/v9"

	"github.com/kode4food/swfcatalog/pkg/api"
)

// RedisStore holds the latest full snapshot submitted by each provider.
// Applying a snapshot replaces the provider's previous one atomically
type RedisStore struct {
	client *redis.Client
	prefix string
}

var ErrRedisClientRequired = errors.New("redis client is required")

var _ Sink = (*RedisStore)(nil)

// NewRedisStore creates a store whose keys begin with prefix
func NewRedisStore(client *redis.Client, prefix string) (*RedisStore, error) {
	if client == nil {
		return nil, ErrRedisClientRequired
	}
	return &RedisStore{
		client: client,
		prefix: prefix,
	}, nil
}

// Apply replaces the provider's stored snapshot with the mutation's
// entities
func (s *RedisStore) Apply(
	ctx context.Context, provider string, m *api.Mutation,
) error {
	if m == nil {
		return ErrMutationRequired
	}
	entities := m.Entities
	if entities == nil {
		entities = []*api.DeferredEntity{}
	}
	data, err := json.Marshal(entities)
	if err != nil {
		return err
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.providerKey(provider), data, 0)
		pipe.SAdd(ctx, s.providersKey(), provider)
		return nil
	})
	return err
}

// Entities returns the provider's stored snapshot in submission order. A
// provider that never submitted anything has no entities
func (s *RedisStore) Entities(
	ctx context.Context, provider string,
) ([]*api.DeferredEntity, error) {
	data, err := s.client.Get(ctx, s.providerKey(provider)).Bytes()
	if errors.Is(err, redis.Nil) {
		return []*api.DeferredEntity{}, nil
	}
	if err != nil {
		return nil, err
	}

	var res []*api.DeferredEntity
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, err
	}
	return res, nil
}

// Providers returns the names of every provider with a stored snapshot
func (s *RedisStore) Providers(ctx context.Context) ([]string, error) {
	names, err := s.client.SMembers(ctx, s.providersKey()).Result()
	if err != nil {
		return nil, err
	}
	slices.Sort(names)
	return names, nil
}

// Ping checks that Redis is reachable
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) providerKey(provider string) string {
	return s.prefix + ":provider:" + provider
}

func (s *RedisStore) providersKey() string {
	return s.prefix + ":providers"
}
