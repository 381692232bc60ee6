package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/kode4food/swfcatalog/pkg/api"
)

type (
	// Sink receives every mutation a provider submits
	Sink interface {
		Apply(ctx context.Context, provider string, m *api.Mutation) error
	}

	// Connection applies a provider's mutations to a series of sinks
	Connection struct {
		provider string
		sinks    []Sink
	}
)

var (
	ErrMutationRequired    = errors.New("mutation is required")
	ErrUnsupportedMutation = errors.New("unsupported mutation type")
)

var _ api.EntityProviderConnection = (*Connection)(nil)

// Connect creates a connection that applies the named provider's mutations
// to each sink in order
func Connect(provider string, sinks ...Sink) *Connection {
	return &Connection{
		provider: provider,
		sinks:    sinks,
	}
}

// ApplyMutation hands m to every sink in order, stopping at the first sink
// that fails
func (c *Connection) ApplyMutation(ctx context.Context, m *api.Mutation) error {
	if m == nil {
		return ErrMutationRequired
	}
	if m.Type != api.MutationTypeFull {
		return fmt.Errorf("%w: %s", ErrUnsupportedMutation, m.Type)
	}
	for _, s := range c.sinks {
		if err := s.Apply(ctx, c.provider, m); err != nil {
			return err
		}
	}
	return nil
}
