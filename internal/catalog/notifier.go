package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/kode4food/swfcatalog/pkg/api"
)

type (
	// Notifier announces every applied snapshot on the event bus
	Notifier struct {
		publisher Publisher
		now       func() time.Time
	}

	// Publisher accepts events for delivery
	Publisher interface {
		Publish(context.Context, *api.EventParams) error
	}
)

var ErrPublisherRequired = errors.New("publisher is required")

var _ Sink = (*Notifier)(nil)

// NewNotifier creates a sink that publishes snapshot events to p
func NewNotifier(p Publisher) (*Notifier, error) {
	if p == nil {
		return nil, ErrPublisherRequired
	}
	return &Notifier{
		publisher: p,
		now:       time.Now,
	}, nil
}

// Apply publishes a SnapshotAppliedEvent describing m
func (n *Notifier) Apply(
	ctx context.Context, provider string, m *api.Mutation,
) error {
	if m == nil {
		return ErrMutationRequired
	}
	payload, err := json.Marshal(&api.SnapshotAppliedEvent{
		Provider:   provider,
		MutationID: m.ID,
		Count:      len(m.Entities),
		Names:      m.Names(),
		Timestamp:  n.now().UnixMilli(),
	})
	if err != nil {
		return err
	}
	return n.publisher.Publish(ctx, &api.EventParams{
		Topic:   api.CatalogTopic,
		Payload: payload,
	})
}
