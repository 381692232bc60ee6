package api

import "context"

type (
	// EntityProviderConnection accepts mutations produced by a provider
	EntityProviderConnection interface {
		ApplyMutation(context.Context, *Mutation) error
	}

	// MutationType selects how a mutation is reconciled by the catalog
	MutationType string

	// Mutation is a batch of entities submitted to a provider connection
	Mutation struct {
		ID       string            `json:"id"`
		Type     MutationType      `json:"type"`
		Entities []*DeferredEntity `json:"entities"`
	}

	// DeferredEntity pairs an entity with the location that produced it
	DeferredEntity struct {
		Entity      *TemplateEntity `json:"entity"`
		LocationKey string          `json:"locationKey"`
	}
)

// MutationTypeFull replaces every entity previously provided
const MutationTypeFull MutationType = "full"

// Names returns the entity names in batch order
func (m *Mutation) Names() []string {
	res := make([]string, 0, len(m.Entities))
	for _, e := range m.Entities {
		if e == nil || e.Entity == nil {
			continue
		}
		res = append(res, e.Entity.Metadata.Name)
	}
	return res
}
