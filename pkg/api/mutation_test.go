package api_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kode4food/swfcatalog/pkg/api"
)

func TestMutationNames(t *testing.T) {
	m := &api.Mutation{
		Type: api.MutationTypeFull,
		Entities: []*api.DeferredEntity{
			{Entity: &api.TemplateEntity{
				Metadata: api.TemplateMetadata{Name: "swf1"},
			}},
			nil,
			{Entity: nil},
			{Entity: &api.TemplateEntity{
				Metadata: api.TemplateMetadata{Name: "swf2"},
			}},
		},
	}
	assert.Equal(t, []string{"swf1", "swf2"}, m.Names())
}

func TestMutationNamesEmpty(t *testing.T) {
	m := &api.Mutation{Type: api.MutationTypeFull}
	assert.Empty(t, m.Names())
	assert.NotNil(t, m.Names())
}
