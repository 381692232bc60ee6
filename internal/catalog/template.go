package catalog

import (
	"github.com/kode4food/swfcatalog/pkg/api"
)

// ExperimentalTag marks every generated template
const ExperimentalTag = "experimental"

// NewTemplateEntity projects a workflow into a scaffolder template. Every
// provenance annotation points at the runtime's base URL; params may be nil
func NewTemplateEntity(
	baseURL, owner string, item *api.WorkflowItem,
	params *api.TemplateParameters,
) *api.TemplateEntity {
	id := string(item.ID)
	source := baseURL + "/management/processes/" + id + "/source"
	return &api.TemplateEntity{
		APIVersion: api.TemplateAPIVersion,
		Kind:       api.TemplateKind,
		Metadata: api.TemplateMetadata{
			Name:        id,
			Title:       item.Name,
			Description: item.Description,
			Tags:        []string{ExperimentalTag, api.WorkflowType},
			Annotations: map[string]string{
				api.AnnotationManagedByLocation:       "url:" + baseURL,
				api.AnnotationManagedByOriginLocation: "url:" + baseURL,
				api.AnnotationSourceLocation:          "url:" + source,
				api.AnnotationViewURL:                 source,
			},
		},
		Spec: api.TemplateSpec{
			Owner:      owner,
			Type:       api.WorkflowType,
			Steps:      []any{},
			Parameters: params,
		},
	}
}
