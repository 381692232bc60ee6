package api

type (
	// TemplateEntity is a scaffolder template generated from a workflow
	TemplateEntity struct {
		APIVersion string           `json:"apiVersion" yaml:"apiVersion"`
		Kind       string           `json:"kind" yaml:"kind"`
		Metadata   TemplateMetadata `json:"metadata" yaml:"metadata"`
		Spec       TemplateSpec     `json:"spec" yaml:"spec"`
	}

	// TemplateMetadata holds the identity and descriptive fields of a template
	TemplateMetadata struct {
		Name        string            `json:"name" yaml:"name"`
		Title       string            `json:"title,omitempty" yaml:"title,omitempty"`
		Description string            `json:"description,omitempty" yaml:"description,omitempty"`
		Tags        []string          `json:"tags,omitempty" yaml:"tags,omitempty"`
		Annotations map[string]string `json:"annotations,omitempty" yaml:"annotations,omitempty"`
	}

	// TemplateSpec describes ownership, type, and input parameters
	TemplateSpec struct {
		Owner      string              `json:"owner" yaml:"owner"`
		Type       string              `json:"type" yaml:"type"`
		Steps      []any               `json:"steps" yaml:"steps"`
		Parameters *TemplateParameters `json:"parameters,omitempty" yaml:"parameters,omitempty"`
	}

	// TemplateParameters is the input form derived from a request schema
	TemplateParameters struct {
		Title      string         `json:"title" yaml:"title"`
		Required   []string       `json:"required,omitempty" yaml:"required,omitempty"`
		Properties map[string]any `json:"properties,omitempty" yaml:"properties,omitempty"`
	}
)

const (
	TemplateAPIVersion = "scaffolder.backstage.io/v1beta3"
	TemplateKind       = "Template"

	AnnotationManagedByLocation       = "backstage.io/managed-by-location"
	AnnotationManagedByOriginLocation = "backstage.io/managed-by-origin-location"
	AnnotationSourceLocation          = "backstage.io/source-location"
	AnnotationViewURL                 = "backstage.io/view-url"
)
