package openapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"gopkg.in/yaml.v3"

	"github.com/kode4food/swfcatalog/pkg/api"
)

// Document is a parsed interface description published by a workflow
// runtime. Each top-level tag names one workflow and the POST operation on
// /<workflow id> carries its input schema
type Document struct {
	doc        *openapi3.T
	resolveErr error
}

// ParametersTitle is the title given to every generated parameter block
const ParametersTitle = "Fill in some input parameters"

const (
	jsonContentType   = "application/json"
	schemaRefPrefix   = "#/components/schemas/"
	requestBodyPrefix = "#/components/requestBodies/"
	maxRefDepth       = 32
)

var (
	ErrParse           = errors.New("malformed OpenAPI document")
	ErrNoPaths         = errors.New("interface description has no paths")
	ErrPathNotFound    = errors.New("workflow path not found")
	ErrNoPostOperation = errors.New("workflow path has no POST operation")
	ErrNoRequestBody   = errors.New("workflow operation has no request body")
	ErrNoJSONContent   = errors.New("request body has no JSON content")
	ErrNoSchema        = errors.New("JSON content has no schema")
	ErrUnresolvedRef   = errors.New("unresolved schema reference")
	ErrNoDocument      = errors.New("interface description is not a mapping")
)

// Parse reads a YAML or JSON interface description. References are
// resolved where possible; a dangling reference only affects the
// workflows that use it, and is reported by ResolveError
func Parse(data []byte) (*Document, error) {
	raw, err := toJSON(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParse, err)
	}
	doc := &openapi3.T{}
	if err := doc.UnmarshalJSON(raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParse, err)
	}
	loader := openapi3.NewLoader()
	return &Document{
		doc:        doc,
		resolveErr: loader.ResolveRefsIn(doc, nil),
	}, nil
}

// ResolveError returns the first reference the loader could not resolve,
// or nil when the document is fully resolved
func (d *Document) ResolveError() error {
	return d.resolveErr
}

// Workflows returns one summary per named tag in document order. When a
// name repeats, the later tag's fields replace the earlier ones in place
func (d *Document) Workflows() []*api.WorkflowItem {
	var res []*api.WorkflowItem
	seen := map[api.WorkflowID]int{}
	for _, tag := range d.doc.Tags {
		if tag == nil || tag.Name == "" {
			continue
		}
		item := &api.WorkflowItem{
			ID:          api.WorkflowID(tag.Name),
			Name:        tag.Name,
			Description: tag.Description,
		}
		if idx, ok := seen[item.ID]; ok {
			res[idx] = item
			continue
		}
		seen[item.ID] = len(res)
		res = append(res, item)
	}
	return res
}

// RequestSchema resolves the JSON request body schema of the workflow's
// POST operation. Each missing step of the lookup is reported by its own
// error
func (d *Document) RequestSchema(id api.WorkflowID) (*openapi3.Schema, error) {
	path := "/" + string(id)
	if d.doc.Paths == nil || d.doc.Paths.Len() == 0 {
		return nil, ErrNoPaths
	}
	item := d.doc.Paths.Value(path)
	if item == nil {
		return nil, fmt.Errorf("%w: %s", ErrPathNotFound, path)
	}
	if item.Post == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoPostOperation, path)
	}
	body, err := d.requestBody(item.Post.RequestBody)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", err, path)
	}
	media := body.Content.Get(jsonContentType)
	if media == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoJSONContent, path)
	}
	schema, err := d.resolveSchema(media.Schema)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", err, path)
	}
	return d.resolveProperties(schema), nil
}

// Parameters projects a request schema into a template parameter block.
// Property schemas are rendered as plain JSON-schema values, with
// top-level references inlined
func Parameters(schema *openapi3.Schema) (*api.TemplateParameters, error) {
	if schema == nil {
		return nil, ErrNoSchema
	}
	res := &api.TemplateParameters{
		Title:    ParametersTitle,
		Required: slices.Clone(schema.Required),
	}
	if len(schema.Properties) == 0 {
		return res, nil
	}

	res.Properties = make(map[string]any, len(schema.Properties))
	for name, prop := range schema.Properties {
		value, err := schemaValue(prop)
		if err != nil {
			return nil, fmt.Errorf("property %q: %w", name, err)
		}
		res.Properties[name] = value
	}
	return res, nil
}

// Title returns the document's info title, if any
func (d *Document) Title() string {
	if d.doc.Info == nil {
		return ""
	}
	return d.doc.Info.Title
}

func (d *Document) requestBody(
	ref *openapi3.RequestBodyRef,
) (*openapi3.RequestBody, error) {
	switch {
	case ref == nil:
		return nil, ErrNoRequestBody
	case ref.Value != nil:
		return ref.Value, nil
	case ref.Ref == "":
		return nil, ErrNoRequestBody
	}
	name, ok := strings.CutPrefix(ref.Ref, requestBodyPrefix)
	if ok && d.doc.Components != nil {
		if body := d.doc.Components.RequestBodies[name]; body != nil {
			if body.Value != nil {
				return body.Value, nil
			}
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnresolvedRef, ref.Ref)
}

func (d *Document) resolveSchema(
	ref *openapi3.SchemaRef,
) (*openapi3.Schema, error) {
	if ref == nil || (ref.Value == nil && ref.Ref == "") {
		return nil, ErrNoSchema
	}
	for range maxRefDepth {
		if ref.Value != nil {
			return ref.Value, nil
		}
		name, ok := strings.CutPrefix(ref.Ref, schemaRefPrefix)
		if !ok || d.doc.Components == nil {
			break
		}
		next := d.doc.Components.Schemas[name]
		if next == nil {
			break
		}
		ref = next
	}
	return nil, fmt.Errorf("%w: %q", ErrUnresolvedRef, ref.Ref)
}

// resolveProperties fills in top-level property references the loader
// left unresolved. The document's own schema is never modified
func (d *Document) resolveProperties(s *openapi3.Schema) *openapi3.Schema {
	var props openapi3.Schemas
	for name, prop := range s.Properties {
		if prop == nil || prop.Value != nil || prop.Ref == "" {
			continue
		}
		value, err := d.resolveSchema(prop)
		if err != nil {
			continue
		}
		if props == nil {
			props = maps.Clone(s.Properties)
		}
		props[name] = &openapi3.SchemaRef{Ref: prop.Ref, Value: value}
	}
	if props == nil {
		return s
	}
	res := *s
	res.Properties = props
	return &res
}

// toJSON converts a YAML (or JSON) document into JSON, stringifying
// non-string mapping keys such as bare response codes
func toJSON(data []byte) ([]byte, error) {
	var root any
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, err
	}
	if _, ok := root.(map[string]any); !ok {
		return nil, ErrNoDocument
	}
	return json.Marshal(normalize(root))
}

func normalize(v any) any {
	switch v := v.(type) {
	case map[string]any:
		for k, e := range v {
			v[k] = normalize(e)
		}
		return v
	case map[any]any:
		res := make(map[string]any, len(v))
		for k, e := range v {
			res[fmt.Sprint(k)] = normalize(e)
		}
		return res
	case []any:
		for i, e := range v {
			v[i] = normalize(e)
		}
		return v
	default:
		return v
	}
}

func schemaValue(ref *openapi3.SchemaRef) (any, error) {
	var data []byte
	var err error
	switch {
	case ref == nil:
		return map[string]any{}, nil
	case ref.Value != nil:
		data, err = json.Marshal(ref.Value)
	default:
		data, err = json.Marshal(ref)
	}
	if err != nil {
		return nil, err
	}
	var res any
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, err
	}
	return res, nil
}
