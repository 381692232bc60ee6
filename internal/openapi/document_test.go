package openapi_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kode4food/swfcatalog/internal/openapi"
	"github.com/kode4food/swfcatalog/pkg/api"
)

const helloWorldDescription = `
openapi: 3.0.3
info:
  title: serverless-workflow-greeting-quarkus API
  version: 1.0.0-SNAPSHOT
tags:
  - name: swf1
    description: JSON based hello world workflow
paths:
  /management/processes:
    get:
      responses:
        "200":
          description: OK
`

const greetingDescription = `
openapi: 3.0.3
info:
  title: greetings
  version: 1.0.0
tags:
  - name: greeting
    description: Greet someone by name
  - name: jsongreet
    description: First version
  - name: yamlgreet
  - name: jsongreet
    description: Second version
paths:
  /greeting:
    post:
      requestBody:
        content:
          application/json:
            schema:
              type: object
              required: [name]
              properties:
                name:
                  type: string
                  description: Who to greet
                language:
                  $ref: '#/components/schemas/Language'
      responses:
        "200":
          description: OK
  /jsongreet:
    get:
      responses:
        "200":
          description: OK
  /yamlgreet:
    post:
      requestBody:
        content:
          text/plain:
            schema:
              type: string
      responses:
        "200":
          description: OK
components:
  schemas:
    Language:
      type: string
      enum: [English, Spanish]
`

func TestParseFailure(t *testing.T) {
	_, err := openapi.Parse([]byte("tags: [unterminated"))
	assert.ErrorIs(t, err, openapi.ErrParse)
}

func TestWorkflows(t *testing.T) {
	doc, err := openapi.Parse([]byte(helloWorldDescription))
	require.NoError(t, err)

	items := doc.Workflows()
	require.Len(t, items, 1)
	assert.Equal(t, api.WorkflowID("swf1"), items[0].ID)
	assert.Equal(t, "swf1", items[0].Name)
	assert.Equal(t, "JSON based hello world workflow", items[0].Description)
	assert.Equal(t,
		"serverless-workflow-greeting-quarkus API", doc.Title(),
	)
}

func TestWorkflowsCollapseDuplicates(t *testing.T) {
	doc, err := openapi.Parse([]byte(greetingDescription))
	require.NoError(t, err)

	items := doc.Workflows()
	require.Len(t, items, 3)
	assert.Equal(t, api.WorkflowID("greeting"), items[0].ID)
	assert.Equal(t, api.WorkflowID("jsongreet"), items[1].ID)
	assert.Equal(t, "Second version", items[1].Description)
	assert.Equal(t, api.WorkflowID("yamlgreet"), items[2].ID)
	assert.Empty(t, items[2].Description)
}

func TestWorkflowsEmpty(t *testing.T) {
	doc, err := openapi.Parse([]byte("openapi: 3.0.3\ninfo:\n  title: x\n"))
	require.NoError(t, err)
	assert.Empty(t, doc.Workflows())
}

func TestRequestSchemaLookup(t *testing.T) {
	hello, err := openapi.Parse([]byte(helloWorldDescription))
	require.NoError(t, err)
	greet, err := openapi.Parse([]byte(greetingDescription))
	require.NoError(t, err)
	bare, err := openapi.Parse([]byte("openapi: 3.0.3\ninfo:\n  title: x\n"))
	require.NoError(t, err)

	tests := []struct {
		name     string
		doc      *openapi.Document
		id       api.WorkflowID
		expected error
	}{
		{name: "no_paths", doc: bare, id: "swf1", expected: openapi.ErrNoPaths},
		{
			name: "path_not_found", doc: hello, id: "swf1",
			expected: openapi.ErrPathNotFound,
		},
		{
			name: "no_post", doc: greet, id: "jsongreet",
			expected: openapi.ErrNoPostOperation,
		},
		{
			name: "no_json_content", doc: greet, id: "yamlgreet",
			expected: openapi.ErrNoJSONContent,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			schema, err := tt.doc.RequestSchema(tt.id)
			assert.ErrorIs(t, err, tt.expected)
			assert.Nil(t, schema)
		})
	}
}

func TestRequestSchemaMissingBody(t *testing.T) {
	doc, err := openapi.Parse([]byte(`
openapi: 3.0.3
info:
  title: x
  version: "1"
paths:
  /nobody:
    post:
      responses:
        "200":
          description: OK
  /noschema:
    post:
      requestBody:
        content:
          application/json: {}
      responses:
        "200":
          description: OK
`))
	require.NoError(t, err)

	_, err = doc.RequestSchema("nobody")
	assert.ErrorIs(t, err, openapi.ErrNoRequestBody)
	_, err = doc.RequestSchema("noschema")
	assert.ErrorIs(t, err, openapi.ErrNoSchema)
}

func TestParameters(t *testing.T) {
	doc, err := openapi.Parse([]byte(greetingDescription))
	require.NoError(t, err)

	schema, err := doc.RequestSchema("greeting")
	require.NoError(t, err)

	params, err := openapi.Parameters(schema)
	require.NoError(t, err)
	assert.Equal(t, openapi.ParametersTitle, params.Title)
	assert.Equal(t, []string{"name"}, params.Required)
	assert.Equal(t, map[string]any{
		"type":        "string",
		"description": "Who to greet",
	}, params.Properties["name"])
	assert.Equal(t, map[string]any{
		"type": "string",
		"enum": []any{"English", "Spanish"},
	}, params.Properties["language"])
}

func TestParametersNilSchema(t *testing.T) {
	params, err := openapi.Parameters(nil)
	assert.ErrorIs(t, err, openapi.ErrNoSchema)
	assert.Nil(t, params)
}

const danglingDescription = `
openapi: 3.0.3
info:
  title: workflows
  version: 1.0.0
tags:
  - name: good
  - name: broken
paths:
  /good:
    post:
      requestBody:
        content:
          application/json:
            schema:
              type: object
              properties:
                language:
                  $ref: '#/components/schemas/Language'
      responses:
        200:
          description: OK
  /broken:
    post:
      requestBody:
        content:
          application/json:
            schema:
              $ref: '#/components/schemas/Missing'
      responses:
        200:
          description: OK
components:
  schemas:
    Language:
      type: string
`

func TestDanglingReferenceIsolated(t *testing.T) {
	doc, err := openapi.Parse([]byte(danglingDescription))
	require.NoError(t, err)
	assert.Error(t, doc.ResolveError())
	assert.Len(t, doc.Workflows(), 2)

	schema, err := doc.RequestSchema("good")
	require.NoError(t, err)
	params, err := openapi.Parameters(schema)
	require.NoError(t, err)
	assert.Equal(t,
		map[string]any{"type": "string"}, params.Properties["language"],
	)

	schema, err = doc.RequestSchema("broken")
	assert.ErrorIs(t, err, openapi.ErrUnresolvedRef)
	assert.Nil(t, schema)
}

func TestParseResolvesCleanDocument(t *testing.T) {
	doc, err := openapi.Parse([]byte(greetingDescription))
	require.NoError(t, err)
	assert.NoError(t, doc.ResolveError())
}

func TestParseRejectsScalar(t *testing.T) {
	_, err := openapi.Parse([]byte("just a string"))
	assert.ErrorIs(t, err, openapi.ErrParse)
	assert.ErrorIs(t, err, openapi.ErrNoDocument)
}
