package schemas

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_DraftValid(t *testing.T) {
	doc := `{"sections":{"Summary":"Backend engineer","Skills":["Go","SQL"]},"competencies":{"keywords":["go"]}}`
	assert.NoError(t, Validate(DraftSchema, []byte(doc)))
}

func TestValidate_DraftMissingSections(t *testing.T) {
	err := Validate(DraftSchema, []byte(`{"competencies":{}}`))
	require.Error(t, err)

	validationErr, ok := err.(*ValidationError)
	require.True(t, ok, "error should be ValidationError type")
	assert.Greater(t, len(validationErr.Errors), 0)
}

func TestValidate_DraftSectionWrongType(t *testing.T) {
	err := Validate(DraftSchema, []byte(`{"sections":{"Skills":{"nested":true}}}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sections")
}

func TestValidate_DraftTooManyKeywords(t *testing.T) {
	doc := `{"sections":{},"competencies":{"keywords":["a","b","c","d","e","f","g","h","i","j","k","l","m"]}}`
	assert.Error(t, Validate(DraftSchema, []byte(doc)))
}

func TestValidate_JobTerminalInvariant(t *testing.T) {
	base := `"tenantId":"t1","jobId":"j1","createdAt":"2024-01-01T00:00:00Z","inputs":{"resumeRef":"r","jobDescriptionRef":"j"}`

	tests := []struct {
		name    string
		doc     string
		wantErr bool
	}{
		{"queued", `{` + base + `,"status":"QUEUED"}`, false},
		{"completed with result", `{` + base + `,"status":"COMPLETED","result":{"docxRef":"d"}}`, false},
		{"completed without result", `{` + base + `,"status":"COMPLETED"}`, true},
		{"failed with both", `{` + base + `,"status":"FAILED","result":{},"error":{"stage":"parse","message":"x"}}`, true},
		{"unknown status", `{` + base + `,"status":"PAUSED"}`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(JobSchema, []byte(tt.doc))
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidate_UnknownSchema(t *testing.T) {
	err := Validate("missing.schema.json", []byte(`{}`))
	require.Error(t, err)
	var loadErr *SchemaLoadError
	assert.ErrorAs(t, err, &loadErr)
}

func TestValidateJSONString(t *testing.T) {
	schema := `{"type":"object","required":["name"]}`
	assert.NoError(t, ValidateJSONString(schema, `{"name":"x"}`))
	assert.Error(t, ValidateJSONString(schema, `{}`))
}
