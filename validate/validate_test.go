package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/configurable-agents/engine/declaration"
)

func mustParse(t *testing.T, doc string) *declaration.Declaration {
	t.Helper()
	d, err := declaration.Parse([]byte(doc), declaration.FormatYAML)
	require.NoError(t, err)
	return d
}

const validTwoNode = `
schema_version: "1.0"
flow:
  name: research-write
state:
  topic:
    type: str
    required: true
  research:
    type: str
  article:
    type: str
nodes:
  - id: research
    prompt: "Research {topic}"
    outputs: [research]
    output_schema:
      research: str
  - id: write
    prompt: "Write using {research}"
    outputs: [article]
    output_schema:
      article: str
edges:
  - from: START
    to: research
  - from: research
    to: write
  - from: write
    to: END
`

func TestValidate_Valid(t *testing.T) {
	d := mustParse(t, validTwoNode)
	assert.NoError(t, Validate(d))
}

func TestValidate_UnknownEdgeTarget(t *testing.T) {
	doc := `
schema_version: "1.0"
flow:
  name: x
nodes:
  - id: a
    prompt: hi
    outputs: []
edges:
  - from: START
    to: a
  - from: a
    to: bogus
`
	d := mustParse(t, doc)
	err := Validate(d)
	require.Error(t, err)
	var ve *Error
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, 1, ve.Pass)
}

func TestValidate_OutputNotStateField(t *testing.T) {
	doc := `
schema_version: "1.0"
flow:
  name: x
state:
  a:
    type: str
nodes:
  - id: n
    prompt: hi
    outputs: [nope]
edges:
  - from: START
    to: n
  - from: n
    to: END
`
	d := mustParse(t, doc)
	err := Validate(d)
	require.Error(t, err)
	var ve *Error
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, 2, ve.Pass)
}

func TestValidate_PlaceholderSuggestion(t *testing.T) {
	doc := `
schema_version: "1.0"
flow:
  name: x
state:
  message:
    type: str
nodes:
  - id: n
    prompt: "{mesage}"
    outputs: []
edges:
  - from: START
    to: n
  - from: n
    to: END
`
	d := mustParse(t, doc)
	err := Validate(d)
	require.Error(t, err)
	var ve *Error
	require.ErrorAs(t, err, &ve)
	require.Equal(t, 5, ve.Pass)
	assert.Equal(t, "message", ve.Issues[0].Suggestion)
}

func TestValidate_UnreachableNode(t *testing.T) {
	doc := `
schema_version: "1.0"
flow:
  name: x
nodes:
  - id: a
    prompt: hi
    outputs: []
  - id: b
    prompt: hi
    outputs: []
edges:
  - from: START
    to: a
  - from: a
    to: END
`
	d := mustParse(t, doc)
	err := Validate(d)
	require.Error(t, err)
	var ve *Error
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, 8, ve.Pass)
}
