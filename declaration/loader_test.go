package declaration

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const echoYAML = `
schema_version: "1.0"
flow:
  name: echo
state:
  message:
    type: str
    required: true
  result:
    type: str
nodes:
  - id: echo_node
    prompt: "Echo: {message}"
    outputs: [result]
    output_schema:
      result: str
edges:
  - from: START
    to: echo_node
  - from: echo_node
    to: END
`

func TestParse_Echo(t *testing.T) {
	d, err := Parse([]byte(echoYAML), FormatYAML)
	require.NoError(t, err)
	assert.Equal(t, "echo", d.Flow.Name)
	require.Len(t, d.Nodes, 1)
	assert.Equal(t, "echo_node", d.Nodes[0].ID)
	assert.True(t, d.State["message"].Required)
	assert.False(t, d.State["result"].HasDefault())
}

func TestParse_RejectsUnknownFields(t *testing.T) {
	bad := echoYAML + "\nbogus_top_level_key: true\n"
	_, err := Parse([]byte(bad), FormatYAML)
	require.Error(t, err)
}

func TestParse_RequiredAndDefaultMutuallyExclusive(t *testing.T) {
	bad := `
schema_version: "1.0"
flow:
  name: x
state:
  message:
    type: str
    required: true
    default: "hi"
nodes:
  - id: n
    prompt: "{message}"
    outputs: [message]
edges:
  - from: START
    to: n
  - from: n
    to: END
`
	_, err := Parse([]byte(bad), FormatYAML)
	require.Error(t, err)
	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	assert.NotEmpty(t, pe.Errors)
}

func TestParse_BadSchemaVersion(t *testing.T) {
	bad := `
schema_version: "2.0"
flow:
  name: x
nodes:
  - id: n
    prompt: hi
    outputs: []
edges:
  - from: START
    to: n
  - from: n
    to: END
`
	_, err := Parse([]byte(bad), FormatYAML)
	require.Error(t, err)
}

func TestParse_IdentifierGrammar(t *testing.T) {
	bad := `
schema_version: "1.0"
flow:
  name: x
nodes:
  - id: "123-bad"
    prompt: hi
    outputs: []
edges:
  - from: START
    to: "123-bad"
  - from: "123-bad"
    to: END
`
	_, err := Parse([]byte(bad), FormatYAML)
	require.Error(t, err)
}

func TestParse_JSON(t *testing.T) {
	jsonDoc := `{
		"schema_version": "1.0",
		"flow": {"name": "j"},
		"nodes": [{"id": "n", "prompt": "hi", "outputs": []}],
		"edges": [{"from": "START", "to": "n"}, {"from": "n", "to": "END"}]
	}`
	d, err := Parse([]byte(jsonDoc), FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, "j", d.Flow.Name)
}
