package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve_Basic(t *testing.T) {
	out, err := Resolve("Echo: {message}", map[string]any{"message": "hi"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "Echo: hi", out)
}

func TestResolve_InputsOverrideState(t *testing.T) {
	out, err := Resolve("{x}", map[string]any{"x": "from-input"}, map[string]any{"x": "from-state"})
	require.NoError(t, err)
	assert.Equal(t, "from-input", out)
}

func TestResolve_FallsBackToState(t *testing.T) {
	out, err := Resolve("{research}", nil, map[string]any{"research": "notes"})
	require.NoError(t, err)
	assert.Equal(t, "notes", out)
}

func TestResolve_DottedObjectAccess(t *testing.T) {
	state := map[string]any{"doc": map[string]any{"title": "Hello"}}
	out, err := Resolve("{doc.title}", nil, state)
	require.NoError(t, err)
	assert.Equal(t, "Hello", out)
}

func TestResolve_Unresolved(t *testing.T) {
	_, err := Resolve("{missing}", nil, map[string]any{"message": "hi"})
	require.Error(t, err)
	var re *ResolutionError
	require.ErrorAs(t, err, &re)
}

func TestResolve_Idempotent(t *testing.T) {
	inputs := map[string]any{"message": "hi"}
	first, err := Resolve("Echo: {message}", inputs, nil)
	require.NoError(t, err)
	second, err := Resolve(first, inputs, nil)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestExtractPlaceholders(t *testing.T) {
	assert.Equal(t, []string{"a", "b.c"}, ExtractPlaceholders("{a} and {b.c}"))
}

func TestResolveInputs_MapsPathsAgainstState(t *testing.T) {
	state := map[string]any{"message": "hi", "doc": map[string]any{"title": "Hello"}}
	inputs, err := ResolveInputs(map[string]string{"greeting": "message", "heading": "doc.title"}, state)
	require.NoError(t, err)
	assert.Equal(t, "hi", inputs["greeting"])
	assert.Equal(t, "Hello", inputs["heading"])
}

func TestResolveInputs_EmptySpecReturnsNil(t *testing.T) {
	inputs, err := ResolveInputs(nil, map[string]any{"message": "hi"})
	require.NoError(t, err)
	assert.Nil(t, inputs)
}

func TestResolveInputs_UnresolvedPathErrors(t *testing.T) {
	_, err := ResolveInputs(map[string]string{"greeting": "missing"}, map[string]any{"message": "hi"})
	require.Error(t, err)
	var re *ResolutionError
	require.ErrorAs(t, err, &re)
}
