package typesys

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseType_Basic(t *testing.T) {
	for _, tc := range []struct {
		in   string
		kind Kind
	}{
		{"str", KindStr},
		{"int", KindInt},
		{"float", KindFloat},
		{"bool", KindBool},
		{"list", KindList},
		{"dict", KindMap},
		{"object", KindObject},
	} {
		got, err := ParseType(tc.in)
		require.NoError(t, err)
		assert.Equal(t, tc.kind, got.Kind)
	}
}

func TestParseType_Generics(t *testing.T) {
	got, err := ParseType("list[str]")
	require.NoError(t, err)
	require.NotNil(t, got.Item)
	assert.Equal(t, KindStr, got.Item.Kind)

	got, err = ParseType("dict[ str , int ]")
	require.NoError(t, err)
	require.NotNil(t, got.Key)
	require.NotNil(t, got.Value)
	assert.Equal(t, KindStr, got.Key.Kind)
	assert.Equal(t, KindInt, got.Value.Kind)

	got, err = ParseType("list[dict[str,list[int]]]")
	require.NoError(t, err)
	assert.Equal(t, KindMap, got.Item.Kind)
	assert.Equal(t, KindList, got.Item.Value.Kind)
}

func TestParseType_Errors(t *testing.T) {
	_, err := ParseType("strr")
	require.Error(t, err)
	var pe *ParseError
	require.ErrorAs(t, err, &pe)

	_, err = ParseType("list[str")
	require.Error(t, err)

	_, err = ParseType("dict[str int]")
	require.Error(t, err)
}

func TestTypeRef_Equal(t *testing.T) {
	a := List(Str())
	b := List(Str())
	assert.True(t, a.Equal(b))

	c := List(Int())
	assert.False(t, a.Equal(c))

	o1 := Object(map[string]*TypeRef{"x": ptr(Int())})
	o2 := Object(map[string]*TypeRef{"x": ptr(Int())})
	assert.True(t, o1.Equal(o2))

	o3 := Object(map[string]*TypeRef{"x": ptr(Str())})
	assert.False(t, o1.Equal(o3))
}

func TestValidateValue(t *testing.T) {
	require.NoError(t, ValidateValue("hi", Str()))
	require.NoError(t, ValidateValue(float64(5), Int()))
	require.Error(t, ValidateValue(float64(5.5), Int()))
	require.NoError(t, ValidateValue([]any{"a", "b"}, List(Str())))
	require.Error(t, ValidateValue([]any{"a", 1.0}, List(Str())))

	obj := Object(map[string]*TypeRef{"score": ptr(Int())})
	require.NoError(t, ValidateValue(map[string]any{"score": float64(10)}, obj))
	require.Error(t, ValidateValue(map[string]any{}, obj))
}

func ptr(t TypeRef) *TypeRef { return &t }
