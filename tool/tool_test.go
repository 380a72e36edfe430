package tool

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoTool() Tool {
	return Tool{
		Name:      "echo",
		Signature: Signature{Description: "echoes its input"},
		Invoke: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			return args, nil
		},
	}
}

func TestRegistry_LookupMissing(t *testing.T) {
	r := NewRegistry()
	_, err := r.Lookup("nope")
	require.Error(t, err)
	var me *MissingError
	require.ErrorAs(t, err, &me)
}

func TestRegistry_RegisterAndInvoke(t *testing.T) {
	r := NewRegistry()
	r.Register(echoTool())
	out, err := r.Invoke(context.Background(), "echo", map[string]any{"x": 1})
	require.NoError(t, err)
	assert.Equal(t, 1, out["x"])
}

func TestRegistry_Resolve(t *testing.T) {
	r := NewRegistry()
	r.Register(echoTool())
	tools, err := r.Resolve([]string{"echo"})
	require.NoError(t, err)
	require.Len(t, tools, 1)

	_, err = r.Resolve([]string{"echo", "missing"})
	require.Error(t, err)
}

func TestRegistry_InvokeFailureWraps(t *testing.T) {
	r := NewRegistry()
	r.Register(Tool{
		Name: "boom",
		Invoke: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			return nil, errors.New("kaboom")
		},
	})
	_, err := r.Invoke(context.Background(), "boom", nil)
	require.Error(t, err)
	var fe *FailureError
	require.ErrorAs(t, err, &fe)
}
