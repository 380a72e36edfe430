package main

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/configurable-agents/engine/declaration"
	"github.com/configurable-agents/engine/validate"
)

func TestExitCode_Success(t *testing.T) {
	assert.Equal(t, 0, exitCode(context.Background(), nil))
}

func TestExitCode_UserErrorsMapToOne(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, 1, exitCode(ctx, &declaration.ParseError{}))
	assert.Equal(t, 1, exitCode(ctx, &validate.Error{}))
	assert.Equal(t, 1, exitCode(ctx, usagef("bad flag")))
}

func TestExitCode_RuntimeErrorMapsToTwo(t *testing.T) {
	assert.Equal(t, 2, exitCode(context.Background(), errors.New("boom")))
}

func TestExitCode_CancelledContextMapsTo130(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Equal(t, 130, exitCode(ctx, context.Canceled))
}
