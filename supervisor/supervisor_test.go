package supervisor

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeScript writes an executable shell script to dir and returns its
// path. Children ignore the --role/--config-json args the supervisor
// always appends, since the scripts here only stand in for the real
// internal-serve re-exec.
func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	return path
}

func TestSupervisor_StartWaitsForReadyBeforeStartingNext(t *testing.T) {
	dir := t.TempDir()
	fast := writeScript(t, dir, "fast.sh", "while true; do sleep 0.05; done")

	var stdout, stderr bytes.Buffer
	s := New(fast, &stdout, &stderr)
	s.ReadyTimeout = 2 * time.Second

	var secondStarted bool
	attempts := 0
	children := []Child{
		{Name: "first", Role: "first", Ready: func(context.Context) error {
			attempts++
			if attempts < 3 {
				return assert.AnError
			}
			return nil
		}},
		{Name: "second", Role: "second", Ready: func(context.Context) error {
			secondStarted = true
			return nil
		}},
	}

	err := s.Start(context.Background(), children)
	require.NoError(t, err)
	assert.True(t, secondStarted)
	assert.GreaterOrEqual(t, attempts, 3)

	s.StopAll(context.Background())
}

func TestSupervisor_Wait_ReturnsExitErrorWithCode(t *testing.T) {
	dir := t.TempDir()
	quick := writeScript(t, dir, "quick.sh", "exit 3")

	var stdout, stderr bytes.Buffer
	s := New(quick, &stdout, &stderr)

	err := s.Start(context.Background(), []Child{{Name: "quick", Role: "quick"}})
	require.NoError(t, err)

	waitErr := s.Wait(context.Background())
	require.Error(t, waitErr)
	var exitErr *ChildExitError
	require.ErrorAs(t, waitErr, &exitErr)
	assert.Equal(t, "quick", exitErr.Name)
	assert.Equal(t, 3, exitErr.Code)
}

func TestSupervisor_StopAll_EscalatesToKillWhenTermIgnored(t *testing.T) {
	dir := t.TempDir()
	stubborn := writeScript(t, dir, "stubborn.sh", "trap '' TERM\nwhile true; do sleep 0.05; done")

	var stdout, stderr bytes.Buffer
	s := New(stubborn, &stdout, &stderr)
	s.GracePeriod = 50 * time.Millisecond
	s.KillGracePeriod = 2 * time.Second

	err := s.Start(context.Background(), []Child{{Name: "stubborn", Role: "stubborn"}})
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		s.StopAll(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("StopAll did not escalate to kill within timeout")
	}
}

func TestSupervisor_StreamsChildOutputWithNamePrefix(t *testing.T) {
	dir := t.TempDir()
	talker := writeScript(t, dir, "talker.sh", "echo hello from child")

	var stdout, stderr bytes.Buffer
	s := New(talker, &stdout, &stderr)

	err := s.Start(context.Background(), []Child{{Name: "talker", Role: "talker"}})
	require.NoError(t, err)
	_ = s.Wait(context.Background())

	assert.Contains(t, stdout.String(), "[talker] hello from child")
	assert.Contains(t, stdout.String(), "[talker] exited (code: 0)")
}

func TestChildExitError_Error(t *testing.T) {
	err := &ChildExitError{Name: "dashboard", Code: 1}
	assert.Equal(t, "dashboard exited (code: 1)", err.Error())
}
