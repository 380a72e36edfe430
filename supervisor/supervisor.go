// Package supervisor implements the multi-process control plane (C17, spec
// §4.17): the dashboard, chat UI, and optional metrics UI each run as an
// independent OS process, started in dependency order and watched for
// liveness. Go has no fork-and-share-closures primitive, so unlike a
// thread-based supervisor a child here cannot simply be "a function
// pointer plus a bound environment" — it is re-exec'd as the same binary
// with a role flag and a JSON-encoded, plain-data config record
// (grounded in goadesign-goa-ai/integration_tests/framework/runner.go's
// exec.Command + staged-signal-then-Wait child lifecycle).
package supervisor

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"
)

// Child describes one supervised process. Name identifies it in log
// prefixes and exit messages. Config is marshaled to JSON and passed to
// the child via --config-json; it must be plain data, since nothing
// live (channels, closures, open connections) survives a process
// boundary. Ready, when non-nil, is polled after the child starts and
// must return nil once the child has bound its port and is serving.
type Child struct {
	Name   string
	Role   string
	Config any
	Ready  func(ctx context.Context) error
}

// ChildExitError reports that a supervised child exited, matching spec
// §4.17's "print `[name] exited (code: N)`" requirement in a form the
// supervisor's caller can also inspect programmatically.
type ChildExitError struct {
	Name string
	Code int
}

func (e *ChildExitError) Error() string {
	return fmt.Sprintf("%s exited (code: %d)", e.Name, e.Code)
}

// Supervisor starts a sequence of Children in order, waits for each to
// become ready before starting the next, and watches all of them for
// the lifetime of the process. Exe is the binary re-invoked for every
// child; in production this is the path os.Executable() reports.
type Supervisor struct {
	Exe             string
	Stdout          io.Writer
	Stderr          io.Writer
	ReadyTimeout    time.Duration
	GracePeriod     time.Duration
	KillGracePeriod time.Duration

	mu    sync.Mutex
	procs []*process
}

type process struct {
	name   string
	cmd    *exec.Cmd
	exitCh chan error
}

// New builds a Supervisor. exe is the path to the current binary
// (from os.Executable()); stdout/stderr are the supervisor's own streams, to
// which every child's output is copied with a "[name] " prefix.
func New(exe string, stdout, stderr io.Writer) *Supervisor {
	return &Supervisor{
		Exe:             exe,
		Stdout:          stdout,
		Stderr:          stderr,
		ReadyTimeout:    30 * time.Second,
		GracePeriod:     5 * time.Second,
		KillGracePeriod: 2 * time.Second,
	}
}

// Start launches children in order, waiting for each one's Ready check
// (if any) before starting the next. If a child fails to start or
// never becomes ready, Start stops the ones already running and
// returns the error.
func (s *Supervisor) Start(ctx context.Context, children []Child) error {
	for _, c := range children {
		p, err := s.spawn(c)
		if err != nil {
			s.StopAll(ctx)
			return fmt.Errorf("start %s: %w", c.Name, err)
		}
		s.mu.Lock()
		s.procs = append(s.procs, p)
		s.mu.Unlock()

		if c.Ready != nil {
			if err := s.awaitReady(ctx, p, c.Ready); err != nil {
				s.StopAll(ctx)
				return err
			}
		}
	}
	return nil
}

func (s *Supervisor) spawn(c Child) (*process, error) {
	configJSON, err := json.Marshal(c.Config)
	if err != nil {
		return nil, fmt.Errorf("marshal config for %s: %w", c.Name, err)
	}

	cmd := exec.Command(s.Exe, "internal-serve", "--role", c.Role, "--config-json", string(configJSON))
	cmd.Env = os.Environ()

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, err
	}

	if err := cmd.Start(); err != nil {
		return nil, err
	}

	p := &process{name: c.Name, cmd: cmd, exitCh: make(chan error, 1)}
	go s.streamPrefixed(c.Name, stdout, s.Stdout)
	go s.streamPrefixed(c.Name, stderr, s.Stderr)
	go func() {
		err := cmd.Wait()
		p.exitCh <- err
		code := exitCode(err)
		fmt.Fprintf(s.Stdout, "[%s] exited (code: %d)\n", c.Name, code)
	}()

	return p, nil
}

// streamPrefixed copies r to w line by line, prefixing every line with
// "[name] " (spec §4.17: "unbuffered" passthrough — each line is
// flushed to w as soon as it arrives, nothing is batched).
func (s *Supervisor) streamPrefixed(name string, r io.Reader, w io.Writer) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		fmt.Fprintf(w, "[%s] %s\n", name, scanner.Text())
	}
}

func (s *Supervisor) awaitReady(ctx context.Context, p *process, ready func(context.Context) error) error {
	deadline := time.Now().Add(s.ReadyTimeout)
	for time.Now().Before(deadline) {
		select {
		case err := <-p.exitCh:
			return &ChildExitError{Name: p.name, Code: exitCode(err)}
		default:
		}
		if err := ready(ctx); err == nil {
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}
	return fmt.Errorf("%s did not become ready within %s", p.name, s.ReadyTimeout)
}

// Wait blocks until any supervised child exits, then returns a
// ChildExitError naming it. The caller typically treats this as a
// shutdown signal for the rest of the fleet.
func (s *Supervisor) Wait(ctx context.Context) error {
	s.mu.Lock()
	procs := append([]*process(nil), s.procs...)
	s.mu.Unlock()

	cases := make(chan *ChildExitError, len(procs))
	for _, p := range procs {
		p := p
		go func() {
			err := <-p.exitCh
			cases <- &ChildExitError{Name: p.name, Code: exitCode(err)}
		}()
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case exitErr := <-cases:
		return exitErr
	}
}

// StopAll signals every running child to terminate, escalating from a
// graceful terminate to a kill if the grace period elapses (spec
// §4.17: "send terminate to each child with a grace period; then
// kill"). It blocks until every child has exited or the kill grace
// period elapses.
func (s *Supervisor) StopAll(ctx context.Context) {
	s.mu.Lock()
	procs := append([]*process(nil), s.procs...)
	s.mu.Unlock()

	var wg sync.WaitGroup
	for _, p := range procs {
		p := p
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.stopOne(p)
		}()
	}
	wg.Wait()
}

func (s *Supervisor) stopOne(p *process) {
	if p.cmd.Process == nil {
		return
	}
	_ = p.cmd.Process.Signal(os.Interrupt)
	select {
	case <-p.exitCh:
		return
	case <-time.After(s.GracePeriod):
	}

	_ = p.cmd.Process.Kill()
	select {
	case <-p.exitCh:
	case <-time.After(s.KillGracePeriod):
	}
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}
