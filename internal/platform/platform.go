// Package platform provides the OS-facing pieces the collectors depend on:
// starting external commands and querying memory and storage sizes.
// Each piece is an interface so collectors can be tested without touching
// the host.
package platform

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"time"
)

// waitDelay bounds how long Close waits for the output pipe to drain after the
// command's context is done and the process has been killed.
const waitDelay = 2 * time.Second

// ErrEmptyCommand is returned when a runner is asked to start an empty command line.
var ErrEmptyCommand = errors.New("empty command line")

// CommandRunner starts an external command and exposes its standard output.
type CommandRunner interface {
	// Start launches argv[0] with the remaining arguments. The returned
	// reader yields the process's standard output; closing it releases the
	// pipe and waits for the process to exit. Cancelling ctx kills the process.
	Start(ctx context.Context, argv []string) (io.ReadCloser, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// NewExecRunner creates a runner backed by os/exec.
func NewExecRunner() *ExecRunner {
	return &ExecRunner{}
}

// Start implements CommandRunner.
func (r *ExecRunner) Start(ctx context.Context, argv []string) (io.ReadCloser, error) {
	if len(argv) == 0 {
		return nil, ErrEmptyCommand
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.WaitDelay = waitDelay

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe for %q: %w", cmd.String(), err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting %q: %w", cmd.String(), err)
	}

	// Killing the child does not end the read if a descendant inherited the
	// write end of the pipe, so close our end when ctx is done.
	stop := context.AfterFunc(ctx, func() {
		_ = stdout.Close()
	})
	return &processOutput{ReadCloser: stdout, cmd: cmd, stop: stop}, nil
}

// processOutput ties a command's stdout pipe to the command itself.
type processOutput struct {
	io.ReadCloser
	cmd  *exec.Cmd
	stop func() bool
}

// Close closes the read end first so a process still writing gets EPIPE
// instead of blocking, then reaps it.
func (p *processOutput) Close() error {
	p.stop()
	_ = p.ReadCloser.Close()
	return p.cmd.Wait()
}

// MemInfoCommandLine returns the dumpsys invocation that prints memory usage
// for the process with the given id.
func MemInfoCommandLine(pid int) []string {
	return []string{"dumpsys", "meminfo", strconv.Itoa(pid)}
}
