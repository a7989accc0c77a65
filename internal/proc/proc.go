// Package proc spawns external tools as owned handles with explicit pipes.
//
// Every pipe is an os.Pipe pair. The child's ends are closed in the parent
// right after start, so a reader sees EOF as soon as the child (and anything
// it forked) exits. Children run in their own process group so termination
// reaches helpers they spawn.
package proc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	dterrors "github.com/five82/dovetail/internal/errors"
)

// DefaultTerminateGrace is how long a stage gets between SIGTERM and SIGKILL.
const DefaultTerminateGrace = 5 * time.Second

// Options describes the process to spawn.
type Options struct {
	// Name labels the process in errors and logs. Defaults to Path.
	Name string
	Path string
	Args []string
	Dir  string
	// Env is appended to the parent environment.
	Env []string

	// StdinPipe gives the handle a writable Stdin.
	StdinPipe bool
	// StdoutPipe gives the handle a readable Stdout.
	StdoutPipe bool
	// StdoutFile redirects the child's stdout into a file the parent creates.
	// Ignored when StdoutPipe is set.
	StdoutFile string

	// TerminateGrace overrides DefaultTerminateGrace.
	TerminateGrace time.Duration
}

// Handle is a running external process. The zero value is not usable; use Spawn.
type Handle struct {
	name  string
	cmd   *exec.Cmd
	grace time.Duration

	stdin   *os.File
	stdout  *os.File
	stderr  *os.File
	outFile *os.File

	done     chan struct{}
	waitOnce sync.Once
	exitCode int
	waitErr  error

	termOnce  sync.Once
	closeOnce sync.Once
}

// Spawn starts the process. A failure to resolve or start the executable is
// returned as a KindProcessLaunch error; the process never ran.
// Cancelling ctx terminates the whole process group.
func Spawn(ctx context.Context, opts Options) (*Handle, error) {
	name := opts.Name
	if name == "" {
		name = opts.Path
	}

	path, err := exec.LookPath(opts.Path)
	if err != nil {
		return nil, dterrors.NewProcessLaunchError(name, err)
	}

	grace := opts.TerminateGrace
	if grace <= 0 {
		grace = DefaultTerminateGrace
	}

	h := &Handle{
		name:     name,
		grace:    grace,
		done:     make(chan struct{}),
		exitCode: -1,
	}

	cmd := exec.CommandContext(ctx, path, opts.Args...)
	cmd.Dir = opts.Dir
	if len(opts.Env) > 0 {
		cmd.Env = append(os.Environ(), opts.Env...)
	}
	setProcessGroup(cmd)
	cmd.Cancel = func() error {
		h.Terminate()
		return nil
	}
	// Backstop in case the group ignores both signals and keeps fds open.
	cmd.WaitDelay = 2 * grace
	h.cmd = cmd

	var childEnds []*os.File
	fail := func(err error) (*Handle, error) {
		for _, f := range childEnds {
			_ = f.Close()
		}
		h.closeParentEnds()
		return nil, dterrors.NewProcessLaunchError(name, err)
	}

	if opts.StdinPipe {
		r, w, err := os.Pipe()
		if err != nil {
			return fail(fmt.Errorf("stdin pipe: %w", err))
		}
		cmd.Stdin = r
		h.stdin = w
		childEnds = append(childEnds, r)
	}

	switch {
	case opts.StdoutPipe:
		r, w, err := os.Pipe()
		if err != nil {
			return fail(fmt.Errorf("stdout pipe: %w", err))
		}
		cmd.Stdout = w
		h.stdout = r
		childEnds = append(childEnds, w)
	case opts.StdoutFile != "":
		f, err := os.OpenFile(opts.StdoutFile, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
		if err != nil {
			return fail(fmt.Errorf("stdout file: %w", err))
		}
		cmd.Stdout = f
		h.outFile = f
	}

	r, w, err := os.Pipe()
	if err != nil {
		return fail(fmt.Errorf("stderr pipe: %w", err))
	}
	cmd.Stderr = w
	h.stderr = r
	childEnds = append(childEnds, w)

	if err := cmd.Start(); err != nil {
		return fail(err)
	}

	for _, f := range childEnds {
		_ = f.Close()
	}
	return h, nil
}

// Name returns the label the handle was spawned with.
func (h *Handle) Name() string {
	return h.name
}

// Pid returns the OS process id.
func (h *Handle) Pid() int {
	return h.cmd.Process.Pid
}

// Stdin returns the child's input sink, or nil if none was requested.
// Closing it signals end-of-input to the child.
func (h *Handle) Stdin() io.WriteCloser {
	if h.stdin == nil {
		return nil
	}
	return h.stdin
}

// Stdout returns the child's output source, or nil if none was requested.
func (h *Handle) Stdout() io.ReadCloser {
	if h.stdout == nil {
		return nil
	}
	return h.stdout
}

// Stderr returns the child's diagnostic source.
func (h *Handle) Stderr() io.ReadCloser {
	return h.stderr
}

// Done is closed once Wait has collected the exit status.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Wait blocks until the process exits and returns its exit code. A non-zero
// exit is not an error; err is set only when the status could not be
// collected. A process killed by a signal reports exit code -1.
// Wait may be called from several goroutines.
func (h *Handle) Wait() (int, error) {
	h.waitOnce.Do(func() {
		err := h.cmd.Wait()
		var exitErr *exec.ExitError
		switch {
		case err == nil:
			h.exitCode = 0
		case errors.As(err, &exitErr):
			h.exitCode = exitErr.ExitCode()
		default:
			if h.cmd.ProcessState != nil {
				h.exitCode = h.cmd.ProcessState.ExitCode()
				if h.exitCode == 0 {
					// Exited cleanly, but only after cancellation.
					h.exitCode = -1
				}
			}
			h.waitErr = err
		}
		if h.outFile != nil {
			_ = h.outFile.Close()
		}
		close(h.done)
	})
	return h.exitCode, h.waitErr
}

// Terminate asks the process group to exit with SIGTERM and escalates to
// SIGKILL after the grace period. It is safe to call more than once.
func (h *Handle) Terminate() {
	h.termOnce.Do(func() {
		if h.cmd.Process == nil {
			return
		}
		_ = signalGroup(h.cmd.Process, sigTerm)
		go func() {
			select {
			case <-h.done:
			case <-time.After(h.grace):
				_ = signalGroup(h.cmd.Process, sigKill)
			}
		}()
	})
}

// Close releases every parent-side pipe end. Pending reads and writes on
// them return immediately. Safe to call more than once.
func (h *Handle) Close() {
	h.closeOnce.Do(h.closeParentEnds)
}

func (h *Handle) closeParentEnds() {
	for _, f := range []*os.File{h.stdin, h.stdout, h.stderr} {
		if f != nil {
			_ = f.Close()
		}
	}
	if h.outFile != nil && h.cmd.Process == nil {
		_ = h.outFile.Close()
	}
}
