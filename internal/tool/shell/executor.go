package shell

import (
	"bytes"
	"context"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/codecli/codecli/internal/tool"
)

// gracePeriod is how long a timed-out command gets between the interrupt
// signal and a hard kill.
const gracePeriod = 2 * time.Second

// ExecResult represents the outcome of a command execution.
type ExecResult struct {
	Stdout    string
	Stderr    string
	ExitCode  int
	Truncated bool
}

// Executor runs argv commands with bounded output and a graceful timeout.
type Executor struct {
	maxOutputBytes int
}

func NewExecutor(maxOutputBytes int) *Executor {
	return &Executor{maxOutputBytes: maxOutputBytes}
}

// Run executes argv in dir with the given timeout. On timeout the process
// first receives an interrupt, then a kill after the grace period, and the
// call returns tool.ErrTimeout alongside whatever output was collected.
// Cancelling ctx kills the process immediately.
func (e *Executor) Run(ctx context.Context, argv []string, dir string, timeout time.Duration) (*ExecResult, error) {
	if len(argv) == 0 {
		return nil, ErrEmptyCommand
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = dir
	cmd.Env = os.Environ()
	cmd.Stdin = nil

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return nil, &CommandError{Cmd: argv[0], Stage: "start", Cause: err}
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return nil, &CommandError{Cmd: argv[0], Stage: "start", Cause: err}
	}

	if err := cmd.Start(); err != nil {
		return nil, &CommandError{Cmd: argv[0], Stage: "start", Cause: err}
	}

	// Collect output concurrently so a chatty process cannot block the
	// timeout select below.
	var stdout, stderr string
	var truncated bool
	collectDone := make(chan struct{})
	go func() {
		stdout, stderr, truncated = e.collect(stdoutPipe, stderrPipe)
		close(collectDone)
	}()

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	var execErr error
	select {
	case err := <-done:
		execErr = err
	case <-ctx.Done():
		_ = cmd.Process.Kill()
		<-done
		execErr = ctx.Err()
	case <-time.After(timeout):
		_ = cmd.Process.Signal(os.Interrupt)
		select {
		case <-done:
		case <-time.After(gracePeriod):
			_ = cmd.Process.Kill()
			<-done
		}
		execErr = tool.ErrTimeout
	}

	<-collectDone

	exitCode := 0
	if execErr != nil {
		exitCode = exitCodeOf(execErr)
	}

	return &ExecResult{
		Stdout:    stdout,
		Stderr:    stderr,
		ExitCode:  exitCode,
		Truncated: truncated,
	}, execErr
}

func (e *Executor) collect(stdoutPipe, stderrPipe io.Reader) (string, string, bool) {
	stdout := newCollector(e.maxOutputBytes)
	stderr := newCollector(e.maxOutputBytes)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, _ = io.Copy(stdout, stdoutPipe)
	}()
	go func() {
		defer wg.Done()
		_, _ = io.Copy(stderr, stderrPipe)
	}()
	wg.Wait()

	return stdout.String(), stderr.String(), stdout.Truncated() || stderr.Truncated()
}

func exitCodeOf(err error) int {
	if err == nil {
		return 0
	}
	type exitCoder interface {
		ExitCode() int
	}
	if ec, ok := err.(exitCoder); ok {
		return ec.ExitCode()
	}
	return -1
}

// binarySampleSize is how many leading output bytes are checked for
// binary content before collection gives up on the stream.
const binarySampleSize = 8000

// collector captures stream output with a size limit and binary detection.
type collector struct {
	buffer       bytes.Buffer
	maxBytes     int
	truncated    bool
	isBinary     bool
	bytesChecked int
}

func newCollector(maxBytes int) *collector {
	return &collector{maxBytes: maxBytes}
}

func (c *collector) Write(p []byte) (int, error) {
	if c.isBinary {
		return len(p), nil
	}

	if c.bytesChecked < binarySampleSize {
		toCheck := p
		if remaining := binarySampleSize - c.bytesChecked; len(toCheck) > remaining {
			toCheck = toCheck[:remaining]
		}
		if bytes.IndexByte(toCheck, 0) >= 0 {
			c.isBinary = true
			c.truncated = true
			return len(p), nil
		}
		c.bytesChecked += len(toCheck)
	}

	remaining := c.maxBytes - c.buffer.Len()
	if remaining <= 0 {
		c.truncated = true
		return len(p), nil
	}

	toWrite := p
	if len(toWrite) > remaining {
		toWrite = toWrite[:remaining]
		c.truncated = true
	}
	if _, err := c.buffer.Write(toWrite); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (c *collector) String() string {
	if c.isBinary {
		return "[binary output]"
	}
	return c.buffer.String()
}

func (c *collector) Truncated() bool { return c.truncated }
