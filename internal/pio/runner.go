// Package pio wraps every invocation of the PlatformIO command line tool.
package pio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/google/shlex"
)

const (
	// DefaultCommand is used when no tool command is configured.
	DefaultCommand = "pio"

	// DefaultProbeTimeout bounds size and verbose introspection runs.
	DefaultProbeTimeout = 30 * time.Second

	// waitDelay is how long Wait keeps draining output after a killed
	// process before giving up on orphaned pipe holders.
	waitDelay = 2 * time.Second

	// monitorWaitDelay gives the monitor time to restore the terminal after
	// an interrupt before it is killed.
	monitorWaitDelay = 5 * time.Second
)

// Result is the outcome of one captured tool invocation.
type Result struct {
	Args     []string
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
	TimedOut bool
	Err      error // set when the process could not be started or was cancelled
}

// Succeeded reports whether the process ran to completion with exit code 0.
func (r Result) Succeeded() bool {
	return r.Err == nil && !r.TimedOut && r.ExitCode == 0
}

// Output returns stdout followed by stderr.
func (r Result) Output() string {
	if r.Stderr == "" {
		return r.Stdout
	}
	if r.Stdout == "" {
		return r.Stderr
	}
	return r.Stdout + "\n" + r.Stderr
}

// Failure describes why the invocation did not succeed, or returns nil.
func (r Result) Failure() error {
	switch {
	case r.Succeeded():
		return nil
	case r.Err != nil:
		return r.Err
	case r.TimedOut:
		return fmt.Errorf("timed out after %s", r.Duration.Round(time.Millisecond))
	default:
		return fmt.Errorf("exit code %d", r.ExitCode)
	}
}

// Options configure a Tool.
type Options struct {
	Command      string // may carry leading arguments, e.g. "python -m platformio"
	ProjectDir   string
	PenvPath     string
	ProbeTimeout time.Duration

	UploadPort  string
	MonitorPort string
	MonitorBaud int

	// Echo receives a live copy of compile and upload output. Nil disables
	// echoing.
	Echo io.Writer

	// Terminal streams for the interactive monitor. Nil means os.Std*.
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	Logger *slog.Logger
}

// Tool runs PlatformIO as a fresh child process for every call.
type Tool struct {
	argv         []string
	dir          string
	env          []string // nil inherits the parent environment
	probeTimeout time.Duration

	uploadPort  string
	monitorPort string
	monitorBaud int

	echo   io.Writer
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
	log    *slog.Logger
}

var _ Toolchain = (*Tool)(nil)

// New builds a Tool. The command is split using shell quoting rules and, if
// it is a bare pio/platformio, resolved against known virtual environments.
func New(opts Options) (*Tool, error) {
	command := opts.Command
	if strings.TrimSpace(command) == "" {
		command = DefaultCommand
	}
	argv, err := shlex.Split(command)
	if err != nil {
		return nil, fmt.Errorf("pio: parse command %q: %w", command, err)
	}
	if len(argv) == 0 {
		return nil, fmt.Errorf("pio: empty command %q", command)
	}

	t := &Tool{
		dir:          opts.ProjectDir,
		probeTimeout: opts.ProbeTimeout,
		uploadPort:   opts.UploadPort,
		monitorPort:  opts.MonitorPort,
		monitorBaud:  opts.MonitorBaud,
		stdin:        opts.Stdin,
		stdout:       opts.Stdout,
		stderr:       opts.Stderr,
		log:          opts.Logger,
	}
	t.argv, t.env = resolveCommand(argv, opts.ProjectDir, opts.PenvPath)

	if t.probeTimeout <= 0 {
		t.probeTimeout = DefaultProbeTimeout
	}
	if opts.Echo != nil {
		t.echo = &lockedWriter{w: opts.Echo}
	}
	if t.stdin == nil {
		t.stdin = os.Stdin
	}
	if t.stdout == nil {
		t.stdout = os.Stdout
	}
	if t.stderr == nil {
		t.stderr = os.Stderr
	}
	if t.log == nil {
		t.log = slog.Default()
	}
	return t, nil
}

// Path returns the resolved program the tool runs.
func (t *Tool) Path() string { return t.argv[0] }

func (t *Tool) command(ctx context.Context, args []string) *exec.Cmd {
	full := append(append([]string(nil), t.argv[1:]...), args...)
	cmd := exec.CommandContext(ctx, t.argv[0], full...)
	t.applyEnv(cmd)
	return cmd
}

// run executes one captured invocation. A positive timeout bounds the call.
// A non-nil echo also receives the output as it arrives.
func (t *Tool) run(ctx context.Context, timeout time.Duration, echo io.Writer, args ...string) Result {
	parent := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := t.command(ctx, args)
	cmd.WaitDelay = waitDelay

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if echo != nil {
		cmd.Stdout = io.MultiWriter(&stdout, echo)
		cmd.Stderr = io.MultiWriter(&stderr, echo)
	}

	t.log.Debug("running tool", "args", cmd.Args, "dir", cmd.Dir, "timeout", timeout)
	start := time.Now()
	err := cmd.Run()

	res := Result{
		Args:     cmd.Args,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
	case parent.Err() != nil:
		res.ExitCode = -1
		res.Err = parent.Err()
	case timeout > 0 && errors.Is(ctx.Err(), context.DeadlineExceeded):
		res.ExitCode = -1
		res.TimedOut = true
	case errors.As(err, &exitErr):
		res.ExitCode = exitErr.ExitCode()
	default:
		res.ExitCode = -1
		res.Err = err
	}

	t.log.Debug("tool finished",
		"args", cmd.Args,
		"exit_code", res.ExitCode,
		"timed_out", res.TimedOut,
		"duration", res.Duration,
	)
	return res
}

// lockedWriter serialises writes from the stdout and stderr copy goroutines.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
