package pio

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// MonitorStatus is how an interactive monitor session ended.
type MonitorStatus int

const (
	// MonitorCompleted means the monitor process exited on its own.
	MonitorCompleted MonitorStatus = iota
	// MonitorInterrupted means the user stopped the session.
	MonitorInterrupted
)

func (s MonitorStatus) String() string {
	if s == MonitorInterrupted {
		return "interrupted"
	}
	return "completed"
}

// Toolchain is the set of PlatformIO operations the pipeline depends on.
type Toolchain interface {
	Version(ctx context.Context) Result
	Compile(ctx context.Context, env string) Result
	Upload(ctx context.Context, env string) Result
	Monitor(ctx context.Context, env string) (MonitorStatus, error)
	Probe(ctx context.Context, env string, args ...string) Result
}

// CompileArgs builds `run -e <env>`.
func CompileArgs(env string) []string {
	return []string{"run", "-e", env}
}

// UploadArgs builds `run -e <env> --target upload`, adding --upload-port
// when port is set.
func UploadArgs(env, port string) []string {
	args := []string{"run", "-e", env, "--target", "upload"}
	if port != "" {
		args = append(args, "--upload-port", port)
	}
	return args
}

// MonitorArgs builds `device monitor -e <env>` with optional port and baud.
func MonitorArgs(env, port string, baud int) []string {
	args := []string{"device", "monitor", "-e", env}
	if port != "" {
		args = append(args, "--port", port)
	}
	if baud > 0 {
		args = append(args, "--baud", strconv.Itoa(baud))
	}
	return args
}

// SizeArgs are the probe arguments for a memory size report.
func SizeArgs() []string { return []string{"-t", "size"} }

// VerboseArgs are the probe arguments for a verbose build.
func VerboseArgs() []string { return []string{"--verbose"} }

// FollowUpCommands returns the compile, upload and monitor command lines a
// user can run by hand for env.
func FollowUpCommands(env string) []string {
	return []string{
		DefaultCommand + " " + strings.Join(CompileArgs(env), " "),
		DefaultCommand + " " + strings.Join(UploadArgs(env, ""), " "),
		DefaultCommand + " " + strings.Join(MonitorArgs(env, "", 0), " "),
	}
}

// Version runs `pio --version`.
func (t *Tool) Version(ctx context.Context) Result {
	return t.run(ctx, t.probeTimeout, nil, "--version")
}

// Compile builds env. It blocks until the build finishes.
func (t *Tool) Compile(ctx context.Context, env string) Result {
	return t.run(ctx, 0, t.echo, CompileArgs(env)...)
}

// Upload flashes the firmware for env.
func (t *Tool) Upload(ctx context.Context, env string) Result {
	return t.run(ctx, 0, t.echo, UploadArgs(env, t.uploadPort)...)
}

// Probe runs `run -e <env> <args...>` under the probe timeout. A timeout is
// reported on the Result rather than as an error.
func (t *Tool) Probe(ctx context.Context, env string, args ...string) Result {
	return t.run(ctx, t.probeTimeout, nil, append(CompileArgs(env), args...)...)
}

// Monitor attaches the serial monitor for env to the terminal and waits for
// it to end. Cancelling ctx sends the monitor an interrupt; that and a
// Ctrl+C typed into the monitor both count as a normal end of the session.
// An error is returned only when the monitor cannot be started.
func (t *Tool) Monitor(ctx context.Context, env string) (MonitorStatus, error) {
	cmd := t.command(ctx, MonitorArgs(env, t.monitorPort, t.monitorBaud))
	cmd.Cancel = func() error { return cmd.Process.Signal(os.Interrupt) }
	cmd.WaitDelay = monitorWaitDelay
	cmd.Stdin = t.stdin
	cmd.Stdout = t.stdout
	cmd.Stderr = t.stderr

	t.log.Debug("starting monitor", "args", cmd.Args)
	err := cmd.Run()
	if ctx.Err() != nil {
		return MonitorInterrupted, nil
	}
	if err == nil {
		return MonitorCompleted, nil
	}

	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return MonitorCompleted, fmt.Errorf("pio: start monitor: %w", err)
	}
	// -1: terminated by a signal; 130: shell convention for SIGINT.
	if code := exitErr.ExitCode(); code == -1 || code == 130 {
		return MonitorInterrupted, nil
	}
	t.log.Warn("serial monitor exited with an error", "env", env, "exit_code", exitErr.ExitCode())
	return MonitorCompleted, nil
}
