package pio

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

// fakePio writes an executable shell script standing in for pio and
// returns a command string that runs it.
func fakePio(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake pio scripts need a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "fake-pio")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatal(err)
	}
	return "'" + path + "'"
}

func newTestTool(t *testing.T, opts Options) *Tool {
	t.Helper()
	tool, err := New(opts)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return tool
}

func TestCompileCapturesOutput(t *testing.T) {
	tool := newTestTool(t, Options{Command: fakePio(t, `echo "args: $*"; echo "warning: x" >&2`)})

	res := tool.Compile(context.Background(), "esp32c3dev")
	if !res.Succeeded() {
		t.Fatalf("expected success, got %+v", res)
	}
	if !strings.Contains(res.Stdout, "args: run -e esp32c3dev") {
		t.Errorf("unexpected stdout %q", res.Stdout)
	}
	if !strings.Contains(res.Stderr, "warning: x") {
		t.Errorf("unexpected stderr %q", res.Stderr)
	}
	if !strings.Contains(res.Output(), "args:") || !strings.Contains(res.Output(), "warning:") {
		t.Errorf("expected combined output, got %q", res.Output())
	}
}

func TestCompileFailureReportsExitCode(t *testing.T) {
	tool := newTestTool(t, Options{Command: fakePio(t, "echo boom; exit 3")})

	res := tool.Compile(context.Background(), "esp32dev")
	if res.Succeeded() {
		t.Fatal("expected failure")
	}
	if res.ExitCode != 3 {
		t.Errorf("expected exit code 3, got %d", res.ExitCode)
	}
	if res.Err != nil {
		t.Errorf("expected no start error, got %v", res.Err)
	}
	if got := res.Failure().Error(); got != "exit code 3" {
		t.Errorf("unexpected failure text %q", got)
	}
}

func TestUploadPassesPort(t *testing.T) {
	tool := newTestTool(t, Options{
		Command:    fakePio(t, `echo "$*"`),
		UploadPort: "/dev/ttyUSB0",
	})

	res := tool.Upload(context.Background(), "esp32dev")
	want := "run -e esp32dev --target upload --upload-port /dev/ttyUSB0"
	if strings.TrimSpace(res.Stdout) != want {
		t.Fatalf("expected %q, got %q", want, res.Stdout)
	}
}

func TestUploadOmitsEmptyPort(t *testing.T) {
	tool := newTestTool(t, Options{Command: fakePio(t, `echo "$*"`)})

	res := tool.Upload(context.Background(), "esp32dev")
	if strings.Contains(res.Stdout, "--upload-port") {
		t.Fatalf("expected no --upload-port flag, got %q", res.Stdout)
	}
}

func TestProbeAppendsArgs(t *testing.T) {
	tool := newTestTool(t, Options{Command: fakePio(t, `echo "$*"`)})

	res := tool.Probe(context.Background(), "esp32c3dev", SizeArgs()...)
	if strings.TrimSpace(res.Stdout) != "run -e esp32c3dev -t size" {
		t.Fatalf("unexpected args %q", res.Stdout)
	}
}

func TestProbeTimeout(t *testing.T) {
	const timeout = 200 * time.Millisecond
	tool := newTestTool(t, Options{
		Command:      fakePio(t, "exec sleep 10"),
		ProbeTimeout: timeout,
	})

	start := time.Now()
	res := tool.Probe(context.Background(), "esp32c3dev", VerboseArgs()...)
	elapsed := time.Since(start)

	if !res.TimedOut {
		t.Fatalf("expected timeout, got %+v", res)
	}
	if res.Succeeded() {
		t.Error("a timed out probe must not succeed")
	}
	if limit := timeout + waitDelay + time.Second; elapsed > limit {
		t.Errorf("probe took %s, expected under %s", elapsed, limit)
	}
	if !strings.Contains(res.Failure().Error(), "timed out") {
		t.Errorf("unexpected failure text %q", res.Failure())
	}
}

func TestCompileHasNoTimeout(t *testing.T) {
	tool := newTestTool(t, Options{
		Command:      fakePio(t, "sleep 1; echo done"),
		ProbeTimeout: 100 * time.Millisecond,
	})

	res := tool.Compile(context.Background(), "esp32dev")
	if !res.Succeeded() || res.TimedOut {
		t.Fatalf("expected compile to outlive the probe timeout, got %+v", res)
	}
}

func TestCancelledContextIsNotATimeout(t *testing.T) {
	tool := newTestTool(t, Options{Command: fakePio(t, "exec sleep 10")})

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(100*time.Millisecond, cancel)

	res := tool.Probe(ctx, "esp32dev")
	if res.TimedOut {
		t.Error("expected cancellation, not a timeout")
	}
	if res.Err == nil {
		t.Error("expected Err to carry the cancellation")
	}
}

func TestMissingBinary(t *testing.T) {
	tool := newTestTool(t, Options{Command: filepath.Join(t.TempDir(), "no-such-pio")})

	res := tool.Version(context.Background())
	if res.Succeeded() {
		t.Fatal("expected failure")
	}
	if res.Err == nil {
		t.Fatal("expected a start error")
	}
	if res.ExitCode != -1 {
		t.Errorf("expected exit code -1, got %d", res.ExitCode)
	}
}

func TestEchoReceivesOutput(t *testing.T) {
	var echo bytes.Buffer
	tool := newTestTool(t, Options{
		Command: fakePio(t, `echo "Building..."; echo "oops" >&2`),
		Echo:    &echo,
	})

	res := tool.Compile(context.Background(), "esp32dev")
	if !strings.Contains(res.Stdout, "Building...") {
		t.Fatalf("expected output to still be captured, got %q", res.Stdout)
	}
	if !strings.Contains(echo.String(), "Building...") || !strings.Contains(echo.String(), "oops") {
		t.Errorf("expected echo to receive both streams, got %q", echo.String())
	}
}

func TestEchoSkipsProbes(t *testing.T) {
	var echo bytes.Buffer
	tool := newTestTool(t, Options{
		Command: fakePio(t, `echo "PlatformIO Core, version 6.1.16"`),
		Echo:    &echo,
	})

	tool.Version(context.Background())
	tool.Probe(context.Background(), "esp32dev", SizeArgs()...)
	if echo.Len() != 0 {
		t.Errorf("version and probe output should not be echoed, got %q", echo.String())
	}
}

func TestRunsInProjectDir(t *testing.T) {
	dir := t.TempDir()
	tool := newTestTool(t, Options{Command: fakePio(t, "pwd"), ProjectDir: dir})

	res := tool.Compile(context.Background(), "esp32dev")
	got, _ := filepath.EvalSymlinks(strings.TrimSpace(res.Stdout))
	want, _ := filepath.EvalSymlinks(dir)
	if got != want {
		t.Errorf("expected cwd %q, got %q", want, got)
	}
}

func TestMonitorCompleted(t *testing.T) {
	var out bytes.Buffer
	tool := newTestTool(t, Options{
		Command:     fakePio(t, `echo "$*"`),
		MonitorPort: "/dev/ttyACM0",
		MonitorBaud: 115200,
		Stdin:       strings.NewReader(""),
		Stdout:      &out,
		Stderr:      &out,
	})

	status, err := tool.Monitor(context.Background(), "esp32c3dev")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status != MonitorCompleted {
		t.Errorf("expected completed, got %s", status)
	}
	want := "device monitor -e esp32c3dev --port /dev/ttyACM0 --baud 115200"
	if strings.TrimSpace(out.String()) != want {
		t.Errorf("expected %q streamed to the terminal, got %q", want, out.String())
	}
}

func TestMonitorInterruptIsNotAnError(t *testing.T) {
	tool := newTestTool(t, Options{
		Command: fakePio(t, "exec sleep 10"),
		Stdin:   strings.NewReader(""),
		Stdout:  &bytes.Buffer{},
		Stderr:  &bytes.Buffer{},
	})

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(100*time.Millisecond, cancel)

	start := time.Now()
	status, err := tool.Monitor(ctx, "esp32c3dev")
	if err != nil {
		t.Fatalf("interrupt must not be an error, got %v", err)
	}
	if status != MonitorInterrupted {
		t.Errorf("expected interrupted, got %s", status)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("monitor took %s to stop", elapsed)
	}
}

func TestMonitorSignalExitCountsAsInterrupt(t *testing.T) {
	tool := newTestTool(t, Options{
		Command: fakePio(t, "exit 130"),
		Stdin:   strings.NewReader(""),
		Stdout:  &bytes.Buffer{},
		Stderr:  &bytes.Buffer{},
	})

	status, err := tool.Monitor(context.Background(), "esp32dev")
	if err != nil || status != MonitorInterrupted {
		t.Fatalf("expected interrupted/nil, got %s/%v", status, err)
	}
}

func TestMonitorStartFailure(t *testing.T) {
	tool := newTestTool(t, Options{Command: filepath.Join(t.TempDir(), "no-such-pio")})

	if _, err := tool.Monitor(context.Background(), "esp32dev"); err == nil {
		t.Fatal("expected start error")
	}
}

func TestFollowUpCommands(t *testing.T) {
	got := FollowUpCommands("esp32c3dev")
	want := []string{
		"pio run -e esp32c3dev",
		"pio run -e esp32c3dev --target upload",
		"pio device monitor -e esp32c3dev",
	}
	if strings.Join(got, "\n") != strings.Join(want, "\n") {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestNewSplitsCommand(t *testing.T) {
	tool := newTestTool(t, Options{Command: "python3 -m platformio"})
	if tool.Path() != "python3" {
		t.Errorf("expected python3, got %q", tool.Path())
	}
	if strings.Join(tool.argv, " ") != "python3 -m platformio" {
		t.Errorf("unexpected argv %v", tool.argv)
	}
	if tool.probeTimeout != DefaultProbeTimeout {
		t.Errorf("expected default probe timeout, got %s", tool.probeTimeout)
	}
}

func TestNewRejectsBadQuoting(t *testing.T) {
	if _, err := New(Options{Command: `pio "unterminated`}); err == nil {
		t.Fatal("expected parse error")
	}
}
