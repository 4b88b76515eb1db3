package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/buckleypaul/boardswitch/internal/app"
	"github.com/buckleypaul/boardswitch/internal/board"
	"github.com/buckleypaul/boardswitch/internal/pio"
	"github.com/buckleypaul/boardswitch/internal/pio/piotest"
	"github.com/buckleypaul/boardswitch/internal/serial"
	"github.com/buckleypaul/boardswitch/internal/verify"
)

type fakeTool struct {
	*piotest.Fake
	envs   []string
	envErr error
}

func (f *fakeTool) DefaultEnvironments(context.Context) ([]string, error) {
	return f.envs, f.envErr
}

func newFakeTool() *fakeTool {
	return &fakeTool{Fake: &piotest.Fake{
		VersionResult: pio.Result{Stdout: "PlatformIO Core, version 6.1.16\n"},
	}}
}

type harness struct {
	cli     *cli
	tool    *fakeTool
	opts    *pio.Options // last options passed to newToolchain
	project string
	out     bytes.Buffer
	errOut  bytes.Buffer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	if runtime.GOOS == "windows" {
		t.Setenv("USERPROFILE", home)
	}

	h := &harness{tool: newFakeTool(), project: t.TempDir()}
	h.cli = newCLI(strings.NewReader(""), &h.out, &h.errOut)
	h.cli.newToolchain = func(opts pio.Options) (toolchain, error) {
		h.opts = &opts
		return h.tool, nil
	}
	h.cli.listPorts = func() ([]serial.PortInfo, error) {
		return []serial.PortInfo{{Name: "/dev/ttyACM0", IsUSB: true, VID: "303A", PID: "1001"}}, nil
	}
	h.cli.pick = func(context.Context, *board.Registry, io.Reader, io.Writer) (string, error) {
		return "", app.ErrCancelled
	}
	return h
}

func (h *harness) execute(args ...string) error {
	root := h.cli.rootCommand()
	root.SetArgs(append([]string{"--project-dir", h.project}, args...))
	return root.ExecuteContext(context.Background())
}

func (h *harness) writeProjectConfig(t *testing.T, body string) {
	t.Helper()
	dir := filepath.Join(h.project, ".boardswitch")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config.json"), []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return 1
}

func TestLivenessFailureIsFatal(t *testing.T) {
	h := newHarness(t)
	h.tool.VersionResult = piotest.Failed(127, "")

	err := h.execute("esp32c3", "--build")
	if exitCode(err) != 1 {
		t.Fatalf("expected exit 1, got %v", err)
	}
	if !strings.Contains(err.Error(), "error: PlatformIO not found") || !strings.Contains(err.Error(), "platformio.org/install") {
		t.Errorf("unexpected message %q", err.Error())
	}
	if got := strings.Join(h.tool.Ops(), ","); got != "version" {
		t.Errorf("only the version check should run, got %q", got)
	}
}

func TestSwitchBuild(t *testing.T) {
	h := newHarness(t)

	if err := h.execute("esp32c3", "--build"); err != nil {
		t.Fatalf("execute: %v", err)
	}
	out := h.out.String()
	for _, want := range []string{
		"PlatformIO Core, version 6.1.16",
		"Switched to ESP32-C3 DevKit",
		"esp32c3dev",
		"GPIO8",
		"pio run -e esp32c3dev --target upload",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if got := strings.Join(h.tool.Ops(), ","); got != "version,compile" {
		t.Errorf("unexpected calls %q", got)
	}
	if h.opts.Echo == nil {
		t.Error("build output should be echoed by default")
	}
}

func TestSwitchUnknownBoard(t *testing.T) {
	h := newHarness(t)

	err := h.execute("bogus", "--build", "--upload")
	if exitCode(err) != 1 {
		t.Fatalf("expected exit 1, got %v", err)
	}
	if !strings.Contains(h.errOut.String(), "bogus") || !strings.Contains(h.errOut.String(), "--list") {
		t.Errorf("expected guidance naming the key:\n%s", h.errOut.String())
	}
	if got := strings.Join(h.tool.Ops(), ","); got != "version" {
		t.Errorf("no pipeline calls expected, got %q", got)
	}
}

func TestSwitchBuildFailure(t *testing.T) {
	h := newHarness(t)
	h.tool.CompileResult = piotest.Failed(1, "src/main.cpp:1: error: boom")

	err := h.execute("esp32", "--build", "--upload", "--monitor")
	if exitCode(err) != 1 {
		t.Fatalf("expected exit 1, got %v", err)
	}
	if h.tool.Count("upload") != 0 || h.tool.Count("monitor") != 0 {
		t.Errorf("nothing should run after a failed build: %v", h.tool.Ops())
	}
	if !strings.Contains(h.errOut.String(), "build failed for esp32dev") {
		t.Errorf("missing failure line:\n%s", h.errOut.String())
	}
	if strings.Contains(h.errOut.String(), "error: boom") {
		t.Error("echoed output should not be repeated")
	}
}

func TestSwitchQuietShowsTail(t *testing.T) {
	h := newHarness(t)
	h.tool.UploadResult = piotest.Failed(1, "A fatal error occurred: Failed to connect")

	err := h.execute("esp32", "--upload", "--quiet")
	if exitCode(err) != 1 {
		t.Fatalf("expected exit 1, got %v", err)
	}
	if h.opts.Echo != nil {
		t.Error("--quiet should disable echo")
	}
	if !strings.Contains(h.errOut.String(), "Failed to connect") {
		t.Errorf("expected output tail:\n%s", h.errOut.String())
	}
}

func TestSwitchMonitorWarnsAboutMissingPort(t *testing.T) {
	h := newHarness(t)
	h.writeProjectConfig(t, `{"monitor_port": "/dev/ttyUSB3"}`)
	h.tool.MonitorStatus = pio.MonitorInterrupted

	if err := h.execute("esp32c3", "--monitor"); err != nil {
		t.Fatalf("execute: %v", err)
	}
	out := h.out.String()
	if !strings.Contains(out, "/dev/ttyUSB3 is not connected") {
		t.Errorf("expected port warning:\n%s", out)
	}
	if !strings.Contains(out, "monitor interrupted") {
		t.Errorf("expected monitor status:\n%s", out)
	}
	if h.opts.MonitorPort != "/dev/ttyUSB3" {
		t.Errorf("monitor port not passed to the tool: %q", h.opts.MonitorPort)
	}
}

func TestListIgnoresPhaseFlags(t *testing.T) {
	h := newHarness(t)
	h.tool.envs = []string{"esp32dev"}

	if err := h.execute("--list", "--build"); err != nil {
		t.Fatal(err)
	}
	out := h.out.String()
	if !strings.Contains(out, "esp32c3") || !strings.Contains(out, "* esp32") {
		t.Errorf("expected both boards with esp32 marked:\n%s", out)
	}
	if h.tool.Count("compile") != 0 {
		t.Error("--list must not build")
	}
}

func TestCurrentWinsOverList(t *testing.T) {
	h := newHarness(t)
	h.tool.envs = []string{"esp32c3dev"}

	if err := h.execute("--current", "--list"); err != nil {
		t.Fatal(err)
	}
	out := h.out.String()
	if !strings.Contains(out, "Current default environment: esp32c3dev") {
		t.Errorf("expected current env:\n%s", out)
	}
	if !strings.Contains(out, "ESP32-C3 DevKit") {
		t.Errorf("expected matching profile card:\n%s", out)
	}
	if strings.Contains(out, "Supported boards") {
		t.Error("--current should short-circuit --list")
	}
}

func TestCurrentWithoutDefault(t *testing.T) {
	h := newHarness(t)
	h.tool.envErr = errors.New("not a PlatformIO project")

	if err := h.execute("--current"); err != nil {
		t.Fatalf("--current is informational and should not fail: %v", err)
	}
	if !strings.Contains(h.out.String(), "No default environment detected") {
		t.Errorf("unexpected output:\n%s", h.out.String())
	}
}

func TestNoArgsPrintsHelp(t *testing.T) {
	h := newHarness(t)

	if err := h.execute(); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(h.out.String(), "Usage:") {
		t.Errorf("expected help:\n%s", h.out.String())
	}
}

func TestPortsSkipsLivenessCheck(t *testing.T) {
	h := newHarness(t)
	h.writeProjectConfig(t, `{"upload_port": "/dev/ttyACM0"}`)

	if err := h.execute("ports"); err != nil {
		t.Fatal(err)
	}
	if h.opts != nil {
		t.Error("ports should not build a toolchain")
	}
	if !strings.Contains(h.out.String(), "* /dev/ttyACM0") {
		t.Errorf("expected configured port marked:\n%s", h.out.String())
	}
}

func TestVerifyMissingArtifacts(t *testing.T) {
	h := newHarness(t)

	err := h.execute("verify")
	if exitCode(err) != 1 {
		t.Fatalf("expected exit 1, got %v", err)
	}
	if h.tool.Count("compile") != 0 {
		t.Error("compile must not run when artifacts are missing")
	}
	if !strings.Contains(h.out.String(), "FAIL") {
		t.Errorf("expected failure verdict:\n%s", h.out.String())
	}
}

func TestVerifyPasses(t *testing.T) {
	h := newHarness(t)
	for _, a := range verify.V3Checklist {
		path := filepath.Join(h.project, filepath.FromSlash(a.Path))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	h.tool.CompileResult = pio.Result{Stdout: "RAM:   [=  ] 11.2%\nFlash: [== ] 29.8%\n[SUCCESS]"}

	if err := h.execute("verify", "--env", "esp32dev"); err != nil {
		t.Fatalf("verify: %v\n%s", err, h.out.String())
	}
	if h.opts.Echo != nil {
		t.Error("verify captures output")
	}
	if h.tool.Calls[1].Op != "compile" || h.tool.Calls[1].Env != "esp32dev" {
		t.Errorf("unexpected calls %+v", h.tool.Calls)
	}
	out := h.out.String()
	if !strings.Contains(out, "PASS") || !strings.Contains(out, "Flash: [== ] 29.8%") {
		t.Errorf("unexpected report:\n%s", out)
	}
}

func TestPickSwitchesToChoice(t *testing.T) {
	h := newHarness(t)
	h.cli.pick = func(context.Context, *board.Registry, io.Reader, io.Writer) (string, error) {
		return "esp32", nil
	}

	if err := h.execute("pick", "--build"); err != nil {
		t.Fatal(err)
	}
	if h.tool.Count("compile") != 1 || h.tool.Calls[1].Env != "esp32dev" {
		t.Errorf("expected esp32dev build, got %+v", h.tool.Calls)
	}
}

func TestPickCancelled(t *testing.T) {
	h := newHarness(t)

	if err := h.execute("pick", "--build"); err != nil {
		t.Fatalf("cancelling the picker is not a failure: %v", err)
	}
	if h.tool.Count("compile") != 0 {
		t.Error("nothing should build after cancelling")
	}
}

func TestInvalidLogLevel(t *testing.T) {
	h := newHarness(t)

	err := h.execute("--log-level", "loud", "--list")
	if exitCode(err) != 1 || !strings.Contains(err.Error(), "invalid log-level") {
		t.Fatalf("expected invalid log-level error, got %v", err)
	}
}

func TestRunVersion(t *testing.T) {
	var out bytes.Buffer
	if err := run(context.Background(), []string{"--version"}, strings.NewReader(""), &out, io.Discard); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "boardswitch version dev") {
		t.Errorf("unexpected version output %q", out.String())
	}
}
