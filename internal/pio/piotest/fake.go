// Package piotest provides a scripted pio.Toolchain for tests.
package piotest

import (
	"context"
	"strings"

	"github.com/buckleypaul/boardswitch/internal/pio"
)

// Call records one Toolchain invocation.
type Call struct {
	Op   string // version, compile, upload, monitor or probe
	Env  string
	Args []string
}

// Fake is a pio.Toolchain that returns canned results and records calls.
// Zero-valued results mean success with no output.
type Fake struct {
	VersionResult pio.Result
	CompileResult pio.Result
	UploadResult  pio.Result
	MonitorStatus pio.MonitorStatus
	MonitorErr    error

	// ProbeResults is keyed by the space-joined probe args, e.g. "-t size".
	ProbeResults map[string]pio.Result

	Calls []Call
}

var _ pio.Toolchain = (*Fake)(nil)

func (f *Fake) record(op, env string, args []string) {
	f.Calls = append(f.Calls, Call{Op: op, Env: env, Args: append([]string(nil), args...)})
}

func (f *Fake) Version(context.Context) pio.Result {
	f.record("version", "", nil)
	return f.VersionResult
}

func (f *Fake) Compile(_ context.Context, env string) pio.Result {
	f.record("compile", env, nil)
	return f.CompileResult
}

func (f *Fake) Upload(_ context.Context, env string) pio.Result {
	f.record("upload", env, nil)
	return f.UploadResult
}

func (f *Fake) Monitor(_ context.Context, env string) (pio.MonitorStatus, error) {
	f.record("monitor", env, nil)
	return f.MonitorStatus, f.MonitorErr
}

func (f *Fake) Probe(_ context.Context, env string, args ...string) pio.Result {
	f.record("probe", env, args)
	return f.ProbeResults[strings.Join(args, " ")]
}

// Count returns how many times op was called.
func (f *Fake) Count(op string) int {
	n := 0
	for _, c := range f.Calls {
		if c.Op == op {
			n++
		}
	}
	return n
}

// Ops returns the recorded operation names in call order.
func (f *Fake) Ops() []string {
	ops := make([]string, len(f.Calls))
	for i, c := range f.Calls {
		ops[i] = c.Op
	}
	return ops
}

// Failed returns a Result with the given exit code and output.
func Failed(code int, output string) pio.Result {
	return pio.Result{ExitCode: code, Stdout: output}
}

// TimedOut returns a Result tagged as a probe timeout.
func TimedOut() pio.Result {
	return pio.Result{ExitCode: -1, TimedOut: true}
}
