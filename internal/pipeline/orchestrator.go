// Package pipeline sequences a board switch through the optional build,
// upload and monitor phases.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/buckleypaul/boardswitch/internal/board"
	"github.com/buckleypaul/boardswitch/internal/pio"
	"github.com/buckleypaul/boardswitch/internal/serial"
)

// Phase is one pipeline step.
type Phase string

const (
	PhaseBuild   Phase = "build"
	PhaseUpload  Phase = "upload"
	PhaseMonitor Phase = "monitor"
)

// Request is one orchestration invocation.
type Request struct {
	Profile string
	Build   bool
	Upload  bool
	Monitor bool
}

// Phases returns the requested phases in execution order.
func (r Request) Phases() []Phase {
	var phases []Phase
	if r.Build {
		phases = append(phases, PhaseBuild)
	}
	if r.Upload {
		phases = append(phases, PhaseUpload)
	}
	if r.Monitor {
		phases = append(phases, PhaseMonitor)
	}
	return phases
}

// PhaseResult records one executed phase. Monitor is only meaningful for
// PhaseMonitor, which has no captured Result.
type PhaseResult struct {
	Phase   Phase
	Result  pio.Result
	Monitor pio.MonitorStatus
}

// Outcome is what a run produced. It is returned alongside a PhaseError so
// callers can still show the phases that ran.
type Outcome struct {
	Profile  board.Profile
	Phases   []PhaseResult
	FollowUp []string
	Warnings []string
}

// PortLister enumerates serial ports. serial.ListPorts satisfies it.
type PortLister func() ([]serial.PortInfo, error)

// Orchestrator runs Requests against a registry and a toolchain.
type Orchestrator struct {
	registry *board.Registry
	tool     pio.Toolchain
	ports    PortLister
	port     string
	log      *slog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger used for progress lines.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) { o.log = l }
}

// WithPortCheck makes the orchestrator confirm that port is present before
// upload or monitor. A missing port is reported as a warning.
func WithPortCheck(port string, list PortLister) Option {
	return func(o *Orchestrator) {
		o.port = port
		o.ports = list
	}
}

// New returns an Orchestrator.
func New(reg *board.Registry, tool pio.Toolchain, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		registry: reg,
		tool:     tool,
		log:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run resolves req.Profile and executes the requested phases in order,
// stopping at the first build or upload failure. An unknown profile returns
// an *InvalidProfileError before any tool call.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*Outcome, error) {
	profile, err := o.registry.Lookup(req.Profile)
	if err != nil {
		return nil, &InvalidProfileError{Key: req.Profile, Available: o.registry.Keys()}
	}

	env := profile.Environment
	log := o.log.With("profile", profile.Key, "env", env)
	log.Info("board selected", "name", profile.Name, "phases", len(req.Phases()))

	out := &Outcome{Profile: profile}
	if req.Upload || req.Monitor {
		out.Warnings = append(out.Warnings, o.checkPort(ctx)...)
	}

	for _, phase := range req.Phases() {
		if phase == PhaseMonitor {
			status, err := o.tool.Monitor(ctx, env)
			if err != nil {
				log.Error("phase failed", "phase", phase, "err", err)
				res := pio.Result{ExitCode: -1, Err: err}
				out.Phases = append(out.Phases, PhaseResult{Phase: phase, Result: res})
				return out, &PhaseError{Phase: phase, Env: env, Result: res}
			}
			log.Info("monitor ended", "status", status)
			out.Phases = append(out.Phases, PhaseResult{Phase: phase, Monitor: status})
			continue
		}

		var res pio.Result
		if phase == PhaseBuild {
			res = o.tool.Compile(ctx, env)
		} else {
			res = o.tool.Upload(ctx, env)
		}
		out.Phases = append(out.Phases, PhaseResult{Phase: phase, Result: res})
		if !res.Succeeded() {
			log.Error("phase failed", "phase", phase, "exit_code", res.ExitCode, "err", res.Failure())
			return out, &PhaseError{Phase: phase, Env: env, Result: res}
		}
		log.Info("phase done", "phase", phase, "duration", res.Duration)
	}

	out.FollowUp = pio.FollowUpCommands(env)
	return out, nil
}

// checkPort is advisory; it never fails the run.
func (o *Orchestrator) checkPort(ctx context.Context) []string {
	if o.port == "" || o.ports == nil {
		return nil
	}
	ports, err := o.ports()
	if err != nil {
		o.log.WarnContext(ctx, "listing serial ports failed", "err", err)
		return []string{fmt.Sprintf("could not list serial ports: %v", err)}
	}
	if _, ok := serial.Find(ports, o.port); !ok {
		o.log.WarnContext(ctx, "configured serial port not present", "port", o.port)
		return []string{fmt.Sprintf("serial port %s is not connected", o.port)}
	}
	return nil
}
