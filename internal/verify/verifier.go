// Package verify checks that the v3 firmware sources are in place and that
// they build, then reports memory usage and feature flag signals.
package verify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"strings"

	"github.com/buckleypaul/boardswitch/internal/pio"
	"github.com/buckleypaul/boardswitch/internal/textscan"
)

// DefaultEnvironment is the build environment verified when none is configured.
const DefaultEnvironment = "esp32c3dev"

var (
	ErrMissingArtifact = errors.New("missing artifact")
	ErrCompileFailed   = errors.New("compile failed")
)

// Report is the result of one verification run. Only a missing artifact or
// a failed compile make Passed false; everything in Warnings is advisory.
type Report struct {
	Env         string
	Artifacts   []ArtifactStatus
	Compile     *pio.Result // nil when artifacts were missing
	Success     bool        // success marker seen in compile output
	MemoryLines []string
	Size        *pio.Result
	FeatureFlag bool
	Warnings    []string
	Passed      bool
	Err         error
}

// Missing returns the artifacts that were not found.
func (r *Report) Missing() []Artifact {
	var missing []Artifact
	for _, s := range r.Artifacts {
		if !s.Present {
			missing = append(missing, s.Artifact)
		}
	}
	return missing
}

func (r *Report) warn(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// Verifier runs the verification workflow.
type Verifier struct {
	tool      pio.Toolchain
	fsys      fs.FS
	checklist Checklist
	env       string
	markers   textscan.Markers
	log       *slog.Logger
}

type Option func(*Verifier)

func WithEnvironment(env string) Option {
	return func(v *Verifier) {
		if env != "" {
			v.env = env
		}
	}
}

func WithChecklist(c Checklist) Option {
	return func(v *Verifier) { v.checklist = c }
}

func WithMarkers(m textscan.Markers) Option {
	return func(v *Verifier) { v.markers = m }
}

func WithLogger(l *slog.Logger) Option {
	return func(v *Verifier) { v.log = l }
}

// New returns a Verifier that checks artifacts in fsys, normally
// os.DirFS(projectDir).
func New(tool pio.Toolchain, fsys fs.FS, opts ...Option) *Verifier {
	v := &Verifier{
		tool:      tool,
		fsys:      fsys,
		checklist: V3Checklist,
		env:       DefaultEnvironment,
		markers:   textscan.DefaultMarkers,
		log:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Run executes the workflow. It always returns a report; Report.Err holds
// the reason when Passed is false.
func (v *Verifier) Run(ctx context.Context) *Report {
	r := &Report{Env: v.env}
	log := v.log.With("env", v.env)

	statuses, ok := v.checklist.Check(v.fsys)
	r.Artifacts = statuses
	if !ok {
		var paths []string
		for _, a := range r.Missing() {
			paths = append(paths, a.Path)
		}
		r.Err = fmt.Errorf("%w: %s", ErrMissingArtifact, strings.Join(paths, ", "))
		log.Error("artifact check failed", "missing", len(paths))
		return r
	}
	log.Info("artifacts present", "count", len(statuses))

	res := v.tool.Compile(ctx, v.env)
	r.Compile = &res
	if !res.Succeeded() {
		r.Err = fmt.Errorf("%w for %s: %v", ErrCompileFailed, v.env, res.Failure())
		log.Error("compile failed", "exit_code", res.ExitCode, "err", res.Failure())
		return r
	}
	r.Passed = true
	output := res.Output()

	r.Success = textscan.Contains(output, v.markers.Success)
	if !r.Success {
		r.warn("compile output has no %q marker", v.markers.Success)
	}

	if lines, ok := textscan.Memory(output, v.markers); ok {
		r.MemoryLines = lines
	} else {
		r.warn("memory usage (%s / %s) not found in compile output", v.markers.RAM, v.markers.Flash)
	}

	size := v.tool.Probe(ctx, v.env, pio.SizeArgs()...)
	r.Size = &size
	if !size.Succeeded() {
		r.warn("size report failed: %v", size.Failure())
	}

	verbose := v.tool.Probe(ctx, v.env, pio.VerboseArgs()...)
	switch {
	case !verbose.Succeeded():
		r.warn("verbose build failed: %v", verbose.Failure())
	case textscan.Contains(verbose.Output(), v.markers.FeatureFlag):
		r.FeatureFlag = true
	default:
		r.warn("feature flag %s not found in verbose build", v.markers.FeatureFlag)
	}

	log.Info("verification finished", "passed", r.Passed, "warnings", len(r.Warnings))
	return r
}
