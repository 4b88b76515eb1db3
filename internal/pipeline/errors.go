package pipeline

import (
	"errors"
	"fmt"
	"strings"

	"github.com/buckleypaul/boardswitch/internal/board"
	"github.com/buckleypaul/boardswitch/internal/pio"
)

var (
	// ErrInvalidProfile means the requested board key is not in the registry.
	ErrInvalidProfile = errors.New("invalid profile")
	// ErrPhaseFailed means compile, upload or monitor did not succeed.
	ErrPhaseFailed = errors.New("phase failed")
)

// InvalidProfileError reports an unknown board key and the valid ones.
type InvalidProfileError struct {
	Key       string
	Available []string
}

func (e *InvalidProfileError) Error() string {
	return fmt.Sprintf("unsupported board %q (available: %s); use --list to see supported boards",
		e.Key, strings.Join(e.Available, ", "))
}

func (e *InvalidProfileError) Unwrap() []error {
	return []error{ErrInvalidProfile, board.ErrNotFound}
}

// PhaseError reports the phase that stopped the pipeline.
type PhaseError struct {
	Phase  Phase
	Env    string
	Result pio.Result
}

func (e *PhaseError) Error() string {
	return fmt.Sprintf("%s failed for %s: %v", e.Phase, e.Env, e.Result.Failure())
}

func (e *PhaseError) Unwrap() error { return ErrPhaseFailed }
