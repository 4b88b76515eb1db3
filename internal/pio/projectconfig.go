package pio

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrToolUnavailable means PlatformIO is missing or failed its version check.
var ErrToolUnavailable = errors.New("PlatformIO not found")

// EnsureAvailable runs the version check once. Nothing else is meaningful
// without a working tool, so callers treat an error here as fatal.
func EnsureAvailable(ctx context.Context, tc Toolchain) (string, error) {
	res := tc.Version(ctx)
	if !res.Succeeded() {
		return "", fmt.Errorf("%w: %v", ErrToolUnavailable, res.Failure())
	}
	return strings.TrimSpace(res.Stdout), nil
}

// DefaultEnvironments runs `pio project config` and returns the project's
// default_envs, or nil when none are set.
func (t *Tool) DefaultEnvironments(ctx context.Context) ([]string, error) {
	res := t.run(ctx, t.probeTimeout, nil, "project", "config")
	if !res.Succeeded() {
		return nil, fmt.Errorf("pio project config: %w", res.Failure())
	}
	return parseDefaultEnvs(res.Stdout), nil
}

// parseDefaultEnvs reads the default_envs option out of `pio project config`
// output. Values may be comma or whitespace separated.
func parseDefaultEnvs(output string) []string {
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "default_envs") {
			continue
		}
		_, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		return strings.FieldsFunc(value, func(r rune) bool {
			return r == ',' || r == ' ' || r == '\t'
		})
	}
	return nil
}
