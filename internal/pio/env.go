package pio

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

// resolveCommand looks for a bare pio/platformio inside a Python virtual
// environment and, when found, returns its absolute path together with an
// environment whose PATH starts with the venv bin directory.
// Detection order: penvOverride → <project>/.venv → ~/.platformio/penv →
// system PATH (no modification).
func resolveCommand(argv []string, projectDir, penvOverride string) ([]string, []string) {
	name := argv[0]
	if name != "pio" && name != "platformio" {
		return argv, nil
	}

	candidates := []string{}
	if penvOverride != "" {
		candidates = append(candidates, penvOverride)
	}
	if projectDir != "" {
		candidates = append(candidates, filepath.Join(projectDir, ".venv"))
	}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".platformio", "penv"))
	}

	for _, venv := range candidates {
		binDir := venvBinDir(venv)
		bin := filepath.Join(binDir, exeName(name))
		if info, err := os.Stat(bin); err == nil && !info.IsDir() {
			resolved := append([]string{bin}, argv[1:]...)
			return resolved, buildEnvWithPath(binDir)
		}
	}
	return argv, nil
}

// venvBinDir returns the bin (or Scripts on Windows) directory for a venv.
func venvBinDir(venvPath string) string {
	if runtime.GOOS == "windows" {
		return filepath.Join(venvPath, "Scripts")
	}
	return filepath.Join(venvPath, "bin")
}

func exeName(name string) string {
	if runtime.GOOS == "windows" {
		return name + ".exe"
	}
	return name
}

// buildEnvWithPath creates a copy of the current environment with binDir
// prepended to PATH.
func buildEnvWithPath(binDir string) []string {
	env := os.Environ()
	result := make([]string, 0, len(env)+1)
	pathSet := false

	for _, e := range env {
		if strings.HasPrefix(e, "PATH=") {
			result = append(result, "PATH="+binDir+string(os.PathListSeparator)+e[5:])
			pathSet = true
		} else {
			result = append(result, e)
		}
	}

	if !pathSet {
		result = append(result, "PATH="+binDir)
	}

	return result
}

// applyEnv sets the environment and working directory on an exec.Cmd.
func (t *Tool) applyEnv(cmd *exec.Cmd) {
	if t.env != nil {
		cmd.Env = t.env
	}
	if t.dir != "" {
		cmd.Dir = t.dir
	}
}
