package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/buckleypaul/boardswitch/internal/pio"
)

const (
	DefaultMonitorBaud = 115200
	DefaultLogLevel    = "warn"
	DefaultLogFormat   = "text"
	DefaultVerifyEnv   = "esp32c3dev"
)

// Config holds all boardswitch configuration.
type Config struct {
	Tool                string `json:"tool,omitempty"`
	PenvPath            string `json:"penv_path,omitempty"`
	ProbeTimeoutSeconds int    `json:"probe_timeout_seconds,omitempty"`
	VerifyEnv           string `json:"verify_env,omitempty"`
	UploadPort          string `json:"upload_port,omitempty"`
	MonitorPort         string `json:"monitor_port,omitempty"`
	MonitorBaud         int    `json:"monitor_baud,omitempty"`
	LogLevel            string `json:"log_level,omitempty"`
	LogFormat           string `json:"log_format,omitempty"`
}

// Defaults returns a Config with default values.
func Defaults() Config {
	return Config{
		Tool:                pio.DefaultCommand,
		ProbeTimeoutSeconds: int(pio.DefaultProbeTimeout / time.Second),
		VerifyEnv:           DefaultVerifyEnv,
		MonitorBaud:         DefaultMonitorBaud,
		LogLevel:            DefaultLogLevel,
		LogFormat:           DefaultLogFormat,
	}
}

// ProbeTimeout returns the probe timeout as a duration.
func (c Config) ProbeTimeout() time.Duration {
	return time.Duration(c.ProbeTimeoutSeconds) * time.Second
}

// Paths returns the global and project config file locations, in merge order.
// The global path is omitted when the home directory is unknown.
func Paths(projectDir string) []string {
	var paths []string
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "boardswitch", "config.json"))
	}
	if projectDir != "" {
		paths = append(paths, filepath.Join(projectDir, ".boardswitch", "config.json"))
	}
	return paths
}

// Load reads and merges global and project configs.
// Order: defaults → global (~/.config/boardswitch/config.json) → project (.boardswitch/config.json).
// Missing files are skipped. A file that cannot be parsed is an error; the
// returned Config still carries everything merged before it.
func Load(projectDir string) (Config, error) {
	cfg := Defaults()
	for _, path := range Paths(projectDir) {
		if err := mergeFromFile(&cfg, path); err != nil {
			return cfg, err
		}
	}
	return cfg, nil
}

func mergeFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	var fileCfg Config
	if err := json.Unmarshal(data, &fileCfg); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}

	if fileCfg.Tool != "" {
		cfg.Tool = fileCfg.Tool
	}
	if fileCfg.PenvPath != "" {
		cfg.PenvPath = fileCfg.PenvPath
	}
	if fileCfg.ProbeTimeoutSeconds > 0 {
		cfg.ProbeTimeoutSeconds = fileCfg.ProbeTimeoutSeconds
	}
	if fileCfg.VerifyEnv != "" {
		cfg.VerifyEnv = fileCfg.VerifyEnv
	}
	if fileCfg.UploadPort != "" {
		cfg.UploadPort = fileCfg.UploadPort
	}
	if fileCfg.MonitorPort != "" {
		cfg.MonitorPort = fileCfg.MonitorPort
	}
	if fileCfg.MonitorBaud > 0 {
		cfg.MonitorBaud = fileCfg.MonitorBaud
	}
	if fileCfg.LogLevel != "" {
		cfg.LogLevel = fileCfg.LogLevel
	}
	if fileCfg.LogFormat != "" {
		cfg.LogFormat = fileCfg.LogFormat
	}
	return nil
}
