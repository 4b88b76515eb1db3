package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/buckleypaul/boardswitch/internal/app"
	"github.com/buckleypaul/boardswitch/internal/board"
	"github.com/buckleypaul/boardswitch/internal/config"
	"github.com/buckleypaul/boardswitch/internal/pio"
	"github.com/buckleypaul/boardswitch/internal/serial"
	"github.com/buckleypaul/boardswitch/internal/ui"
)

const installHint = "Install PlatformIO first: https://platformio.org/install"

// toolchain is what the commands need from PlatformIO.
type toolchain interface {
	pio.Toolchain
	DefaultEnvironments(ctx context.Context) ([]string, error)
}

// cli holds flag values and collaborators for one invocation. The function
// fields are replaced in tests.
type cli struct {
	in     io.Reader
	out    io.Writer
	errOut io.Writer

	projectDir string
	logLevel   string
	logFormat  string
	noColor    bool

	build   bool
	upload  bool
	monitor bool
	list    bool
	current bool
	quiet   bool

	cfg      config.Config
	log      *slog.Logger
	registry *board.Registry
	tool     toolchain

	newToolchain func(pio.Options) (toolchain, error)
	listPorts    func() ([]serial.PortInfo, error)
	pick         func(context.Context, *board.Registry, io.Reader, io.Writer) (string, error)
}

func newCLI(in io.Reader, out, errOut io.Writer) *cli {
	return &cli{
		in:     in,
		out:    out,
		errOut: errOut,
		newToolchain: func(opts pio.Options) (toolchain, error) {
			return pio.New(opts)
		},
		listPorts: serial.ListPorts,
		pick:      app.Pick,
	}
}

func (c *cli) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "boardswitch [board]",
		Short: "Switch PlatformIO board profiles and build, upload or monitor them",
		Long: `Switch between supported board profiles and optionally build, upload and
monitor the firmware for the selected board.

Examples:
  boardswitch --list                    # list supported boards
  boardswitch esp32c3                   # switch to ESP32-C3
  boardswitch esp32 --build             # switch to ESP32 and build
  boardswitch esp32c3 --build --upload  # switch, build and upload
  boardswitch esp32 --monitor           # switch and open the serial monitor`,
		Args:              cobra.MaximumNArgs(1),
		SilenceUsage:      true,
		SilenceErrors:     true,
		Version:           version,
		PersistentPreRunE: c.setup,
		ValidArgsFunction: c.completeBoards,
		RunE: func(cmd *cobra.Command, args []string) error {
			switch {
			case c.current:
				return c.showCurrent(cmd.Context())
			case c.list:
				return c.showList(cmd.Context())
			case len(args) == 0:
				return cmd.Help()
			}
			return c.switchBoard(cmd.Context(), args[0])
		},
	}
	root.SetIn(c.in)
	root.SetOut(c.out)
	root.SetErr(c.errOut)

	pf := root.PersistentFlags()
	pf.StringVarP(&c.projectDir, "project-dir", "d", "", "PlatformIO project directory (default: current directory)")
	pf.StringVar(&c.logLevel, "log-level", "", "log level: debug, info, warn or error")
	pf.StringVar(&c.logFormat, "log-format", "", "log format: text or json")
	pf.BoolVar(&c.noColor, "no-color", false, "disable coloured output")

	c.phaseFlags(root)
	root.Flags().BoolVar(&c.list, "list", false, "list supported boards")
	root.Flags().BoolVar(&c.current, "current", false, "show the project's current default environment")

	root.AddCommand(c.verifyCommand(), c.pickCommand(), c.portsCommand())
	return root
}

func (c *cli) phaseFlags(cmd *cobra.Command) {
	cmd.Flags().BoolVarP(&c.build, "build", "b", false, "build after switching")
	cmd.Flags().BoolVarP(&c.upload, "upload", "u", false, "upload after switching")
	cmd.Flags().BoolVarP(&c.monitor, "monitor", "m", false, "open the serial monitor after switching")
	cmd.Flags().BoolVarP(&c.quiet, "quiet", "q", false, "capture build output and show only its tail on failure")
}

// setup loads configuration, builds the logger and toolchain, and runs the
// PlatformIO liveness check unless the command opts out with the
// "skip-tool" annotation.
func (c *cli) setup(cmd *cobra.Command, _ []string) error {
	if c.projectDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return err
		}
		c.projectDir = wd
	}
	abs, err := filepath.Abs(c.projectDir)
	if err != nil {
		return err
	}
	c.projectDir = abs

	cfg, err := config.Load(c.projectDir)
	if err != nil {
		return err
	}
	c.cfg = cfg

	level, format := cfg.LogLevel, cfg.LogFormat
	if c.logLevel != "" {
		level = c.logLevel
	}
	if c.logFormat != "" {
		format = c.logFormat
	}
	c.log, err = newLogger(level, format, c.errOut)
	if err != nil {
		return &ExitError{Code: 1, Message: "error: " + err.Error()}
	}

	f, isFile := c.out.(*os.File)
	ui.SetColor(isFile && ui.ColorEnabled(f, c.noColor))

	c.registry, err = board.Builtin()
	if err != nil {
		return err
	}

	if cmd.Annotations["skip-tool"] == "true" {
		return nil
	}

	opts := pio.Options{
		Command:      cfg.Tool,
		ProjectDir:   c.projectDir,
		PenvPath:     cfg.PenvPath,
		ProbeTimeout: cfg.ProbeTimeout(),
		UploadPort:   cfg.UploadPort,
		MonitorPort:  cfg.MonitorPort,
		MonitorBaud:  cfg.MonitorBaud,
		Stdin:        c.in,
		Stdout:       c.out,
		Stderr:       c.errOut,
		Logger:       c.log,
	}
	if !c.quiet && cmd.Annotations["capture"] != "true" {
		opts.Echo = c.out
	}
	c.tool, err = c.newToolchain(opts)
	if err != nil {
		return err
	}

	toolVersion, err := pio.EnsureAvailable(cmd.Context(), c.tool)
	if err != nil {
		c.log.Debug("liveness check failed", "err", err)
		return &ExitError{Code: 1, Message: "error: " + pio.ErrToolUnavailable.Error() + "\n" + installHint}
	}
	fmt.Fprintln(c.out, ui.Banner(toolVersion))
	return nil
}

func (c *cli) completeBoards(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	reg, err := board.Builtin()
	if err != nil {
		return nil, cobra.ShellCompDirectiveError
	}
	return reg.Keys(), cobra.ShellCompDirectiveNoFileComp
}
