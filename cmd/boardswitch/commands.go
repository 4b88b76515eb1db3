package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/buckleypaul/boardswitch/internal/app"
	"github.com/buckleypaul/boardswitch/internal/ui"
	"github.com/buckleypaul/boardswitch/internal/verify"
)

// --- verify ---

func (c *cli) verifyCommand() *cobra.Command {
	var env string
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check the v3 firmware sources and build them",
		Long: `Check that every v3 firmware source file exists, build the verification
environment, and report memory usage and the v3 feature flag.

Only missing files or a failed build fail the command; everything else is
reported as a warning.`,
		Args:        cobra.NoArgs,
		Annotations: map[string]string{"capture": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			if env == "" {
				env = c.cfg.VerifyEnv
			}
			v := verify.New(c.tool, os.DirFS(c.projectDir),
				verify.WithEnvironment(env),
				verify.WithLogger(c.log),
			)
			report := v.Run(cmd.Context())
			fmt.Fprintln(c.out, ui.VerifyReport(report, ui.DefaultWidth))
			if !report.Passed {
				return reported
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&env, "env", "e", "", "environment to build (default from config, esp32c3dev)")
	return cmd
}

// --- pick ---

func (c *cli) pickCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pick",
		Short: "Choose a board interactively, then switch to it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := c.pick(cmd.Context(), c.registry, c.in, c.out)
			if errors.Is(err, app.ErrCancelled) {
				fmt.Fprintln(c.out, ui.Info("No board selected"))
				return nil
			}
			if err != nil {
				return err
			}
			return c.switchBoard(cmd.Context(), key)
		},
	}
	c.phaseFlags(cmd)
	return cmd
}

// --- ports ---

func (c *cli) portsCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "ports",
		Short:       "List serial ports",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{"skip-tool": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			ports, err := c.listPorts()
			if err != nil {
				return fmt.Errorf("listing serial ports: %w", err)
			}
			configured := c.cfg.UploadPort
			if configured == "" {
				configured = c.cfg.MonitorPort
			}
			fmt.Fprintln(c.out, ui.Ports(ports, configured, ui.DefaultWidth))
			return nil
		},
	}
}
