package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/buckleypaul/boardswitch/internal/pipeline"
	"github.com/buckleypaul/boardswitch/internal/ui"
)

func (c *cli) showList(ctx context.Context) error {
	current := ""
	if envs, err := c.tool.DefaultEnvironments(ctx); err == nil && len(envs) > 0 {
		if p, ok := c.registry.ByEnvironment(envs[0]); ok {
			current = p.Key
		}
	}
	fmt.Fprintln(c.out, ui.ProfileList(c.registry.List(), current))
	return nil
}

// showCurrent never fails: an unreadable project config is reported the same
// way as a missing default.
func (c *cli) showCurrent(ctx context.Context) error {
	envs, err := c.tool.DefaultEnvironments(ctx)
	if err != nil {
		c.log.Debug("reading project config failed", "err", err)
	}
	if len(envs) == 0 {
		fmt.Fprintln(c.out, ui.Info("No default environment detected"))
		return nil
	}

	fmt.Fprintln(c.out, ui.Info("Current default environment: "+ui.CodeStyle.Render(strings.Join(envs, ", "))))
	if p, ok := c.registry.ByEnvironment(envs[0]); ok {
		fmt.Fprintln(c.out, ui.ProfileCard(p, ui.DefaultWidth))
	}
	return nil
}

func (c *cli) request(key string) pipeline.Request {
	return pipeline.Request{Profile: key, Build: c.build, Upload: c.upload, Monitor: c.monitor}
}

func (c *cli) switchBoard(ctx context.Context, key string) error {
	port := c.cfg.UploadPort
	if c.monitor && !c.upload && c.cfg.MonitorPort != "" {
		port = c.cfg.MonitorPort
	}
	orch := pipeline.New(c.registry, c.tool,
		pipeline.WithLogger(c.log),
		pipeline.WithPortCheck(port, c.listPorts),
	)

	req := c.request(key)
	if req.Monitor {
		fmt.Fprintln(c.out, ui.Info("Starting serial monitor, press Ctrl+C to exit"))
	}
	out, err := orch.Run(ctx, req)

	var invalid *pipeline.InvalidProfileError
	var phaseErr *pipeline.PhaseError
	switch {
	case errors.As(err, &invalid):
		fmt.Fprintln(c.errOut, ui.Fail(fmt.Sprintf("Unsupported board: %s", invalid.Key)))
		fmt.Fprintln(c.errOut, ui.Info("Available: "+strings.Join(invalid.Available, ", ")+". Use --list to see supported boards."))
		return reported
	case errors.As(err, &phaseErr):
		for _, w := range out.Warnings {
			fmt.Fprintln(c.errOut, ui.Warn(w))
		}
		if c.quiet {
			fmt.Fprintln(c.errOut, ui.PhaseFailure(phaseErr, ui.DefaultWidth))
		} else {
			fmt.Fprintln(c.errOut, ui.Fail(phaseErr.Error()))
		}
		return reported
	case err != nil:
		return err
	}

	fmt.Fprintln(c.out, ui.Outcome(out, ui.DefaultWidth))
	return nil
}
