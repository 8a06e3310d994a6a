// StreamBoard - Media Stream Fleet Dashboard Runtime
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamboard

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/tomtom215/streamboard/internal/app"
	"github.com/tomtom215/streamboard/internal/config"
	"github.com/tomtom215/streamboard/internal/logging"
)

// Build information, set via -ldflags.
var (
	version = "dev"
	commit  = "none"
)

const shutdownTimeout = 15 * time.Second

// cli carries state shared by all subcommands.
type cli struct {
	configPath string
	simulated  bool
	logLevel   string
	cfg        *config.Config
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:           "streamboard",
		Short:         "Live dashboard runtime for a media stream fleet",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.loadConfig(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&c.configPath, "config", "c", "", "path to config file")
	flags.BoolVar(&c.simulated, "simulated", false, "use the in-process simulated backend")
	flags.StringVar(&c.logLevel, "log-level", "", "override logging.level")

	root.AddCommand(
		newServeCmd(c),
		newLoginCmd(c),
		newLogoutCmd(c),
		newStreamsCmd(c),
		newThemeCmd(c),
		newVersionCmd(),
	)
	return root
}

func (c *cli) loadConfig(cmd *cobra.Command) error {
	var (
		cfg *config.Config
		err error
	)
	if c.configPath != "" {
		cfg, err = config.LoadFile(c.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	if cmd.Flags().Changed("simulated") {
		cfg.Simulated.Enabled = c.simulated
	}
	if c.logLevel != "" {
		cfg.Logging.Level = c.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
	})
	c.cfg = cfg
	return nil
}

// withRuntime starts a runtime, runs fn and shuts the runtime down.
func (c *cli) withRuntime(ctx context.Context, fn func(ctx context.Context, rt *app.Runtime) error) error {
	rt, err := app.New(ctx, c.cfg, app.Options{})
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := rt.Shutdown(sctx); err != nil {
			logging.Warn().Err(err).Msg("Runtime shutdown incomplete")
		}
	}()

	if err := rt.Start(ctx); err != nil {
		return fmt.Errorf("start runtime: %w", err)
	}
	return fn(ctx, rt)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		// No configuration needed.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "streamboard %s (%s)\n", version, commit)
		},
	}
}
