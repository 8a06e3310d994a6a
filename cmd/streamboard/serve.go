// StreamBoard - Media Stream Fleet Dashboard Runtime
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamboard

package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/thejerf/suture/v4"

	"github.com/tomtom215/streamboard/internal/app"
	"github.com/tomtom215/streamboard/internal/console"
	"github.com/tomtom215/streamboard/internal/logging"
	"github.com/tomtom215/streamboard/internal/supervisor/services"
	ws "github.com/tomtom215/streamboard/internal/websocket"
)

func newServeCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the runtime and the operator console",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return c.serve(ctx)
		},
	}
}

func (c *cli) serve(ctx context.Context) error {
	cfg := c.cfg
	logging.Info().
		Bool("simulated", cfg.Simulated.Enabled).
		Str("api_url", cfg.API.BaseURL).
		Bool("console", cfg.Console.Enabled).
		Msg("Starting StreamBoard with supervisor tree")

	rt, err := app.New(ctx, cfg, app.Options{})
	if err != nil {
		return err
	}
	if err := rt.Start(ctx); err != nil {
		return c.shutdown(rt, fmt.Errorf("start runtime: %w", err))
	}

	if cfg.Console.Enabled {
		hub := ws.NewHub(console.OriginAllowed(cfg.Console))
		publisher := ws.NewStatePublisher(hub, console.LiveSnapshot(rt))
		server := &http.Server{
			Addr:              cfg.Console.ListenAddr,
			Handler:           console.NewRouter(rt, cfg.Console, hub),
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		}
		for _, svc := range []suture.Service{
			hub,
			services.NewTickerService("live-state", cfg.Console.LiveInterval, publisher.Tick),
			services.NewHTTPServerService("console", server, 10*time.Second),
		} {
			if err := rt.AddConsoleService(svc); err != nil {
				return c.shutdown(rt, err)
			}
		}
		logging.Info().Str("addr", cfg.Console.ListenAddr).Msg("Console listening")
	} else {
		logging.Info().Msg("Console disabled")
	}

	<-ctx.Done()
	logging.Info().Msg("Shutdown signal received")
	return c.shutdown(rt, nil)
}

func (c *cli) shutdown(rt *app.Runtime, cause error) error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := rt.Shutdown(ctx); err != nil {
		logging.Error().Err(err).Msg("Runtime shutdown incomplete")
		if cause == nil {
			cause = err
		}
	}
	if cause == nil {
		logging.Info().Msg("StreamBoard stopped")
	}
	return cause
}
