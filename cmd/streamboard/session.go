// StreamBoard - Media Stream Fleet Dashboard Runtime
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamboard

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tomtom215/streamboard/internal/app"
	"github.com/tomtom215/streamboard/internal/models"
	"github.com/tomtom215/streamboard/internal/session"
)

func newLoginCmd(c *cli) *cobra.Command {
	var username, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in to the control API and persist the session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if password == "" {
				password = os.Getenv("STREAMBOARD_PASSWORD")
			}
			if password == "" {
				p, err := readLine(cmd.InOrStdin(), cmd.ErrOrStderr(), "Password: ")
				if err != nil {
					return err
				}
				password = p
			}
			return c.withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				target, err := rt.Login(ctx, username, password)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s (%s backend), landing on %s\n", username, rt.Variant(), target)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "account name")
	cmd.Flags().StringVarP(&password, "password", "p", "", "password (default: $STREAMBOARD_PASSWORD or prompt)")
	_ = cmd.MarkFlagRequired("username")
	return cmd
}

func newLogoutCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the persisted session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withRuntime(cmd.Context(), func(_ context.Context, rt *app.Runtime) error {
				if rt.Logout() {
					fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
				} else {
					fmt.Fprintln(cmd.OutOrStdout(), "No active session")
				}
				return nil
			})
		},
	}
}

func newStreamsCmd(c *cli) *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "streams",
		Short: "Refresh and print the stream fleet",
		RunE: func(cmd *cobra.Command, _ []string) error {
			filter := models.StreamStatus(status)
			if filter != "" && !filter.Valid() {
				return fmt.Errorf("unknown status %q", status)
			}
			return c.withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				if err := rt.Refresh(ctx); err != nil {
					if errors.Is(err, session.ErrNotAuthenticated) {
						return errors.New("not logged in (run streamboard login)")
					}
					return err
				}
				return printStreams(cmd.OutOrStdout(), rt, filter)
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "only show streams in this status")
	return cmd
}

func printStreams(w io.Writer, rt *app.Runtime, filter models.StreamStatus) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tRECORDING\tFPS\tKBIT/S\tLAST ERROR")
	for _, s := range rt.Streams() {
		if filter != "" && s.Status != filter {
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.1f\t%.0f\t%s\n",
			s.ID, s.Status, s.RecordingState, s.Metrics.Framerate, s.Metrics.Bitrate, s.LastError)
	}
	return tw.Flush()
}

func newThemeCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "theme",
		Short: "Read or store the display theme",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "get",
		Short: "Print the stored theme",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withRuntime(cmd.Context(), func(_ context.Context, rt *app.Runtime) error {
				fmt.Fprintln(cmd.OutOrStdout(), rt.Theme())
				return nil
			})
		},
	}, &cobra.Command{
		Use:       "set THEME",
		Short:     "Store the theme (system, light or dark)",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"system", "light", "dark"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withRuntime(cmd.Context(), func(_ context.Context, rt *app.Runtime) error {
				return rt.SetTheme(args[0])
			})
		},
	})
	return cmd
}

func readLine(in io.Reader, prompt io.Writer, label string) (string, error) {
	fmt.Fprint(prompt, label)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read input: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
