// StreamBoard - Media Stream Fleet Dashboard Runtime
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamboard

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// writeConfig writes a simulated-backend config with a persistent store
// under a temp directory.
func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := "simulated:\n" +
		"  enabled: true\n" +
		"  feed_interval: 0s\n" +
		"storage:\n" +
		"  path: " + filepath.Join(dir, "state") + "\n" +
		"console:\n" +
		"  enabled: false\n" +
		"logging:\n" +
		"  level: error\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(""))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.HasPrefix(out, "streamboard "+version) {
		t.Errorf("version output = %q", out)
	}
}

func TestThemeRoundTrip(t *testing.T) {
	cfg := writeConfig(t)

	if _, err := run(t, "-c", cfg, "theme", "set", "dark"); err != nil {
		t.Fatalf("theme set: %v", err)
	}
	out, err := run(t, "-c", cfg, "theme", "get")
	if err != nil {
		t.Fatalf("theme get: %v", err)
	}
	if strings.TrimSpace(out) != "dark" {
		t.Errorf("theme = %q, want dark", out)
	}

	if _, err := run(t, "-c", cfg, "theme", "set", "sepia"); err == nil {
		t.Error("theme set sepia succeeded, want error")
	}
}

func TestLoginPersistsAcrossCommands(t *testing.T) {
	cfg := writeConfig(t)

	if _, err := run(t, "-c", cfg, "streams"); err == nil {
		t.Fatal("streams before login succeeded, want error")
	}

	out, err := run(t, "-c", cfg, "login", "-u", "operator", "-p", "secret")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if !strings.Contains(out, "simulated backend") {
		t.Errorf("login output = %q", out)
	}

	out, err = run(t, "-c", cfg, "streams", "--status", "running")
	if err != nil {
		t.Fatalf("streams: %v", err)
	}
	if !strings.Contains(out, "lobby-cam") || strings.Contains(out, "parking-cam") {
		t.Errorf("streams --status running output:\n%s", out)
	}

	out, err = run(t, "-c", cfg, "logout")
	if err != nil {
		t.Fatalf("logout: %v", err)
	}
	if !strings.Contains(out, "Logged out") {
		t.Errorf("logout output = %q", out)
	}
	if _, err := run(t, "-c", cfg, "streams"); err == nil {
		t.Error("streams after logout succeeded, want error")
	}
}

func TestStreamsRejectsUnknownStatus(t *testing.T) {
	cfg := writeConfig(t)
	if _, err := run(t, "-c", cfg, "streams", "--status", "paused"); err == nil {
		t.Error("streams --status paused succeeded, want error")
	}
}
