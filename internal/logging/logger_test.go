// StreamBoard - Media Stream Fleet Dashboard Runtime
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamboard

package logging

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/rs/zerolog"
)

// captureLogs swaps the global logger for one writing to a buffer.
func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := Logger()
	prevLevel := zerolog.GlobalLevel()
	SetLogger(NewTestLogger(&buf))
	zerolog.SetGlobalLevel(zerolog.TraceLevel)
	t.Cleanup(func() {
		SetLogger(prev)
		zerolog.SetGlobalLevel(prevLevel)
	})
	return &buf
}

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	if cfg.Level != "info" {
		t.Errorf("expected default level 'info', got '%s'", cfg.Level)
	}
	if cfg.Format != "json" {
		t.Errorf("expected default format 'json', got '%s'", cfg.Format)
	}
	if !cfg.Timestamp {
		t.Error("expected default timestamp to be true")
	}
}

func TestInit(t *testing.T) {
	var buf bytes.Buffer
	prev := Logger()
	defer SetLogger(prev)

	Init(Config{Level: "debug", Format: "json", Timestamp: true, Output: &buf})
	Info().Msg("runtime starting")

	output := buf.String()
	if !strings.Contains(output, "runtime starting") {
		t.Errorf("expected output to contain message, got: %s", output)
	}
	if !strings.Contains(output, `"level":"info"`) {
		t.Errorf("expected output to contain level, got: %s", output)
	}
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input    string
		expected zerolog.Level
	}{
		{"trace", zerolog.TraceLevel},
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"disabled", zerolog.Disabled},
		{"DEBUG", zerolog.DebugLevel},
		{"bogus", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()
			if got := parseLevel(tt.input); got != tt.expected {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestValidLevel(t *testing.T) {
	t.Parallel()

	if !ValidLevel("Warn") {
		t.Error("expected Warn to be valid")
	}
	if ValidLevel("verbose") {
		t.Error("expected verbose to be invalid")
	}
}

func TestCtx_CorrelationID(t *testing.T) {
	buf := captureLogs(t)

	ctx := ContextWithCorrelationID(context.Background(), "abc12345")
	Ctx(ctx).Info().Msg("refresh applied")

	if !strings.Contains(buf.String(), `"correlation_id":"abc12345"`) {
		t.Errorf("expected correlation id in output, got: %s", buf.String())
	}
	if got := CorrelationIDFromContext(context.Background()); got != "" {
		t.Errorf("expected empty correlation id, got %q", got)
	}
	if id := CorrelationIDFromContext(ContextWithNewCorrelationID(context.Background())); len(id) != 8 {
		t.Errorf("expected 8 character id, got %q", id)
	}
}

func TestSlogHandler(t *testing.T) {
	buf := captureLogs(t)

	logger := NewSlogLogger().With("service", "eventstream").WithGroup("supervisor")
	logger.Warn("service restarting", slog.Int("failures", 3), slog.Bool("backoff", true))

	output := buf.String()
	for _, want := range []string{
		`"level":"warn"`,
		`"service":"eventstream"`,
		`"supervisor.failures":3`,
		`"supervisor.backoff":true`,
		"service restarting",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %s in output, got: %s", want, output)
		}
	}
}

func TestSlogHandler_AttrsKeepTheirGroup(t *testing.T) {
	buf := captureLogs(t)

	logger := NewSlogLogger().
		With("service", "live-hub").
		WithGroup("supervisor").
		With("restarts", 2).
		WithGroup("backoff")
	logger.Error("giving up", slog.String("reason", "threshold"))

	output := buf.String()
	for _, want := range []string{
		`"service":"live-hub"`,
		`"supervisor.restarts":2`,
		`"supervisor.backoff.reason":"threshold"`,
	} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %s in output, got: %s", want, output)
		}
	}
	if strings.Contains(output, "supervisor.service") || strings.Contains(output, "backoff.restarts") {
		t.Errorf("attribute picked up a later group: %s", output)
	}
}

func TestSlogLevelMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   slog.Level
		want zerolog.Level
	}{
		{slog.LevelDebug, zerolog.DebugLevel},
		{slog.LevelInfo, zerolog.InfoLevel},
		{slog.LevelWarn, zerolog.WarnLevel},
		{slog.LevelError, zerolog.ErrorLevel},
		{slog.LevelError + 4, zerolog.ErrorLevel},
	}
	for _, tt := range tests {
		if got := slogLevel(tt.in); got != tt.want {
			t.Errorf("slogLevel(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestWatermillAdapter(t *testing.T) {
	buf := captureLogs(t)

	adapter := NewWatermillAdapter().With(watermill.LogFields{"topic": "auth.failed"})
	adapter.Error("publish failed", errors.New("closed"), watermill.LogFields{"message_uuid": "m1"})
	adapter.Debug("subscribed", nil)

	output := buf.String()
	for _, want := range []string{
		`"component":"notify"`,
		`"topic":"auth.failed"`,
		`"message_uuid":"m1"`,
		`"error":"closed"`,
		"subscribed",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %s in output, got: %s", want, output)
		}
	}
}

func TestSessionLogger_RedactsToken(t *testing.T) {
	buf := captureLogs(t)

	NewSessionLogger().LogEvent(&SessionEvent{
		Event:  "logout",
		Reason: "idle_timeout",
		Token:  "eyJhbGciOiJIUzI1NiJ9.secret",
	})

	output := buf.String()
	if strings.Contains(output, "secret") {
		t.Errorf("token leaked into log: %s", output)
	}
	if !strings.Contains(output, `"token":"eyJh...[REDACTED]"`) {
		t.Errorf("expected redacted token, got: %s", output)
	}
	if !strings.Contains(output, `"reason":"idle_timeout"`) {
		t.Errorf("expected reason, got: %s", output)
	}
}

func TestRedactToken_Short(t *testing.T) {
	t.Parallel()
	if got := RedactToken("abc"); got != "[REDACTED]" {
		t.Errorf("RedactToken(short) = %q", got)
	}
}
