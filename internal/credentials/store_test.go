// StreamBoard - Media Stream Fleet Dashboard Runtime
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamboard

package credentials

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func openTestStore(t *testing.T, opts Options) *Store {
	t.Helper()
	s, err := Open(opts)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func checkToken(t *testing.T, s *Store, want string, wantOK bool) {
	t.Helper()
	got, ok := s.LoadToken()
	if ok != wantOK || got != want {
		t.Errorf("LoadToken() = (%q, %v), want (%q, %v)", got, ok, want, wantOK)
	}
}

func TestStore_RoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		opts func(t *testing.T) Options
	}{
		{"durable", func(t *testing.T) Options { return Options{Path: t.TempDir()} }},
		{"in memory", func(*testing.T) Options { return Options{InMemory: true} }},
		{"encrypted", func(t *testing.T) Options { return Options{Path: t.TempDir(), EncryptionKey: testSecret} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := openTestStore(t, tt.opts(t))

			checkToken(t, s, "", false)
			s.SaveToken("tok-123")
			checkToken(t, s, "tok-123", true)
			s.ClearToken()
			checkToken(t, s, "", false)
		})
	}
}

func TestStore_SurvivesRestart(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	s, err := Open(Options{Path: dir, EncryptionKey: testSecret})
	if err != nil {
		t.Fatal(err)
	}
	if !s.Durable() {
		t.Error("expected durable store")
	}
	s.SaveToken("persisted")
	if err := s.SetTheme(ThemeDark); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	reopened := openTestStore(t, Options{Path: dir, EncryptionKey: testSecret})
	checkToken(t, reopened, "persisted", true)
	if got := reopened.Theme(); got != ThemeDark {
		t.Errorf("Theme() = %q, want dark", got)
	}
}

func TestStore_KeyChangeDiscardsToken(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	s, err := Open(Options{Path: dir, EncryptionKey: testSecret})
	if err != nil {
		t.Fatal(err)
	}
	s.SaveToken("sealed-token")
	_ = s.Close()

	other := openTestStore(t, Options{Path: dir, EncryptionKey: strings.Repeat("z", 32)})
	checkToken(t, other, "", false)
}

func TestStore_DegradesWhenPathUnusable(t *testing.T) {
	t.Parallel()

	// A regular file where the badger directory should be.
	path := filepath.Join(t.TempDir(), "not-a-dir")
	if err := os.WriteFile(path, []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}

	s := openTestStore(t, Options{Path: path})
	if s.Durable() {
		t.Error("expected non-durable store after open failure")
	}
	s.SaveToken("memory-only")
	checkToken(t, s, "memory-only", true)
}

func TestStore_Preferences(t *testing.T) {
	t.Parallel()
	s := openTestStore(t, Options{InMemory: true})

	if got := s.Theme(); got != ThemeSystem {
		t.Errorf("default Theme() = %q, want system", got)
	}
	if err := s.SetTheme("neon"); err == nil {
		t.Error("expected error for unknown theme")
	}
	if err := s.SetTheme(ThemeLight); err != nil {
		t.Fatal(err)
	}
	s.SaveToken("tok")

	s.ClearPreferences()
	if got := s.Theme(); got != ThemeSystem {
		t.Errorf("Theme() after clear = %q, want system", got)
	}
	checkToken(t, s, "tok", true)
}

func TestEncryptor(t *testing.T) {
	t.Parallel()

	enc, err := NewEncryptor(testSecret)
	if err != nil {
		t.Fatal(err)
	}
	sealed, err := enc.Seal("secret-token")
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(sealed, "secret-token") {
		t.Error("sealed value contains plaintext")
	}
	opened, err := enc.Open(sealed)
	if err != nil || opened != "secret-token" {
		t.Errorf("Open() = (%q, %v)", opened, err)
	}
	if _, err := enc.Open("!!!"); err == nil {
		t.Error("expected error for invalid ciphertext")
	}

	if _, err := NewEncryptor("short"); err == nil {
		t.Error("expected error for short secret")
	}
	disabled, err := NewEncryptor("")
	if err != nil || disabled.Enabled() {
		t.Errorf("empty secret should disable encryption, got %v, %v", disabled, err)
	}
	if v, _ := disabled.Seal("plain"); v != "plain" {
		t.Errorf("disabled Seal() = %q", v)
	}
}

func TestStore_SigningKeySurvivesRestart(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		secret string
	}{
		{"plain", ""},
		{"encrypted", testSecret},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			dir := t.TempDir()

			s, err := Open(Options{Path: dir, EncryptionKey: tt.secret})
			if err != nil {
				t.Fatal(err)
			}
			key, err := s.SigningKey()
			if err != nil || len(key) != signingKeyLen {
				t.Fatalf("SigningKey() = %d bytes, %v", len(key), err)
			}
			again, _ := s.SigningKey()
			if !bytes.Equal(key, again) {
				t.Error("SigningKey() changed within one process")
			}
			if err := s.Close(); err != nil {
				t.Fatal(err)
			}

			reopened := openTestStore(t, Options{Path: dir, EncryptionKey: tt.secret})
			got, err := reopened.SigningKey()
			if err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(got, key) {
				t.Error("SigningKey() differs after restart")
			}

			rotated, err := reopened.RotateSigningKey()
			if err != nil {
				t.Fatal(err)
			}
			if bytes.Equal(rotated, key) {
				t.Error("RotateSigningKey() returned the old key")
			}
			if got, _ := reopened.SigningKey(); !bytes.Equal(got, rotated) {
				t.Error("SigningKey() after rotation is not the rotated key")
			}
		})
	}
}

func TestStore_SigningKeyReplacedWhenUndecryptable(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	s, err := Open(Options{Path: dir, EncryptionKey: testSecret})
	if err != nil {
		t.Fatal(err)
	}
	key, err := s.SigningKey()
	if err != nil {
		t.Fatal(err)
	}
	_ = s.Close()

	other := openTestStore(t, Options{Path: dir, EncryptionKey: strings.Repeat("z", 32)})
	got, err := other.SigningKey()
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != signingKeyLen || bytes.Equal(got, key) {
		t.Error("expected a fresh signing key after the encryption key changed")
	}
}
