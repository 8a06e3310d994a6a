// StreamBoard - Media Stream Fleet Dashboard Runtime
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamboard

package credentials

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/tomtom215/streamboard/internal/logging"
	"github.com/tomtom215/streamboard/internal/metrics"
)

// Key prefixes for stored records
const (
	tokenKeyPrefix = "token:"
	prefKeyPrefix  = "pref:"

	tokenKey = tokenKeyPrefix + "session"
	themeKey = prefKeyPrefix + "theme"
)

// Theme values accepted by SetTheme.
const (
	ThemeSystem = "system"
	ThemeLight  = "light"
	ThemeDark   = "dark"
)

// ErrInvalidTheme is returned by SetTheme for an unknown theme.
var ErrInvalidTheme = errors.New("credentials: unknown theme")

// Options configures Open.
type Options struct {
	// Path is the badger directory. Ignored when InMemory is set.
	Path string
	// InMemory keeps state in memory only.
	InMemory bool
	// EncryptionKey enables token encryption at rest when non-empty.
	EncryptionKey string
}

// TokenStore is the token lifecycle contract consumed by the session guard.
type TokenStore interface {
	LoadToken() (string, bool)
	SaveToken(token string)
	ClearToken()
}

// tokenRecord is the stored form of the session token.
type tokenRecord struct {
	Token     string    `json:"token"`
	Sealed    bool      `json:"sealed"`
	UpdatedAt time.Time `json:"updated_at"`
}

// preferenceRecord is the stored form of a display preference.
type preferenceRecord struct {
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store persists the session token and display preferences.
type Store struct {
	mu       sync.Mutex
	backend  backend
	enc      *Encryptor
	logger   zerolog.Logger
	degraded bool
}

var _ TokenStore = (*Store)(nil)

// Open opens the credential store. Storage failures degrade to memory and
// are not returned; only an invalid encryption key is an error.
func Open(opts Options) (*Store, error) {
	enc, err := NewEncryptor(opts.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("credential encryption: %w", err)
	}

	s := &Store{
		enc:    enc,
		logger: logging.WithComponent("credentials"),
	}

	if opts.InMemory {
		s.backend = s.memoryFallback()
		return s, nil
	}

	b, err := openBadger(opts.Path, false, s.logger)
	if err != nil {
		s.logger.Warn().Err(err).Str("path", opts.Path).
			Msg("[credentials] Durable storage unavailable, state will not survive restart")
		s.backend = s.memoryFallback()
		s.setDegraded(true)
		return s, nil
	}
	s.backend = b
	metrics.CredentialStoreDegraded.Set(0)
	s.logger.Debug().Str("path", opts.Path).Bool("encrypted", enc.Enabled()).Msg("[credentials] Store opened")
	return s, nil
}

// memoryFallback prefers an in-memory badger and falls back to a plain map.
func (s *Store) memoryFallback() backend {
	b, err := openBadger("", true, s.logger)
	if err != nil {
		s.logger.Warn().Err(err).Msg("[credentials] In-memory badger unavailable, using map store")
		return newMemoryBackend()
	}
	return b
}

func (s *Store) setDegraded(v bool) {
	s.degraded = v
	if v {
		metrics.CredentialStoreDegraded.Set(1)
	}
}

// Durable reports whether state currently survives a restart.
func (s *Store) Durable() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.backend.durable() && !s.degraded
}

// LoadToken returns the stored token, or false when none is stored.
func (s *Store) LoadToken() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var rec tokenRecord
	if !s.read(tokenKey, &rec) || rec.Token == "" {
		return "", false
	}
	if !rec.Sealed {
		return rec.Token, true
	}
	token, err := s.enc.Open(rec.Token)
	if err != nil || !s.enc.Enabled() {
		// Key changed or encryption disabled: the token is unusable.
		s.logger.Warn().Err(err).Msg("[credentials] Stored token cannot be decrypted, discarding")
		s.write(tokenKey, tokenRecord{UpdatedAt: time.Now().UTC()})
		return "", false
	}
	return token, true
}

// SaveToken persists token.
func (s *Store) SaveToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := tokenRecord{Token: token, UpdatedAt: time.Now().UTC()}
	if s.enc.Enabled() {
		sealed, err := s.enc.Seal(token)
		if err != nil {
			s.logger.Error().Err(err).Msg("[credentials] Token encryption failed, not persisting token")
			return
		}
		rec.Token, rec.Sealed = sealed, true
	}
	s.write(tokenKey, rec)
}

// ClearToken removes the stored token.
func (s *Store) ClearToken() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drop(tokenKeyPrefix)
}

// Theme returns the stored display theme, ThemeSystem when unset.
func (s *Store) Theme() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var rec preferenceRecord
	if !s.read(themeKey, &rec) || rec.Value == "" {
		return ThemeSystem
	}
	return rec.Value
}

// SetTheme stores the display theme.
func (s *Store) SetTheme(theme string) error {
	switch theme {
	case ThemeSystem, ThemeLight, ThemeDark:
	default:
		return fmt.Errorf("%w %q (want system, light or dark)", ErrInvalidTheme, theme)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.write(themeKey, preferenceRecord{Value: theme, UpdatedAt: time.Now().UTC()})
	return nil
}

// ClearPreferences removes every stored display preference.
func (s *Store) ClearPreferences() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drop(prefKeyPrefix)
}

// Close releases the underlying storage.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.backend.close(); err != nil {
		return fmt.Errorf("close credential store: %w", err)
	}
	return nil
}

// read decodes key into v; it must be called with mu held.
func (s *Store) read(key string, v interface{}) bool {
	data, ok, err := s.backend.get(key)
	if err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("[credentials] Read failed")
		return false
	}
	if !ok {
		return false
	}
	if err := json.Unmarshal(data, v); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("[credentials] Stored record is corrupt, ignoring")
		return false
	}
	return true
}

// write encodes v under key, degrading to memory on failure; mu must be held.
func (s *Store) write(key string, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		s.logger.Error().Err(err).Str("key", key).Msg("[credentials] Encode failed")
		return
	}
	if err := s.backend.set(key, data); err != nil {
		s.degrade(err)
		_ = s.backend.set(key, data)
	}
}

// drop removes every key under prefix, degrading to memory on failure; mu must be held.
func (s *Store) drop(prefix string) {
	if err := s.backend.deletePrefix(prefix); err != nil {
		s.degrade(err)
		_ = s.backend.deletePrefix(prefix)
	}
}

// degrade swaps the failing backend for a memory one, carrying over what can
// still be read.
func (s *Store) degrade(cause error) {
	s.logger.Warn().Err(cause).Msg("[credentials] Durable storage failed, continuing in memory")

	old := s.backend
	mem := s.memoryFallback()
	for _, key := range []string{tokenKey, themeKey, signingKey} {
		if data, ok, err := old.get(key); err == nil && ok {
			_ = mem.set(key, data)
		}
	}
	_ = old.close()
	s.backend = mem
	s.setDegraded(true)
}
