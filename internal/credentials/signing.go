// StreamBoard - Media Stream Fleet Dashboard Runtime
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamboard

package credentials

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"
)

const (
	simKeyPrefix  = "sim:"
	signingKey    = simKeyPrefix + "signing_key"
	signingKeyLen = 32
)

// keyRecord is the stored form of the simulated backend signing key.
type keyRecord struct {
	Key       string    `json:"key"` // base64, sealed when Sealed is set
	Sealed    bool      `json:"sealed"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SigningKey returns the simulated backend's token signing key, generating
// and storing one on first use so tokens issued by one process verify in the
// next.
func (s *Store) SigningKey() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if key, ok := s.loadSigningKey(); ok {
		return key, nil
	}
	return s.newSigningKey()
}

// RotateSigningKey replaces the stored signing key.
func (s *Store) RotateSigningKey() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.newSigningKey()
}

// loadSigningKey reads the stored key; mu must be held.
func (s *Store) loadSigningKey() ([]byte, bool) {
	var rec keyRecord
	if !s.read(signingKey, &rec) || rec.Key == "" {
		return nil, false
	}
	encoded := rec.Key
	if rec.Sealed {
		opened, err := s.enc.Open(rec.Key)
		if err != nil || !s.enc.Enabled() {
			s.logger.Warn().Err(err).Msg("[credentials] Stored signing key cannot be decrypted, replacing")
			return nil, false
		}
		encoded = opened
	}
	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil || len(key) != signingKeyLen {
		s.logger.Warn().Msg("[credentials] Stored signing key is corrupt, replacing")
		return nil, false
	}
	return key, true
}

// newSigningKey generates and stores a key; mu must be held.
func (s *Store) newSigningKey() ([]byte, error) {
	key := make([]byte, signingKeyLen)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generate signing key: %w", err)
	}

	rec := keyRecord{Key: base64.StdEncoding.EncodeToString(key), UpdatedAt: time.Now().UTC()}
	if s.enc.Enabled() {
		sealed, err := s.enc.Seal(rec.Key)
		if err != nil {
			return nil, fmt.Errorf("seal signing key: %w", err)
		}
		rec.Key, rec.Sealed = sealed, true
	}
	s.write(signingKey, rec)
	return key, nil
}
