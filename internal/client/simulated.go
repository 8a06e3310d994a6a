// StreamBoard - Media Stream Fleet Dashboard Runtime
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamboard

package client

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	mrand "math/rand/v2"
	"sort"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/tomtom215/streamboard/internal/config"
	"github.com/tomtom215/streamboard/internal/events"
	"github.com/tomtom215/streamboard/internal/logging"
	"github.com/tomtom215/streamboard/internal/metrics"
	"github.com/tomtom215/streamboard/internal/models"
	"github.com/tomtom215/streamboard/internal/notify"
	"github.com/tomtom215/streamboard/internal/validation"
)

const simulatedIssuer = "streamboard-simulated"

// SimulatedClient is an in-process control API over a fabricated dataset.
//
// Login accepts any non-empty credentials and issues an HS256 token. Every
// other call except Health requires a token signed with the current key;
// anything else is rejected with the same auth.failed signal the remote
// client raises. Revoke rotates the key, invalidating every issued token.
type SimulatedClient struct {
	signals AuthSignaler
	ttl     time.Duration
	now     func() time.Time
	started time.Time
	keys    SigningKeys // nil when the key is pinned by configuration

	mu         sync.Mutex
	key        []byte
	token      string
	streams    map[string]*models.Stream
	recordings []models.Recording
	config     models.SystemConfig
	pending    []events.InboundEvent
	rng        *mrand.Rand
}

var _ Client = (*SimulatedClient)(nil)

// SigningKeys persists the simulated signing key across processes.
type SigningKeys interface {
	SigningKey() ([]byte, error)
	RotateSigningKey() ([]byte, error)
}

// NewSimulatedClient creates a simulated backend seeded with sample streams.
// The signing key is simulated.signing_key when set, otherwise the one held
// by keys, otherwise a random key that lives as long as the client.
func NewSimulatedClient(cfg *config.SimulatedConfig, signals AuthSignaler, keys SigningKeys) (*SimulatedClient, error) {
	key := []byte(cfg.SigningKey)
	var err error
	switch {
	case len(key) > 0:
		keys = nil
	case keys != nil:
		key, err = keys.SigningKey()
	default:
		key, err = randomKey()
	}
	if err != nil {
		return nil, fmt.Errorf("simulated signing key: %w", err)
	}
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}

	s := &SimulatedClient{
		signals: signals,
		ttl:     ttl,
		now:     time.Now,
		keys:    keys,
		key:     key,
		rng:     mrand.New(mrand.NewPCG(0x5eed, 0xfeed)),
	}
	s.started = s.now()
	s.seed()
	return s, nil
}

func (s *SimulatedClient) seed() {
	now := s.now().UTC()
	s.streams = map[string]*models.Stream{
		"lobby-cam": {
			ID: "lobby-cam", SourceURL: "rtsp://10.0.0.21/stream1",
			Status: models.StatusRunning, RecordingState: models.RecordingActive,
			Metrics:   &models.MetricsSnapshot{Bitrate: 4200, Framerate: 30, Resolution: "1920x1080", Viewers: 3},
			Recording: &models.RecordingOptions{Enabled: true, SegmentSeconds: 300, Format: "mp4"},
			UpdatedAt: now,
		},
		"dock-cam": {
			ID: "dock-cam", SourceURL: "rtsp://10.0.0.22/stream1",
			Status: models.StatusRunning, RecordingState: models.RecordingIdle,
			Metrics:   &models.MetricsSnapshot{Bitrate: 2500, Framerate: 25, Resolution: "1280x720", Viewers: 1},
			Inference: &models.InferenceOptions{Enabled: true, Model: "yolov8n", Threshold: 0.5},
			UpdatedAt: now,
		},
		"parking-cam": {
			ID: "parking-cam", SourceURL: "rtsp://10.0.0.23/stream1",
			Status: models.StatusError, RecordingState: models.RecordingIdle,
			Error:     "source unreachable",
			Reconnect: &models.ReconnectOptions{Enabled: true, MaxAttempts: 10, DelaySeconds: 5},
			UpdatedAt: now,
		},
	}
	for i := 3; i > 0; i-- {
		created := now.Add(-time.Duration(i) * 5 * time.Minute)
		s.recordings = append(s.recordings, models.Recording{
			Filename:  segmentName("lobby-cam", created),
			StreamID:  "lobby-cam",
			Size:      150 << 20,
			Duration:  300,
			CreatedAt: created,
		})
	}
	s.config = models.SystemConfig{
		Server:    models.ConfigSection{"host": "0.0.0.0", "port": float64(8080)},
		Recording: models.ConfigSection{"path": "/var/lib/recordings", "segment_seconds": float64(300)},
		Inference: models.ConfigSection{"enabled": true, "device": "cpu"},
	}
}

func segmentName(streamID string, t time.Time) string {
	return fmt.Sprintf("%s-%s.mp4", streamID, t.UTC().Format("20060102-150405"))
}

// Variant implements Client.
func (s *SimulatedClient) Variant() string { return VariantSimulated }

// SetToken implements Client.
func (s *SimulatedClient) SetToken(token string) {
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
}

// Revoke rotates the signing key so every issued token is rejected.
func (s *SimulatedClient) Revoke() {
	var key []byte
	var err error
	if s.keys != nil {
		key, err = s.keys.RotateSigningKey()
	}
	if s.keys == nil || err != nil {
		if err != nil {
			logging.Warn().Err(err).Msg("[client] Persisting rotated signing key failed, rotating in memory")
		}
		if key, err = randomKey(); err != nil {
			logging.Error().Err(err).Msg("[client] Signing key rotation failed")
			return
		}
	}
	s.mu.Lock()
	s.key = key
	s.mu.Unlock()
}

func randomKey() ([]byte, error) {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, err
	}
	return key, nil
}

// Health implements Client.
func (s *SimulatedClient) Health(ctx context.Context) (*models.HealthStatus, error) {
	if err := ctx.Err(); err != nil {
		return nil, &Error{Op: "health", Kind: KindCanceled, Err: err}
	}
	metrics.RecordAPIRequest("health", "ok", 0)
	return &models.HealthStatus{
		Status:  "ok",
		Version: "simulated",
		Uptime:  s.now().Sub(s.started).Truncate(time.Second).String(),
	}, nil
}

// Login implements Client.
func (s *SimulatedClient) Login(ctx context.Context, req *models.LoginRequest) (*models.LoginResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, &Error{Op: "login", Kind: KindCanceled, Err: err}
	}
	if verr := validation.ValidateStruct(req); verr != nil {
		return nil, &Error{Op: "login", Kind: KindInvalidCredentials, Message: verr.Error(), Err: verr}
	}

	now := s.now()
	expires := now.Add(s.ttl)
	claims := jwt.RegisteredClaims{
		Issuer:    simulatedIssuer,
		Subject:   req.Username,
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expires),
	}

	s.mu.Lock()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
	s.mu.Unlock()
	if err != nil {
		return nil, &Error{Op: "login", Kind: KindServer, Message: "sign token", Err: err}
	}
	metrics.RecordAPIRequest("login", "ok", 0)
	return &models.LoginResponse{Token: signed, ExpiresAt: expires.UTC()}, nil
}

// authorize checks the current token. Callers hold no lock.
func (s *SimulatedClient) authorize(ctx context.Context, op string) error {
	if err := ctx.Err(); err != nil {
		return &Error{Op: op, Kind: KindCanceled, Err: err}
	}

	s.mu.Lock()
	token, key := s.token, s.key
	s.mu.Unlock()

	err := errors.New("missing token")
	if token != "" {
		_, err = jwt.ParseWithClaims(token, &jwt.RegisteredClaims{},
			func(*jwt.Token) (interface{}, error) { return key, nil },
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithIssuer(simulatedIssuer),
			jwt.WithTimeFunc(s.now),
		)
	}
	if err == nil {
		return nil
	}

	logging.Debug().Err(err).Str("operation", op).Msg("Simulated backend rejected token")
	metrics.RecordAPIRequest(op, "auth_failed", 0)
	if s.signals != nil {
		if perr := s.signals.PublishAuthFailed(notify.AuthFailure{Operation: op, StatusCode: 401, At: s.now()}); perr != nil && !errors.Is(perr, notify.ErrClosed) {
			logging.Warn().Err(perr).Str("operation", op).Msg("Failed to publish auth failure")
		}
	}
	return &Error{Op: op, Kind: KindAuthenticationFailed, StatusCode: 401, Message: "token rejected", Err: err}
}

// ListStreams implements Client.
func (s *SimulatedClient) ListStreams(ctx context.Context, filter models.StreamFilter) ([]models.Stream, error) {
	if err := s.authorize(ctx, "list_streams"); err != nil {
		return nil, err
	}
	if verr := validation.ValidateStruct(filter); verr != nil {
		return nil, invalid("list_streams", verr)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Stream, 0, len(s.streams))
	for _, st := range s.streams {
		if filter.Matches(st) {
			out = append(out, copyStream(st))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	metrics.RecordAPIRequest("list_streams", "ok", 0)
	return out, nil
}

// CreateStream implements Client.
func (s *SimulatedClient) CreateStream(ctx context.Context, req *models.CreateStreamRequest) (*models.Stream, error) {
	if err := s.authorize(ctx, "create_stream"); err != nil {
		return nil, err
	}
	if verr := validation.ValidateStruct(req); verr != nil {
		return nil, invalid("create_stream", verr)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.streams[req.ID]; exists {
		return nil, &Error{Op: "create_stream", Kind: KindInvalidRequest, StatusCode: 409, Message: fmt.Sprintf("stream %q already exists", req.ID)}
	}
	st := &models.Stream{
		ID:             req.ID,
		SourceURL:      req.SourceURL,
		Status:         models.StatusStarting,
		RecordingState: models.RecordingIdle,
		Recording:      req.Recording,
		Inference:      req.Inference,
		Reconnect:      req.Reconnect,
		UpdatedAt:      s.now().UTC(),
	}
	s.streams[req.ID] = st
	s.queue(events.InboundEvent{Kind: events.StreamStarted, SubjectID: req.ID})
	metrics.RecordAPIRequest("create_stream", "ok", 0)
	out := copyStream(st)
	return &out, nil
}

// UpdateStream implements Client.
func (s *SimulatedClient) UpdateStream(ctx context.Context, id string, patch *models.StreamPatch) (*models.Stream, error) {
	if err := s.authorize(ctx, "update_stream"); err != nil {
		return nil, err
	}
	if err := checkID("update_stream", id); err != nil {
		return nil, err
	}
	if verr := validation.ValidateStruct(patch); verr != nil {
		return nil, invalid("update_stream", verr)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	st, err := s.lookup("update_stream", id)
	if err != nil {
		return nil, err
	}
	if patch.SourceURL != nil {
		st.SourceURL = *patch.SourceURL
	}
	if patch.Recording != nil {
		st.Recording = patch.Recording
	}
	if patch.Inference != nil {
		st.Inference = patch.Inference
	}
	if patch.Reconnect != nil {
		st.Reconnect = patch.Reconnect
	}
	st.UpdatedAt = s.now().UTC()
	metrics.RecordAPIRequest("update_stream", "ok", 0)
	out := copyStream(st)
	return &out, nil
}

// DeleteStream implements Client.
func (s *SimulatedClient) DeleteStream(ctx context.Context, id string) error {
	if err := s.authorize(ctx, "delete_stream"); err != nil {
		return err
	}
	if err := checkID("delete_stream", id); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.lookup("delete_stream", id); err != nil {
		return err
	}
	delete(s.streams, id)
	metrics.RecordAPIRequest("delete_stream", "ok", 0)
	return nil
}

// StartRecording implements Client.
func (s *SimulatedClient) StartRecording(ctx context.Context, id string) (*models.Stream, error) {
	return s.setRecording(ctx, "start_recording", id, models.RecordingActive)
}

// StopRecording implements Client.
func (s *SimulatedClient) StopRecording(ctx context.Context, id string) (*models.Stream, error) {
	return s.setRecording(ctx, "stop_recording", id, models.RecordingIdle)
}

func (s *SimulatedClient) setRecording(ctx context.Context, op, id string, state models.RecordingState) (*models.Stream, error) {
	if err := s.authorize(ctx, op); err != nil {
		return nil, err
	}
	if err := checkID(op, id); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	st, err := s.lookup(op, id)
	if err != nil {
		return nil, err
	}
	if state == models.RecordingActive && st.Status != models.StatusRunning {
		return nil, &Error{Op: op, Kind: KindInvalidRequest, StatusCode: 409, Message: fmt.Sprintf("stream %q is not running", id)}
	}
	if st.RecordingState != state {
		st.RecordingState = state
		st.UpdatedAt = s.now().UTC()
		kind := events.RecordingStarted
		if state == models.RecordingIdle {
			kind = events.RecordingStopped
		}
		s.queue(events.InboundEvent{Kind: kind, SubjectID: id})
	}
	metrics.RecordAPIRequest(op, "ok", 0)
	out := copyStream(st)
	return &out, nil
}

// ListRecordings implements Client.
func (s *SimulatedClient) ListRecordings(ctx context.Context, filter models.RecordingFilter) ([]models.Recording, error) {
	if err := s.authorize(ctx, "list_recordings"); err != nil {
		return nil, err
	}
	if verr := validation.ValidateStruct(filter); verr != nil {
		return nil, invalid("list_recordings", verr)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Recording, 0, len(s.recordings))
	for i := range s.recordings {
		if filter.Matches(&s.recordings[i]) {
			out = append(out, s.recordings[i])
		}
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	metrics.RecordAPIRequest("list_recordings", "ok", 0)
	return out, nil
}

// GetConfig implements Client.
func (s *SimulatedClient) GetConfig(ctx context.Context) (*models.SystemConfig, error) {
	if err := s.authorize(ctx, "get_config"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	metrics.RecordAPIRequest("get_config", "ok", 0)
	out := copyConfig(s.config)
	return &out, nil
}

// UpdateConfig implements Client.
func (s *SimulatedClient) UpdateConfig(ctx context.Context, patch models.ConfigPatch) (*models.SystemConfig, error) {
	if err := s.authorize(ctx, "update_config"); err != nil {
		return nil, err
	}
	if err := patch.Validate(); err != nil {
		return nil, &Error{Op: "update_config", Kind: KindInvalidRequest, Message: err.Error(), Err: err}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	patch.ApplyTo(&s.config)
	s.queue(events.InboundEvent{Kind: events.ConfigReloaded, Message: "configuration updated"})
	metrics.RecordAPIRequest("update_config", "ok", 0)
	out := copyConfig(s.config)
	return &out, nil
}

// Feed returns the events the simulated server emits at now: events queued
// by earlier commands, a metrics update for each running stream, and a new
// segment for each stream whose current segment has elapsed.
func (s *SimulatedClient) Feed(now time.Time) []events.InboundEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := s.pending
	s.pending = nil
	for i := range out {
		out[i].Timestamp = now.UTC()
	}

	ids := make([]string, 0, len(s.streams))
	for id := range s.streams {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		st := s.streams[id]
		if st.Status != models.StatusRunning {
			continue
		}
		if st.Metrics == nil {
			st.Metrics = &models.MetricsSnapshot{Bitrate: 2000, Framerate: 25, Resolution: "1280x720"}
		}
		bitrate := st.Metrics.Bitrate * (0.9 + 0.2*s.rng.Float64())
		viewers := st.Metrics.Viewers + s.rng.IntN(3) - 1
		if viewers < 0 {
			viewers = 0
		}
		st.Metrics.Bitrate, st.Metrics.Viewers = bitrate, viewers
		out = append(out, events.InboundEvent{
			Kind:      events.MetricsUpdate,
			SubjectID: id,
			Metrics:   &models.MetricsPatch{Bitrate: &bitrate, Viewers: &viewers},
			Timestamp: now.UTC(),
		})

		if st.RecordingState == models.RecordingActive && s.segmentDue(id, st, now) {
			rec := models.Recording{Filename: segmentName(id, now), StreamID: id, Size: 150 << 20, Duration: float64(segmentSeconds(st)), CreatedAt: now.UTC()}
			s.recordings = append(s.recordings, rec)
			out = append(out, events.InboundEvent{Kind: events.SegmentCreated, SubjectID: id, Filename: rec.Filename, Timestamp: now.UTC()})
		}
	}
	return out
}

func (s *SimulatedClient) segmentDue(id string, st *models.Stream, now time.Time) bool {
	var last time.Time
	for i := len(s.recordings) - 1; i >= 0; i-- {
		if s.recordings[i].StreamID == id {
			last = s.recordings[i].CreatedAt
			break
		}
	}
	return last.IsZero() || now.Sub(last) >= time.Duration(segmentSeconds(st))*time.Second
}

func segmentSeconds(st *models.Stream) int {
	if st.Recording != nil && st.Recording.SegmentSeconds > 0 {
		return st.Recording.SegmentSeconds
	}
	return 300
}

func (s *SimulatedClient) queue(ev events.InboundEvent) {
	s.pending = append(s.pending, ev)
}

func (s *SimulatedClient) lookup(op, id string) (*models.Stream, error) {
	st, ok := s.streams[id]
	if !ok {
		return nil, &Error{Op: op, Kind: KindNotFound, StatusCode: 404, Message: fmt.Sprintf("stream %q not found", id)}
	}
	return st, nil
}

func copyStream(st *models.Stream) models.Stream {
	out := *st
	if st.Metrics != nil {
		m := *st.Metrics
		out.Metrics = &m
	}
	return out
}

func copyConfig(cfg models.SystemConfig) models.SystemConfig {
	dup := func(src models.ConfigSection) models.ConfigSection {
		if src == nil {
			return nil
		}
		dst := make(models.ConfigSection, len(src))
		for k, v := range src {
			dst[k] = v
		}
		return dst
	}
	return models.SystemConfig{Server: dup(cfg.Server), Recording: dup(cfg.Recording), Inference: dup(cfg.Inference)}
}
