// StreamBoard - Media Stream Fleet Dashboard Runtime
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamboard

package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/tomtom215/streamboard/internal/config"
	"github.com/tomtom215/streamboard/internal/logging"
	"github.com/tomtom215/streamboard/internal/metrics"
	"github.com/tomtom215/streamboard/internal/models"
	"github.com/tomtom215/streamboard/internal/notify"
	"github.com/tomtom215/streamboard/internal/validation"
)

// maxErrorBody bounds how much of an error response is read for its message.
const maxErrorBody = 4096

// RemoteClient talks to the control API over HTTP.
type RemoteClient struct {
	baseURL    *url.URL
	httpClient *http.Client
	limiter    *rate.Limiter
	signals    AuthSignaler

	mu    sync.RWMutex
	token string
}

var _ Client = (*RemoteClient)(nil)

// NewRemoteClient creates a client for cfg.BaseURL. signals may be nil.
func NewRemoteClient(cfg *config.APIConfig, signals AuthSignaler, httpClient *http.Client) (*RemoteClient, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid API base URL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("invalid API base URL %q: scheme must be http or https", cfg.BaseURL)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	burst := cfg.RateBurst
	if burst < 1 {
		burst = 1
	}

	return &RemoteClient{
		baseURL:    base,
		httpClient: httpClient,
		limiter:    rate.NewLimiter(limit, burst),
		signals:    signals,
	}, nil
}

// Variant implements Client.
func (c *RemoteClient) Variant() string { return VariantRemote }

// SetToken implements Client.
func (c *RemoteClient) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *RemoteClient) currentToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// Health probes GET /api/health. It never raises the auth signal.
func (c *RemoteClient) Health(ctx context.Context) (*models.HealthStatus, error) {
	var out models.HealthStatus
	if err := c.do(ctx, request{op: "health", method: http.MethodGet, path: "/api/health", probe: true}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Login exchanges credentials for a session token.
func (c *RemoteClient) Login(ctx context.Context, req *models.LoginRequest) (*models.LoginResponse, error) {
	if verr := validation.ValidateStruct(req); verr != nil {
		return nil, invalid("login", verr)
	}
	var out models.LoginResponse
	if err := c.do(ctx, request{op: "login", method: http.MethodPost, path: "/api/auth/login", body: req, login: true}, &out); err != nil {
		return nil, err
	}
	if out.Token == "" {
		return nil, &Error{Op: "login", Kind: KindServer, Message: "login response carried no token"}
	}
	return &out, nil
}

// ListStreams implements Client.
func (c *RemoteClient) ListStreams(ctx context.Context, filter models.StreamFilter) ([]models.Stream, error) {
	if verr := validation.ValidateStruct(filter); verr != nil {
		return nil, invalid("list_streams", verr)
	}
	var out []models.Stream
	if err := c.do(ctx, request{op: "list_streams", method: http.MethodGet, path: "/api/streams", query: filter.Query()}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateStream implements Client.
func (c *RemoteClient) CreateStream(ctx context.Context, req *models.CreateStreamRequest) (*models.Stream, error) {
	if verr := validation.ValidateStruct(req); verr != nil {
		return nil, invalid("create_stream", verr)
	}
	var out models.Stream
	if err := c.do(ctx, request{op: "create_stream", method: http.MethodPost, path: "/api/streams", body: req}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateStream sends a partial update with PATCH.
func (c *RemoteClient) UpdateStream(ctx context.Context, id string, patch *models.StreamPatch) (*models.Stream, error) {
	if err := checkID("update_stream", id); err != nil {
		return nil, err
	}
	if verr := validation.ValidateStruct(patch); verr != nil {
		return nil, invalid("update_stream", verr)
	}
	var out models.Stream
	if err := c.do(ctx, request{op: "update_stream", method: http.MethodPatch, path: streamPath(id), body: patch}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteStream implements Client.
func (c *RemoteClient) DeleteStream(ctx context.Context, id string) error {
	if err := checkID("delete_stream", id); err != nil {
		return err
	}
	return c.do(ctx, request{op: "delete_stream", method: http.MethodDelete, path: streamPath(id)}, nil)
}

// StartRecording implements Client.
func (c *RemoteClient) StartRecording(ctx context.Context, id string) (*models.Stream, error) {
	return c.recording(ctx, "start_recording", id, "start")
}

// StopRecording implements Client.
func (c *RemoteClient) StopRecording(ctx context.Context, id string) (*models.Stream, error) {
	return c.recording(ctx, "stop_recording", id, "stop")
}

func (c *RemoteClient) recording(ctx context.Context, op, id, action string) (*models.Stream, error) {
	if err := checkID(op, id); err != nil {
		return nil, err
	}
	var out models.Stream
	if err := c.do(ctx, request{op: op, method: http.MethodPost, path: streamPath(id) + "/recording/" + action}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListRecordings implements Client.
func (c *RemoteClient) ListRecordings(ctx context.Context, filter models.RecordingFilter) ([]models.Recording, error) {
	if verr := validation.ValidateStruct(filter); verr != nil {
		return nil, invalid("list_recordings", verr)
	}
	var out []models.Recording
	if err := c.do(ctx, request{op: "list_recordings", method: http.MethodGet, path: "/api/recordings", query: filter.Query()}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetConfig implements Client.
func (c *RemoteClient) GetConfig(ctx context.Context) (*models.SystemConfig, error) {
	var out models.SystemConfig
	if err := c.do(ctx, request{op: "get_config", method: http.MethodGet, path: "/api/config"}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateConfig implements Client.
func (c *RemoteClient) UpdateConfig(ctx context.Context, patch models.ConfigPatch) (*models.SystemConfig, error) {
	if err := patch.Validate(); err != nil {
		return nil, &Error{Op: "update_config", Kind: KindInvalidRequest, Message: err.Error(), Err: err}
	}
	var out models.SystemConfig
	if err := c.do(ctx, request{op: "update_config", method: http.MethodPatch, path: "/api/config", body: patch}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

type request struct {
	op     string
	method string
	path   string
	query  url.Values
	body   interface{}
	probe  bool // health probe: no auth signal
	login  bool // 401 means bad credentials, not a rejected session
}

// do performs one request. It is never retried here.
func (c *RemoteClient) do(ctx context.Context, r request, out interface{}) error {
	start := time.Now()
	err := c.roundTrip(ctx, r, out)
	metrics.RecordAPIRequest(r.op, outcome(err), time.Since(start))
	return err
}

func (c *RemoteClient) roundTrip(ctx context.Context, r request, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return transportError(ctx, r.op, err)
	}

	u := *c.baseURL
	u.Path = c.baseURL.Path + r.path
	if len(r.query) > 0 {
		u.RawQuery = r.query.Encode()
	}

	var body io.Reader = http.NoBody
	if r.body != nil {
		data, err := json.Marshal(r.body)
		if err != nil {
			return &Error{Op: r.op, Kind: KindInvalidRequest, Message: "encode request body", Err: err}
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, u.String(), body)
	if err != nil {
		return &Error{Op: r.op, Kind: KindInvalidRequest, Message: "build request", Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if r.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.currentToken(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return transportError(ctx, r.op, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil || resp.StatusCode == http.StatusNoContent {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return &Error{Op: r.op, Kind: KindServer, StatusCode: resp.StatusCode, Message: "decode response", Err: err}
		}
		return nil
	}

	return c.statusError(r, resp)
}

func (c *RemoteClient) statusError(r request, resp *http.Response) error {
	e := &Error{Op: r.op, StatusCode: resp.StatusCode, Message: readErrorMessage(resp)}

	switch code := resp.StatusCode; {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		if r.login {
			e.Kind = KindInvalidCredentials
			return e
		}
		e.Kind = KindAuthenticationFailed
		if !r.probe {
			c.signalAuthFailed(r.op, code)
		}
	case code == http.StatusNotFound:
		e.Kind = KindNotFound
	case code == http.StatusBadGateway || code == http.StatusServiceUnavailable || code == http.StatusGatewayTimeout:
		e.Kind = KindUnavailable
	case code >= 400 && code < 500:
		e.Kind = KindInvalidRequest
	default:
		e.Kind = KindServer
	}
	return e
}

func (c *RemoteClient) signalAuthFailed(op string, status int) {
	if c.signals == nil {
		return
	}
	err := c.signals.PublishAuthFailed(notify.AuthFailure{Operation: op, StatusCode: status, At: time.Now()})
	if err != nil && !errors.Is(err, notify.ErrClosed) {
		logging.Warn().Err(err).Str("operation", op).Msg("Failed to publish auth failure")
	}
}

// readErrorMessage extracts {"error": ...} or {"message": ...} from an error body.
func readErrorMessage(resp *http.Response) string {
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil || len(data) == 0 {
		return http.StatusText(resp.StatusCode)
	}
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(data, &body) == nil {
		if body.Message != "" {
			return body.Message
		}
		if body.Error != "" {
			return body.Error
		}
	}
	return strings.TrimSpace(string(data))
}

func transportError(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(ctxErr, context.Canceled) {
		return &Error{Op: op, Kind: KindCanceled, Err: ctxErr}
	}
	return &Error{Op: op, Kind: KindUnavailable, Err: err}
}

func invalid(op string, verr *validation.RequestValidationError) error {
	return &Error{Op: op, Kind: KindInvalidRequest, Message: verr.Error(), Err: verr}
}

func checkID(op, id string) error {
	if !validation.ValidStreamID(id) {
		return &Error{Op: op, Kind: KindInvalidRequest, Message: fmt.Sprintf("invalid stream id %q", id)}
	}
	return nil
}

func streamPath(id string) string {
	return "/api/streams/" + url.PathEscape(id)
}
