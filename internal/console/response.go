// StreamBoard - Media Stream Fleet Dashboard Runtime
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamboard

package console

import (
	"net/http"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"

	"github.com/tomtom215/streamboard/internal/logging"
)

// Response is the envelope of every console response.
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *ErrorBody  `json:"error,omitempty"`
	Meta    *Meta       `json:"meta,omitempty"`
}

// ErrorBody describes a failed request.
type ErrorBody struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// Meta carries request tracing information.
type Meta struct {
	RequestID  string    `json:"request_id,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
	DurationMs int64     `json:"duration_ms"`
}

// Error codes
const (
	CodeBadRequest         = "BAD_REQUEST"
	CodeValidationFailed   = "VALIDATION_FAILED"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeNotFound           = "NOT_FOUND"
	CodeConflict           = "CONFLICT"
	CodeTooManyRequests    = "TOO_MANY_REQUESTS"
	CodeInternalError      = "INTERNAL_ERROR"
	CodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	CodeUpstreamFailed     = "UPSTREAM_FAILED"
)

// responder writes envelopes for one request.
type responder struct {
	w     http.ResponseWriter
	r     *http.Request
	start time.Time
}

func respond(w http.ResponseWriter, r *http.Request) *responder {
	return &responder{w: w, r: r, start: time.Now()}
}

func (rw *responder) meta() *Meta {
	return &Meta{
		RequestID:  chimiddleware.GetReqID(rw.r.Context()),
		Timestamp:  time.Now().UTC(),
		DurationMs: time.Since(rw.start).Milliseconds(),
	}
}

// ok writes 200 with data.
func (rw *responder) ok(data interface{}) {
	rw.write(http.StatusOK, Response{Success: true, Data: data, Meta: rw.meta()})
}

// created writes 201 with data.
func (rw *responder) created(data interface{}) {
	rw.write(http.StatusCreated, Response{Success: true, Data: data, Meta: rw.meta()})
}

// fail writes an error envelope.
func (rw *responder) fail(status int, code, message string, details interface{}) {
	rw.write(status, Response{
		Success: false,
		Error:   &ErrorBody{Code: code, Message: message, Details: details},
		Meta:    rw.meta(),
	})
}

func (rw *responder) badRequest(message string) {
	rw.fail(http.StatusBadRequest, CodeBadRequest, message, nil)
}

func (rw *responder) write(status int, body Response) {
	rw.w.Header().Set("Content-Type", "application/json")
	rw.w.WriteHeader(status)
	if err := json.NewEncoder(rw.w).Encode(body); err != nil {
		logging.Ctx(rw.r.Context()).Debug().Err(err).Msg("[console] Failed to write response")
	}
}
