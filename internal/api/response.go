// Basketgraph - B2B Product Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketgraph

package api

import (
	"net/http"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"

	"github.com/tomtom215/basketgraph/internal/logging"
)

// APIResponse is the envelope of every /api/v1 response.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
	Meta    *APIMeta    `json:"meta,omitempty"`
}

// APIError describes a failed request.
type APIError struct {
	// Code is machine-readable, one of the ErrCode constants.
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// APIMeta carries request metadata.
type APIMeta struct {
	RequestID  string    `json:"request_id,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
	Count      int       `json:"count,omitempty"`
	DurationMs int64     `json:"duration_ms"`
}

// Error codes for API responses
const (
	ErrCodeBadRequest         = "BAD_REQUEST"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeConflict           = "CONFLICT"
	ErrCodeTooManyRequests    = "TOO_MANY_REQUESTS"
	ErrCodeInternalError      = "INTERNAL_ERROR"
	ErrCodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	ErrCodeValidationFailed   = "VALIDATION_FAILED"
)

// ResponseWriter writes APIResponse envelopes for one request.
type ResponseWriter struct {
	w         http.ResponseWriter
	r         *http.Request
	startTime time.Time
}

// NewResponseWriter starts timing the request.
func NewResponseWriter(w http.ResponseWriter, r *http.Request) *ResponseWriter {
	return &ResponseWriter{w: w, r: r, startTime: time.Now()}
}

func (rw *ResponseWriter) meta(count int) *APIMeta {
	return &APIMeta{
		RequestID:  chimiddleware.GetReqID(rw.r.Context()),
		Timestamp:  time.Now().UTC(),
		Count:      count,
		DurationMs: time.Since(rw.startTime).Milliseconds(),
	}
}

// Success writes data with status 200.
func (rw *ResponseWriter) Success(data interface{}) {
	rw.write(http.StatusOK, &APIResponse{Success: true, Data: data, Meta: rw.meta(0)})
}

// List writes a collection with its length in meta.count.
func (rw *ResponseWriter) List(data interface{}, count int) {
	rw.write(http.StatusOK, &APIResponse{Success: true, Data: data, Meta: rw.meta(count)})
}

// Accepted writes data with status 202.
func (rw *ResponseWriter) Accepted(data interface{}) {
	rw.write(http.StatusAccepted, &APIResponse{Success: true, Data: data, Meta: rw.meta(0)})
}

// Error writes an error envelope. err is logged, never sent to the client.
func (rw *ResponseWriter) Error(status int, code, message string, err error) {
	if err != nil {
		logging.Ctx(rw.r.Context()).Warn().Err(err).Str("code", code).Int("status", status).Msg("API error")
	}
	rw.write(status, &APIResponse{
		Error: &APIError{Code: code, Message: message},
		Meta:  rw.meta(0),
	})
}

// ValidationError writes a 400 with per-field details.
func (rw *ResponseWriter) ValidationError(message string, details interface{}) {
	rw.write(http.StatusBadRequest, &APIResponse{
		Error: &APIError{Code: ErrCodeValidationFailed, Message: message, Details: details},
		Meta:  rw.meta(0),
	})
}

func (rw *ResponseWriter) write(status int, resp *APIResponse) {
	data, err := json.Marshal(resp)
	if err != nil {
		logging.Ctx(rw.r.Context()).Error().Err(err).Msg("Failed to marshal JSON response")
		rw.w.WriteHeader(http.StatusInternalServerError)
		return
	}
	rw.w.Header().Set("Content-Type", "application/json")
	rw.w.Header().Set("Cache-Control", "no-store")
	rw.w.WriteHeader(status)
	if _, err := rw.w.Write(data); err != nil {
		logging.Ctx(rw.r.Context()).Error().Err(err).Msg("Failed to write JSON response")
	}
}
