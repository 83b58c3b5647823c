// Adama Tourism ML Engine - Tourism Recommendation Service
// Copyright 2026 Adama Tourism
// SPDX-License-Identifier: MIT
// https://github.com/adama-tourism/ml-engine

// Package api provides the HTTP surface of the ML engine: routing,
// middleware, and handlers for training and recommendation queries.
// All endpoints use the standardized response envelope from internal/models.
package api

import (
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/adama-tourism/ml-engine/internal/logging"
	"github.com/adama-tourism/ml-engine/internal/models"
)

// Error codes returned in the response envelope.
const (
	ErrCodeValidation         = "VALIDATION_ERROR"
	ErrCodeModelNotTrained    = "MODEL_NOT_TRAINED"
	ErrCodeTrainingInProgress = "TRAINING_IN_PROGRESS"
	ErrCodeIngestion          = "INGESTION_ERROR"
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeInternal           = "INTERNAL_ERROR"
)

// ResponseWriter writes standardized API responses and tracks query time.
type ResponseWriter struct {
	w     http.ResponseWriter
	r     *http.Request
	start time.Time
}

// NewResponseWriter creates a response writer for one request.
func NewResponseWriter(w http.ResponseWriter, r *http.Request) *ResponseWriter {
	return &ResponseWriter{w: w, r: r, start: time.Now()}
}

// Success writes a 200 envelope with data.
func (rw *ResponseWriter) Success(data interface{}) {
	rw.SuccessStatus(http.StatusOK, data)
}

// SuccessStatus writes a success envelope with an explicit status code.
func (rw *ResponseWriter) SuccessStatus(status int, data interface{}) {
	rw.writeJSON(status, models.APIResponse{
		Status:   "success",
		Data:     data,
		Metadata: rw.metadata(),
	})
}

// Error writes an error envelope.
func (rw *ResponseWriter) Error(status int, code, message string) {
	rw.ErrorDetails(status, code, message, nil)
}

// ErrorDetails writes an error envelope with structured details.
func (rw *ResponseWriter) ErrorDetails(status int, code, message string, details map[string]interface{}) {
	rw.writeJSON(status, models.APIResponse{
		Status:   "error",
		Metadata: rw.metadata(),
		Error: &models.APIError{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

func (rw *ResponseWriter) metadata() models.Metadata {
	return models.Metadata{
		Timestamp:   time.Now().UTC(),
		QueryTimeMS: time.Since(rw.start).Milliseconds(),
	}
}

func (rw *ResponseWriter) writeJSON(status int, v interface{}) {
	rw.w.Header().Set("Content-Type", "application/json")
	rw.w.WriteHeader(status)

	if err := json.NewEncoder(rw.w).Encode(v); err != nil {
		logging.Error().
			Err(err).
			Str("request_id", logging.RequestIDFromContext(rw.r.Context())).
			Msg("Failed to encode response")
	}
}
