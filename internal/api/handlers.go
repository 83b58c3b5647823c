// Adama Tourism ML Engine - Tourism Recommendation Service
// Copyright 2026 Adama Tourism
// SPDX-License-Identifier: MIT
// https://github.com/adama-tourism/ml-engine

package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/adama-tourism/ml-engine/internal/recommend"
	"github.com/adama-tourism/ml-engine/internal/similarity"
	"github.com/adama-tourism/ml-engine/internal/trainer"
)

// Defaults and bounds for the result-count query parameter.
const (
	defaultUserResults = 10
	maxUserResults     = 100
	defaultItemResults = 8
	maxItemResults     = 50
)

// dataSampleLimit caps the record preview returned by the data sample
// endpoint.
const dataSampleLimit = 5

// Handler serves all ML engine endpoints.
type Handler struct {
	cf       *recommend.Engine
	sim      *similarity.Engine
	orch     *trainer.Orchestrator
	client   trainer.DataClient
	validate *validator.Validate
	logger   zerolog.Logger
}

// NewHandler creates the endpoint handler.
func NewHandler(cf *recommend.Engine, sim *similarity.Engine, orch *trainer.Orchestrator, client trainer.DataClient, logger zerolog.Logger) *Handler {
	return &Handler{
		cf:       cf,
		sim:      sim,
		orch:     orch,
		client:   client,
		validate: validator.New(),
		logger:   logger.With().Str("component", "api").Logger(),
	}
}

// Health handles GET /health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok","service":"ml-engine"}` + "\n"))
}

// Train handles POST /train. It launches a background training run and
// returns 202, or 409 when a run is already in flight.
func (h *Handler) Train(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	job, err := h.orch.Start()
	if errors.Is(err, trainer.ErrTrainingInProgress) {
		rw.ErrorDetails(http.StatusConflict, ErrCodeTrainingInProgress,
			"A training run is already in progress",
			map[string]interface{}{"job": job})
		return
	}
	if err != nil {
		rw.Error(http.StatusInternalServerError, ErrCodeInternal, "Failed to start training")
		return
	}

	rw.SuccessStatus(http.StatusAccepted, map[string]interface{}{
		"status": "started",
		"job":    job,
	})
}

// resultCount holds the validated n query parameter.
type resultCount struct {
	N int `validate:"gte=1"`
}

// parseResultCount reads the n query parameter with a default and an upper
// bound. The error message names the accepted range.
func (h *Handler) parseResultCount(r *http.Request, def, max int) (int, error) {
	raw := r.URL.Query().Get("n")
	if raw == "" {
		return def, nil
	}

	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("n must be an integer between 1 and %d", max)
	}
	if err := h.validate.Struct(resultCount{N: n}); err != nil || n > max {
		return 0, fmt.Errorf("n must be between 1 and %d", max)
	}
	return n, nil
}

// RecommendUser handles GET /recommend/user/{userID}.
func (h *Handler) RecommendUser(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	userID := chi.URLParam(r, "userID")

	n, err := h.parseResultCount(r, defaultUserResults, maxUserResults)
	if err != nil {
		rw.Error(http.StatusBadRequest, ErrCodeValidation, err.Error())
		return
	}

	recs := h.cf.RecommendForUser(userID, n)
	if recs == nil {
		rw.Error(http.StatusNotFound, ErrCodeModelNotTrained, "No trained model available, run training first")
		return
	}

	rw.Success(map[string]interface{}{
		"userId":          userID,
		"recommendations": recs,
	})
}

// RecommendItem handles GET /recommend/item/{itemID}.
func (h *Handler) RecommendItem(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	itemID := chi.URLParam(r, "itemID")

	n, err := h.parseResultCount(r, defaultItemResults, maxItemResults)
	if err != nil {
		rw.Error(http.StatusBadRequest, ErrCodeValidation, err.Error())
		return
	}

	similar, ready := h.sim.MostSimilar(itemID, n)
	if !ready {
		rw.Error(http.StatusNotFound, ErrCodeModelNotTrained, "No similarity index available, run training first")
		return
	}

	rw.Success(map[string]interface{}{
		"itemId":  itemID,
		"similar": similar,
	})
}

// DebugStatus handles GET /debug/status.
func (h *Handler) DebugStatus(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	current, last := h.orch.Status()
	rw.Success(map[string]interface{}{
		"collaborative": h.cf.Stats(),
		"similarity":    h.sim.Stats(),
		"training": map[string]interface{}{
			"running": current != nil,
			"current": current,
			"last":    last,
		},
	})
}

// DebugDataSample handles GET /debug/data_sample. It fetches live data from
// the backend and returns the first few records of each resource.
func (h *Handler) DebugDataSample(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	ctx, cancel := context.WithTimeout(r.Context(), 60*time.Second)
	defer cancel()

	items, err := h.client.FetchItems(ctx)
	if err != nil {
		h.logger.Error().Err(err).Msg("Data sample fetch failed")
		rw.Error(http.StatusBadGateway, ErrCodeIngestion, "Failed to fetch data from backend")
		return
	}
	interactions, err := h.client.FetchInteractions(ctx)
	if err != nil {
		h.logger.Error().Err(err).Msg("Data sample fetch failed")
		rw.Error(http.StatusBadGateway, ErrCodeIngestion, "Failed to fetch data from backend")
		return
	}

	itemSample := items
	if len(itemSample) > dataSampleLimit {
		itemSample = itemSample[:dataSampleLimit]
	}
	interactionSample := interactions
	if len(interactionSample) > dataSampleLimit {
		interactionSample = interactionSample[:dataSampleLimit]
	}

	rw.Success(map[string]interface{}{
		"item_count":         len(items),
		"interaction_count":  len(interactions),
		"item_sample":        itemSample,
		"interaction_sample": interactionSample,
	})
}
