// Adama Tourism ML Engine - Tourism Recommendation Service
// Copyright 2026 Adama Tourism
// SPDX-License-Identifier: MIT
// https://github.com/adama-tourism/ml-engine

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/adama-tourism/ml-engine/internal/config"
)

// NewRouter assembles the full HTTP surface.
//
// Health and metrics endpoints bypass API key authentication and rate
// limiting so monitoring keeps working when the key rotates or clients
// misbehave.
func NewRouter(cfg config.SecurityConfig, h *Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-API-Key", "X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", h.Health)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(Metrics)
		r.Use(APIKeyAuth(cfg.APIKey))
		if cfg.RateLimitRequests > 0 {
			window := cfg.RateLimitWindow
			if window <= 0 {
				window = time.Minute
			}
			r.Use(httprate.LimitByIP(cfg.RateLimitRequests, window))
		}

		r.Post("/train", h.Train)
		r.Get("/recommend/user/{userID}", h.RecommendUser)
		r.Get("/recommend/item/{itemID}", h.RecommendItem)
		r.Get("/debug/status", h.DebugStatus)
		r.Get("/debug/data_sample", h.DebugDataSample)
	})

	return r
}
