// Adama Tourism ML Engine - Tourism Recommendation Service
// Copyright 2026 Adama Tourism
// SPDX-License-Identifier: MIT
// https://github.com/adama-tourism/ml-engine

// Package config provides layered configuration for the ML engine.
//
// Configuration is resolved in three layers with increasing precedence:
//
//  1. Built-in defaults
//  2. Optional YAML config file
//  3. Environment variables
//
// The resolved configuration is validated before use.
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config is the root configuration for the service.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Backend  BackendConfig  `koanf:"backend"`
	Training TrainingConfig `koanf:"training"`
	Storage  StorageConfig  `koanf:"storage"`
	Security SecurityConfig `koanf:"security"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// ServerConfig configures the inbound HTTP server.
type ServerConfig struct {
	// Host is the listen address.
	Host string `koanf:"host"`

	// Port is the listen port.
	Port int `koanf:"port" validate:"min=1,max=65535"`

	// ReadTimeout bounds the time spent reading a request.
	ReadTimeout time.Duration `koanf:"read_timeout"`

	// WriteTimeout bounds the time spent writing a response.
	WriteTimeout time.Duration `koanf:"write_timeout"`

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// BackendConfig configures the outbound connection to the backend data API
// that serves items and interactions for training.
type BackendConfig struct {
	// URL is the base URL of the backend API.
	URL string `koanf:"url" validate:"required,url"`

	// Secret is the bearer credential sent with every data request.
	Secret string `koanf:"secret"`

	// ItemsPageSize is the page size used when fetching items.
	ItemsPageSize int `koanf:"items_page_size" validate:"min=1"`

	// InteractionsPageSize is the page size used when fetching interactions.
	InteractionsPageSize int `koanf:"interactions_page_size" validate:"min=1"`

	// MaxPages caps how many pages a single fetch will walk.
	// Guards against a backend that never reports a short page.
	MaxPages int `koanf:"max_pages" validate:"min=1"`

	// RequestTimeout bounds each page request.
	RequestTimeout time.Duration `koanf:"request_timeout"`

	// RequestsPerSecond rate-limits outbound page requests. 0 disables.
	RequestsPerSecond float64 `koanf:"requests_per_second"`
}

// TrainingConfig holds hyperparameters for the collaborative-filtering model.
type TrainingConfig struct {
	// Epochs is the number of optimization iterations.
	Epochs int `koanf:"epochs" validate:"min=1"`

	// NumFactors is the latent-factor dimensionality.
	NumFactors int `koanf:"num_factors" validate:"min=1"`

	// Regularization is the L2 regularization parameter.
	Regularization float64 `koanf:"regularization"`

	// Alpha scales implicit-feedback confidence: c = 1 + alpha*w.
	Alpha float64 `koanf:"alpha"`

	// JobTimeout bounds a full background training run.
	JobTimeout time.Duration `koanf:"job_timeout"`
}

// StorageConfig configures the artifact store.
type StorageConfig struct {
	// Dir is the directory holding model artifacts.
	Dir string `koanf:"dir" validate:"required"`
}

// SecurityConfig configures inbound request protection.
type SecurityConfig struct {
	// APIKey, when set, is required on every request via the X-API-Key header.
	APIKey string `koanf:"api_key"`

	// RateLimitRequests is the per-IP request budget per window. 0 disables.
	RateLimitRequests int `koanf:"rate_limit_requests"`

	// RateLimitWindow is the rate-limit window.
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`

	// CORSOrigins lists allowed CORS origins.
	CORSOrigins []string `koanf:"cors_origins"`
}

// LoggingConfig configures the global logger.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// defaultConfig returns a Config with all default values.
// Defaults are applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8000,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Backend: BackendConfig{
			URL:                  "http://localhost:3000",
			Secret:               "",
			ItemsPageSize:        500,
			InteractionsPageSize: 1000,
			MaxPages:             5000,
			RequestTimeout:       30 * time.Second,
			RequestsPerSecond:    0,
		},
		Training: TrainingConfig{
			Epochs:         20,
			NumFactors:     30,
			Regularization: 0.01,
			Alpha:          40.0,
			JobTimeout:     30 * time.Minute,
		},
		Storage: StorageConfig{
			Dir: "/data/models",
		},
		Security: SecurityConfig{
			APIKey:            "",
			RateLimitRequests: 0,
			RateLimitWindow:   time.Minute,
			CORSOrigins:       []string{"*"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}
