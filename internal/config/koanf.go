// Adama Tourism ML Engine - Tourism Recommendation Service
// Copyright 2026 Adama Tourism
// SPDX-License-Identifier: MIT
// https://github.com/adama-tourism/ml-engine

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in order
// of priority. The first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/ml-engine/config.yaml",
	"/etc/ml-engine/config.yml",
}

// ConfigPathEnvVar overrides the config file path when set.
const ConfigPathEnvVar = "CONFIG_PATH"

// envMappings maps flat environment variable names to koanf paths.
// EXPRESS_ML_URL and ML_SECRET are kept for compatibility with existing
// deployments of the backend integration.
var envMappings = map[string]string{
	"EXPRESS_ML_URL":                 "backend.url",
	"ML_SECRET":                      "backend.secret",
	"BACKEND_URL":                    "backend.url",
	"BACKEND_SECRET":                 "backend.secret",
	"BACKEND_ITEMS_PAGE_SIZE":        "backend.items_page_size",
	"BACKEND_INTERACTIONS_PAGE_SIZE": "backend.interactions_page_size",
	"BACKEND_MAX_PAGES":              "backend.max_pages",
	"BACKEND_REQUEST_TIMEOUT":        "backend.request_timeout",
	"BACKEND_REQUESTS_PER_SECOND":    "backend.requests_per_second",

	"HTTP_HOST":             "server.host",
	"HTTP_PORT":             "server.port",
	"HTTP_READ_TIMEOUT":     "server.read_timeout",
	"HTTP_WRITE_TIMEOUT":    "server.write_timeout",
	"HTTP_SHUTDOWN_TIMEOUT": "server.shutdown_timeout",

	"TRAINING_EPOCHS":         "training.epochs",
	"TRAINING_NUM_FACTORS":    "training.num_factors",
	"TRAINING_REGULARIZATION": "training.regularization",
	"TRAINING_ALPHA":          "training.alpha",
	"TRAINING_JOB_TIMEOUT":    "training.job_timeout",

	"MODELS_DIR": "storage.dir",

	"ML_API_KEY":          "security.api_key",
	"RATE_LIMIT_REQUESTS": "security.rate_limit_requests",
	"RATE_LIMIT_WINDOW":   "security.rate_limit_window",
	"CORS_ORIGINS":        "security.cors_origins",

	"LOG_LEVEL":  "logging.level",
	"LOG_FORMAT": "logging.format",
	"LOG_CALLER": "logging.caller",
}

// Load resolves the configuration from defaults, an optional YAML file, and
// environment variables, in that order of precedence, then validates it.
func Load() (*Config, error) {
	k := koanf.New(".")

	// Layer 1: defaults from struct
	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	// Layer 2: optional config file
	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	// Layer 3: environment variables (highest priority)
	envProvider := env.Provider("", ".", func(name string) string {
		if path, ok := envMappings[name]; ok {
			return path
		}
		return "" // unmapped variables are ignored
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	// CORS origins arrive as a comma-separated string from the environment.
	if raw := k.String("security.cors_origins"); raw != "" && strings.Contains(raw, ",") {
		parts := strings.Split(raw, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		if err := k.Set("security.cors_origins", parts); err != nil {
			return nil, fmt.Errorf("set cors origins: %w", err)
		}
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// findConfigFile returns the first config file that exists, or "".
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}
