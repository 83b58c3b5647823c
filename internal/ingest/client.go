// Adama Tourism ML Engine - Tourism Recommendation Service
// Copyright 2026 Adama Tourism
// SPDX-License-Identifier: MIT
// https://github.com/adama-tourism/ml-engine

// Package ingest fetches the item catalog and interaction history from the
// backend data API and normalizes them into training records.
//
// The backend exposes paginated collections under /api/ml/{resource} with
// bearer token authentication. The client walks every page until a short or
// empty page, bounded by a configurable page cap, behind a circuit breaker
// and a client-side rate limiter.
package ingest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/adama-tourism/ml-engine/internal/metrics"
	"github.com/adama-tourism/ml-engine/internal/recommend"
)

// maxErrorBodySize limits how much of an error response body is read for
// diagnostics.
const maxErrorBodySize = 64 * 1024 // 64KB

// Config configures the backend data client.
type Config struct {
	// URL is the backend base URL, e.g. "http://backend:4000".
	URL string

	// Secret is the bearer token presented on every request.
	Secret string

	// ItemsPageSize is the page size for the items resource.
	ItemsPageSize int

	// InteractionsPageSize is the page size for the interactions resource.
	InteractionsPageSize int

	// MaxPages caps pagination per resource as a runaway guard.
	MaxPages int

	// RequestTimeout bounds each individual HTTP request.
	RequestTimeout time.Duration

	// RequestsPerSecond limits the client-side request rate. Zero disables
	// the limiter.
	RequestsPerSecond float64
}

// StatusError reports a non-200 response from the backend.
type StatusError struct {
	Resource   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("backend returned %d for %s: %s", e.StatusCode, e.Resource, e.Body)
}

// Client fetches paginated resources from the backend data API.
// Safe for concurrent use.
type Client struct {
	cfg     Config
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[[]byte]
	limiter *rate.Limiter
	logger  zerolog.Logger
}

// NewClient creates a backend data client.
func NewClient(cfg Config, logger zerolog.Logger) *Client {
	if cfg.ItemsPageSize <= 0 {
		cfg.ItemsPageSize = 500
	}
	if cfg.InteractionsPageSize <= 0 {
		cfg.InteractionsPageSize = 1000
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 5000
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}

	c := &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.RequestTimeout},
		logger: logger.With().Str("component", "ingest").Logger(),
	}

	if cfg.RequestsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	c.breaker = gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "backend-data-api",
		MaxRequests: 1,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Circuit breaker state changed")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(breakerStateValue(to))
		},
	})

	return c
}

func breakerStateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}

// FetchItems retrieves and normalizes the full item catalog.
func (c *Client) FetchItems(ctx context.Context) ([]recommend.Item, error) {
	records, err := c.fetchAll(ctx, "items", c.cfg.ItemsPageSize)
	if err != nil {
		return nil, err
	}

	items := make([]recommend.Item, 0, len(records))
	for _, rec := range records {
		items = append(items, NormalizeItem(rec))
	}
	return items, nil
}

// FetchInteractions retrieves and normalizes the full interaction history.
func (c *Client) FetchInteractions(ctx context.Context) ([]recommend.Interaction, error) {
	records, err := c.fetchAll(ctx, "interactions", c.cfg.InteractionsPageSize)
	if err != nil {
		return nil, err
	}

	interactions := make([]recommend.Interaction, 0, len(records))
	for _, rec := range records {
		interactions = append(interactions, NormalizeInteraction(rec))
	}
	return interactions, nil
}

// page is the backend page envelope. The record array key varies by
// resource, so all known keys are declared and the first non-empty one wins.
type page struct {
	Items        []map[string]interface{} `json:"items"`
	Interactions []map[string]interface{} `json:"interactions"`
	Users        []map[string]interface{} `json:"users"`
}

// records returns the first populated record array of the page.
func (p *page) records() []map[string]interface{} {
	switch {
	case len(p.Items) > 0:
		return p.Items
	case len(p.Interactions) > 0:
		return p.Interactions
	case len(p.Users) > 0:
		return p.Users
	default:
		return nil
	}
}

// fetchAll walks every page of a resource. Pagination stops at the first
// empty page, at a page shorter than pageSize, or at the page cap.
func (c *Client) fetchAll(ctx context.Context, resource string, pageSize int) ([]map[string]interface{}, error) {
	var all []map[string]interface{}

	for pageNum := 1; ; pageNum++ {
		if pageNum > c.cfg.MaxPages {
			c.logger.Warn().
				Str("resource", resource).
				Int("max_pages", c.cfg.MaxPages).
				Msg("Pagination cap reached, stopping fetch")
			break
		}

		body, err := c.fetchPage(ctx, resource, pageNum, pageSize)
		if err != nil {
			metrics.IngestionErrors.WithLabelValues(resource).Inc()
			return nil, fmt.Errorf("fetch %s page %d: %w", resource, pageNum, err)
		}

		var p page
		if err := json.Unmarshal(body, &p); err != nil {
			metrics.IngestionErrors.WithLabelValues(resource).Inc()
			return nil, fmt.Errorf("parse %s page %d: %w", resource, pageNum, err)
		}

		chunk := p.records()
		if len(chunk) == 0 {
			break
		}

		all = append(all, chunk...)
		metrics.IngestionPagesFetched.WithLabelValues(resource).Inc()
		metrics.IngestionRecordsFetched.WithLabelValues(resource).Add(float64(len(chunk)))

		// A short page is the last page.
		if len(chunk) < pageSize {
			break
		}
	}

	c.logger.Info().
		Str("resource", resource).
		Int("records", len(all)).
		Msg("Fetched backend resource")

	return all, nil
}

// fetchPage performs one page request through the rate limiter and circuit
// breaker.
func (c *Client) fetchPage(ctx context.Context, resource string, pageNum, pageSize int) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	url := fmt.Sprintf("%s/api/ml/%s?page=%d&pageSize=%d",
		strings.TrimRight(c.cfg.URL, "/"), resource, pageNum, pageSize)

	return c.breaker.Execute(func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+c.cfg.Secret)
		req.Header.Set("Accept", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
			return nil, &StatusError{
				Resource:   resource,
				StatusCode: resp.StatusCode,
				Body:       strings.TrimSpace(string(body)),
			}
		}

		return io.ReadAll(resp.Body)
	})
}
