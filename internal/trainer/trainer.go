// Adama Tourism ML Engine - Tourism Recommendation Service
// Copyright 2026 Adama Tourism
// SPDX-License-Identifier: MIT
// https://github.com/adama-tourism/ml-engine

// Package trainer orchestrates full training runs: it fetches fresh data
// from the backend, retrains the collaborative model, and rebuilds the
// content similarity index. At most one run is in flight at a time.
package trainer

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/adama-tourism/ml-engine/internal/ingest"
	"github.com/adama-tourism/ml-engine/internal/metrics"
	"github.com/adama-tourism/ml-engine/internal/recommend"
	"github.com/adama-tourism/ml-engine/internal/similarity"
)

// ErrTrainingInProgress is returned by Start while a run is in flight.
var ErrTrainingInProgress = errors.New("training already in progress")

// JobState is the lifecycle state of a training job.
type JobState string

const (
	JobPending   JobState = "pending"
	JobRunning   JobState = "running"
	JobSucceeded JobState = "succeeded"
	JobFailed    JobState = "failed"
)

// Job is an immutable snapshot of one training job.
type Job struct {
	ID           string    `json:"id"`
	State        JobState  `json:"state"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at,omitempty"`
	Error        string    `json:"error,omitempty"`
	Items        int       `json:"items,omitempty"`
	Interactions int       `json:"interactions,omitempty"`
}

// DataClient is the slice of the ingestion client the orchestrator needs.
type DataClient interface {
	FetchItems(ctx context.Context) ([]recommend.Item, error)
	FetchInteractions(ctx context.Context) ([]recommend.Interaction, error)
}

var _ DataClient = (*ingest.Client)(nil)

// Orchestrator runs training jobs in the background. A second Start while a
// job is running fails with ErrTrainingInProgress; the single-flight guard
// is the orchestrator's own, independent of engine locking.
type Orchestrator struct {
	client  DataClient
	cf      *recommend.Engine
	sim     *similarity.Engine
	timeout time.Duration
	logger  zerolog.Logger

	mu      sync.Mutex
	current *Job
	last    *Job
}

// NewOrchestrator creates a training orchestrator. timeout bounds each full
// run; zero means 30 minutes.
func NewOrchestrator(client DataClient, cf *recommend.Engine, sim *similarity.Engine, timeout time.Duration, logger zerolog.Logger) *Orchestrator {
	if timeout <= 0 {
		timeout = 30 * time.Minute
	}
	return &Orchestrator{
		client:  client,
		cf:      cf,
		sim:     sim,
		timeout: timeout,
		logger:  logger.With().Str("component", "trainer").Logger(),
	}
}

// Start launches a background training run and returns its job snapshot.
// The run detaches from the caller's context; only the orchestrator timeout
// bounds it.
func (o *Orchestrator) Start() (Job, error) {
	o.mu.Lock()
	if o.current != nil {
		job := *o.current
		o.mu.Unlock()
		return job, ErrTrainingInProgress
	}

	job := &Job{
		ID:        uuid.NewString(),
		State:     JobRunning,
		StartedAt: time.Now().UTC(),
	}
	o.current = job
	snapshot := *job
	o.mu.Unlock()

	go o.run(job)

	return snapshot, nil
}

// Running reports whether a job is currently in flight.
func (o *Orchestrator) Running() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.current != nil
}

// Status returns snapshots of the in-flight job and the last finished job.
// Either may be nil.
func (o *Orchestrator) Status() (current, last *Job) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.current != nil {
		c := *o.current
		current = &c
	}
	if o.last != nil {
		l := *o.last
		last = &l
	}
	return current, last
}

// run executes one full training job and records its outcome.
func (o *Orchestrator) run(job *Job) {
	ctx, cancel := context.WithTimeout(context.Background(), o.timeout)
	defer cancel()

	start := time.Now()
	log := o.logger.With().Str("job_id", job.ID).Logger()
	log.Info().Msg("Training run started")

	err := o.train(ctx, job)

	o.mu.Lock()
	job.FinishedAt = time.Now().UTC()
	if err != nil {
		job.State = JobFailed
		job.Error = err.Error()
	} else {
		job.State = JobSucceeded
	}
	o.last = job
	o.current = nil
	o.mu.Unlock()

	if err != nil {
		metrics.ObserveTrainingRun("failed", time.Since(start))
		log.Error().Err(err).Dur("duration", time.Since(start)).Msg("Training run failed")
		return
	}

	metrics.ObserveTrainingRun("succeeded", time.Since(start))
	log.Info().
		Dur("duration", time.Since(start)).
		Int("items", job.Items).
		Int("interactions", job.Interactions).
		Msg("Training run succeeded")
}

// train fetches fresh data and rebuilds both engines.
func (o *Orchestrator) train(ctx context.Context, job *Job) error {
	var (
		items        []recommend.Item
		interactions []recommend.Interaction
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		items, err = o.client.FetchItems(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		interactions, err = o.client.FetchInteractions(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}

	o.mu.Lock()
	job.Items = len(items)
	job.Interactions = len(interactions)
	o.mu.Unlock()

	if err := o.cf.Train(ctx, items, interactions); err != nil {
		return err
	}

	// The similarity index rebuilds from the same catalog snapshot so both
	// engines serve a consistent view of the world.
	return o.sim.Build(ctx, items)
}
