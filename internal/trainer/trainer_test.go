// Adama Tourism ML Engine - Tourism Recommendation Service
// Copyright 2026 Adama Tourism
// SPDX-License-Identifier: MIT
// https://github.com/adama-tourism/ml-engine

package trainer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/adama-tourism/ml-engine/internal/artifacts"
	"github.com/adama-tourism/ml-engine/internal/recommend"
	"github.com/adama-tourism/ml-engine/internal/similarity"
)

// fakeClient serves canned data, optionally blocking until released.
type fakeClient struct {
	items        []recommend.Item
	interactions []recommend.Interaction
	err          error
	block        chan struct{}
}

func (f *fakeClient) FetchItems(ctx context.Context) ([]recommend.Item, error) {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.items, f.err
}

func (f *fakeClient) FetchInteractions(ctx context.Context) ([]recommend.Interaction, error) {
	return f.interactions, f.err
}

func testData() ([]recommend.Item, []recommend.Interaction) {
	items := []recommend.Item{
		{ItemID: "lake", Title: "Lake Resort", Description: "boats and fishing", Tags: "nature"},
		{ItemID: "museum", Title: "City Museum", Description: "history exhibits", Tags: "culture"},
	}
	interactions := []recommend.Interaction{
		{UserID: "alice", ItemID: "lake", Type: recommend.InteractionBook},
		{UserID: "bob", ItemID: "museum", Type: recommend.InteractionClick},
	}
	return items, interactions
}

func newTestOrchestrator(t *testing.T, client DataClient) (*Orchestrator, *recommend.Engine, *similarity.Engine) {
	t.Helper()

	store, err := artifacts.NewStore(artifacts.Config{Dir: t.TempDir()})
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}

	alsCfg := recommend.ALSConfig{NumFactors: 4, NumIterations: 5, Regularization: 0.01, Alpha: 40, NumWorkers: 2}
	cf := recommend.NewEngine(store, alsCfg, zerolog.Nop())
	sim := similarity.NewEngine(store, similarity.DefaultMaxFeatures, zerolog.Nop())

	return NewOrchestrator(client, cf, sim, time.Minute, zerolog.Nop()), cf, sim
}

// waitDone polls until no job is running.
func waitDone(t *testing.T, o *Orchestrator) {
	t.Helper()

	deadline := time.Now().Add(10 * time.Second)
	for o.Running() {
		if time.Now().After(deadline) {
			t.Fatal("training run did not finish in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestOrchestratorSuccessfulRun(t *testing.T) {
	items, interactions := testData()
	client := &fakeClient{items: items, interactions: interactions}
	o, cf, sim := newTestOrchestrator(t, client)

	job, err := o.Start()
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if job.ID == "" {
		t.Error("job has no id")
	}
	if job.State != JobRunning {
		t.Errorf("job state = %q, want %q", job.State, JobRunning)
	}

	waitDone(t, o)

	current, last := o.Status()
	if current != nil {
		t.Errorf("current job = %+v, want nil after completion", current)
	}
	if last == nil {
		t.Fatal("no last job recorded")
	}
	if last.State != JobSucceeded {
		t.Errorf("last job state = %q (%s), want %q", last.State, last.Error, JobSucceeded)
	}
	if last.Items != 2 || last.Interactions != 2 {
		t.Errorf("last job counts = %d items, %d interactions, want 2 and 2", last.Items, last.Interactions)
	}
	if last.FinishedAt.IsZero() {
		t.Error("last job has no finish time")
	}

	if !cf.IsReady() {
		t.Error("collaborative engine not ready after successful run")
	}
	if !sim.IsReady() {
		t.Error("similarity engine not ready after successful run")
	}
}

func TestOrchestratorSingleFlight(t *testing.T) {
	items, interactions := testData()
	client := &fakeClient{items: items, interactions: interactions, block: make(chan struct{})}
	o, _, _ := newTestOrchestrator(t, client)

	first, err := o.Start()
	if err != nil {
		t.Fatalf("first Start() error = %v", err)
	}

	// Second start while the first is blocked must be rejected and must
	// return the in-flight job.
	second, err := o.Start()
	if !errors.Is(err, ErrTrainingInProgress) {
		t.Fatalf("second Start() error = %v, want ErrTrainingInProgress", err)
	}
	if second.ID != first.ID {
		t.Errorf("second Start() returned job %q, want in-flight job %q", second.ID, first.ID)
	}

	close(client.block)
	waitDone(t, o)

	// After completion a new run is accepted.
	third, err := o.Start()
	if err != nil {
		t.Fatalf("Start() after completion error = %v", err)
	}
	if third.ID == first.ID {
		t.Error("new run reused the previous job id")
	}
	waitDone(t, o)
}

func TestOrchestratorFetchFailure(t *testing.T) {
	client := &fakeClient{err: errors.New("backend unreachable")}
	o, cf, sim := newTestOrchestrator(t, client)

	if _, err := o.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	waitDone(t, o)

	_, last := o.Status()
	if last == nil {
		t.Fatal("no last job recorded")
	}
	if last.State != JobFailed {
		t.Errorf("last job state = %q, want %q", last.State, JobFailed)
	}
	if last.Error == "" {
		t.Error("failed job has no error message")
	}

	if cf.IsReady() || sim.IsReady() {
		t.Error("engines should not be ready after failed run")
	}
}

func TestOrchestratorEmptyData(t *testing.T) {
	client := &fakeClient{}
	o, _, _ := newTestOrchestrator(t, client)

	if _, err := o.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	waitDone(t, o)

	_, last := o.Status()
	if last == nil || last.State != JobFailed {
		t.Errorf("run over empty data should fail, got %+v", last)
	}
}
