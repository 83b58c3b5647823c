// Adama Tourism ML Engine - Tourism Recommendation Service
// Copyright 2026 Adama Tourism
// SPDX-License-Identifier: MIT
// https://github.com/adama-tourism/ml-engine

package recommend

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"github.com/adama-tourism/ml-engine/internal/artifacts"
)

func newTestEngine(t *testing.T, dir string) *Engine {
	t.Helper()

	store, err := artifacts.NewStore(artifacts.Config{Dir: dir})
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	return NewEngine(store, testALSConfig(), zerolog.Nop())
}

func testTrainingData() ([]Item, []Interaction) {
	items := []Item{
		{ItemID: "lake-koka", Title: "Lake Koka", Category: "nature"},
		{ItemID: "museum", Title: "City Museum", Category: "culture"},
		{ItemID: "park", Title: "Central Park", Category: "nature"},
	}
	interactions := []Interaction{
		{UserID: "alice", ItemID: "lake-koka", Type: InteractionBook},
		{UserID: "alice", ItemID: "park", Type: InteractionView},
		{UserID: "bob", ItemID: "museum", Type: InteractionBook},
		{UserID: "bob", ItemID: "museum", Type: InteractionReview},
		{UserID: "carol", ItemID: "lake-koka", Type: InteractionFavorite},
	}
	return items, interactions
}

func TestEngineNotReady(t *testing.T) {
	e := newTestEngine(t, t.TempDir())

	if e.IsReady() {
		t.Error("fresh engine with empty store should not be ready")
	}
	if got := e.RecommendForUser("alice", 5); got != nil {
		t.Errorf("RecommendForUser() = %v, want nil before training", got)
	}

	stats := e.Stats()
	if stats.Ready {
		t.Error("Stats().Ready = true, want false")
	}
}

func TestEngineTrainAndRecommend(t *testing.T) {
	e := newTestEngine(t, t.TempDir())
	items, interactions := testTrainingData()

	if err := e.Train(context.Background(), items, interactions); err != nil {
		t.Fatalf("Train() error = %v", err)
	}
	if !e.IsReady() {
		t.Fatal("engine should be ready after training")
	}

	recs := e.RecommendForUser("alice", 3)
	if len(recs) != 3 {
		t.Fatalf("got %d recommendations, want 3", len(recs))
	}

	// Scores are descending
	for i := 1; i < len(recs); i++ {
		if recs[i].Score > recs[i-1].Score {
			t.Errorf("scores not descending at %d: %v > %v", i, recs[i].Score, recs[i-1].Score)
		}
	}

	// No duplicate items
	seen := make(map[string]bool)
	for _, r := range recs {
		if seen[r.ItemID] {
			t.Errorf("duplicate item %q in recommendations", r.ItemID)
		}
		seen[r.ItemID] = true
	}
}

func TestEngineRecommendLimits(t *testing.T) {
	e := newTestEngine(t, t.TempDir())
	items, interactions := testTrainingData()

	if err := e.Train(context.Background(), items, interactions); err != nil {
		t.Fatalf("Train() error = %v", err)
	}

	tests := []struct {
		name string
		n    int
		want int
	}{
		{"n larger than catalog", 10, 3},
		{"n smaller than catalog", 2, 2},
		{"n zero", 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := len(e.RecommendForUser("alice", tt.n)); got != tt.want {
				t.Errorf("got %d recommendations, want %d", got, tt.want)
			}
		})
	}
}

func TestEngineColdStartUnknownUser(t *testing.T) {
	e := newTestEngine(t, t.TempDir())
	items, interactions := testTrainingData()

	if err := e.Train(context.Background(), items, interactions); err != nil {
		t.Fatalf("Train() error = %v", err)
	}

	recs := e.RecommendForUser("stranger", 2)
	if len(recs) != 2 {
		t.Fatalf("got %d cold-start recommendations, want 2", len(recs))
	}
	for i := 1; i < len(recs); i++ {
		if recs[i].Score > recs[i-1].Score {
			t.Errorf("cold-start scores not descending at %d", i)
		}
	}
}

func TestEngineTrainNoInteractions(t *testing.T) {
	e := newTestEngine(t, t.TempDir())
	items, _ := testTrainingData()

	if err := e.Train(context.Background(), items, nil); err == nil {
		t.Error("expected error training with no interactions")
	}
	if e.IsReady() {
		t.Error("engine should remain not ready after failed training")
	}
}

func TestEnginePersistAndReload(t *testing.T) {
	dir := t.TempDir()

	e1 := newTestEngine(t, dir)
	items, interactions := testTrainingData()
	if err := e1.Train(context.Background(), items, interactions); err != nil {
		t.Fatalf("Train() error = %v", err)
	}
	want := e1.RecommendForUser("alice", 3)

	// A fresh engine over the same store must restore the model and give
	// identical answers.
	e2 := newTestEngine(t, dir)
	if !e2.IsReady() {
		t.Fatal("reloaded engine should be ready")
	}

	got := e2.RecommendForUser("alice", 3)
	if len(got) != len(want) {
		t.Fatalf("got %d recommendations after reload, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].ItemID != want[i].ItemID || got[i].Score != want[i].Score {
			t.Errorf("recommendation %d differs after reload: %+v vs %+v", i, got[i], want[i])
		}
	}
}

func TestEngineRetrainSwapsModel(t *testing.T) {
	e := newTestEngine(t, t.TempDir())
	items, interactions := testTrainingData()

	if err := e.Train(context.Background(), items, interactions); err != nil {
		t.Fatalf("first Train() error = %v", err)
	}
	v1 := e.Stats().Version

	// Retrain with an extra item in the catalog.
	items = append(items, Item{ItemID: "waterfall", Title: "Hidden Waterfall"})
	interactions = append(interactions, Interaction{
		UserID: "alice", ItemID: "waterfall", Type: InteractionClick,
	})
	if err := e.Train(context.Background(), items, interactions); err != nil {
		t.Fatalf("second Train() error = %v", err)
	}

	stats := e.Stats()
	if stats.Version <= v1 {
		t.Errorf("version after retrain = %d, want > %d", stats.Version, v1)
	}
	if stats.NumItems != 4 {
		t.Errorf("NumItems = %d, want 4", stats.NumItems)
	}
}
