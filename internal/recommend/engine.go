// Adama Tourism ML Engine - Tourism Recommendation Service
// Copyright 2026 Adama Tourism
// SPDX-License-Identifier: MIT
// https://github.com/adama-tourism/ml-engine

package recommend

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/adama-tourism/ml-engine/internal/artifacts"
	"github.com/adama-tourism/ml-engine/internal/metrics"
)

// BundleName is the artifact bundle holding the collaborative model.
const BundleName = "collaborative"

// Artifact names within the bundle. ArtifactItemNorms is optional; the other
// three must all be present for a load to succeed.
const (
	ArtifactModel     = "model"
	ArtifactUserIndex = "user_index"
	ArtifactItemIndex = "item_index"
	ArtifactItemNorms = "item_norms"
)

// snapshot is one immutable trained state: the factor model plus the exact
// id mappings it was trained against. Queries read a snapshot without
// locking anything but the pointer swap.
type snapshot struct {
	model     *FactorModel
	users     *IndexMapping
	items     *IndexMapping
	itemNorms []float64
	trainedAt time.Time
	version   int
}

// Engine is the collaborative filtering engine. It trains latent factor
// models from implicit feedback, persists them through the artifact store,
// and answers personalized recommendation queries.
//
// A freshly constructed engine attempts to load the last persisted model;
// until a model is available it reports not ready and returns nil results.
type Engine struct {
	store  *artifacts.Store
	cfg    ALSConfig
	logger zerolog.Logger

	mu   sync.RWMutex
	snap *snapshot
}

// NewEngine creates the engine and attempts to restore the last persisted
// model. A missing or unloadable bundle is not an error; the engine starts
// in the not-ready state and becomes ready after the first training run.
func NewEngine(store *artifacts.Store, cfg ALSConfig, logger zerolog.Logger) *Engine {
	e := &Engine{
		store:  store,
		cfg:    cfg.normalize(),
		logger: logger.With().Str("component", "recommend").Logger(),
	}

	snap, err := e.loadSnapshot()
	switch {
	case errors.Is(err, artifacts.ErrBundleNotFound):
		e.logger.Info().Msg("No persisted collaborative model found, starting untrained")
	case err != nil:
		e.logger.Warn().Err(err).Msg("Failed to load persisted collaborative model, starting untrained")
	default:
		e.snap = snap
		e.logger.Info().
			Int("version", snap.version).
			Int("users", snap.users.Len()).
			Int("items", snap.items.Len()).
			Time("trained_at", snap.trainedAt).
			Msg("Loaded persisted collaborative model")
	}

	metrics.SetEngineReady("collaborative", e.snap != nil)
	return e
}

// IsReady reports whether a trained model is loaded.
func (e *Engine) IsReady() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.snap != nil
}

// Stats describes the currently loaded model, for diagnostics.
type Stats struct {
	Ready     bool      `json:"ready"`
	NumUsers  int       `json:"num_users"`
	NumItems  int       `json:"num_items"`
	Version   int       `json:"version"`
	TrainedAt time.Time `json:"trained_at,omitempty"`
}

// Stats returns diagnostics for the loaded model.
func (e *Engine) Stats() Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.snap == nil {
		return Stats{}
	}
	return Stats{
		Ready:     true,
		NumUsers:  e.snap.users.Len(),
		NumItems:  e.snap.items.Len(),
		Version:   e.snap.version,
		TrainedAt: e.snap.trainedAt,
	}
}

// Train builds id mappings from the given data, fits a new factor model,
// persists it as a new bundle generation, and atomically swaps it in.
// In-flight queries keep reading the previous snapshot until the swap.
func (e *Engine) Train(ctx context.Context, items []Item, interactions []Interaction) error {
	start := time.Now()

	users := NewIndexMapping()
	itemIdx := NewIndexMapping()

	// Catalog items first so item ordering follows the catalog, then union
	// in any interaction-only items.
	for _, it := range items {
		if it.ItemID == "" {
			continue
		}
		itemIdx.Add(it.ItemID)
	}

	// Sum weights per (user, item) pair.
	type pair struct{ u, i int }
	weights := make(map[pair]float64)
	order := make([]pair, 0, len(interactions))

	for _, inter := range interactions {
		if inter.UserID == "" || inter.ItemID == "" {
			continue
		}
		u := users.Add(inter.UserID)
		i := itemIdx.Add(inter.ItemID)
		p := pair{u, i}
		if _, seen := weights[p]; !seen {
			order = append(order, p)
		}
		weights[p] += inter.Type.Weight()
	}

	if users.Len() == 0 || itemIdx.Len() == 0 {
		return errors.New("train: no usable interactions")
	}

	cells := make([]WeightedCell, 0, len(order))
	for _, p := range order {
		cells = append(cells, WeightedCell{UserIdx: p.u, ItemIdx: p.i, Weight: weights[p]})
	}

	e.logger.Info().
		Int("users", users.Len()).
		Int("items", itemIdx.Len()).
		Int("cells", len(cells)).
		Int("factors", e.cfg.NumFactors).
		Int("iterations", e.cfg.NumIterations).
		Msg("Training collaborative model")

	model, err := TrainALS(ctx, e.cfg, users.Len(), itemIdx.Len(), cells)
	if err != nil {
		return fmt.Errorf("train collaborative model: %w", err)
	}

	parts := map[string]interface{}{
		ArtifactModel:     model,
		ArtifactUserIndex: users,
		ArtifactItemIndex: itemIdx,
	}

	// Norms are a derived cache; failure to compute them only disables the
	// norm-ranked cold-start path.
	if norms := model.ItemNorms(); len(norms) == itemIdx.Len() {
		parts[ArtifactItemNorms] = norms
	} else {
		e.logger.Warn().Msg("Item norm derivation incomplete, skipping norms artifact")
	}

	if err := e.store.SaveBundle(BundleName, parts); err != nil {
		return fmt.Errorf("persist collaborative model: %w", err)
	}

	// Reload through the store so the serving snapshot is exactly what a
	// restart would see.
	snap, err := e.loadSnapshot()
	if err != nil {
		return fmt.Errorf("reload collaborative model: %w", err)
	}

	e.mu.Lock()
	e.snap = snap
	e.mu.Unlock()

	metrics.SetEngineReady("collaborative", true)

	e.logger.Info().
		Int("version", snap.version).
		Dur("duration", time.Since(start)).
		Msg("Collaborative model trained and persisted")

	return nil
}

// loadSnapshot opens the latest committed bundle and decodes its artifacts.
func (e *Engine) loadSnapshot() (*snapshot, error) {
	bundle, err := e.store.OpenBundle(BundleName)
	if err != nil {
		return nil, err
	}

	snap := &snapshot{
		model:     &FactorModel{},
		users:     NewIndexMapping(),
		items:     NewIndexMapping(),
		trainedAt: bundle.SavedAt(),
		version:   bundle.Version(),
	}

	if err := bundle.Load(ArtifactModel, snap.model); err != nil {
		return nil, err
	}
	if err := bundle.Load(ArtifactUserIndex, snap.users); err != nil {
		return nil, err
	}
	if err := bundle.Load(ArtifactItemIndex, snap.items); err != nil {
		return nil, err
	}

	if bundle.Has(ArtifactItemNorms) {
		if err := bundle.Load(ArtifactItemNorms, &snap.itemNorms); err != nil {
			return nil, err
		}
	}

	if len(snap.model.ItemFactors) != snap.items.Len() || len(snap.model.UserFactors) != snap.users.Len() {
		return nil, fmt.Errorf("collaborative bundle inconsistent: model %dx%d, indices %dx%d",
			len(snap.model.UserFactors), len(snap.model.ItemFactors), snap.users.Len(), snap.items.Len())
	}

	return snap, nil
}

// RecommendForUser returns the top-n items for a user, scored by the latent
// factor model. Unknown users receive the cold-start ranking. Returns nil
// when no model is loaded.
func (e *Engine) RecommendForUser(userID string, n int) []ScoredItem {
	e.mu.RLock()
	snap := e.snap
	e.mu.RUnlock()

	if snap == nil || n <= 0 {
		return nil
	}

	userIdx, known := snap.users.Index(userID)
	if !known {
		return snap.coldStart(n)
	}

	scores := snap.model.ScoresForUser(userIdx)
	if scores == nil {
		return snap.coldStart(n)
	}

	return snap.topN(scores, n)
}

// coldStart ranks items for users the model has never seen. When item norms
// are available, larger norms rank first; otherwise the first n catalog items
// are returned in mapping order with score 0.
func (s *snapshot) coldStart(n int) []ScoredItem {
	if len(s.itemNorms) == s.items.Len() && s.items.Len() > 0 {
		return s.topN(s.itemNorms, n)
	}

	if n > s.items.Len() {
		n = s.items.Len()
	}
	out := make([]ScoredItem, 0, n)
	for idx := 0; idx < n; idx++ {
		id, _ := s.items.ID(idx)
		out = append(out, ScoredItem{ItemID: id, Score: 0.0})
	}
	return out
}

// topN returns the n highest-scored items. Ties break on ascending item
// index, which keeps results stable across identical runs.
func (s *snapshot) topN(scores []float64, n int) []ScoredItem {
	idxs := make([]int, len(scores))
	for i := range idxs {
		idxs[i] = i
	}

	sort.Slice(idxs, func(a, b int) bool {
		ia, ib := idxs[a], idxs[b]
		if scores[ia] != scores[ib] {
			return scores[ia] > scores[ib]
		}
		return ia < ib
	})

	if n > len(idxs) {
		n = len(idxs)
	}

	out := make([]ScoredItem, 0, n)
	for _, idx := range idxs[:n] {
		id, ok := s.items.ID(idx)
		if !ok {
			continue
		}
		out = append(out, ScoredItem{ItemID: id, Score: scores[idx]})
	}
	return out
}
