// Adama Tourism ML Engine - Tourism Recommendation Service
// Copyright 2026 Adama Tourism
// SPDX-License-Identifier: MIT
// https://github.com/adama-tourism/ml-engine

package similarity

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/adama-tourism/ml-engine/internal/artifacts"
	"github.com/adama-tourism/ml-engine/internal/metrics"
	"github.com/adama-tourism/ml-engine/internal/recommend"
)

// BundleName is the artifact bundle holding the content similarity index.
const BundleName = "similarity"

// Artifact names within the bundle.
const (
	ArtifactVectorizer = "vectorizer"
	ArtifactMatrix     = "matrix"
	ArtifactItemIndex  = "item_index"
)

// index is one immutable built state: the fitted vectorizer, the row-per-item
// TF-IDF matrix, and the id mapping that pairs rows with item ids.
type index struct {
	vectorizer *Vectorizer
	matrix     [][]float64
	items      *recommend.IndexMapping
	builtAt    time.Time
	version    int
}

// Engine answers item-to-item similarity queries over TF-IDF vectors.
// Until an index is built (or restored from the artifact store) the engine
// reports not ready.
type Engine struct {
	store       *artifacts.Store
	maxFeatures int
	logger      zerolog.Logger

	mu  sync.RWMutex
	idx *index
}

// NewEngine creates the engine and attempts to restore the last persisted
// index. A missing or unloadable bundle leaves the engine not ready.
func NewEngine(store *artifacts.Store, maxFeatures int, logger zerolog.Logger) *Engine {
	e := &Engine{
		store:       store,
		maxFeatures: maxFeatures,
		logger:      logger.With().Str("component", "similarity").Logger(),
	}

	idx, err := e.loadIndex()
	switch {
	case errors.Is(err, artifacts.ErrBundleNotFound):
		e.logger.Info().Msg("No persisted similarity index found, starting unbuilt")
	case err != nil:
		e.logger.Warn().Err(err).Msg("Failed to load persisted similarity index, starting unbuilt")
	default:
		e.idx = idx
		e.logger.Info().
			Int("version", idx.version).
			Int("items", idx.items.Len()).
			Int("features", len(idx.vectorizer.IDF)).
			Msg("Loaded persisted similarity index")
	}

	metrics.SetEngineReady("similarity", e.idx != nil)
	return e
}

// IsReady reports whether a built index is loaded.
func (e *Engine) IsReady() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.idx != nil
}

// Stats describes the currently loaded index, for diagnostics.
type Stats struct {
	Ready    bool      `json:"ready"`
	NumItems int       `json:"num_items"`
	Features int       `json:"features"`
	Version  int       `json:"version"`
	BuiltAt  time.Time `json:"built_at,omitempty"`
}

// Stats returns diagnostics for the loaded index.
func (e *Engine) Stats() Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.idx == nil {
		return Stats{}
	}
	return Stats{
		Ready:    true,
		NumItems: e.idx.items.Len(),
		Features: len(e.idx.vectorizer.IDF),
		Version:  e.idx.version,
		BuiltAt:  e.idx.builtAt,
	}
}

// Build fits a TF-IDF index over the item catalog, persists it as a new
// bundle generation, and atomically swaps it in. Each item's document is the
// concatenation of its title, description, and tags.
func (e *Engine) Build(ctx context.Context, items []recommend.Item) error {
	start := time.Now()

	if err := ctx.Err(); err != nil {
		return err
	}

	itemIdx := recommend.NewIndexMapping()
	corpus := make([]string, 0, len(items))
	for _, it := range items {
		if it.ItemID == "" {
			continue
		}
		if _, known := itemIdx.Index(it.ItemID); known {
			continue
		}
		itemIdx.Add(it.ItemID)
		corpus = append(corpus, itemDocument(it))
	}

	if len(corpus) == 0 {
		return errors.New("build similarity index: no items")
	}

	vectorizer := NewVectorizer(e.maxFeatures)
	matrix, err := vectorizer.FitTransform(corpus)
	if err != nil {
		return fmt.Errorf("build similarity index: %w", err)
	}

	parts := map[string]interface{}{
		ArtifactVectorizer: vectorizer,
		ArtifactMatrix:     matrix,
		ArtifactItemIndex:  itemIdx,
	}
	if err := e.store.SaveBundle(BundleName, parts); err != nil {
		return fmt.Errorf("persist similarity index: %w", err)
	}

	idx, err := e.loadIndex()
	if err != nil {
		return fmt.Errorf("reload similarity index: %w", err)
	}

	e.mu.Lock()
	e.idx = idx
	e.mu.Unlock()

	metrics.SetEngineReady("similarity", true)

	e.logger.Info().
		Int("version", idx.version).
		Int("items", idx.items.Len()).
		Int("features", len(idx.vectorizer.IDF)).
		Dur("duration", time.Since(start)).
		Msg("Similarity index built and persisted")

	return nil
}

// loadIndex opens the latest committed bundle and decodes its artifacts.
func (e *Engine) loadIndex() (*index, error) {
	bundle, err := e.store.OpenBundle(BundleName)
	if err != nil {
		return nil, err
	}

	idx := &index{
		vectorizer: &Vectorizer{},
		items:      recommend.NewIndexMapping(),
		builtAt:    bundle.SavedAt(),
		version:    bundle.Version(),
	}

	if err := bundle.Load(ArtifactVectorizer, idx.vectorizer); err != nil {
		return nil, err
	}
	if err := bundle.Load(ArtifactMatrix, &idx.matrix); err != nil {
		return nil, err
	}
	if err := bundle.Load(ArtifactItemIndex, idx.items); err != nil {
		return nil, err
	}

	if len(idx.matrix) != idx.items.Len() {
		return nil, fmt.Errorf("similarity bundle inconsistent: %d matrix rows, %d items",
			len(idx.matrix), idx.items.Len())
	}

	return idx, nil
}

// MostSimilar returns up to n items most similar to the given item, the item
// itself excluded, ordered by descending cosine similarity with ties broken
// on ascending item index. The second return is false when no index is
// loaded. An unknown item id yields an empty, non-nil slice.
func (e *Engine) MostSimilar(itemID string, n int) ([]recommend.ScoredItem, bool) {
	e.mu.RLock()
	idx := e.idx
	e.mu.RUnlock()

	if idx == nil {
		return nil, false
	}

	source, known := idx.items.Index(itemID)
	if !known {
		return []recommend.ScoredItem{}, true
	}
	if n <= 0 {
		return []recommend.ScoredItem{}, true
	}

	sourceVec := idx.matrix[source]
	type scored struct {
		row   int
		score float64
	}
	candidates := make([]scored, 0, len(idx.matrix)-1)
	for row, vec := range idx.matrix {
		if row == source {
			continue
		}
		candidates = append(candidates, scored{row: row, score: cosine(sourceVec, vec)})
	}

	sort.Slice(candidates, func(a, b int) bool {
		if candidates[a].score != candidates[b].score {
			return candidates[a].score > candidates[b].score
		}
		return candidates[a].row < candidates[b].row
	})

	if n > len(candidates) {
		n = len(candidates)
	}

	out := make([]recommend.ScoredItem, 0, n)
	for _, c := range candidates[:n] {
		id, ok := idx.items.ID(c.row)
		if !ok {
			continue
		}
		out = append(out, recommend.ScoredItem{ItemID: id, Score: c.score})
	}
	return out, true
}

// itemDocument builds the text document for one item.
func itemDocument(it recommend.Item) string {
	return strings.TrimSpace(it.Title + " " + it.Description + " " + it.Tags)
}
