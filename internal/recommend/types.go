// Adama Tourism ML Engine - Tourism Recommendation Service
// Copyright 2026 Adama Tourism
// SPDX-License-Identifier: MIT
// https://github.com/adama-tourism/ml-engine

package recommend

import (
	"strings"
)

// InteractionType classifies user-item interactions for implicit feedback.
type InteractionType string

const (
	InteractionView     InteractionType = "view"
	InteractionClick    InteractionType = "click"
	InteractionFavorite InteractionType = "favorite"
	InteractionBook     InteractionType = "book"
	InteractionReview   InteractionType = "review"
)

// interactionWeights maps each interaction type to its implicit-feedback
// weight. Stronger actions carry more signal.
var interactionWeights = map[InteractionType]float64{
	InteractionView:     1.0,
	InteractionClick:    2.0,
	InteractionFavorite: 5.0,
	InteractionBook:     10.0,
	InteractionReview:   6.0,
}

// NormalizeInteractionType lower-cases the raw type and maps anything
// absent or unrecognized to InteractionView.
func NormalizeInteractionType(raw string) InteractionType {
	t := InteractionType(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := interactionWeights[t]; !ok {
		return InteractionView
	}
	return t
}

// Weight returns the implicit-feedback weight for this interaction type.
// Unrecognized types weigh the same as a view.
func (t InteractionType) Weight() float64 {
	if w, ok := interactionWeights[t]; ok {
		return w
	}
	return interactionWeights[InteractionView]
}

// Item is a normalized tourism item (place or event).
type Item struct {
	ItemID      string  `json:"itemId"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Tags        string  `json:"tags"`
	Category    string  `json:"category"`
	Price       float64 `json:"price"`
}

// Interaction is a normalized user-item interaction event.
type Interaction struct {
	UserID    string          `json:"userId"`
	ItemID    string          `json:"itemId"`
	Type      InteractionType `json:"type"`
	Timestamp string          `json:"timestamp"`
}

// ScoredItem is a recommendation result: an item id with its score.
type ScoredItem struct {
	ItemID string  `json:"itemId"`
	Score  float64 `json:"score"`
}

// IndexMapping is a bijection between external string ids and dense integer
// indices, in first-appearance order. It is built once per training run and
// read-only afterward; a trained model is only valid paired with the exact
// mapping it was trained against.
type IndexMapping struct {
	// ToIndex maps external id to dense index.
	ToIndex map[string]int

	// FromIndex maps dense index back to external id, in insertion order.
	FromIndex []string
}

// NewIndexMapping creates an empty mapping.
func NewIndexMapping() *IndexMapping {
	return &IndexMapping{
		ToIndex: make(map[string]int),
	}
}

// Add inserts an id if unseen and returns its dense index.
func (m *IndexMapping) Add(id string) int {
	if idx, ok := m.ToIndex[id]; ok {
		return idx
	}
	idx := len(m.FromIndex)
	m.ToIndex[id] = idx
	m.FromIndex = append(m.FromIndex, id)
	return idx
}

// Index returns the dense index for an external id.
func (m *IndexMapping) Index(id string) (int, bool) {
	idx, ok := m.ToIndex[id]
	return idx, ok
}

// ID returns the external id for a dense index.
func (m *IndexMapping) ID(idx int) (string, bool) {
	if idx < 0 || idx >= len(m.FromIndex) {
		return "", false
	}
	return m.FromIndex[idx], true
}

// Len returns the number of mapped ids.
func (m *IndexMapping) Len() int {
	return len(m.FromIndex)
}
