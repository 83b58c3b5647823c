// Adama Tourism ML Engine - Tourism Recommendation Service
// Copyright 2026 Adama Tourism
// SPDX-License-Identifier: MIT
// https://github.com/adama-tourism/ml-engine

package ingest

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/adama-tourism/ml-engine/internal/recommend"
)

// NormalizeItem converts a raw backend item record into an Item. Missing
// fields become empty strings, tag lists are joined with commas, and
// non-numeric prices coerce to 0.
func NormalizeItem(raw map[string]interface{}) recommend.Item {
	return recommend.Item{
		ItemID:      stringField(raw, "itemId"),
		Title:       stringField(raw, "title"),
		Description: stringField(raw, "description"),
		Tags:        tagsField(raw["tags"]),
		Category:    stringField(raw, "category"),
		Price:       numberField(raw, "price"),
	}
}

// NormalizeInteraction converts a raw backend interaction record into an
// Interaction. The interaction type is lower-cased; missing or unknown
// types default to view.
func NormalizeInteraction(raw map[string]interface{}) recommend.Interaction {
	return recommend.Interaction{
		UserID:    stringField(raw, "userId"),
		ItemID:    stringField(raw, "itemId"),
		Type:      recommend.NormalizeInteractionType(stringField(raw, "interaction")),
		Timestamp: stringField(raw, "timestamp"),
	}
}

// stringField extracts a string-valued field, coercing scalar types.
func stringField(raw map[string]interface{}, key string) string {
	v, ok := raw[key]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprintf("%v", t)
	}
}

// numberField extracts a numeric field, coercing numeric strings. Anything
// non-numeric yields 0.
func numberField(raw map[string]interface{}, key string) float64 {
	v, ok := raw[key]
	if !ok || v == nil {
		return 0
	}
	switch t := v.(type) {
	case float64:
		return t
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(t), 64); err == nil {
			return f
		}
		return 0
	default:
		return 0
	}
}

// tagsField flattens a tags value: arrays join with commas, strings pass
// through, everything else yields "".
func tagsField(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case []interface{}:
		parts := make([]string, 0, len(t))
		for _, el := range t {
			if s, ok := el.(string); ok && s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ",")
	default:
		return ""
	}
}
