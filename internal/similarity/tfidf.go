// Adama Tourism ML Engine - Tourism Recommendation Service
// Copyright 2026 Adama Tourism
// SPDX-License-Identifier: MIT
// https://github.com/adama-tourism/ml-engine

// Package similarity provides content-based item similarity. Item text
// (title, description, tags) is vectorized with TF-IDF over unigrams and
// bigrams, and similarity queries rank items by cosine similarity of the
// resulting vectors.
package similarity

import (
	"errors"
	"math"
	"regexp"
	"sort"
	"strings"
)

// DefaultMaxFeatures caps the vocabulary size of the vectorizer.
const DefaultMaxFeatures = 5000

// tokenPattern matches word tokens of two or more letters or digits.
var tokenPattern = regexp.MustCompile(`[\p{L}\p{N}]{2,}`)

// Vectorizer is a TF-IDF vectorizer over unigrams and bigrams. Fields are
// exported for gob serialization; a fitted vectorizer is read-only.
type Vectorizer struct {
	// MaxFeatures caps the vocabulary; the most frequent terms win.
	MaxFeatures int

	// Vocabulary maps term to vector index, in alphabetical term order.
	Vocabulary map[string]int

	// IDF holds the smoothed inverse document frequency per vector index.
	IDF []float64
}

// NewVectorizer creates an unfitted vectorizer.
func NewVectorizer(maxFeatures int) *Vectorizer {
	if maxFeatures <= 0 {
		maxFeatures = DefaultMaxFeatures
	}
	return &Vectorizer{MaxFeatures: maxFeatures}
}

// Fitted reports whether Fit has built a vocabulary.
func (v *Vectorizer) Fitted() bool {
	return len(v.Vocabulary) > 0
}

// Fit builds the vocabulary and IDF weights from the corpus. When the corpus
// yields more distinct terms than MaxFeatures, the terms with the highest
// total count are kept, ties broken alphabetically.
func (v *Vectorizer) Fit(corpus []string) error {
	if len(corpus) == 0 {
		return errors.New("tfidf: empty corpus")
	}

	counts := make(map[string]int)
	df := make(map[string]int)
	for _, text := range corpus {
		terms := extractTerms(text)
		seen := make(map[string]struct{}, len(terms))
		for _, term := range terms {
			counts[term]++
			if _, ok := seen[term]; !ok {
				seen[term] = struct{}{}
				df[term]++
			}
		}
	}

	if len(counts) == 0 {
		return errors.New("tfidf: no terms in corpus")
	}

	terms := make([]string, 0, len(counts))
	for term := range counts {
		terms = append(terms, term)
	}

	if len(terms) > v.MaxFeatures {
		sort.Slice(terms, func(a, b int) bool {
			if counts[terms[a]] != counts[terms[b]] {
				return counts[terms[a]] > counts[terms[b]]
			}
			return terms[a] < terms[b]
		})
		terms = terms[:v.MaxFeatures]
	}

	// Vector indices follow alphabetical term order.
	sort.Strings(terms)

	v.Vocabulary = make(map[string]int, len(terms))
	v.IDF = make([]float64, len(terms))
	n := float64(len(corpus))
	for i, term := range terms {
		v.Vocabulary[term] = i
		// Smoothed IDF
		v.IDF[i] = math.Log((1+n)/(1+float64(df[term]))) + 1.0
	}

	return nil
}

// Transform computes the L2-normalized TF-IDF vector for a text.
func (v *Vectorizer) Transform(text string) []float64 {
	vec := make([]float64, len(v.IDF))
	if !v.Fitted() {
		return vec
	}

	for _, term := range extractTerms(text) {
		if idx, ok := v.Vocabulary[term]; ok {
			vec[idx] += v.IDF[idx]
		}
	}

	var norm float64
	for _, x := range vec {
		norm += x * x
	}
	if norm > 0 {
		norm = math.Sqrt(norm)
		for i := range vec {
			vec[i] /= norm
		}
	}
	return vec
}

// FitTransform fits the vectorizer on the corpus and returns the vector for
// every document in order.
func (v *Vectorizer) FitTransform(corpus []string) ([][]float64, error) {
	if err := v.Fit(corpus); err != nil {
		return nil, err
	}
	matrix := make([][]float64, len(corpus))
	for i, text := range corpus {
		matrix[i] = v.Transform(text)
	}
	return matrix, nil
}

// extractTerms tokenizes text and returns unigrams plus adjacent bigrams.
func extractTerms(text string) []string {
	tokens := tokenPattern.FindAllString(strings.ToLower(text), -1)
	if len(tokens) == 0 {
		return nil
	}

	terms := make([]string, 0, 2*len(tokens))
	terms = append(terms, tokens...)
	for i := 0; i+1 < len(tokens); i++ {
		terms = append(terms, tokens[i]+" "+tokens[i+1])
	}
	return terms
}

// cosine computes the dot product of two vectors. Rows produced by Transform
// are already L2-normalized, so this equals their cosine similarity.
func cosine(a, b []float64) float64 {
	var sum float64
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}
