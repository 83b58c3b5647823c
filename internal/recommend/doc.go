// Adama Tourism ML Engine - Tourism Recommendation Service
// Copyright 2026 Adama Tourism
// SPDX-License-Identifier: MIT
// https://github.com/adama-tourism/ml-engine

// Package recommend implements collaborative filtering over implicit
// feedback.
//
// Interactions (views, clicks, favorites, bookings, reviews) are weighted,
// aggregated per user-item pair, and factorized with Alternating Least
// Squares into latent user and item vectors. The Engine wraps training,
// persistence through the artifact store, and top-n recommendation queries,
// serving each query from an immutable snapshot that is swapped atomically
// when a retrain completes.
//
// Users unknown to the model receive a cold-start ranking based on item
// factor norms, so the engine always has an answer once it is trained.
package recommend
