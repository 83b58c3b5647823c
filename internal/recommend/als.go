// Adama Tourism ML Engine - Tourism Recommendation Service
// Copyright 2026 Adama Tourism
// SPDX-License-Identifier: MIT
// https://github.com/adama-tourism/ml-engine

package recommend

import (
	"context"
	"math"
	"sync"
)

// ALSConfig contains configuration for the ALS training algorithm.
type ALSConfig struct {
	// NumFactors is the dimension of the latent factor vectors.
	// Typical range: 20-200.
	NumFactors int

	// NumIterations is the number of alternating optimization passes.
	// Typical range: 10-50.
	NumIterations int

	// Regularization is the L2 regularization parameter.
	// Higher values prevent overfitting but may underfit.
	// Typical range: 0.01-0.1.
	Regularization float64

	// Alpha scales the confidence transformation for implicit feedback.
	// c = 1 + alpha * r, where r is the aggregated interaction weight.
	// Typical range: 1-100.
	Alpha float64

	// NumWorkers is the number of parallel workers for training.
	// If <= 0, defaults to 4.
	NumWorkers int
}

// DefaultALSConfig returns default ALS configuration.
func DefaultALSConfig() ALSConfig {
	return ALSConfig{
		NumFactors:     30,
		NumIterations:  20,
		Regularization: 0.01,
		Alpha:          40.0,
		NumWorkers:     4,
	}
}

// normalize fills in sane defaults for unset or invalid fields.
func (c ALSConfig) normalize() ALSConfig {
	if c.NumFactors <= 0 {
		c.NumFactors = 30
	}
	if c.NumIterations <= 0 {
		c.NumIterations = 20
	}
	if c.Regularization <= 0 {
		c.Regularization = 0.01
	}
	if c.Alpha <= 0 {
		c.Alpha = 40.0
	}
	if c.NumWorkers <= 0 {
		c.NumWorkers = 4
	}
	return c
}

// WeightedCell is one aggregated (user, item) observation in the implicit
// feedback matrix. Indices are dense rows from an IndexMapping.
type WeightedCell struct {
	UserIdx int
	ItemIdx int
	Weight  float64
}

// FactorModel is the trained output of ALS: latent factor matrices for users
// and items. It is immutable after training and gob-serializable.
type FactorModel struct {
	// UserFactors is the user factor matrix (numUsers x NumFactors).
	UserFactors [][]float64

	// ItemFactors is the item factor matrix (numItems x NumFactors).
	ItemFactors [][]float64

	// NumFactors is the latent dimension.
	NumFactors int
}

// TrainALS fits latent factor matrices to the given implicit feedback cells
// using Alternating Least Squares.
// Reference: "Collaborative Filtering for Implicit Feedback Datasets"
// (Hu, Koren, Volinsky, 2008)
//
// The objective function minimizes:
// sum_{u,i} c_ui * (p_ui - x_u' * y_i)^2 + lambda * (||x_u||^2 + ||y_i||^2)
//
// where p_ui = 1 if user u interacted with item i, 0 otherwise,
// and c_ui = 1 + alpha * r_ui is the confidence.
//
// numUsers and numItems fix the matrix dimensions; cells reference rows by
// dense index. Factor initialization is deterministic, so identical inputs
// produce identical models.
//
//nolint:gocyclo // ML training algorithms are inherently complex
func TrainALS(ctx context.Context, cfg ALSConfig, numUsers, numItems int, cells []WeightedCell) (*FactorModel, error) {
	cfg = cfg.normalize()
	numFactors := cfg.NumFactors

	model := &FactorModel{NumFactors: numFactors}

	if numUsers == 0 || numItems == 0 || len(cells) == 0 {
		return model, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Build confidence matrix (sparse representation).
	// C[u][i] = 1 + alpha * r[u][i]
	userItems := make(map[int]map[int]float64)
	itemUsers := make(map[int]map[int]float64)
	for _, cell := range cells {
		if cell.UserIdx < 0 || cell.UserIdx >= numUsers || cell.ItemIdx < 0 || cell.ItemIdx >= numItems {
			continue
		}
		conf := 1.0 + cfg.Alpha*cell.Weight
		if userItems[cell.UserIdx] == nil {
			userItems[cell.UserIdx] = make(map[int]float64)
		}
		if itemUsers[cell.ItemIdx] == nil {
			itemUsers[cell.ItemIdx] = make(map[int]float64)
		}
		// Use max confidence for duplicate cells
		if conf > userItems[cell.UserIdx][cell.ItemIdx] {
			userItems[cell.UserIdx][cell.ItemIdx] = conf
			itemUsers[cell.ItemIdx][cell.UserIdx] = conf
		}
	}

	// Deterministic small-value initialization.
	X := make([][]float64, numUsers)
	for u := 0; u < numUsers; u++ {
		X[u] = make([]float64, numFactors)
		for f := 0; f < numFactors; f++ {
			X[u][f] = 0.1 * (float64((u*numFactors+f)%1000)/1000.0 - 0.5)
		}
	}

	Y := make([][]float64, numItems)
	for i := 0; i < numItems; i++ {
		Y[i] = make([]float64, numFactors)
		for f := 0; f < numFactors; f++ {
			Y[i][f] = 0.1 * (float64((i*numFactors+f)%1000)/1000.0 - 0.5)
		}
	}

	lambda := cfg.Regularization

	for iter := 0; iter < cfg.NumIterations; iter++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		// Update user factors (fix Y, solve for X)
		updateFactors(X, Y, userItems, numFactors, lambda, cfg.NumWorkers)

		if err := ctx.Err(); err != nil {
			return nil, err
		}

		// Update item factors (fix X, solve for Y)
		updateFactors(Y, X, itemUsers, numFactors, lambda, cfg.NumWorkers)
	}

	model.UserFactors = X
	model.ItemFactors = Y
	return model, nil
}

// updateFactors solves one half of the alternating optimization: it updates
// every row of target holding fixed constant, where observed maps each target
// row to its confidence-weighted observations in fixed.
func updateFactors(target, fixed [][]float64, observed map[int]map[int]float64, numFactors int, lambda float64, numWorkers int) {
	// Precompute F'F over the fixed matrix.
	FtF := make([][]float64, numFactors)
	for f := range FtF {
		FtF[f] = make([]float64, numFactors)
	}
	for _, row := range fixed {
		for f1 := 0; f1 < numFactors; f1++ {
			for f2 := f1; f2 < numFactors; f2++ {
				FtF[f1][f2] += row[f1] * row[f2]
				if f1 != f2 {
					FtF[f2][f1] = FtF[f1][f2]
				}
			}
		}
	}

	n := len(target)
	var wg sync.WaitGroup
	chunkSize := (n + numWorkers - 1) / numWorkers

	for w := 0; w < numWorkers; w++ {
		start := w * chunkSize
		end := start + chunkSize
		if end > n {
			end = n
		}
		if start >= end {
			break
		}

		wg.Add(1)
		go func(rStart, rEnd int) {
			defer wg.Done()

			for r := rStart; r < rEnd; r++ {
				updateSingleRow(r, target, fixed, observed[r], FtF, numFactors, lambda)
			}
		}(start, end)
	}

	wg.Wait()
}

// updateSingleRow solves the regularized least squares problem for one row.
//
//nolint:gocritic // A follows standard linear algebra notation
func updateSingleRow(r int, target, fixed [][]float64, obs map[int]float64, FtF [][]float64, numFactors int, lambda float64) {
	// A = F' * C^r * F + lambda * I
	// b = F' * C^r * p^r
	// row = A^(-1) * b

	A := make([][]float64, numFactors)
	for f := range A {
		A[f] = make([]float64, numFactors)
		copy(A[f], FtF[f])
		A[f][f] += lambda
	}

	b := make([]float64, numFactors)
	for j, conf := range obs {
		// A += (c - 1) * f_j * f_j'
		// b += c * f_j
		v := fixed[j]
		cMinus1 := conf - 1.0

		for f1 := 0; f1 < numFactors; f1++ {
			for f2 := f1; f2 < numFactors; f2++ {
				delta := cMinus1 * v[f1] * v[f2]
				A[f1][f2] += delta
				if f1 != f2 {
					A[f2][f1] += delta
				}
			}
			b[f1] += conf * v[f1]
		}
	}

	target[r] = solveLinearSystem(A, b)
}

// solveLinearSystem solves A*x = b using Cholesky decomposition.
//
//nolint:gocritic // A, L follow standard linear algebra notation
func solveLinearSystem(A [][]float64, b []float64) []float64 {
	n := len(b)

	// Cholesky decomposition: A = L * L'
	L := make([][]float64, n)
	for i := range L {
		L[i] = make([]float64, n)
	}

	for i := 0; i < n; i++ {
		for j := 0; j <= i; j++ {
			sum := A[i][j]
			for k := 0; k < j; k++ {
				sum -= L[i][k] * L[j][k]
			}

			if i == j {
				if sum <= 0 {
					// Add regularization if not positive definite
					sum = 1e-10
				}
				L[i][j] = math.Sqrt(sum)
			} else {
				if L[j][j] != 0 {
					L[i][j] = sum / L[j][j]
				}
			}
		}
	}

	// Solve L * z = b (forward substitution)
	z := make([]float64, n)
	for i := 0; i < n; i++ {
		sum := b[i]
		for j := 0; j < i; j++ {
			sum -= L[i][j] * z[j]
		}
		if L[i][i] != 0 {
			z[i] = sum / L[i][i]
		}
	}

	// Solve L' * x = z (back substitution)
	x := make([]float64, n)
	for i := n - 1; i >= 0; i-- {
		sum := z[i]
		for j := i + 1; j < n; j++ {
			sum -= L[j][i] * x[j]
		}
		if L[i][i] != 0 {
			x[i] = sum / L[i][i]
		}
	}

	return x
}

// ScoresForUser returns the dot product of the user's factor vector with
// every item factor vector. Returns nil when the user index is out of range.
func (m *FactorModel) ScoresForUser(userIdx int) []float64 {
	if userIdx < 0 || userIdx >= len(m.UserFactors) {
		return nil
	}

	userVec := m.UserFactors[userIdx]
	scores := make([]float64, len(m.ItemFactors))
	for i, itemVec := range m.ItemFactors {
		var score float64
		for f := range userVec {
			score += userVec[f] * itemVec[f]
		}
		scores[i] = score
	}
	return scores
}

// ItemNorms returns the L2 norm of every item factor vector. Items with
// larger embedding norms tend to carry more interaction mass, which makes
// the norms a usable popularity proxy for cold-start ranking.
func (m *FactorModel) ItemNorms() []float64 {
	norms := make([]float64, len(m.ItemFactors))
	for i, vec := range m.ItemFactors {
		var sum float64
		for _, v := range vec {
			sum += v * v
		}
		norms[i] = math.Sqrt(sum)
	}
	return norms
}
