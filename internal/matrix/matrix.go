// Package matrix resolves travel-cost matrices between problem locations.
package matrix

import (
	"context"
	"fmt"
	"math"

	"cartage/internal/model"
)

// Cost is a square travel-cost matrix. Asymmetry is permitted; entries
// must be non-negative and finite.
type Cost [][]float64

func (c Cost) At(i, j int) float64 { return c[i][j] }

func (c Cost) Size() int { return len(c) }

// MatrixError reports a malformed explicit matrix.
type MatrixError struct {
	Reason string
}

func (e *MatrixError) Error() string { return "matrix: " + e.Reason }

// Provider computes a cost matrix for a set of coordinates. Implementations
// may perform I/O (e.g. fetch road distances); resolution always completes
// before constraint building starts.
type Provider interface {
	Matrix(ctx context.Context, coords []model.Point) (Cost, error)
}

// Euclidean is the fallback Provider: straight-line distance between
// coordinate pairs.
type Euclidean struct{}

func (Euclidean) Matrix(_ context.Context, coords []model.Point) (Cost, error) {
	n := len(coords)
	m := make(Cost, n)
	for i := 0; i < n; i++ {
		m[i] = make([]float64, n)
		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			m[i][j] = Distance(coords[i], coords[j])
		}
	}
	return m, nil
}

// Distance returns the straight-line distance between two points.
func Distance(a, b model.Point) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

// Resolve returns the cost matrix for n locations. An explicit matrix, if
// supplied, wins over coordinates and is checked for shape and entry
// validity. Otherwise coords must cover all n locations and the Euclidean
// provider is used.
func Resolve(ctx context.Context, n int, coords []model.Point, explicit [][]float64) (Cost, error) {
	if explicit != nil {
		if err := validate(n, explicit); err != nil {
			return nil, err
		}
		return Cost(explicit), nil
	}
	if len(coords) != n {
		return nil, &MatrixError{Reason: fmt.Sprintf("no matrix supplied and only %d of %d locations have coordinates", len(coords), n)}
	}
	return Euclidean{}.Matrix(ctx, coords)
}

func validate(n int, m [][]float64) error {
	if len(m) != n {
		return &MatrixError{Reason: fmt.Sprintf("dimension mismatch: %d rows for %d locations", len(m), n)}
	}
	for i, row := range m {
		if len(row) != n {
			return &MatrixError{Reason: fmt.Sprintf("row %d has %d entries, want %d", i, len(row), n)}
		}
		for j, v := range row {
			if v < 0 {
				return &MatrixError{Reason: fmt.Sprintf("negative cost at (%d,%d): %v", i, j, v)}
			}
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return &MatrixError{Reason: fmt.Sprintf("non-finite cost at (%d,%d)", i, j)}
			}
		}
	}
	return nil
}
