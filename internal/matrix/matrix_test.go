package matrix

import (
    "context"
    "math"
    "testing"

    "cartage/internal/model"
)

func TestEuclidean(t *testing.T) {
    coords := []model.Point{{X: 0, Y: 0}, {X: 3, Y: 4}}
    m, err := Euclidean{}.Matrix(context.Background(), coords)
    if err != nil {
        t.Fatalf("matrix: %v", err)
    }
    if m.Size() != 2 {
        t.Fatalf("size: got %d", m.Size())
    }
    if m.At(0, 0) != 0 || m.At(1, 1) != 0 {
        t.Fatalf("diagonal must be zero")
    }
    if m.At(0, 1) != 5 || m.At(1, 0) != 5 {
        t.Fatalf("got %v and %v, want 5", m.At(0, 1), m.At(1, 0))
    }
}

func TestResolveExplicitWins(t *testing.T) {
    explicit := [][]float64{{0, 7}, {7, 0}}
    coords := []model.Point{{X: 0, Y: 0}, {X: 1, Y: 0}}
    m, err := Resolve(context.Background(), 2, coords, explicit)
    if err != nil {
        t.Fatalf("resolve: %v", err)
    }
    if m.At(0, 1) != 7 {
        t.Fatalf("explicit matrix ignored: got %v", m.At(0, 1))
    }
}

func TestResolveRejectsMalformed(t *testing.T) {
    cases := []struct {
        name string
        n    int
        m    [][]float64
    }{
        {"wrong row count", 3, [][]float64{{0, 1}, {1, 0}}},
        {"ragged row", 2, [][]float64{{0, 1}, {1}}},
        {"negative entry", 2, [][]float64{{0, -1}, {1, 0}}},
        {"nan entry", 2, [][]float64{{0, math.NaN()}, {1, 0}}},
        {"inf entry", 2, [][]float64{{0, math.Inf(1)}, {1, 0}}},
    }
    for _, tc := range cases {
        t.Run(tc.name, func(t *testing.T) {
            if _, err := Resolve(context.Background(), tc.n, nil, tc.m); err == nil {
                t.Fatalf("expected error")
            }
        })
    }
}

func TestResolveNeedsAllCoords(t *testing.T) {
    coords := []model.Point{{X: 0, Y: 0}}
    if _, err := Resolve(context.Background(), 2, coords, nil); err == nil {
        t.Fatalf("expected error for missing coordinates")
    }
}
