package heuristics_test

import (
	"math"
	"testing"

	"github.com/pandu-maps/pandu/pkg/heuristics"
	"github.com/pandu-maps/pandu/pkg/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func euclideanMatrix(points [][2]float64) [][]float64 {
	n := len(points)
	matrix := make([][]float64, n)
	for i := range matrix {
		matrix[i] = make([]float64, n)
		for j := range matrix[i] {
			dx := points[i][0] - points[j][0]
			dy := points[i][1] - points[j][1]
			matrix[i][j] = math.Sqrt(dx*dx + dy*dy)
		}
	}
	return matrix
}

func assertPermutation(t *testing.T, n int, tour []int) {
	t.Helper()
	require.Len(t, tour, n)
	seen := make([]bool, n)
	for _, v := range tour {
		require.GreaterOrEqual(t, v, 0)
		require.Less(t, v, n)
		require.False(t, seen[v], "index %d appears twice", v)
		seen[v] = true
	}
}

func TestNearestNeighborTour(t *testing.T) {
	// on a line: 0 at x=0, 1 at x=5, 2 at x=1, 3 at x=2
	matrix := euclideanMatrix([][2]float64{{0, 0}, {5, 0}, {1, 0}, {2, 0}})
	tour := heuristics.NearestNeighborTour(matrix)
	assert.Equal(t, []int{0, 2, 3, 1}, tour)
}

func TestTwoOptUncrossesSquare(t *testing.T) {
	// visiting the unit square corners diagonally first
	matrix := euclideanMatrix([][2]float64{{0, 0}, {1, 1}, {1, 0}, {0, 1}})
	crossing := []int{0, 1, 2, 3}
	require.InDelta(t, 2+2*math.Sqrt2, heuristics.TourCost(matrix, crossing), 1e-9)

	improved := heuristics.TwoOpt(matrix, crossing)
	assertPermutation(t, 4, improved)
	assert.InDelta(t, 4.0, heuristics.TourCost(matrix, improved), 1e-9)
}

func TestTwoOptNeverWorseThanNearestNeighbor(t *testing.T) {
	matrix := euclideanMatrix([][2]float64{
		{0, 0}, {3, 7}, {8, 1}, {2, 5}, {6, 6}, {9, 4}, {1, 2}, {5, 9},
	})
	nn := heuristics.NearestNeighborTour(matrix)
	improved := heuristics.TwoOpt(matrix, nn)

	assertPermutation(t, len(matrix), improved)
	assert.LessOrEqual(t,
		heuristics.TourCost(matrix, improved),
		heuristics.TourCost(matrix, nn)+1e-9)
}

func TestSolveTSP(t *testing.T) {
	matrix := euclideanMatrix([][2]float64{{0, 0}, {1, 1}, {1, 0}, {0, 1}})
	solution, err := heuristics.SolveTSP(matrix)
	require.NoError(t, err)

	assertPermutation(t, 4, solution.Tour)
	assert.InDelta(t, 4.0, solution.TotalCost, 1e-9)
	assert.GreaterOrEqual(t, solution.ComputationTimeMs, 0.0)
}

func TestSolveTSPSingleCity(t *testing.T) {
	solution, err := heuristics.SolveTSP([][]float64{{0}})
	require.NoError(t, err)
	assert.Equal(t, []int{0}, solution.Tour)
	assert.Equal(t, 0.0, solution.TotalCost)
}

func TestSolveTSPValidation(t *testing.T) {
	_, err := heuristics.SolveTSP(nil)
	require.Error(t, err)
	assert.Equal(t, server.ErrBadParamInput, server.ErrorCodeOf(err))

	_, err = heuristics.SolveTSP([][]float64{{0, 1}})
	require.Error(t, err)
	assert.Equal(t, server.ErrBadParamInput, server.ErrorCodeOf(err))
}

func TestSimulatedAnnealingKeepsBestSeen(t *testing.T) {
	matrix := euclideanMatrix([][2]float64{
		{0, 0}, {4, 0}, {4, 3}, {2, 5}, {0, 3}, {1, 1},
	})
	tour := heuristics.TwoOpt(matrix, heuristics.NearestNeighborTour(matrix))
	annealed := heuristics.SimulatedAnnealing(matrix, tour, 42)

	assertPermutation(t, len(matrix), annealed)
	assert.LessOrEqual(t,
		heuristics.TourCost(matrix, annealed),
		heuristics.TourCost(matrix, tour)+1e-9)
}

func TestSimulatedAnnealingReproducible(t *testing.T) {
	matrix := euclideanMatrix([][2]float64{
		{0, 0}, {3, 7}, {8, 1}, {2, 5}, {6, 6}, {9, 4}, {1, 2},
	})
	tour := heuristics.NearestNeighborTour(matrix)

	first := heuristics.SimulatedAnnealing(matrix, tour, 7)
	second := heuristics.SimulatedAnnealing(matrix, tour, 7)
	assert.Equal(t, first, second)
}

func TestSolveTSPAnnealed(t *testing.T) {
	matrix := euclideanMatrix([][2]float64{{0, 0}, {1, 1}, {1, 0}, {0, 1}})
	solution, err := heuristics.SolveTSPAnnealed(matrix, 1)
	require.NoError(t, err)
	assertPermutation(t, 4, solution.Tour)
	assert.InDelta(t, 4.0, solution.TotalCost, 1e-9)
}
