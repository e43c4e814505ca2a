package heuristics

import (
	"math"
	"time"

	"github.com/pandu-maps/pandu/pkg/server"
	"golang.org/x/exp/rand"
)

// TspSolution is one finished tour over matrix indices 0..n-1. The
// tour is cyclic, the cost includes the closing leg back to the start.
type TspSolution struct {
	Tour              []int
	TotalCost         float64
	ComputationTimeMs float64
}

const (
	twoOptEps    = 1e-10
	saTempFactor = 0.1
	saCooling    = 0.995
	saMinTemp    = 1e-6
)

func validateMatrix(matrix [][]float64) error {
	if len(matrix) == 0 {
		return server.NewErrorf(server.ErrBadParamInput, "distance matrix is empty")
	}
	for i, row := range matrix {
		if len(row) != len(matrix) {
			return server.NewErrorf(server.ErrBadParamInput,
				"distance matrix is not square: row %d has %d columns, want %d", i, len(row), len(matrix))
		}
	}
	return nil
}

// TourCost sums consecutive legs plus the closing leg last -> first.
func TourCost(matrix [][]float64, tour []int) float64 {
	if len(tour) < 2 {
		return 0
	}
	cost := 0.0
	for i := range tour {
		cost += matrix[tour[i]][tour[(i+1)%len(tour)]]
	}
	return cost
}

// NearestNeighborTour starts at index 0 and repeatedly appends the
// closest unvisited index. If every remaining index is unreachable the
// lowest one is taken, so the result is always a full permutation.
func NearestNeighborTour(matrix [][]float64) []int {
	n := len(matrix)
	visited := make([]bool, n)
	tour := make([]int, 0, n)
	tour = append(tour, 0)
	visited[0] = true

	current := 0
	for len(tour) < n {
		next := -1
		bestDist := math.Inf(1)
		for candidate := 0; candidate < n; candidate++ {
			if visited[candidate] {
				continue
			}
			if d := matrix[current][candidate]; d < bestDist {
				bestDist = d
				next = candidate
			}
		}
		if next < 0 {
			for candidate := 0; candidate < n; candidate++ {
				if !visited[candidate] {
					next = candidate
					break
				}
			}
		}
		visited[next] = true
		tour = append(tour, next)
		current = next
	}
	return tour
}

// TwoOpt runs full improvement passes until no move helps. A move cuts
// the arcs after positions i and j and reconnects crosswise, which on a
// symmetric matrix equals reversing the segment between them.
func TwoOpt(matrix [][]float64, tour []int) []int {
	n := len(tour)
	out := make([]int, n)
	copy(out, tour)
	if n < 4 {
		return out
	}

	for {
		improved := false
		for i := 0; i < n-1; i++ {
			for j := i + 2; j < n; j++ {
				if i == 0 && j == n-1 {
					// adjacent around the cycle
					continue
				}
				a, b := out[i], out[i+1]
				c, d := out[j], out[(j+1)%n]
				delta := (matrix[a][c] + matrix[b][d]) - (matrix[a][b] + matrix[c][d])
				if delta < -twoOptEps {
					reverseSegment(out, i+1, j)
					improved = true
				}
			}
		}
		if !improved {
			return out
		}
	}
}

func reverseSegment(tour []int, lo, hi int) {
	for lo < hi {
		tour[lo], tour[hi] = tour[hi], tour[lo]
		lo++
		hi--
	}
}

// SimulatedAnnealing walks random 2-opt moves, accepting a worsening
// move with probability exp(-delta/T) and cooling T geometrically. The
// best tour ever seen is returned, so the result never loses to the
// input. The seed makes a run reproducible.
func SimulatedAnnealing(matrix [][]float64, tour []int, seed uint64) []int {
	n := len(tour)
	best := make([]int, n)
	copy(best, tour)
	if n < 4 {
		return best
	}

	rng := rand.New(rand.NewSource(seed))
	current := make([]int, n)
	copy(current, tour)
	currentCost := TourCost(matrix, current)
	bestCost := currentCost

	temp := currentCost * saTempFactor
	if temp <= 0 || math.IsInf(temp, 1) {
		temp = 1.0
	}
	for temp > saMinTemp {
		for move := 0; move < n; move++ {
			i := rng.Intn(n - 2)
			j := i + 2 + rng.Intn(n-i-2)
			if i == 0 && j == n-1 {
				continue
			}
			a, b := current[i], current[i+1]
			c, d := current[j], current[(j+1)%n]
			delta := (matrix[a][c] + matrix[b][d]) - (matrix[a][b] + matrix[c][d])
			if delta < 0 || rng.Float64() < math.Exp(-delta/temp) {
				reverseSegment(current, i+1, j)
				currentCost += delta
				if currentCost < bestCost-twoOptEps {
					bestCost = currentCost
					copy(best, current)
				}
			}
		}
		temp *= saCooling
	}
	return best
}

// SolveTSP builds a nearest-neighbor tour and polishes it with 2-opt.
func SolveTSP(matrix [][]float64) (TspSolution, error) {
	start := time.Now()
	if err := validateMatrix(matrix); err != nil {
		return TspSolution{}, err
	}

	tour := TwoOpt(matrix, NearestNeighborTour(matrix))
	return TspSolution{
		Tour:              tour,
		TotalCost:         TourCost(matrix, tour),
		ComputationTimeMs: time.Since(start).Seconds() * 1000,
	}, nil
}

// SolveTSPAnnealed adds a simulated-annealing phase on top of the
// 2-opt tour to shake it out of its local optimum.
func SolveTSPAnnealed(matrix [][]float64, seed uint64) (TspSolution, error) {
	start := time.Now()
	if err := validateMatrix(matrix); err != nil {
		return TspSolution{}, err
	}

	tour := TwoOpt(matrix, NearestNeighborTour(matrix))
	tour = SimulatedAnnealing(matrix, tour, seed)
	return TspSolution{
		Tour:              tour,
		TotalCost:         TourCost(matrix, tour),
		ComputationTimeMs: time.Since(start).Seconds() * 1000,
	}, nil
}
