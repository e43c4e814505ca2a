package heuristics

import (
	"sort"
	"time"

	"github.com/pandu-maps/pandu/pkg/server"
)

// VrpRoute is one vehicle's trip. Stops index the customer list the
// matrix was built from, zero-based; the depot legs are implicit.
type VrpRoute struct {
	VehicleID int
	Stops     []int
	Load      float64
	Cost      float64
}

type VrpSolution struct {
	Routes            []VrpRoute
	TotalCost         float64
	TotalDemand       float64
	ComputationTimeMs float64
}

// The matrix convention for both solvers: row/column 0 is the depot,
// customer i sits at index i+1.

func validateVRPInput(matrix [][]float64, demands []float64, capacity float64) error {
	if err := validateMatrix(matrix); err != nil {
		return err
	}
	if len(matrix) != len(demands)+1 {
		return server.NewErrorf(server.ErrBadParamInput,
			"matrix has %d rows, want depot plus %d customers", len(matrix), len(demands))
	}
	if capacity <= 0 {
		return server.NewErrorf(server.ErrBadParamInput, "vehicle capacity must be positive, got %g", capacity)
	}
	for i, demand := range demands {
		if demand < 0 {
			return server.NewErrorf(server.ErrBadParamInput, "customer %d has negative demand %g", i, demand)
		}
		if demand > capacity {
			return server.NewErrorf(server.ErrBadParamInput,
				"customer %d demand %g exceeds vehicle capacity %g", i, demand, capacity)
		}
	}
	return nil
}

// routeCost is depot -> first stop, consecutive stops, last stop -> depot.
func routeCost(matrix [][]float64, stops []int) float64 {
	if len(stops) == 0 {
		return 0
	}
	cost := matrix[0][stops[0]+1]
	for i := 0; i < len(stops)-1; i++ {
		cost += matrix[stops[i]+1][stops[i+1]+1]
	}
	cost += matrix[stops[len(stops)-1]+1][0]
	return cost
}

type saving struct {
	i, j  int
	value float64
}

// SolveVRPClarkeWright starts every customer on its own route and
// greedily merges the two routes of the highest-saving customer pair
// while the combined demand fits one vehicle. Merges concatenate, so
// routes grow transitively.
func SolveVRPClarkeWright(matrix [][]float64, demands []float64, capacity float64) (VrpSolution, error) {
	start := time.Now()
	if err := validateVRPInput(matrix, demands, capacity); err != nil {
		return VrpSolution{}, err
	}

	n := len(demands)
	routes := make([][]int, n)
	loads := make([]float64, n)
	routeOf := make([]int, n)
	for i := 0; i < n; i++ {
		routes[i] = []int{i}
		loads[i] = demands[i]
		routeOf[i] = i
	}

	savings := make([]saving, 0, n*(n-1)/2)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			savings = append(savings, saving{
				i:     i,
				j:     j,
				value: matrix[0][i+1] + matrix[0][j+1] - matrix[i+1][j+1],
			})
		}
	}
	sort.Slice(savings, func(a, b int) bool {
		if savings[a].value != savings[b].value {
			return savings[a].value > savings[b].value
		}
		if savings[a].i != savings[b].i {
			return savings[a].i < savings[b].i
		}
		return savings[a].j < savings[b].j
	})

	for _, s := range savings {
		ri, rj := routeOf[s.i], routeOf[s.j]
		if ri == rj {
			continue
		}
		if loads[ri]+loads[rj] > capacity {
			continue
		}
		routes[ri] = append(routes[ri], routes[rj]...)
		loads[ri] += loads[rj]
		for _, customer := range routes[rj] {
			routeOf[customer] = ri
		}
		routes[rj] = nil
	}

	solution := assembleSolution(matrix, demands, routes, loads)
	solution.ComputationTimeMs = time.Since(start).Seconds() * 1000
	return solution, nil
}

// SolveVRPSweep fills vehicles strictly in customer input order,
// opening a fresh route whenever the next demand would overflow.
func SolveVRPSweep(matrix [][]float64, demands []float64, capacity float64) (VrpSolution, error) {
	start := time.Now()
	if err := validateVRPInput(matrix, demands, capacity); err != nil {
		return VrpSolution{}, err
	}

	routes := make([][]int, 0)
	loads := make([]float64, 0)
	currentStops := make([]int, 0)
	currentLoad := 0.0
	for i, demand := range demands {
		if len(currentStops) > 0 && currentLoad+demand > capacity {
			routes = append(routes, currentStops)
			loads = append(loads, currentLoad)
			currentStops = make([]int, 0)
			currentLoad = 0
		}
		currentStops = append(currentStops, i)
		currentLoad += demand
	}
	if len(currentStops) > 0 {
		routes = append(routes, currentStops)
		loads = append(loads, currentLoad)
	}

	solution := assembleSolution(matrix, demands, routes, loads)
	solution.ComputationTimeMs = time.Since(start).Seconds() * 1000
	return solution, nil
}

func assembleSolution(matrix [][]float64, demands []float64, routes [][]int, loads []float64) VrpSolution {
	solution := VrpSolution{Routes: make([]VrpRoute, 0, len(routes))}
	for _, demand := range demands {
		solution.TotalDemand += demand
	}

	vehicleID := 0
	for i, stops := range routes {
		if len(stops) == 0 {
			continue
		}
		cost := routeCost(matrix, stops)
		solution.Routes = append(solution.Routes, VrpRoute{
			VehicleID: vehicleID,
			Stops:     stops,
			Load:      loads[i],
			Cost:      cost,
		})
		solution.TotalCost += cost
		vehicleID++
	}
	return solution
}
