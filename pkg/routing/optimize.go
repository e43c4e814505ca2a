package routing

import (
	"math"

	"github.com/pandu-maps/pandu/pkg/datastructure"
	"github.com/pandu-maps/pandu/pkg/heuristics"
	"github.com/pandu-maps/pandu/pkg/server"
)

// OptimizeTSP orders the points into a single round trip over the
// road network: travel-time matrix, nearest-neighbor tour, 2-opt
// improvement. The tour indexes into the input slice.
func (e *Engine) OptimizeTSP(points []datastructure.Coordinate, profile datastructure.RoutingProfile, departureTime float64) (heuristics.TspSolution, error) {
	matrix, err := e.reachableMatrix(points, profile, departureTime)
	if err != nil {
		return heuristics.TspSolution{}, err
	}
	return heuristics.SolveTSP(matrix)
}

// OptimizeTSPAnnealed additionally runs simulated annealing on the
// 2-opt tour. Reproducible for a fixed seed.
func (e *Engine) OptimizeTSPAnnealed(points []datastructure.Coordinate, profile datastructure.RoutingProfile, departureTime float64, seed uint64) (heuristics.TspSolution, error) {
	matrix, err := e.reachableMatrix(points, profile, departureTime)
	if err != nil {
		return heuristics.TspSolution{}, err
	}
	return heuristics.SolveTSPAnnealed(matrix, seed)
}

// OptimizeVRP plans capacity-feasible delivery routes from the depot
// with Clarke-Wright savings. Stop indices in the result refer to the
// customers slice.
func (e *Engine) OptimizeVRP(depot datastructure.Coordinate, customers []datastructure.Coordinate, demands []float64, capacity float64, profile datastructure.RoutingProfile, departureTime float64) (heuristics.VrpSolution, error) {
	matrix, err := e.vrpMatrix(depot, customers, profile, departureTime)
	if err != nil {
		return heuristics.VrpSolution{}, err
	}
	return heuristics.SolveVRPClarkeWright(matrix, demands, capacity)
}

// OptimizeVRPSweep is the input-order variant: customers fill each
// vehicle in the order given, a new route opens on overflow.
func (e *Engine) OptimizeVRPSweep(depot datastructure.Coordinate, customers []datastructure.Coordinate, demands []float64, capacity float64, profile datastructure.RoutingProfile, departureTime float64) (heuristics.VrpSolution, error) {
	matrix, err := e.vrpMatrix(depot, customers, profile, departureTime)
	if err != nil {
		return heuristics.VrpSolution{}, err
	}
	return heuristics.SolveVRPSweep(matrix, demands, capacity)
}

func (e *Engine) vrpMatrix(depot datastructure.Coordinate, customers []datastructure.Coordinate, profile datastructure.RoutingProfile, departureTime float64) ([][]float64, error) {
	if len(customers) == 0 {
		return nil, server.NewErrorf(server.ErrBadParamInput, "vehicle routing needs at least one customer")
	}
	points := make([]datastructure.Coordinate, 0, len(customers)+1)
	points = append(points, depot)
	points = append(points, customers...)
	return e.reachableMatrix(points, profile, departureTime)
}

// reachableMatrix builds the square travel-time matrix and rejects
// inputs with unreachable pairs up front, so the solvers never see
// infinite legs.
func (e *Engine) reachableMatrix(points []datastructure.Coordinate, profile datastructure.RoutingProfile, departureTime float64) ([][]float64, error) {
	matrix, err := e.DistanceMatrix(points, profile, departureTime)
	if err != nil {
		return nil, err
	}
	for i, row := range matrix {
		for j, dist := range row {
			if math.IsInf(dist, 1) {
				return nil, server.NewErrorf(server.ErrNoRouteFound,
					"no route from point %d to point %d", i, j)
			}
		}
	}
	return matrix, nil
}
