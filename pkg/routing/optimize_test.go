package routing_test

import (
	"sort"
	"testing"

	"github.com/pandu-maps/pandu/pkg/datastructure"
	"github.com/pandu-maps/pandu/pkg/heuristics"
	"github.com/pandu-maps/pandu/pkg/routing"
	"github.com/pandu-maps/pandu/pkg/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertTourVisitsAll(t *testing.T, n int, tour []int) {
	t.Helper()
	sorted := append([]int(nil), tour...)
	sort.Ints(sorted)
	require.Len(t, sorted, n)
	for i, v := range sorted {
		require.Equal(t, i, v)
	}
}

func TestOptimizeTSPGridCorners(t *testing.T) {
	g := gridGraph(t, 4, 4)
	engine := routing.NewEngine(g)

	// corners given in crossing order; the optimal tour walks the
	// perimeter instead of the two 6-hop diagonals
	points := []datastructure.Coordinate{
		datastructure.NewCoordinate(0, 0),
		datastructure.NewCoordinate(0.03, 0.03),
		datastructure.NewCoordinate(0, 0.03),
		datastructure.NewCoordinate(0.03, 0),
	}
	profile := datastructure.DefaultCarProfile()

	solution, err := engine.OptimizeTSP(points, profile, -1)
	require.NoError(t, err)
	assertTourVisitsAll(t, 4, solution.Tour)
	assert.GreaterOrEqual(t, solution.ComputationTimeMs, 0.0)

	matrix, err := engine.DistanceMatrix(points, profile, -1)
	require.NoError(t, err)

	perimeter := matrix[0][2] + matrix[2][1] + matrix[1][3] + matrix[3][0]
	assert.InDelta(t, perimeter, solution.TotalCost, 1e-6)
	assert.Less(t, solution.TotalCost, heuristics.TourCost(matrix, []int{0, 1, 2, 3}))

	annealed, err := engine.OptimizeTSPAnnealed(points, profile, -1, 42)
	require.NoError(t, err)
	assertTourVisitsAll(t, 4, annealed.Tour)
	assert.InDelta(t, perimeter, annealed.TotalCost, 1e-6)
}

func TestOptimizeTSPUnreachablePoint(t *testing.T) {
	// 0 - 1        2 - 3
	builder := datastructure.NewGraphBuilder()
	builder.AddNode(0, 0)
	builder.AddNode(0, 0.01)
	builder.AddNode(1.0, 1.0)
	builder.AddNode(1.0, 1.01)
	builder.AddRoad(0, 1, datastructure.RoadClassResidential, "", true)
	builder.AddRoad(2, 3, datastructure.RoadClassResidential, "", true)
	g, err := builder.Build()
	require.NoError(t, err)

	engine := routing.NewEngine(g)
	points := []datastructure.Coordinate{
		datastructure.NewCoordinate(0, 0),
		datastructure.NewCoordinate(1.0, 1.0),
	}
	_, err = engine.OptimizeTSP(points, datastructure.DefaultCarProfile(), -1)
	require.Error(t, err)
	assert.Equal(t, server.ErrNoRouteFound, server.ErrorCodeOf(err))
}

func TestOptimizeVRPMergesAlongRow(t *testing.T) {
	g := gridGraph(t, 4, 4)
	engine := routing.NewEngine(g)

	depot := datastructure.NewCoordinate(0, 0)
	customers := []datastructure.Coordinate{
		datastructure.NewCoordinate(0, 0.01),
		datastructure.NewCoordinate(0, 0.02),
	}
	demands := []float64{1, 1}
	profile := datastructure.DefaultCarProfile()

	solution, err := engine.OptimizeVRP(depot, customers, demands, 2, profile, -1)
	require.NoError(t, err)

	require.Len(t, solution.Routes, 1)
	assert.Equal(t, []int{0, 1}, solution.Routes[0].Stops)
	assert.Equal(t, 2.0, solution.Routes[0].Load)
	assert.Equal(t, 2.0, solution.TotalDemand)

	all := append([]datastructure.Coordinate{depot}, customers...)
	matrix, err := engine.DistanceMatrix(all, profile, -1)
	require.NoError(t, err)
	expected := matrix[0][1] + matrix[1][2] + matrix[2][0]
	assert.InDelta(t, expected, solution.TotalCost, 1e-6)
}

func TestOptimizeVRPSweepSplitsOnCapacity(t *testing.T) {
	g := gridGraph(t, 4, 4)
	engine := routing.NewEngine(g)

	depot := datastructure.NewCoordinate(0, 0)
	customers := []datastructure.Coordinate{
		datastructure.NewCoordinate(0, 0.01),
		datastructure.NewCoordinate(0, 0.02),
	}

	solution, err := engine.OptimizeVRPSweep(depot, customers, []float64{1, 1}, 1, datastructure.DefaultCarProfile(), -1)
	require.NoError(t, err)

	require.Len(t, solution.Routes, 2)
	assert.Equal(t, []int{0}, solution.Routes[0].Stops)
	assert.Equal(t, []int{1}, solution.Routes[1].Stops)
}

func TestOptimizeVRPWithoutCustomers(t *testing.T) {
	g := gridGraph(t, 3, 3)
	engine := routing.NewEngine(g)

	_, err := engine.OptimizeVRP(datastructure.NewCoordinate(0, 0), nil, nil, 2, datastructure.DefaultCarProfile(), -1)
	require.Error(t, err)
	assert.Equal(t, server.ErrBadParamInput, server.ErrorCodeOf(err))
}
