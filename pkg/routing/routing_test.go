package routing_test

import (
	"math"
	"testing"

	"github.com/pandu-maps/pandu/pkg/datastructure"
	"github.com/pandu-maps/pandu/pkg/routing"
	"github.com/pandu-maps/pandu/pkg/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gridGraph(t *testing.T, rows, cols int) *datastructure.Graph {
	t.Helper()
	g, err := datastructure.CreateGridGraph(rows, cols, 0.01)
	require.NoError(t, err)
	return g
}

func TestDijkstraGridRoute(t *testing.T) {
	// 5x5 lattice, node ids row-major:
	//
	//	 0 -  1 -  2 -  3 -  4
	//	 |    |    |    |    |
	//	 5 -  6 -  7 -  8 -  9
	//	 |    |    |    |    |
	//	10 - 11 - 12 - 13 - 14
	//	 |    |    |    |    |
	//	15 - 16 - 17 - 18 - 19
	//	 |    |    |    |    |
	//	20 - 21 - 22 - 23 - 24
	g := gridGraph(t, 5, 5)

	result, err := routing.ShortestPathDijkstra(g, 0, 24, routing.DefaultSearchOptions())
	require.NoError(t, err)

	// every shortest 0->24 path crosses 8 uniform edges
	assert.Len(t, result.Edges, 8)
	assert.Len(t, result.Coords, 9)

	stepMeters := datastructure.HaversineDistance(0, 0, 0, 0.01) * 1000.0
	assert.InDelta(t, 8*stepMeters, result.Distance, 1.0)

	residentialMs := datastructure.RoadClassResidential.DefaultSpeedKmh() / 3.6
	assert.InDelta(t, result.Distance/residentialMs, result.TravelTime, 1e-6)

	assert.Equal(t, g.GetNode(0).Lat, result.Coords[0].Lat)
	assert.Equal(t, g.GetNode(24).Lon, result.Coords[len(result.Coords)-1].Lon)
	assert.Greater(t, result.Settled, 0)
}

func TestAStarMatchesDijkstraAndSettlesFewer(t *testing.T) {
	g := gridGraph(t, 5, 5)
	opts := routing.DefaultSearchOptions()

	dijkstra, err := routing.ShortestPathDijkstra(g, 0, 24, opts)
	require.NoError(t, err)
	astar, err := routing.ShortestPathAStar(g, 0, 24, opts)
	require.NoError(t, err)

	assert.InDelta(t, dijkstra.TravelTime, astar.TravelTime, 1e-6)
	assert.InDelta(t, dijkstra.Distance, astar.Distance, 1e-6)
	assert.LessOrEqual(t, astar.Settled, dijkstra.Settled)
}

func TestALTWithoutTablesFallsBackToDijkstra(t *testing.T) {
	g := gridGraph(t, 4, 4)
	opts := routing.DefaultSearchOptions()

	plain, err := routing.ShortestPathDijkstra(g, 0, 15, opts)
	require.NoError(t, err)
	alt, err := routing.ShortestPathALT(g, nil, 0, 15, opts)
	require.NoError(t, err)

	assert.InDelta(t, plain.TravelTime, alt.TravelTime, 1e-6)
}

func TestNoRouteFoundOnDisconnectedComponents(t *testing.T) {
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

	_, err = routing.ShortestPathDijkstra(g, 0, 3, routing.DefaultSearchOptions())
	require.Error(t, err)
	assert.Equal(t, server.ErrNoRouteFound, server.ErrorCodeOf(err))

	_, err = routing.ShortestPathAStar(g, 0, 3, routing.DefaultSearchOptions())
	require.Error(t, err)
	assert.Equal(t, server.ErrNoRouteFound, server.ErrorCodeOf(err))
}

func TestSearchExhaustedAtSettledCap(t *testing.T) {
	g := gridGraph(t, 5, 5)
	opts := routing.DefaultSearchOptions()
	opts.MaxSettledNodes = 3

	_, err := routing.ShortestPathDijkstra(g, 0, 24, opts)
	require.Error(t, err)
	assert.Equal(t, server.ErrSearchExhausted, server.ErrorCodeOf(err))
}

func TestTurnRestrictionForcesDetour(t *testing.T) {
	// straight line 0 -> 1 -> 3 with a longer bypass through 2:
	//
	//	      2
	//	    /   \
	//	 0 -> 1 -> 3
	builder := datastructure.NewGraphBuilder()
	builder.AddNode(0, 0)       // 0
	builder.AddNode(0, 0.01)    // 1
	builder.AddNode(0.02, 0.01) // 2
	builder.AddNode(0, 0.02)    // 3
	e0, _ := builder.AddRoad(0, 1, datastructure.RoadClassResidential, "", false)
	e1, _ := builder.AddRoad(1, 3, datastructure.RoadClassResidential, "", false)
	builder.AddRoad(0, 2, datastructure.RoadClassResidential, "", false)
	builder.AddRoad(2, 3, datastructure.RoadClassResidential, "", false)

	unrestricted, err := builder.Build()
	require.NoError(t, err)
	direct, err := routing.ShortestPathDijkstra(unrestricted, 0, 3, routing.DefaultSearchOptions())
	require.NoError(t, err)
	require.Len(t, direct.Edges, 2)
	assert.Equal(t, int32(1), direct.Edges[0].ToNodeID)

	restrictedBuilder := datastructure.NewGraphBuilder()
	restrictedBuilder.AddNode(0, 0)
	restrictedBuilder.AddNode(0, 0.01)
	restrictedBuilder.AddNode(0.02, 0.01)
	restrictedBuilder.AddNode(0, 0.02)
	restrictedBuilder.AddRoad(0, 1, datastructure.RoadClassResidential, "", false)
	restrictedBuilder.AddRoad(1, 3, datastructure.RoadClassResidential, "", false)
	restrictedBuilder.AddRoad(0, 2, datastructure.RoadClassResidential, "", false)
	restrictedBuilder.AddRoad(2, 3, datastructure.RoadClassResidential, "", false)
	restrictedBuilder.AddTurnRestriction(datastructure.NewTurnRestriction(e0, 1, e1, datastructure.NoTurn))
	restricted, err := restrictedBuilder.Build()
	require.NoError(t, err)

	detour, err := routing.ShortestPathDijkstra(restricted, 0, 3, routing.DefaultSearchOptions())
	require.NoError(t, err)
	require.Len(t, detour.Edges, 2)
	assert.Equal(t, int32(2), detour.Edges[0].ToNodeID)
	assert.Greater(t, detour.TravelTime, direct.TravelTime)
}

func TestTimeDependentWeights(t *testing.T) {
	builder := datastructure.NewGraphBuilder()
	builder.AddNode(0, 0)
	builder.AddNode(0, 0.01)

	rushHour := make([]float64, 24)
	for h := range rushHour {
		rushHour[h] = 100.0
	}
	rushHour[8] = 250.0

	cost := datastructure.NewEdgeCost(100.0, 1100.0)
	cost.HourlyProfile = rushHour
	builder.AddEdge(datastructure.NewEdge(0, 0, 1, cost, datastructure.RoadClassResidential))
	g, err := builder.Build()
	require.NoError(t, err)

	freeFlow, err := routing.ShortestPathDijkstra(g, 0, 1, routing.DefaultSearchOptions())
	require.NoError(t, err)
	assert.InDelta(t, 100.0, freeFlow.TravelTime, 1e-9)

	opts := routing.DefaultSearchOptions()
	opts.DepartureHour = 8
	atEight, err := routing.ShortestPathDijkstra(g, 0, 1, opts)
	require.NoError(t, err)
	assert.InDelta(t, 250.0, atEight.TravelTime, 1e-9)
}

func TestProfileFiltersFerryAndAccess(t *testing.T) {
	// cheap ferry crossing 0 -> 1 against a long road 0 -> 2 -> 1
	build := func() *datastructure.GraphBuilder {
		builder := datastructure.NewGraphBuilder()
		builder.AddNode(0, 0)      // 0
		builder.AddNode(0, 0.02)   // 1
		builder.AddNode(0.05, 0.01) // 2
		ferryCost := datastructure.NewEdgeCost(60.0, 2200.0)
		ferryCost.Ferry = true
		builder.AddEdge(datastructure.NewEdge(0, 0, 1, ferryCost, datastructure.RoadClassService))
		builder.AddRoad(0, 2, datastructure.RoadClassResidential, "", true)
		builder.AddRoad(2, 1, datastructure.RoadClassResidential, "", true)
		return builder
	}

	g, err := build().Build()
	require.NoError(t, err)

	withFerry, err := routing.ShortestPathDijkstra(g, 0, 1, routing.DefaultSearchOptions())
	require.NoError(t, err)
	assert.InDelta(t, 60.0, withFerry.TravelTime, 1e-9)

	opts := routing.DefaultSearchOptions()
	opts.Profile.AvoidFerry = true
	noFerry, err := routing.ShortestPathDijkstra(g, 0, 1, opts)
	require.NoError(t, err)
	require.Len(t, noFerry.Edges, 2)
	assert.Greater(t, noFerry.TravelTime, withFerry.TravelTime)
}

func TestModeAccessBlocksCarOnFootway(t *testing.T) {
	builder := datastructure.NewGraphBuilder()
	builder.AddNode(0, 0)
	builder.AddNode(0, 0.01)
	footOnly := datastructure.NewEdge(0, 0, 1, datastructure.NewEdgeCost(30.0, 1100.0), datastructure.RoadClassFootway)
	footOnly.Access = datastructure.AccessRestrictions{Foot: true}
	builder.AddEdge(footOnly)
	g, err := builder.Build()
	require.NoError(t, err)

	_, err = routing.ShortestPathDijkstra(g, 0, 1, routing.DefaultSearchOptions())
	require.Error(t, err)
	assert.Equal(t, server.ErrNoRouteFound, server.ErrorCodeOf(err))

	opts := routing.DefaultSearchOptions()
	opts.Profile = datastructure.DefaultFootProfile()
	onFoot, err := routing.ShortestPathDijkstra(g, 0, 1, opts)
	require.NoError(t, err)
	assert.InDelta(t, 30.0, onFoot.TravelTime, 1e-9)
}

func TestManyToOneMatchesSinglePair(t *testing.T) {
	g := gridGraph(t, 5, 5)
	opts := routing.DefaultSearchOptions()

	targets := []int32{6, 12, 24}
	dist := routing.ManyToOneDijkstra(g, 0, targets, opts)
	require.Len(t, dist, len(targets))

	for _, target := range targets {
		single, err := routing.ShortestPathDijkstra(g, 0, target, opts)
		require.NoError(t, err)
		assert.InDelta(t, single.TravelTime, dist[target], 1e-6)
	}
}

func TestSingleSourceForwardAndReverse(t *testing.T) {
	// one way chain 0 -> 1 -> 2
	builder := datastructure.NewGraphBuilder()
	builder.AddNode(0, 0)
	builder.AddNode(0, 0.01)
	builder.AddNode(0, 0.02)
	builder.AddRoad(0, 1, datastructure.RoadClassResidential, "", false)
	builder.AddRoad(1, 2, datastructure.RoadClassResidential, "", false)
	g, err := builder.Build()
	require.NoError(t, err)

	opts := routing.DefaultSearchOptions()

	forward := routing.SingleSourceDijkstra(g, 0, false, opts)
	require.Len(t, forward, 3)
	assert.Equal(t, 0.0, forward[0])
	assert.False(t, math.IsInf(forward[2], 1))

	// reverse distances are "to node 2"; node 0 reaches it in two hops
	toTwo := routing.SingleSourceDijkstra(g, 2, true, opts)
	assert.InDelta(t, forward[2], toTwo[0], 1e-6)

	// nothing leads back to node 0
	toZero := routing.SingleSourceDijkstra(g, 0, true, opts)
	assert.True(t, math.IsInf(toZero[2], 1))
}

func TestDistanceMatrixOnGridCorners(t *testing.T) {
	g := gridGraph(t, 3, 3)
	corners := []int32{0, 2, 6, 8}

	matrix := routing.DistanceMatrix(g, corners, corners, routing.DefaultSearchOptions())
	require.Len(t, matrix, 4)

	for i := range corners {
		require.Len(t, matrix[i], 4)
		assert.Equal(t, 0.0, matrix[i][i])
		for j := range corners {
			if i == j {
				continue
			}
			assert.Greater(t, matrix[i][j], 0.0)
			// undirected lattice, so rows mirror columns
			assert.InDelta(t, matrix[j][i], matrix[i][j], 1e-6)
		}
	}

	pair, err := routing.ShortestPathDijkstra(g, 0, 8, routing.DefaultSearchOptions())
	require.NoError(t, err)
	assert.InDelta(t, pair.TravelTime, matrix[0][3], 1e-6)
}

type stubCH struct {
	calls int
}

func (s *stubCH) Name() string { return "ch" }

func (s *stubCH) Route(req datastructure.RoutingRequest) (*datastructure.RoutingResponse, error) {
	s.calls++
	return &datastructure.RoutingResponse{}, nil
}

func TestEngineDispatch(t *testing.T) {
	g := gridGraph(t, 3, 3)
	req := datastructure.NewRoutingRequest(
		datastructure.NewCoordinate(0, 0),
		datastructure.NewCoordinate(0.02, 0.02),
		datastructure.DefaultCarProfile(),
	)

	engine := routing.NewEngine(g)
	_, err := engine.Route(req)
	require.NoError(t, err)
	assert.Equal(t, int64(1), engine.QueryCounts()["astar"])

	_, err = engine.RouteWith("dijkstra", req)
	require.NoError(t, err)
	assert.Equal(t, int64(1), engine.QueryCounts()["dijkstra"])

	_, err = engine.RouteWith("ch", req)
	require.Error(t, err)
	assert.Equal(t, server.ErrBadParamInput, server.ErrorCodeOf(err))

	_, err = engine.RouteWith("teleport", req)
	require.Error(t, err)
	assert.Equal(t, server.ErrBadParamInput, server.ErrorCodeOf(err))

	ch := &stubCH{}
	prepared := routing.NewEngine(g, routing.WithCH(ch))
	_, err = prepared.Route(req)
	require.NoError(t, err)
	assert.Equal(t, 1, ch.calls)
	assert.Equal(t, int64(1), prepared.QueryCounts()["ch"])

	// departure times, non-car modes, and avoid flags bypass the
	// free-flow hierarchy
	timed := req
	timed.DepartureTime = 8 * 3600
	_, err = prepared.Route(timed)
	require.NoError(t, err)
	assert.Equal(t, 1, ch.calls)
	assert.Equal(t, int64(1), prepared.QueryCounts()["astar"])

	walking := req
	walking.Profile = datastructure.DefaultFootProfile()
	_, err = prepared.Route(walking)
	require.NoError(t, err)
	assert.Equal(t, 1, ch.calls)
	assert.Equal(t, int64(2), prepared.QueryCounts()["astar"])
}

func TestEngineRouteInvalidCoordinates(t *testing.T) {
	g := gridGraph(t, 3, 3)
	engine := routing.NewEngine(g)

	req := datastructure.NewRoutingRequest(
		datastructure.NewCoordinate(120.0, 0),
		datastructure.NewCoordinate(0.02, 0.02),
		datastructure.DefaultCarProfile(),
	)
	_, err := engine.Route(req)
	require.Error(t, err)
	assert.Equal(t, server.ErrInvalidCoordinates, server.ErrorCodeOf(err))
}

func TestSameOriginAndDestination(t *testing.T) {
	g := gridGraph(t, 3, 3)
	result, err := routing.ShortestPathDijkstra(g, 4, 4, routing.DefaultSearchOptions())
	require.NoError(t, err)
	assert.Equal(t, 0.0, result.TravelTime)
	assert.Equal(t, 0.0, result.Distance)
	assert.Len(t, result.Coords, 1)
	assert.Empty(t, result.Edges)
}

func TestEngineDistanceMatrix(t *testing.T) {
	g := gridGraph(t, 3, 3)
	engine := routing.NewEngine(g)

	points := []datastructure.Coordinate{
		datastructure.NewCoordinate(0, 0),
		datastructure.NewCoordinate(0, 0.02),
		datastructure.NewCoordinate(0.02, 0.02),
	}
	matrix, err := engine.DistanceMatrix(points, datastructure.DefaultCarProfile(), -1)
	require.NoError(t, err)
	require.Len(t, matrix, 3)
	assert.Equal(t, 0.0, matrix[1][1])
	assert.Greater(t, matrix[0][2], matrix[0][1])

	_, err = engine.DistanceMatrix(nil, datastructure.DefaultCarProfile(), -1)
	require.Error(t, err)
	assert.Equal(t, server.ErrBadParamInput, server.ErrorCodeOf(err))
}
