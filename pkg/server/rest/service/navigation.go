package service

import (
	"context"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/pandu-maps/pandu/pkg/datastructure"
	"github.com/pandu-maps/pandu/pkg/geo"
	"github.com/pandu-maps/pandu/pkg/heuristics"
	"github.com/pandu-maps/pandu/pkg/matching"
	"github.com/pandu-maps/pandu/pkg/server"
)

type RoutingEngine interface {
	RouteWith(name string, req datastructure.RoutingRequest) (*datastructure.RoutingResponse, error)
	DistanceMatrix(points []datastructure.Coordinate, profile datastructure.RoutingProfile, departureTime float64) ([][]float64, error)
	OptimizeTSP(points []datastructure.Coordinate, profile datastructure.RoutingProfile, departureTime float64) (heuristics.TspSolution, error)
	OptimizeTSPAnnealed(points []datastructure.Coordinate, profile datastructure.RoutingProfile, departureTime float64, seed uint64) (heuristics.TspSolution, error)
	OptimizeVRP(depot datastructure.Coordinate, customers []datastructure.Coordinate, demands []float64, capacity float64,
		profile datastructure.RoutingProfile, departureTime float64) (heuristics.VrpSolution, error)
	OptimizeVRPSweep(depot datastructure.Coordinate, customers []datastructure.Coordinate, demands []float64, capacity float64,
		profile datastructure.RoutingProfile, departureTime float64) (heuristics.VrpSolution, error)
}

type GraphStore interface {
	NearestNode(lat, lon float64) (int32, error)
	GetNode(nodeID int32) datastructure.Node
	GetEdge(edgeID int32) *datastructure.Edge
	StreetName(id int) string
}

type StreetIndex interface {
	NearestStreets(lat, lon float64) ([]datastructure.KVEdge, error)
}

// TraceMatcher aligns a GPS trace with the road network. *matching.Matcher
// satisfies it.
type TraceMatcher interface {
	Match(trace []datastructure.Coordinate, profile datastructure.RoutingProfile) (*matching.MatchResult, error)
}

type NavigationService struct {
	engine  RoutingEngine
	graph   GraphStore
	streets StreetIndex
	matcher TraceMatcher
}

func NewNavigationService(engine RoutingEngine, graph GraphStore, streets StreetIndex, matcher TraceMatcher) *NavigationService {
	return &NavigationService{engine: engine, graph: graph, streets: streets, matcher: matcher}
}

type RouteResult struct {
	Polyline  string
	Distance  float64
	Duration  float64
	Segments  []datastructure.RouteSegment
	Waypoints []datastructure.Coordinate
}

// FindRoute runs one point-to-point query and encodes the simplified
// geometry as a google polyline. An empty algorithm name leaves the
// choice to the engine.
func (uc *NavigationService) FindRoute(ctx context.Context, origin, destination datastructure.Coordinate,
	profile datastructure.RoutingProfile, departureTime float64, algorithm string) (RouteResult, error) {

	req := datastructure.NewRoutingRequest(origin, destination, profile)
	req.DepartureTime = departureTime

	resp, err := uc.engine.RouteWith(algorithm, req)
	if err != nil {
		return RouteResult{}, err
	}

	simplified := geo.RamerDouglasPeucker(resp.Geometry)
	return RouteResult{
		Polyline:  geo.CreatePolyline(simplified),
		Distance:  resp.Distance,
		Duration:  resp.Duration,
		Segments:  resp.Segments,
		Waypoints: resp.Waypoints,
	}, nil
}

// TravelTimeMatrix returns pairwise travel times in seconds. JSON has no
// +Inf, so unreachable pairs come back as -1.
func (uc *NavigationService) TravelTimeMatrix(ctx context.Context, points []datastructure.Coordinate,
	profile datastructure.RoutingProfile, departureTime float64) ([][]float64, error) {

	matrix, err := uc.engine.DistanceMatrix(points, profile, departureTime)
	if err != nil {
		return nil, err
	}
	for i := range matrix {
		for j := range matrix[i] {
			if math.IsInf(matrix[i][j], 1) {
				matrix[i][j] = -1
			}
		}
	}
	return matrix, nil
}

type TourResult struct {
	Order             []int
	Points            []datastructure.Coordinate
	Polyline          string
	Distance          float64
	Duration          float64
	ComputationTimeMs float64
}

// TravelingSalesman orders the points into a round trip and routes every
// leg of it, so the polyline follows actual streets instead of beelines.
func (uc *NavigationService) TravelingSalesman(ctx context.Context, points []datastructure.Coordinate,
	profile datastructure.RoutingProfile, departureTime float64, algorithm string, seed uint64) (TourResult, error) {

	var solution heuristics.TspSolution
	var err error
	switch algorithm {
	case "", "twoopt":
		solution, err = uc.engine.OptimizeTSP(points, profile, departureTime)
	case "annealed":
		solution, err = uc.engine.OptimizeTSPAnnealed(points, profile, departureTime, seed)
	default:
		return TourResult{}, server.NewErrorf(server.ErrBadParamInput, "unknown tsp algorithm %q", algorithm)
	}
	if err != nil {
		return TourResult{}, err
	}

	ordered := make([]datastructure.Coordinate, len(solution.Tour))
	for i, idx := range solution.Tour {
		ordered[i] = points[idx]
	}

	roundTrip := make([]datastructure.Coordinate, 0, len(ordered)+1)
	roundTrip = append(roundTrip, ordered...)
	roundTrip = append(roundTrip, ordered[0])

	polyline, distance, duration, err := uc.routeLegs(roundTrip, profile, departureTime)
	if err != nil {
		return TourResult{}, err
	}

	return TourResult{
		Order:             solution.Tour,
		Points:            ordered,
		Polyline:          polyline,
		Distance:          distance,
		Duration:          duration,
		ComputationTimeMs: solution.ComputationTimeMs,
	}, nil
}

type VehicleRouteResult struct {
	VehicleID int
	Stops     []int
	Load      float64
	Cost      float64
	Polyline  string
	Distance  float64
	Duration  float64
}

type FleetResult struct {
	Routes            []VehicleRouteResult
	TotalCost         float64
	TotalDemand       float64
	ComputationTimeMs float64
}

// VehicleRouting partitions the customers into capacity-feasible vehicle
// routes and traces each route depot -> stops -> depot on the road
// network.
func (uc *NavigationService) VehicleRouting(ctx context.Context, depot datastructure.Coordinate,
	customers []datastructure.Coordinate, demands []float64, capacity float64,
	profile datastructure.RoutingProfile, departureTime float64, algorithm string) (FleetResult, error) {

	var solution heuristics.VrpSolution
	var err error
	switch algorithm {
	case "", "savings":
		solution, err = uc.engine.OptimizeVRP(depot, customers, demands, capacity, profile, departureTime)
	case "sweep":
		solution, err = uc.engine.OptimizeVRPSweep(depot, customers, demands, capacity, profile, departureTime)
	default:
		return FleetResult{}, server.NewErrorf(server.ErrBadParamInput, "unknown vrp algorithm %q", algorithm)
	}
	if err != nil {
		return FleetResult{}, err
	}

	routes := make([]VehicleRouteResult, 0, len(solution.Routes))
	for _, route := range solution.Routes {
		stops := make([]datastructure.Coordinate, 0, len(route.Stops)+2)
		stops = append(stops, depot)
		for _, customer := range route.Stops {
			stops = append(stops, customers[customer])
		}
		stops = append(stops, depot)

		polyline, distance, duration, err := uc.routeLegs(stops, profile, departureTime)
		if err != nil {
			return FleetResult{}, err
		}
		routes = append(routes, VehicleRouteResult{
			VehicleID: route.VehicleID,
			Stops:     route.Stops,
			Load:      route.Load,
			Cost:      route.Cost,
			Polyline:  polyline,
			Distance:  distance,
			Duration:  duration,
		})
	}

	return FleetResult{
		Routes:            routes,
		TotalCost:         solution.TotalCost,
		TotalDemand:       solution.TotalDemand,
		ComputationTimeMs: solution.ComputationTimeMs,
	}, nil
}

// routeLegs routes consecutive stop pairs and concatenates their
// geometry, dropping the duplicated joint point between legs.
func (uc *NavigationService) routeLegs(stops []datastructure.Coordinate,
	profile datastructure.RoutingProfile, departureTime float64) (string, float64, float64, error) {

	geometry := make([]datastructure.Coordinate, 0)
	var distance, duration float64
	for i := 0; i+1 < len(stops); i++ {
		req := datastructure.NewRoutingRequest(stops[i], stops[i+1], profile)
		req.DepartureTime = departureTime

		resp, err := uc.engine.RouteWith("", req)
		if err != nil {
			return "", 0, 0, server.WrapErrorf(err, server.ErrorCodeOf(err), "routing leg %d", i)
		}

		legGeometry := resp.Geometry
		if i > 0 && len(legGeometry) > 0 {
			legGeometry = legGeometry[1:]
		}
		geometry = append(geometry, legGeometry...)
		distance += resp.Distance
		duration += resp.Duration
	}
	return geo.CreatePolyline(geo.RamerDouglasPeucker(geometry)), distance, duration, nil
}

type StreetRecord struct {
	EdgeID     int32
	StreetName string
	RoadClass  string
	Center     datastructure.Coordinate
}

type NearestResult struct {
	NodeID   int32
	Location datastructure.Coordinate
	Streets  []StreetRecord
}

// NearestStreet snaps the query point to the closest graph node and
// decorates it with the street records of the surrounding H3 cells. A
// miss in the street index is not fatal: sparse areas the r-tree still
// covers simply return no street context.
func (uc *NavigationService) NearestStreet(ctx context.Context, lat, lon float64) (NearestResult, error) {
	nodeID, err := uc.graph.NearestNode(lat, lon)
	if err != nil {
		return NearestResult{}, err
	}
	node := uc.graph.GetNode(nodeID)

	result := NearestResult{
		NodeID:   nodeID,
		Location: datastructure.NewCoordinate(node.Lat, node.Lon),
	}

	edges, err := uc.streets.NearestStreets(lat, lon)
	if err != nil {
		logrus.Debugf("street index lookup failed for (%f, %f): %v", lat, lon, err)
		return result, nil
	}
	for _, kvEdge := range edges {
		edge := uc.graph.GetEdge(kvEdge.EdgeID)
		result.Streets = append(result.Streets, StreetRecord{
			EdgeID:     kvEdge.EdgeID,
			StreetName: uc.graph.StreetName(edge.StreetName),
			RoadClass:  edge.RoadClass.String(),
			Center:     datastructure.NewCoordinate(kvEdge.CenterLoc[0], kvEdge.CenterLoc[1]),
		})
	}
	return result, nil
}

type TracePoint struct {
	Observation datastructure.Coordinate
	Snapped     datastructure.Coordinate
	EdgeID      int32
	StreetName  string
}

type TraceResult struct {
	Polyline string
	Points   []TracePoint
	Breaks   int
	Dropped  int
}

// MatchTrace aligns a recorded GPS trace with the road network and
// reports, for every observation the matcher kept, the position on the
// street it most plausibly came from. The snapped chain is returned
// unsimplified: matched traces are already sparse and every point
// carries its own street annotation.
func (uc *NavigationService) MatchTrace(ctx context.Context, trace []datastructure.Coordinate,
	profile datastructure.RoutingProfile) (TraceResult, error) {

	matched, err := uc.matcher.Match(trace, profile)
	if err != nil {
		return TraceResult{}, err
	}

	result := TraceResult{Breaks: matched.Breaks, Dropped: matched.Dropped}
	snapped := make([]datastructure.Coordinate, 0, len(matched.Points))
	for _, point := range matched.Points {
		edge := uc.graph.GetEdge(point.EdgeID)
		result.Points = append(result.Points, TracePoint{
			Observation: point.Observation,
			Snapped:     point.Snapped,
			EdgeID:      point.EdgeID,
			StreetName:  uc.graph.StreetName(edge.StreetName),
		})
		snapped = append(snapped, point.Snapped)
	}
	result.Polyline = geo.CreatePolyline(snapped)
	return result, nil
}
