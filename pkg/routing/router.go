package routing

import (
	"github.com/pandu-maps/pandu/pkg/datastructure"
	"github.com/pandu-maps/pandu/pkg/server"
	"github.com/puzpuzpuz/xsync/v3"
)

// Algorithm is one point-to-point routing strategy. Route answers a
// coordinate-level request end to end: snap, search, geometry.
type Algorithm interface {
	Route(req datastructure.RoutingRequest) (*datastructure.RoutingResponse, error)
	Name() string
}

func departureHour(departureTime float64) int {
	if departureTime < 0 {
		return -1
	}
	return int(departureTime / 3600.0)
}

func requestOptions(req datastructure.RoutingRequest) SearchOptions {
	opts := DefaultSearchOptions()
	opts.Profile = req.Profile
	opts.DepartureHour = departureHour(req.DepartureTime)
	return opts
}

// buildResponse turns a finished search into the response payload,
// resolving street names and road classes per traversed edge.
func buildResponse(g *datastructure.Graph, result SearchResult, opts SearchOptions) *datastructure.RoutingResponse {
	segments := make([]datastructure.RouteSegment, 0, len(result.Edges))
	for i := range result.Edges {
		edge := &result.Edges[i]
		duration := edge.Cost.TravelTime
		if opts.DepartureHour >= 0 {
			duration = edge.Cost.TimeAt(opts.DepartureHour)
		}
		segments = append(segments, datastructure.RouteSegment{
			EdgeID:     edge.EdgeID,
			StreetName: g.StreetName(edge.StreetName),
			RoadClass:  edge.RoadClass.String(),
			Distance:   edge.Cost.Distance,
			Duration:   duration,
		})
	}

	waypoints := make([]datastructure.Coordinate, 0, 2)
	if len(result.Coords) > 0 {
		waypoints = append(waypoints, result.Coords[0], result.Coords[len(result.Coords)-1])
	}

	return &datastructure.RoutingResponse{
		Distance:  result.Distance,
		Duration:  result.TravelTime,
		Geometry:  result.Coords,
		Segments:  segments,
		Waypoints: waypoints,
	}
}

type DijkstraRouter struct {
	g *datastructure.Graph
}

func NewDijkstraRouter(g *datastructure.Graph) *DijkstraRouter {
	return &DijkstraRouter{g: g}
}

func (d *DijkstraRouter) Name() string { return "dijkstra" }

func (d *DijkstraRouter) Route(req datastructure.RoutingRequest) (*datastructure.RoutingResponse, error) {
	from, to, err := resolveEndpoints(d.g, req)
	if err != nil {
		return nil, err
	}
	opts := requestOptions(req)
	result, err := ShortestPathDijkstra(d.g, from, to, opts)
	if err != nil {
		return nil, err
	}
	return buildResponse(d.g, result, opts), nil
}

type AStarRouter struct {
	g *datastructure.Graph
}

func NewAStarRouter(g *datastructure.Graph) *AStarRouter {
	return &AStarRouter{g: g}
}

func (a *AStarRouter) Name() string { return "astar" }

func (a *AStarRouter) Route(req datastructure.RoutingRequest) (*datastructure.RoutingResponse, error) {
	from, to, err := resolveEndpoints(a.g, req)
	if err != nil {
		return nil, err
	}
	opts := requestOptions(req)
	result, err := ShortestPathAStar(a.g, from, to, opts)
	if err != nil {
		return nil, err
	}
	return buildResponse(a.g, result, opts), nil
}

type ALTRouter struct {
	g  *datastructure.Graph
	lm LandmarkHeuristic
}

func NewALTRouter(g *datastructure.Graph, lm LandmarkHeuristic) *ALTRouter {
	return &ALTRouter{g: g, lm: lm}
}

func (a *ALTRouter) Name() string { return "alt" }

func (a *ALTRouter) Route(req datastructure.RoutingRequest) (*datastructure.RoutingResponse, error) {
	from, to, err := resolveEndpoints(a.g, req)
	if err != nil {
		return nil, err
	}
	opts := requestOptions(req)
	result, err := ShortestPathALT(a.g, a.lm, from, to, opts)
	if err != nil {
		return nil, err
	}
	return buildResponse(a.g, result, opts), nil
}

func resolveEndpoints(g *datastructure.Graph, req datastructure.RoutingRequest) (int32, int32, error) {
	from, err := g.NearestNode(req.Origin.Lat, req.Origin.Lon)
	if err != nil {
		return -1, -1, server.WrapErrorf(err, server.ErrorCodeOf(err), "origin")
	}
	to, err := g.NearestNode(req.Destination.Lat, req.Destination.Lon)
	if err != nil {
		return -1, -1, server.WrapErrorf(err, server.ErrorCodeOf(err), "destination")
	}
	return from, to, nil
}

// Engine owns the graph plus every prepared algorithm and picks the
// fastest one available per request: contraction hierarchies when the
// preprocessed artifact is loaded, A* otherwise.
type Engine struct {
	g          *datastructure.Graph
	dijkstra   *DijkstraRouter
	astar      *AStarRouter
	alt        *ALTRouter
	ch         Algorithm
	queryCount *xsync.MapOf[string, *xsync.Counter]
}

type EngineOption func(*Engine)

// WithCH registers a contraction hierarchies router as the preferred
// strategy.
func WithCH(ch Algorithm) EngineOption {
	return func(e *Engine) { e.ch = ch }
}

// WithLandmarks enables the ALT router on top of prepared landmark
// tables.
func WithLandmarks(lm LandmarkHeuristic) EngineOption {
	return func(e *Engine) { e.alt = NewALTRouter(e.g, lm) }
}

func NewEngine(g *datastructure.Graph, options ...EngineOption) *Engine {
	e := &Engine{
		g:          g,
		dijkstra:   NewDijkstraRouter(g),
		astar:      NewAStarRouter(g),
		queryCount: xsync.NewMapOf[string, *xsync.Counter](),
	}
	for _, opt := range options {
		opt(e)
	}
	return e
}

func (e *Engine) Graph() *datastructure.Graph { return e.g }

// Route serves the request with the default strategy.
func (e *Engine) Route(req datastructure.RoutingRequest) (*datastructure.RoutingResponse, error) {
	return e.routeWith(e.defaultAlgorithm(req), req)
}

// RouteWith serves the request with an explicitly named algorithm.
func (e *Engine) RouteWith(name string, req datastructure.RoutingRequest) (*datastructure.RoutingResponse, error) {
	alg, err := e.algorithmByName(name, req)
	if err != nil {
		return nil, err
	}
	return e.routeWith(alg, req)
}

func (e *Engine) routeWith(alg Algorithm, req datastructure.RoutingRequest) (*datastructure.RoutingResponse, error) {
	counter, _ := e.queryCount.LoadOrCompute(alg.Name(), func() *xsync.Counter {
		return xsync.NewCounter()
	})
	counter.Inc()
	return alg.Route(req)
}

// freeFlowCar reports whether the contracted graph answers this request
// exactly. The hierarchy is built once under free-flow car weights, so
// departure times, other travel modes, and avoid flags all have to
// route on the live graph instead.
func freeFlowCar(req datastructure.RoutingRequest) bool {
	return req.DepartureTime < 0 &&
		req.Profile.Mode == datastructure.ModeCar &&
		!req.Profile.AvoidToll &&
		!req.Profile.AvoidFerry
}

func (e *Engine) defaultAlgorithm(req datastructure.RoutingRequest) Algorithm {
	if e.ch != nil && freeFlowCar(req) {
		return e.ch
	}
	return e.astar
}

func (e *Engine) algorithmByName(name string, req datastructure.RoutingRequest) (Algorithm, error) {
	switch name {
	case "", "auto":
		return e.defaultAlgorithm(req), nil
	case "dijkstra":
		return e.dijkstra, nil
	case "astar":
		return e.astar, nil
	case "alt":
		if e.alt == nil {
			return nil, server.NewErrorf(server.ErrBadParamInput, "alt requested but landmark tables are not loaded")
		}
		return e.alt, nil
	case "ch":
		if e.ch == nil {
			return nil, server.NewErrorf(server.ErrBadParamInput, "ch requested but the contracted graph is not loaded")
		}
		return e.ch, nil
	}
	return nil, server.NewErrorf(server.ErrBadParamInput, "unknown routing algorithm %q", name)
}

// QueryCounts snapshots how many requests each algorithm has served
// since startup.
func (e *Engine) QueryCounts() map[string]int64 {
	counts := make(map[string]int64)
	e.queryCount.Range(func(name string, counter *xsync.Counter) bool {
		counts[name] = counter.Value()
		return true
	})
	return counts
}
