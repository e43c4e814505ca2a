package routing

import (
	"github.com/pandu-maps/pandu/pkg/datastructure"
)

// haversineHeuristic estimates remaining travel time as the great
// circle distance to the target divided by the fastest speed anything
// in the graph can drive. Dividing by the max keeps the estimate a
// lower bound, so A* stays admissible.
func haversineHeuristic(g RoutingGraph, to int32, opts SearchOptions) heuristicFunc {
	target := g.GetNode(to)
	speedKmh := opts.Profile.CruisingSpeedKmh
	if g.MaxSpeedKmh() > speedKmh {
		speedKmh = g.MaxSpeedKmh()
	}
	if speedKmh <= 0 {
		speedKmh = 120.0
	}
	speedMs := speedKmh / 3.6

	return func(nodeID int32) float64 {
		node := g.GetNode(nodeID)
		distKm := datastructure.HaversineDistance(node.Lat, node.Lon, target.Lat, target.Lon)
		return distKm * 1000.0 / speedMs
	}
}

// ShortestPathAStar runs A* with the haversine travel-time heuristic.
func ShortestPathAStar(g RoutingGraph, from, to int32, opts SearchOptions) (SearchResult, error) {
	return search(g, from, to, opts, haversineHeuristic(g, to, opts))
}
