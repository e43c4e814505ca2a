package routing

// LandmarkHeuristic is the triangle-inequality lower bound a landmark
// table provides. *landmark.Landmarks satisfies it.
type LandmarkHeuristic interface {
	// LowerBound returns a lower bound on the travel time from v to
	// target, in seconds.
	LowerBound(v, target int32) float64
	Ready() bool
}

// ShortestPathALT runs A* with landmark lower bounds instead of the
// haversine estimate. Falls back to plain Dijkstra when the tables are
// not loaded.
func ShortestPathALT(g RoutingGraph, lm LandmarkHeuristic, from, to int32, opts SearchOptions) (SearchResult, error) {
	if lm == nil || !lm.Ready() {
		return search(g, from, to, opts, nil)
	}
	h := func(nodeID int32) float64 {
		return lm.LowerBound(nodeID, to)
	}
	return search(g, from, to, opts, h)
}
