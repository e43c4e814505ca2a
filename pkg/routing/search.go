package routing

import (
	"github.com/pandu-maps/pandu/pkg/datastructure"
	"github.com/pandu-maps/pandu/pkg/server"
	"github.com/pandu-maps/pandu/pkg/util"
)

// RoutingGraph is the read-only graph surface the searches traverse.
// *datastructure.Graph satisfies it.
type RoutingGraph interface {
	NumNodes() int
	NumEdges() int
	GetNode(nodeID int32) datastructure.Node
	GetEdge(edgeID int32) *datastructure.Edge
	OutgoingEdges(nodeID int32) []int32
	IncomingEdges(nodeID int32) []int32
	IsTurnAllowed(fromEdgeID, viaNode, toEdgeID int32) bool
	MaxSpeedKmh() float64
}

const defaultMaxSettledNodes = 2_000_000

// SearchOptions tunes one search run. The zero value means free-flow
// car weights with the default settled-node cap.
type SearchOptions struct {
	Profile         datastructure.RoutingProfile
	DepartureHour   int
	MaxSettledNodes int
	IgnoreAccess    bool
	EdgeFilter      func(edge *datastructure.Edge) bool
}

func DefaultSearchOptions() SearchOptions {
	return SearchOptions{
		Profile:         datastructure.DefaultCarProfile(),
		DepartureHour:   -1,
		MaxSettledNodes: defaultMaxSettledNodes,
	}
}

// PreprocessingSearchOptions ignores mode restrictions and departure
// hours so the resulting distances lower-bound every query metric.
func PreprocessingSearchOptions() SearchOptions {
	opts := DefaultSearchOptions()
	opts.IgnoreAccess = true
	return opts
}

func (opts *SearchOptions) maxSettled() int {
	if opts.MaxSettledNodes <= 0 {
		return defaultMaxSettledNodes
	}
	return opts.MaxSettledNodes
}

// edgeWeight returns the traversal cost in seconds, or ok=false when
// the profile may not use the edge.
func (opts *SearchOptions) edgeWeight(edge *datastructure.Edge) (float64, bool) {
	if opts.EdgeFilter != nil && !opts.EdgeFilter(edge) {
		return 0, false
	}
	if !opts.IgnoreAccess {
		if !edge.Access.Allows(opts.Profile.Mode) {
			return 0, false
		}
		if opts.Profile.AvoidToll && edge.Cost.Toll > 0 {
			return 0, false
		}
		if opts.Profile.AvoidFerry && edge.Cost.Ferry {
			return 0, false
		}
	}
	if opts.DepartureHour >= 0 {
		return edge.Cost.TimeAt(opts.DepartureHour), true
	}
	return edge.Cost.TravelTime, true
}

type cameFromPair struct {
	Edge   int32
	NodeID int32
}

// SearchResult is one finished point-to-point search. Settled counts
// how many nodes were popped with final distances, which is the usual
// way to compare how much work two algorithms did on the same query.
type SearchResult struct {
	Coords     []datastructure.Coordinate
	Edges      []datastructure.Edge
	TravelTime float64
	Distance   float64
	Settled    int
}

// heuristicFunc lower-bounds the remaining cost to the fixed target of
// one query. nil means Dijkstra order.
type heuristicFunc func(nodeID int32) float64

// search is the shared best-first loop: Dijkstra when h is nil, A*
// otherwise. The priority queue is keyed by g+h, relaxations follow the
// decrease-key discipline, and a popped entry worse than the best known
// g is skipped as stale.
func search(g RoutingGraph, from, to int32, opts SearchOptions, h heuristicFunc) (SearchResult, error) {
	costSoFar := make(map[int32]float64)
	cameFrom := make(map[int32]cameFromPair)
	settled := make(map[int32]struct{})

	pq := datastructure.NewMinHeap[int32]()
	costSoFar[from] = 0.0
	cameFrom[from] = cameFromPair{Edge: -1, NodeID: -1}
	pq.Insert(datastructure.NewPriorityQueueNode(0.0, from))

	maxSettled := opts.maxSettled()

	for !pq.IsEmpty() {
		current, err := pq.ExtractMin()
		if err != nil {
			break
		}
		currentID := current.Item

		bestKnown := costSoFar[currentID]
		if h != nil {
			bestKnown += h(currentID)
		}
		if current.Rank > bestKnown+1e-9 {
			continue
		}

		settled[currentID] = struct{}{}
		if len(settled) > maxSettled {
			return SearchResult{}, server.NewErrorf(server.ErrSearchExhausted,
				"search exhausted after settling %d nodes", len(settled))
		}

		if currentID == to {
			return reconstructPath(g, from, to, cameFrom, costSoFar[to], len(settled)), nil
		}

		arrivalEdge := cameFrom[currentID].Edge
		for _, edgeID := range g.OutgoingEdges(currentID) {
			edge := g.GetEdge(edgeID)
			weight, ok := opts.edgeWeight(edge)
			if !ok {
				continue
			}
			if arrivalEdge >= 0 && !g.IsTurnAllowed(arrivalEdge, currentID, edgeID) {
				continue
			}

			toNode := edge.ToNodeID
			if _, done := settled[toNode]; done {
				continue
			}

			newCost := costSoFar[currentID] + weight
			oldCost, seen := costSoFar[toNode]
			if seen && newCost >= oldCost {
				continue
			}

			costSoFar[toNode] = newCost
			cameFrom[toNode] = cameFromPair{Edge: edgeID, NodeID: currentID}

			rank := newCost
			if h != nil {
				rank += h(toNode)
			}
			if pq.Contains(toNode) {
				pq.DecreaseKey(datastructure.NewPriorityQueueNode(rank, toNode))
			} else {
				pq.Insert(datastructure.NewPriorityQueueNode(rank, toNode))
			}
		}
	}

	return SearchResult{}, server.NewErrorf(server.ErrNoRouteFound,
		"no route found between node %d and node %d", from, to)
}

// reconstructPath walks the predecessor map from target back to source
// and reverses the node/edge sequences.
func reconstructPath(g RoutingGraph, from, to int32, cameFrom map[int32]cameFromPair, travelTime float64, settledCount int) SearchResult {
	nodePath := make([]int32, 0)
	edgePath := make([]datastructure.Edge, 0)

	current := to
	for current != from {
		pair := cameFrom[current]
		nodePath = append(nodePath, current)
		edgePath = append(edgePath, *g.GetEdge(pair.Edge))
		current = pair.NodeID
	}
	nodePath = append(nodePath, from)

	nodePath = util.ReverseG(nodePath)
	edgePath = util.ReverseG(edgePath)

	coords := make([]datastructure.Coordinate, 0, len(nodePath))
	for _, nodeID := range nodePath {
		node := g.GetNode(nodeID)
		coords = append(coords, datastructure.NewCoordinate(node.Lat, node.Lon))
	}

	dist := 0.0
	for i := range edgePath {
		dist += edgePath[i].Cost.Distance
	}

	return SearchResult{
		Coords:     coords,
		Edges:      edgePath,
		TravelTime: travelTime,
		Distance:   dist,
		Settled:    settledCount,
	}
}
