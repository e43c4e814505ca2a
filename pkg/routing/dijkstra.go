package routing

import (
	"math"

	"github.com/pandu-maps/pandu/pkg/datastructure"
)

// ShortestPathDijkstra runs a plain Dijkstra between two node indexes.
func ShortestPathDijkstra(g RoutingGraph, from, to int32, opts SearchOptions) (SearchResult, error) {
	return search(g, from, to, opts, nil)
}

// ManyToOneDijkstra settles distances from one source until every node
// in targets is settled or the frontier runs dry. Unreachable targets
// are simply absent from the returned map.
func ManyToOneDijkstra(g RoutingGraph, source int32, targets []int32, opts SearchOptions) map[int32]float64 {
	remaining := make(map[int32]struct{}, len(targets))
	for _, t := range targets {
		remaining[t] = struct{}{}
	}

	dist := make(map[int32]float64)
	result := make(map[int32]float64, len(targets))
	settled := make(map[int32]struct{})

	pq := datastructure.NewMinHeap[int32]()
	dist[source] = 0.0
	pq.Insert(datastructure.NewPriorityQueueNode(0.0, source))

	for !pq.IsEmpty() && len(remaining) > 0 {
		current, err := pq.ExtractMin()
		if err != nil {
			break
		}
		currentID := current.Item
		if current.Rank > dist[currentID]+1e-9 {
			continue
		}
		settled[currentID] = struct{}{}

		if _, want := remaining[currentID]; want {
			result[currentID] = dist[currentID]
			delete(remaining, currentID)
		}

		for _, edgeID := range g.OutgoingEdges(currentID) {
			edge := g.GetEdge(edgeID)
			weight, ok := opts.edgeWeight(edge)
			if !ok {
				continue
			}
			toNode := edge.ToNodeID
			if _, done := settled[toNode]; done {
				continue
			}
			newCost := dist[currentID] + weight
			oldCost, seen := dist[toNode]
			if seen && newCost >= oldCost {
				continue
			}
			dist[toNode] = newCost
			if pq.Contains(toNode) {
				pq.DecreaseKey(datastructure.NewPriorityQueueNode(newCost, toNode))
			} else {
				pq.Insert(datastructure.NewPriorityQueueNode(newCost, toNode))
			}
		}
	}

	return result
}

// SingleSourceDijkstra settles the whole reachable component and
// returns a dense distance array indexed by node id, +Inf where the
// node was never reached. reverse walks incoming edges instead, which
// gives distances TO the source.
func SingleSourceDijkstra(g RoutingGraph, source int32, reverse bool, opts SearchOptions) []float64 {
	dist := make([]float64, g.NumNodes())
	for i := range dist {
		dist[i] = math.Inf(1)
	}
	settled := make([]bool, g.NumNodes())

	pq := datastructure.NewMinHeap[int32]()
	dist[source] = 0.0
	pq.Insert(datastructure.NewPriorityQueueNode(0.0, source))

	for !pq.IsEmpty() {
		current, err := pq.ExtractMin()
		if err != nil {
			break
		}
		currentID := current.Item
		if current.Rank > dist[currentID]+1e-9 {
			continue
		}
		settled[currentID] = true

		neighbors := g.OutgoingEdges(currentID)
		if reverse {
			neighbors = g.IncomingEdges(currentID)
		}
		for _, edgeID := range neighbors {
			edge := g.GetEdge(edgeID)
			weight, ok := opts.edgeWeight(edge)
			if !ok {
				continue
			}
			toNode := edge.ToNodeID
			if reverse {
				toNode = edge.FromNodeID
			}
			if settled[toNode] {
				continue
			}
			newCost := dist[currentID] + weight
			if newCost >= dist[toNode] {
				continue
			}
			dist[toNode] = newCost
			if pq.Contains(toNode) {
				pq.DecreaseKey(datastructure.NewPriorityQueueNode(newCost, toNode))
			} else {
				pq.Insert(datastructure.NewPriorityQueueNode(newCost, toNode))
			}
		}
	}

	return dist
}
