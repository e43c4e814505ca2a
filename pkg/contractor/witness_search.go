package contractor

import (
	"math"

	"github.com/pandu-maps/pandu/pkg/datastructure"
)

// dijkstraWitnessSearch checks whether a path from u to w that avoids
// the node under contraction stays within acceptedWeight. The search
// gives up once the frontier passes acceptedWeight or pMax, or after
// maxSettledNodes pops; giving up counts as "no witness", which only
// costs an extra shortcut, never correctness.
func (ch *ContractedGraph) dijkstraWitnessSearch(fromNodeID, targetNodeID, ignoreNodeID int32,
	acceptedWeight float64, maxSettledNodes int, pMax float64, contracted []bool) float64 {

	visited := make(map[int32]bool)
	cost := make(map[int32]float64)
	entries := make(map[int32]*datastructure.Entry[int32])

	pq := datastructure.NewFibonacciHeap[int32]()
	entries[fromNodeID] = pq.Insert(fromNodeID, 0.0)
	cost[fromNodeID] = 0.0

	settledNodes := 0
	for settledNodes < maxSettledNodes {
		if pq.IsEmpty() || pq.GetMinRank() > acceptedWeight {
			return math.MaxFloat64
		}

		if targetCost, ok := cost[targetNodeID]; ok && targetCost <= acceptedWeight {
			// good enough: some avoiding path already beats the
			// through weight
			return targetCost
		}

		currItem := pq.ExtractMin()
		currNode := currItem.GetElem()
		if contracted[currNode] {
			continue
		}
		if currNode == targetNodeID {
			return cost[currNode]
		}
		if currItem.GetPriority() > pMax {
			if targetCost, ok := cost[targetNodeID]; ok {
				return targetCost
			}
			return math.MaxFloat64
		}

		visited[currNode] = true
		for _, outID := range ch.firstOut[currNode] {
			neighbor := ch.outEdges[outID]
			toNodeID := neighbor.ToNodeID
			if visited[toNodeID] || toNodeID == ignoreNodeID || contracted[toNodeID] {
				continue
			}

			newCost := cost[currNode] + neighbor.Cost.TravelTime
			oldCost, ok := cost[toNodeID]
			if !ok {
				cost[toNodeID] = newCost
				entries[toNodeID] = pq.Insert(toNodeID, newCost)
			} else if newCost < oldCost {
				cost[toNodeID] = newCost
				pq.DecreaseKey(entries[toNodeID], newCost)
			}
		}

		settledNodes++
	}
	return math.MaxFloat64
}
