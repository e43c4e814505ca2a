package contractor

import (
	"runtime"
	"time"

	"github.com/pandu-maps/pandu/pkg/datastructure"
	"github.com/pandu-maps/pandu/pkg/server"
	"github.com/sirupsen/logrus"
)

// Contraction contracts every node in importance order and records the
// order positions the bidirectional query follows. Node priorities go
// stale as neighbors get contracted, so each polled node is
// re-evaluated and pushed back when a cheaper one is waiting (lazy
// update).
func (ch *ContractedGraph) Contraction() error {
	start := time.Now()
	ch.ComputeSCC()

	nq := datastructure.NewMinHeap[int32]()
	ch.updateAllPriorities(nq)

	logrus.Infof("contracting %d nodes, %d edges", len(ch.nodes), len(ch.outEdges))

	contracted := make([]bool, ch.metadata.nodeCount)
	orderNum := int64(0)

	for nq.Size() != 0 {
		smallestItem, err := nq.GetMin()
		if err != nil {
			return server.WrapErrorf(err, server.ErrInternalServerError, "contraction queue")
		}
		polledItem, err := nq.ExtractMin()
		if err != nil {
			return server.WrapErrorf(err, server.ErrInternalServerError, "contraction queue")
		}

		priority := ch.calculatePriority(polledItem.Item, contracted)
		if nq.Size() > 0 && priority > smallestItem.Rank {
			nq.Insert(datastructure.NewPriorityQueueNode(priority, polledItem.Item))
			continue
		}

		ch.orderPos[polledItem.Item] = orderNum
		ch.contractNode(polledItem.Item, contracted)
		contracted[polledItem.Item] = true
		orderNum++

		if orderNum%10000 == 0 {
			logrus.Infof("contracted %d nodes...", orderNum)
		}
	}

	logrus.Infof("contraction done: %d shortcuts in %v", ch.metadata.shortcutsCount, time.Since(start))
	ch.ready = true

	ch.metadata.degrees = nil
	ch.metadata.inEdgeOrigCount = nil
	ch.metadata.outEdgeOrigCount = nil
	runtime.GC()
	return nil
}

func (ch *ContractedGraph) updateAllPriorities(nq *datastructure.MinHeap[int32]) {
	contracted := make([]bool, ch.metadata.nodeCount)
	for nodeID := range ch.nodes {
		priority := ch.calculatePriority(int32(nodeID), contracted)
		nq.Insert(datastructure.NewPriorityQueueNode(priority, int32(nodeID)))

		if (nodeID+1)%10000 == 0 {
			logrus.Infof("computed priority of %d nodes...", nodeID+1)
		}
	}
}

// calculatePriority simulates the contraction without mutating the
// graph. Weighting the edge difference ten times heavier than the
// original-edge count follows the usual aggressive ordering.
func (ch *ContractedGraph) calculatePriority(nodeID int32, contracted []bool) float64 {
	_, shortcutCount, originalEdgesCount := ch.findAndHandleShortcuts(nodeID, nil,
		int(ch.metadata.meanDegree*maxPollFactorHeuristic), contracted)

	edgeDifference := shortcutCount - ch.metadata.degrees[nodeID]
	return float64(10*edgeDifference + originalEdgesCount)
}

func (ch *ContractedGraph) contractNode(nodeID int32, contracted []bool) {
	if contracted[nodeID] {
		return
	}
	degree, _, _ := ch.findAndHandleShortcuts(nodeID, ch.addOrUpdateShortcut,
		int(ch.metadata.meanDegree*maxPollFactorContraction), contracted)
	ch.metadata.meanDegree = (ch.metadata.meanDegree*2 + float64(degree)) / 3
}

// findAndHandleShortcuts looks at every uncontracted pair (u, w) with
// u -> nodeID -> w and runs a witness search that ignores nodeID. When
// no witness path is at most as cheap as going through nodeID, the
// pair needs a shortcut and handler is invoked (nil handler only
// counts, which is what the priority heuristic wants).
func (ch *ContractedGraph) findAndHandleShortcuts(nodeID int32,
	handler func(fromNodeID, toNodeID, viaNodeID int32, weight, dist float64),
	maxVisitedNodes int, contracted []bool) (int, int, int) {

	degree := 0
	shortcutCount := 0
	originalEdgesCount := 0

	// pMax bounds the witness search: no useful witness can be longer
	// than the heaviest in-edge plus the heaviest out-edge.
	pInMax, pOutMax := 0.0, 0.0
	for _, inID := range ch.firstIn[nodeID] {
		inEdge := ch.inEdges[inID]
		if contracted[inEdge.ToNodeID] {
			continue
		}
		if inEdge.Cost.TravelTime > pInMax {
			pInMax = inEdge.Cost.TravelTime
		}
	}
	for _, outID := range ch.firstOut[nodeID] {
		outEdge := ch.outEdges[outID]
		if contracted[outEdge.ToNodeID] {
			continue
		}
		if outEdge.Cost.TravelTime > pOutMax {
			pOutMax = outEdge.Cost.TravelTime
		}
	}
	pMax := pInMax + pOutMax

	for _, inID := range ch.firstIn[nodeID] {
		inEdge := ch.inEdges[inID]
		fromNodeID := inEdge.ToNodeID
		if fromNodeID == nodeID {
			logrus.Warnf("skipping loop edge at node %d", nodeID)
			continue
		}
		if contracted[fromNodeID] {
			continue
		}
		degree++

		for _, outID := range ch.firstOut[nodeID] {
			outEdge := ch.outEdges[outID]
			toNodeID := outEdge.ToNodeID
			if contracted[toNodeID] || toNodeID == fromNodeID {
				continue
			}

			throughWeight := inEdge.Cost.TravelTime + outEdge.Cost.TravelTime

			witnessWeight := ch.dijkstraWitnessSearch(fromNodeID, toNodeID, nodeID,
				throughWeight, maxVisitedNodes, pMax, contracted)
			if witnessWeight <= throughWeight {
				continue
			}

			shortcutCount++
			originalEdgesCount += ch.metadata.inEdgeOrigCount[nodeID] + ch.metadata.outEdgeOrigCount[nodeID]
			if handler != nil {
				handler(fromNodeID, toNodeID, nodeID,
					throughWeight, inEdge.Cost.Distance+outEdge.Cost.Distance)
			}
		}
	}
	return degree, shortcutCount, originalEdgesCount
}

// addOrUpdateShortcut keeps a single arc per (from, to) pair: an
// existing shortcut gets its weight lowered in place, otherwise a new
// shortcut edge lands in both directions.
func (ch *ContractedGraph) addOrUpdateShortcut(fromNodeID, toNodeID, viaNodeID int32, weight, dist float64) {
	exists := false
	for _, outID := range ch.firstOut[fromNodeID] {
		edge := &ch.outEdges[outID]
		if edge.ToNodeID != toNodeID || !edge.IsShortcut {
			continue
		}
		exists = true
		if weight < edge.Cost.TravelTime {
			edge.Cost.TravelTime = weight
			edge.Cost.Distance = dist
			edge.ViaNodeID = viaNodeID
		}
	}

	for _, inID := range ch.firstIn[toNodeID] {
		edge := &ch.inEdges[inID]
		if edge.ToNodeID != fromNodeID || !edge.IsShortcut {
			continue
		}
		exists = true
		if weight < edge.Cost.TravelTime {
			edge.Cost.TravelTime = weight
			edge.Cost.Distance = dist
			edge.ViaNodeID = viaNodeID
		}
	}

	if !exists {
		ch.addShortcut(fromNodeID, toNodeID, viaNodeID, weight, dist)
		ch.metadata.shortcutsCount++
	}
}

func newShortcutEdge(edgeID, from, to, via int32, weight, dist float64) datastructure.Edge {
	edge := datastructure.NewEdge(edgeID, from, to, datastructure.NewEdgeCost(weight, dist), datastructure.RoadClassUnclassified)
	edge.IsShortcut = true
	edge.ViaNodeID = via
	return edge
}

func (ch *ContractedGraph) addShortcut(fromNodeID, toNodeID, viaNodeID int32, weight, dist float64) {
	outID := int32(len(ch.outEdges))
	ch.outEdges = append(ch.outEdges, newShortcutEdge(outID, fromNodeID, toNodeID, viaNodeID, weight, dist))
	ch.firstOut[fromNodeID] = append(ch.firstOut[fromNodeID], outID)
	ch.metadata.degrees[fromNodeID]++

	inID := int32(len(ch.inEdges))
	ch.inEdges = append(ch.inEdges, flipEdge(newShortcutEdge(inID, fromNodeID, toNodeID, viaNodeID, weight, dist)))
	ch.firstIn[toNodeID] = append(ch.firstIn[toNodeID], inID)
	ch.metadata.degrees[toNodeID]++
}
