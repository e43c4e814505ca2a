package contractor

import (
	"github.com/pandu-maps/pandu/pkg/datastructure"
)

type metadata struct {
	meanDegree       float64
	shortcutsCount   int64
	degrees          []int
	inEdgeOrigCount  []int
	outEdgeOrigCount []int
	edgeCount        int
	nodeCount        int
}

// ContractedGraph is the contraction hierarchies artifact: the base
// road graph augmented with shortcut edges plus a contraction order.
// It is derived from a Graph and never mutates it. Incoming edges are
// stored flipped (ToNodeID holds the tail) so the backward search can
// treat both directions with the same loop.
type ContractedGraph struct {
	metadata metadata
	ready    bool

	firstOut [][]int32
	firstIn  [][]int32
	outEdges []datastructure.Edge
	inEdges  []datastructure.Edge
	nodes    []datastructure.Node
	orderPos []int64

	scc                []int32
	sccCondensationAdj [][]int32

	streetNames []string
}

var (
	maxPollFactorHeuristic   = 5.0
	maxPollFactorContraction = 200.0
)

func flipEdge(edge datastructure.Edge) datastructure.Edge {
	edge.FromNodeID, edge.ToNodeID = edge.ToNodeID, edge.FromNodeID
	return edge
}

// NewContractedGraph ingests the base graph. Parallel edges between
// the same node pair collapse to the first seen, matching how the
// hierarchy treats a node pair as a single arc.
func NewContractedGraph(g *datastructure.Graph) *ContractedGraph {
	n := g.NumNodes()
	ch := &ContractedGraph{
		firstOut:    make([][]int32, n),
		firstIn:     make([][]int32, n),
		outEdges:    make([]datastructure.Edge, 0, g.NumEdges()),
		inEdges:     make([]datastructure.Edge, 0, g.NumEdges()),
		nodes:       make([]datastructure.Node, n),
		orderPos:    make([]int64, n),
		streetNames: g.StreetNames(),
	}
	copy(ch.nodes, g.Nodes())

	ch.metadata.degrees = make([]int, n)
	ch.metadata.inEdgeOrigCount = make([]int, n)
	ch.metadata.outEdgeOrigCount = make([]int, n)

	seen := make(map[int64]struct{}, g.NumEdges())
	for _, edge := range g.Edges() {
		pairKey := int64(edge.FromNodeID)<<32 | int64(uint32(edge.ToNodeID))
		if _, dup := seen[pairKey]; dup {
			continue
		}
		seen[pairKey] = struct{}{}

		outID := int32(len(ch.outEdges))
		outEdge := edge
		outEdge.EdgeID = outID
		ch.outEdges = append(ch.outEdges, outEdge)
		ch.firstOut[edge.FromNodeID] = append(ch.firstOut[edge.FromNodeID], outID)

		inID := int32(len(ch.inEdges))
		inEdge := flipEdge(edge)
		inEdge.EdgeID = inID
		ch.inEdges = append(ch.inEdges, inEdge)
		ch.firstIn[edge.ToNodeID] = append(ch.firstIn[edge.ToNodeID], inID)

		ch.metadata.degrees[edge.FromNodeID]++
		ch.metadata.outEdgeOrigCount[edge.FromNodeID]++
		ch.metadata.inEdgeOrigCount[edge.ToNodeID]++
	}

	ch.metadata.edgeCount = len(ch.outEdges)
	ch.metadata.nodeCount = n
	if n > 0 {
		ch.metadata.meanDegree = float64(len(ch.outEdges)) / float64(n)
	}
	return ch
}

func (ch *ContractedGraph) IsReady() bool { return ch.ready }

func (ch *ContractedGraph) NumNodes() int { return len(ch.nodes) }

func (ch *ContractedGraph) NumEdges() int { return len(ch.outEdges) }

func (ch *ContractedGraph) ShortcutCount() int64 { return ch.metadata.shortcutsCount }

func (ch *ContractedGraph) GetNode(nodeID int32) datastructure.Node { return ch.nodes[nodeID] }

func (ch *ContractedGraph) OrderPos(nodeID int32) int64 { return ch.orderPos[nodeID] }

func (ch *ContractedGraph) FirstOutEdges(nodeID int32) []int32 { return ch.firstOut[nodeID] }

func (ch *ContractedGraph) FirstInEdges(nodeID int32) []int32 { return ch.firstIn[nodeID] }

func (ch *ContractedGraph) OutEdge(edgeID int32) datastructure.Edge { return ch.outEdges[edgeID] }

func (ch *ContractedGraph) InEdge(edgeID int32) datastructure.Edge { return ch.inEdges[edgeID] }

func (ch *ContractedGraph) StreetName(id int) string {
	if id < 0 || id >= len(ch.streetNames) {
		return ""
	}
	return ch.streetNames[id]
}

// findCheapestOutEdge returns the lightest arc from -> to, which is
// how shortcut unpacking recovers the two halves a shortcut replaced.
func (ch *ContractedGraph) findCheapestOutEdge(from, to int32) (datastructure.Edge, bool) {
	var best datastructure.Edge
	found := false
	for _, outID := range ch.firstOut[from] {
		edge := ch.outEdges[outID]
		if edge.ToNodeID != to {
			continue
		}
		if !found || edge.Cost.TravelTime < best.Cost.TravelTime {
			best = edge
			found = true
		}
	}
	return best, found
}
