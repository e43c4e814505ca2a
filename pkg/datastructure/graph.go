package datastructure

import (
	"math"

	"github.com/pandu-maps/pandu/pkg/server"
)

// NearestNodeIndex is the point-location capability a spatial index
// plugs into the graph. Any correct implementation works.
type NearestNodeIndex interface {
	NearestNode(lat, lon float64) (int32, bool)
}

// Graph owns dense node/edge arrays plus per-node outgoing and incoming
// edge id lists. It is immutable once built, so concurrent queries read
// it without locking. Node and edge ids index the dense arrays directly.
type Graph struct {
	nodes    []Node
	edges    []Edge
	firstOut [][]int32
	firstIn  [][]int32

	turnRestrictions map[int32][]TurnRestriction

	streetNames []string
	bounds      Bounds
	maxSpeedKmh float64

	nearest NearestNodeIndex
}

func (g *Graph) NumNodes() int {
	return len(g.nodes)
}

func (g *Graph) NumEdges() int {
	return len(g.edges)
}

func (g *Graph) Bounds() Bounds {
	return g.bounds
}

// MaxSpeedKmh is the fastest edge speed in the graph, useful as a
// heuristic speed floor.
func (g *Graph) MaxSpeedKmh() float64 {
	return g.maxSpeedKmh
}

// Nodes exposes the underlying node array. Callers must not mutate it.
func (g *Graph) Nodes() []Node {
	return g.nodes
}

// Edges exposes the underlying edge array. Callers must not mutate it.
func (g *Graph) Edges() []Edge {
	return g.edges
}

// GetNode is the unchecked hot-path accessor used inside search loops.
func (g *Graph) GetNode(nodeID int32) Node {
	return g.nodes[nodeID]
}

// GetEdge is the unchecked hot-path accessor used inside search loops.
func (g *Graph) GetEdge(edgeID int32) *Edge {
	return &g.edges[edgeID]
}

func (g *Graph) NodeByID(nodeID int32) (Node, error) {
	if nodeID < 0 || int(nodeID) >= len(g.nodes) {
		return Node{}, server.NewErrorf(server.ErrNodeNotFound, "node %d not in graph (have %d nodes)", nodeID, len(g.nodes))
	}
	return g.nodes[nodeID], nil
}

func (g *Graph) EdgeByID(edgeID int32) (*Edge, error) {
	if edgeID < 0 || int(edgeID) >= len(g.edges) {
		return nil, server.NewErrorf(server.ErrNotFound, "edge %d not in graph (have %d edges)", edgeID, len(g.edges))
	}
	return &g.edges[edgeID], nil
}

func (g *Graph) OutgoingEdges(nodeID int32) []int32 {
	return g.firstOut[nodeID]
}

func (g *Graph) IncomingEdges(nodeID int32) []int32 {
	return g.firstIn[nodeID]
}

func (g *Graph) StreetName(id int) string {
	if id < 0 || id >= len(g.streetNames) {
		return ""
	}
	return g.streetNames[id]
}

// StreetNames exposes the interned name table. Callers must not mutate
// it.
func (g *Graph) StreetNames() []string {
	return g.streetNames
}

func (g *Graph) TurnRestrictionsAt(viaNode int32) []TurnRestriction {
	return g.turnRestrictions[viaNode]
}

// IsTurnAllowed checks the maneuver fromEdge -> viaNode -> toEdge
// against restrictions stored at the via node. NoTurn forbids the exact
// pair; OnlyTurn from an edge forbids every other continuation.
// Conditional restrictions carry schedule data outside this core and do
// not constrain free-flow queries.
func (g *Graph) IsTurnAllowed(fromEdgeID, viaNode, toEdgeID int32) bool {
	restrictions, ok := g.turnRestrictions[viaNode]
	if !ok {
		return true
	}
	for _, r := range restrictions {
		switch r.Type {
		case NoTurn:
			if r.FromEdgeID == fromEdgeID && r.ToEdgeID == toEdgeID {
				return false
			}
		case OnlyTurn:
			if r.FromEdgeID == fromEdgeID && r.ToEdgeID != toEdgeID {
				return false
			}
		}
	}
	return true
}

// AttachNearestIndex wires a spatial index into the nearest-node lookup.
// Call it during startup wiring, before the graph starts serving.
func (g *Graph) AttachNearestIndex(idx NearestNodeIndex) {
	g.nearest = idx
}

// NearestNode returns the node closest to (lat, lon), through the
// attached spatial index when present, otherwise by linear scan.
func (g *Graph) NearestNode(lat, lon float64) (int32, error) {
	if math.IsNaN(lat) || math.IsNaN(lon) || lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return -1, server.NewErrorf(server.ErrInvalidCoordinates, "coordinate (%f, %f) out of range", lat, lon)
	}
	if len(g.nodes) == 0 {
		return -1, server.NewErrorf(server.ErrNodeNotFound, "graph has no nodes")
	}
	if g.nearest != nil {
		if id, ok := g.nearest.NearestNode(lat, lon); ok {
			return id, nil
		}
	}

	best := int32(-1)
	bestDist := math.MaxFloat64
	for i := range g.nodes {
		dist := HaversineDistance(lat, lon, g.nodes[i].Lat, g.nodes[i].Lon)
		if dist < bestDist {
			bestDist = dist
			best = int32(i)
		}
	}
	return best, nil
}

const earthRadiusKm = 6371.0

// HaversineDistance returns the great-circle distance in kilometers.
func HaversineDistance(latOne, lonOne, latTwo, lonTwo float64) float64 {
	latOne = latOne * math.Pi / 180.0
	lonOne = lonOne * math.Pi / 180.0
	latTwo = latTwo * math.Pi / 180.0
	lonTwo = lonTwo * math.Pi / 180.0

	hav := func(angleRad float64) float64 {
		return (1 - math.Cos(angleRad)) / 2.0
	}
	a := hav(latOne-latTwo) + math.Cos(latOne)*math.Cos(latTwo)*hav(lonOne-lonTwo)
	return earthRadiusKm * 2.0 * math.Asin(math.Sqrt(a))
}
