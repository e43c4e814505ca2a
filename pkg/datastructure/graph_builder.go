package datastructure

import (
	"math"

	"github.com/pandu-maps/pandu/pkg/server"
	"github.com/pandu-maps/pandu/pkg/util"
)

// GraphBuilder accumulates nodes, edges, and turn restrictions, then
// assembles an immutable Graph. Ids are handed out densely in insertion
// order.
type GraphBuilder struct {
	nodes            []Node
	edges            []Edge
	turnRestrictions []TurnRestriction
	streetNames      util.IDMap
}

func NewGraphBuilder() *GraphBuilder {
	return &GraphBuilder{
		nodes:       make([]Node, 0),
		edges:       make([]Edge, 0),
		streetNames: util.NewIdMap(),
	}
}

func (b *GraphBuilder) AddNode(lat, lon float64) int32 {
	id := int32(len(b.nodes))
	b.nodes = append(b.nodes, NewNode(id, lat, lon))
	return id
}

// AddEdge appends a fully specified directed edge and returns its id.
// The EdgeID field of the argument is overwritten.
func (b *GraphBuilder) AddEdge(edge Edge) int32 {
	edge.EdgeID = int32(len(b.edges))
	b.edges = append(b.edges, edge)
	return edge.EdgeID
}

// AddRoad adds a road segment between two already added nodes, deriving
// distance from the node coordinates and travel time from the road
// class default speed. The reverse edge id is -1 for one-way roads.
func (b *GraphBuilder) AddRoad(from, to int32, roadClass RoadClass, name string, bidirectional bool) (int32, int32) {
	fromNode := b.nodes[from]
	toNode := b.nodes[to]
	distMeters := HaversineDistance(fromNode.Lat, fromNode.Lon, toNode.Lat, toNode.Lon) * 1000.0
	travelTime := distMeters / (roadClass.DefaultSpeedKmh() / 3.6)

	nameID := -1
	if name != "" {
		nameID = b.streetNames.GetID(name)
	}

	forward := NewEdge(0, from, to, NewEdgeCost(travelTime, distMeters), roadClass)
	forward.StreetName = nameID
	forward.OneWay = !bidirectional
	forwardID := b.AddEdge(forward)

	backwardID := int32(-1)
	if bidirectional {
		backward := NewEdge(0, to, from, NewEdgeCost(travelTime, distMeters), roadClass)
		backward.StreetName = nameID
		backwardID = b.AddEdge(backward)
	}
	return forwardID, backwardID
}

// InternStreetName exposes the builder's name interning for callers that
// construct edges themselves.
func (b *GraphBuilder) InternStreetName(name string) int {
	return b.streetNames.GetID(name)
}

func (b *GraphBuilder) AddTurnRestriction(tr TurnRestriction) {
	b.turnRestrictions = append(b.turnRestrictions, tr)
}

func (b *GraphBuilder) NumNodes() int {
	return len(b.nodes)
}

// NodeAt returns the node added under the given id. The id must come
// from a prior AddNode call.
func (b *GraphBuilder) NodeAt(id int32) Node {
	return b.nodes[id]
}

// Build validates the accumulated data and assembles the adjacency
// lists, bounds, and speed metadata. Every edge endpoint and every turn
// restriction reference must name an existing node/edge.
func (b *GraphBuilder) Build() (*Graph, error) {
	numNodes := int32(len(b.nodes))
	for i := range b.edges {
		e := &b.edges[i]
		if e.FromNodeID < 0 || e.FromNodeID >= numNodes {
			return nil, server.NewErrorf(server.ErrGraphConstruction,
				"edge %d references missing source node %d", e.EdgeID, e.FromNodeID)
		}
		if e.ToNodeID < 0 || e.ToNodeID >= numNodes {
			return nil, server.NewErrorf(server.ErrGraphConstruction,
				"edge %d references missing target node %d", e.EdgeID, e.ToNodeID)
		}
	}

	numEdges := int32(len(b.edges))
	restrictions := make(map[int32][]TurnRestriction)
	for _, tr := range b.turnRestrictions {
		if tr.ViaNodeID < 0 || tr.ViaNodeID >= numNodes {
			return nil, server.NewErrorf(server.ErrGraphConstruction,
				"turn restriction references missing via node %d", tr.ViaNodeID)
		}
		if tr.FromEdgeID < 0 || tr.FromEdgeID >= numEdges || tr.ToEdgeID < 0 || tr.ToEdgeID >= numEdges {
			return nil, server.NewErrorf(server.ErrGraphConstruction,
				"turn restriction at node %d references missing edge", tr.ViaNodeID)
		}
		restrictions[tr.ViaNodeID] = append(restrictions[tr.ViaNodeID], tr)
	}

	firstOut := make([][]int32, numNodes)
	firstIn := make([][]int32, numNodes)
	for i := range b.edges {
		e := &b.edges[i]
		firstOut[e.FromNodeID] = append(firstOut[e.FromNodeID], e.EdgeID)
		firstIn[e.ToNodeID] = append(firstIn[e.ToNodeID], e.EdgeID)
	}

	bounds := Bounds{
		MinLat: math.MaxFloat64,
		MinLon: math.MaxFloat64,
		MaxLat: -math.MaxFloat64,
		MaxLon: -math.MaxFloat64,
	}
	for i := range b.nodes {
		n := &b.nodes[i]
		bounds.MinLat = math.Min(bounds.MinLat, n.Lat)
		bounds.MinLon = math.Min(bounds.MinLon, n.Lon)
		bounds.MaxLat = math.Max(bounds.MaxLat, n.Lat)
		bounds.MaxLon = math.Max(bounds.MaxLon, n.Lon)
	}

	maxSpeed := 0.0
	for i := range b.edges {
		maxSpeed = math.Max(maxSpeed, b.edges[i].SpeedKmh())
	}

	return &Graph{
		nodes:            b.nodes,
		edges:            b.edges,
		firstOut:         firstOut,
		firstIn:          firstIn,
		turnRestrictions: restrictions,
		streetNames:      b.streetNames.Strings(),
		bounds:           bounds,
		maxSpeedKmh:      maxSpeed,
	}, nil
}

// CreateGridGraph builds a rows x cols lattice with bidirectional
// residential edges between horizontal and vertical neighbors, spacing
// degrees apart. Node id = row*cols + col. Useful as a test fixture with
// predictable shortest paths.
func CreateGridGraph(rows, cols int, spacing float64) (*Graph, error) {
	if rows <= 0 || cols <= 0 {
		return nil, server.NewErrorf(server.ErrGraphConstruction, "grid needs positive dimensions, got %dx%d", rows, cols)
	}
	builder := NewGraphBuilder()
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			builder.AddNode(float64(r)*spacing, float64(c)*spacing)
		}
	}
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			id := int32(r*cols + c)
			if c+1 < cols {
				builder.AddRoad(id, id+1, RoadClassResidential, "", true)
			}
			if r+1 < rows {
				builder.AddRoad(id, id+int32(cols), RoadClassResidential, "", true)
			}
		}
	}
	return builder.Build()
}
