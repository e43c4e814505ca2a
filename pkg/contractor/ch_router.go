package contractor

import (
	"math"

	"github.com/pandu-maps/pandu/pkg/datastructure"
	"github.com/pandu-maps/pandu/pkg/server"
)

type cameFromPair struct {
	Edge   datastructure.Edge
	NodeID int32
}

// CHRouter answers point-to-point queries on the contracted graph with
// a bidirectional Dijkstra that only climbs the hierarchy: the forward
// frontier relaxes out-edges toward higher order positions, the
// backward frontier in-edges the same way, and the cheapest meeting
// vertex wins.
type CHRouter struct {
	g  *datastructure.Graph
	ch *ContractedGraph
}

func NewCHRouter(g *datastructure.Graph, ch *ContractedGraph) *CHRouter {
	return &CHRouter{g: g, ch: ch}
}

func (r *CHRouter) Name() string { return "ch" }

func (r *CHRouter) Route(req datastructure.RoutingRequest) (*datastructure.RoutingResponse, error) {
	from, err := r.g.NearestNode(req.Origin.Lat, req.Origin.Lon)
	if err != nil {
		return nil, server.WrapErrorf(err, server.ErrorCodeOf(err), "origin")
	}
	to, err := r.g.NearestNode(req.Destination.Lat, req.Destination.Lon)
	if err != nil {
		return nil, server.WrapErrorf(err, server.ErrorCodeOf(err), "destination")
	}

	coords, edges, eta, dist, err := r.ShortestPath(from, to)
	if err != nil {
		return nil, err
	}

	segments := make([]datastructure.RouteSegment, 0, len(edges))
	for i := range edges {
		edge := &edges[i]
		segments = append(segments, datastructure.RouteSegment{
			EdgeID:     edge.EdgeID,
			StreetName: r.ch.StreetName(edge.StreetName),
			RoadClass:  edge.RoadClass.String(),
			Distance:   edge.Cost.Distance,
			Duration:   edge.Cost.TravelTime,
		})
	}

	waypoints := make([]datastructure.Coordinate, 0, 2)
	if len(coords) > 0 {
		waypoints = append(waypoints, coords[0], coords[len(coords)-1])
	}

	return &datastructure.RoutingResponse{
		Distance:  dist,
		Duration:  eta,
		Geometry:  coords,
		Segments:  segments,
		Waypoints: waypoints,
	}, nil
}

// ShortestPath runs the bidirectional query between two node indexes
// and unpacks every shortcut on the winning path.
func (r *CHRouter) ShortestPath(from, to int32) ([]datastructure.Coordinate, []datastructure.Edge, float64, float64, error) {
	if !r.ch.IsReady() {
		return nil, nil, 0, 0, server.NewErrorf(server.ErrInternalServerError, "contracted graph is not ready")
	}
	if from == to {
		node := r.ch.GetNode(from)
		return []datastructure.Coordinate{datastructure.NewCoordinate(node.Lat, node.Lon)}, []datastructure.Edge{}, 0, 0, nil
	}
	if !r.ch.sccReachable(from, to) {
		return nil, nil, 0, 0, server.NewErrorf(server.ErrNoRouteFound,
			"no route found between node %d and node %d", from, to)
	}

	forwQ := datastructure.NewMinHeap[int32]()
	backQ := datastructure.NewMinHeap[int32]()

	df := map[int32]float64{from: 0.0}
	db := map[int32]float64{to: 0.0}

	forwQ.Insert(datastructure.NewPriorityQueueNode(0.0, from))
	backQ.Insert(datastructure.NewPriorityQueueNode(0.0, to))

	visitedF := make(map[int32]struct{})
	visitedB := make(map[int32]struct{})

	estimate := math.MaxFloat64
	bestCommonVertex := int32(-1)

	cameFromf := map[int32]cameFromPair{from: {datastructure.Edge{}, -1}}
	cameFromb := map[int32]cameFromPair{to: {datastructure.Edge{}, -1}}

	frontFinished := false
	backFinished := false

	frontier, otherFrontier := forwQ, backQ
	turnF := true
	for {
		if frontier.Size() == 0 {
			frontFinished = true
		}
		if otherFrontier.Size() == 0 {
			backFinished = true
		}
		if frontFinished && backFinished {
			break
		}

		if frontier.Size() == 0 {
			frontier, otherFrontier = otherFrontier, frontier
			turnF = !turnF
			continue
		}

		smallestFront, _ := frontier.GetMin()
		if smallestFront.Rank >= estimate {
			// the cheapest frontier entry cannot beat the best
			// candidate path anymore
			if turnF {
				frontFinished = true
			} else {
				backFinished = true
			}
		} else {
			node, _ := frontier.ExtractMin()
			if turnF {
				r.relaxForward(node, frontier, df, db, visitedF, cameFromf, &estimate, &bestCommonVertex)
				visitedF[node.Item] = struct{}{}
			} else {
				r.relaxBackward(node, frontier, df, db, visitedB, cameFromb, &estimate, &bestCommonVertex)
				visitedB[node.Item] = struct{}{}
			}
		}

		otherFinished := (turnF && backFinished) || (!turnF && frontFinished)
		if !otherFinished {
			frontier, otherFrontier = otherFrontier, frontier
			turnF = !turnF
		}
	}

	if estimate == math.MaxFloat64 || bestCommonVertex == -1 {
		return nil, nil, 0, 0, server.NewErrorf(server.ErrNoRouteFound,
			"no route found between node %d and node %d", from, to)
	}

	coords, edges, eta, dist := r.createPath(bestCommonVertex, cameFromf, cameFromb)
	return coords, edges, eta, dist, nil
}

func (r *CHRouter) relaxForward(node datastructure.PriorityQueueNode[int32], frontier *datastructure.MinHeap[int32],
	df, db map[int32]float64, visitedF map[int32]struct{}, cameFromf map[int32]cameFromPair,
	estimate *float64, bestCommonVertex *int32) {

	for _, arc := range r.ch.FirstOutEdges(node.Item) {
		edge := r.ch.OutEdge(arc)
		toNID := edge.ToNodeID
		if _, ok := visitedF[toNID]; ok {
			continue
		}
		if r.ch.OrderPos(node.Item) >= r.ch.OrderPos(toNID) {
			continue
		}

		newCost := edge.Cost.TravelTime + df[node.Item]
		oldCost, ok := df[toNID]
		if !ok {
			df[toNID] = newCost
			frontier.Insert(datastructure.NewPriorityQueueNode(newCost, toNID))
			cameFromf[toNID] = cameFromPair{edge, node.Item}
		} else if newCost < oldCost {
			df[toNID] = newCost
			frontier.DecreaseKey(datastructure.NewPriorityQueueNode(newCost, toNID))
			cameFromf[toNID] = cameFromPair{edge, node.Item}
		}

		if backCost, meet := db[toNID]; meet {
			if pathDistance := newCost + backCost; pathDistance < *estimate {
				*estimate = pathDistance
				*bestCommonVertex = toNID
			}
		}
	}
}

func (r *CHRouter) relaxBackward(node datastructure.PriorityQueueNode[int32], frontier *datastructure.MinHeap[int32],
	df, db map[int32]float64, visitedB map[int32]struct{}, cameFromb map[int32]cameFromPair,
	estimate *float64, bestCommonVertex *int32) {

	for _, arc := range r.ch.FirstInEdges(node.Item) {
		edge := r.ch.InEdge(arc)
		toNID := edge.ToNodeID
		if _, ok := visitedB[toNID]; ok {
			continue
		}
		if r.ch.OrderPos(node.Item) >= r.ch.OrderPos(toNID) {
			continue
		}

		newCost := edge.Cost.TravelTime + db[node.Item]
		oldCost, ok := db[toNID]
		if !ok {
			db[toNID] = newCost
			frontier.Insert(datastructure.NewPriorityQueueNode(newCost, toNID))
			cameFromb[toNID] = cameFromPair{edge, node.Item}
		} else if newCost < oldCost {
			db[toNID] = newCost
			frontier.DecreaseKey(datastructure.NewPriorityQueueNode(newCost, toNID))
			cameFromb[toNID] = cameFromPair{edge, node.Item}
		}

		if forwCost, meet := df[toNID]; meet {
			if pathDistance := newCost + forwCost; pathDistance < *estimate {
				*estimate = pathDistance
				*bestCommonVertex = toNID
			}
		}
	}
}

// createPath stitches the two search trees together at the meeting
// vertex, expanding shortcuts into the real edges they replaced.
func (r *CHRouter) createPath(commonVertex int32, cameFromf, cameFromb map[int32]cameFromPair) ([]datastructure.Coordinate, []datastructure.Edge, float64, float64) {
	// forward tree: walk common vertex -> source, then reverse into
	// travel order
	var fwdChunks [][]datastructure.Edge
	v := commonVertex
	for {
		pair, ok := cameFromf[v]
		if !ok || pair.NodeID == -1 {
			break
		}
		var chunk []datastructure.Edge
		r.expandEdge(pair.Edge, &chunk)
		fwdChunks = append(fwdChunks, chunk)
		v = pair.NodeID
	}
	source := v

	edges := make([]datastructure.Edge, 0)
	for i := len(fwdChunks) - 1; i >= 0; i-- {
		edges = append(edges, fwdChunks[i]...)
	}

	// backward tree: edges are stored flipped, so unflip before
	// expanding; the walk already runs in travel order
	v = commonVertex
	for {
		pair, ok := cameFromb[v]
		if !ok || pair.NodeID == -1 {
			break
		}
		var chunk []datastructure.Edge
		r.expandEdge(flipEdge(pair.Edge), &chunk)
		edges = append(edges, chunk...)
		v = pair.NodeID
	}

	eta, dist := 0.0, 0.0
	coords := make([]datastructure.Coordinate, 0, len(edges)+1)
	sourceNode := r.ch.GetNode(source)
	coords = append(coords, datastructure.NewCoordinate(sourceNode.Lat, sourceNode.Lon))
	for i := range edges {
		eta += edges[i].Cost.TravelTime
		dist += edges[i].Cost.Distance
		node := r.ch.GetNode(edges[i].ToNodeID)
		coords = append(coords, datastructure.NewCoordinate(node.Lat, node.Lon))
	}

	return coords, edges, eta, dist
}

// expandEdge recursively replaces a shortcut with the two arcs through
// its via node. Recursion bottoms out because every via node sits
// lower in the contraction order than the shortcut's endpoints.
func (r *CHRouter) expandEdge(edge datastructure.Edge, out *[]datastructure.Edge) {
	if !edge.IsShortcut {
		*out = append(*out, edge)
		return
	}

	first, okFirst := r.ch.findCheapestOutEdge(edge.FromNodeID, edge.ViaNodeID)
	second, okSecond := r.ch.findCheapestOutEdge(edge.ViaNodeID, edge.ToNodeID)
	if !okFirst || !okSecond {
		*out = append(*out, edge)
		return
	}
	r.expandEdge(first, out)
	r.expandEdge(second, out)
}
