package hublabel

import (
	"math"
	"sort"
	"time"

	"github.com/pandu-maps/pandu/pkg/datastructure"
	"github.com/pandu-maps/pandu/pkg/routing"
	"github.com/pandu-maps/pandu/pkg/server"
	"github.com/pandu-maps/pandu/pkg/util"
	"github.com/sirupsen/logrus"
)

// LabelEntry is one hub with its free-flow travel time to or from the
// label's owner, depending on the direction of the list it sits in.
type LabelEntry struct {
	Hub  int32
	Dist float64
}

// HubLabels is a two-hop cover of the graph: every shortest path s->t
// has at least one hub on it that appears in both s's forward list and
// t's backward list. Lists are sorted by hub id once building is done.
type HubLabels struct {
	fwd  [][]LabelEntry
	bwd  [][]LabelEntry
	rank []int32
}

// BuildHubLabels runs pruned labeling over the nodes in descending
// degree order. Labels grow only where the hubs processed so far do
// not already cover the settled distance, which is what keeps the
// lists short.
func BuildHubLabels(g routing.RoutingGraph, importanceOrder []int32) (*HubLabels, error) {
	n := g.NumNodes()
	if n == 0 {
		return nil, server.NewErrorf(server.ErrGraphConstruction, "cannot label an empty graph")
	}
	if importanceOrder == nil {
		importanceOrder = DegreeImportanceOrder(g)
	}
	if len(importanceOrder) != n {
		return nil, server.NewErrorf(server.ErrGraphConstruction,
			"importance order covers %d of %d nodes", len(importanceOrder), n)
	}

	start := time.Now()
	hl := &HubLabels{
		fwd:  make([][]LabelEntry, n),
		bwd:  make([][]LabelEntry, n),
		rank: make([]int32, n),
	}
	for pos, nodeID := range importanceOrder {
		hl.rank[nodeID] = int32(pos)
	}

	for _, hub := range importanceOrder {
		hl.prunedSweep(g, hub, false)
		hl.prunedSweep(g, hub, true)
	}

	labelCount := 0
	for v := 0; v < n; v++ {
		sort.Slice(hl.fwd[v], func(i, j int) bool { return hl.fwd[v][i].Hub < hl.fwd[v][j].Hub })
		sort.Slice(hl.bwd[v], func(i, j int) bool { return hl.bwd[v][i].Hub < hl.bwd[v][j].Hub })
		labelCount += len(hl.fwd[v]) + len(hl.bwd[v])
	}

	logrus.Infof("built hub labels for %d nodes, %d entries (avg %.1f per node) in %v",
		n, labelCount, float64(labelCount)/float64(n)/2.0, time.Since(start))
	return hl, nil
}

// DegreeImportanceOrder ranks nodes by in-degree plus out-degree,
// densest junctions first. Ties break toward the lower node id so the
// order is deterministic.
func DegreeImportanceOrder(g routing.RoutingGraph) []int32 {
	order := make([]int32, g.NumNodes())
	for i := range order {
		order[i] = int32(i)
	}
	degree := func(v int32) int {
		return len(g.OutgoingEdges(v)) + len(g.IncomingEdges(v))
	}
	return util.QuickSortG(order, func(a, b int32) int {
		da, db := degree(a), degree(b)
		if da != db {
			return db - da
		}
		return int(a - b)
	})
}

// prunedSweep runs one Dijkstra from the hub and records the hub in
// the label of every settled node the existing labels do not already
// cover. reverse sweeps incoming edges and fills forward labels, since
// reaching the hub backwards means the hub is reachable forwards.
func (hl *HubLabels) prunedSweep(g routing.RoutingGraph, hub int32, reverse bool) {
	dist := make(map[int32]float64)
	settled := make(map[int32]struct{})

	pq := datastructure.NewMinHeap[int32]()
	dist[hub] = 0.0
	pq.Insert(datastructure.NewPriorityQueueNode(0.0, hub))

	for !pq.IsEmpty() {
		current, err := pq.ExtractMin()
		if err != nil {
			break
		}
		u := current.Item
		if current.Rank > dist[u]+1e-9 {
			continue
		}
		settled[u] = struct{}{}

		var covered float64
		if reverse {
			covered = hl.queryByRank(u, hub)
		} else {
			covered = hl.queryByRank(hub, u)
		}
		if covered <= dist[u]+1e-9 {
			continue
		}

		if reverse {
			hl.fwd[u] = append(hl.fwd[u], LabelEntry{Hub: hub, Dist: dist[u]})
		} else {
			hl.bwd[u] = append(hl.bwd[u], LabelEntry{Hub: hub, Dist: dist[u]})
		}

		neighbors := g.OutgoingEdges(u)
		if reverse {
			neighbors = g.IncomingEdges(u)
		}
		for _, edgeID := range neighbors {
			edge := g.GetEdge(edgeID)
			next := edge.ToNodeID
			if reverse {
				next = edge.FromNodeID
			}
			if _, done := settled[next]; done {
				continue
			}
			newCost := dist[u] + edge.Cost.TravelTime
			oldCost, seen := dist[next]
			if seen && newCost >= oldCost {
				continue
			}
			dist[next] = newCost
			if pq.Contains(next) {
				pq.DecreaseKey(datastructure.NewPriorityQueueNode(newCost, next))
			} else {
				pq.Insert(datastructure.NewPriorityQueueNode(newCost, next))
			}
		}
	}
}

// queryByRank merge-joins the two lists in their build order, which is
// ascending importance rank until the final sort happens.
func (hl *HubLabels) queryByRank(s, t int32) float64 {
	best := math.Inf(1)
	fwd, bwd := hl.fwd[s], hl.bwd[t]
	i, j := 0, 0
	for i < len(fwd) && j < len(bwd) {
		ri, rj := hl.rank[fwd[i].Hub], hl.rank[bwd[j].Hub]
		switch {
		case ri == rj:
			if d := fwd[i].Dist + bwd[j].Dist; d < best {
				best = d
			}
			i++
			j++
		case ri < rj:
			i++
		default:
			j++
		}
	}
	return best
}

// Query merge-joins s's forward hubs with t's backward hubs and
// returns the cheapest meeting. ok is false when the lists share no
// hub, meaning t is unreachable from s.
func (hl *HubLabels) Query(s, t int32) (float64, bool) {
	best := math.Inf(1)
	fwd, bwd := hl.fwd[s], hl.bwd[t]
	i, j := 0, 0
	for i < len(fwd) && j < len(bwd) {
		switch {
		case fwd[i].Hub == bwd[j].Hub:
			if d := fwd[i].Dist + bwd[j].Dist; d < best {
				best = d
			}
			i++
			j++
		case fwd[i].Hub < bwd[j].Hub:
			i++
		default:
			j++
		}
	}
	if math.IsInf(best, 1) {
		return 0, false
	}
	return best, true
}

func (hl *HubLabels) NumNodes() int {
	return len(hl.fwd)
}

// ForwardLabels exposes one node's forward list, mainly for the store
// and for inspection in tests.
func (hl *HubLabels) ForwardLabels(v int32) []LabelEntry {
	return hl.fwd[v]
}

func (hl *HubLabels) BackwardLabels(v int32) []LabelEntry {
	return hl.bwd[v]
}
