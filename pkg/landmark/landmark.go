package landmark

import (
	"math"
	"runtime"
	"time"

	"github.com/pandu-maps/pandu/pkg/concurrent"
	"github.com/pandu-maps/pandu/pkg/routing"
	"github.com/pandu-maps/pandu/pkg/server"
	"github.com/sirupsen/logrus"
)

const DefaultNumLandmarks = 16

// Landmarks holds the precomputed distance tables ALT queries consume.
// distFrom[i][v] is the free-flow travel time landmark i -> v, distTo
// the reverse direction. Both directions are kept so the triangle
// bound works on one-way streets.
type Landmarks struct {
	nodeIDs  []int32
	distFrom [][]float64
	distTo   [][]float64
}

// BuildLandmarks picks landmarks by farthest-point selection on graph
// distances and fills both distance tables, one landmark per worker.
func BuildLandmarks(g routing.RoutingGraph, numLandmarks int) (*Landmarks, error) {
	if g.NumNodes() == 0 {
		return nil, server.NewErrorf(server.ErrGraphConstruction, "cannot pick landmarks on an empty graph")
	}
	if numLandmarks <= 0 {
		numLandmarks = DefaultNumLandmarks
	}
	if numLandmarks > g.NumNodes() {
		numLandmarks = g.NumNodes()
	}

	start := time.Now()
	nodeIDs := selectFarthestPoints(g, numLandmarks)

	lm := &Landmarks{
		nodeIDs:  nodeIDs,
		distFrom: make([][]float64, len(nodeIDs)),
		distTo:   make([][]float64, len(nodeIDs)),
	}

	workers := runtime.NumCPU()
	if workers > len(nodeIDs) {
		workers = len(nodeIDs)
	}

	type tableResult struct {
		index    int
		distFrom []float64
		distTo   []float64
	}

	pool := concurrent.NewWorkerPool[concurrent.LandmarkJob, tableResult](workers, len(nodeIDs))
	for i, nodeID := range nodeIDs {
		pool.AddJob(concurrent.NewLandmarkJob(i, nodeID))
	}
	pool.Close()
	pool.Start(func(job concurrent.LandmarkJob) tableResult {
		opts := routing.PreprocessingSearchOptions()
		return tableResult{
			index:    job.LandmarkIndex,
			distFrom: routing.SingleSourceDijkstra(g, job.LandmarkNode, false, opts),
			distTo:   routing.SingleSourceDijkstra(g, job.LandmarkNode, true, opts),
		}
	})
	pool.Wait()

	for res := range pool.CollectResults() {
		lm.distFrom[res.index] = res.distFrom
		lm.distTo[res.index] = res.distTo
	}

	logrus.Infof("built %d landmark tables for %d nodes in %v", len(nodeIDs), g.NumNodes(), time.Since(start))
	return lm, nil
}

// selectFarthestPoints seeds from node 0 and then repeatedly picks the
// node whose minimum graph distance to the already chosen landmarks is
// largest. Unreachable nodes never win, so every landmark lands in the
// component of the seed.
func selectFarthestPoints(g routing.RoutingGraph, numLandmarks int) []int32 {
	opts := routing.PreprocessingSearchOptions()

	minDist := routing.SingleSourceDijkstra(g, 0, false, opts)
	first := farthestFinite(minDist)
	if first < 0 {
		first = 0
	}
	chosen := []int32{first}

	minDist = routing.SingleSourceDijkstra(g, first, false, opts)
	for len(chosen) < numLandmarks {
		next := farthestFinite(minDist)
		if next < 0 || minDist[next] == 0 {
			break
		}
		chosen = append(chosen, next)

		nextDist := routing.SingleSourceDijkstra(g, next, false, opts)
		for v := range minDist {
			if nextDist[v] < minDist[v] {
				minDist[v] = nextDist[v]
			}
		}
	}
	return chosen
}

func farthestFinite(dist []float64) int32 {
	best := int32(-1)
	bestDist := -1.0
	for v, d := range dist {
		if math.IsInf(d, 1) {
			continue
		}
		if d > bestDist {
			bestDist = d
			best = int32(v)
		}
	}
	return best
}

func (lm *Landmarks) Ready() bool {
	return lm != nil && len(lm.nodeIDs) > 0
}

func (lm *Landmarks) NodeIDs() []int32 {
	return lm.nodeIDs
}

// LowerBound is the ALT triangle bound: over every landmark L, both
// d(L,t)-d(L,v) and d(v,L)-d(t,L) never exceed the true distance
// v -> t. Landmarks that cannot see either endpoint contribute
// nothing.
func (lm *Landmarks) LowerBound(v, target int32) float64 {
	bound := 0.0
	for i := range lm.nodeIDs {
		fromL := lm.distFrom[i]
		toL := lm.distTo[i]

		if !math.IsInf(fromL[target], 1) && !math.IsInf(fromL[v], 1) {
			if d := fromL[target] - fromL[v]; d > bound {
				bound = d
			}
		}
		if !math.IsInf(toL[v], 1) && !math.IsInf(toL[target], 1) {
			if d := toL[v] - toL[target]; d > bound {
				bound = d
			}
		}
	}
	return bound
}
