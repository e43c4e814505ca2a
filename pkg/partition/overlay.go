package partition

import (
	"runtime"
	"time"

	"github.com/pandu-maps/pandu/pkg/concurrent"
	"github.com/pandu-maps/pandu/pkg/datastructure"
	"github.com/pandu-maps/pandu/pkg/routing"
	"github.com/sirupsen/logrus"
)

// OverlayGraph stores, for every ordered pair of border nodes sharing a
// cell, the exact shortest free-flow travel time restricted to that
// cell's internal edges. Read-only once built.
type OverlayGraph struct {
	edges map[int64]float64
}

func pairKey(from, to int32) int64 {
	return int64(from)<<32 | int64(uint32(to))
}

// Distance returns the in-cell distance between two border nodes of the
// same cell. ok is false when the pair shares no cell or the target is
// unreachable inside it.
func (o *OverlayGraph) Distance(from, to int32) (float64, bool) {
	dist, ok := o.edges[pairKey(from, to)]
	return dist, ok
}

func (o *OverlayGraph) NumEdges() int { return len(o.edges) }

type borderResult struct {
	source int32
	dist   map[int32]float64
}

// buildOverlay runs one many-to-one Dijkstra per border node, edges
// filtered to the node's own cell, one search per worker. Settling
// every sibling border node ends a search early.
func buildOverlay(g *datastructure.Graph, p *Partition) *OverlayGraph {
	start := time.Now()
	jobs := 0
	for _, borders := range p.borderNodes {
		if len(borders) >= 2 {
			jobs += len(borders)
		}
	}

	overlay := &OverlayGraph{edges: make(map[int64]float64)}
	if jobs == 0 {
		return overlay
	}

	workers := runtime.NumCPU()
	if workers > jobs {
		workers = jobs
	}

	pool := concurrent.NewWorkerPool[concurrent.BorderSearchJob, borderResult](workers, jobs)
	for pid, borders := range p.borderNodes {
		if len(borders) < 2 {
			continue
		}
		for _, borderNode := range borders {
			pool.AddJob(concurrent.NewBorderSearchJob(int32(pid), borderNode))
		}
	}
	pool.Close()
	pool.Start(func(job concurrent.BorderSearchJob) borderResult {
		opts := routing.PreprocessingSearchOptions()
		opts.EdgeFilter = func(edge *datastructure.Edge) bool {
			return p.nodePartition[edge.FromNodeID] == job.PartitionID &&
				p.nodePartition[edge.ToNodeID] == job.PartitionID
		}
		targets := p.borderNodes[job.PartitionID]
		return borderResult{
			source: job.BorderNode,
			dist:   routing.ManyToOneDijkstra(g, job.BorderNode, targets, opts),
		}
	})
	pool.Wait()

	for res := range pool.CollectResults() {
		for target, dist := range res.dist {
			overlay.edges[pairKey(res.source, target)] = dist
		}
	}

	logrus.Infof("built partition overlay with %d edges from %d border searches in %v",
		len(overlay.edges), jobs, time.Since(start))
	return overlay
}
