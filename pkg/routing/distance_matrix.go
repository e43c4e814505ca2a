package routing

import (
	"math"
	"runtime"

	"github.com/pandu-maps/pandu/pkg/concurrent"
	"github.com/pandu-maps/pandu/pkg/datastructure"
	"github.com/pandu-maps/pandu/pkg/server"
)

type matrixRow struct {
	Row  int
	Dist []float64
}

// DistanceMatrix computes travel times from every source to every
// target, one many-to-one Dijkstra per source row fanned out over a
// worker pool. Unreachable pairs come back as +Inf.
func DistanceMatrix(g RoutingGraph, sources, targets []int32, opts SearchOptions) [][]float64 {
	workers := runtime.NumCPU()
	if workers > len(sources) {
		workers = len(sources)
	}
	if workers < 1 {
		workers = 1
	}

	pool := concurrent.NewWorkerPool[concurrent.MatrixRowJob, matrixRow](workers, len(sources))
	for row, source := range sources {
		pool.AddJob(concurrent.NewMatrixRowJob(row, source))
	}
	pool.Close()
	pool.Start(func(job concurrent.MatrixRowJob) matrixRow {
		settledDist := ManyToOneDijkstra(g, job.SourceNode, targets, opts)
		rowDist := make([]float64, len(targets))
		for i, target := range targets {
			if d, ok := settledDist[target]; ok {
				rowDist[i] = d
			} else {
				rowDist[i] = math.Inf(1)
			}
		}
		return matrixRow{Row: job.Row, Dist: rowDist}
	})
	pool.Wait()

	matrix := make([][]float64, len(sources))
	for row := range pool.CollectResults() {
		matrix[row.Row] = row.Dist
	}
	return matrix
}

// DistanceMatrix snaps every point and returns the square travel-time
// matrix between them.
func (e *Engine) DistanceMatrix(points []datastructure.Coordinate, profile datastructure.RoutingProfile, departureTime float64) ([][]float64, error) {
	if len(points) == 0 {
		return nil, server.NewErrorf(server.ErrBadParamInput, "distance matrix needs at least one point")
	}

	nodeIDs := make([]int32, len(points))
	for i, p := range points {
		nodeID, err := e.g.NearestNode(p.Lat, p.Lon)
		if err != nil {
			return nil, server.WrapErrorf(err, server.ErrorCodeOf(err), "point %d", i)
		}
		nodeIDs[i] = nodeID
	}

	opts := DefaultSearchOptions()
	opts.Profile = profile
	opts.DepartureHour = departureHour(departureTime)

	return DistanceMatrix(e.g, nodeIDs, nodeIDs, opts), nil
}
