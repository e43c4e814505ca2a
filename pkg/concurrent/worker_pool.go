package concurrent

import (
	"sync"

	"github.com/pandu-maps/pandu/pkg/datastructure"
)

// LandmarkJob identifies one landmark whose forward/backward distance
// tables a worker should build.
type LandmarkJob struct {
	LandmarkIndex int
	LandmarkNode  int32
}

func NewLandmarkJob(index int, node int32) LandmarkJob {
	return LandmarkJob{
		LandmarkIndex: index,
		LandmarkNode:  node,
	}
}

// BorderSearchJob identifies one border node whose in-cell many-to-one
// search a worker should run when building the partition overlay.
type BorderSearchJob struct {
	PartitionID int32
	BorderNode  int32
}

func NewBorderSearchJob(partitionID, borderNode int32) BorderSearchJob {
	return BorderSearchJob{
		PartitionID: partitionID,
		BorderNode:  borderNode,
	}
}

// MatrixRowJob identifies one source row of a distance matrix query.
type MatrixRowJob struct {
	Row        int
	SourceNode int32
}

func NewMatrixRowJob(row int, source int32) MatrixRowJob {
	return MatrixRowJob{
		Row:        row,
		SourceNode: source,
	}
}

// CellEncodeJob carries one H3 cell's street records to a codec worker
// when building the key-value street index.
type CellEncodeJob struct {
	Key   string
	Edges []datastructure.KVEdge
}

func NewCellEncodeJob(key string, edges []datastructure.KVEdge) CellEncodeJob {
	return CellEncodeJob{
		Key:   key,
		Edges: edges,
	}
}

// TransitionJob names one pair of trace candidates, by position in
// their respective candidate slices, whose transition a worker scores
// during trace matching.
type TransitionJob struct {
	PrevIndex int
	CurrIndex int
}

func NewTransitionJob(prev, curr int) TransitionJob {
	return TransitionJob{
		PrevIndex: prev,
		CurrIndex: curr,
	}
}

type JobI interface {
	int32 | []int32 | LandmarkJob | BorderSearchJob | MatrixRowJob | CellEncodeJob | TransitionJob
}

type Job[T JobI] struct {
	ID      int
	JobItem T
}

type JobFunc[T JobI, G any] func(job T) G

// WorkerPool fans a batch of independent jobs over numWorkers
// goroutines. Usage: AddJob all items, Close, Start, Wait, then drain
// CollectResults.
type WorkerPool[T JobI, G any] struct {
	numWorkers int
	jobs       chan T
	results    chan G
	wg         sync.WaitGroup
}

func NewWorkerPool[T JobI, G any](numWorkers, capacity int) *WorkerPool[T, G] {
	return &WorkerPool[T, G]{
		numWorkers: numWorkers,
		jobs:       make(chan T, capacity),
		results:    make(chan G, capacity),
	}
}

func (wp *WorkerPool[T, G]) AddJob(job T) {
	wp.jobs <- job
}

// Close marks the job queue complete. Call before Start.
func (wp *WorkerPool[T, G]) Close() {
	close(wp.jobs)
}

func (wp *WorkerPool[T, G]) Start(f JobFunc[T, G]) {
	for i := 0; i < wp.numWorkers; i++ {
		wp.wg.Add(1)
		go func() {
			defer wp.wg.Done()
			for job := range wp.jobs {
				wp.results <- f(job)
			}
		}()
	}
}

// Wait blocks until every worker drains the queue, then closes the
// results channel so CollectResults ranges terminate.
func (wp *WorkerPool[T, G]) Wait() {
	wp.wg.Wait()
	close(wp.results)
}

func (wp *WorkerPool[T, G]) CollectResults() chan G {
	return wp.results
}
