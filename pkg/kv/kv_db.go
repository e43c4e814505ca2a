package kv

import (
	"context"
	"errors"
	"math"
	"runtime"

	"github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"
	"github.com/uber/h3-go/v4"

	"github.com/pandu-maps/pandu/pkg/concurrent"
	"github.com/pandu-maps/pandu/pkg/datastructure"
	"github.com/pandu-maps/pandu/pkg/server"
)

const (
	// ~170m hexagons, a good fit for urban street density
	indexResolution = 9

	// widest GridDisk ring tried before giving up on a lookup
	maxSearchRing = 10
)

// KVDB indexes street segments by the H3 cell of their midpoint inside
// a badger store. It backs the nearest-street lookups the spatial
// index cannot answer, and survives restarts on disk.
type KVDB struct {
	db *badger.DB
}

func NewKVDB(db *badger.DB) *KVDB {
	return &KVDB{db: db}
}

type encodedCell struct {
	key string
	val []byte
	err error
}

// BuildH3IndexedEdges groups every directed street segment of the
// graph by H3 cell and persists one compressed record batch per cell.
// Both directions of a two-way road are indexed, so lookups hand the
// trace matcher its directed candidates as-is.
func (k *KVDB) BuildH3IndexedEdges(ctx context.Context, g *datastructure.Graph) error {
	logrus.Info("indexing street segments by h3 cell into the key-value store...")

	cells := make(map[string][]datastructure.KVEdge)
	allEdges := g.Edges()
	for i := range allEdges {
		edge := &allEdges[i]

		from := g.GetNode(edge.FromNodeID)
		to := g.GetNode(edge.ToNodeID)
		centerLat := (from.Lat + to.Lat) / 2
		centerLon := (from.Lon + to.Lon) / 2

		cell := h3.LatLngToCell(h3.NewLatLng(centerLat, centerLon), indexResolution)
		cells[cell.String()] = append(cells[cell.String()], datastructure.KVEdge{
			EdgeID:     edge.EdgeID,
			CenterLoc:  [2]float64{centerLat, centerLon},
			FromNodeID: edge.FromNodeID,
			ToNodeID:   edge.ToNodeID,
		})
	}

	workers := runtime.NumCPU()
	if workers > len(cells) {
		workers = len(cells)
	}
	if workers < 1 {
		workers = 1
	}

	pool := concurrent.NewWorkerPool[concurrent.CellEncodeJob, encodedCell](workers, len(cells))
	for key, cellEdges := range cells {
		pool.AddJob(concurrent.NewCellEncodeJob(key, cellEdges))
	}
	pool.Close()
	pool.Start(func(job concurrent.CellEncodeJob) encodedCell {
		val, err := encodeEdges(job.Edges)
		return encodedCell{key: job.Key, val: val, err: err}
	})
	pool.Wait()

	batch := k.db.NewWriteBatch()
	defer batch.Cancel()
	saved := 0
	for enc := range pool.CollectResults() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if enc.err != nil {
			return server.WrapErrorf(enc.err, server.ErrInternalServerError, "encoding cell %s", enc.key)
		}
		if err := batch.Set([]byte(enc.key), enc.val); err != nil {
			return server.WrapErrorf(err, server.ErrInternalServerError, "writing cell %s", enc.key)
		}
		saved++
	}
	if err := batch.Flush(); err != nil {
		return server.WrapErrorf(err, server.ErrInternalServerError, "flushing street index")
	}

	logrus.Infof("street index saved, %d cells", saved)
	return nil
}

func (k *KVDB) get(key []byte) ([]byte, error) {
	var val []byte
	err := k.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		val, err = item.ValueCopy(nil)
		return err
	})
	return val, err
}

// cellEdges loads one cell's records; a missing key is just an empty
// cell.
func (k *KVDB) cellEdges(cell h3.Cell) ([]datastructure.KVEdge, error) {
	val, err := k.get([]byte(cell.String()))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, server.WrapErrorf(err, server.ErrInternalServerError, "reading cell %s", cell.String())
	}
	return decodeEdges(val)
}

// NearestStreets returns the street records indexed around (lat, lon),
// widening the search ring cell by cell until something turns up.
func (k *KVDB) NearestStreets(lat, lon float64) ([]datastructure.KVEdge, error) {
	origin := h3.LatLngToCell(h3.NewLatLng(lat, lon), indexResolution)

	edges, err := k.cellEdges(origin)
	if err != nil {
		return nil, err
	}

	if len(edges) == 0 {
		for _, cell := range kRingIndexesArea(lat, lon, 1) {
			if cell == origin {
				continue
			}
			more, err := k.cellEdges(cell)
			if err != nil {
				return nil, err
			}
			edges = append(edges, more...)
		}
	}

	for ring := 1; ring <= maxSearchRing && len(edges) == 0; ring++ {
		for _, cell := range h3.GridDisk(origin, ring) {
			if cell == origin {
				continue
			}
			more, err := k.cellEdges(cell)
			if err != nil {
				return nil, err
			}
			edges = append(edges, more...)
		}
	}

	if len(edges) == 0 {
		return nil, server.NewErrorf(server.ErrNotFound, "no indexed street near (%f, %f)", lat, lon)
	}
	return edges, nil
}

// kRingIndexesArea picks the smallest GridDisk whose area covers a
// circle of searchRadiusKm around the point.
func kRingIndexesArea(lat, lon, searchRadiusKm float64) []h3.Cell {
	origin := h3.LatLngToCell(h3.NewLatLng(lat, lon), indexResolution)
	originArea := h3.CellAreaKm2(origin)
	searchArea := math.Pi * searchRadiusKm * searchRadiusKm

	radius := 0
	diskArea := originArea
	for diskArea < searchArea {
		radius++
		cellCount := float64(3*radius*(radius+1) + 1)
		diskArea = cellCount * originArea
	}

	return h3.GridDisk(origin, radius)
}

func (k *KVDB) Close() error {
	return k.db.Close()
}
