package partition

import (
	"bytes"
	"encoding/gob"
	"os"

	"github.com/pandu-maps/pandu/pkg/datastructure"
	"github.com/pandu-maps/pandu/pkg/server"
)

type partitionSnapshot struct {
	Rows          int
	Cols          int
	NodePartition []int32
	BorderNodes   [][]int32
	IsBorder      []bool
	Overlay       map[int64]float64
}

// SaveToFile writes the partition and its overlay as a zstd-compressed
// gob snapshot.
func (p *Partition) SaveToFile(path string) error {
	var raw bytes.Buffer
	enc := gob.NewEncoder(&raw)
	err := enc.Encode(partitionSnapshot{
		Rows:          p.rows,
		Cols:          p.cols,
		NodePartition: p.nodePartition,
		BorderNodes:   p.borderNodes,
		IsBorder:      p.isBorder,
		Overlay:       p.overlay.edges,
	})
	if err != nil {
		return server.WrapErrorf(err, server.ErrInternalServerError, "encode partition")
	}

	var compressed bytes.Buffer
	if err := datastructure.CompressData(raw.Bytes(), &compressed); err != nil {
		return server.WrapErrorf(err, server.ErrInternalServerError, "compress partition")
	}
	if err := os.WriteFile(path, compressed.Bytes(), 0o644); err != nil {
		return server.WrapErrorf(err, server.ErrInternalServerError, "write partition %s", path)
	}
	return nil
}

// LoadPartitionFromFile reads a snapshot written by SaveToFile.
func LoadPartitionFromFile(path string) (*Partition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, server.WrapErrorf(err, server.ErrNotFound, "read partition %s", path)
	}

	var raw bytes.Buffer
	if err := datastructure.DecompressData(data, &raw); err != nil {
		return nil, server.WrapErrorf(err, server.ErrInternalServerError, "decompress partition %s", path)
	}

	var snap partitionSnapshot
	dec := gob.NewDecoder(&raw)
	if err := dec.Decode(&snap); err != nil {
		return nil, server.WrapErrorf(err, server.ErrInternalServerError, "decode partition %s", path)
	}

	return &Partition{
		rows:          snap.Rows,
		cols:          snap.Cols,
		nodePartition: snap.NodePartition,
		borderNodes:   snap.BorderNodes,
		isBorder:      snap.IsBorder,
		overlay:       &OverlayGraph{edges: snap.Overlay},
	}, nil
}
