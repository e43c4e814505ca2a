package kv

import (
	"github.com/DataDog/zstd"
	"github.com/kelindar/binary"

	"github.com/pandu-maps/pandu/pkg/datastructure"
)

// stored values are binary-marshaled then zstd-compressed; dense cells
// hold many near-identical records and compress well

func encodeEdges(edges []datastructure.KVEdge) ([]byte, error) {
	bb, err := binary.Marshal(edges)
	if err != nil {
		return nil, err
	}
	return zstd.Compress(nil, bb)
}

func decodeEdges(compressed []byte) ([]datastructure.KVEdge, error) {
	bb, err := zstd.Decompress(nil, compressed)
	if err != nil {
		return nil, err
	}
	var edges []datastructure.KVEdge
	if err := binary.Unmarshal(bb, &edges); err != nil {
		return nil, err
	}
	return edges, nil
}
