package datastructure

import (
	"bytes"
	"encoding/gob"
	"os"

	"github.com/pandu-maps/pandu/pkg/server"
)

// graphSnapshot mirrors Graph with exported fields for encoding/gob.
type graphSnapshot struct {
	Nodes            []Node
	Edges            []Edge
	FirstOut         [][]int32
	FirstIn          [][]int32
	TurnRestrictions map[int32][]TurnRestriction
	StreetNames      []string
	Bounds           Bounds
	MaxSpeedKmh      float64
}

// SaveToFile writes the graph as a zstd-compressed gob snapshot. The
// attached spatial index is runtime wiring and is not persisted.
func (g *Graph) SaveToFile(path string) error {
	var raw bytes.Buffer
	enc := gob.NewEncoder(&raw)
	err := enc.Encode(graphSnapshot{
		Nodes:            g.nodes,
		Edges:            g.edges,
		FirstOut:         g.firstOut,
		FirstIn:          g.firstIn,
		TurnRestrictions: g.turnRestrictions,
		StreetNames:      g.streetNames,
		Bounds:           g.bounds,
		MaxSpeedKmh:      g.maxSpeedKmh,
	})
	if err != nil {
		return server.WrapErrorf(err, server.ErrInternalServerError, "encode graph snapshot")
	}

	var compressed bytes.Buffer
	if err := CompressData(raw.Bytes(), &compressed); err != nil {
		return server.WrapErrorf(err, server.ErrInternalServerError, "compress graph snapshot")
	}
	if err := os.WriteFile(path, compressed.Bytes(), 0o644); err != nil {
		return server.WrapErrorf(err, server.ErrInternalServerError, "write graph snapshot %s", path)
	}
	return nil
}

// LoadGraphFromFile reads a snapshot written by SaveToFile.
func LoadGraphFromFile(path string) (*Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, server.WrapErrorf(err, server.ErrNotFound, "read graph snapshot %s", path)
	}

	var raw bytes.Buffer
	if err := DecompressData(data, &raw); err != nil {
		return nil, server.WrapErrorf(err, server.ErrInternalServerError, "decompress graph snapshot %s", path)
	}

	var snap graphSnapshot
	dec := gob.NewDecoder(&raw)
	if err := dec.Decode(&snap); err != nil {
		return nil, server.WrapErrorf(err, server.ErrInternalServerError, "decode graph snapshot %s", path)
	}

	return &Graph{
		nodes:            snap.Nodes,
		edges:            snap.Edges,
		firstOut:         snap.FirstOut,
		firstIn:          snap.FirstIn,
		turnRestrictions: snap.TurnRestrictions,
		streetNames:      snap.StreetNames,
		bounds:           snap.Bounds,
		maxSpeedKmh:      snap.MaxSpeedKmh,
	}, nil
}
