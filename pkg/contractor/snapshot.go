package contractor

import (
	"bytes"
	"encoding/gob"
	"os"

	"github.com/pandu-maps/pandu/pkg/datastructure"
	"github.com/pandu-maps/pandu/pkg/server"
)

type chSnapshot struct {
	Nodes        []datastructure.Node
	OutEdges     []datastructure.Edge
	InEdges      []datastructure.Edge
	FirstOut     [][]int32
	FirstIn      [][]int32
	OrderPos     []int64
	SCC          []int32
	SCCAdjacency [][]int32
	StreetNames  []string
	Shortcuts    int64
	Ready        bool
}

// SaveToFile writes the contracted graph as a zstd-compressed gob
// snapshot, shortcuts and order positions included, so the query
// process never repeats the contraction.
func (ch *ContractedGraph) SaveToFile(path string) error {
	var raw bytes.Buffer
	enc := gob.NewEncoder(&raw)
	err := enc.Encode(chSnapshot{
		Nodes:        ch.nodes,
		OutEdges:     ch.outEdges,
		InEdges:      ch.inEdges,
		FirstOut:     ch.firstOut,
		FirstIn:      ch.firstIn,
		OrderPos:     ch.orderPos,
		SCC:          ch.scc,
		SCCAdjacency: ch.sccCondensationAdj,
		StreetNames:  ch.streetNames,
		Shortcuts:    ch.metadata.shortcutsCount,
		Ready:        ch.ready,
	})
	if err != nil {
		return server.WrapErrorf(err, server.ErrInternalServerError, "encode contracted graph")
	}

	var compressed bytes.Buffer
	if err := datastructure.CompressData(raw.Bytes(), &compressed); err != nil {
		return server.WrapErrorf(err, server.ErrInternalServerError, "compress contracted graph")
	}
	if err := os.WriteFile(path, compressed.Bytes(), 0o644); err != nil {
		return server.WrapErrorf(err, server.ErrInternalServerError, "write contracted graph %s", path)
	}
	return nil
}

// LoadContractedGraphFromFile reads a snapshot written by SaveToFile.
func LoadContractedGraphFromFile(path string) (*ContractedGraph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, server.WrapErrorf(err, server.ErrNotFound, "read contracted graph %s", path)
	}

	var raw bytes.Buffer
	if err := datastructure.DecompressData(data, &raw); err != nil {
		return nil, server.WrapErrorf(err, server.ErrInternalServerError, "decompress contracted graph %s", path)
	}

	var snap chSnapshot
	dec := gob.NewDecoder(&raw)
	if err := dec.Decode(&snap); err != nil {
		return nil, server.WrapErrorf(err, server.ErrInternalServerError, "decode contracted graph %s", path)
	}

	ch := &ContractedGraph{
		nodes:              snap.Nodes,
		outEdges:           snap.OutEdges,
		inEdges:            snap.InEdges,
		firstOut:           snap.FirstOut,
		firstIn:            snap.FirstIn,
		orderPos:           snap.OrderPos,
		scc:                snap.SCC,
		sccCondensationAdj: snap.SCCAdjacency,
		streetNames:        snap.StreetNames,
		ready:              snap.Ready,
	}
	ch.metadata.shortcutsCount = snap.Shortcuts
	ch.metadata.nodeCount = len(snap.Nodes)
	ch.metadata.edgeCount = len(snap.OutEdges)
	return ch, nil
}
