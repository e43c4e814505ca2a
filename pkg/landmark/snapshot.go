package landmark

import (
	"bytes"
	"encoding/gob"
	"os"

	"github.com/pandu-maps/pandu/pkg/datastructure"
	"github.com/pandu-maps/pandu/pkg/server"
)

type landmarkSnapshot struct {
	NodeIDs  []int32
	DistFrom [][]float64
	DistTo   [][]float64
}

// SaveToFile writes the landmark tables as a zstd-compressed gob
// snapshot so ALT can start without redoing the Dijkstra sweeps.
func (lm *Landmarks) SaveToFile(path string) error {
	var raw bytes.Buffer
	enc := gob.NewEncoder(&raw)
	err := enc.Encode(landmarkSnapshot{
		NodeIDs:  lm.nodeIDs,
		DistFrom: lm.distFrom,
		DistTo:   lm.distTo,
	})
	if err != nil {
		return server.WrapErrorf(err, server.ErrInternalServerError, "encode landmark snapshot")
	}

	var compressed bytes.Buffer
	if err := datastructure.CompressData(raw.Bytes(), &compressed); err != nil {
		return server.WrapErrorf(err, server.ErrInternalServerError, "compress landmark snapshot")
	}
	if err := os.WriteFile(path, compressed.Bytes(), 0o644); err != nil {
		return server.WrapErrorf(err, server.ErrInternalServerError, "write landmark snapshot %s", path)
	}
	return nil
}

// LoadLandmarksFromFile reads a snapshot written by SaveToFile.
func LoadLandmarksFromFile(path string) (*Landmarks, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, server.WrapErrorf(err, server.ErrNotFound, "read landmark snapshot %s", path)
	}

	var raw bytes.Buffer
	if err := datastructure.DecompressData(data, &raw); err != nil {
		return nil, server.WrapErrorf(err, server.ErrInternalServerError, "decompress landmark snapshot %s", path)
	}

	var snap landmarkSnapshot
	dec := gob.NewDecoder(&raw)
	if err := dec.Decode(&snap); err != nil {
		return nil, server.WrapErrorf(err, server.ErrInternalServerError, "decode landmark snapshot %s", path)
	}

	return &Landmarks{
		nodeIDs:  snap.NodeIDs,
		distFrom: snap.DistFrom,
		distTo:   snap.DistTo,
	}, nil
}
