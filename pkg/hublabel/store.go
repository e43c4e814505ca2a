package hublabel

import (
	"encoding/binary"
	"errors"

	"github.com/cockroachdb/pebble"
	kbinary "github.com/kelindar/binary"
	"github.com/pandu-maps/pandu/pkg/server"
)

var (
	metaNodeCountKey = []byte("meta:nodes")
	fwdPrefix        = byte('f')
	bwdPrefix        = byte('b')
)

// LabelStore persists hub labels in a pebble database, one record per
// node and direction, so a query process can serve label lookups
// without decoding the whole artifact.
type LabelStore struct {
	db *pebble.DB
}

func OpenLabelStore(dir string) (*LabelStore, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, server.WrapErrorf(err, server.ErrInternalServerError, "open label store %s", dir)
	}
	return &LabelStore{db: db}, nil
}

func (s *LabelStore) Close() error {
	return s.db.Close()
}

func labelKey(prefix byte, v int32) []byte {
	key := make([]byte, 5)
	key[0] = prefix
	binary.BigEndian.PutUint32(key[1:], uint32(v))
	return key
}

// PutLabels writes every label list in one batch.
func (s *LabelStore) PutLabels(hl *HubLabels) error {
	batch := s.db.NewBatch()
	defer batch.Close()

	for v := 0; v < hl.NumNodes(); v++ {
		fwdData, err := kbinary.Marshal(hl.fwd[v])
		if err != nil {
			return server.WrapErrorf(err, server.ErrInternalServerError, "encode forward labels of node %d", v)
		}
		if err := batch.Set(labelKey(fwdPrefix, int32(v)), fwdData, nil); err != nil {
			return server.WrapErrorf(err, server.ErrInternalServerError, "stage forward labels of node %d", v)
		}

		bwdData, err := kbinary.Marshal(hl.bwd[v])
		if err != nil {
			return server.WrapErrorf(err, server.ErrInternalServerError, "encode backward labels of node %d", v)
		}
		if err := batch.Set(labelKey(bwdPrefix, int32(v)), bwdData, nil); err != nil {
			return server.WrapErrorf(err, server.ErrInternalServerError, "stage backward labels of node %d", v)
		}
	}

	nodeCount := make([]byte, 4)
	binary.BigEndian.PutUint32(nodeCount, uint32(hl.NumNodes()))
	if err := batch.Set(metaNodeCountKey, nodeCount, nil); err != nil {
		return server.WrapErrorf(err, server.ErrInternalServerError, "stage node count")
	}

	if err := s.db.Apply(batch, pebble.Sync); err != nil {
		return server.WrapErrorf(err, server.ErrInternalServerError, "commit label batch")
	}
	return nil
}

// NodeLabels reads one node's list straight from disk.
func (s *LabelStore) NodeLabels(v int32, backward bool) ([]LabelEntry, error) {
	prefix := fwdPrefix
	if backward {
		prefix = bwdPrefix
	}
	value, closer, err := s.db.Get(labelKey(prefix, v))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, server.NewErrorf(server.ErrNodeNotFound, "no labels stored for node %d", v)
		}
		return nil, server.WrapErrorf(err, server.ErrInternalServerError, "read labels of node %d", v)
	}
	defer closer.Close()

	var entries []LabelEntry
	if err := kbinary.Unmarshal(value, &entries); err != nil {
		return nil, server.WrapErrorf(err, server.ErrInternalServerError, "decode labels of node %d", v)
	}
	return entries, nil
}

// LoadLabels rebuilds the in-memory label set from the store.
func (s *LabelStore) LoadLabels() (*HubLabels, error) {
	value, closer, err := s.db.Get(metaNodeCountKey)
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, server.NewErrorf(server.ErrNotFound, "label store holds no labels")
		}
		return nil, server.WrapErrorf(err, server.ErrInternalServerError, "read node count")
	}
	n := int(binary.BigEndian.Uint32(value))
	closer.Close()

	hl := &HubLabels{
		fwd: make([][]LabelEntry, n),
		bwd: make([][]LabelEntry, n),
	}
	for v := 0; v < n; v++ {
		if hl.fwd[v], err = s.NodeLabels(int32(v), false); err != nil {
			return nil, err
		}
		if hl.bwd[v], err = s.NodeLabels(int32(v), true); err != nil {
			return nil, err
		}
	}
	return hl, nil
}
