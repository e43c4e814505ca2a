package snap

import (
	"github.com/dhconnelly/rtreego"
	"github.com/sirupsen/logrus"

	"github.com/pandu-maps/pandu/pkg/datastructure"
)

const (
	// degenerate rect size for point entries
	pointTolerance = 1e-9

	minBranch = 25
	maxBranch = 50
)

type nodeEntry struct {
	id   int32
	rect rtreego.Rect
}

func (e *nodeEntry) Bounds() rtreego.Rect { return e.rect }

// RoadSnapper resolves request coordinates to graph nodes with an
// R-tree over every node location. The tree lives in the (lon, lat)
// degree plane, which is close enough to meters at city extents.
type RoadSnapper struct {
	tree *rtreego.Rtree
}

// BuildRoadSnapper indexes every node of the graph. Call once during
// startup, before the graph starts serving.
func BuildRoadSnapper(g *datastructure.Graph) *RoadSnapper {
	tree := rtreego.NewTree(2, minBranch, maxBranch)
	for i := 0; i < g.NumNodes(); i++ {
		node := g.GetNode(int32(i))
		point := rtreego.Point{node.Lon, node.Lat}
		tree.Insert(&nodeEntry{id: node.ID, rect: point.ToRect(pointTolerance)})
	}
	logrus.Infof("road snapper indexed %d nodes", tree.Size())
	return &RoadSnapper{tree: tree}
}

// NearestNode implements datastructure.NearestNodeIndex.
func (rs *RoadSnapper) NearestNode(lat, lon float64) (int32, bool) {
	nearest := rs.tree.NearestNeighbor(rtreego.Point{lon, lat})
	entry, ok := nearest.(*nodeEntry)
	if !ok {
		return -1, false
	}
	return entry.id, true
}

// NearestNodes returns up to k node ids ordered by distance from the
// query point.
func (rs *RoadSnapper) NearestNodes(lat, lon float64, k int) []int32 {
	if k <= 0 {
		return nil
	}
	neighbors := rs.tree.NearestNeighbors(k, rtreego.Point{lon, lat})
	ids := make([]int32, 0, len(neighbors))
	for _, s := range neighbors {
		if entry, ok := s.(*nodeEntry); ok {
			ids = append(ids, entry.id)
		}
	}
	return ids
}

// Size reports how many nodes are indexed.
func (rs *RoadSnapper) Size() int {
	return rs.tree.Size()
}
