package partition

import (
	"time"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"github.com/pandu-maps/pandu/pkg/datastructure"
	"github.com/pandu-maps/pandu/pkg/server"
)

const (
	DefaultRows = 8
	DefaultCols = 8
)

// Partition assigns every node to one grid cell over the graph bounds
// and keeps, per cell, the border nodes: nodes touching at least one
// edge whose other endpoint lies in a different cell. The overlay on
// top stores exact in-cell distances between border nodes so a long
// query can cross a cell without searching its interior.
type Partition struct {
	rows int
	cols int

	nodePartition []int32
	borderNodes   [][]int32
	isBorder      []bool

	overlay *OverlayGraph
}

// BuildPartition cuts the graph bounds into rows x cols cells, detects
// border nodes, and precomputes the overlay. The graph must have at
// least one node so the bounds are meaningful.
func BuildPartition(g *datastructure.Graph, rows, cols int) (*Partition, error) {
	if g.NumNodes() == 0 {
		return nil, server.NewErrorf(server.ErrGraphConstruction, "cannot partition an empty graph")
	}
	if rows <= 0 || cols <= 0 {
		return nil, server.NewErrorf(server.ErrGraphConstruction,
			"partition grid needs positive dimensions, got %dx%d", rows, cols)
	}

	start := time.Now()
	p := &Partition{
		rows:          rows,
		cols:          cols,
		nodePartition: make([]int32, g.NumNodes()),
		borderNodes:   make([][]int32, rows*cols),
		isBorder:      make([]bool, g.NumNodes()),
	}

	bounds := g.Bounds()
	cellHeight := (bounds.MaxLat - bounds.MinLat) / float64(rows)
	cellWidth := (bounds.MaxLon - bounds.MinLon) / float64(cols)
	for _, node := range g.Nodes() {
		row := cellIndex(node.Lat, bounds.MinLat, cellHeight, rows)
		col := cellIndex(node.Lon, bounds.MinLon, cellWidth, cols)
		p.nodePartition[node.ID] = int32(row*cols + col)
	}

	for _, edge := range g.Edges() {
		if p.nodePartition[edge.FromNodeID] == p.nodePartition[edge.ToNodeID] {
			continue
		}
		p.markBorder(edge.FromNodeID)
		p.markBorder(edge.ToNodeID)
	}

	borderCount := lo.SumBy(p.borderNodes, func(borders []int32) int { return len(borders) })
	logrus.Infof("partitioned %d nodes into a %dx%d grid, %d border nodes, in %v",
		g.NumNodes(), rows, cols, borderCount, time.Since(start))

	p.overlay = buildOverlay(g, p)
	return p, nil
}

// cellIndex clamps so nodes sitting exactly on the max bound land in
// the last cell instead of one past it. Degenerate bounds (all nodes
// on one line) collapse to index 0.
func cellIndex(value, min, step float64, cells int) int {
	if step <= 0 {
		return 0
	}
	idx := int((value - min) / step)
	if idx >= cells {
		idx = cells - 1
	}
	if idx < 0 {
		idx = 0
	}
	return idx
}

func (p *Partition) markBorder(nodeID int32) {
	if p.isBorder[nodeID] {
		return
	}
	p.isBorder[nodeID] = true
	pid := p.nodePartition[nodeID]
	p.borderNodes[pid] = append(p.borderNodes[pid], nodeID)
}

func (p *Partition) Rows() int { return p.rows }

func (p *Partition) Cols() int { return p.cols }

func (p *Partition) NumPartitions() int { return p.rows * p.cols }

func (p *Partition) PartitionOf(nodeID int32) int32 { return p.nodePartition[nodeID] }

func (p *Partition) IsBorderNode(nodeID int32) bool { return p.isBorder[nodeID] }

// BorderNodes returns the border nodes of one cell, empty for interior
// cells no edge crosses out of.
func (p *Partition) BorderNodes(partitionID int32) []int32 {
	return p.borderNodes[partitionID]
}

func (p *Partition) Overlay() *OverlayGraph { return p.overlay }
