package contractor

import (
	"testing"

	"github.com/pandu-maps/pandu/pkg/datastructure"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

/*
from https://jlazarsfeld.github.io/ch.150.project/sections/8-contraction/
p=0, v=1, q=2, w=3, r=4

	 p
	  \
	   \
	    10
	     \
		  v -----3----- r
		 /            /
		6            5
	   /    		/
	  q ---5----- w

every edge bidirectional

after contracting v:

	 p ___
	| \   \___
	|  \      \ 13
	|  10          \__
	16   \            \
	|	  v -----3----- r
	|	 /          /  /
	|	6    _  9    5
	|  / _ /   		/
	 q------5----- w
*/
func fixtureGraph(t *testing.T) *datastructure.Graph {
	t.Helper()
	builder := datastructure.NewGraphBuilder()
	for i := 0; i < 5; i++ {
		builder.AddNode(-7.78+float64(i)*0.01, 110.36+float64(i)*0.01)
	}

	addBoth := func(a, b int32, weight float64) {
		builder.AddEdge(datastructure.NewEdge(0, a, b, datastructure.NewEdgeCost(weight, weight), datastructure.RoadClassResidential))
		builder.AddEdge(datastructure.NewEdge(0, b, a, datastructure.NewEdgeCost(weight, weight), datastructure.RoadClassResidential))
	}
	addBoth(0, 1, 10) // p - v
	addBoth(1, 4, 3)  // v - r
	addBoth(1, 2, 6)  // v - q
	addBoth(2, 3, 5)  // q - w
	addBoth(3, 4, 5)  // w - r

	g, err := builder.Build()
	require.NoError(t, err)
	return g
}

func TestContractNode(t *testing.T) {
	ch := NewContractedGraph(fixtureGraph(t))

	contracted := make([]bool, ch.NumNodes())
	ch.contractNode(1, contracted) // node v

	// 10 original arcs plus p-q, p-r, q-r shortcuts in both directions
	assert.Equal(t, 16, len(ch.outEdges))
	assert.Equal(t, 16, len(ch.inEdges))
	assert.Equal(t, int64(6), ch.ShortcutCount())

	wantWeights := map[[2]int32]float64{
		{0, 2}: 16, {2, 0}: 16, // p-q through v
		{0, 4}: 13, {4, 0}: 13, // p-r through v
		{2, 4}: 9, {4, 2}: 9, // q-r through v
	}
	found := 0
	for _, edge := range ch.outEdges {
		if !edge.IsShortcut {
			continue
		}
		found++
		want, ok := wantWeights[[2]int32{edge.FromNodeID, edge.ToNodeID}]
		require.True(t, ok, "unexpected shortcut %d->%d", edge.FromNodeID, edge.ToNodeID)
		assert.Equal(t, want, edge.Cost.TravelTime)
		assert.Equal(t, int32(1), edge.ViaNodeID)
	}
	assert.Equal(t, 6, found)
}

func TestWitnessPreventsShortcut(t *testing.T) {
	// same shape as fixtureGraph but with a cheap q - w - r detour
	// (1 + 1), so q - v - r (9) has a witness and contracting v only
	// shortcuts the p pairs
	builder := datastructure.NewGraphBuilder()
	for i := 0; i < 5; i++ {
		builder.AddNode(-7.78+float64(i)*0.01, 110.36+float64(i)*0.01)
	}
	addBoth := func(a, b int32, weight float64) {
		builder.AddEdge(datastructure.NewEdge(0, a, b, datastructure.NewEdgeCost(weight, weight), datastructure.RoadClassResidential))
		builder.AddEdge(datastructure.NewEdge(0, b, a, datastructure.NewEdgeCost(weight, weight), datastructure.RoadClassResidential))
	}
	addBoth(0, 1, 10) // p - v
	addBoth(1, 4, 3)  // v - r
	addBoth(1, 2, 6)  // v - q
	addBoth(2, 3, 1)  // q - w
	addBoth(3, 4, 1)  // w - r
	g, err := builder.Build()
	require.NoError(t, err)

	ch := NewContractedGraph(g)
	contracted := make([]bool, ch.NumNodes())

	_, shortcutCount, _ := ch.findAndHandleShortcuts(1, nil, 100, contracted)
	assert.Equal(t, 4, shortcutCount)
}

func TestFlipEdge(t *testing.T) {
	edge := datastructure.NewEdge(7, 1, 2, datastructure.NewEdgeCost(3, 4), datastructure.RoadClassPrimary)
	flipped := flipEdge(edge)
	assert.Equal(t, int32(2), flipped.FromNodeID)
	assert.Equal(t, int32(1), flipped.ToNodeID)
	assert.Equal(t, edge.Cost, flipped.Cost)
	assert.Equal(t, edge.EdgeID, flipped.EdgeID)
}
