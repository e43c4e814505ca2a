package osmparser

import (
	"testing"

	"github.com/paulmach/osm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pandu-maps/pandu/pkg/datastructure"
)

func TestParseMaxspeed(t *testing.T) {
	tests := []struct {
		value string
		want  float64
	}{
		{"50", 50},
		{"30 mph", 48.2802},
		{"80 km/h", 80},
		{"10 knots", 18.52},
		{"none", 0},
		{"walk", 0},
		{"", 0},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, parseMaxspeed(tt.value), 1e-4, "maxspeed=%q", tt.value)
	}
}

func TestAcceptWay(t *testing.T) {
	residential := &osm.Way{Tags: osm.Tags{{Key: "highway", Value: "residential"}}}
	assert.True(t, acceptWay(residential))

	busStop := &osm.Way{Tags: osm.Tags{{Key: "highway", Value: "bus_stop"}}}
	assert.False(t, acceptWay(busStop))

	construction := &osm.Way{Tags: osm.Tags{{Key: "highway", Value: "construction"}}}
	assert.False(t, acceptWay(construction))

	ferry := &osm.Way{Tags: osm.Tags{{Key: "route", Value: "ferry"}}}
	assert.True(t, acceptWay(ferry))

	untagged := &osm.Way{}
	assert.False(t, acceptWay(untagged))
}

func TestAccessForClass(t *testing.T) {
	motorway := accessForClass(datastructure.RoadClassMotorway)
	assert.True(t, motorway.Allows(datastructure.ModeCar))
	assert.False(t, motorway.Allows(datastructure.ModeFoot))
	assert.False(t, motorway.Allows(datastructure.ModeBicycle))

	cycleway := accessForClass(datastructure.RoadClassCycleway)
	assert.True(t, cycleway.Allows(datastructure.ModeBicycle))
	assert.True(t, cycleway.Allows(datastructure.ModeFoot))
	assert.False(t, cycleway.Allows(datastructure.ModeCar))

	residential := accessForClass(datastructure.RoadClassResidential)
	for _, mode := range []datastructure.TravelMode{
		datastructure.ModeCar, datastructure.ModeTruck, datastructure.ModeBus,
		datastructure.ModeBicycle, datastructure.ModeFoot, datastructure.ModeMotorcycle,
	} {
		assert.True(t, residential.Allows(mode), "residential should allow %s", mode)
	}
}

func TestParseWayAttributesDirection(t *testing.T) {
	forward := parseWayAttributes(&osm.Way{Tags: osm.Tags{
		{Key: "highway", Value: "primary"},
		{Key: "oneway", Value: "yes"},
	}})
	assert.True(t, forward.forwardOnly)
	assert.False(t, forward.backwardOnly)

	reversed := parseWayAttributes(&osm.Way{Tags: osm.Tags{
		{Key: "highway", Value: "primary"},
		{Key: "oneway", Value: "-1"},
	}})
	assert.False(t, reversed.forwardOnly)
	assert.True(t, reversed.backwardOnly)

	roundabout := parseWayAttributes(&osm.Way{Tags: osm.Tags{
		{Key: "highway", Value: "tertiary"},
		{Key: "junction", Value: "roundabout"},
	}})
	assert.True(t, roundabout.forwardOnly)

	restricted := parseWayAttributes(&osm.Way{Tags: osm.Tags{
		{Key: "highway", Value: "primary"},
		{Key: "oneway", Value: "yes"},
		{Key: "motor_vehicle:forward", Value: "no"},
	}})
	assert.True(t, restricted.backwardOnly)
	assert.False(t, restricted.forwardOnly)

	plain := parseWayAttributes(&osm.Way{Tags: osm.Tags{
		{Key: "highway", Value: "residential"},
	}})
	assert.False(t, plain.forwardOnly)
	assert.False(t, plain.backwardOnly)
}

func TestParseWayAttributesSpeedAndCost(t *testing.T) {
	tagged := parseWayAttributes(&osm.Way{Tags: osm.Tags{
		{Key: "highway", Value: "residential"},
		{Key: "maxspeed", Value: "60"},
	}})
	assert.InDelta(t, 60, tagged.speedKmh, 1e-9)
	assert.InDelta(t, 60, tagged.taggedSpeed, 1e-9)

	untagged := parseWayAttributes(&osm.Way{Tags: osm.Tags{
		{Key: "highway", Value: "residential"},
	}})
	assert.InDelta(t, datastructure.RoadClassResidential.DefaultSpeedKmh(), untagged.speedKmh, 1e-9)
	assert.Zero(t, untagged.taggedSpeed)

	tollFerry := parseWayAttributes(&osm.Way{Tags: osm.Tags{
		{Key: "route", Value: "ferry"},
		{Key: "toll", Value: "yes"},
	}})
	assert.True(t, tollFerry.ferry)
	assert.True(t, tollFerry.toll)

	private := parseWayAttributes(&osm.Way{Tags: osm.Tags{
		{Key: "highway", Value: "service"},
		{Key: "motor_vehicle", Value: "private"},
	}})
	assert.False(t, private.access.Allows(datastructure.ModeCar))
	assert.True(t, private.access.Allows(datastructure.ModeFoot))
}

func TestProcessWayBuildsChain(t *testing.T) {
	p := NewParser()
	p.nodeIDs[100] = p.builder.AddNode(0, 0)
	p.nodeIDs[101] = p.builder.AddNode(0, 0.001)
	p.nodeIDs[102] = p.builder.AddNode(0, 0.002)

	p.processWay(&osm.Way{
		ID:    7,
		Nodes: osm.WayNodes{{ID: 100}, {ID: 101}, {ID: 102}},
		Tags: osm.Tags{
			{Key: "highway", Value: "residential"},
			{Key: "name", Value: "Jalan Sudirman"},
		},
	})

	g, err := p.builder.Build()
	require.NoError(t, err)
	require.Equal(t, 3, g.NumNodes())
	require.Equal(t, 4, g.NumEdges(), "two segments, both bidirectional")

	edge := g.GetEdge(0)
	assert.False(t, edge.OneWay)
	assert.Equal(t, "Jalan Sudirman", g.StreetName(edge.StreetName))

	wantDist := datastructure.HaversineDistance(0, 0, 0, 0.001) * 1000.0
	assert.InDelta(t, wantDist, edge.Cost.Distance, 1e-6)
	wantTime := wantDist / (datastructure.RoadClassResidential.DefaultSpeedKmh() / 3.6)
	assert.InDelta(t, wantTime, edge.Cost.TravelTime, 1e-6)
}

func TestProcessWaySkipsMissingNodes(t *testing.T) {
	p := NewParser()
	p.nodeIDs[100] = p.builder.AddNode(0, 0)
	p.nodeIDs[102] = p.builder.AddNode(0, 0.002)

	// node 101 was outside the extract; the chain bridges the gap
	p.processWay(&osm.Way{
		ID:    7,
		Nodes: osm.WayNodes{{ID: 100}, {ID: 101}, {ID: 102}},
		Tags:  osm.Tags{{Key: "highway", Value: "residential"}},
	})

	g, err := p.builder.Build()
	require.NoError(t, err)
	assert.Equal(t, 2, g.NumEdges())

	edge := g.GetEdge(0)
	assert.Equal(t, p.nodeIDs[100], edge.FromNodeID)
	assert.Equal(t, p.nodeIDs[102], edge.ToNodeID)
}

func TestProcessWayReversedOneWay(t *testing.T) {
	p := NewParser()
	p.nodeIDs[100] = p.builder.AddNode(0, 0)
	p.nodeIDs[101] = p.builder.AddNode(0, 0.001)

	p.processWay(&osm.Way{
		ID:    7,
		Nodes: osm.WayNodes{{ID: 100}, {ID: 101}},
		Tags: osm.Tags{
			{Key: "highway", Value: "primary"},
			{Key: "oneway", Value: "-1"},
		},
	})

	g, err := p.builder.Build()
	require.NoError(t, err)
	require.Equal(t, 1, g.NumEdges())

	edge := g.GetEdge(0)
	assert.Equal(t, p.nodeIDs[101], edge.FromNodeID)
	assert.Equal(t, p.nodeIDs[100], edge.ToNodeID)
	assert.True(t, edge.OneWay)
}

func TestRestrictionResolution(t *testing.T) {
	p := NewParser()
	p.nodeIDs[1] = p.builder.AddNode(0, 0)
	via := p.builder.AddNode(0, 0.001)
	p.nodeIDs[2] = via
	p.nodeIDs[3] = p.builder.AddNode(0.001, 0.001)

	roadTags := osm.Tags{{Key: "highway", Value: "residential"}}
	p.processWay(&osm.Way{ID: 10, Nodes: osm.WayNodes{{ID: 1}, {ID: 2}}, Tags: roadTags})
	p.processWay(&osm.Way{ID: 11, Nodes: osm.WayNodes{{ID: 2}, {ID: 3}}, Tags: roadTags})

	p.collectRestriction(&osm.Relation{
		Tags: osm.Tags{
			{Key: "type", Value: "restriction"},
			{Key: "restriction", Value: "no_left_turn"},
		},
		Members: osm.Members{
			{Type: osm.TypeWay, Ref: 10, Role: "from"},
			{Type: osm.TypeNode, Ref: 2, Role: "via"},
			{Type: osm.TypeWay, Ref: 11, Role: "to"},
		},
	})
	require.Len(t, p.restrictions, 1)
	p.resolveRestrictions()

	g, err := p.builder.Build()
	require.NoError(t, err)

	restrictions := g.TurnRestrictionsAt(via)
	require.Len(t, restrictions, 1)
	assert.Equal(t, datastructure.NoTurn, restrictions[0].Type)
	assert.Equal(t, via, g.GetEdge(restrictions[0].FromEdgeID).ToNodeID)
	assert.Equal(t, via, g.GetEdge(restrictions[0].ToEdgeID).FromNodeID)
}

func TestCollectRestrictionFilters(t *testing.T) {
	p := NewParser()

	// only_* relations map to mandatory turns
	p.collectRestriction(&osm.Relation{
		Tags: osm.Tags{
			{Key: "type", Value: "restriction"},
			{Key: "restriction", Value: "only_straight_on"},
		},
		Members: osm.Members{
			{Type: osm.TypeWay, Ref: 10, Role: "from"},
			{Type: osm.TypeNode, Ref: 2, Role: "via"},
			{Type: osm.TypeWay, Ref: 11, Role: "to"},
		},
	})
	require.Len(t, p.restrictions, 1)
	assert.Equal(t, datastructure.OnlyTurn, p.restrictions[0].typ)

	// missing via member
	p.collectRestriction(&osm.Relation{
		Tags: osm.Tags{
			{Key: "type", Value: "restriction"},
			{Key: "restriction", Value: "no_u_turn"},
		},
		Members: osm.Members{
			{Type: osm.TypeWay, Ref: 10, Role: "from"},
			{Type: osm.TypeWay, Ref: 11, Role: "to"},
		},
	})
	// not a restriction relation at all
	p.collectRestriction(&osm.Relation{
		Tags: osm.Tags{{Key: "type", Value: "multipolygon"}},
	})
	// conditional-only relations carry no plain restriction tag
	p.collectRestriction(&osm.Relation{
		Tags: osm.Tags{
			{Key: "type", Value: "restriction"},
			{Key: "restriction:conditional", Value: "no_left_turn @ (Mo-Fr 07:00-19:00)"},
		},
	})
	assert.Len(t, p.restrictions, 1)
}
