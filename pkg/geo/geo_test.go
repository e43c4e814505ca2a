package geo_test

import (
	"testing"

	"github.com/pandu-maps/pandu/pkg/datastructure"
	"github.com/pandu-maps/pandu/pkg/geo"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHaversine(t *testing.T) {
	cases := []struct {
		latOne, longOne, latTwo, longTwo float64
		expectedDist                     float64
	}{
		{
			latOne:       -7.557155997491524,
			longOne:      110.77170252731288,
			latTwo:       -7.550209300671982,
			longTwo:      110.78942094938256,
			expectedDist: 2.1,
		},
		{
			latOne:       -7.546196863318374,
			longOne:      110.7775170972345,
			latTwo:       -7.550209300671982,
			longTwo:      110.78942094938256,
			expectedDist: 1.38,
		},
		{
			latOne:       -7.759889166547908,
			longOne:      110.36689459108496,
			latTwo:       -7.760335932763678,
			longTwo:      110.37671195413539,
			expectedDist: 1.08,
		},
		{
			latOne:       -7.700002453207869,
			longOne:      110.37712514761436,
			latTwo:       -7.760335932763678,
			longTwo:      110.37671195413539,
			expectedDist: 6.7,
		},
	}

	for _, c := range cases {
		dist := geo.CalculateHaversineDistance(c.latOne, c.longOne, c.latTwo, c.longTwo)
		assert.InDelta(t, c.expectedDist, dist, 0.1)
	}
}

func TestBearing(t *testing.T) {
	// due east along the equator
	bearing := geo.CalculateBearing(0, 0, 0, 1)
	assert.InDelta(t, 90.0, bearing, 0.5)

	// due north
	bearing = geo.CalculateBearing(0, 0, 1, 0)
	assert.InDelta(t, 0.0, bearing, 0.5)
}

func TestDestinationPoint(t *testing.T) {
	startLat, startLon := -7.55, 110.77
	destLat, destLon := geo.GetDestinationPoint(startLat, startLon, 90, 2.0)

	dist := geo.CalculateHaversineDistance(startLat, startLon, destLat, destLon)
	assert.InDelta(t, 2.0, dist, 0.01)
	assert.InDelta(t, startLat, destLat, 0.001, "eastward travel keeps latitude")
}

func TestProjectPointToLineCoord(t *testing.T) {
	segmentStart := datastructure.NewCoordinate(0, 0)
	segmentEnd := datastructure.NewCoordinate(0, 0.01)
	query := datastructure.NewCoordinate(0.001, 0.005)

	projection := geo.ProjectPointToLineCoord(segmentStart, segmentEnd, query)
	assert.InDelta(t, 0.0, projection.Lat, 1e-6)
	assert.InDelta(t, 0.005, projection.Lon, 1e-5)

	perpDist := geo.PointLinePerpendicularDistance(segmentStart, segmentEnd, query)
	assert.InDelta(t, 111.0, perpDist, 1.0, "0.001 degree of latitude is about 111 meters")
}

func TestPolylineRoundTrip(t *testing.T) {
	path := []datastructure.Coordinate{
		datastructure.NewCoordinate(-7.55715, 110.77170),
		datastructure.NewCoordinate(-7.55020, 110.78942),
		datastructure.NewCoordinate(-7.54619, 110.77751),
	}

	encoded := geo.CreatePolyline(path)
	require.NotEmpty(t, encoded)

	decoded, err := geo.DecodePolyline(encoded)
	require.NoError(t, err)
	require.Len(t, decoded, len(path))
	for i := range path {
		assert.InDelta(t, path[i].Lat, decoded[i].Lat, 1e-5)
		assert.InDelta(t, path[i].Lon, decoded[i].Lon, 1e-5)
	}
}

func TestRamerDouglasPeucker(t *testing.T) {
	// middle points sit on the straight segment and must be dropped
	straight := []datastructure.Coordinate{
		datastructure.NewCoordinate(0, 0),
		datastructure.NewCoordinate(0, 0.001),
		datastructure.NewCoordinate(0, 0.002),
		datastructure.NewCoordinate(0, 0.003),
	}
	simplified := geo.RamerDouglasPeucker(straight)
	assert.Len(t, simplified, 2)
	assert.Equal(t, straight[0], simplified[0])
	assert.Equal(t, straight[3], simplified[1])

	// a detour point far off the segment must survive
	detour := []datastructure.Coordinate{
		datastructure.NewCoordinate(0, 0),
		datastructure.NewCoordinate(0.001, 0.0015),
		datastructure.NewCoordinate(0, 0.003),
	}
	simplified = geo.RamerDouglasPeucker(detour)
	assert.Len(t, simplified, 3)
}
