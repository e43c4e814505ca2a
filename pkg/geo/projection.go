package geo

import (
	"github.com/pandu-maps/pandu/pkg/datastructure"

	"github.com/golang/geo/s2"
)

// ProjectPointToLineCoord projects a query point onto the great-circle
// segment between two street endpoints.
func ProjectPointToLineCoord(segmentStart, segmentEnd, query datastructure.Coordinate) datastructure.Coordinate {
	startS2 := s2.PointFromLatLng(s2.LatLngFromDegrees(segmentStart.Lat, segmentStart.Lon))
	endS2 := s2.PointFromLatLng(s2.LatLngFromDegrees(segmentEnd.Lat, segmentEnd.Lon))
	queryS2 := s2.PointFromLatLng(s2.LatLngFromDegrees(query.Lat, query.Lon))

	projection := s2.Project(queryS2, startS2, endS2)
	projectedLatLng := s2.LatLngFromPoint(projection)
	return datastructure.NewCoordinate(projectedLatLng.Lat.Degrees(), projectedLatLng.Lng.Degrees())
}

// PointLinePerpendicularDistance returns the distance in meters from a
// point to its projection on the segment.
func PointLinePerpendicularDistance(segmentStart, segmentEnd, point datastructure.Coordinate) float64 {
	projection := ProjectPointToLineCoord(segmentStart, segmentEnd, point)
	return CalculateHaversineDistance(point.Lat, point.Lon, projection.Lat, projection.Lon) * 1000.0
}
