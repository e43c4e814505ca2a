package geo

import (
	"github.com/pandu-maps/pandu/pkg/datastructure"

	"github.com/twpayne/go-polyline"
)

// CreatePolyline encodes route geometry with the google polyline5 codec.
func CreatePolyline(path []datastructure.Coordinate) string {
	coords := make([][]float64, 0, len(path))
	for _, p := range path {
		coords = append(coords, []float64{p.Lat, p.Lon})
	}
	return string(polyline.EncodeCoords(coords))
}

func DecodePolyline(s string) ([]datastructure.Coordinate, error) {
	coords, _, err := polyline.DecodeCoords([]byte(s))
	if err != nil {
		return nil, err
	}
	path := make([]datastructure.Coordinate, 0, len(coords))
	for _, c := range coords {
		path = append(path, datastructure.NewCoordinate(c[0], c[1]))
	}
	return path, nil
}
