package geo

import (
	"container/list"

	"github.com/pandu-maps/pandu/pkg/datastructure"
)

const douglasPeuckerThresholdMeters = 7.0

// RamerDouglasPeucker simplifies response geometry, dropping shape
// points closer than the threshold to the kept segments.
func RamerDouglasPeucker(coords []datastructure.Coordinate) []datastructure.Coordinate {
	size := len(coords)
	if size < 2 {
		return coords
	}

	kept := make([]bool, size)
	kept[0] = true
	kept[size-1] = true

	stack := list.New()
	stack.PushBack([2]int{0, size - 1})

	for stack.Len() > 0 {
		pair := stack.Remove(stack.Back()).([2]int)
		left, right := pair[0], pair[1]

		var maxDist float64
		farthestIndex := left
		for i := left + 1; i < right; i++ {
			dist := PointLinePerpendicularDistance(coords[left], coords[right], coords[i])
			if dist > maxDist && dist > douglasPeuckerThresholdMeters {
				maxDist = dist
				farthestIndex = i
			}
		}

		if maxDist > douglasPeuckerThresholdMeters {
			kept[farthestIndex] = true
			if left < farthestIndex {
				stack.PushBack([2]int{left, farthestIndex})
			}
			if farthestIndex < right {
				stack.PushBack([2]int{farthestIndex, right})
			}
		}
	}

	simplified := make([]datastructure.Coordinate, 0, size)
	for i, keep := range kept {
		if keep {
			simplified = append(simplified, coords[i])
		}
	}
	return simplified
}
