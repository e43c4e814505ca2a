package geo

import "math"

const earthRadiusKM = 6371.0

func havFunction(angleRad float64) float64 {
	return (1 - math.Cos(angleRad)) / 2.0
}

func degreeToRadians(angle float64) float64 {
	return angle * (math.Pi / 180.0)
}

func radiansToDegree(angle float64) float64 {
	return angle * (180.0 / math.Pi)
}

// CalculateHaversineDistance returns the great-circle distance between
// two coordinates in kilometers.
func CalculateHaversineDistance(latOne, longOne, latTwo, longTwo float64) float64 {
	latOne = degreeToRadians(latOne)
	longOne = degreeToRadians(longOne)
	latTwo = degreeToRadians(latTwo)
	longTwo = degreeToRadians(longTwo)

	a := havFunction(latOne-latTwo) + math.Cos(latOne)*math.Cos(latTwo)*havFunction(longOne-longTwo)
	c := 2.0 * math.Asin(math.Sqrt(a))
	return earthRadiusKM * c
}

// CalculateBearing returns the initial bearing in degrees [0, 360) when
// traveling from the first point toward the second.
func CalculateBearing(latOne, longOne, latTwo, longTwo float64) float64 {
	latOne = degreeToRadians(latOne)
	latTwo = degreeToRadians(latTwo)
	deltaLon := degreeToRadians(longTwo - longOne)

	y := math.Sin(deltaLon) * math.Cos(latTwo)
	x := math.Cos(latOne)*math.Sin(latTwo) - math.Sin(latOne)*math.Cos(latTwo)*math.Cos(deltaLon)
	bearing := radiansToDegree(math.Atan2(y, x))
	return math.Mod(bearing+360.0, 360.0)
}

// GetDestinationPoint returns the coordinate reached by traveling
// distKm kilometers from (lat, lon) along the given bearing in degrees.
func GetDestinationPoint(lat, lon, bearingDeg, distKm float64) (float64, float64) {
	angularDist := distKm / earthRadiusKM
	bearing := degreeToRadians(bearingDeg)
	latRad := degreeToRadians(lat)
	lonRad := degreeToRadians(lon)

	destLat := math.Asin(math.Sin(latRad)*math.Cos(angularDist) +
		math.Cos(latRad)*math.Sin(angularDist)*math.Cos(bearing))
	destLon := lonRad + math.Atan2(
		math.Sin(bearing)*math.Sin(angularDist)*math.Cos(latRad),
		math.Cos(angularDist)-math.Sin(latRad)*math.Sin(destLat))

	return radiansToDegree(destLat), radiansToDegree(destLon)
}
