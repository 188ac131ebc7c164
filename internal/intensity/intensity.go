// Package intensity estimates the shaking intensity felt at an observer
// location from an earthquake's magnitude, depth and epicenter using an
// empirical attenuation relation with separate coefficients for regions
// west and east of 105°E.
package intensity

import "math"

const earthRadiusKm = 6371.0

// Attenuation coefficients for I = A + B*M - C*ln(R + R0).
type coefficients struct {
	a, b, c, r0 float64
}

var (
	westCoefficients = coefficients{a: 5.643, b: 1.538, c: 2.109, r0: 25}
	eastCoefficients = coefficients{a: 6.046, b: 1.480, c: 2.081, r0: 25}
)

// HaversineKm returns the great-circle distance between two points.
func HaversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	const deg = math.Pi / 180

	dLat := (lat2 - lat1) * deg
	dLon := (lon2 - lon1) * deg

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*deg)*math.Cos(lat2*deg)*math.Sin(dLon/2)*math.Sin(dLon/2)

	return 2 * earthRadiusKm * math.Asin(math.Sqrt(h))
}

// Estimate returns the intensity expected at epicentralDistanceKm from a
// quake of the given magnitude and depth. The hypocentral distance is
// floored at 5 km so near-field estimates stay bounded, and the result is
// clamped to [0, 12].
func Estimate(magnitude, epicentralDistanceKm, depthKm, epicenterLon float64) float64 {
	r := math.Sqrt(epicentralDistanceKm*epicentralDistanceKm + depthKm*depthKm)
	if r < 5 {
		r = 5
	}

	co := eastCoefficients
	if epicenterLon < 105 {
		co = westCoefficients
	}

	i := co.a + co.b*magnitude - co.c*math.Log(r+co.r0)
	return math.Min(math.Max(i, 0), 12)
}
