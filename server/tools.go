package contour

import "math"

// FloatPrecise rounds f to places decimal places
func FloatPrecise(f float64, places int) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	p := math.Pow(10, float64(places))
	return math.Round(f*p) / p
}
