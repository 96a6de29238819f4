package contour

import (
	"math"
	"strconv"
	"strings"

	Mt "github.com/maroda/contour/types"
)

// FormatNumber prints the shortest decimal that round-trips,
// which is how a browser prints numbers into attribute strings.
// NaN and Inf never reach a path string, they print as 0.
// Negative zero prints as 0.
func FormatNumber(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) || v == 0 {
		return "0"
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// FormatPoint is "x,y"
func FormatPoint(p Mt.Point) string {
	return FormatNumber(p.X) + "," + FormatNumber(p.Y)
}

// FormatPoints joins points the way a polygon points attribute expects
func FormatPoints(pts []Mt.Point) string {
	parts := make([]string, len(pts))
	for i, p := range pts {
		parts[i] = FormatPoint(p)
	}
	return strings.Join(parts, " ")
}
