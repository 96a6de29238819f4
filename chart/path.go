package contour

import (
	"math"
	"strings"

	Mt "github.com/maroda/contour/types"
)

// Colors of the line pipeline
const (
	StrokeColor   = "#16A5A5"
	FillColor     = "rgba(104, 204, 202, 0.3)"
	MaxValueColor = "#ff0000"
	GridColor     = "#f2f2f2"
	StrokeWidth   = 1.5
	MarkerRadius  = 4.0
)

// SeamEpsilon widens the fill past the last point so no gap shows
// between the end of the stroke and the edge of the polygon
const SeamEpsilon = 2.0

// BuildPath walks the series as "M x,y L x,y ...".
// An empty series is an empty path.
func BuildPath(g Mt.ChartGeometry) string {
	var b strings.Builder
	for i, p := range MapSeries(g) {
		if i == 0 {
			b.WriteString("M" + FormatPoint(p))
			continue
		}
		b.WriteString(" L" + FormatPoint(p))
	}
	return b.String()
}

// PolygonPoints is the filled area under the curve.
// It starts and ends on the baseline at the left padding, then
// drops from the last point down to the baseline SeamEpsilon to the right.
func PolygonPoints(g Mt.ChartGeometry) []Mt.Point {
	pts := MapSeries(g)
	start := Mt.Point{X: g.PaddingLeft, Y: 0}

	lastIndex := len(pts) - 1
	lastY := 0.0
	if lastIndex < 0 {
		lastIndex = 0
	} else {
		lastY = pts[lastIndex].Y
	}
	edgeX := float64(lastIndex)*g.StepX + g.PaddingLeft + SeamEpsilon

	poly := make([]Mt.Point, 0, len(pts)+4)
	poly = append(poly, start)
	poly = append(poly, pts...)
	if len(pts) > 0 {
		poly = append(poly, Mt.Point{X: edgeX, Y: lastY})
	}
	poly = append(poly, Mt.Point{X: edgeX, Y: 0}, start)
	return poly
}

// BuildPolygon is PolygonPoints as a points attribute
func BuildPolygon(g Mt.ChartGeometry) string {
	return FormatPoints(PolygonPoints(g))
}

// LengthFunc measures a rendered path.
// A surface with a native measuring primitive can supply one;
// PathLength is the default.
type LengthFunc func(d string, pts []Mt.Point) float64

// PathLength sums the Euclidean length of each segment
func PathLength(pts []Mt.Point) float64 {
	total := 0.0
	for i := 1; i < len(pts); i++ {
		total += math.Hypot(pts[i].X-pts[i-1].X, pts[i].Y-pts[i-1].Y)
	}
	return total
}

// Markers puts a circle on every point.
// Points at or above the axis maximum are stroked in MaxValueColor.
func Markers(g Mt.ChartGeometry) []Mt.Marker {
	markers := make([]Mt.Marker, len(g.NormalizedSeries))
	for i, v := range g.NormalizedSeries {
		atMax := v >= g.Bounds.Max
		stroke := StrokeColor
		if atMax {
			stroke = MaxValueColor
		}
		markers[i] = Mt.Marker{
			Center: Map(v, i, g),
			Radius: MarkerRadius,
			AtMax:  atMax,
			Stroke: stroke,
		}
	}
	return markers
}
