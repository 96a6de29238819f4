package contour

import (
	Mt "github.com/maroda/contour/types"
)

// NewLineChart runs the whole line pipeline once:
// params -> geometry -> path, polygon, markers, grid -> length.
// A nil measure uses PathLength.
func NewLineChart(p Mt.LineParams, measure LengthFunc) (Mt.LineChart, error) {
	p = WithDefaults(p)
	g, err := NewLineGeometry(p)
	if err != nil {
		return Mt.LineChart{}, err
	}

	pts := MapSeries(g)
	path := BuildPath(g)

	length := PathLength(pts)
	if measure != nil {
		length = measure(path, pts)
	}

	return Mt.LineChart{
		Params:     p,
		Geometry:   g,
		Path:       path,
		Polygon:    BuildPolygon(g),
		Points:     pts,
		Markers:    Markers(g),
		HGrid:      HorizontalSegments(g),
		VGrid:      VerticalSegments(g),
		PathLength: length,
		Signature:  LineSignature(p),
	}, nil
}
