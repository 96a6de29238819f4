package contour

import (
	"log/slog"
	"math"

	Mt "github.com/maroda/contour/types"
)

// Layout defaults for the line chart, in pixels
const (
	DefaultWidth        = 500.0
	DefaultHeight       = 300.0
	DefaultPaddingTop   = 20.0
	DefaultPaddingLeft  = 20.0
	DefaultPaddingRight = 20.0

	// DefaultAxisMax is the top of the normalized axis, values are percentages
	DefaultAxisMax = 100.0

	// GridDivisions splits the value axis into five bands,
	// giving six horizontal lines with both 0 and the maximum included
	GridDivisions = 5
)

// WithDefaults fills zero layout fields.
// Zero means unset, so a padding of 0 cannot be asked for; the smallest
// usable padding is any positive value. Negative values are left alone
// so validation can reject them.
func WithDefaults(p Mt.LineParams) Mt.LineParams {
	if p.Width == 0 {
		p.Width = DefaultWidth
	}
	if p.Height == 0 {
		p.Height = DefaultHeight
	}
	if p.PaddingTop == 0 {
		p.PaddingTop = DefaultPaddingTop
	}
	if p.PaddingLeft == 0 {
		p.PaddingLeft = DefaultPaddingLeft
	}
	if p.PaddingRight == 0 {
		p.PaddingRight = DefaultPaddingRight
	}
	if p.AxisMax == 0 {
		p.AxisMax = DefaultAxisMax
	}
	return p
}

// ValidateLine rejects parameters that would produce Inf or negative steps
func ValidateLine(p Mt.LineParams) error {
	if p.MaxXAxisValue <= 0 {
		return NewInputError("maxXAxisValue", float64(p.MaxXAxisValue), ErrInvalidAxisBounds)
	}
	if !finitePositive(p.MaxYAxisValue) {
		return NewInputError("maxYAxisValue", p.MaxYAxisValue, ErrInvalidAxisBounds)
	}
	if !finitePositive(p.AxisMax) {
		return NewInputError("axisMax", p.AxisMax, ErrInvalidAxisBounds)
	}
	if usable := p.Width - (p.PaddingLeft + p.PaddingRight); !finitePositive(usable) {
		return NewInputError("width", p.Width, ErrInvalidAxisBounds)
	}
	if usable := p.Height - p.PaddingTop; !finitePositive(usable) {
		return NewInputError("height", p.Height, ErrInvalidAxisBounds)
	}
	return nil
}

func finitePositive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0)
}

// NormalizeSeries rescales raw values to a percentage of maxY.
// Non-positive values map to 0. NaN and Inf fail closed to 0.
func NormalizeSeries(raw []float64, maxY float64) []float64 {
	values := make([]float64, len(raw))
	for i, v := range raw {
		switch {
		case math.IsNaN(v) || math.IsInf(v, 0):
			slog.Warn("Non-finite series value replaced with 0",
				slog.Int("index", i),
				slog.Float64("value", v))
			values[i] = 0
		case v > 0:
			values[i] = v * 100 / maxY
		default:
			values[i] = 0
		}
	}
	return values
}

// NewLineGeometry computes a complete geometry snapshot from parameters.
// It holds no state; the same params always give the same geometry.
func NewLineGeometry(p Mt.LineParams) (Mt.ChartGeometry, error) {
	p = WithDefaults(p)
	if err := ValidateLine(p); err != nil {
		return Mt.ChartGeometry{}, err
	}

	bounds := Mt.AxisBounds{Min: 0, Max: p.AxisMax}
	lines, err := HorizontalLines(bounds, GridDivisions)
	if err != nil {
		return Mt.ChartGeometry{}, err
	}

	variation := math.Abs(bounds.Max - bounds.Min)

	return Mt.ChartGeometry{
		StepX:            (p.Width - (p.PaddingLeft + p.PaddingRight)) / float64(p.MaxXAxisValue),
		StepY:            (p.Height - p.PaddingTop) / variation,
		Bounds:           bounds,
		HorizontalLines:  lines,
		NormalizedSeries: NormalizeSeries(p.ValueArray, p.MaxYAxisValue),
		PaddingLeft:      p.PaddingLeft,
		MaxXAxisValue:    p.MaxXAxisValue,
	}, nil
}

// Map places a normalized value at its slot.
// Values above the axis maximum are clamped here and only here,
// so the stroke, the fill and the markers always agree.
func Map(value float64, index int, g Mt.ChartGeometry) Mt.Point {
	v := math.Min(value, g.Bounds.Max)
	return Mt.Point{
		X: float64(index)*g.StepX + g.PaddingLeft,
		Y: -((v - g.Bounds.Min) * g.StepY),
	}
}

// MapSeries maps every normalized value in index order
func MapSeries(g Mt.ChartGeometry) []Mt.Point {
	pts := make([]Mt.Point, len(g.NormalizedSeries))
	for i, v := range g.NormalizedSeries {
		pts[i] = Map(v, i, g)
	}
	return pts
}
