package contour

import (
	"math"
	"regexp"

	Mt "github.com/maroda/contour/types"
)

// Defaults for the progress circle
const (
	DefaultRadius      = 150.0
	DefaultProgress    = 0.5
	DefaultStrokeWidth = 15.0
	DefaultStrokeColor = "#F2C94C"
	DefaultTrackColor  = "#f1f1f1"
	TrackFill          = "#ffffff"

	ProgressMin = 0.0
	ProgressMax = 1.0
)

var hexColor = regexp.MustCompile(`^#([0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

// ClampProgress keeps progress in [0,1]. NaN is treated as 0.
func ClampProgress(p float64) float64 {
	if math.IsNaN(p) {
		return ProgressMin
	}
	return math.Min(math.Max(p, ProgressMin), ProgressMax)
}

// Circumference of a circle of radius r
func Circumference(r float64) float64 {
	return 2 * math.Pi * r
}

// CircleDashOffset hides the part of the circumference not yet reached
func CircleDashOffset(r, progress float64) float64 {
	return Circumference(r) * (1 - ClampProgress(progress))
}

// BuildArc is a full circle around the origin drawn as two half arcs,
// starting at the top, so a dash offset can reveal any fraction of it
func BuildArc(r float64) string {
	rs := FormatNumber(r)
	return "M0,-" + rs +
		" A" + rs + "," + rs + " 0 1,0 0," + rs +
		" A" + rs + "," + rs + " 0 1,0 0,-" + rs
}

// ValidateProgress checks radius, stroke and colors.
// Progress itself is never an error; it is clamped.
func ValidateProgress(p Mt.ProgressParams) error {
	if !finitePositive(p.Radius) {
		return NewInputError("radius", p.Radius, ErrInvalidRadius)
	}
	if p.StrokeWidth < 0 || math.IsNaN(p.StrokeWidth) || math.IsInf(p.StrokeWidth, 0) {
		return NewInputError("strokeWidth", p.StrokeWidth, ErrInvalidStroke)
	}
	if !hexColor.MatchString(p.StrokeColor) {
		return NewInputError("strokeColor", p.StrokeColor, ErrInvalidColor)
	}
	if !hexColor.MatchString(p.TrackColor) {
		return NewInputError("trackColor", p.TrackColor, ErrInvalidColor)
	}
	return nil
}

// WithProgressDefaults fills empty colors, a zero radius and a zero stroke width
func WithProgressDefaults(p Mt.ProgressParams) Mt.ProgressParams {
	if p.Radius == 0 {
		p.Radius = DefaultRadius
	}
	if p.StrokeWidth == 0 {
		p.StrokeWidth = DefaultStrokeWidth
	}
	if p.StrokeColor == "" {
		p.StrokeColor = DefaultStrokeColor
	}
	if p.TrackColor == "" {
		p.TrackColor = DefaultTrackColor
	}
	return p
}

// NewCircleChart builds the complete circle snapshot
func NewCircleChart(p Mt.ProgressParams) (Mt.CircleChart, error) {
	if err := ValidateProgress(p); err != nil {
		return Mt.CircleChart{}, err
	}

	progress := ClampProgress(p.Progress)
	return Mt.CircleChart{
		Params:        p,
		Progress:      progress,
		Arc:           BuildArc(p.Radius),
		Circumference: Circumference(p.Radius),
		DashOffset:    CircleDashOffset(p.Radius, progress),
		Size:          p.Radius*2 + p.StrokeWidth,
		Translate:     p.Radius + p.StrokeWidth/2,
		Signature:     CircleSignature(p),
	}, nil
}
