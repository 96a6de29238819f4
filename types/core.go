package types

/*

	These are the "immutable" core types of Contour,
	provided for cross-package use (e.g. Plugins) and testing.

	There are no functions defined here.
	Constructors and the geometry math live in chart/,
	animation state transitions live in animate/.

*/

import "time"

// ChartKind identifies which pipeline produced a snapshot
type ChartKind string

const (
	KindLine   ChartKind = "line"
	KindCircle ChartKind = "circle"
)

// AxisBounds is the value range mapped onto the chart height.
// Max must be greater than Min.
type AxisBounds struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Point is a coordinate in local SVG space.
// The line chart group is translated to its bottom-left corner,
// so Y is zero on the baseline and negative above it.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Segment is a straight line between two points, used for gridlines
type Segment struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

// Marker is the small circle drawn on each series point
type Marker struct {
	Center Point   `json:"center"`
	Radius float64 `json:"radius"`
	AtMax  bool    `json:"atMax"`  // normalized value reached the axis maximum
	Stroke string  `json:"stroke"` // hex color
}

// LineParams is everything the line pipeline needs.
// Zero values for the layout fields are replaced by the defaults,
// including the paddings: a zero padding is not expressible.
type LineParams struct {
	ValueArray    []float64 `json:"valueArray"`
	MaxXAxisValue int       `json:"maxXAxisValue"` // number of x-axis slots
	MaxYAxisValue float64   `json:"maxYAxisValue"` // normalization ceiling for raw values
	Width         float64   `json:"width,omitempty"`
	Height        float64   `json:"height,omitempty"`
	PaddingTop    float64   `json:"paddingTop,omitempty"`
	PaddingLeft   float64   `json:"paddingLeft,omitempty"`
	PaddingRight  float64   `json:"paddingRight,omitempty"`
	AxisMax       float64   `json:"axisMax,omitempty"` // top of the normalized axis, 100 by default
}

// ChartGeometry is derived from LineParams and recomputed on every change.
type ChartGeometry struct {
	StepX            float64    `json:"stepX"`
	StepY            float64    `json:"stepY"`
	Bounds           AxisBounds `json:"bounds"`
	HorizontalLines  []float64  `json:"horizontalLines"`
	NormalizedSeries []float64  `json:"normalizedSeries"`
	PaddingLeft      float64    `json:"paddingLeft"`
	MaxXAxisValue    int        `json:"maxXAxisValue"`
}

// LineChart is one complete render pass of the line pipeline
type LineChart struct {
	Params     LineParams    `json:"params"`
	Geometry   ChartGeometry `json:"geometry"`
	Path       string        `json:"path"`
	Polygon    string        `json:"polygon"`
	Points     []Point       `json:"points"`
	Markers    []Marker      `json:"markers"`
	HGrid      []Segment     `json:"hgrid"`
	VGrid      []Segment     `json:"vgrid"`
	PathLength float64       `json:"pathLength"`
	Signature  uint64        `json:"signature"`
}

// ProgressParams is everything the circle pipeline needs
type ProgressParams struct {
	Progress    float64 `json:"progress"` // clamped to [0,1]
	Radius      float64 `json:"radius"`
	StrokeWidth float64 `json:"strokeWidth"`
	StrokeColor string  `json:"strokeColor"`
	TrackColor  string  `json:"trackColor"`
}

// CircleChart is one complete render pass of the circle pipeline
type CircleChart struct {
	Params        ProgressParams `json:"params"`
	Progress      float64        `json:"progress"` // clamped
	Arc           string         `json:"arc"`
	Circumference float64        `json:"circumference"`
	DashOffset    float64        `json:"dashOffset"`
	Size          float64        `json:"size"`      // svg width and height
	Translate     float64        `json:"translate"` // group offset to the circle center
	Signature     uint64         `json:"signature"`
}

// AnimationState is the reveal progress of one chart instance
type AnimationState struct {
	ElapsedFraction float64 `json:"elapsedFraction"` // 0 right after a reset, 1 when settled
}

// Frame is what a rendering surface draws at one instant.
// Exactly one of Line or Circle is set, matching Kind.
type Frame struct {
	ChartID    string         `json:"chartId"`
	Kind       ChartKind      `json:"kind"`
	Generation uint64         `json:"generation"`
	Timestamp  time.Time      `json:"timestamp"`
	State      AnimationState `json:"state"`
	DashArray  float64        `json:"dashArray"`
	DashOffset float64        `json:"dashOffset"`
	Opacity    float64        `json:"opacity"`
	Progress   float64        `json:"progress,omitempty"` // displayed circle progress
	Line       *LineChart     `json:"line,omitempty"`
	Circle     *CircleChart   `json:"circle,omitempty"`
}
