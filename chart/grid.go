package contour

import (
	Mt "github.com/maroda/contour/types"
)

// HorizontalLines returns divisions+1 evenly spaced values
// from b.Min to b.Max inclusive, strictly increasing.
func HorizontalLines(b Mt.AxisBounds, divisions int) ([]float64, error) {
	if !(b.Max > b.Min) {
		return nil, NewInputError("bounds", b.Max, ErrInvalidAxisBounds)
	}
	if divisions <= 0 {
		return nil, NewInputError("divisions", float64(divisions), ErrInvalidAxisBounds)
	}

	step := (b.Max - b.Min) / float64(divisions)
	lines := make([]float64, divisions+1)
	for i := 0; i < divisions; i++ {
		lines[i] = b.Min + step*float64(i)
	}
	// the last line is exactly Max, not Min plus accumulated steps
	lines[divisions] = b.Max
	return lines, nil
}

// VerticalLines is one gridline index per x-axis slot
func VerticalLines(maxX int) []int {
	if maxX <= 0 {
		return []int{}
	}
	idx := make([]int, maxX)
	for i := range idx {
		idx[i] = i
	}
	return idx
}

// HorizontalSegments draws each horizontal line across every slot
func HorizontalSegments(g Mt.ChartGeometry) []Mt.Segment {
	x2 := float64(g.MaxXAxisValue) * g.StepX
	segs := make([]Mt.Segment, len(g.HorizontalLines))
	for i, v := range g.HorizontalLines {
		y := -((v - g.Bounds.Min) * g.StepY)
		segs[i] = Mt.Segment{X1: 0, Y1: y, X2: x2, Y2: y}
	}
	return segs
}

// VerticalSegments rise from the baseline to the top of the axis
func VerticalSegments(g Mt.ChartGeometry) []Mt.Segment {
	top := -((g.Bounds.Max - g.Bounds.Min) * g.StepY)
	lines := VerticalLines(g.MaxXAxisValue)
	segs := make([]Mt.Segment, len(lines))
	for i, idx := range lines {
		x := float64(idx)*g.StepX + g.PaddingLeft
		segs[i] = Mt.Segment{X1: x, Y1: 0, X2: x, Y2: top}
	}
	return segs
}
