package plugin

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	svg "github.com/ajstarks/svgo/float"
	Mc "github.com/maroda/contour/chart"
	Mt "github.com/maroda/contour/types"
)

var (
	ErrEmptyFrame       = errors.New("frame has no chart")
	ErrQueryUnsupported = errors.New("output does not support queries")
)

const (
	svgDecimals       = 3
	gridStrokeWidth   = 1
	markerStrokeWidth = 2
	markerFill        = "#fff"
)

// errWriter keeps the first write error, svgo does not return them
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) Write(p []byte) (int, error) {
	if ew.err != nil {
		return 0, ew.err
	}
	n, err := ew.w.Write(p)
	ew.err = err
	return n, err
}

// RenderFrame writes a complete SVG document for one frame
func RenderFrame(w io.Writer, f *Mt.Frame) error {
	ew := &errWriter{w: w}
	canvas := svg.New(ew)
	canvas.Decimals = svgDecimals

	switch {
	case f.Line != nil:
		renderLine(canvas, f)
	case f.Circle != nil:
		renderCircle(canvas, f)
	default:
		return fmt.Errorf("%s: %w", f.ChartID, ErrEmptyFrame)
	}
	return ew.err
}

func attr(name string, v any) string {
	switch tv := v.(type) {
	case float64:
		return name + `="` + Mc.FormatNumber(tv) + `"`
	case int:
		return fmt.Sprintf(`%s="%d"`, name, tv)
	default:
		return fmt.Sprintf(`%s="%v"`, name, tv)
	}
}

func renderLine(canvas *svg.SVG, f *Mt.Frame) {
	lc := f.Line
	p := lc.Params

	canvas.Start(p.Width, p.Height)
	if f.ChartID != "" {
		canvas.Title(f.ChartID)
	}
	canvas.Gtransform("translate(0," + Mc.FormatNumber(p.Height) + ")")

	for _, s := range append(append([]Mt.Segment{}, lc.HGrid...), lc.VGrid...) {
		canvas.Line(s.X1, s.Y1, s.X2, s.Y2,
			attr("stroke", Mc.GridColor),
			attr("stroke-width", gridStrokeWidth))
	}

	if lc.Path != "" {
		canvas.Path(lc.Path,
			attr("fill", "none"),
			attr("stroke", Mc.StrokeColor),
			attr("stroke-width", Mc.StrokeWidth),
			attr("stroke-dasharray", f.DashArray),
			attr("stroke-dashoffset", f.DashOffset))
	}

	poly := Mc.PolygonPoints(lc.Geometry)
	xs := make([]float64, len(poly))
	ys := make([]float64, len(poly))
	for i, pt := range poly {
		xs[i], ys[i] = pt.X, pt.Y
	}
	canvas.Polygon(xs, ys,
		attr("fill", Mc.FillColor),
		attr("opacity", f.Opacity))

	for _, m := range lc.Markers {
		canvas.Circle(m.Center.X, m.Center.Y, m.Radius,
			attr("stroke", m.Stroke),
			attr("stroke-width", markerStrokeWidth),
			attr("fill", markerFill))
	}

	canvas.Gend()
	canvas.End()
}

func renderCircle(canvas *svg.SVG, f *Mt.Frame) {
	c := f.Circle
	p := c.Params

	canvas.Start(c.Size, c.Size)
	if f.ChartID != "" {
		canvas.Title(f.ChartID)
	}
	canvas.Gtransform("translate(" + Mc.FormatNumber(c.Translate) + "," + Mc.FormatNumber(c.Translate) + ")")

	canvas.Circle(0, 0, p.Radius,
		attr("fill", Mc.TrackFill),
		attr("stroke", p.TrackColor),
		attr("stroke-width", p.StrokeWidth),
		attr("stroke-linecap", "round"))
	canvas.Path(c.Arc,
		attr("fill", "transparent"),
		attr("stroke", p.StrokeColor),
		attr("stroke-width", p.StrokeWidth),
		attr("stroke-dasharray", c.Circumference),
		attr("stroke-dashoffset", f.DashOffset))

	canvas.Gend()
	canvas.End()
}

// SVGOutput keeps the latest frame of each chart as <dir>/<id>.svg
type SVGOutput struct {
	Dir string
}

func NewSVGOutput(dir string) (*SVGOutput, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		slog.Error("SVGOutput could not create directory", slog.Any("error", err))
		return nil, err
	}
	return &SVGOutput{Dir: dir}, nil
}

// FileName for a chart ID, never escaping Dir
func (so *SVGOutput) FileName(chartID string) string {
	name := strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == os.PathSeparator {
			return '_'
		}
		return r
	}, chartID)
	if name == "" || name == "." || name == ".." {
		name = "chart"
	}
	return filepath.Join(so.Dir, name+".svg")
}

func (so *SVGOutput) WriteFrame(frame *Mt.Frame) error {
	name := so.FileName(frame.ChartID)
	file, err := os.Create(name)
	if err != nil {
		slog.Error("SVGOutput could not create file",
			slog.String("file", name),
			slog.Any("error", err))
		return err
	}

	bw := bufio.NewWriter(file)
	renderErr := RenderFrame(bw, frame)
	if renderErr == nil {
		renderErr = bw.Flush()
	}
	closeErr := file.Close()

	if renderErr != nil {
		return fmt.Errorf("render %s: %w", name, renderErr)
	}
	return closeErr
}

func (so *SVGOutput) WriteBatch(frames []*Mt.Frame) error {
	for _, f := range frames {
		if err := so.WriteFrame(f); err != nil {
			return err
		}
	}
	return nil
}

func (so *SVGOutput) QueryRange(start, end time.Time) ([]*Mt.Frame, error) {
	return nil, ErrQueryUnsupported
}

func (so *SVGOutput) Flush() error { return nil }
func (so *SVGOutput) Close() error { return nil }
func (so *SVGOutput) Type() string { return "SVG" }
