package contour

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"runtime/debug"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	Ma "github.com/maroda/contour/animate"
	Mo "github.com/maroda/contour/obvy"
	Mp "github.com/maroda/contour/plugin"
	Ms "github.com/maroda/contour/server"
	Mt "github.com/maroda/contour/types"
	"golang.org/x/sync/errgroup"
)

const (
	screenGutter = 2
	statusRows   = 2
)

// View is updated by whatever is in the ChartSet
type View struct {
	MU         sync.Mutex           // State locks to read data
	Charts     *Ms.ChartSet         // every chart and its animation
	Screen     tcell.Screen         // the screen itself, nil when headless
	Stats      *Mo.StatsInternal    // Internal status for prometheus
	Recorder   Mp.OutputAdapter     // optional frame recorder
	Supervisor *AnimationSupervisor // frame and fetch tickers
	Clock      Ma.Clock             // time source for frames
	server     *http.Server         // API, websocket and metrics server
	Selected   int                  // index into Charts.IDs() shown in the preview
	ShowInfo   bool                 // Display chart details
	quit       chan struct{}        // closed by ESC or Ctrl-C
	quitOnce   sync.Once
}

// Box is a rectangle of terminal cells
type Box struct {
	X, Y, W, H int
}

// NewView wraps a ChartSet. The screen may be nil for the headless server.
func NewView(cs *Ms.ChartSet, stats *Mo.StatsInternal, screen tcell.Screen) (*View, error) {
	if cs == nil {
		slog.Error("Could not get a ChartSet for display")
		return nil, errors.New("chart set not found")
	}
	if stats == nil {
		stats = Mo.NewStatsInternal()
	}
	clock := cs.Clock
	if clock == nil {
		clock = Ma.SystemClock{}
	}
	return &View{
		Charts: cs,
		Screen: screen,
		Stats:  stats,
		Clock:  clock,
		quit:   make(chan struct{}),
	}, nil
}

// NewTTY opens the real terminal
func NewTTY() (tcell.Screen, error) {
	defStyle := tcell.StyleDefault.Background(tcell.ColorReset).Foreground(tcell.ColorReset)

	s, err := tcell.NewScreen()
	if err != nil {
		slog.Error("Could not get new screen", slog.Any("Error", err))
		return nil, err
	}
	if err := s.Init(); err != nil {
		slog.Error("Could not initialize screen", slog.Any("Error", err))
		return nil, err
	}
	s.SetStyle(defStyle)
	s.EnableMouse()
	s.Clear()

	return s, nil
}

// WriteBar fills a rectangle with spaces in style
// x1 = starting X axis (from left), x2 = ending X axis (from left)
// y1 = starting Y axis (from top), y2 = ending Y axis (from top)
func WriteBar(s tcell.Screen, x1, y1, x2, y2 int, style tcell.Style) {
	for row := y1; row < y2; row++ {
		for col := x1; col < x2; col++ {
			s.SetContent(col, row, ' ', nil, style)
		}
	}
}

////////// RASTER

// CellFor maps a point in local chart space onto a cell inside box.
// The line chart's origin is its bottom-left corner with Y growing upward as negative values.
func CellFor(pt Mt.Point, p Mt.LineParams, box Box) (int, int) {
	if p.Width <= 0 || p.Height <= 0 || box.W <= 0 || box.H <= 0 {
		return box.X, box.Y
	}
	x := box.X + int(math.Round(pt.X/p.Width*float64(box.W-1)))
	y := box.Y + box.H - 1 - int(math.Round(-pt.Y/p.Height*float64(box.H-1)))
	return clampInt(x, box.X, box.X+box.W-1), clampInt(y, box.Y, box.Y+box.H-1)
}

// TracePath walks the polyline and returns points every step units,
// stopping once revealed units of its length have been covered.
func TracePath(points []Mt.Point, revealed, step float64) []Mt.Point {
	if len(points) == 0 || revealed <= 0 || step <= 0 {
		return nil
	}
	out := []Mt.Point{points[0]}
	walked := 0.0

	for i := 1; i < len(points); i++ {
		a, b := points[i-1], points[i]
		seg := math.Hypot(b.X-a.X, b.Y-a.Y)
		if seg == 0 {
			continue
		}
		for d := step; d < seg; d += step {
			if walked+d > revealed {
				return out
			}
			t := d / seg
			out = append(out, Mt.Point{X: a.X + (b.X-a.X)*t, Y: a.Y + (b.Y-a.Y)*t})
		}
		if walked+seg > revealed {
			return out
		}
		walked += seg
		out = append(out, b)
	}
	return out
}

// ArcCells lists the cells of an ellipse starting at 12 o'clock and
// running counterclockwise, like the SVG arc, for progress of a full turn
func ArcCells(cx, cy, rx, ry int, progress float64) [][2]int {
	progress = math.Max(0, math.Min(progress, 1))
	steps := int(math.Ceil(2 * math.Pi * float64(max(rx, ry)) * 2))
	n := int(math.Round(float64(steps) * progress))

	var cells [][2]int
	seen := make(map[[2]int]bool)
	for i := 0; i < n; i++ {
		theta := 2 * math.Pi * float64(i) / float64(steps)
		c := [2]int{
			cx - int(math.Round(math.Sin(theta)*float64(rx))),
			cy - int(math.Round(math.Cos(theta)*float64(ry))),
		}
		if !seen[c] {
			seen[c] = true
			cells = append(cells, c)
		}
	}
	return cells
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

////////// DRAW

func (v *View) DrawText(x1, y1, x2, y2 int, text string) {
	row := y1
	col := x1
	style := tcell.StyleDefault.Background(tcell.ColorBlack).Foreground(tcell.ColorLightSteelBlue)
	for _, r := range text {
		v.Screen.SetContent(col, row, r, nil, style)
		col++
		if col >= x2 {
			row++
			col = x1
		}
		if row > y2 {
			break
		}
	}
}

func (v *View) DrawViewBorder(width, height int) {
	hvStyle := tcell.StyleDefault.Background(tcell.ColorBlack).Foreground(tcell.ColorLightSeaGreen)
	v.Screen.SetContent(0, 0, tcell.RuneULCorner, nil, hvStyle)
	for i := 1; i < width; i++ {
		v.Screen.SetContent(i, 0, tcell.RuneHLine, nil, hvStyle)
		v.Screen.SetContent(i, height, tcell.RuneHLine, nil, hvStyle)
	}
	v.Screen.SetContent(width, 0, tcell.RuneURCorner, nil, hvStyle)

	for i := 1; i < height; i++ {
		v.Screen.SetContent(0, i, tcell.RuneVLine, nil, hvStyle)
		v.Screen.SetContent(width, i, tcell.RuneVLine, nil, hvStyle)
	}

	v.Screen.SetContent(0, height, tcell.RuneLLCorner, nil, hvStyle)
	v.Screen.SetContent(width, height, tcell.RuneLRCorner, nil, hvStyle)
}

// DrawLineFrame rasterizes the revealed part of a line chart into box
func (v *View) DrawLineFrame(f Mt.Frame, box Box) {
	lc := f.Line
	if lc == nil {
		return
	}
	p := lc.Params

	gridStyle := tcell.StyleDefault.Foreground(tcell.ColorDarkSlateGray)
	for _, s := range lc.HGrid {
		x1, y := CellFor(Mt.Point{X: s.X1, Y: s.Y1}, p, box)
		x2, _ := CellFor(Mt.Point{X: s.X2, Y: s.Y2}, p, box)
		for x := x1; x <= x2; x++ {
			v.Screen.SetContent(x, y, '·', nil, gridStyle)
		}
	}

	// the fill fades in with the line, skipped until it is half visible
	if f.Opacity >= 0.5 {
		fillStyle := tcell.StyleDefault.Foreground(tcell.ColorPaleTurquoise).Dim(true)
		for _, pt := range TracePath(lc.Points, lc.PathLength, 1) {
			x, top := CellFor(pt, p, box)
			_, base := CellFor(Mt.Point{X: pt.X}, p, box)
			for y := top + 1; y <= base; y++ {
				v.Screen.SetContent(x, y, '░', nil, fillStyle)
			}
		}
	}

	revealed := f.DashArray - f.DashOffset
	lineStyle := tcell.StyleDefault.Foreground(tcell.ColorLightSeaGreen)
	for _, pt := range TracePath(lc.Points, revealed, 1) {
		x, y := CellFor(pt, p, box)
		v.Screen.SetContent(x, y, '•', nil, lineStyle)
	}

	for _, m := range lc.Markers {
		style := tcell.StyleDefault.Foreground(tcell.ColorLightSeaGreen)
		if m.AtMax {
			style = tcell.StyleDefault.Foreground(tcell.ColorRed)
		}
		x, y := CellFor(m.Center, p, box)
		v.Screen.SetContent(x, y, 'o', nil, style)
	}
}

// DrawCircleFrame draws the track and the displayed progress of a circle chart
func (v *View) DrawCircleFrame(f Mt.Frame, box Box) {
	if f.Circle == nil {
		return
	}
	ry := (box.H - 1) / 2
	rx := ry * 2 // cells are about twice as tall as wide
	if rx > (box.W-1)/2 {
		rx = (box.W - 1) / 2
		ry = rx / 2
	}
	cx, cy := box.X+box.W/2, box.Y+box.H/2

	trackStyle := tcell.StyleDefault.Foreground(tcell.ColorDarkSlateGray)
	for _, c := range ArcCells(cx, cy, rx, ry, 1) {
		v.Screen.SetContent(c[0], c[1], '·', nil, trackStyle)
	}

	arcStyle := tcell.StyleDefault.Foreground(tcell.ColorGold)
	for _, c := range ArcCells(cx, cy, rx, ry, f.Progress) {
		v.Screen.SetContent(c[0], c[1], '●', nil, arcStyle)
	}

	label := fmt.Sprintf("%v%%", Ms.FloatPrecise(f.Progress*100, 1))
	v.DrawText(cx-len(label)/2, cy, cx+len(label), cy, label)
}

// DrawStatus shows the animation state of the selected chart
func (v *View) DrawStatus(f Mt.Frame, y, width int) {
	frac := f.State.ElapsedFraction
	status := fmt.Sprintf(" %s  %s  gen %d  %v%% ", f.ChartID, f.Kind, f.Generation, Ms.FloatPrecise(frac*100, 2))
	v.DrawText(1, y, width, y, status)

	barX := len(status) + 2
	barW := width - barX - 2
	if barW > 0 {
		WriteBar(v.Screen, barX, y, barX+barW, y+1, tcell.StyleDefault.Background(tcell.ColorDarkSlateGray))
		WriteBar(v.Screen, barX, y, barX+int(float64(barW)*frac), y+1, tcell.StyleDefault.Background(tcell.ColorLightSeaGreen))
	}
}

func (v *View) drawInfo(f Mt.Frame, y, width int) {
	var info string
	switch {
	case f.Line != nil:
		info = fmt.Sprintf("points %d  max %v  length %v", len(f.Line.Points),
			f.Line.Params.MaxYAxisValue, Ms.FloatPrecise(f.Line.PathLength, 2))
	case f.Circle != nil:
		info = fmt.Sprintf("radius %v  stroke %v  target %v", f.Circle.Params.Radius,
			f.Circle.Params.StrokeWidth, Ms.FloatPrecise(f.Circle.Progress, 3))
	}
	v.DrawText(1, y, width, y, info)
}

// SelectedID of the chart in the preview, empty without charts
func (v *View) SelectedID() string {
	ids := v.Charts.IDs()
	if len(ids) == 0 {
		return ""
	}
	v.MU.Lock()
	defer v.MU.Unlock()
	if v.Selected >= len(ids) || v.Selected < 0 {
		v.Selected = 0
	}
	return ids[v.Selected]
}

// DrawPreview draws the selected chart at now
func (v *View) DrawPreview(now time.Time) {
	width, height := v.GetScreenSize()
	v.DrawViewBorder(width-1, height-1)

	id := v.SelectedID()
	if id == "" {
		v.DrawText(2, 1, width-2, 1, "no charts")
		return
	}
	f, err := v.Charts.Frame(id, now)
	if err != nil {
		slog.Debug("Selected chart went away", slog.String("chart", id))
		return
	}

	box := Box{X: screenGutter, Y: screenGutter, W: width - 2*screenGutter, H: height - 2*screenGutter - statusRows}
	switch f.Kind {
	case Mt.KindLine:
		v.DrawLineFrame(f, box)
	case Mt.KindCircle:
		v.DrawCircleFrame(f, box)
	}

	v.DrawStatus(f, height-screenGutter-1, width-2)

	v.MU.Lock()
	showInfo := v.ShowInfo
	v.MU.Unlock()
	if showInfo {
		v.drawInfo(f, 1, width-2)
	}

	v.DrawText(1, height-1, width, height+10, "/tab/ next | /r/ replay | /i/ info | /ESC/ to quit")
	v.DrawText(width-10, height-1, width, height+10, "CONTOUR")
}

func (v *View) GetScreenSize() (int, int) {
	return v.Screen.Size()
}

func (v *View) ResizeScreen() {
	v.Screen.Sync()
	v.UpdateScreen()
}

func (v *View) UpdateScreen() {
	if v.Screen == nil {
		return
	}
	v.Screen.Clear()
	v.DrawPreview(v.Clock.Now())
	v.Screen.Show()
}

////////// EVENTS

// Quit ends the preview, safe to call more than once
func (v *View) Quit() {
	v.quitOnce.Do(func() { close(v.quit) })
}

// Done is closed once Quit is called
func (v *View) Done() <-chan struct{} {
	return v.quit
}

// HandleKey applies one key press. It returns false once the view should quit.
func (v *View) HandleKey(ev *tcell.EventKey) bool {
	if ev.Key() == tcell.KeyEscape || ev.Key() == tcell.KeyCtrlC {
		v.Quit()
		return false
	}

	switch {
	case ev.Key() == tcell.KeyTab:
		n := len(v.Charts.IDs())
		v.MU.Lock()
		if n > 0 {
			v.Selected = (v.Selected + 1) % n
		}
		v.MU.Unlock()
	case ev.Rune() == 'i':
		v.MU.Lock()
		v.ShowInfo = !v.ShowInfo
		v.MU.Unlock()
	case ev.Rune() == 'r':
		if id := v.SelectedID(); id != "" {
			if err := v.Charts.Replay(id); err != nil {
				slog.Error("Could not replay chart", slog.String("chart", id), slog.Any("Error", err))
			}
		}
	}
	return true
}

func (v *View) handleKeyBoardEvent() {
	for {
		ev := v.Screen.PollEvent()
		switch ev := ev.(type) {
		case nil:
			// screen finalized
			return
		case *tcell.EventResize:
			v.ResizeScreen()
		case *tcell.EventKey:
			if !v.HandleKey(ev) {
				return
			}
		}
	}
}

// run redraws on every frame tick until ctx ends or the view quits
func (v *View) run(ctx context.Context, interval time.Duration) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Panic in run loop", slog.Any("panic", r))
			slog.Error("Recovered from panic", slog.String("stack", string(debug.Stack())))
			v.Quit()
		}
	}()

	slog.Info("Starting preview")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			v.UpdateScreen()
		case <-ctx.Done():
			return
		case <-v.quit:
			return
		}
	}
}

////////// ENTRY

// Options for the long running surfaces
type Options struct {
	Addr          string // empty disables the HTTP server
	FrameInterval time.Duration
	FetchInterval time.Duration
	Recorder      Mp.OutputAdapter
}

func (v *View) newServer(addr string) *http.Server {
	v.server = &http.Server{
		Addr:              addr,
		Handler:           v.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return v.server
}

// Serve runs the HTTP server and the supervisor until ctx ends
func Serve(ctx context.Context, cs *Ms.ChartSet, stats *Mo.StatsInternal, opts Options) error {
	view, err := NewView(cs, stats, nil)
	if err != nil {
		return err
	}
	view.Recorder = opts.Recorder
	as := view.NewAnimationSupervisor(opts.FrameInterval, opts.FetchInterval)
	srv := view.newServer(opts.Addr)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("Starting contour web server...", slog.String("Port", opts.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Could not start web server", slog.Any("Error", err))
			return err
		}
		return nil
	})

	g.Go(func() error {
		as.Start()
		<-gctx.Done()
		as.Stop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// StartPreview runs the terminal preview on screen, with the HTTP server when opts.Addr is set.
// It returns when the user quits or ctx ends.
func StartPreview(ctx context.Context, cs *Ms.ChartSet, stats *Mo.StatsInternal, screen tcell.Screen, opts Options) error {
	view, err := NewView(cs, stats, screen)
	if err != nil {
		return err
	}
	defer screen.Fini()

	view.Recorder = opts.Recorder
	as := view.NewAnimationSupervisor(opts.FrameInterval, opts.FetchInterval)

	g, gctx := errgroup.WithContext(ctx)

	if opts.Addr != "" {
		srv := view.newServer(opts.Addr)
		g.Go(func() error {
			slog.Info("Starting contour stats endpoint...", slog.String("Port", opts.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("Could not start stats endpoint", slog.Any("Error", err))
				return err
			}
			return nil
		})
		g.Go(func() error {
			select {
			case <-gctx.Done():
			case <-view.Done():
			}
			return srv.Close()
		})
	}

	as.Start()
	defer as.Stop()

	go view.handleKeyBoardEvent()

	g.Go(func() error {
		view.run(gctx, opts.FrameInterval)
		view.Quit()
		return nil
	})

	return g.Wait()
}
