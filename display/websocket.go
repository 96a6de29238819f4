package contour

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	Mt "github.com/maroda/contour/types"
)

// wsInterval is how often frames are pushed to a browser
const wsInterval = 50 * time.Millisecond

// FrameData is the compact per-tick view of a chart for browser drawing.
// Static geometry is only sent when the generation changes.
type FrameData struct {
	ID         string       `json:"id"`
	Kind       Mt.ChartKind `json:"kind"`
	Generation uint64       `json:"generation"`
	Fraction   float64      `json:"fraction"`
	DashArray  float64      `json:"dashArray"`
	DashOffset float64      `json:"dashOffset"`
	Opacity    float64      `json:"opacity"`
	Progress   float64      `json:"progress,omitempty"`
	Path       string       `json:"path,omitempty"`
	Polygon    string       `json:"polygon,omitempty"`
	Markers    []Mt.Marker  `json:"markers,omitempty"`
	HGrid      []Mt.Segment `json:"hgrid,omitempty"`
	VGrid      []Mt.Segment `json:"vgrid,omitempty"`
	Arc        string       `json:"arc,omitempty"`

	// circle layout and colors
	Style     *Mt.ProgressParams `json:"style,omitempty"`
	Size      float64            `json:"size,omitempty"`
	Translate float64            `json:"translate,omitempty"`
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

func (v *View) WebsocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	// the reader notices when the browser goes away
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	sent := make(map[string]uint64)
	ticker := time.NewTicker(wsInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			data := v.GetFrameData(sent)
			if err := conn.WriteJSON(data); err != nil {
				slog.Debug("Websocket closed", slog.Any("Error", err))
				return
			}
		case <-closed:
			return
		case <-r.Context().Done():
			return
		}
	}
}

// GetFrameData samples every chart now. sent tracks the generation each
// chart's geometry was last sent at and is updated in place; nil sends it always.
func (v *View) GetFrameData(sent map[string]uint64) []FrameData {
	if v.Charts == nil {
		return []FrameData{}
	}

	frames := v.Charts.Frames(v.Clock.Now())
	out := make([]FrameData, 0, len(frames))
	for _, f := range frames {
		fd := FrameData{
			ID:         f.ChartID,
			Kind:       f.Kind,
			Generation: f.Generation,
			Fraction:   f.State.ElapsedFraction,
			DashArray:  f.DashArray,
			DashOffset: f.DashOffset,
			Opacity:    f.Opacity,
			Progress:   f.Progress,
		}

		if last, ok := sent[f.ChartID]; !ok || last != f.Generation || sent == nil {
			switch {
			case f.Line != nil:
				fd.Path = f.Line.Path
				fd.Polygon = f.Line.Polygon
				fd.Markers = f.Line.Markers
				fd.HGrid = f.Line.HGrid
				fd.VGrid = f.Line.VGrid
			case f.Circle != nil:
				style := f.Circle.Params
				fd.Arc = f.Circle.Arc
				fd.Style = &style
				fd.Size = f.Circle.Size
				fd.Translate = f.Circle.Translate
			}
			if sent != nil {
				sent[f.ChartID] = f.Generation
			}
		}
		out = append(out, fd)
	}
	return out
}
