package contour

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	Mc "github.com/maroda/contour/chart"
	Mt "github.com/maroda/contour/types"
)

var (
	ErrUnknownKind    = errors.New("unknown chart kind")
	ErrMissingID      = errors.New("chart id is required")
	ErrDuplicateChart = errors.New("duplicate chart id")
)

// ChartConfig is one chart definition from the config file or the API.
// Line fields are used when Kind is "line", progress fields for "circle".
type ChartConfig struct {
	ID   string       `json:"id"`
	Kind Mt.ChartKind `json:"kind"`

	Values        []float64 `json:"values,omitempty"`
	MaxXAxisValue int       `json:"maxXAxisValue,omitempty"`
	MaxYAxisValue float64   `json:"maxYAxisValue,omitempty"`
	Width         float64   `json:"width,omitempty"`
	Height        float64   `json:"height,omitempty"`
	PaddingTop    float64   `json:"paddingTop,omitempty"`
	PaddingLeft   float64   `json:"paddingLeft,omitempty"`
	PaddingRight  float64   `json:"paddingRight,omitempty"`
	AxisMax       float64   `json:"axisMax,omitempty"`

	Progress    float64 `json:"progress"`
	Radius      float64 `json:"radius,omitempty"`
	StrokeWidth float64 `json:"strokeWidth,omitempty"`
	StrokeColor string  `json:"strokeColor,omitempty"`
	TrackColor  string  `json:"trackColor,omitempty"`

	// Remote series, refreshed on an interval
	Source    string `json:"source,omitempty"`    // URL returning numbers or JSON
	Key       string `json:"key,omitempty"`       // JSON key path inside Source
	XLSX      string `json:"xlsx,omitempty"`      // spreadsheet path
	Sheet     string `json:"sheet,omitempty"`     // defaults to the first sheet
	Column    string `json:"column,omitempty"`    // column letter, defaults to A
	Transform string `json:"transform,omitempty"` // series transformer, see plugin.Transformers
}

// LineParams for the line pipeline
func (c ChartConfig) LineParams() Mt.LineParams {
	return Mt.LineParams{
		ValueArray:    c.Values,
		MaxXAxisValue: c.MaxXAxisValue,
		MaxYAxisValue: c.MaxYAxisValue,
		Width:         c.Width,
		Height:        c.Height,
		PaddingTop:    c.PaddingTop,
		PaddingLeft:   c.PaddingLeft,
		PaddingRight:  c.PaddingRight,
		AxisMax:       c.AxisMax,
	}
}

// ProgressParams for the circle pipeline, with defaults filled
func (c ChartConfig) ProgressParams() Mt.ProgressParams {
	return Mc.WithProgressDefaults(Mt.ProgressParams{
		Progress:    c.Progress,
		Radius:      c.Radius,
		StrokeWidth: c.StrokeWidth,
		StrokeColor: c.StrokeColor,
		TrackColor:  c.TrackColor,
	})
}

// HasRemote is true when the values come from a source that can change
func (c ChartConfig) HasRemote() bool {
	return c.Source != "" || c.XLSX != ""
}

// DefaultCharts are the two demo charts
func DefaultCharts() []ChartConfig {
	return []ChartConfig{
		{
			ID:            "line",
			Kind:          Mt.KindLine,
			Values:        []float64{10000, 20000, 60000},
			MaxXAxisValue: 7,
			MaxYAxisValue: 100000,
		},
		{
			ID:       "circle",
			Kind:     Mt.KindCircle,
			Progress: Mc.DefaultProgress,
		},
	}
}

// LoadConfigFileName pulls a given filename config off local disk
// Validation is performed on the file before opening
func LoadConfigFileName(filename string) ([]ChartConfig, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	// validation
	err = validateLoad(file)
	if err != nil {
		slog.Error("Validation failed", slog.Any("Error", err))
		return nil, err
	}

	return LoadConfig(file)
}

func validateLoad(file *os.File) error {
	// validate file
	info, err := file.Stat()
	if err != nil {
		slog.Error("could not stat file")
		return err
	}

	// validate size
	if info.Size() == 0 {
		slog.Error("file is empty")
		return errors.New("file is empty")
	}

	return nil
}

// LoadConfig decodes and checks a list of chart definitions
func LoadConfig(r io.Reader) ([]ChartConfig, error) {
	var config []ChartConfig
	decoder := json.NewDecoder(r)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&config); err != nil {
		slog.Error("could not decode file")
		return nil, err
	}

	if err := ValidateCharts(config); err != nil {
		return nil, err
	}
	return config, nil
}

// ValidateCharts checks IDs and kinds. Geometry is checked when charts are computed.
func ValidateCharts(cf []ChartConfig) error {
	seen := make(map[string]bool, len(cf))
	for i, c := range cf {
		if err := c.validate(); err != nil {
			return fmt.Errorf("chart %d: %w", i, err)
		}
		if seen[c.ID] {
			return fmt.Errorf("%s: %w", c.ID, ErrDuplicateChart)
		}
		seen[c.ID] = true
	}
	return nil
}

func (c ChartConfig) validate() error {
	if c.ID == "" {
		return ErrMissingID
	}
	switch c.Kind {
	case Mt.KindLine, Mt.KindCircle:
		return nil
	}
	return fmt.Errorf("%s %q: %w", c.ID, c.Kind, ErrUnknownKind)
}
