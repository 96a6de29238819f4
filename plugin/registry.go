package plugin

import (
	"fmt"
	"time"
)

// Transformers is a global map of SeriesTransformer plugins.
var Transformers = map[string]func() SeriesTransformer{
	"delta": func() SeriesTransformer {
		return &DeltaPlugin{}
	},
	"rate": func() SeriesTransformer {
		return &RatePlugin{}
	},
	"none": func() SeriesTransformer {
		return &PassthroughPlugin{}
	},
}

func TransformerLookup(name string) (SeriesTransformer, error) {
	if name == "" {
		name = "none"
	}
	factory, ok := Transformers[name]
	if !ok {
		return nil, fmt.Errorf("unknown transformer: %s", name)
	}
	return factory(), nil
}

// PassthroughPlugin returns a copy of the series
type PassthroughPlugin struct{}

func (p *PassthroughPlugin) Transform(chartID string, series []float64, _ time.Time) ([]float64, error) {
	out := make([]float64, len(series))
	copy(out, series)
	return out, nil
}

func (p *PassthroughPlugin) HysteresisReq() int { return 0 }
func (p *PassthroughPlugin) Type() string       { return "none" }
