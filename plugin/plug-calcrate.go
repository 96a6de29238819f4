package plugin

/*
	Delta and Rate

	Delta turns a cumulative counter series into per-slot changes,
	so a chart of totals can be drawn as a chart of activity.

	Rate reads one counter per fetch and keeps a rolling window
	of per-second rates between fetches.

	~~~ Plugin Reference Implementation ~~~
*/

import (
	"sync"
	"time"
)

type DeltaPlugin struct {
	MU      sync.Mutex
	PrevVal map[string]float64
}

// Transform is the main wrapper for the interface.
// The first slot is measured against the last value seen
// for this chart on an earlier call, or is 0 on the first call.
func (p *DeltaPlugin) Transform(chartID string, series []float64, _ time.Time) ([]float64, error) {
	p.MU.Lock()
	defer p.MU.Unlock()

	if p.PrevVal == nil {
		p.PrevVal = make(map[string]float64)
	}

	out := make([]float64, len(series))
	if len(series) == 0 {
		return out, nil
	}

	if prev, exists := p.PrevVal[chartID]; exists {
		out[0] = CalcDelta(series[0], prev)
	}
	for i := 1; i < len(series); i++ {
		out[i] = CalcDelta(series[i], series[i-1])
	}

	p.PrevVal[chartID] = series[len(series)-1]
	return out, nil
}

// CalcDelta is the change between two sequential counter readings
func CalcDelta(curr, prev float64) float64 {
	delta := curr - prev

	// Handle counter reset (to 0)
	if delta < 0 {
		delta = curr
	}

	return delta
}

// CalcRate is CalcDelta per second between two readings
func CalcRate(curr, prev float64, currtime, prevtime time.Time) float64 {
	timeDelta := currtime.Sub(prevtime).Seconds()
	if timeDelta <= 0 {
		return 0
	}
	return CalcDelta(curr, prev) / timeDelta
}

// The first slot has no earlier reading and is 0, so no priming is needed
func (p *DeltaPlugin) HysteresisReq() int { return 0 }
func (p *DeltaPlugin) Type() string       { return "delta" }

// DefaultRateWindow is how many rates a chart keeps when Window is unset
const DefaultRateWindow = 8

type RatePlugin struct {
	MU       sync.Mutex
	Window   int
	PrevVal  map[string]float64
	PrevTime map[string]time.Time
	History  map[string][]float64
}

// Transform takes the last reading of series as the counter's current value.
// The result is the window of rates seen so far, oldest first;
// the first call only records the reading and returns nothing.
func (p *RatePlugin) Transform(chartID string, series []float64, timestamp time.Time) ([]float64, error) {
	p.MU.Lock()
	defer p.MU.Unlock()

	if p.PrevVal == nil {
		p.PrevVal = make(map[string]float64)
		p.PrevTime = make(map[string]time.Time)
		p.History = make(map[string][]float64)
	}
	if len(series) == 0 {
		return []float64{}, nil
	}
	window := p.Window
	if window <= 0 {
		window = DefaultRateWindow
	}

	curr := series[len(series)-1]
	if prev, exists := p.PrevVal[chartID]; exists {
		hist := append(p.History[chartID], CalcRate(curr, prev, timestamp, p.PrevTime[chartID]))
		if len(hist) > window {
			hist = hist[len(hist)-window:]
		}
		p.History[chartID] = hist
	}
	p.PrevVal[chartID] = curr
	p.PrevTime[chartID] = timestamp

	out := make([]float64, len(p.History[chartID]))
	copy(out, p.History[chartID])
	return out, nil
}

func (p *RatePlugin) HysteresisReq() int { return 1 }
func (p *RatePlugin) Type() string       { return "rate" }
