package contour

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	Ma "github.com/maroda/contour/animate"
	Mc "github.com/maroda/contour/chart"
	Mo "github.com/maroda/contour/obvy"
	Mp "github.com/maroda/contour/plugin"
	Mt "github.com/maroda/contour/types"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var ErrUnknownChart = errors.New("unknown chart")

// errStaleRefresh drops a refresh whose chart changed while it fetched
var errStaleRefresh = errors.New("chart changed during refresh")

// Snapshot is one computed render pass, either kind
type Snapshot struct {
	Line      *Mt.LineChart
	Circle    *Mt.CircleChart
	Signature uint64
}

// Compute runs the pipeline for cfg's kind. It holds no locks.
func Compute(cfg ChartConfig) (Snapshot, error) {
	switch cfg.Kind {
	case Mt.KindLine:
		lc, err := Mc.NewLineChart(cfg.LineParams(), nil)
		if err != nil {
			return Snapshot{}, err
		}
		return Snapshot{Line: &lc, Signature: lc.Signature}, nil
	case Mt.KindCircle:
		cc, err := Mc.NewCircleChart(cfg.ProgressParams())
		if err != nil {
			return Snapshot{}, err
		}
		return Snapshot{Circle: &cc, Signature: cc.Signature}, nil
	}
	return Snapshot{}, fmt.Errorf("%s %q: %w", cfg.ID, cfg.Kind, ErrUnknownKind)
}

// Instance is one chart with its own animation
type Instance struct {
	MU          sync.RWMutex
	Config      ChartConfig
	Snapshot    Snapshot
	Driver      *Ma.Driver
	Tween       *Ma.Tween
	Transformer Mp.SeriesTransformer
	Seen        int    // series the transformer has taken
	Revision    uint64 // bumped by every update
	Updated     time.Time
}

// ChartSet holds every chart instance.
// MU guards the map and order; each Instance guards itself.
type ChartSet struct {
	MU     sync.RWMutex
	Charts map[string]*Instance
	Order  []string
	Clock  Ma.Clock
	Stats  *Mo.StatsInternal // optional
	Client HTTPClient        // optional, for remote sources
}

func NewChartSet(clock Ma.Clock, stats *Mo.StatsInternal) *ChartSet {
	if clock == nil {
		clock = Ma.SystemClock{}
	}
	return &ChartSet{
		Charts: make(map[string]*Instance),
		Clock:  clock,
		Stats:  stats,
	}
}

// NewChartSetFromConfig validates and computes every chart up front
func NewChartSetFromConfig(ctx context.Context, cf []ChartConfig, clock Ma.Clock, stats *Mo.StatsInternal) (*ChartSet, error) {
	if err := ValidateCharts(cf); err != nil {
		return nil, err
	}
	cs := NewChartSet(clock, stats)
	for _, c := range cf {
		if err := cs.Update(ctx, c); err != nil {
			return nil, err
		}
	}
	return cs, nil
}

// Update adds or replaces a chart. The snapshot is computed before any
// lock is taken, then swapped in together with the animation reset, so
// readers see either the old chart or the new one.
func (cs *ChartSet) Update(ctx context.Context, cfg ChartConfig) error {
	return cs.update(ctx, cfg, 0)
}

// update swaps cfg in. A non-zero rev is the revision cfg was read at;
// if the chart moved on or went away since, cfg is stale and dropped.
func (cs *ChartSet) update(ctx context.Context, cfg ChartConfig, rev uint64) error {
	_, span := Mo.Tracer().Start(ctx, "ChartSet.Update", trace.WithAttributes(
		attribute.String("chart.id", cfg.ID),
		attribute.String("chart.kind", string(cfg.Kind))))
	defer span.End()

	if err := cfg.validate(); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	transformer, err := Mp.TransformerLookup(cfg.Transform)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	start := time.Now()
	snap, err := Compute(cfg)
	if err != nil {
		slog.Error("Could not compute chart", slog.String("chart", cfg.ID), slog.Any("Error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	if cs.Stats != nil {
		cs.Stats.RecComputeTimer(time.Since(start).Seconds())
		cs.Stats.RecRender(string(cfg.Kind))
	}

	cs.MU.Lock()
	inst, ok := cs.Charts[cfg.ID]
	if !ok && rev != 0 {
		cs.MU.Unlock()
		return errStaleRefresh
	}
	if !ok {
		inst = &Instance{
			Driver: Ma.NewDriver(Ma.Duration),
			Tween:  Ma.NewTween(Ma.Duration),
		}
		cs.Charts[cfg.ID] = inst
		cs.Order = append(cs.Order, cfg.ID)
	}
	cs.MU.Unlock()

	now := cs.Clock.Now()
	inst.MU.Lock()
	defer inst.MU.Unlock()

	if rev != 0 && inst.Revision != rev {
		span.AddEvent("update.stale")
		return errStaleRefresh
	}
	inst.Revision++

	// a kind change keeps the transformer state from leaking across
	if inst.Transformer == nil || inst.Transformer.Type() != transformer.Type() || inst.Config.Kind != cfg.Kind {
		inst.Transformer = transformer
		inst.Seen = 0
	}
	inst.Config = cfg
	inst.Snapshot = snap
	inst.Updated = now

	reset := inst.Driver.Observe(snap.Signature, now)
	if snap.Circle != nil {
		inst.Tween.Target(snap.Circle.Progress, now)
	}
	if reset {
		span.AddEvent("animation.reset")
		if cs.Stats != nil {
			cs.Stats.RecReset(string(cfg.Kind))
		}
	}

	slog.Debug("Chart updated",
		slog.String("chart", cfg.ID),
		slog.Bool("reset", reset),
		slog.Uint64("generation", inst.Driver.Generation()))
	return nil
}

// Remove drops a chart
func (cs *ChartSet) Remove(id string) error {
	cs.MU.Lock()
	defer cs.MU.Unlock()
	if _, ok := cs.Charts[id]; !ok {
		return fmt.Errorf("%s: %w", id, ErrUnknownChart)
	}
	delete(cs.Charts, id)
	for i, o := range cs.Order {
		if o == id {
			cs.Order = append(cs.Order[:i], cs.Order[i+1:]...)
			break
		}
	}
	return nil
}

// Replay restarts a chart's animation without changing its data
func (cs *ChartSet) Replay(id string) error {
	inst, err := cs.instance(id)
	if err != nil {
		return err
	}
	now := cs.Clock.Now()
	inst.MU.Lock()
	defer inst.MU.Unlock()
	inst.Driver.Reset(inst.Snapshot.Signature, now)
	if inst.Snapshot.Circle != nil {
		// from empty back up to the current progress
		inst.Tween.Target(0, now.Add(-Ma.Duration))
		inst.Tween.Target(inst.Snapshot.Circle.Progress, now)
	}
	return nil
}

// IDs in insertion order
func (cs *ChartSet) IDs() []string {
	cs.MU.RLock()
	defer cs.MU.RUnlock()
	ids := make([]string, len(cs.Order))
	copy(ids, cs.Order)
	return ids
}

func (cs *ChartSet) instance(id string) (*Instance, error) {
	cs.MU.RLock()
	defer cs.MU.RUnlock()
	inst, ok := cs.Charts[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", id, ErrUnknownChart)
	}
	return inst, nil
}

// Config of a chart
func (cs *ChartSet) Config(id string) (ChartConfig, error) {
	inst, err := cs.instance(id)
	if err != nil {
		return ChartConfig{}, err
	}
	inst.MU.RLock()
	defer inst.MU.RUnlock()
	return inst.Config, nil
}

// Configs of every chart, in order
func (cs *ChartSet) Configs() []ChartConfig {
	var out []ChartConfig
	for _, id := range cs.IDs() {
		if c, err := cs.Config(id); err == nil {
			out = append(out, c)
		}
	}
	return out
}

// Frame samples a chart's animation at now
func (cs *ChartSet) Frame(id string, now time.Time) (Mt.Frame, error) {
	inst, err := cs.instance(id)
	if err != nil {
		return Mt.Frame{}, err
	}

	inst.MU.RLock()
	defer inst.MU.RUnlock()

	st := inst.Driver.Sample(now)
	f := Mt.Frame{
		ChartID:    id,
		Kind:       inst.Config.Kind,
		Generation: inst.Driver.Generation(),
		Timestamp:  now,
		State:      st,
	}

	switch {
	case inst.Snapshot.Line != nil:
		lc := *inst.Snapshot.Line
		f.Line = &lc
		f.DashArray = lc.PathLength
		f.DashOffset = Ma.DashOffset(lc.PathLength, st.ElapsedFraction)
		f.Opacity = Ma.Opacity(st.ElapsedFraction)
	case inst.Snapshot.Circle != nil:
		cc := *inst.Snapshot.Circle
		shown := Mc.ClampProgress(inst.Tween.Value(now))
		f.Circle = &cc
		f.Progress = shown
		f.DashArray = cc.Circumference
		f.DashOffset = Mc.CircleDashOffset(cc.Params.Radius, shown)
		f.Opacity = 1
	}
	return f, nil
}

// Frames samples every chart at now, in order
func (cs *ChartSet) Frames(now time.Time) []Mt.Frame {
	ids := cs.IDs()
	frames := make([]Mt.Frame, 0, len(ids))
	for _, id := range ids {
		f, err := cs.Frame(id, now)
		if err != nil {
			// removed between IDs and Frame
			continue
		}
		frames = append(frames, f)
	}
	if cs.Stats != nil {
		cs.Stats.RecFrames(len(frames))
	}
	return frames
}

// Settled is true when no chart is still animating at now
func (cs *ChartSet) Settled(now time.Time) bool {
	for _, id := range cs.IDs() {
		inst, err := cs.instance(id)
		if err != nil {
			continue
		}
		inst.MU.RLock()
		done := inst.Driver.Settled(now) && inst.Tween.Settled(now)
		inst.MU.RUnlock()
		if !done {
			return false
		}
	}
	return true
}

// Refresh pulls new values for every chart with a remote source.
// A failing source is logged and skipped; the others still update.
func (cs *ChartSet) Refresh(ctx context.Context) error {
	ctx, span := Mo.Tracer().Start(ctx, "ChartSet.Refresh")
	defer span.End()

	start := time.Now()
	var errs []error

	for _, id := range cs.IDs() {
		cfg, rev, err := cs.revision(id)
		if err != nil || !cfg.HasRemote() {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := cs.refreshOne(ctx, cfg, rev); err != nil {
			slog.Error("Could not refresh chart", slog.String("chart", cfg.ID), slog.Any("Error", err))
			if cs.Stats != nil {
				cs.Stats.RecFetchError()
			}
			errs = append(errs, fmt.Errorf("%s: %w", cfg.ID, err))
		}
	}

	if cs.Stats != nil {
		cs.Stats.RecFetchTimer(time.Since(start).Seconds())
	}
	return errors.Join(errs...)
}

// revision reads a chart's config together with its revision
func (cs *ChartSet) revision(id string) (ChartConfig, uint64, error) {
	inst, err := cs.instance(id)
	if err != nil {
		return ChartConfig{}, 0, err
	}
	inst.MU.RLock()
	defer inst.MU.RUnlock()
	return inst.Config, inst.Revision, nil
}

// refreshOne fetches cfg's series and applies it to cfg as read at rev.
// A transformer that needs history is primed before the chart changes.
func (cs *ChartSet) refreshOne(ctx context.Context, cfg ChartConfig, rev uint64) error {
	var (
		raw []float64
		err error
	)
	if cfg.XLSX != "" {
		raw, err = ReadXLSXSeries(cfg.XLSX, cfg.Sheet, cfg.Column)
	} else {
		raw, err = FetchSeries(cfg.Source, cfg.Key, cs.Client)
	}
	if err != nil {
		return err
	}

	inst, err := cs.instance(cfg.ID)
	if errors.Is(err, ErrUnknownChart) {
		slog.Debug("Refresh dropped, chart removed meanwhile", slog.String("chart", cfg.ID))
		return nil
	}
	if err != nil {
		return err
	}
	inst.MU.RLock()
	transformer := inst.Transformer
	inst.MU.RUnlock()

	values, err := transformer.Transform(cfg.ID, raw, cs.Clock.Now())
	if err != nil {
		return err
	}

	inst.MU.Lock()
	inst.Seen++
	seen := inst.Seen
	inst.MU.Unlock()
	if seen <= transformer.HysteresisReq() {
		slog.Debug("Transformer priming",
			slog.String("chart", cfg.ID),
			slog.String("transform", transformer.Type()),
			slog.Int("seen", seen))
		return nil
	}

	// a circle takes the last value of the series as its progress
	if cfg.Kind == Mt.KindCircle {
		if len(values) > 0 {
			cfg.Progress = values[len(values)-1]
		}
	} else {
		cfg.Values = values
	}

	err = cs.update(ctx, cfg, rev)
	if errors.Is(err, errStaleRefresh) {
		slog.Debug("Refresh dropped, chart changed meanwhile", slog.String("chart", cfg.ID))
		return nil
	}
	return err
}
