package contour

import (
	"context"
	"log/slog"
	"sync"
	"time"

	Ms "github.com/maroda/contour/server"
	Mt "github.com/maroda/contour/types"
)

// AnimationSupervisor runs the frame ticker and the remote fetch ticker
type AnimationSupervisor struct {
	View          *View
	FrameInterval time.Duration
	FetchInterval time.Duration
	Ticker        *time.Ticker
	FetchTicker   *time.Ticker
	StopChan      chan struct{}
	WG            sync.WaitGroup

	mu       sync.Mutex
	running  bool
	recorded map[string]recordMark
}

// recordMark is the last frame written for a chart
type recordMark struct {
	generation uint64
	fraction   float64
}

// NewAnimationSupervisor is a wrapper around the View that manages the tickers.
// They are strongly coupled, one knows about the other.
func (v *View) NewAnimationSupervisor(frame, fetch time.Duration) *AnimationSupervisor {
	as := &AnimationSupervisor{
		View:          v,
		FrameInterval: frame,
		FetchInterval: fetch,
		recorded:      make(map[string]recordMark),
	}
	v.Supervisor = as
	return as
}

// ReloadConfig replaces every chart with the ones in cf.
// Charts that keep their ID and geometry keep animating undisturbed.
func (v *View) ReloadConfig(ctx context.Context, cf []Ms.ChartConfig) error {
	if err := Ms.ValidateCharts(cf); err != nil {
		return err
	}

	if v.Supervisor != nil && v.Supervisor.Running() {
		v.Supervisor.Stop()
		defer v.Supervisor.Start()
	}

	keep := make(map[string]bool, len(cf))
	for _, c := range cf {
		if err := v.Charts.Update(ctx, c); err != nil {
			return err
		}
		keep[c.ID] = true
	}
	for _, id := range v.Charts.IDs() {
		if !keep[id] {
			if err := v.Charts.Remove(id); err != nil {
				slog.Warn("Chart already removed", slog.String("chart", id))
			}
		}
	}
	slog.Info("Charts reloaded", slog.Int("count", len(cf)))
	return nil
}

// Tick samples every chart once and records what changed
func (as *AnimationSupervisor) Tick(now time.Time) []Mt.Frame {
	frames := as.View.Charts.Frames(now)
	if as.View.Recorder != nil {
		as.record(frames)
	}
	return frames
}

// record writes each frame whose animation moved since the last write
func (as *AnimationSupervisor) record(frames []Mt.Frame) {
	as.mu.Lock()
	defer as.mu.Unlock()

	for i := range frames {
		f := &frames[i]
		mark := recordMark{generation: f.Generation, fraction: f.State.ElapsedFraction}
		if f.Kind == Mt.KindCircle {
			mark.fraction = f.Progress
		}
		if last, ok := as.recorded[f.ChartID]; ok && last == mark {
			continue
		}
		if err := as.View.Recorder.WriteFrame(f); err != nil {
			slog.Error("Could not record frame",
				slog.String("chart", f.ChartID),
				slog.String("output", as.View.Recorder.Type()),
				slog.Any("Error", err))
			continue
		}
		as.recorded[f.ChartID] = mark
	}
}

// Refresh pulls remote series once
func (as *AnimationSupervisor) Refresh(ctx context.Context) {
	if err := as.View.Charts.Refresh(ctx); err != nil {
		slog.Error("Refresh failed", slog.Any("Error", err))
	}
}

// Start the AnimationSupervisor. Starting twice does nothing.
func (as *AnimationSupervisor) Start() {
	as.mu.Lock()
	if as.running {
		as.mu.Unlock()
		return
	}
	as.running = true
	as.StopChan = make(chan struct{})
	as.Ticker = time.NewTicker(as.FrameInterval)
	as.FetchTicker = time.NewTicker(as.FetchInterval)
	stop, ticker, fetch := as.StopChan, as.Ticker, as.FetchTicker
	as.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())

	as.WG.Add(2)
	go func() {
		defer as.WG.Done()
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				as.Tick(as.View.Clock.Now())
			case <-stop:
				return
			}
		}
	}()

	go func() {
		defer as.WG.Done()
		defer fetch.Stop()
		defer cancel()

		as.Refresh(ctx)
		for {
			select {
			case <-fetch.C:
				as.Refresh(ctx)
			case <-stop:
				return
			}
		}
	}()

	// a stop cancels any fetch in flight
	go func() {
		<-stop
		cancel()
	}()
}

// Stop the AnimationSupervisor and wait for its goroutines
func (as *AnimationSupervisor) Stop() {
	as.mu.Lock()
	if !as.running {
		as.mu.Unlock()
		return
	}
	as.running = false
	close(as.StopChan)
	as.mu.Unlock()

	as.WG.Wait()
}

// Restart the AnimationSupervisor
func (as *AnimationSupervisor) Restart() {
	as.Stop()
	as.Start()
}

// Running reports whether the tickers are active
func (as *AnimationSupervisor) Running() bool {
	as.mu.Lock()
	defer as.mu.Unlock()
	return as.running
}
