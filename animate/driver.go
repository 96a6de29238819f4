package contour

import (
	"log/slog"
	"math"
	"sync"
	"time"

	Mt "github.com/maroda/contour/types"
)

// Duration of one reveal, for both the line and the circle
const Duration = 800 * time.Millisecond

// Clock is injected so runs can be replayed in tests
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// Phase of a Driver
type Phase int

const (
	Idle Phase = iota
	Running
	Settled
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Settled:
		return "settled"
	}
	return "unknown"
}

// Fraction is elapsed/d clamped to [0,1].
// A non-positive duration is already complete.
func Fraction(elapsed, d time.Duration) float64 {
	if d <= 0 {
		return 1
	}
	f := float64(elapsed) / float64(d)
	return math.Min(math.Max(f, 0), 1)
}

// DashOffset hides the unrevealed part of a path of the given length
func DashOffset(length, fraction float64) float64 {
	return length * (1 - clampUnit(fraction))
}

// Opacity of the area fill follows the reveal
func Opacity(fraction float64) float64 {
	return clampUnit(fraction)
}

func clampUnit(f float64) float64 {
	if math.IsNaN(f) {
		return 0
	}
	return math.Min(math.Max(f, 0), 1)
}

// Driver runs the reveal animation for one chart instance.
// Each Reset starts a new generation; anything tagged with an
// older generation is refused by Commit.
type Driver struct {
	mu         sync.Mutex
	duration   time.Duration
	phase      Phase
	start      time.Time
	generation uint64
	signature  uint64
	state      Mt.AnimationState
}

// NewDriver is idle until the first Reset
func NewDriver(d time.Duration) *Driver {
	if d < 0 {
		d = 0
	}
	return &Driver{duration: d}
}

// Reset starts a new run from fraction 0 and returns its generation
func (d *Driver) Reset(sig uint64, now time.Time) uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.resetLocked(sig, now)
}

func (d *Driver) resetLocked(sig uint64, now time.Time) uint64 {
	d.generation++
	d.signature = sig
	d.start = now
	d.phase = Running
	d.state = Mt.AnimationState{ElapsedFraction: 0}
	if d.duration == 0 {
		d.phase = Settled
		d.state.ElapsedFraction = 1
	}
	slog.Debug("Animation reset",
		slog.Uint64("generation", d.generation),
		slog.Uint64("signature", sig))
	return d.generation
}

// Observe resets only when the signature differs from the running one.
// It reports whether a reset happened.
func (d *Driver) Observe(sig uint64, now time.Time) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.phase != Idle && sig == d.signature {
		return false
	}
	d.resetLocked(sig, now)
	return true
}

// Sample advances the current run to now and returns its state.
// Time moving backwards never rewinds the reveal.
func (d *Driver) Sample(now time.Time) Mt.AnimationState {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.phase != Running {
		return d.state
	}
	d.commitLocked(Fraction(now.Sub(d.start), d.duration))
	return d.state
}

// Commit stores a fraction computed elsewhere for generation gen.
// A stale generation is rejected and false is returned.
func (d *Driver) Commit(gen uint64, st Mt.AnimationState) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if gen != d.generation || d.phase == Idle {
		slog.Debug("Stale animation state dropped",
			slog.Uint64("generation", gen),
			slog.Uint64("current", d.generation))
		return false
	}
	d.commitLocked(clampUnit(st.ElapsedFraction))
	return true
}

func (d *Driver) commitLocked(f float64) {
	if f < d.state.ElapsedFraction {
		return
	}
	d.state.ElapsedFraction = f
	if f >= 1 {
		d.phase = Settled
	}
}

// Settled reports whether the current run has finished at now
func (d *Driver) Settled(now time.Time) bool {
	return d.Sample(now).ElapsedFraction >= 1
}

func (d *Driver) Generation() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.generation
}

func (d *Driver) Signature() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.signature
}

func (d *Driver) Phase() Phase {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.phase
}

// State is the last sampled state, without advancing
func (d *Driver) State() Mt.AnimationState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}
