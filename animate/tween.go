package contour

import (
	"sync"
	"time"
)

// Tween moves a displayed value toward a target over a fixed duration.
// The first target is shown immediately; later targets animate from
// whatever was on screen at the moment they arrived.
type Tween struct {
	mu       sync.Mutex
	duration time.Duration
	from     float64
	to       float64
	start    time.Time
	primed   bool
}

func NewTween(d time.Duration) *Tween {
	return &Tween{duration: d}
}

// Target sets a new destination at now
func (t *Tween) Target(v float64, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.primed {
		t.from, t.to, t.start, t.primed = v, v, now, true
		return
	}
	t.from = t.valueLocked(now)
	t.to = v
	t.start = now
}

// Value displayed at now
func (t *Tween) Value(now time.Time) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.valueLocked(now)
}

func (t *Tween) valueLocked(now time.Time) float64 {
	f := Fraction(now.Sub(t.start), t.duration)
	return t.from + (t.to-t.from)*f
}

// Settled is true once the displayed value has reached the target
func (t *Tween) Settled(now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Fraction(now.Sub(t.start), t.duration) >= 1 || t.from == t.to
}

func (t *Tween) To() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.to
}
