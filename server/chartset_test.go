package contour_test

import (
	"context"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	Ma "github.com/maroda/contour/animate"
	Mc "github.com/maroda/contour/chart"
	Mo "github.com/maroda/contour/obvy"
	Ms "github.com/maroda/contour/server"
	Mt "github.com/maroda/contour/types"
)

func TestNewChartSetFromConfig(t *testing.T) {
	t.Run("Builds the demo charts", func(t *testing.T) {
		cs, _ := makeChartSet(t)
		ids := cs.IDs()
		assertInt(t, len(ids), 2)
		assertString(t, ids[0], "line")
		assertString(t, ids[1], "circle")
	})

	t.Run("Rejects invalid geometry", func(t *testing.T) {
		cf := []Ms.ChartConfig{{ID: "bad", Kind: Mt.KindLine, MaxXAxisValue: 0, MaxYAxisValue: 10}}
		_, err := Ms.NewChartSetFromConfig(context.Background(), cf, nil, nil)
		assertError(t, err, Mc.ErrInvalidAxisBounds)
	})

	t.Run("Rejects duplicate IDs", func(t *testing.T) {
		cf := append(Ms.DefaultCharts(), Ms.DefaultCharts()[0])
		_, err := Ms.NewChartSetFromConfig(context.Background(), cf, nil, nil)
		assertError(t, err, Ms.ErrDuplicateChart)
	})
}

func TestChartSetFrame(t *testing.T) {
	t.Run("Line reveals over the duration", func(t *testing.T) {
		cs, clock := makeChartSet(t)
		start := clock.Now()

		f, err := cs.Frame("line", start)
		assertError(t, err, nil)
		if f.Line == nil {
			t.Fatal("expected a line snapshot")
		}
		assertFloatNear(t, f.DashOffset, f.DashArray)
		assertFloatNear(t, f.Opacity, 0)

		f, _ = cs.Frame("line", start.Add(400*time.Millisecond))
		assertFloatNear(t, f.DashOffset, f.DashArray/2)
		assertFloatNear(t, f.Opacity, 0.5)

		f, _ = cs.Frame("line", start.Add(time.Second))
		assertFloatNear(t, f.DashOffset, 0)
		assertFloatNear(t, f.Opacity, 1)
	})

	t.Run("Circle first value is settled", func(t *testing.T) {
		cs, clock := makeChartSet(t)
		f, err := cs.Frame("circle", clock.Now())
		assertError(t, err, nil)
		assertFloatNear(t, f.Progress, 0.5)
		assertFloatNear(t, f.DashOffset, f.Circle.Circumference/2)
	})

	t.Run("Circle tweens to a new progress", func(t *testing.T) {
		cs, clock := makeChartSet(t)
		cfg, _ := cs.Config("circle")
		cfg.Progress = 1
		assertError(t, cs.Update(context.Background(), cfg), nil)

		f, _ := cs.Frame("circle", clock.Now().Add(400*time.Millisecond))
		assertFloatNear(t, f.Progress, 0.75)

		f, _ = cs.Frame("circle", clock.Now().Add(time.Second))
		assertFloatNear(t, f.Progress, 1)
		assertFloatNear(t, f.DashOffset, 0)
	})

	t.Run("Unknown chart", func(t *testing.T) {
		cs, clock := makeChartSet(t)
		_, err := cs.Frame("pie", clock.Now())
		assertError(t, err, Ms.ErrUnknownChart)
	})
}

func TestChartSetUpdate(t *testing.T) {
	t.Run("Same geometry does not restart the animation", func(t *testing.T) {
		cs, clock := makeChartSet(t)
		before, _ := cs.Frame("line", clock.Now())

		cfg, _ := cs.Config("line")
		assertError(t, cs.Update(context.Background(), cfg), nil)

		after, _ := cs.Frame("line", clock.Now())
		if after.Generation != before.Generation {
			t.Errorf("generation changed from %d to %d", before.Generation, after.Generation)
		}
	})

	t.Run("New data restarts the animation", func(t *testing.T) {
		cs, clock := makeChartSet(t)
		clock.Advance(time.Second)
		settled, _ := cs.Frame("line", clock.Now())
		assertFloatNear(t, settled.Opacity, 1)

		cfg, _ := cs.Config("line")
		cfg.Values = []float64{90000, 10000}
		assertError(t, cs.Update(context.Background(), cfg), nil)

		f, _ := cs.Frame("line", clock.Now())
		if f.Generation <= settled.Generation {
			t.Errorf("generation did not advance")
		}
		assertFloatNear(t, f.Opacity, 0)
		assertInt(t, len(f.Line.Points), 2)
	})

	t.Run("Invalid update keeps the old chart", func(t *testing.T) {
		cs, clock := makeChartSet(t)
		cfg, _ := cs.Config("line")
		cfg.MaxYAxisValue = math.NaN()
		assertError(t, cs.Update(context.Background(), cfg), Mc.ErrInvalidAxisBounds)

		f, err := cs.Frame("line", clock.Now())
		assertError(t, err, nil)
		assertInt(t, len(f.Line.Points), 3)
	})

	t.Run("Unknown transformer", func(t *testing.T) {
		cs, _ := makeChartSet(t)
		cfg, _ := cs.Config("line")
		cfg.Transform = "fourier"
		assertGotError(t, cs.Update(context.Background(), cfg))
	})

	t.Run("Remove", func(t *testing.T) {
		cs, _ := makeChartSet(t)
		assertError(t, cs.Remove("line"), nil)
		assertInt(t, len(cs.IDs()), 1)
		assertError(t, cs.Remove("line"), Ms.ErrUnknownChart)
	})

	t.Run("Concurrent updates and frames", func(t *testing.T) {
		cs, clock := makeChartSet(t)
		var wg sync.WaitGroup
		for i := 0; i < 4; i++ {
			wg.Add(2)
			go func(i int) {
				defer wg.Done()
				for j := 0; j < 50; j++ {
					cfg := Ms.DefaultCharts()[0]
					cfg.Values = []float64{float64(i * j), 50000}
					cs.Update(context.Background(), cfg)
				}
			}(i)
			go func() {
				defer wg.Done()
				for j := 0; j < 50; j++ {
					for _, f := range cs.Frames(clock.Now()) {
						if f.Opacity < 0 || f.Opacity > 1 {
							t.Errorf("opacity out of range: %v", f.Opacity)
						}
					}
				}
			}()
		}
		wg.Wait()
	})
}

func TestChartSetSettled(t *testing.T) {
	cs, clock := makeChartSet(t)
	if cs.Settled(clock.Now()) {
		t.Error("should be animating right after creation")
	}
	if !cs.Settled(clock.Now().Add(Ma.Duration)) {
		t.Error("should settle after the duration")
	}
}

func TestChartSetRefresh(t *testing.T) {
	t.Run("Pulls a remote line series through a transformer", func(t *testing.T) {
		mock := makeMockWebServBody(0, "100\n150\n170\n")
		defer mock.Close()

		clock := &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
		stats := Mo.NewStatsInternal()
		cf := []Ms.ChartConfig{{
			ID: "requests", Kind: Mt.KindLine,
			MaxXAxisValue: 7, MaxYAxisValue: 100,
			Source: mock.URL, Transform: "delta",
		}}
		cs, err := Ms.NewChartSetFromConfig(context.Background(), cf, clock, stats)
		assertError(t, err, nil)

		assertError(t, cs.Refresh(context.Background()), nil)
		cfg, _ := cs.Config("requests")
		assertInt(t, len(cfg.Values), 3)
		assertFloatNear(t, cfg.Values[1], 50)
	})

	t.Run("Circle takes the last value", func(t *testing.T) {
		mock := makeMockWebServBody(0, `{"progress": [0.1, 0.9]}`)
		defer mock.Close()

		cf := []Ms.ChartConfig{{ID: "quota", Kind: Mt.KindCircle, Source: mock.URL, Key: "progress"}}
		cs, err := Ms.NewChartSetFromConfig(context.Background(), cf, nil, nil)
		assertError(t, err, nil)

		assertError(t, cs.Refresh(context.Background()), nil)
		cfg, _ := cs.Config("quota")
		assertFloatNear(t, cfg.Progress, 0.9)
	})

	t.Run("Spreadsheet source", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "series.xlsx")
		assertError(t, Ms.WriteXLSXSeries(path, "", "visits", []float64{1, 2, 3, 4}), nil)

		cf := []Ms.ChartConfig{{ID: "sheet", Kind: Mt.KindLine, MaxXAxisValue: 7, MaxYAxisValue: 10, XLSX: path}}
		cs, err := Ms.NewChartSetFromConfig(context.Background(), cf, nil, nil)
		assertError(t, err, nil)

		assertError(t, cs.Refresh(context.Background()), nil)
		cfg, _ := cs.Config("sheet")
		assertInt(t, len(cfg.Values), 4)
	})

	t.Run("A failing source does not stop the others", func(t *testing.T) {
		bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "nope", http.StatusBadGateway)
		}))
		defer bad.Close()
		good := makeMockWebServBody(0, "5, 6")
		defer good.Close()

		cf := []Ms.ChartConfig{
			{ID: "bad", Kind: Mt.KindLine, MaxXAxisValue: 7, MaxYAxisValue: 10, Source: bad.URL},
			{ID: "good", Kind: Mt.KindLine, MaxXAxisValue: 7, MaxYAxisValue: 10, Source: good.URL},
		}
		cs, err := Ms.NewChartSetFromConfig(context.Background(), cf, nil, nil)
		assertError(t, err, nil)

		err = cs.Refresh(context.Background())
		assertError(t, err, Ms.ErrFetchStatus)

		cfg, _ := cs.Config("good")
		assertInt(t, len(cfg.Values), 2)
	})

	t.Run("An update during the fetch is not overwritten", func(t *testing.T) {
		gate := newGateClient("1\n2\n3\n")
		cf := []Ms.ChartConfig{{ID: "slow", Kind: Mt.KindLine, MaxXAxisValue: 7, MaxYAxisValue: 10, Source: "http://slow.test"}}
		cs, err := Ms.NewChartSetFromConfig(context.Background(), cf, nil, nil)
		assertError(t, err, nil)
		cs.Client = gate

		done := make(chan error, 1)
		go func() { done <- cs.Refresh(context.Background()) }()
		<-gate.started

		cfg, _ := cs.Config("slow")
		cfg.MaxYAxisValue = 500
		assertError(t, cs.Update(context.Background(), cfg), nil)

		close(gate.release)
		assertError(t, <-done, nil)

		got, _ := cs.Config("slow")
		assertFloatNear(t, got.MaxYAxisValue, 500)
		assertInt(t, len(got.Values), 0)

		// the next refresh applies on top of the newer chart
		assertError(t, cs.Refresh(context.Background()), nil)
		got, _ = cs.Config("slow")
		assertFloatNear(t, got.MaxYAxisValue, 500)
		assertInt(t, len(got.Values), 3)
	})

	t.Run("A chart removed during the fetch stays removed", func(t *testing.T) {
		gate := newGateClient("1, 2")
		cf := []Ms.ChartConfig{{ID: "gone", Kind: Mt.KindLine, MaxXAxisValue: 7, MaxYAxisValue: 10, Source: "http://gone.test"}}
		cs, err := Ms.NewChartSetFromConfig(context.Background(), cf, nil, nil)
		assertError(t, err, nil)
		cs.Client = gate

		done := make(chan error, 1)
		go func() { done <- cs.Refresh(context.Background()) }()
		<-gate.started

		assertError(t, cs.Remove("gone"), nil)
		close(gate.release)
		assertError(t, <-done, nil)

		assertInt(t, len(cs.IDs()), 0)
		_, err = cs.Config("gone")
		assertError(t, err, Ms.ErrUnknownChart)
	})

	t.Run("A rate chart waits for a second reading", func(t *testing.T) {
		mock := makeMockWebServBody(0, `{"total": 400}`)
		defer mock.Close()

		clock := &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
		cf := []Ms.ChartConfig{{
			ID: "throughput", Kind: Mt.KindLine,
			MaxXAxisValue: 7, MaxYAxisValue: 100,
			Source: mock.URL, Key: "total", Transform: "rate",
			Values: []float64{1, 2},
		}}
		cs, err := Ms.NewChartSetFromConfig(context.Background(), cf, clock, nil)
		assertError(t, err, nil)

		assertError(t, cs.Refresh(context.Background()), nil)
		cfg, _ := cs.Config("throughput")
		assertInt(t, len(cfg.Values), 2)

		clock.Advance(5 * time.Second)
		assertError(t, cs.Refresh(context.Background()), nil)
		cfg, _ = cs.Config("throughput")
		assertInt(t, len(cfg.Values), 1)
		assertFloatNear(t, cfg.Values[0], 0)
	})
}

// Helpers //

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func makeChartSet(t *testing.T) (*Ms.ChartSet, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	cs, err := Ms.NewChartSetFromConfig(context.Background(), Ms.DefaultCharts(), clock, Mo.NewStatsInternal())
	if err != nil {
		t.Fatal(err)
	}
	return cs, clock
}

// gateClient holds every Get until release is closed
type gateClient struct {
	body    string
	once    sync.Once
	started chan struct{}
	release chan struct{}
}

func newGateClient(body string) *gateClient {
	return &gateClient{
		body:    body,
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
}

func (g *gateClient) Get(string) (*http.Response, error) {
	g.once.Do(func() { close(g.started) })
	<-g.release
	return &http.Response{
		StatusCode: http.StatusOK,
		Body:       io.NopCloser(strings.NewReader(g.body)),
	}, nil
}

func assertFloatNear(t *testing.T, got, want float64) {
	t.Helper()
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("did not get correct value, got %v, want %v", got, want)
	}
}

func TestChartSetReplay(t *testing.T) {
	cs, clock := makeChartSet(t)
	clock.Advance(time.Second)

	settled, _ := cs.Frame("circle", clock.Now())
	assertFloatNear(t, settled.Progress, 0.5)

	assertError(t, cs.Replay("circle"), nil)
	f, _ := cs.Frame("circle", clock.Now())
	assertFloatNear(t, f.Progress, 0)

	f, _ = cs.Frame("circle", clock.Now().Add(400*time.Millisecond))
	assertFloatNear(t, f.Progress, 0.25)

	assertError(t, cs.Replay("line"), nil)
	f, _ = cs.Frame("line", clock.Now())
	assertFloatNear(t, f.Opacity, 0)

	assertError(t, cs.Replay("pie"), Ms.ErrUnknownChart)
}
