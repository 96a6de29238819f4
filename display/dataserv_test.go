package contour_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	Md "github.com/maroda/contour/display"
	Mo "github.com/maroda/contour/obvy"
	Mp "github.com/maroda/contour/plugin"
	Ms "github.com/maroda/contour/server"
	Mt "github.com/maroda/contour/types"
)

func TestView_SetupMux(t *testing.T) {
	view := makeTestView(t)
	mux := view.SetupMux()

	t.Run("Websocket Endpoint answers", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/ws", nil)
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, r)
		// websocket upgrade will fail in test, but check for the 400
		assertStatus(t, w.Code, http.StatusBadRequest)
	})

	t.Run("Metrics Endpoint answers", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/metrics", nil)
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, r)
		assertStatus(t, w.Code, http.StatusOK)
		assertStringContains(t, w.Body.String(), "contour_renders_total")
	})

	t.Run("Version Endpoint answers with JSON", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/api/version", nil)
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, r)
		assertStatus(t, w.Code, http.StatusOK)

		var resp map[string]string
		err := json.Unmarshal(w.Body.Bytes(), &resp)
		assertError(t, err, nil)
		assertString(t, resp["version"], "dev")
	})

	t.Run("API responses are counted", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/metrics", nil)
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, r)
		assertStringContains(t, w.Body.String(), `contour_http_responses_total{code="200",method="GET"}`)
	})
}

func TestView_ChartHandlers(t *testing.T) {
	view := makeTestView(t)
	handler := view.Handler()

	tests := []struct {
		name     string
		method   string
		target   string
		body     string
		assert   int
		contains string
	}{
		{
			name:     "List charts",
			method:   "GET",
			target:   "/api/charts",
			assert:   http.StatusOK,
			contains: `"id":"line"`,
		},
		{
			name:     "Get one chart frame",
			method:   "GET",
			target:   "/api/charts/circle",
			assert:   http.StatusOK,
			contains: `"kind":"circle"`,
		},
		{
			name:     "Unknown chart",
			method:   "GET",
			target:   "/api/charts/pie",
			assert:   http.StatusNotFound,
			contains: "unknown chart",
		},
		{
			name:     "Create chart",
			method:   "POST",
			target:   "/api/charts",
			body:     `{"id":"cpu","kind":"line","values":[1,2,3],"maxXAxisValue":7,"maxYAxisValue":10}`,
			assert:   http.StatusOK,
			contains: `"chartId":"cpu"`,
		},
		{
			name:     "Replace chart with path ID",
			method:   "PUT",
			target:   "/api/charts/circle",
			body:     `{"kind":"circle","progress":0.9}`,
			assert:   http.StatusOK,
			contains: `"progress":0.9`,
		},
		{
			name:     "Reject bad geometry",
			method:   "POST",
			target:   "/api/charts",
			body:     `{"id":"bad","kind":"line","values":[1],"maxXAxisValue":0,"maxYAxisValue":10}`,
			assert:   http.StatusUnprocessableEntity,
			contains: "invalid axis bounds",
		},
		{
			name:     "Reject unknown fields",
			method:   "POST",
			target:   "/api/charts",
			body:     `{"id":"x","kind":"line","colour":"red"}`,
			assert:   http.StatusBadRequest,
			contains: "unknown field",
		},
		{
			name:     "Reject unknown kind",
			method:   "POST",
			target:   "/api/charts",
			body:     `{"id":"x","kind":"pie"}`,
			assert:   http.StatusUnprocessableEntity,
			contains: "unknown chart kind",
		},
		{
			name:     "Replay",
			method:   "POST",
			target:   "/api/charts/line/replay",
			assert:   http.StatusAccepted,
		},
		{
			name:   "Bad method",
			method: "PATCH",
			target: "/api/charts/line",
			assert: http.StatusMethodNotAllowed,
		},
		{
			name:   "Delete chart",
			method: "DELETE",
			target: "/api/charts/cpu",
			assert: http.StatusNoContent,
		},
		{
			name:     "Delete missing chart",
			method:   "DELETE",
			target:   "/api/charts/cpu",
			assert:   http.StatusNotFound,
			contains: "unknown chart",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(tt.method, tt.target, strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, r)
			assertStatus(t, w.Code, tt.assert)
			if tt.contains != "" {
				assertStringContains(t, w.Body.String(), tt.contains)
			}
		})
	}
}

func TestView_ChartSVGHandler(t *testing.T) {
	view := makeTestView(t)
	mux := view.SetupMux()

	t.Run("Line chart", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/api/charts/line/svg", nil)
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, r)
		assertStatus(t, w.Code, http.StatusOK)
		assertString(t, w.Header().Get("Content-Type"), "image/svg+xml")
		assertStringContains(t, w.Body.String(), `<path d="M20,-28 L`)
		assertStringContains(t, w.Body.String(), "</svg>")
	})

	t.Run("Circle chart", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/api/charts/circle/svg", nil)
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, r)
		assertStatus(t, w.Code, http.StatusOK)
		assertStringContains(t, w.Body.String(), "translate(157.5,157.5)")
	})

	t.Run("Unknown chart", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/api/charts/pie/svg", nil)
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, r)
		assertStatus(t, w.Code, http.StatusNotFound)
	})
}

func TestView_ChartFramesHandler(t *testing.T) {
	t.Run("Without a recorder", func(t *testing.T) {
		view := makeTestView(t)
		r := httptest.NewRequest("GET", "/api/charts/line/frames", nil)
		w := httptest.NewRecorder()
		view.SetupMux().ServeHTTP(w, r)
		assertStatus(t, w.Code, http.StatusNotImplemented)
	})

	t.Run("Replays recorded frames", func(t *testing.T) {
		view := makeTestView(t)
		view.Recorder = makeTestBadger(t)
		as := view.NewAnimationSupervisor(time.Millisecond, time.Hour)

		clock := view.Clock.(*fakeClock)
		for i := 0; i < 5; i++ {
			as.Tick(clock.Now())
			clock.Advance(200 * time.Millisecond)
		}

		r := httptest.NewRequest("GET", "/api/charts/line/frames", nil)
		w := httptest.NewRecorder()
		view.SetupMux().ServeHTTP(w, r)
		assertStatus(t, w.Code, http.StatusOK)

		var frames []Mt.Frame
		assertError(t, json.Unmarshal(w.Body.Bytes(), &frames), nil)
		assertInt(t, len(frames), 5)
		for _, f := range frames {
			assertString(t, f.ChartID, "line")
		}
	})

	t.Run("Bounded by start and end", func(t *testing.T) {
		view := makeTestView(t)
		view.Recorder = makeTestBadger(t)
		as := view.NewAnimationSupervisor(time.Millisecond, time.Hour)

		clock := view.Clock.(*fakeClock)
		begin := clock.Now()
		for i := 0; i < 5; i++ {
			as.Tick(clock.Now())
			clock.Advance(200 * time.Millisecond)
		}

		start := begin.Add(200 * time.Millisecond).Format(time.RFC3339Nano)
		end := begin.Add(600 * time.Millisecond).Format(time.RFC3339Nano)
		r := httptest.NewRequest("GET", "/api/charts/line/frames?start="+start+"&end="+end, nil)
		w := httptest.NewRecorder()
		view.SetupMux().ServeHTTP(w, r)
		assertStatus(t, w.Code, http.StatusOK)

		var frames []Mt.Frame
		assertError(t, json.Unmarshal(w.Body.Bytes(), &frames), nil)
		assertInt(t, len(frames), 3)
	})

	t.Run("Bad time", func(t *testing.T) {
		view := makeTestView(t)
		view.Recorder = makeTestBadger(t)
		r := httptest.NewRequest("GET", "/api/charts/line/frames?start=yesterday", nil)
		w := httptest.NewRecorder()
		view.SetupMux().ServeHTTP(w, r)
		assertStatus(t, w.Code, http.StatusBadRequest)
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

// View with the demo charts, a fake clock and no screen
func makeTestView(t *testing.T) *Md.View {
	t.Helper()
	clock := &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	stats := Mo.NewStatsInternal()
	cs, err := Ms.NewChartSetFromConfig(context.Background(), Ms.DefaultCharts(), clock, stats)
	if err != nil {
		t.Fatal(err)
	}
	view, err := Md.NewView(cs, stats, nil)
	if err != nil {
		t.Fatal(err)
	}
	return view
}

func makeTestBadger(t *testing.T) *Mp.BadgerOutput {
	t.Helper()
	out, err := Mp.NewBadgerOutput(t.TempDir(), 1)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { out.Close() })
	return out
}

func assertError(t testing.TB, got, want error) {
	t.Helper()
	if !errors.Is(got, want) {
		t.Errorf("got error %q want %q", got, want)
	}
}

func assertStatus(t testing.TB, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("did not get correct status, got %d, want %d", got, want)
	}
}

func assertInt(t *testing.T, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("did not get correct value, got %d, want %d", got, want)
	}
}

func assertString(t *testing.T, got, want string) {
	t.Helper()
	if got != want {
		t.Errorf("did not get correct string, got %q, want %q", got, want)
	}
}

func assertStringContains(t *testing.T, full, want string) {
	t.Helper()
	if !strings.Contains(full, want) {
		t.Errorf("Did not find %q, expected string contains %q", full, want)
	}
}
