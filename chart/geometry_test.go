package contour_test

import (
	"errors"
	"math"
	"strings"
	"testing"

	Mc "github.com/maroda/contour/chart"
	Mt "github.com/maroda/contour/types"
)

func TestNewLineGeometry(t *testing.T) {
	t.Run("Default example computes steps", func(t *testing.T) {
		g, err := Mc.NewLineGeometry(makeLineParams())
		if err != nil {
			t.Fatal(err)
		}
		assertFloat(t, g.StepX, 460.0/7)
		assertFloat(t, g.StepY, 2.8)
		assertFloat(t, g.Bounds.Min, 0)
		assertFloat(t, g.Bounds.Max, 100)
	})

	t.Run("Series is normalized to percent of maxY", func(t *testing.T) {
		g, err := Mc.NewLineGeometry(makeLineParams())
		if err != nil {
			t.Fatal(err)
		}
		want := []float64{10, 20, 60}
		assertInt(t, len(g.NormalizedSeries), len(want))
		for i, v := range want {
			assertFloat(t, g.NormalizedSeries[i], v)
		}
	})

	t.Run("Non-positive and non-finite values become zero", func(t *testing.T) {
		p := makeLineParams()
		p.ValueArray = []float64{-5, 0, math.NaN(), math.Inf(1), math.Inf(-1)}
		g, err := Mc.NewLineGeometry(p)
		if err != nil {
			t.Fatal(err)
		}
		for _, v := range g.NormalizedSeries {
			assertFloat(t, v, 0)
		}
	})

	t.Run("Zero layout fields take defaults", func(t *testing.T) {
		p := Mt.LineParams{ValueArray: []float64{1}, MaxXAxisValue: 7, MaxYAxisValue: 100000}
		g, err := Mc.NewLineGeometry(p)
		if err != nil {
			t.Fatal(err)
		}
		assertFloat(t, g.PaddingLeft, Mc.DefaultPaddingLeft)
		assertFloat(t, g.StepY, (Mc.DefaultHeight-Mc.DefaultPaddingTop)/Mc.DefaultAxisMax)
	})

	t.Run("Same params give the same geometry", func(t *testing.T) {
		a, _ := Mc.NewLineGeometry(makeLineParams())
		b, _ := Mc.NewLineGeometry(makeLineParams())
		assertFloat(t, a.StepX, b.StepX)
		assertFloat(t, a.StepY, b.StepY)
		assertString(t, Mc.BuildPath(a), Mc.BuildPath(b))
	})
}

func TestWithDefaults(t *testing.T) {
	t.Run("Zero layout fields take the defaults", func(t *testing.T) {
		got := Mc.WithDefaults(Mt.LineParams{PaddingLeft: 0})
		assertFloat(t, got.Width, Mc.DefaultWidth)
		assertFloat(t, got.Height, Mc.DefaultHeight)
		assertFloat(t, got.PaddingTop, Mc.DefaultPaddingTop)
		assertFloat(t, got.PaddingLeft, Mc.DefaultPaddingLeft)
		assertFloat(t, got.PaddingRight, Mc.DefaultPaddingRight)
		assertFloat(t, got.AxisMax, Mc.DefaultAxisMax)
	})

	t.Run("A small positive padding is kept", func(t *testing.T) {
		got := Mc.WithDefaults(Mt.LineParams{PaddingLeft: 0.5, PaddingTop: 1})
		assertFloat(t, got.PaddingLeft, 0.5)
		assertFloat(t, got.PaddingTop, 1)
	})

	t.Run("Negative padding is left for validation", func(t *testing.T) {
		got := Mc.WithDefaults(Mt.LineParams{PaddingRight: -3})
		assertFloat(t, got.PaddingRight, -3)
	})
}

func TestValidateLine(t *testing.T) {
	tests := []struct {
		name  string
		field string
		edit  func(p *Mt.LineParams)
	}{
		{"maxX zero", "maxXAxisValue", func(p *Mt.LineParams) { p.MaxXAxisValue = 0 }},
		{"maxX negative", "maxXAxisValue", func(p *Mt.LineParams) { p.MaxXAxisValue = -3 }},
		{"maxY zero", "maxYAxisValue", func(p *Mt.LineParams) { p.MaxYAxisValue = 0 }},
		{"maxY NaN", "maxYAxisValue", func(p *Mt.LineParams) { p.MaxYAxisValue = math.NaN() }},
		{"maxY Inf", "maxYAxisValue", func(p *Mt.LineParams) { p.MaxYAxisValue = math.Inf(1) }},
		{"padding eats width", "width", func(p *Mt.LineParams) { p.Width = 40 }},
		{"negative width", "width", func(p *Mt.LineParams) { p.Width = -500 }},
		{"padding eats height", "height", func(p *Mt.LineParams) { p.Height = 20 }},
		{"negative axis max", "axisMax", func(p *Mt.LineParams) { p.AxisMax = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := makeLineParams()
			tt.edit(&p)
			_, err := Mc.NewLineGeometry(p)
			assertError(t, err, Mc.ErrInvalidAxisBounds)

			var ie *Mc.InputError
			if !errors.As(err, &ie) {
				t.Fatalf("expected *InputError, got %T", err)
			}
			assertString(t, ie.Field, tt.field)
		})
	}

	t.Run("NaN stays visible in the message", func(t *testing.T) {
		p := makeLineParams()
		p.MaxYAxisValue = math.NaN()
		_, err := Mc.NewLineGeometry(p)
		assertStringContains(t, err.Error(), "NaN")
	})
}

func TestMap(t *testing.T) {
	g, err := Mc.NewLineGeometry(makeLineParams())
	if err != nil {
		t.Fatal(err)
	}

	t.Run("First point sits at the left padding", func(t *testing.T) {
		p := Mc.Map(10, 0, g)
		assertFloat(t, p.X, 20)
		assertFloat(t, p.Y, -28)
	})

	t.Run("Values above the axis are clamped", func(t *testing.T) {
		over := Mc.Map(250, 2, g)
		top := Mc.Map(100, 2, g)
		assertFloat(t, over.Y, top.Y)
		assertFloat(t, over.Y, -280)
	})

	t.Run("Clamp is idempotent", func(t *testing.T) {
		once := Mc.Map(400, 1, g)
		twice := Mc.Map(-once.Y/g.StepY, 1, g)
		assertFloat(t, once.Y, twice.Y)
	})

	t.Run("Y is never above the top or below the baseline", func(t *testing.T) {
		for i, v := range []float64{0, 1, 50, 99.9, 100, 1e9} {
			p := Mc.Map(v, i, g)
			if p.Y > 0 || p.Y < -280-1e-9 {
				t.Errorf("value %v mapped out of range: %v", v, p.Y)
			}
		}
	})
}

func TestFormatNumber(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0"},
		{math.Copysign(0, -1), "0"},
		{math.NaN(), "0"},
		{math.Inf(1), "0"},
		{20, "20"},
		{-28, "-28"},
		{1.5, "1.5"},
		{0.1, "0.1"},
	}
	for _, tt := range tests {
		assertString(t, Mc.FormatNumber(tt.in), tt.want)
	}

	t.Run("No scientific notation", func(t *testing.T) {
		got := Mc.FormatNumber(1e21)
		if strings.ContainsAny(got, "eE") {
			t.Errorf("expected plain decimal, got %q", got)
		}
	})
}

func makeLineParams() Mt.LineParams {
	return Mt.LineParams{
		ValueArray:    []float64{10000, 20000, 60000},
		MaxXAxisValue: 7,
		MaxYAxisValue: 100000,
		Width:         500,
		Height:        300,
		PaddingTop:    20,
		PaddingLeft:   20,
		PaddingRight:  20,
		AxisMax:       100,
	}
}

func assertError(t testing.TB, got, want error) {
	t.Helper()
	if !errors.Is(got, want) {
		t.Errorf("got error %q want %q", got, want)
	}
}

func assertGotError(t testing.TB, got error) {
	t.Helper()
	if got == nil {
		t.Errorf("Expected an error but got %q", got)
	}
}

func assertInt(t *testing.T, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("did not get correct value, got %d, want %d", got, want)
	}
}

func assertFloat(t *testing.T, got, want float64) {
	t.Helper()
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("did not get correct value, got %v, want %v", got, want)
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
		t.Errorf("Did not find %q, expected string contains %q", want, full)
	}
}
