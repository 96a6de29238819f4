// Contour draws animated line and circular progress charts
// as SVG documents, in the terminal, and over HTTP.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	Ma "github.com/maroda/contour/animate"
	Mc "github.com/maroda/contour/chart"
	Md "github.com/maroda/contour/display"
	Mo "github.com/maroda/contour/obvy"
	Mp "github.com/maroda/contour/plugin"
	Ms "github.com/maroda/contour/server"
	Mt "github.com/maroda/contour/types"
)

// Build-time variables (set via -ldflags).
var (
	version = "dev"
	commit  = "unknown"
)

var (
	settings     Ms.Settings
	otelShutdown = func() {}
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "contour",
	Short:         "Animated line and circular progress charts",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		v := Ms.NewViper()
		for key, flag := range map[string]string{
			Ms.KeyAddr:          "addr",
			Ms.KeyCharts:        "charts",
			Ms.KeyLogLevel:      "log-level",
			Ms.KeyLogFormat:     "log-format",
			Ms.KeyOTel:          "otel",
			Ms.KeyFrameInterval: "frame-interval",
			Ms.KeyRecordFrames:  "record",
			Ms.KeySVGDir:        "svg-dir",
		} {
			if f := cmd.Flags().Lookup(flag); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return err
				}
			}
		}

		configFile, _ := cmd.Flags().GetString("config")
		var err error
		settings, err = Ms.LoadSettings(v, configFile)
		if err != nil {
			return fmt.Errorf("failed to load settings: %w", err)
		}

		if err := setupLogging(cmd.ErrOrStderr(), settings); err != nil {
			return err
		}

		otelShutdown, err = Mo.InitOTel(settings.OTel)
		if err != nil {
			return err
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		otelShutdown()
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "settings file (yaml, json or toml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "", "log format (text, json)")
	rootCmd.PersistentFlags().String("otel", "", "tracing exporter (honeycomb, otlp)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(lineCmd)
	rootCmd.AddCommand(circleCmd)
	rootCmd.AddCommand(viewCmd)
	rootCmd.AddCommand(serveCmd)
}

// setupLogging installs the slog handler the settings ask for
func setupLogging(w io.Writer, s Ms.Settings) error {
	level, err := Ms.ParseLogLevel(s.LogLevel)
	if err != nil {
		return err
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler = slog.NewTextHandler(w, opts)
	if s.LogFormat == "json" {
		handler = slog.NewJSONHandler(w, opts)
	}
	slog.SetDefault(slog.New(handler))
	return nil
}

// --- Version Command ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "contour %s (%s)\n", version, commit)
	},
}

// --- Static renders ---

// fixedClock never moves, so a frame can be taken at any point of the animation
type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

// renderAt draws cfg as it looks frac of the way through its animation
func renderAt(ctx context.Context, w io.Writer, cfg Ms.ChartConfig, frac float64) error {
	clock := fixedClock{t: time.Now()}
	cs, err := Ms.NewChartSetFromConfig(ctx, []Ms.ChartConfig{cfg}, clock, nil)
	if err != nil {
		return err
	}
	if err := cs.Replay(cfg.ID); err != nil {
		return err
	}

	at := clock.t.Add(time.Duration(Mc.ClampProgress(frac) * float64(Ma.Duration)))
	f, err := cs.Frame(cfg.ID, at)
	if err != nil {
		return err
	}
	return Mp.RenderFrame(w, &f)
}

// output opens the --out file, or stdout when it is empty or "-"
func output(cmd *cobra.Command) (io.Writer, func() error, error) {
	name, _ := cmd.Flags().GetString("out")
	if name == "" || name == "-" {
		return cmd.OutOrStdout(), func() error { return nil }, nil
	}
	f, err := os.Create(name)
	if err != nil {
		return nil, nil, err
	}
	return f, f.Close, nil
}

var lineCmd = &cobra.Command{
	Use:   "line",
	Short: "Render a line chart as SVG",
	Example: `  contour line --values "10000, 20000, 60000" --max-x 7 --max-y 100000
  contour line --xlsx visits.xlsx --column B --max-y 500 --out visits.svg`,
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()
		raw, _ := flags.GetString("values")
		maxX, _ := flags.GetString("max-x")
		maxY, _ := flags.GetString("max-y")
		frac, _ := flags.GetFloat64("frac")
		xlsxIn, _ := flags.GetString("xlsx")
		sheet, _ := flags.GetString("sheet")
		column, _ := flags.GetString("column")
		xlsxOut, _ := flags.GetString("xlsx-out")

		var (
			values []float64
			err    error
		)
		if xlsxIn != "" {
			values, err = Ms.ReadXLSXSeries(xlsxIn, sheet, column)
		} else {
			values, err = Ms.ParseSeries(raw)
		}
		if err != nil {
			return err
		}

		x, err := Ms.ParseAxisInt("max-x", maxX)
		if err != nil {
			return err
		}
		y, err := Ms.ParseAxisFloat("max-y", maxY)
		if err != nil {
			return err
		}

		if xlsxOut != "" {
			if err := Ms.WriteXLSXSeries(xlsxOut, sheet, "value", values); err != nil {
				return err
			}
		}

		w, closeOut, err := output(cmd)
		if err != nil {
			return err
		}
		cfg := Ms.ChartConfig{ID: "line", Kind: Mt.KindLine, Values: values, MaxXAxisValue: x, MaxYAxisValue: y}
		if err := renderAt(cmd.Context(), w, cfg, frac); err != nil {
			closeOut()
			return err
		}
		return closeOut()
	},
}

var circleCmd = &cobra.Command{
	Use:     "circle",
	Short:   "Render a circular progress chart as SVG",
	Example: `  contour circle --progress 0.75 --radius 80 --stroke-color "#16A5A5"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()
		progress, _ := flags.GetFloat64("progress")
		radius, _ := flags.GetFloat64("radius")
		stroke, _ := flags.GetFloat64("stroke-width")
		strokeColor, _ := flags.GetString("stroke-color")
		trackColor, _ := flags.GetString("track-color")
		frac, _ := flags.GetFloat64("frac")

		w, closeOut, err := output(cmd)
		if err != nil {
			return err
		}
		cfg := Ms.ChartConfig{
			ID:          "circle",
			Kind:        Mt.KindCircle,
			Progress:    progress,
			Radius:      radius,
			StrokeWidth: stroke,
			StrokeColor: strokeColor,
			TrackColor:  trackColor,
		}
		if err := renderAt(cmd.Context(), w, cfg, frac); err != nil {
			closeOut()
			return err
		}
		return closeOut()
	},
}

func init() {
	lineCmd.Flags().String("values", "10000, 20000, 60000", "series values, separated by commas or spaces")
	lineCmd.Flags().String("max-x", "7", "number of x-axis slots")
	lineCmd.Flags().String("max-y", "100000", "value that maps to the top of the chart")
	lineCmd.Flags().String("xlsx", "", "read values from a spreadsheet instead")
	lineCmd.Flags().String("sheet", "", "spreadsheet sheet, the first one by default")
	lineCmd.Flags().String("column", "A", "spreadsheet column")
	lineCmd.Flags().String("xlsx-out", "", "also save the values to this spreadsheet")

	circleCmd.Flags().Float64("progress", Mc.DefaultProgress, "progress between 0 and 1")
	circleCmd.Flags().Float64("radius", Mc.DefaultRadius, "circle radius")
	circleCmd.Flags().Float64("stroke-width", Mc.DefaultStrokeWidth, "ring width")
	circleCmd.Flags().String("stroke-color", Mc.DefaultStrokeColor, "progress color")
	circleCmd.Flags().String("track-color", Mc.DefaultTrackColor, "track color")

	for _, c := range []*cobra.Command{lineCmd, circleCmd} {
		c.Flags().Float64("frac", 1, "point of the animation to draw, 0 to 1")
		c.Flags().StringP("out", "o", "", "output file, stdout by default")
	}
}

// --- Long running commands ---

// loadCharts reads the chart definitions file, or returns the demo charts
func loadCharts(ctx context.Context, stats *Mo.StatsInternal) (*Ms.ChartSet, error) {
	cf := Ms.DefaultCharts()
	if settings.Charts != "" {
		var err error
		cf, err = Ms.LoadConfigFileName(settings.Charts)
		if err != nil {
			return nil, fmt.Errorf("failed to load charts: %w", err)
		}
	}
	return Ms.NewChartSetFromConfig(ctx, cf, nil, stats)
}

// recorder builds the frame output the settings ask for, nil when none
func recorder() (Mp.OutputAdapter, error) {
	switch {
	case settings.RecordFrames:
		if settings.SVGDir != "" {
			slog.Warn("Both frame recording and SVG output are set, recording wins")
		}
		out, err := Mp.NewBadgerOutput(settings.BadgerPath, settings.RecordBatch)
		if err != nil {
			return nil, err
		}
		return out, nil
	case settings.SVGDir != "":
		out, err := Mp.NewSVGOutput(settings.SVGDir)
		if err != nil {
			return nil, err
		}
		return out, nil
	}
	return nil, nil
}

func runLong(cmd *cobra.Command, run func(ctx context.Context, cs *Ms.ChartSet, stats *Mo.StatsInternal, opts Md.Options) error) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stats := Mo.NewStatsInternal()
	cs, err := loadCharts(ctx, stats)
	if err != nil {
		return err
	}

	rec, err := recorder()
	if err != nil {
		return err
	}
	if rec != nil {
		defer func() {
			if err := rec.Close(); err != nil {
				slog.Error("Could not close frame output", slog.Any("Error", err))
			}
		}()
	}

	return run(ctx, cs, stats, Md.Options{
		Addr:          settings.Addr,
		FrameInterval: settings.FrameInterval,
		FetchInterval: settings.FetchInterval,
		Recorder:      rec,
	})
}

var viewCmd = &cobra.Command{
	Use:   "view",
	Short: "Animated terminal preview",
	RunE: func(cmd *cobra.Command, args []string) error {
		noServer, _ := cmd.Flags().GetBool("no-server")
		if noServer {
			settings.Addr = ""
		}

		return runLong(cmd, func(ctx context.Context, cs *Ms.ChartSet, stats *Mo.StatsInternal, opts Md.Options) error {
			screen, err := Md.NewTTY()
			if err != nil {
				return err
			}
			return Md.StartPreview(ctx, cs, stats, screen, opts)
		})
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve charts, frames and metrics over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		Md.Version = version
		return runLong(cmd, Md.Serve)
	},
}

func init() {
	for _, c := range []*cobra.Command{viewCmd, serveCmd} {
		c.Flags().String("addr", "", "listen address (default :8090)")
		c.Flags().String("charts", "", "chart definitions file, demo charts by default")
		c.Flags().Duration("frame-interval", 0, "time between animation frames (default 50ms)")
		c.Flags().Bool("record", false, "record frames to badger")
		c.Flags().String("svg-dir", "", "keep the latest SVG of every chart in this directory")
	}
	viewCmd.Flags().Bool("no-server", false, "do not start the HTTP server")
}
