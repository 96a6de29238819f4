package contour

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/honeycombio/otel-config-go/otelconfig"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const TracerName = "github.com/maroda/contour"

// Tracer is the global tracer for contour spans.
// Without InitOTel it is a no-op.
func Tracer() trace.Tracer {
	return otel.Tracer(TracerName)
}

// InitOTel picks an exporter by name: "honeycomb", "otlp", or "" for none.
// The returned shutdown is always safe to call.
func InitOTel(mode string) (func(), error) {
	switch mode {
	case "", "none":
		return func() {}, nil
	case "honeycomb":
		return InitOTelHNY()
	case "otlp":
		tp, err := InitOTelGRF()
		if err != nil {
			return func() {}, err
		}
		return func() {
			if err := tp.Shutdown(context.Background()); err != nil {
				slog.Error("OTel shutdown failed", slog.Any("Error", err))
			}
		}, nil
	}
	return func() {}, fmt.Errorf("unknown otel mode: %s", mode)
}

// InitOTelHNY uses the Honeycomb library to interface with OTel
func InitOTelHNY() (func(), error) {
	otelShutdown, err := otelconfig.ConfigureOpenTelemetry()
	if err != nil {
		return func() {}, fmt.Errorf("failed to configure OpenTelemetry: %w", err)
	}
	return func() { otelShutdown() }, nil
}

// InitOTelGRF uses the Grafana recommended configuration including Baggage for propagation
func InitOTelGRF() (*sdktrace.TracerProvider, error) {
	exporter, err := otlptrace.New(context.Background(), otlptracehttp.NewClient())
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithBatcher(exporter),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{}))
	return tp, nil
}
