// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package telemetry wires the OpenTelemetry SDK and the Prometheus
// endpoint for the modeltree CLI.
//
// Library packages only use the otel API (otel.Tracer) and promauto
// metrics; without Init their spans are no-ops. Init installs a tracer
// provider and a meter provider chosen by Config, and ServeMetrics
// exposes the default Prometheus registry at /metrics.
//
// # Usage
//
//	shutdown, err := telemetry.Init(ctx, telemetry.DefaultConfig())
//	if err != nil {
//	    return fmt.Errorf("init telemetry: %w", err)
//	}
//	defer shutdown(context.Background())
//
// # Environment Variables
//
//   - OTEL_TRACES_EXPORTER: otlp, stdout, or none (default: none)
//   - OTEL_METRICS_EXPORTER: prometheus, stdout, or none (default: prometheus)
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OTLP endpoint (default: localhost:4317)
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
)

var (
	// ErrNilContext is returned by Init for a nil context.
	ErrNilContext = errors.New("telemetry: nil context")

	// ErrUnknownExporter is returned for an unsupported exporter name.
	ErrUnknownExporter = errors.New("unknown exporter type")
)

// Config controls telemetry behavior.
type Config struct {
	// ServiceName identifies this process in traces and metrics.
	ServiceName string

	// ServiceVersion is the version string for this process.
	ServiceVersion string

	// TraceExporter is one of TraceExporters.
	TraceExporter string

	// MetricExporter is one of MetricExporters.
	MetricExporter string

	// OTLPEndpoint is the OTLP gRPC receiver for traces.
	OTLPEndpoint string

	// OTLPInsecure disables TLS for OTLP connections.
	OTLPInsecure bool

	// Output receives stdout exporter data. Default: os.Stdout.
	Output io.Writer
}

// DefaultConfig returns defaults suited to a CLI: no trace export and
// Prometheus metrics, overridable through the standard OTEL_ variables.
func DefaultConfig() Config {
	return Config{
		ServiceName:    "modeltree",
		ServiceVersion: "0.1.0",
		TraceExporter:  getEnvOr("OTEL_TRACES_EXPORTER", "none"),
		MetricExporter: getEnvOr("OTEL_METRICS_EXPORTER", "prometheus"),
		OTLPEndpoint:   getEnvOr("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		OTLPInsecure:   true,
	}
}

func (c Config) output() io.Writer {
	if c.Output != nil {
		return c.Output
	}
	return os.Stdout
}

func (c Config) resource() *resource.Resource {
	return resource.NewWithAttributes("",
		attribute.String("service.name", c.ServiceName),
		attribute.String("service.version", c.ServiceVersion),
	)
}

// =============================================================================
// Exporters
// =============================================================================

type spanExporterFunc func(ctx context.Context, cfg Config) (trace.SpanExporter, error)

type metricReaderFunc func(cfg Config) (metric.Reader, error)

// spanExporters maps TraceExporter names to constructors. "none" is
// handled by Init.
var spanExporters = map[string]spanExporterFunc{
	"otlp": func(ctx context.Context, cfg Config) (trace.SpanExporter, error) {
		opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint)}
		if cfg.OTLPInsecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		return otlptracegrpc.New(ctx, opts...)
	},
	"stdout": func(_ context.Context, cfg Config) (trace.SpanExporter, error) {
		return stdouttrace.New(stdouttrace.WithWriter(cfg.output()), stdouttrace.WithPrettyPrint())
	},
}

// metricReaders maps MetricExporter names to constructors. The
// prometheus reader registers with the default Prometheus registry, so
// ServeMetrics exposes OTel instruments next to the promauto metrics.
var metricReaders = map[string]metricReaderFunc{
	"prometheus": func(Config) (metric.Reader, error) {
		return promexporter.New()
	},
	"stdout": func(cfg Config) (metric.Reader, error) {
		exp, err := stdoutmetric.New(stdoutmetric.WithWriter(cfg.output()))
		if err != nil {
			return nil, err
		}
		return metric.NewPeriodicReader(exp), nil
	},
}

// TraceExporters returns the accepted TraceExporter names.
func TraceExporters() []string { return exporterNames(spanExporters) }

// MetricExporters returns the accepted MetricExporter names.
func MetricExporters() []string { return exporterNames(metricReaders) }

func exporterNames[V any](m map[string]V) []string {
	names := []string{"none"}
	for k := range m {
		names = append(names, k)
	}
	slices.Sort(names[1:])
	return names
}

// =============================================================================
// Init
// =============================================================================

// Init installs the global tracer and meter providers.
//
// # Inputs
//
//   - ctx: Context for exporter setup.
//   - cfg: Telemetry configuration.
//
// # Outputs
//
//   - func(context.Context) error: Flushes and shuts down every provider
//     Init installed. Must be called.
//   - error: ErrNilContext, or ErrUnknownExporter wrapped with the name.
//     Nothing is installed on error.
func Init(ctx context.Context, cfg Config) (func(context.Context) error, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	newSpans, ok := spanExporters[cfg.TraceExporter]
	if !ok && cfg.TraceExporter != "none" {
		return nil, fmt.Errorf("init tracer: %w: %s", ErrUnknownExporter, cfg.TraceExporter)
	}
	newReader, ok := metricReaders[cfg.MetricExporter]
	if !ok && cfg.MetricExporter != "none" {
		return nil, fmt.Errorf("init meter: %w: %s", ErrUnknownExporter, cfg.MetricExporter)
	}

	res := cfg.resource()
	var tp *trace.TracerProvider
	if newSpans != nil {
		exp, err := newSpans(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("init tracer: create %s exporter: %w", cfg.TraceExporter, err)
		}
		tp = trace.NewTracerProvider(
			trace.WithBatcher(exp),
			trace.WithResource(res),
			trace.WithSampler(trace.AlwaysSample()),
		)
	}
	var mp *metric.MeterProvider
	if newReader != nil {
		reader, err := newReader(cfg)
		if err != nil {
			if tp != nil {
				_ = tp.Shutdown(ctx)
			}
			return nil, fmt.Errorf("init meter: create %s exporter: %w", cfg.MetricExporter, err)
		}
		mp = metric.NewMeterProvider(metric.WithResource(res), metric.WithReader(reader))
	}

	if tp != nil {
		otel.SetTracerProvider(tp)
	}
	if mp != nil {
		otel.SetMeterProvider(mp)
	}
	return func(ctx context.Context) error {
		var errs []error
		if tp != nil {
			errs = append(errs, tp.Shutdown(ctx))
		}
		if mp != nil {
			errs = append(errs, mp.Shutdown(ctx))
		}
		return errors.Join(errs...)
	}, nil
}

func getEnvOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
