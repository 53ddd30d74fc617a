// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package telemetry wires up the tracer and metrics surfaces the
// gentrace CLI and server report inference activity through: an OTel tracer
// (stdout by default, OTLP/gRPC when an endpoint is configured) and a
// Prometheus registry exposing per-kernel counters and histograms.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// gentraceTracer is the shared OTel tracer exposed through Tracer.
// The infer kernels do not start spans on it themselves.
var gentraceTracer = otel.Tracer("gentrace.infer")

// Tracer returns the shared tracer used across the module.
func Tracer() trace.Tracer { return gentraceTracer }

// Setup installs a TracerProvider as the global OTel provider and
// returns a shutdown func the caller must invoke before exit. When
// otlpEndpoint is empty, spans are exported to stdout; otherwise an
// OTLP/gRPC exporter is used instead.
func Setup(ctx context.Context, otlpEndpoint string) (shutdown func(context.Context) error, err error) {
	var exporter sdktrace.SpanExporter
	if otlpEndpoint == "" {
		exporter, err = stdouttrace.New(stdouttrace.WithPrettyPrint())
	} else {
		exporter, err = otlptracegrpc.New(ctx, otlptracegrpc.WithEndpoint(otlpEndpoint), otlptracegrpc.WithInsecure())
	}
	if err != nil {
		return nil, fmt.Errorf("telemetry: setup: creating exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}
