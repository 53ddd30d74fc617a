// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// gentraceMeter is the OTel meter used for instruments that, unlike
// the promauto-registered counters in metrics.go, need to be recorded
// through the OTel metrics API directly (e.g. observable gauges fed by
// a callback).
var gentraceMeter = otel.Meter("gentrace.infer")

// Meter returns the shared OTel meter used across the module.
func Meter() metric.Meter { return gentraceMeter }

// SetupMeter installs a MeterProvider as the global OTel meter
// provider and returns a shutdown func. When usePrometheus is true,
// metrics are additionally exposed through the OTel Prometheus bridge
// (readable alongside the promauto metrics in metrics.go); otherwise
// they are periodically exported to stdout.
func SetupMeter(ctx context.Context, usePrometheus bool) (shutdown func(context.Context) error, err error) {
	var reader sdkmetric.Reader
	if usePrometheus {
		reader, err = prometheus.New()
	} else {
		var exporter sdkmetric.Exporter
		exporter, err = stdoutmetric.New()
		if err == nil {
			reader = sdkmetric.NewPeriodicReader(exporter)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("telemetry: setup_meter: creating reader: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(mp)
	return mp.Shutdown, nil
}
