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
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Package-level Prometheus metrics for inference kernels. Auto-registered
// via promauto so no explicit registry wiring is needed at call sites.
var (
	// KernelCallDuration measures how long one MH/importance-sampling/SMC
	// step took.
	//
	// Labels:
	//   - kernel: the caller-chosen kernel name passed to
	//     RecordMHOutcome ("pointed2d_drift" in the CLI and server)
	KernelCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "gentrace",
			Subsystem: "infer",
			Name:      "call_duration_seconds",
			Help:      "Duration of one inference kernel call in seconds.",
			Buckets:   []float64{0.0001, 0.001, 0.01, 0.1, 1, 10},
		},
		[]string{"kernel"},
	)

	// MHAcceptTotal counts MH acceptance decisions.
	//
	// Labels:
	//   - kernel: the caller-chosen kernel name passed to RecordMHOutcome
	//   - outcome: "accepted", "rejected"
	MHAcceptTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gentrace",
			Subsystem: "infer",
			Name:      "mh_outcomes_total",
			Help:      "Total MH acceptance/rejection outcomes.",
		},
		[]string{"kernel", "outcome"},
	)

	// ParticleSystemESS records each resampling decision's effective
	// sample size, to spot particle degeneracy over a run.
	ParticleSystemESS = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "gentrace",
			Subsystem: "infer",
			Name:      "particle_ess",
			Help:      "Effective sample size observed at each particle-system step.",
			Buckets:   prometheus.LinearBuckets(0, 10, 11),
		},
	)
)

// RecordMHOutcome records one MH call's duration and accept/reject
// outcome under kernel's label.
func RecordMHOutcome(kernel string, duration time.Duration, accepted bool) {
	KernelCallDuration.WithLabelValues(kernel).Observe(duration.Seconds())
	outcome := "rejected"
	if accepted {
		outcome = "accepted"
	}
	MHAcceptTotal.WithLabelValues(kernel, outcome).Inc()
}
