// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package gfi

import "math/rand"

// Distribution is the primitive-distribution contract: an external
// collaborator a sample_at call draws from. Concrete distributions
// (package dist) are simple enough to implement against math/rand
// directly rather than via a statistics library; see DESIGN.md.
type Distribution interface {
	// Sample draws a value from the distribution given params (a
	// concrete, distribution-specific parameter struct).
	Sample(rng *rand.Rand, params any) Value

	// LogPdf returns the log-density of x under params. It must
	// return -Inf for x outside the distribution's support, and must
	// never return NaN for an in-support x.
	LogPdf(x Value, params any) float64
}
