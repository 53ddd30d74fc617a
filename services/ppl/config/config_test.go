// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigLoadsAndValidates(t *testing.T) {
	cfg, err := Default()
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, 200, cfg.Inference.DefaultParticles)
	assert.Equal(t, ":8080", cfg.Server.Addr)
}

func TestLoadRejectsMissingRequiredFields(t *testing.T) {
	_, err := Load([]byte(`
inference:
  default_particles: 10
  default_mh_steps: 10
  default_importance_samples: 10
  resample_ess_threshold: 0.5
server:
  addr: ""
  rate_limit_per_second: 5
  rate_limit_burst: 10
`))
	require.Error(t, err)
}

func TestLoadRejectsEmptyInput(t *testing.T) {
	_, err := Load(nil)
	require.Error(t, err)
}

func TestApplyOptions(t *testing.T) {
	cfg, err := Default()
	require.NoError(t, err)
	Apply(cfg, WithServerAddr(":9090"), WithDefaultParticles(42))
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, 42, cfg.Inference.DefaultParticles)
}
