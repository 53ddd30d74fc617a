// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads and validates the runtime configuration for the
// gentrace CLI and server: particle/sample counts, default MH/SMC
// tuning, and server-facing settings.
package config

import (
	_ "embed"
	"fmt"
	"log/slog"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultConfigYAML []byte

// RunConfig is the top-level configuration for a gentrace run: how
// many importance/MH/SMC samples to draw by default, and how the
// optional server surface is exposed.
type RunConfig struct {
	// Inference holds default sample/particle counts used by the mh and
	// smc subcommands and the server.
	Inference InferenceConfig `yaml:"inference" validate:"required"`

	// Server holds the optional HTTP/WebSocket server's settings.
	Server ServerConfig `yaml:"server" validate:"required"`
}

// InferenceConfig holds the default tuning parameters inference
// subcommands fall back to when not overridden on the command line.
type InferenceConfig struct {
	// DefaultParticles is the default particle count for `smc`.
	DefaultParticles int `yaml:"default_particles" validate:"required,min=1"`

	// DefaultMHSteps is the default iteration count for `mh`.
	DefaultMHSteps int `yaml:"default_mh_steps" validate:"required,min=1"`

	// DefaultImportanceSamples is a default importance-sample count N.
	// It is validated on load but no subcommand reads it; `generate`
	// makes a single constrained Generate call.
	DefaultImportanceSamples int `yaml:"default_importance_samples" validate:"required,min=1"`

	// ResampleESSThreshold triggers a resample when the particle
	// system's effective sample size falls below this fraction of N.
	ResampleESSThreshold float64 `yaml:"resample_ess_threshold" validate:"required,gt=0,lte=1"`
}

// ServerConfig configures the `gentrace serve` HTTP surface.
type ServerConfig struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string `yaml:"addr" validate:"required"`

	// RateLimitPerSecond caps accepted requests per second, across all
	// clients together.
	RateLimitPerSecond float64 `yaml:"rate_limit_per_second" validate:"required,gt=0"`

	// RateLimitBurst is the token-bucket burst size.
	RateLimitBurst int `yaml:"rate_limit_burst" validate:"required,min=1"`
}

var validate = validator.New()

// Default returns the embedded default configuration.
func Default() (*RunConfig, error) {
	return Load(defaultConfigYAML)
}

// Load parses and validates a RunConfig from YAML bytes.
func Load(data []byte) (*RunConfig, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("config: load: empty YAML data")
	}
	var cfg RunConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: load: parsing YAML: %w", err)
	}
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("config: load: validation: %w", err)
	}
	slog.Info("config loaded",
		slog.Int("default_particles", cfg.Inference.DefaultParticles),
		slog.Int("default_mh_steps", cfg.Inference.DefaultMHSteps),
		slog.String("server_addr", cfg.Server.Addr),
	)
	return &cfg, nil
}

// Option mutates a RunConfig after it has loaded, used by callers that
// want to override a handful of fields without hand-writing YAML.
type Option func(*RunConfig)

// WithServerAddr overrides the server listen address.
func WithServerAddr(addr string) Option {
	return func(c *RunConfig) { c.Server.Addr = addr }
}

// WithDefaultParticles overrides the default SMC particle count.
func WithDefaultParticles(n int) Option {
	return func(c *RunConfig) { c.Inference.DefaultParticles = n }
}

// Apply runs every option against cfg in order.
func Apply(cfg *RunConfig, opts ...Option) *RunConfig {
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}
