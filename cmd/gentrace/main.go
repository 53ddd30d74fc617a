// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command gentrace drives the probabilistic-programming runtime from
// the shell: simulating and generating traces of the bundled example
// models, running Metropolis-Hastings and sequential Monte Carlo
// inference, browsing a trace's choice trie interactively, and serving
// the same operations over HTTP.
package main

import (
	"fmt"
	"os"

	"github.com/latticeforge/gentrace/services/ppl/config"
	"github.com/spf13/cobra"
)

// cfgPath and otlpEndpoint hold flag values shared by every subcommand.
var (
	cfgPath      string
	otlpEndpoint string
)

// cfg is the loaded run configuration, populated by rootCmd's
// PersistentPreRunE before any subcommand body runs.
var cfg *config.RunConfig

var rootCmd = &cobra.Command{
	Use:           "gentrace",
	Short:         "A probabilistic-programming trace runtime",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := loadConfig(cfgPath)
		if err != nil {
			return fmt.Errorf("gentrace: %w", err)
		}
		cfg = loaded
		return nil
	},
}

func loadConfig(path string) (*config.RunConfig, error) {
	if path == "" {
		return config.Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return config.Load(data)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "path to a RunConfig YAML file (defaults to the embedded config)")
	rootCmd.PersistentFlags().StringVar(&otlpEndpoint, "otlp-endpoint", "", "OTLP/gRPC collector endpoint (stdout exporter when empty)")

	rootCmd.AddCommand(simulateCmd)
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(mhCmd)
	rootCmd.AddCommand(smcCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(browseCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
