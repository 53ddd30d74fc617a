// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gin-gonic/gin"
	"github.com/go-openapi/strfmt"
	"github.com/gorilla/websocket"
	"github.com/latticeforge/gentrace/services/ppl/choicetrie"
	"github.com/latticeforge/gentrace/services/ppl/config"
	"github.com/latticeforge/gentrace/services/ppl/examples"
	"github.com/latticeforge/gentrace/services/ppl/gfi"
	"github.com/latticeforge/gentrace/services/ppl/infer"
	"github.com/latticeforge/gentrace/services/ppl/telemetry"
	"github.com/latticeforge/gentrace/services/ppl/unfold"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"golang.org/x/time/rate"
)

var (
	serveAddr        string
	serveWatchConfig bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve inference operations over HTTP",
	RunE:  runServeCommand,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (defaults to config.Server.Addr)")
	serveCmd.Flags().BoolVar(&serveWatchConfig, "watch-config", false, "hot-reload the run config file on change")
}

// liveConfig holds the currently-active RunConfig behind an
// atomic.Pointer so request handlers never race with --watch-config
// reloads swapping it out.
var liveConfig atomic.Pointer[config.RunConfig]

// runStartedResp is the JSON response of the simulate and generate
// endpoints: when the run started, and what it produced. The mh and
// smc endpoints reply with their own field sets.
type runStartedResp struct {
	StartedAt strfmt.DateTime `json:"started_at"`
	LogJP     float64         `json:"log_jp,omitempty"`
	Weight    float64         `json:"weight,omitempty"`
}

func runServeCommand(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	shutdown, err := telemetry.Setup(ctx, otlpEndpoint)
	if err != nil {
		return fmt.Errorf("telemetry setup: %w", err)
	}
	defer shutdown(ctx)
	meterShutdown, err := telemetry.SetupMeter(ctx, true)
	if err != nil {
		return fmt.Errorf("meter setup: %w", err)
	}
	defer meterShutdown(ctx)

	liveConfig.Store(cfg)
	if serveWatchConfig && cfgPath != "" {
		watcher, werr := startConfigWatcher(cfgPath)
		if werr != nil {
			return fmt.Errorf("start config watcher: %w", werr)
		}
		defer watcher.Close()
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("gentrace"))
	router.Use(rateLimitMiddleware())

	v1 := router.Group("/v1/ppl")
	v1.POST("/simulate", handleSimulate)
	v1.POST("/generate", handleGenerate)
	v1.POST("/mh", handleMH)
	v1.POST("/smc", handleSMC)
	v1.GET("/smc/stream", handleSMCStream)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	addr := serveAddr
	if addr == "" {
		addr = liveConfig.Load().Server.Addr
	}

	srv := &http.Server{Addr: addr, Handler: router}
	go func() {
		slog.Info("gentrace serve listening", slog.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server exited", slog.String("error", err.Error()))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down gentrace serve")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// startConfigWatcher watches path for writes and hot-swaps liveConfig
// whenever the file parses cleanly; a parse failure is logged and the
// previous config stays live.
func startConfigWatcher(path string) (*fsnotify.Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(path); err != nil {
		watcher.Close()
		return nil, err
	}
	go func() {
		for event := range watcher.Events {
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			data, err := os.ReadFile(path)
			if err != nil {
				slog.Warn("config watch: read failed", slog.String("error", err.Error()))
				continue
			}
			reloaded, err := config.Load(data)
			if err != nil {
				slog.Warn("config watch: reload rejected", slog.String("error", err.Error()))
				continue
			}
			liveConfig.Store(reloaded)
			slog.Info("config reloaded", slog.String("path", path))
		}
	}()
	return watcher, nil
}

// rateLimitMiddleware applies a single token-bucket shared across all
// clients, sized once from the config loaded at startup (a
// --watch-config reload does not resize it); simple, process-wide
// protection rather than per-client fairness.
func rateLimitMiddleware() gin.HandlerFunc {
	limiter := rate.NewLimiter(rate.Limit(cfg.Server.RateLimitPerSecond), cfg.Server.RateLimitBurst)
	return func(c *gin.Context) {
		if !limiter.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}

func newPointed2DArgs() examples.Pointed2DArgs {
	return examples.Pointed2DArgs{
		Bounds: examples.Bounds{XMin: -5, XMax: 5, YMin: -5, YMax: 5},
		ObsCov: [][]float64{{0.1, 0}, {0, 0.1}},
	}
}

func handleSimulate(c *gin.Context) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	trace := examples.Pointed2D().Simulate(rng, newPointed2DArgs())
	c.JSON(http.StatusOK, runStartedResp{StartedAt: strfmt.DateTime(time.Now()), LogJP: trace.Logjp})
}

func handleGenerate(c *gin.Context) {
	var req struct {
		ObsX float64 `json:"obs_x"`
		ObsY float64 `json:"obs_y"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	constraints := choicetrie.FromPairs(
		choicetrie.Pair{Address: "obs", Value: gfi.VectorValue([]float64{req.ObsX, req.ObsY})},
	)
	trace, weight := examples.Pointed2D().Generate(rng, newPointed2DArgs(), constraints)
	c.JSON(http.StatusOK, runStartedResp{StartedAt: strfmt.DateTime(time.Now()), LogJP: trace.Logjp, Weight: weight})
}

func handleMH(c *gin.Context) {
	var req struct {
		Steps int `json:"steps"`
	}
	_ = c.ShouldBindJSON(&req)
	steps := req.Steps
	if steps <= 0 {
		steps = liveConfig.Load().Inference.DefaultMHSteps
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	model := examples.Pointed2D()
	proposal := examples.DriftProposal()
	driftArgs := examples.DriftProposalArgs{DriftCov: [][]float64{{0.25, 0}, {0, 0.25}}}
	constraints := choicetrie.FromPairs(
		choicetrie.Pair{Address: "obs", Value: gfi.VectorValue([]float64{1.5, -0.5})},
	)
	trace, _ := model.Generate(rng, newPointed2DArgs(), constraints)

	accepted := 0
	for i := 0; i < steps; i++ {
		start := time.Now()
		var ok bool
		trace, ok = infer.MetropolisHastings(rng, model, trace, proposal, driftArgs)
		telemetry.RecordMHOutcome("pointed2d_drift", time.Since(start), ok)
		if ok {
			accepted++
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"started_at": strfmt.DateTime(time.Now()),
		"log_jp":     trace.Logjp,
		"accepted":   accepted,
		"steps":      steps,
	})
}

func handleSMC(c *gin.Context) {
	var req struct {
		Timesteps int `json:"timesteps"`
	}
	_ = c.ShouldBindJSON(&req)
	timesteps := req.Timesteps
	if timesteps <= 0 {
		timesteps = 20
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	ps, ground := newSpiralParticleSystem(rng, timesteps)
	for t := 1; t < len(ground); t++ {
		ps.Step(rng, spiralObsConstraint(ground[t]))
		if ps.EffectiveSampleSize() < float64(len(ps.Particles()))*liveConfig.Load().Inference.ResampleESSThreshold {
			ps.Resample(rng)
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"started_at":  strfmt.DateTime(time.Now()),
		"log_ml_est":  ps.LogMarginalLikelihoodEstimate(),
		"n_particles": len(ps.Particles()),
	})
}

func newSpiralParticleSystem(rng *rand.Rand, timesteps int) (*infer.ParticleSystem[examples.SpiralState], []examples.SpiralState) {
	driftCov := [][]float64{{0.05, 0}, {0, 0.05}}
	obsCov := [][]float64{{0.1, 0}, {0, 0.1}}
	kernel := examples.SpiralKernel(driftCov, obsCov)
	ground := examples.SpiralTrajectory(0, 0, 3, timesteps, 0)
	ps := infer.NewParticleSystem(unfold.New[examples.SpiralState](kernel))
	ps.InitStep(rng, examples.SpiralState{X: 0, Y: 0}, liveConfig.Load().Inference.DefaultParticles, spiralObsConstraint(ground[0]))
	return ps, ground
}

func spiralObsConstraint(s examples.SpiralState) *choicetrie.Node {
	return choicetrie.FromPairs(
		choicetrie.Pair{Address: "obs", Value: gfi.VectorValue([]float64{s.X, s.Y})},
	)
}

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// handleSMCStream runs a particle filter over the spiral trajectory and
// streams each step's ESS and log-marginal-likelihood estimate to the
// connected client as it advances, rather than waiting for completion.
func handleSMCStream(c *gin.Context) {
	conn, err := wsUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Warn("smc stream: upgrade failed", slog.String("error", err.Error()))
		return
	}
	defer conn.Close()

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	ps, ground := newSpiralParticleSystem(rng, 40)
	threshold := liveConfig.Load().Inference.ResampleESSThreshold

	for t := 1; t < len(ground); t++ {
		ps.Step(rng, spiralObsConstraint(ground[t]))
		ess := ps.EffectiveSampleSize()
		telemetry.ParticleSystemESS.Observe(ess)
		resampled := false
		if ess < float64(len(ps.Particles()))*threshold {
			ps.Resample(rng)
			resampled = true
		}
		msg := gin.H{
			"step":       t,
			"ess":        ess,
			"resampled":  resampled,
			"log_ml_est": ps.LogMarginalLikelihoodEstimate(),
		}
		if err := conn.WriteJSON(msg); err != nil {
			return
		}
	}
}
