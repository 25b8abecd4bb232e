package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/go-kit/log/level"
	gokitlog "github.com/go-kit/log"
	"github.com/joho/godotenv"

	"github.com/matopiba/forecast-pipeline/internal/audit"
	"github.com/matopiba/forecast-pipeline/internal/cache"
	"github.com/matopiba/forecast-pipeline/internal/config"
	"github.com/matopiba/forecast-pipeline/internal/forecast"
	"github.com/matopiba/forecast-pipeline/internal/orchestrator"
	"github.com/matopiba/forecast-pipeline/internal/profile"
)

// cmdTrigger runs a single orchestration pass directly against the
// configured backends, bypassing the scheduler. Useful for manual
// backfills or exercising a fresh deployment before its first fire.
func cmdTrigger(hour int, envFile, configFile, cpuProfile string) {
	if cpuProfile != "" {
		profiler := profile.NewProfiler()
		if err := profiler.StartCPUProfile(cpuProfile); err != nil {
			log.Fatalf("failed to start CPU profile: %v", err)
		}
		defer profiler.StopCPUProfile()
	}

	if _, err := os.Stat(envFile); err == nil {
		if err := godotenv.Load(envFile); err != nil {
			log.Printf("warning: failed to load %s: %v", envFile, err)
		}
	}

	cfg, err := config.Load(configFile)
	if err != nil {
		log.Fatalf("configuration invalid: %v", err)
	}

	roster, err := cfg.LoadRoster()
	if err != nil {
		log.Fatalf("city roster invalid: %v", err)
	}

	cacheGateway, err := cache.NewGateway(8)
	if err != nil {
		log.Fatalf("cache gateway init failed: %v", err)
	}

	var auditGateway *audit.Gateway
	if cfg.DBURL != "" {
		auditGateway, err = audit.Open(cfg.DBURL)
		if err != nil {
			log.Fatalf("audit gateway init failed: %v", err)
		}
		defer auditGateway.Close()
	}

	logger := gokitlog.NewLogfmtLogger(os.Stderr)
	loc, err := time.LoadLocation("America/Sao_Paulo")
	if err != nil {
		loc = time.UTC
	}
	client := forecast.NewClient(cfg.ProviderBaseURL)
	orch := orchestrator.New(roster, client, cacheGateway, auditGateway, logger, loc, "matopibactl-trigger")
	orch.Timings = profile.NewPipelineTimings()

	report, err := orch.Run(context.Background(), hour)
	if err != nil {
		level.Error(logger).Log("msg", "run failed", "err", err)
		os.Exit(1)
	}

	fmt.Printf("Run %s complete: %d/%d cities succeeded, quality=%s, duration=%.1fs\n",
		report.RunID, report.NCitiesSucceeded, report.NCitiesAttempted, report.Quality, report.DurationS)
	for _, f := range report.Failures {
		fmt.Printf("  failed: %s (%s)\n", f.CityCode, f.ErrorKind)
	}
	orch.Timings.PrintReport(os.Stdout)
}
