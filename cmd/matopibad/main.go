// Command matopibad runs the scheduled forecast pipeline and serves its
// published output over HTTP.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	kingpin "github.com/alecthomas/kingpin/v2"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/common/promlog"
	promlogflag "github.com/prometheus/common/promlog/flag"
	"github.com/prometheus/common/version"
	"github.com/prometheus/exporter-toolkit/web"
	webflag "github.com/prometheus/exporter-toolkit/web/kingpinflag"

	"github.com/matopiba/forecast-pipeline/internal/apiserver"
	"github.com/matopiba/forecast-pipeline/internal/audit"
	"github.com/matopiba/forecast-pipeline/internal/cache"
	"github.com/matopiba/forecast-pipeline/internal/config"
	"github.com/matopiba/forecast-pipeline/internal/forecast"
	"github.com/matopiba/forecast-pipeline/internal/orchestrator"
	"github.com/matopiba/forecast-pipeline/internal/schedule"
)

var (
	envFile = kingpin.Flag(
		"env.file",
		"Optional .env file loaded before configuration (dev convenience).",
	).Default(".env").String()
	configFile = kingpin.Flag(
		"config.file",
		"Optional YAML config file overlaying environment configuration.",
	).String()
	metricsPath = kingpin.Flag(
		"web.telemetry-path",
		"Path under which to expose Prometheus metrics.",
	).Default("/metrics").String()
	webConfig = webflag.AddFlags(kingpin.CommandLine, ":9900")
)

func main() {
	promlogConfig := &promlog.Config{}
	promlogflag.AddFlags(kingpin.CommandLine, promlogConfig)
	kingpin.CommandLine.UsageWriter(os.Stdout)
	kingpin.HelpFlag.Short('h')
	kingpin.Version(version.Print("matopibad"))
	kingpin.Parse()

	logger := promlog.New(promlogConfig)
	level.Info(logger).Log("msg", "starting matopibad", "version", version.Info())

	if _, err := os.Stat(*envFile); err == nil {
		if err := godotenv.Load(*envFile); err != nil {
			level.Warn(logger).Log("msg", "failed to load env file", "file", *envFile, "err", err)
		}
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		level.Error(logger).Log("msg", "configuration invalid", "err", err)
		os.Exit(1)
	}

	roster, err := cfg.LoadRoster()
	if err != nil {
		level.Error(logger).Log("msg", "city roster invalid", "err", err)
		os.Exit(1)
	}
	level.Info(logger).Log("msg", "city roster loaded", "n_cities", roster.Len())

	cacheGateway, err := cache.NewGateway(8)
	if err != nil {
		level.Error(logger).Log("msg", "cache gateway init failed", "err", err)
		os.Exit(1)
	}

	var auditGateway *audit.Gateway
	if cfg.DBURL != "" {
		auditGateway, err = audit.Open(cfg.DBURL)
		if err != nil {
			level.Error(logger).Log("msg", "audit gateway init failed", "err", err)
			os.Exit(1)
		}
		defer auditGateway.Close()
	} else {
		level.Warn(logger).Log("msg", "DB_URL not set, audit writes will be skipped")
	}

	loc, err := time.LoadLocation("America/Sao_Paulo")
	if err != nil {
		level.Warn(logger).Log("msg", "America/Sao_Paulo tzdata unavailable, falling back to UTC", "err", err)
		loc = time.UTC
	}

	client := forecast.NewClient(cfg.ProviderBaseURL)
	orch := orchestrator.New(roster, client, cacheGateway, auditGateway, logger, loc, version.Version)

	registry := prometheus.NewRegistry()
	server := apiserver.NewServer(cacheGateway, logger)
	server.RegisterMetrics(registry)
	runMetrics := apiserver.NewRunMetrics(registry)

	sched, err := schedule.New(cfg.ScheduleCron, observedRunner{orch: orch, metrics: runMetrics}, logger)
	if err != nil {
		level.Error(logger).Log("msg", "schedule config invalid", "err", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go sched.Run(ctx)

	landingPage, err := web.NewLandingPage(web.LandingConfig{
		Name:        "matopiba forecast pipeline",
		Description: "MATOPIBA regional reference evapotranspiration forecasts",
		Version:     version.Info(),
		Links: []web.LandingLinks{
			{Address: *metricsPath, Text: "Metrics"},
			{Address: "/forecasts", Text: "Forecasts"},
			{Address: "/metadata", Text: "Metadata"},
			{Address: "/health", Text: "Health"},
		},
	})
	if err != nil {
		level.Error(logger).Log("err", err)
		os.Exit(1)
	}

	mux := http.NewServeMux()
	mux.Handle(*metricsPath, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.Handle("/forecasts", server.Handler())
	mux.Handle("/metadata", server.Handler())
	mux.Handle("/health", server.Handler())
	mux.Handle("/", landingPage)

	srv := &http.Server{Handler: mux}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		level.Info(logger).Log("msg", "shutting down")
		cancel()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		srv.Shutdown(shutdownCtx)
	}()

	if err := web.ListenAndServe(srv, webConfig, logger); err != nil && err != http.ErrServerClosed {
		level.Error(logger).Log("msg", "HTTP listener stopped", "error", err)
		os.Exit(1)
	}
}

// observedRunner wraps the orchestrator so every scheduled run also
// updates the run_total/run_duration_seconds Prometheus metrics.
type observedRunner struct {
	orch    *orchestrator.Orchestrator
	metrics *apiserver.RunMetrics
}

func (r observedRunner) Run(ctx context.Context, triggerHourUTC int) (orchestrator.RunReport, error) {
	report, err := r.orch.Run(ctx, triggerHourUTC)
	if errors.Is(err, orchestrator.ErrRunAlreadyInProgress) {
		return report, err
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	} else if !report.Success {
		outcome = "failure"
	}
	r.metrics.Observe(outcome, report.DurationS)
	return report, err
}
